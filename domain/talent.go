package domain

import (
	"time"

	"github.com/google/uuid"
)

// CompetencyElement is one observable behaviour inside a competency
type CompetencyElement struct {
	ElementID            string   `json:"element_id"`
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	BehavioralIndicators []string `json:"behavioral_indicators"`
}

// Competency groups two elements with a weight
type Competency struct {
	CompetencyID string              `json:"competency_id"`
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	Elements     []CompetencyElement `json:"elements"`
	Weight       float64             `json:"weight"`
}

// GraduationRequirement describes what it takes to move between grades
type GraduationRequirement struct {
	RequirementID          string         `json:"requirement_id"`
	FromGrade              string         `json:"from_grade"`
	ToGrade                string         `json:"to_grade"`
	CompetencyRequirements map[string]int `json:"competency_requirements"`
	ExperienceMonths       int            `json:"experience_months"`
	PerformanceThreshold   string         `json:"performance_threshold"`
	AdditionalCriteria     []string       `json:"additional_criteria"`
}

// IdealTalentProfile is three competencies of two elements each
type IdealTalentProfile struct {
	ProfileID              string                  `json:"profile_id"`
	CompanyID              string                  `json:"company_id"`
	Version                int                     `json:"version"`
	Name                   string                  `json:"name"`
	VisionStatement        string                  `json:"vision_statement"`
	Competencies           []Competency            `json:"competencies"`
	GraduationRequirements []GraduationRequirement `json:"graduation_requirements"`
	CreatedAt              time.Time               `json:"created_at"`
}

// Profile shape
const (
	CompetencyCount         = 3
	ElementsPerCompetency   = 2
	defaultCompetencyWeight = 0.33
)

// NewCompetencyElement creates an element with a fresh id
func NewCompetencyElement(name, description string, indicators ...string) CompetencyElement {
	if indicators == nil {
		indicators = []string{}
	}
	return CompetencyElement{
		ElementID:            uuid.New().String(),
		Name:                 name,
		Description:          description,
		BehavioralIndicators: indicators,
	}
}

// NewIdealTalentProfile creates an empty profile for a company
func NewIdealTalentProfile(companyID string, now time.Time) *IdealTalentProfile {
	return &IdealTalentProfile{
		ProfileID:              uuid.New().String(),
		CompanyID:              companyID,
		Version:                1,
		Name:                   "Ideal Talent Profile",
		Competencies:           []Competency{},
		GraduationRequirements: []GraduationRequirement{},
		CreatedAt:              now,
	}
}

// TotalElements returns the number of competency elements, six for a complete profile
func (p *IdealTalentProfile) TotalElements() int {
	n := 0
	for _, c := range p.Competencies {
		n += len(c.Elements)
	}
	return n
}

// CompetencyNames lists the competency names in order
func (p *IdealTalentProfile) CompetencyNames() []string {
	names := make([]string, 0, len(p.Competencies))
	for _, c := range p.Competencies {
		names = append(names, c.Name)
	}
	return names
}

// Complete pads the profile to three competencies of two elements each
// and truncates anything beyond that.
func (p *IdealTalentProfile) Complete() {
	if len(p.Competencies) > CompetencyCount {
		p.Competencies = p.Competencies[:CompetencyCount]
	}
	for i := range p.Competencies {
		c := &p.Competencies[i]
		if c.CompetencyID == "" {
			c.CompetencyID = uuid.New().String()
		}
		if c.Weight <= 0 || c.Weight > 1 {
			c.Weight = defaultCompetencyWeight
		}
		if len(c.Elements) > ElementsPerCompetency {
			c.Elements = c.Elements[:ElementsPerCompetency]
		}
		for j := range c.Elements {
			if c.Elements[j].ElementID == "" {
				c.Elements[j].ElementID = uuid.New().String()
			}
			if c.Elements[j].BehavioralIndicators == nil {
				c.Elements[j].BehavioralIndicators = []string{}
			}
		}
		for len(c.Elements) < ElementsPerCompetency {
			c.Elements = append(c.Elements, NewCompetencyElement(placeholderName("Element", len(c.Elements)+1), "(to be defined)"))
		}
	}
	for len(p.Competencies) < CompetencyCount {
		p.Competencies = append(p.Competencies, Competency{
			CompetencyID: uuid.New().String(),
			Name:         placeholderName("Competency", len(p.Competencies)+1),
			Description:  "(to be defined)",
			Elements: []CompetencyElement{
				NewCompetencyElement("Element 1", "(to be defined)"),
				NewCompetencyElement("Element 2", "(to be defined)"),
			},
			Weight: defaultCompetencyWeight,
		})
	}
}
