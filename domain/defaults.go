package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

func placeholderName(prefix string, n int) string {
	return fmt.Sprintf("%s %d", prefix, n)
}

// GradeCountFor returns the recommended number of grades for a headcount
func GradeCountFor(employeeCount int) int {
	switch {
	case employeeCount <= 50:
		return 4
	case employeeCount <= 100:
		return 5
	case employeeCount <= 300:
		return 6
	default:
		return 7
	}
}

// IndustryMultiplier scales salary bands by industry
func IndustryMultiplier(industry Industry) float64 {
	switch industry {
	case IndustryConsulting:
		return 1.2
	case IndustrySaaS:
		return 1.15
	case IndustryLightFreight:
		return 0.9
	default:
		return 1.0
	}
}

type gradeTemplate struct {
	level       string
	name        string
	description string
}

var gradeTemplates = []gradeTemplate{
	{"J1", "Junior I", "Learns the basics of the role under close guidance"},
	{"J2", "Junior II", "Completes routine work independently"},
	{"S1", "Senior I", "Owns work end to end and supports juniors"},
	{"S2", "Senior II", "Leads small initiatives and mentors the team"},
	{"M1", "Manager I", "Manages a team and its results"},
	{"M2", "Manager II", "Manages several teams and shapes department goals"},
	{"E1", "Executive", "Participates in company management"},
}

type band struct{ min, mid, max int }

var baseSalaryBands = map[string]band{
	"J1": {3_500_000, 4_000_000, 4_500_000},
	"J2": {4_000_000, 4_500_000, 5_000_000},
	"S1": {5_000_000, 5_500_000, 6_500_000},
	"S2": {6_000_000, 7_000_000, 8_000_000},
	"M1": {7_500_000, 9_000_000, 10_500_000},
	"M2": {9_000_000, 11_000_000, 13_000_000},
	"E1": {12_000_000, 15_000_000, 18_000_000},
}

var defaultBand = band{4_000_000, 5_000_000, 6_000_000}

func scale(amount int, mult float64) int {
	return int(math.Round(float64(amount) * mult))
}

// RatingDescriptors describes each step of the S to D scale
func RatingDescriptors() map[string]string {
	return map[string]string{
		"S": "Far exceeds expectations",
		"A": "Exceeds expectations",
		"B": "Meets expectations",
		"C": "Partially meets expectations",
		"D": "Does not meet expectations",
	}
}

// DefaultEnrichedContext is the context analysis used when the LLM is unavailable
func DefaultEnrichedContext(c *Company) map[string]any {
	return map[string]any{
		"industry_characteristics":      fmt.Sprintf("%s industry company with %d employees", c.Industry, c.EmployeeCount),
		"key_competencies_for_industry": []any{},
		"recommended_grade_count":       6,
		"design_considerations":         []any{},
		"potential_challenges":          []any{},
	}
}

// DefaultTalentProfile is the talent profile used when the LLM is unavailable
func DefaultTalentProfile(companyID string, now time.Time) *IdealTalentProfile {
	p := NewIdealTalentProfile(companyID, now)
	p.VisionStatement = "People who grow with the company and create value for customers"
	p.Competencies = []Competency{
		{
			CompetencyID: uuid.New().String(),
			Name:         "Problem solving",
			Description:  "Finds the real issue and drives it to a solution",
			Elements: []CompetencyElement{
				NewCompetencyElement("Issue analysis", "Breaks a problem down to its causes"),
				NewCompetencyElement("Solution planning", "Designs and executes a workable plan"),
			},
			Weight: 0.33,
		},
		{
			CompetencyID: uuid.New().String(),
			Name:         "Communication",
			Description:  "Builds shared understanding with others",
			Elements: []CompetencyElement{
				NewCompetencyElement("Listening", "Understands what the other party needs"),
				NewCompetencyElement("Explaining", "Conveys ideas clearly and concisely"),
			},
			Weight: 0.33,
		},
		{
			CompetencyID: uuid.New().String(),
			Name:         "Autonomy",
			Description:  "Acts without waiting to be told",
			Elements: []CompetencyElement{
				NewCompetencyElement("Initiative", "Starts work proactively"),
				NewCompetencyElement("Continuous learning", "Keeps building new skills"),
			},
			Weight: 0.34,
		},
	}
	return p
}

// DefaultGradingSystem builds a grading system sized for the company headcount
func DefaultGradingSystem(c *Company, now time.Time) *GradingSystem {
	count := GradeCountFor(c.EmployeeCount)
	if count > len(gradeTemplates) {
		count = len(gradeTemplates)
	}

	g := NewGradingSystem(c.CompanyID, now)
	for i := 0; i < count; i++ {
		t := gradeTemplates[i]
		grade := NewGrade(t.level, t.name, i+1)
		grade.Description = t.description
		grade.MinTenureMonths = 12 + i*6
		grade.TypicalTenureMonths = 24 + i*6
		g.Grades = append(g.Grades, grade)
	}
	g.MaxGradeLevel = count
	g.HasDualLadder = c.EmployeeCount > 100
	if g.HasDualLadder {
		g.Tracks = []GradeTrack{TrackGeneral, TrackManagement, TrackSpecialist}
	}
	g.DesignPrinciples = []string{
		"Clear role expectations at every grade",
		"Promotion based on demonstrated competency",
		"Structure sized to the organisation",
	}
	g.IndustryConsiderations = string(c.Industry)
	return g
}

// DefaultEvaluationSystem builds competency and performance criteria from a
// talent profile and groups them into templates for the given grades.
func DefaultEvaluationSystem(companyID string, profile *IdealTalentProfile, grading *GradingSystem, now time.Time) *EvaluationSystem {
	e := NewEvaluationSystem(companyID, now)
	e.CompetencyWeight = 0.6
	e.PerformanceWeight = 0.4

	var competencies []Competency
	if profile != nil {
		competencies = profile.Competencies
	}

	var criteria []EvaluationCriterion
	if len(competencies) == 0 {
		for i := 1; i <= CompetencyCount; i++ {
			criteria = append(criteria, EvaluationCriterion{
				CriterionID:       uuid.New().String(),
				Name:              placeholderName("Competency", i),
				EvaluationType:    EvalCompetency,
				Weight:            0.2,
				RatingDescriptors: RatingDescriptors(),
			})
		}
	} else {
		weight := 0.6 / float64(len(competencies))
		for _, c := range competencies {
			criteria = append(criteria, EvaluationCriterion{
				CriterionID:       uuid.New().String(),
				Name:              c.Name,
				Description:       c.Description,
				EvaluationType:    EvalCompetency,
				Weight:            weight,
				CompetencyID:      c.CompetencyID,
				RatingDescriptors: RatingDescriptors(),
			})
		}
	}
	criteria = append(criteria, EvaluationCriterion{
		CriterionID:       uuid.New().String(),
		Name:              "Goal achievement",
		Description:       "Achievement of goals set for the period",
		EvaluationType:    EvalPerformance,
		Weight:            0.4,
		RatingDescriptors: RatingDescriptors(),
	})

	var levels []string
	if grading != nil {
		levels = grading.Levels()
	}
	e.Templates = TemplatesByGradeGroup(levels, criteria)
	e.DesignPrinciples = []string{
		"Evaluate both how work is done and what it achieves",
		"Calibrate ratings across teams",
	}
	return e
}

// DefaultCompensationSystem builds salary bands for each grade scaled by the
// industry multiplier, plus a standard bonus and allowance set.
func DefaultCompensationSystem(c *Company, grading *GradingSystem, now time.Time) *CompensationSystem {
	comp := NewCompensationSystem(c.CompanyID, now)
	mult := IndustryMultiplier(c.Industry)
	comp.IndustryMultiplier = mult

	if grading != nil {
		for _, g := range grading.Grades {
			b, ok := baseSalaryBands[strings.ToUpper(g.Level)]
			if !ok {
				b = defaultBand
			}
			track := g.Track
			if track == "" {
				track = TrackGeneral
			}
			comp.SalaryBands = append(comp.SalaryBands, SalaryBand{
				BandID:     uuid.New().String(),
				GradeLevel: g.Level,
				Track:      string(track),
				MinSalary:  scale(b.min, mult),
				MidSalary:  scale(b.mid, mult),
				MaxSalary:  scale(b.max, mult),
			})
		}
	}

	comp.SalaryComponents = []SalaryComponent{{
		ComponentID: uuid.New().String(),
		Name:        "Base salary",
		SalaryType:  SalaryBase,
		Description: "Fixed monthly pay determined by grade",
		IsFixed:     true,
	}}
	comp.BonusStructures = []BonusStructure{{
		StructureID:       uuid.New().String(),
		Name:              "Performance bonus",
		BonusType:         BonusPerformance,
		Description:       "Paid twice a year based on evaluation results",
		Frequency:         "semi_annual",
		BaseMonths:        2.0,
		RatingMultipliers: DefaultRatingMultipliers(),
	}}
	comp.Allowances = []Allowance{{
		AllowanceID: uuid.New().String(),
		Name:        "Commuting allowance",
		Description: "Covers commuting costs",
		Amount:      50_000,
		IsTaxable:   false,
	}}
	comp.DesignPrinciples = []string{
		"Pay competitively against the market",
		"Reward performance through bonus",
	}
	return comp
}
