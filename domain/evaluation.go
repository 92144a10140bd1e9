package domain

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EvaluationPeriod is how often evaluations run
type EvaluationPeriod string

const (
	PeriodQuarterly  EvaluationPeriod = "quarterly"
	PeriodSemiAnnual EvaluationPeriod = "semi_annual"
	PeriodAnnual     EvaluationPeriod = "annual"
)

// ParsePeriod maps input onto a known period, defaulting to semi-annual
func ParsePeriod(s string) EvaluationPeriod {
	switch EvaluationPeriod(s) {
	case PeriodQuarterly, PeriodAnnual:
		return EvaluationPeriod(s)
	default:
		return PeriodSemiAnnual
	}
}

// EvaluationType is what a criterion measures
type EvaluationType string

const (
	EvalCompetency  EvaluationType = "competency"
	EvalPerformance EvaluationType = "performance"
	EvalBehavior    EvaluationType = "behavior"
	EvalMBO         EvaluationType = "mbo"
)

// ParseEvaluationType maps input onto a known type, defaulting to competency
func ParseEvaluationType(s string) EvaluationType {
	switch EvaluationType(s) {
	case EvalPerformance, EvalBehavior, EvalMBO:
		return EvaluationType(s)
	default:
		return EvalCompetency
	}
}

// RatingScale is the S to D scale, best first
var RatingScale = []string{"S", "A", "B", "C", "D"}

// EvaluationCriterion is one weighted item on an evaluation sheet
type EvaluationCriterion struct {
	CriterionID       string            `json:"criterion_id"`
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	EvaluationType    EvaluationType    `json:"evaluation_type"`
	Weight            float64           `json:"weight"`
	CompetencyID      string            `json:"competency_id,omitempty"`
	RatingDescriptors map[string]string `json:"rating_descriptors"`
}

// EvaluationTemplate applies a set of criteria to a group of grades
type EvaluationTemplate struct {
	TemplateID  string                `json:"template_id"`
	Name        string                `json:"name"`
	GradeLevels []string              `json:"grade_levels"`
	Criteria    []EvaluationCriterion `json:"criteria"`
}

// TotalWeight sums the criterion weights
func (t EvaluationTemplate) TotalWeight() float64 {
	total := 0.0
	for _, c := range t.Criteria {
		total += c.Weight
	}
	return total
}

// WeightsBalanced reports whether the criterion weights sum to one
func (t EvaluationTemplate) WeightsBalanced() bool {
	return math.Abs(t.TotalWeight()-1.0) < 0.001
}

// EvaluationSystem is the evaluation design of a company
type EvaluationSystem struct {
	SystemID            string               `json:"system_id"`
	CompanyID           string               `json:"company_id"`
	Version             int                  `json:"version"`
	Name                string               `json:"name"`
	EvaluationPeriod    EvaluationPeriod     `json:"evaluation_period"`
	EvaluationTypes     []EvaluationType     `json:"evaluation_types"`
	RatingScale         []string             `json:"rating_scale"`
	CompetencyWeight    float64              `json:"competency_weight"`
	PerformanceWeight   float64              `json:"performance_weight"`
	Templates           []EvaluationTemplate `json:"templates"`
	HasSelfEvaluation   bool                 `json:"has_self_evaluation"`
	HasPeerEvaluation   bool                 `json:"has_peer_evaluation"`
	Has360Feedback      bool                 `json:"has_360_feedback"`
	CalibrationRequired bool                 `json:"calibration_required"`
	DesignPrinciples    []string             `json:"design_principles"`
	CreatedAt           time.Time            `json:"created_at"`
}

// NewEvaluationSystem creates an evaluation system with defaults applied
func NewEvaluationSystem(companyID string, now time.Time) *EvaluationSystem {
	return &EvaluationSystem{
		SystemID:            uuid.New().String(),
		CompanyID:           companyID,
		Version:             1,
		Name:                "Evaluation System",
		EvaluationPeriod:    PeriodSemiAnnual,
		EvaluationTypes:     []EvaluationType{EvalCompetency, EvalPerformance},
		RatingScale:         append([]string{}, RatingScale...),
		CompetencyWeight:    0.5,
		PerformanceWeight:   0.5,
		Templates:           []EvaluationTemplate{},
		HasSelfEvaluation:   true,
		CalibrationRequired: true,
		DesignPrinciples:    []string{},
		CreatedAt:           now,
	}
}

// TemplateFor returns the template covering a grade level
func (e *EvaluationSystem) TemplateFor(gradeLevel string) (EvaluationTemplate, bool) {
	for _, t := range e.Templates {
		for _, l := range t.GradeLevels {
			if l == gradeLevel {
				return t, true
			}
		}
	}
	return EvaluationTemplate{}, false
}

// OverallRating combines competency and performance scores by the system weights
func (e *EvaluationSystem) OverallRating(competency, performance float64) float64 {
	return competency*e.CompetencyWeight + performance*e.PerformanceWeight
}

// TemplatesByGradeGroup builds one template per grade family: junior (J),
// senior (S), and management/executive (M, E).
func TemplatesByGradeGroup(levels []string, criteria []EvaluationCriterion) []EvaluationTemplate {
	groups := []struct {
		name     string
		prefixes []string
	}{
		{"Junior Evaluation Template", []string{"J"}},
		{"Senior Evaluation Template", []string{"S"}},
		{"Manager Evaluation Template", []string{"M", "E"}},
	}

	templates := []EvaluationTemplate{}
	for _, g := range groups {
		var matched []string
		for _, l := range levels {
			for _, p := range g.prefixes {
				if strings.HasPrefix(l, p) {
					matched = append(matched, l)
					break
				}
			}
		}
		if len(matched) == 0 {
			continue
		}
		templates = append(templates, EvaluationTemplate{
			TemplateID:  uuid.New().String(),
			Name:        g.name,
			GradeLevels: matched,
			Criteria:    criteria,
		})
	}
	return templates
}
