package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sicko7947/hrflow"
	"github.com/sicko7947/hrflow/domain"
	"github.com/sicko7947/hrflow/validation"
)

const evaluationSystemPrompt = `You are an expert in HR policy design.
Design an evaluation system for the company.

Principles:
1. Evaluation criteria derived from the ideal talent profile
2. Evaluation perspectives that fit each grade
3. Fair and transparent criteria
4. A process that supports growth

Answer in JSON.`

// EvaluationDesigner designs the evaluation system
type EvaluationDesigner struct{}

// Type implements Executor
func (EvaluationDesigner) Type() string { return hrflow.AgentEvaluationDesigner }

type evaluationDraft struct {
	EvaluationPeriod    string   `json:"evaluation_period"`
	CompetencyWeight    *float64 `json:"competency_weight"`
	PerformanceWeight   *float64 `json:"performance_weight"`
	HasSelfEvaluation   *bool    `json:"has_self_evaluation"`
	CalibrationRequired *bool    `json:"calibration_required"`
	DesignPrinciples    []string `json:"design_principles"`
	Criteria            []struct {
		Name              string            `json:"name"`
		Description       string            `json:"description"`
		EvaluationType    string            `json:"evaluation_type"`
		Weight            float64           `json:"weight"`
		RatingDescriptors map[string]string `json:"rating_descriptors"`
	} `json:"criteria"`
}

// Execute implements Executor
func (EvaluationDesigner) Execute(ctx context.Context, b *Base, input map[string]any) Result {
	missing := missingFields(input,
		hrflow.StepCollectContext+".company",
		hrflow.StepGenerateTalentProfile+".talent_profile",
		hrflow.StepDesignGrading+".grading_system",
	)
	if len(missing) > 0 {
		return missingResult(missing)
	}

	company, err := companyFrom(input, b.state.CompanyID)
	if err != nil {
		return Failure("%v", err)
	}
	profile, err := artifactFrom[domain.IdealTalentProfile](input, hrflow.StepGenerateTalentProfile, "talent_profile")
	if err != nil {
		return Failure("%v", err)
	}
	grading, err := artifactFrom[domain.GradingSystem](input, hrflow.StepDesignGrading, "grading_system")
	if err != nil {
		return Failure("%v", err)
	}

	evaluation, err := generateEvaluation(ctx, b, company, profile, grading)
	if err != nil {
		b.Fallback(ctx, err)
		evaluation = domain.DefaultEvaluationSystem(company.CompanyID, profile, grading, b.now())
	}

	evaluationData, err := payload(evaluation)
	if err != nil {
		return Failure("%v", err)
	}
	b.SetContext("evaluation_system", evaluationData)

	return b.awaitApproval(ctx, hrflow.GateEvaluationSystem,
		"Evaluation system review",
		"Check the designed evaluation system.",
		map[string]any{"evaluation_system": evaluationData, "template_count": len(evaluation.Templates)},
		map[string]any{"evaluation_system": evaluationData})
}

func generateEvaluation(ctx context.Context, b *Base, company *domain.Company, profile *domain.IdealTalentProfile, grading *domain.GradingSystem) (*domain.EvaluationSystem, error) {
	obj, err := b.GenerateJSON(ctx, validation.EvaluationSystem, evaluationSystemPrompt, evaluationPrompt(company, profile, grading), 0.5)
	if err != nil {
		return nil, err
	}
	draft, err := hrflow.DecodePayload[evaluationDraft](obj)
	if err != nil {
		return nil, err
	}

	e := domain.NewEvaluationSystem(company.CompanyID, b.now())
	e.EvaluationPeriod = domain.ParsePeriod(draft.EvaluationPeriod)
	e.CompetencyWeight = 0.6
	e.PerformanceWeight = 0.4
	if draft.CompetencyWeight != nil {
		e.CompetencyWeight = *draft.CompetencyWeight
	}
	if draft.PerformanceWeight != nil {
		e.PerformanceWeight = *draft.PerformanceWeight
	}
	if draft.HasSelfEvaluation != nil {
		e.HasSelfEvaluation = *draft.HasSelfEvaluation
	}
	if draft.CalibrationRequired != nil {
		e.CalibrationRequired = *draft.CalibrationRequired
	}
	if draft.DesignPrinciples != nil {
		e.DesignPrinciples = draft.DesignPrinciples
	}

	criteria := make([]domain.EvaluationCriterion, 0, len(draft.Criteria))
	for _, c := range draft.Criteria {
		descriptors := c.RatingDescriptors
		if len(descriptors) == 0 {
			descriptors = domain.RatingDescriptors()
		}
		criteria = append(criteria, domain.EvaluationCriterion{
			CriterionID:       uuid.New().String(),
			Name:              c.Name,
			Description:       c.Description,
			EvaluationType:    domain.ParseEvaluationType(c.EvaluationType),
			Weight:            c.Weight,
			CompetencyID:      competencyID(profile, c.Name),
			RatingDescriptors: descriptors,
		})
	}
	e.Templates = domain.TemplatesByGradeGroup(grading.Levels(), criteria)
	return e, nil
}

func evaluationPrompt(c *domain.Company, profile *domain.IdealTalentProfile, grading *domain.GradingSystem) string {
	var sb strings.Builder
	sb.WriteString("Design an evaluation system for the following company.\n\n")
	fmt.Fprintf(&sb, "Company: %s\n", c.Name)
	fmt.Fprintf(&sb, "Industry: %s\n", c.Industry)
	fmt.Fprintf(&sb, "Employees: %d\n\n", c.EmployeeCount)
	sb.WriteString("Competencies:\n")
	for _, comp := range profile.Competencies {
		fmt.Fprintf(&sb, "- %s: %s\n", comp.Name, comp.Description)
	}
	fmt.Fprintf(&sb, "\nGrades: %s\n", joinList(grading.Levels()))
	sb.WriteString(`
Return JSON in this shape:
{
  "evaluation_period": "semi_annual",
  "competency_weight": 0.6,
  "performance_weight": 0.4,
  "has_self_evaluation": true,
  "calibration_required": true,
  "design_principles": ["principle 1", "principle 2"],
  "criteria": [
    {
      "name": "criterion",
      "description": "what is evaluated",
      "evaluation_type": "competency",
      "weight": 0.1,
      "rating_descriptors": {"S": "...", "A": "...", "B": "...", "C": "...", "D": "..."}
    }
  ]
}`)
	return sb.String()
}
