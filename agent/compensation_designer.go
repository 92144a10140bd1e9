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

const compensationSystemPrompt = `You are an expert in HR policy design.
Design a compensation system for the company.

Principles:
1. Salary bands that match the grading system
2. Pay that reflects evaluation results
3. Market competitiveness
4. Internal fairness
5. Financial sustainability

Amounts are annual, in JPY. Answer in JSON.`

// CompensationDesigner designs salary bands, bonus and allowances
type CompensationDesigner struct{}

// Type implements Executor
func (CompensationDesigner) Type() string { return hrflow.AgentCompensationDesigner }

type compensationDraft struct {
	MarketPosition              string   `json:"market_position"`
	PayForPerformanceRatio      *float64 `json:"pay_for_performance_ratio"`
	AnnualIncreaseBudgetPercent *float64 `json:"annual_increase_budget_percent"`
	PromotionIncreasePercent    *float64 `json:"promotion_increase_percent"`
	BonusMonths                 *float64 `json:"bonus_months"`
	DesignPrinciples            []string `json:"design_principles"`
	SalaryBands                 []struct {
		GradeLevel string `json:"grade_level"`
		MinSalary  int    `json:"min_salary"`
		MidSalary  int    `json:"mid_salary"`
		MaxSalary  int    `json:"max_salary"`
	} `json:"salary_bands"`
	Allowances []struct {
		Name        string `json:"name"`
		Amount      int    `json:"amount"`
		Description string `json:"description"`
	} `json:"allowances"`
}

// Execute implements Executor
func (CompensationDesigner) Execute(ctx context.Context, b *Base, input map[string]any) Result {
	missing := missingFields(input,
		hrflow.StepCollectContext+".company",
		hrflow.StepDesignGrading+".grading_system",
		hrflow.StepDesignEvaluation+".evaluation_system",
	)
	if len(missing) > 0 {
		return missingResult(missing)
	}

	company, err := companyFrom(input, b.state.CompanyID)
	if err != nil {
		return Failure("%v", err)
	}
	grading, err := artifactFrom[domain.GradingSystem](input, hrflow.StepDesignGrading, "grading_system")
	if err != nil {
		return Failure("%v", err)
	}
	evaluation, err := artifactFrom[domain.EvaluationSystem](input, hrflow.StepDesignEvaluation, "evaluation_system")
	if err != nil {
		return Failure("%v", err)
	}

	comp, err := generateCompensation(ctx, b, company, grading, evaluation)
	if err != nil {
		b.Fallback(ctx, err)
		comp = domain.DefaultCompensationSystem(company, grading, b.now())
	}

	compData, err := payload(comp)
	if err != nil {
		return Failure("%v", err)
	}
	b.SetContext("compensation_system", compData)

	return b.awaitApproval(ctx, hrflow.GateCompensation,
		"Compensation system review",
		"Check the designed compensation system.",
		map[string]any{"compensation_system": compData, "band_count": len(comp.SalaryBands)},
		map[string]any{"compensation_system": compData})
}

// generateCompensation starts from the default system so components and
// bonus structures survive a partial model answer
func generateCompensation(ctx context.Context, b *Base, company *domain.Company, grading *domain.GradingSystem, evaluation *domain.EvaluationSystem) (*domain.CompensationSystem, error) {
	obj, err := b.GenerateJSON(ctx, validation.CompensationSystem, compensationSystemPrompt, compensationPrompt(company, grading, evaluation), 0.5)
	if err != nil {
		return nil, err
	}
	draft, err := hrflow.DecodePayload[compensationDraft](obj)
	if err != nil {
		return nil, err
	}

	c := domain.DefaultCompensationSystem(company, grading, b.now())
	if draft.MarketPosition != "" {
		c.MarketPosition = draft.MarketPosition
	}
	if draft.PayForPerformanceRatio != nil {
		c.PayForPerformanceRatio = *draft.PayForPerformanceRatio
	}
	if draft.AnnualIncreaseBudgetPercent != nil {
		c.AnnualIncreaseBudgetPercent = *draft.AnnualIncreaseBudgetPercent
	}
	if draft.PromotionIncreasePercent != nil {
		c.PromotionIncreasePercent = *draft.PromotionIncreasePercent
	}
	if draft.BonusMonths != nil {
		c.TotalBonusMonths = *draft.BonusMonths
	}
	if draft.DesignPrinciples != nil {
		c.DesignPrinciples = draft.DesignPrinciples
	}

	c.SalaryBands = make([]domain.SalaryBand, 0, len(draft.SalaryBands))
	for _, band := range draft.SalaryBands {
		mid := band.MidSalary
		if mid == 0 {
			mid = (band.MinSalary + band.MaxSalary) / 2
		}
		track := string(domain.TrackGeneral)
		if g, ok := grading.Grade(band.GradeLevel); ok && g.Track != "" {
			track = string(g.Track)
		}
		c.SalaryBands = append(c.SalaryBands, domain.SalaryBand{
			BandID:     uuid.New().String(),
			GradeLevel: band.GradeLevel,
			Track:      track,
			MinSalary:  band.MinSalary,
			MidSalary:  mid,
			MaxSalary:  band.MaxSalary,
		})
	}

	if len(draft.Allowances) > 0 {
		c.Allowances = make([]domain.Allowance, 0, len(draft.Allowances))
		for _, a := range draft.Allowances {
			c.Allowances = append(c.Allowances, domain.Allowance{
				AllowanceID: uuid.New().String(),
				Name:        a.Name,
				Description: a.Description,
				Amount:      a.Amount,
			})
		}
	}
	return c, nil
}

func compensationPrompt(c *domain.Company, grading *domain.GradingSystem, evaluation *domain.EvaluationSystem) string {
	var sb strings.Builder
	sb.WriteString("Design a compensation system for the following company.\n\n")
	fmt.Fprintf(&sb, "Company: %s\n", c.Name)
	fmt.Fprintf(&sb, "Industry: %s (salary multiplier %.2f)\n", c.Industry, domain.IndustryMultiplier(c.Industry))
	fmt.Fprintf(&sb, "Employees: %d\n\n", c.EmployeeCount)
	sb.WriteString("Grades:\n")
	for _, g := range grading.Grades {
		fmt.Fprintf(&sb, "- %s %s (%s)\n", g.Level, g.Name, g.Track)
	}
	fmt.Fprintf(&sb, "\nEvaluation: %s, competency weight %.1f, performance weight %.1f, rating scale %s\n",
		evaluation.EvaluationPeriod, evaluation.CompetencyWeight, evaluation.PerformanceWeight, joinList(evaluation.RatingScale))
	sb.WriteString(`
Return JSON in this shape:
{
  "market_position": "50th percentile",
  "pay_for_performance_ratio": 0.3,
  "annual_increase_budget_percent": 3.0,
  "promotion_increase_percent": 10.0,
  "design_principles": ["principle 1", "principle 2"],
  "salary_bands": [
    {"grade_level": "J1", "min_salary": 3500000, "mid_salary": 4000000, "max_salary": 4500000}
  ],
  "bonus_months": 4.0,
  "allowances": [
    {"name": "Commuting allowance", "amount": 50000, "description": "actual cost, capped at 50,000"}
  ]
}`)
	return sb.String()
}
