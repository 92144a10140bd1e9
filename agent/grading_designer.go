package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sicko7947/hrflow"
	"github.com/sicko7947/hrflow/domain"
	"github.com/sicko7947/hrflow/validation"
)

const gradingSystemPrompt = `You are an expert in HR policy design.
Design a grading system for the company.

Principles:
1. Clear role expectations at each grade
2. Expected competency level per grade (1-5)
3. Promotion criteria between grades
4. A structure sized to the organisation
5. Consider a dual ladder (management and specialist) for larger companies

Typical grades: J1, J2 (junior), S1, S2 (senior), M1, M2 (manager), E1 (executive).

Answer in JSON.`

// GradingDesigner designs the grade structure
type GradingDesigner struct{}

// Type implements Executor
func (GradingDesigner) Type() string { return hrflow.AgentGradingDesigner }

type gradingDraft struct {
	HasDualLadder    bool     `json:"has_dual_ladder"`
	DesignPrinciples []string `json:"design_principles"`
	Grades           []struct {
		Level               string   `json:"level"`
		Name                string   `json:"name"`
		Track               string   `json:"track"`
		Order               int      `json:"order"`
		Description         string   `json:"description"`
		RoleExpectations    []string `json:"role_expectations"`
		ResponsibilityScope string   `json:"responsibility_scope"`
		MinTenureMonths     *int     `json:"min_tenure_months"`
		CompetencyLevels    []struct {
			CompetencyName string `json:"competency_name"`
			RequiredLevel  int    `json:"required_level"`
		} `json:"competency_levels"`
	} `json:"grades"`
}

// Execute implements Executor
func (GradingDesigner) Execute(ctx context.Context, b *Base, input map[string]any) Result {
	missing := missingFields(input,
		hrflow.StepCollectContext+".company",
		hrflow.StepGenerateTalentProfile+".talent_profile",
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

	grading, err := generateGrading(ctx, b, company, profile)
	if err != nil {
		b.Fallback(ctx, err)
		grading = domain.DefaultGradingSystem(company, b.now())
	}

	gradingData, err := payload(grading)
	if err != nil {
		return Failure("%v", err)
	}
	b.SetContext("grading_system", gradingData)

	return b.awaitApproval(ctx, hrflow.GateGradingSystem,
		"Grading system review",
		"Check the designed grading system.",
		map[string]any{"grading_system": gradingData, "grade_count": len(grading.Grades)},
		map[string]any{"grading_system": gradingData})
}

func generateGrading(ctx context.Context, b *Base, company *domain.Company, profile *domain.IdealTalentProfile) (*domain.GradingSystem, error) {
	obj, err := b.GenerateJSON(ctx, validation.GradingSystem, gradingSystemPrompt, gradingPrompt(company, profile), 0.5)
	if err != nil {
		return nil, err
	}
	draft, err := hrflow.DecodePayload[gradingDraft](obj)
	if err != nil {
		return nil, err
	}

	g := domain.NewGradingSystem(company.CompanyID, b.now())
	for i, d := range draft.Grades {
		order := d.Order
		if order <= 0 {
			order = i + 1
		}
		grade := domain.NewGrade(d.Level, d.Name, order)
		grade.Track = domain.ParseTrack(d.Track)
		grade.Description = d.Description
		grade.ResponsibilityScope = d.ResponsibilityScope
		if d.RoleExpectations != nil {
			grade.RoleExpectations = d.RoleExpectations
		}
		if d.MinTenureMonths != nil {
			grade.MinTenureMonths = *d.MinTenureMonths
		}
		for _, cl := range d.CompetencyLevels {
			level := cl.RequiredLevel
			if level < 1 {
				level = 1
			}
			grade.CompetencyLevels = append(grade.CompetencyLevels, domain.CompetencyLevel{
				CompetencyID:   competencyID(profile, cl.CompetencyName),
				CompetencyName: cl.CompetencyName,
				RequiredLevel:  level,
			})
		}
		g.Grades = append(g.Grades, grade)
	}
	sort.SliceStable(g.Grades, func(i, j int) bool { return g.Grades[i].Order < g.Grades[j].Order })

	g.MaxGradeLevel = len(g.Grades)
	g.HasDualLadder = draft.HasDualLadder
	if g.HasDualLadder {
		g.Tracks = []domain.GradeTrack{domain.TrackGeneral, domain.TrackManagement, domain.TrackSpecialist}
	}
	if draft.DesignPrinciples != nil {
		g.DesignPrinciples = draft.DesignPrinciples
	}
	g.IndustryConsiderations = string(company.Industry)
	return g, nil
}

func competencyID(profile *domain.IdealTalentProfile, name string) string {
	for _, c := range profile.Competencies {
		if c.Name == name {
			return c.CompetencyID
		}
	}
	return ""
}

func gradingPrompt(c *domain.Company, profile *domain.IdealTalentProfile) string {
	var sb strings.Builder
	sb.WriteString("Design a grading system for the following company.\n\n")
	fmt.Fprintf(&sb, "Company: %s\n", c.Name)
	fmt.Fprintf(&sb, "Industry: %s\n", c.Industry)
	fmt.Fprintf(&sb, "Employees: %d\n", c.EmployeeCount)
	fmt.Fprintf(&sb, "Recommended grade count: %d\n\n", domain.GradeCountFor(c.EmployeeCount))
	sb.WriteString("Ideal talent profile competencies:\n")
	for _, comp := range profile.Competencies {
		fmt.Fprintf(&sb, "- %s: %s\n", comp.Name, comp.Description)
	}
	sb.WriteString(`
Return JSON in this shape:
{
  "recommended_grade_count": 6,
  "has_dual_ladder": true,
  "design_principles": ["principle 1", "principle 2"],
  "grades": [
    {
      "level": "J1",
      "name": "Junior I",
      "track": "general",
      "order": 1,
      "description": "what the grade means",
      "role_expectations": ["expectation 1", "expectation 2"],
      "responsibility_scope": "scope of responsibility",
      "competency_levels": [{"competency_name": "competency", "required_level": 1}],
      "min_tenure_months": 12
    }
  ]
}
List every grade.`)
	return sb.String()
}
