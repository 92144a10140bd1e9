package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/sicko7947/hrflow"
	"github.com/sicko7947/hrflow/domain"
	"github.com/sicko7947/hrflow/validation"
)

const contextSystemPrompt = `You are an expert in HR policy design.
Analyse the company information and organise the context needed to design its HR system:
1. Basic profile (industry, size, growth stage)
2. Culture and values
3. Current HR practices
4. Design goals and constraints

Answer in JSON.`

// ContextCollector validates the company input and enriches it with an
// industry analysis
type ContextCollector struct{}

// Type implements Executor
func (ContextCollector) Type() string { return hrflow.AgentContextCollector }

// Execute implements Executor
func (ContextCollector) Execute(ctx context.Context, b *Base, input map[string]any) Result {
	if missing := missingFields(input, "name", "industry", "employee_count"); len(missing) > 0 {
		return missingResult(missing)
	}

	company, err := hrflow.DecodePayload[domain.Company](input)
	if err != nil {
		return Failure("invalid company data: %v", err)
	}
	if company.CompanyID == "" {
		company.CompanyID = b.state.CompanyID
	}
	company.Normalize(b.now())

	enriched, err := b.GenerateJSON(ctx, validation.EnrichedContext, contextSystemPrompt, contextPrompt(&company), 0.5)
	if err != nil {
		b.Fallback(ctx, err)
		enriched = domain.DefaultEnrichedContext(&company)
	}

	companyData, err := payload(&company)
	if err != nil {
		return Failure("%v", err)
	}
	b.SetContext("company", companyData)
	b.SetContext("enriched", enriched)

	data := map[string]any{
		"company":          companyData,
		"enriched_context": enriched,
	}
	return b.awaitApproval(ctx, hrflow.GateContextReview,
		"Company context review",
		"Confirm that the collected company information is correct.",
		data, data)
}

func contextPrompt(c *domain.Company) string {
	existing := "no"
	if c.HasExistingHRSystem {
		existing = "yes"
	}

	var sb strings.Builder
	sb.WriteString("Analyse the following company and organise the context for HR policy design.\n\n")
	fmt.Fprintf(&sb, "Company: %s\n", c.Name)
	fmt.Fprintf(&sb, "Industry: %s\n", c.Industry)
	fmt.Fprintf(&sb, "Employees: %d\n", c.EmployeeCount)
	fmt.Fprintf(&sb, "Mission: %s\n", c.Mission)
	fmt.Fprintf(&sb, "Vision: %s\n", c.Vision)
	fmt.Fprintf(&sb, "Values: %s\n", joinList(c.Values))
	fmt.Fprintf(&sb, "Business model: %s\n", c.BusinessModel)
	fmt.Fprintf(&sb, "Growth stage: %s\n", c.GrowthStage)
	fmt.Fprintf(&sb, "Existing HR system: %s\n", existing)
	fmt.Fprintf(&sb, "Design goals: %s\n", joinList(c.DesignGoals))
	sb.WriteString(`
Return JSON in this shape:
{
  "industry_characteristics": "description of the industry",
  "recommended_grade_count": 6,
  "key_competencies_for_industry": ["competency 1", "competency 2", "competency 3"],
  "design_considerations": ["consideration 1", "consideration 2"],
  "potential_challenges": ["challenge 1", "challenge 2"]
}`)
	return sb.String()
}
