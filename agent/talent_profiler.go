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

const talentSystemPrompt = `You are an expert in HR policy design.
Design the company's ideal talent profile.

Structure:
- 3 competencies
- 2 elements per competency
- 6 elements in total

Principles: align with the mission, vision and values; reflect the industry;
use concrete, observable behavioural indicators; fit the growth stage.

Answer in JSON.`

// TalentProfiler designs the ideal talent profile
type TalentProfiler struct{}

// Type implements Executor
func (TalentProfiler) Type() string { return hrflow.AgentTalentProfiler }

type talentDraft struct {
	VisionStatement string `json:"vision_statement"`
	Competencies    []struct {
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Weight      float64 `json:"weight"`
		Elements    []struct {
			Name                 string   `json:"name"`
			Description          string   `json:"description"`
			BehavioralIndicators []string `json:"behavioral_indicators"`
		} `json:"elements"`
	} `json:"competencies"`
}

// Execute implements Executor
func (TalentProfiler) Execute(ctx context.Context, b *Base, input map[string]any) Result {
	if missing := missingFields(input, hrflow.StepCollectContext+".company"); len(missing) > 0 {
		return missingResult(missing)
	}

	company, err := companyFrom(input, b.state.CompanyID)
	if err != nil {
		return Failure("%v", err)
	}
	enriched, _ := hrflow.LookupPath(input, hrflow.StepCollectContext, "enriched_context")
	enrichedMap, _ := enriched.(map[string]any)

	profile, err := generateProfile(ctx, b, company, enrichedMap)
	if err != nil {
		b.Fallback(ctx, err)
		profile = domain.DefaultTalentProfile(company.CompanyID, b.now())
	}

	profileData, err := payload(profile)
	if err != nil {
		return Failure("%v", err)
	}
	b.SetContext("talent_profile", profileData)

	return b.awaitApproval(ctx, hrflow.GateTalentProfile,
		"Ideal talent profile review",
		"Check whether the generated ideal talent profile is appropriate.",
		map[string]any{"profile": profileData, "company_name": company.Name},
		map[string]any{"talent_profile": profileData})
}

func generateProfile(ctx context.Context, b *Base, company *domain.Company, enriched map[string]any) (*domain.IdealTalentProfile, error) {
	obj, err := b.GenerateJSON(ctx, validation.TalentProfile, talentSystemPrompt, talentPrompt(company, enriched), 0.7)
	if err != nil {
		return nil, err
	}
	draft, err := hrflow.DecodePayload[talentDraft](obj)
	if err != nil {
		return nil, err
	}

	profile := domain.NewIdealTalentProfile(company.CompanyID, b.now())
	profile.VisionStatement = draft.VisionStatement
	for _, c := range draft.Competencies {
		comp := domain.Competency{
			CompetencyID: uuid.New().String(),
			Name:         c.Name,
			Description:  c.Description,
			Weight:       c.Weight,
		}
		for _, e := range c.Elements {
			comp.Elements = append(comp.Elements, domain.NewCompetencyElement(e.Name, e.Description, e.BehavioralIndicators...))
		}
		profile.Competencies = append(profile.Competencies, comp)
	}
	profile.Complete()
	return profile, nil
}

func talentPrompt(c *domain.Company, enriched map[string]any) string {
	characteristics, _ := enriched["industry_characteristics"].(string)
	var competencies []string
	if list, ok := enriched["key_competencies_for_industry"].([]any); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				competencies = append(competencies, s)
			}
		}
	}

	var sb strings.Builder
	sb.WriteString("Design the ideal talent profile for the following company.\n\n")
	fmt.Fprintf(&sb, "Company: %s\n", c.Name)
	fmt.Fprintf(&sb, "Industry: %s\n", c.Industry)
	fmt.Fprintf(&sb, "Employees: %d\n", c.EmployeeCount)
	fmt.Fprintf(&sb, "Mission: %s\n", c.Mission)
	fmt.Fprintf(&sb, "Vision: %s\n", c.Vision)
	fmt.Fprintf(&sb, "Values: %s\n", joinList(c.Values))
	fmt.Fprintf(&sb, "Design goals: %s\n\n", joinList(c.DesignGoals))
	fmt.Fprintf(&sb, "Industry characteristics:\n%s\n\n", characteristics)
	fmt.Fprintf(&sb, "Recommended competencies:\n%s\n", joinList(competencies))
	sb.WriteString(`
Return JSON in this shape:
{
  "vision_statement": "the ideal talent in one sentence",
  "competencies": [
    {
      "name": "competency 1",
      "description": "what it means",
      "elements": [
        {"name": "element 1", "description": "...", "behavioral_indicators": ["indicator 1", "indicator 2"]},
        {"name": "element 2", "description": "...", "behavioral_indicators": ["indicator 1", "indicator 2"]}
      ],
      "weight": 0.33
    }
  ]
}
Provide exactly 3 competencies.`)
	return sb.String()
}
