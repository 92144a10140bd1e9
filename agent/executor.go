package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/sicko7947/hrflow"
	"github.com/sicko7947/hrflow/domain"
	"github.com/sicko7947/hrflow/telemetry"
	"github.com/sicko7947/hrflow/validation"
)

// missingFields returns the dotted paths absent from input
func missingFields(input map[string]any, paths ...string) []string {
	var missing []string
	for _, p := range paths {
		if _, ok := hrflow.LookupPath(input, strings.Split(p, ".")...); !ok {
			missing = append(missing, p)
		}
	}
	return missing
}

func missingResult(missing []string) Result {
	return Failure("Missing required fields: %s", strings.Join(missing, ", "))
}

// GenerateJSON asks the model for a JSON object and validates it against
// the named schema
func (b *Base) GenerateJSON(ctx context.Context, schema, system, user string, temperature float64) (map[string]any, error) {
	text, err := b.Complete(ctx, system, user, 0, temperature)
	if err != nil {
		return nil, err
	}
	obj, err := hrflow.ExtractJSONObject(text)
	if err != nil {
		return nil, err
	}
	if err := validation.Validate(schema, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// Fallback records that the default artifact replaced a generated one
func (b *Base) Fallback(ctx context.Context, err error) {
	hrflow.LogAgentFallback(b.logger, b.state.AgentType, err)
	telemetry.Inc(ctx, b.metrics.AgentFallbacks, "agent_type", b.state.AgentType)
}

// awaitApproval raises gate for data and builds the pending result
func (b *Base) awaitApproval(ctx context.Context, gate hrflow.GateID, title, description string, gateData, output map[string]any) Result {
	req, err := b.RequestApproval(ctx, gate, title, description, gateData)
	if err != nil {
		return Failure("%v", err)
	}

	result := Result{
		Success:          true,
		Data:             output,
		RequiresApproval: true,
		GateID:           gate,
	}
	if req != nil {
		result.RequestID = req.RequestID
	}
	return result
}

// companyFrom decodes the company produced by the context step
func companyFrom(input map[string]any, fallbackID string) (*domain.Company, error) {
	raw, _ := hrflow.LookupPath(input, hrflow.StepCollectContext, "company")
	company, err := hrflow.DecodePayload[domain.Company](raw)
	if err != nil {
		return nil, fmt.Errorf("invalid company context: %w", err)
	}
	if company.CompanyID == "" {
		company.CompanyID = fallbackID
	}
	return &company, nil
}

// artifactFrom decodes an upstream artifact at step.field
func artifactFrom[T any](input map[string]any, step, field string) (*T, error) {
	raw, _ := hrflow.LookupPath(input, step, field)
	v, err := hrflow.DecodePayload[T](raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	return &v, nil
}

func payload(v any) (map[string]any, error) {
	p, err := hrflow.ToPayload(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode artifact: %w", err)
	}
	return p, nil
}

func joinList(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
