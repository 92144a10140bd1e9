package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/itchyny/gojq"
	"github.com/sicko7947/hrflow"
)

var (
	projectionsMu sync.RWMutex
	projections   = map[string]*gojq.Code{}
)

// projection compiles ".<field>" once per field
func projection(field string) (*gojq.Code, error) {
	expr := "." + field

	projectionsMu.RLock()
	code, ok := projections[expr]
	projectionsMu.RUnlock()
	if ok {
		return code, nil
	}

	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid output field %q: %w", field, err)
	}
	code, err = gojq.Compile(query, gojq.WithEnvironLoader(func() []string { return nil }))
	if err != nil {
		return nil, fmt.Errorf("invalid output field %q: %w", field, err)
	}

	projectionsMu.Lock()
	projections[expr] = code
	projectionsMu.Unlock()
	return code, nil
}

// Output collects the named output field of every step into one policy
// document keyed by field name. Steps without output, or whose output lacks
// the field, are left out.
func (o *Orchestrator) Output(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}

	for _, st := range o.template.Steps() {
		if st.OutputField == "" {
			continue
		}
		step := o.state.Step(st.StepID)
		if step == nil || len(step.OutputData) == 0 {
			continue
		}

		code, err := projection(st.OutputField)
		if err != nil {
			return nil, err
		}

		// gojq only accepts plain JSON values
		data, err := hrflow.ToPayload(step.OutputData)
		if err != nil {
			return nil, err
		}

		iter := code.RunWithContext(ctx, data)
		v, ok := iter.Next()
		if !ok || v == nil {
			continue
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("failed to project %s of %s: %w", st.OutputField, st.StepID, err)
		}
		out[st.OutputField] = v
	}
	return out, nil
}
