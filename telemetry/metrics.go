package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the counters recorded by the core packages
type Metrics struct {
	HITLRequests     metric.Int64Counter
	HITLDecisions    metric.Int64Counter
	HITLExpired      metric.Int64Counter
	WorkflowsStarted metric.Int64Counter
	WorkflowsEnded   metric.Int64Counter
	StepsDispatched  metric.Int64Counter
	AgentRuns        metric.Int64Counter
	AgentFallbacks   metric.Int64Counter
}

// NewMetrics creates the counters on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.HITLRequests, "hrflow.hitl.requests", "HITL requests created"},
		{&m.HITLDecisions, "hrflow.hitl.decisions", "HITL decisions submitted"},
		{&m.HITLExpired, "hrflow.hitl.expired", "HITL requests expired"},
		{&m.WorkflowsStarted, "hrflow.workflows.started", "Workflows started"},
		{&m.WorkflowsEnded, "hrflow.workflows.ended", "Workflows that reached a terminal status"},
		{&m.StepsDispatched, "hrflow.steps.dispatched", "Steps dispatched to agents"},
		{&m.AgentRuns, "hrflow.agent.runs", "Agent runs"},
		{&m.AgentFallbacks, "hrflow.agent.fallbacks", "Agent runs that used a default artifact"},
	}

	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}
	return m, nil
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// DefaultMetrics returns counters on the global meter provider
func DefaultMetrics() *Metrics {
	defaultOnce.Do(func() {
		m, err := NewMetrics(otel.Meter(instrumentationName))
		if err != nil {
			m = NoopMetrics()
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// NoopMetrics returns counters that record nothing
func NoopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(instrumentationName))
	return m
}

// Inc adds one to counter with string attribute pairs
func Inc(ctx context.Context, counter metric.Int64Counter, kv ...string) {
	if counter == nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, attribute.String(kv[i], kv[i+1]))
	}
	counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}
