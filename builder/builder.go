package builder

import (
	"fmt"
	"sync"

	"github.com/sicko7947/hrflow"
)

// TemplateBuilder provides a fluent API for building workflow templates
type TemplateBuilder struct {
	name        string
	steps       []hrflow.StepTemplate
	index       map[string]int
	lastStepIDs []string
	err         error
}

// StepSpec names a step and the agent type that executes it
type StepSpec struct {
	ID        string
	AgentType string
	Options   []StepOption
}

// Step is shorthand for a StepSpec
func Step(id, agentType string, opts ...StepOption) StepSpec {
	return StepSpec{ID: id, AgentType: agentType, Options: opts}
}

// NewTemplate creates a new template builder
func NewTemplate(name string) *TemplateBuilder {
	return &TemplateBuilder{
		name:        name,
		index:       make(map[string]int),
		lastStepIDs: []string{},
	}
}

// ThenStep chains the given step after the last added step(s)
func (b *TemplateBuilder) ThenStep(id, agentType string, opts ...StepOption) *TemplateBuilder {
	b.addStep(Step(id, agentType, opts...), b.lastStepIDs)
	b.lastStepIDs = []string{id}
	return b
}

// Parallel adds steps that all depend on the last step(s) and may run together
func (b *TemplateBuilder) Parallel(steps ...StepSpec) *TemplateBuilder {
	var newLastIDs []string
	for _, s := range steps {
		b.addStep(s, b.lastStepIDs)
		newLastIDs = append(newLastIDs, s.ID)
	}
	b.lastStepIDs = newLastIDs
	return b
}

// Sequence adds multiple steps and chains them together in order
func (b *TemplateBuilder) Sequence(steps ...StepSpec) *TemplateBuilder {
	for _, s := range steps {
		b.ThenStep(s.ID, s.AgentType, s.Options...)
	}
	return b
}

// DependsOn adds extra dependencies to an already declared step
func (b *TemplateBuilder) DependsOn(stepID string, deps ...string) *TemplateBuilder {
	i, ok := b.index[stepID]
	if !ok {
		b.fail(fmt.Errorf("step %s not declared", stepID))
		return b
	}
	for _, dep := range deps {
		if _, ok := b.index[dep]; !ok {
			b.fail(fmt.Errorf("dependency %s of step %s not declared", dep, stepID))
			continue
		}
		b.steps[i].DependsOn = appendUnique(b.steps[i].DependsOn, dep)
	}
	return b
}

func (b *TemplateBuilder) addStep(s StepSpec, deps []string) {
	if _, dup := b.index[s.ID]; dup {
		b.fail(fmt.Errorf("duplicate step id %s", s.ID))
		return
	}

	st := hrflow.StepTemplate{
		StepID:    s.ID,
		AgentType: s.AgentType,
		DependsOn: append([]string{}, deps...),
	}
	for _, opt := range s.Options {
		opt(&st)
	}

	b.index[s.ID] = len(b.steps)
	b.steps = append(b.steps, st)
}

func (b *TemplateBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build finalizes and validates the template
func (b *TemplateBuilder) Build() (*hrflow.Template, error) {
	if b.err != nil {
		return nil, b.err
	}
	return hrflow.NewTemplate(b.name, b.steps)
}

// MustBuild finalizes and validates the template, panics on error
func (b *TemplateBuilder) MustBuild() *hrflow.Template {
	t, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build template: %v", err))
	}
	return t
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

var (
	hrPolicyOnce     sync.Once
	hrPolicyTemplate *hrflow.Template
)

// HRPolicyTemplate returns the fixed five-step HR policy design pipeline:
// collect_context → generate_talent_profile → design_grading →
// design_evaluation → design_compensation.
func HRPolicyTemplate() *hrflow.Template {
	hrPolicyOnce.Do(func() {
		hrPolicyTemplate = NewTemplate("hr_policy_design").
			ThenStep(hrflow.StepCollectContext, hrflow.AgentContextCollector, WithOutputField("enriched_context")).
			ThenStep(hrflow.StepGenerateTalentProfile, hrflow.AgentTalentProfiler, WithOutputField("talent_profile")).
			ThenStep(hrflow.StepDesignGrading, hrflow.AgentGradingDesigner, WithOutputField("grading_system")).
			ThenStep(hrflow.StepDesignEvaluation, hrflow.AgentEvaluationDesigner, WithOutputField("evaluation_system")).
			ThenStep(hrflow.StepDesignCompensation, hrflow.AgentCompensationDesigner, WithOutputField("compensation_system")).
			MustBuild()
	})
	return hrPolicyTemplate
}
