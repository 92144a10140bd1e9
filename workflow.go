package hrflow

import "fmt"

// Step identifiers of the HR policy design pipeline
const (
	StepCollectContext        = "collect_context"
	StepGenerateTalentProfile = "generate_talent_profile"
	StepDesignGrading         = "design_grading"
	StepDesignEvaluation      = "design_evaluation"
	StepDesignCompensation    = "design_compensation"
)

// Agent types, one per step
const (
	AgentContextCollector     = "context_collector"
	AgentTalentProfiler       = "talent_profile_generator"
	AgentGradingDesigner      = "grading_designer"
	AgentEvaluationDesigner   = "evaluation_designer"
	AgentCompensationDesigner = "compensation_designer"
)

// StepTemplate describes one step of a workflow template
type StepTemplate struct {
	StepID    string
	AgentType string
	DependsOn []string
	// OutputField names the field of the step output collected into the policy output
	OutputField string
}

// Template is a validated, ordered set of step definitions
type Template struct {
	name  string
	steps []StepTemplate
	graph *DependencyGraph
}

// NewTemplate validates the steps and returns a template.
// Steps must be declared after their dependencies.
func NewTemplate(name string, steps []StepTemplate) (*Template, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("template %s has no steps", name)
	}

	graph := NewDependencyGraph()
	for _, s := range steps {
		if s.StepID == "" {
			return nil, fmt.Errorf("template %s has a step without id", name)
		}
		if s.AgentType == "" {
			return nil, fmt.Errorf("step %s has no agent type", s.StepID)
		}
		if _, dup := graph.Nodes[s.StepID]; dup {
			return nil, fmt.Errorf("duplicate step id %s", s.StepID)
		}
		graph.AddNode(s.StepID)
		for _, dep := range s.DependsOn {
			if err := graph.AddEdge(dep, s.StepID); err != nil {
				return nil, fmt.Errorf("step %s: %w", s.StepID, err)
			}
		}
	}

	if err := graph.Validate(); err != nil {
		return nil, fmt.Errorf("invalid template %s: %w", name, err)
	}

	return &Template{
		name:  name,
		steps: append([]StepTemplate{}, steps...),
		graph: graph,
	}, nil
}

// Name returns the template name
func (t *Template) Name() string { return t.name }

// Steps returns the step definitions in declaration order
func (t *Template) Steps() []StepTemplate {
	return append([]StepTemplate{}, t.steps...)
}

// Graph returns the dependency graph
func (t *Template) Graph() *DependencyGraph { return t.graph }

// Step returns the definition for stepID
func (t *Template) Step(stepID string) (StepTemplate, bool) {
	for _, s := range t.steps {
		if s.StepID == stepID {
			return s, true
		}
	}
	return StepTemplate{}, false
}

// NewSteps instantiates pending workflow steps from the template
func (t *Template) NewSteps() []*WorkflowStep {
	steps := make([]*WorkflowStep, 0, len(t.steps))
	for _, s := range t.steps {
		steps = append(steps, &WorkflowStep{
			StepID:     s.StepID,
			AgentType:  s.AgentType,
			Status:     StatusPending,
			DependsOn:  append([]string{}, s.DependsOn...),
			InputData:  map[string]any{},
			OutputData: map[string]any{},
		})
	}
	return steps
}
