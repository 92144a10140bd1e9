package builder

import "github.com/sicko7947/hrflow"

// StepOption is a functional option for configuring template steps
type StepOption func(*hrflow.StepTemplate)

// WithOutputField names the output field collected into the aggregated policy output
func WithOutputField(field string) StepOption {
	return func(s *hrflow.StepTemplate) {
		s.OutputField = field
	}
}

// WithDependencies adds dependencies beyond the ones implied by chaining
func WithDependencies(deps ...string) StepOption {
	return func(s *hrflow.StepTemplate) {
		for _, d := range deps {
			s.DependsOn = appendUnique(s.DependsOn, d)
		}
	}
}
