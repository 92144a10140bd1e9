package orchestrator

import (
	"fmt"
	"math"

	"github.com/sicko7947/hrflow"
)

// StepProgress is one line of the progress listing
type StepProgress struct {
	StepID    string            `json:"step_id"`
	AgentType string            `json:"agent_type"`
	Status    hrflow.StepStatus `json:"status"`
	Error     string            `json:"error,omitempty"`
}

// Progress summarises a workflow
type Progress struct {
	WorkflowID  string            `json:"workflow_id"`
	Status      hrflow.StepStatus `json:"status"`
	Progress    string            `json:"progress"`
	Percent     int               `json:"percent"`
	CurrentStep string            `json:"current_step,omitempty"`
	Steps       []StepProgress    `json:"steps"`
}

// GetProgress derives the progress summary from the current state
func (o *Orchestrator) GetProgress() Progress {
	return ProgressOf(o.state)
}

// ProgressOf derives the progress summary of a workflow state
func ProgressOf(state *hrflow.WorkflowState) Progress {
	completed := state.CountByStatus(hrflow.StatusCompleted)
	total := len(state.Steps)

	percent := 0
	if total > 0 {
		percent = int(math.Round(float64(completed) * 100 / float64(total)))
	}

	steps := make([]StepProgress, 0, total)
	for _, s := range state.Steps {
		steps = append(steps, StepProgress{
			StepID:    s.StepID,
			AgentType: s.AgentType,
			Status:    s.Status,
			Error:     s.Error,
		})
	}

	return Progress{
		WorkflowID:  state.WorkflowID,
		Status:      state.Status,
		Progress:    fmt.Sprintf("%d/%d", completed, total),
		Percent:     percent,
		CurrentStep: state.CurrentStep,
		Steps:       steps,
	}
}
