package builder

import (
	"fmt"
	"sort"

	"github.com/sicko7947/hrflow"
)

// ValidateTemplate checks that every step of t is executed by a known agent type
func ValidateTemplate(t *hrflow.Template, knownAgentTypes []string) error {
	if t == nil {
		return fmt.Errorf("template is nil")
	}

	known := make(map[string]bool, len(knownAgentTypes))
	for _, a := range knownAgentTypes {
		known[a] = true
	}

	var missing []string
	for _, s := range t.Steps() {
		if !known[s.AgentType] {
			missing = append(missing, fmt.Sprintf("%s (%s)", s.StepID, s.AgentType))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("steps with unknown agent types: %v", missing)
	}

	return nil
}
