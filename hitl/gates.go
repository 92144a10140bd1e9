package hitl

import (
	"time"

	"github.com/sicko7947/hrflow"
)

// GateInfo describes a predefined approval checkpoint
type GateInfo struct {
	GateID      hrflow.GateID `json:"gate_id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Required    bool          `json:"required"`
	// Critical gates default to the shorter critical timeout
	Critical bool `json:"critical"`
}

var gates = map[hrflow.GateID]GateInfo{
	hrflow.GateContextReview: {
		Name:        "Company Context Approval",
		Description: "Confirm the collected company context and the inferred organizational challenges",
		Required:    true,
	},
	hrflow.GateTalentProfile: {
		Name:        "Ideal Talent Profile Approval",
		Description: "Confirm the competency model, core values and growth stages",
		Required:    true,
	},
	hrflow.GateGradingSystem: {
		Name:        "Grading System Approval",
		Description: "Confirm grade definitions, career tracks and promotion requirements",
		Required:    true,
		Critical:    true,
	},
	hrflow.GateEvaluationSystem: {
		Name:        "Evaluation System Approval",
		Description: "Confirm evaluation criteria, weights and the rating scale",
		Required:    true,
	},
	hrflow.GateCompensation: {
		Name:        "Compensation System Approval",
		Description: "Confirm salary bands, bonus structure and allowances",
		Required:    true,
	},
	hrflow.GateFinalPolicy: {
		Name:        "Final Review",
		Description: "Review the complete HR policy before it is published",
		Required:    true,
		Critical:    true,
	},
	hrflow.GateDocumentGeneration: {
		Name:        "Output Confirmation",
		Description: "Confirm the generated policy documents",
		Required:    false,
	},
}

// LookupGate returns the table entry for gateID. Unknown gates get a
// generic entry named after the id.
func LookupGate(gateID hrflow.GateID) GateInfo {
	info, ok := gates[gateID]
	if !ok {
		return GateInfo{GateID: gateID, Name: gateID.String()}
	}
	info.GateID = gateID
	return info
}

// KnownGates returns the seven predefined gate ids in order
func KnownGates() []hrflow.GateID {
	return []hrflow.GateID{
		hrflow.GateContextReview,
		hrflow.GateTalentProfile,
		hrflow.GateGradingSystem,
		hrflow.GateEvaluationSystem,
		hrflow.GateCompensation,
		hrflow.GateFinalPolicy,
		hrflow.GateDocumentGeneration,
	}
}

// timeoutFor picks the default timeout of a gate
func timeoutFor(gateID hrflow.GateID, cfg hrflow.Config) time.Duration {
	if LookupGate(gateID).Critical {
		return cfg.CriticalHITLTimeout
	}
	return cfg.DefaultHITLTimeout
}
