package hrflow

import (
	"fmt"
	"time"
)

// Store key builders

func CompanyKey(companyID string) string {
	return fmt.Sprintf("company:%s", companyID)
}

func WorkflowKey(workflowID string) string {
	return fmt.Sprintf("workflow:%s", workflowID)
}

func AgentStateKey(agentID string) string {
	return fmt.Sprintf("agent:state:%s", agentID)
}

func AgentHeartbeatKey(agentID string) string {
	return fmt.Sprintf("agent:heartbeat:%s", agentID)
}

func HITLRequestKey(requestID string) string {
	return fmt.Sprintf("hitl:request:%s", requestID)
}

func HITLPendingKey(companyID string) string {
	return fmt.Sprintf("hitl:pending:%s", companyID)
}

// HITLCompaniesKey indexes every company that has had a pending request
const HITLCompaniesKey = "hitl:companies"

// Retention for persisted records
const (
	CompanyTTL    = 30 * 24 * time.Hour
	WorkflowTTL   = 7 * 24 * time.Hour
	AgentStateTTL = time.Hour
	// HITL requests live for their timeout plus this grace period
	HITLRequestGrace = 24 * time.Hour
)

// Channel destinations
const (
	DestinationHITLRequests  = "hitl.requests"
	DestinationHITLResponses = "hitl.responses"
	DestinationEvents        = "orchestrator.events"
)

// Message priorities
const (
	PriorityNormal uint8 = 0
	PriorityHITL   uint8 = 5
)

// AgentTaskDestination returns the destination that carries tasks for an agent type
func AgentTaskDestination(agentType string) string {
	return fmt.Sprintf("agent.%s.tasks", agentType)
}
