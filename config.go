package hrflow

import "time"

// Config holds the tunables shared by the orchestrator, HITL manager and agents
type Config struct {
	// HITL
	DefaultHITLTimeout  time.Duration
	CriticalHITLTimeout time.Duration

	// Agents
	HeartbeatInterval time.Duration
	LLMMaxTokens      int

	// Retention
	WorkflowTTL   time.Duration
	AgentStateTTL time.Duration
	CompanyTTL    time.Duration
}

// DefaultConfig provides sensible defaults
var DefaultConfig = Config{
	DefaultHITLTimeout:  72 * time.Hour,
	CriticalHITLTimeout: 48 * time.Hour,
	HeartbeatInterval:   30 * time.Second,
	LLMMaxTokens:        4096,
	WorkflowTTL:         WorkflowTTL,
	AgentStateTTL:       AgentStateTTL,
	CompanyTTL:          CompanyTTL,
}

// HeartbeatTTL is how long a liveness signal survives without a refresh
func (c Config) HeartbeatTTL() time.Duration {
	return c.HeartbeatInterval * 3
}

// WithDefaults fills zero fields from DefaultConfig
func (c Config) WithDefaults() Config {
	if c.DefaultHITLTimeout <= 0 {
		c.DefaultHITLTimeout = DefaultConfig.DefaultHITLTimeout
	}
	if c.CriticalHITLTimeout <= 0 {
		c.CriticalHITLTimeout = DefaultConfig.CriticalHITLTimeout
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultConfig.HeartbeatInterval
	}
	if c.LLMMaxTokens <= 0 {
		c.LLMMaxTokens = DefaultConfig.LLMMaxTokens
	}
	if c.WorkflowTTL <= 0 {
		c.WorkflowTTL = DefaultConfig.WorkflowTTL
	}
	if c.AgentStateTTL <= 0 {
		c.AgentStateTTL = DefaultConfig.AgentStateTTL
	}
	if c.CompanyTTL <= 0 {
		c.CompanyTTL = DefaultConfig.CompanyTTL
	}
	return c
}
