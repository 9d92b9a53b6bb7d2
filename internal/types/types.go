// Package types provides common type definitions for the yield scanner system.
package types

// AgentStatus represents the lifecycle state of a scanning agent
type AgentStatus string

const (
	// AgentIdle represents an agent waiting for work
	AgentIdle AgentStatus = "idle"
	// AgentScanning represents an agent with a scan task in flight
	AgentScanning AgentStatus = "scanning"
	// AgentError represents an agent whose last scan task failed
	AgentError AgentStatus = "error"
)

// Valid reports whether the status is one of the known agent states.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentIdle, AgentScanning, AgentError:
		return true
	}
	return false
}

// StrategyStatus represents whether a strategy is eligible for execution
type StrategyStatus string

const (
	// StrategyActive represents a strategy that can be executed
	StrategyActive StrategyStatus = "active"
	// StrategyPaused represents a strategy excluded from execution
	StrategyPaused StrategyStatus = "paused"
)

// Valid reports whether the status is a known strategy state.
func (s StrategyStatus) Valid() bool {
	switch s {
	case StrategyActive, StrategyPaused:
		return true
	}
	return false
}

// TriggerType represents what condition a strategy reacts to
type TriggerType string

const (
	// TriggerAPY represents an APY-threshold trigger
	TriggerAPY TriggerType = "apy-based"
	// TriggerTime represents a schedule trigger
	TriggerTime TriggerType = "time-based"
	// TriggerGas represents a gas-price trigger
	TriggerGas TriggerType = "gas-based"
)

// ExecutionStatus represents the outcome of a strategy execution
type ExecutionStatus string

const (
	// ExecutionSuccess represents a completed simulated deposit
	ExecutionSuccess ExecutionStatus = "success"
	// ExecutionFailed represents an execution that found no eligible opportunity
	ExecutionFailed ExecutionStatus = "failed"
)

// RiskLevel represents the risk classification of an opportunity
type RiskLevel string

const (
	// RiskLow represents opportunities with APY at or below 10%
	RiskLow RiskLevel = "low"
	// RiskMedium represents opportunities with APY above 10%
	RiskMedium RiskLevel = "medium"
	// RiskHigh represents opportunities with APY above 15%
	RiskHigh RiskLevel = "high"
)

// Valid reports whether the level is one of the known risk classifications.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// RiskLevelForAPY derives the risk classification from an APY percentage.
// Thresholds: above 15 is high, above 10 is medium, everything else low.
func RiskLevelForAPY(apy float64) RiskLevel {
	switch {
	case apy > 15:
		return RiskHigh
	case apy > 10:
		return RiskMedium
	default:
		return RiskLow
	}
}

// PostingMode represents how discoveries are published by a configuration
type PostingMode string

const (
	// PostingAutomatic publishes discoveries without review
	PostingAutomatic PostingMode = "automatic"
	// PostingManual holds discoveries for operator review
	PostingManual PostingMode = "manual"
)

// Valid reports whether the mode is a known posting mode.
func (m PostingMode) Valid() bool {
	switch m {
	case PostingAutomatic, PostingManual:
		return true
	}
	return false
}

// ActivityType represents the kind of event recorded in the activity log
type ActivityType string

const (
	// ActivityOpportunity records a discovered yield opportunity
	ActivityOpportunity ActivityType = "opportunity"
	// ActivityScan records a scan dispatch
	ActivityScan ActivityType = "scan"
	// ActivityStrategy records a strategy configuration change
	ActivityStrategy ActivityType = "strategy"
	// ActivityTransaction records a simulated strategy execution
	ActivityTransaction ActivityType = "transaction"
	// ActivityAgent records an agent lifecycle change
	ActivityAgent ActivityType = "agent"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
