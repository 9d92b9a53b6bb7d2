package models

import (
	"time"

	"github.com/yield-scanner/internal/types"
)

// Activity is an append-only record of something the orchestrator or the
// execution engine did. Ordering is insertion order.
type Activity struct {
	ID          int64              `json:"id"`
	Type        types.ActivityType `json:"type"`
	Description string             `json:"description"`
	Details     interface{}        `json:"details,omitempty"`
	UserID      string             `json:"userId,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

// OpportunityActivityDetails describes a discovered opportunity
type OpportunityActivityDetails struct {
	OpportunityID int64   `json:"opportunityId"`
	AgentID       int64   `json:"agentId"`
	ProtocolID    int64   `json:"protocolId"`
	NetworkID     int64   `json:"networkId"`
	Asset         string  `json:"asset"`
	APY           float64 `json:"apy"`
}

// ScanActivityDetails describes a parallel scan dispatch
type ScanActivityDetails struct {
	ConfigurationID  int64   `json:"configurationId"`
	AgentsDispatched int     `json:"agentsDispatched"`
	AgentIDs         []int64 `json:"agentIds"`
}

// AgentActivityDetails describes an agent lifecycle change
type AgentActivityDetails struct {
	AgentID int64  `json:"agentId"`
	Action  string `json:"action"`
}

// StrategyActivityDetails describes a strategy configuration change
type StrategyActivityDetails struct {
	StrategyID int64  `json:"strategyId"`
	Action     string `json:"action"`
}

// TransactionActivityDetails describes a simulated strategy execution
type TransactionActivityDetails struct {
	StrategyID   int64   `json:"strategyId"`
	ExecutionID  int64   `json:"executionId"`
	ProtocolName string  `json:"protocolName"`
	NetworkName  string  `json:"networkName"`
	Asset        string  `json:"asset"`
	APY          float64 `json:"apy"`
	Amount       float64 `json:"amount"`
}
