package models

import (
	"time"

	"github.com/yield-scanner/internal/types"
)

// StrategyConditions holds the eligibility criteria of a strategy
type StrategyConditions struct {
	MinAPY     float64         `json:"minApy"`
	MaxRisk    types.RiskLevel `json:"maxRisk"`
	AssetTypes []string        `json:"assetTypes"`
}

// StrategyActions holds what a strategy does when triggered
type StrategyActions struct {
	DepositAmount       float64 `json:"depositAmount"`
	AutoCompound        bool    `json:"autoCompound"`
	RebalancePeriodDays int     `json:"rebalancePeriodDays"`
}

// YieldStrategy is a stored rule that can be executed on demand to simulate
// a yield deposit. The cumulative fields are monotonically non-decreasing and
// updated only by the execution engine.
type YieldStrategy struct {
	ID              int64                `json:"id"`
	UserID          string               `json:"userId,omitempty"`
	Name            string               `json:"name"`
	Status          types.StrategyStatus `json:"status"`
	TriggerType     types.TriggerType    `json:"triggerType"`
	TargetProtocols []int64              `json:"targetProtocols"`
	TargetNetworks  []int64              `json:"targetNetworks"`
	Conditions      StrategyConditions   `json:"conditions"`
	Actions         StrategyActions      `json:"actions"`
	MaxGasFee       float64              `json:"maxGasFee"`

	TotalExecutions  int              `json:"totalExecutions"`
	TotalInvested    float64          `json:"totalInvested"`
	TotalReturn      float64          `json:"totalReturn"`
	LastExecutedAt   *time.Time       `json:"lastExecutedAt,omitempty"`
	ExecutionResults map[int64]string `json:"executionResults"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TargetsProtocol reports whether the protocol is in the strategy's target set.
func (s *YieldStrategy) TargetsProtocol(protocolID int64) bool {
	for _, id := range s.TargetProtocols {
		if id == protocolID {
			return true
		}
	}
	return false
}

// TargetsNetwork reports whether the network is in the strategy's target set.
func (s *YieldStrategy) TargetsNetwork(networkID int64) bool {
	for _, id := range s.TargetNetworks {
		if id == networkID {
			return true
		}
	}
	return false
}

// ExecutionDetails describes the opportunity a successful execution deposited into
type ExecutionDetails struct {
	ProtocolID int64   `json:"protocolId"`
	NetworkID  int64   `json:"networkId"`
	Asset      string  `json:"asset"`
	APY        float64 `json:"apy"`
	Amount     float64 `json:"amount"`
}

// StrategyExecution records one simulated execution of a strategy.
// Executions are immutable once created.
type StrategyExecution struct {
	ID              int64                 `json:"id"`
	StrategyID      int64                 `json:"strategyId"`
	Status          types.ExecutionStatus `json:"status"`
	TransactionHash string                `json:"transactionHash,omitempty"`
	GasUsed         int64                 `json:"gasUsed,omitempty"`
	GasFee          float64               `json:"gasFee,omitempty"`
	OpportunityID   *int64                `json:"opportunityId"`
	Details         *ExecutionDetails     `json:"details,omitempty"`
	ErrorMessage    string                `json:"errorMessage,omitempty"`
	ExecutedAt      time.Time             `json:"executedAt"`
}
