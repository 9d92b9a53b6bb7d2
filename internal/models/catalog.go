// Package models provides data models for the yield scanner system.
package models

import (
	"time"

	"github.com/yield-scanner/internal/types"
)

// Protocol represents a DeFi protocol known to the catalog
type Protocol struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Website  string `json:"website,omitempty"`
}

// Network represents a blockchain network known to the catalog
type Network struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	ChainID int64  `json:"chainId"`
	Symbol  string `json:"symbol"`
}

// Opportunity represents a yield opportunity discovered by a scanning agent.
// Opportunities are append-only and never mutated after creation.
type Opportunity struct {
	ID         int64           `json:"id"`
	ProtocolID int64           `json:"protocolId"`
	NetworkID  int64           `json:"networkId"`
	Asset      string          `json:"asset"`
	APY        float64         `json:"apy"`
	TVL        float64         `json:"tvl"`
	RiskLevel  types.RiskLevel `json:"riskLevel"`
	Timestamp  time.Time       `json:"timestamp"`
}

// EntityRef is a lightweight id/name pair embedded in enriched API reads
type EntityRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
