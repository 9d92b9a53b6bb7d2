package models

import (
	"time"

	"github.com/yield-scanner/internal/types"
)

// AgentConfiguration groups scanning agents under shared settings.
// The number of instances referencing a configuration never exceeds MaxAgents.
type AgentConfiguration struct {
	ID                   int64             `json:"id"`
	ScanFrequencySeconds int               `json:"scanFrequencySecs"`
	RiskTolerance        types.RiskLevel   `json:"riskTolerance"`
	Networks             []int64           `json:"networks"`
	PostingMode          types.PostingMode `json:"postingMode"`
	ParallelScanning     bool              `json:"parallelScanning"`
	MaxAgents            int               `json:"maxAgents"`
	// RestrictNetworks, when set, makes scan discoveries respect the
	// configuration's Networks allowlist in addition to the agent's
	// assigned network.
	RestrictNetworks bool      `json:"restrictNetworks"`
	CreatedAt        time.Time `json:"createdAt"`
}

// AllowsNetwork reports whether a discovery on the given network is permitted.
func (c *AgentConfiguration) AllowsNetwork(networkID int64) bool {
	if !c.RestrictNetworks {
		return true
	}
	for _, id := range c.Networks {
		if id == networkID {
			return true
		}
	}
	return false
}

// AgentPerformance holds the cumulative scan statistics of an agent
type AgentPerformance struct {
	SuccessRate        float64    `json:"successRate"`
	OpportunitiesFound int        `json:"opportunitiesFound"`
	LastFound          *time.Time `json:"lastFound,omitempty"`
}

// AgentInstance represents one simulated scanner bound to at most one
// protocol/network pair. Status and performance are mutated only by the
// scan orchestrator.
type AgentInstance struct {
	ID                 int64             `json:"id"`
	Name               string            `json:"name"`
	Status             types.AgentStatus `json:"status"`
	AssignedProtocolID *int64            `json:"assignedProtocolId,omitempty"`
	AssignedNetworkID  *int64            `json:"assignedNetworkId,omitempty"`
	CurrentTask        string            `json:"currentTask"`
	LastScanTime       *time.Time        `json:"lastScanTime,omitempty"`
	ConfigurationID    int64             `json:"configurationId"`
	Performance        AgentPerformance  `json:"performance"`
	CreatedAt          time.Time         `json:"createdAt"`
}
