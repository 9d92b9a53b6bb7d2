package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/yield-scanner/internal/models"
	"github.com/yield-scanner/internal/types"
)

// CatalogRepository owns the protocols, networks and opportunities the
// orchestrator and execution engine read from. Protocols and networks are
// reference data seeded at startup; opportunities are appended by scan tasks
// and never mutated afterwards.
type CatalogRepository struct {
	mu            sync.RWMutex
	seq           *Sequence
	protocols     map[int64]*models.Protocol
	networks      map[int64]*models.Network
	opportunities []*models.Opportunity
}

// NewCatalogRepository creates an empty catalog backed by the given sequence.
func NewCatalogRepository(seq *Sequence) *CatalogRepository {
	return &CatalogRepository{
		seq:       seq,
		protocols: make(map[int64]*models.Protocol),
		networks:  make(map[int64]*models.Network),
	}
}

// AddProtocol registers a protocol and assigns it an id.
func (r *CatalogRepository) AddProtocol(name, category, website string) *models.Protocol {
	p := &models.Protocol{
		ID:       r.seq.Next(KindProtocol),
		Name:     name,
		Category: category,
		Website:  website,
	}

	r.mu.Lock()
	r.protocols[p.ID] = p
	r.mu.Unlock()

	return p
}

// AddNetwork registers a network and assigns it an id.
func (r *CatalogRepository) AddNetwork(name string, chainID int64, symbol string) *models.Network {
	n := &models.Network{
		ID:      r.seq.Next(KindNetwork),
		Name:    name,
		ChainID: chainID,
		Symbol:  symbol,
	}

	r.mu.Lock()
	r.networks[n.ID] = n
	r.mu.Unlock()

	return n
}

// Protocol returns the protocol with the given id.
func (r *CatalogRepository) Protocol(id int64) (*models.Protocol, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.protocols[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

// Network returns the network with the given id.
func (r *CatalogRepository) Network(id int64) (*models.Network, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.networks[id]
	if !ok {
		return nil, false
	}
	cp := *n
	return &cp, true
}

// ListProtocols returns all protocols ordered by id.
func (r *CatalogRepository) ListProtocols() []*models.Protocol {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Protocol, 0, len(r.protocols))
	for _, p := range r.protocols {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListNetworks returns all networks ordered by id.
func (r *CatalogRepository) ListNetworks() []*models.Network {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Network, 0, len(r.networks))
	for _, n := range r.networks {
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AppendOpportunity synthesizes and stores a new opportunity. The id is
// allocated and the record appended under one lock so concurrently completing
// scan tasks observe a consistent, gap-free ordering. Risk classification is
// derived here so every stored opportunity honors the APY thresholds.
func (r *CatalogRepository) AppendOpportunity(protocolID, networkID int64, asset string, apy, tvl float64, now time.Time) *models.Opportunity {
	o := &models.Opportunity{
		ID:         r.seq.Next(KindOpportunity),
		ProtocolID: protocolID,
		NetworkID:  networkID,
		Asset:      asset,
		APY:        apy,
		TVL:        tvl,
		RiskLevel:  types.RiskLevelForAPY(apy),
		Timestamp:  now,
	}

	r.mu.Lock()
	r.opportunities = append(r.opportunities, o)
	r.mu.Unlock()

	return o
}

// Opportunity returns the opportunity with the given id.
func (r *CatalogRepository) Opportunity(id int64) (*models.Opportunity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.opportunities {
		if o.ID == id {
			cp := *o
			return &cp, true
		}
	}
	return nil, false
}

// ListOpportunities returns a snapshot of all opportunities in insertion order.
func (r *CatalogRepository) ListOpportunities() []*models.Opportunity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Opportunity, len(r.opportunities))
	for i, o := range r.opportunities {
		cp := *o
		out[i] = &cp
	}
	return out
}

// SeedCatalog loads the reference protocols and networks the scanner operates
// over. Ids are assigned in insertion order.
func SeedCatalog(r *CatalogRepository) {
	r.AddProtocol("Aave", "lending", "https://aave.com")
	r.AddProtocol("Compound", "lending", "https://compound.finance")
	r.AddProtocol("Uniswap V3", "dex", "https://uniswap.org")
	r.AddProtocol("Curve", "dex", "https://curve.finance")
	r.AddProtocol("Lido", "staking", "https://lido.fi")
	r.AddProtocol("Yearn", "aggregator", "https://yearn.fi")

	r.AddNetwork("Ethereum", 1, "ETH")
	r.AddNetwork("Arbitrum", 42161, "ETH")
	r.AddNetwork("Polygon", 137, "POL")
	r.AddNetwork("Optimism", 10, "ETH")
	r.AddNetwork("Base", 8453, "ETH")
}
