// Package storage provides the in-memory repositories for the yield scanner
// system. All state is volatile and lives for the life of the process.
package storage

import "sync"

// EntityKind identifies an id namespace in the sequence allocator
type EntityKind string

const (
	KindConfiguration EntityKind = "configuration"
	KindAgent         EntityKind = "agent"
	KindProtocol      EntityKind = "protocol"
	KindNetwork       EntityKind = "network"
	KindOpportunity   EntityKind = "opportunity"
	KindStrategy      EntityKind = "strategy"
	KindExecution     EntityKind = "execution"
	KindActivity      EntityKind = "activity"
)

// Sequence issues unique, monotonically increasing integer ids per entity
// kind. It is the single id authority; allocation is serialized so two
// concurrently completing tasks never receive the same id.
type Sequence struct {
	mu       sync.Mutex
	counters map[EntityKind]int64
}

// NewSequence creates a sequence allocator with all counters at zero.
func NewSequence() *Sequence {
	return &Sequence{counters: make(map[EntityKind]int64)}
}

// Next returns the next id for the given kind, starting at 1.
func (s *Sequence) Next(kind EntityKind) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[kind]++
	return s.counters[kind]
}

// Current returns the last id issued for the given kind, 0 if none.
func (s *Sequence) Current(kind EntityKind) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[kind]
}
