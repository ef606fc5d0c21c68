package markov

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/CTAG07/wikilm/pkg/artifact"
)

// memorySource is an in-memory Source keyed by artifact.Key.String().
type memorySource struct {
	tables map[string][]Transition
	meta   map[string]Metadata
	calls  []artifact.Key
}

func newMemorySource() *memorySource {
	return &memorySource{
		tables: make(map[string][]Transition),
		meta:   make(map[string]Metadata),
	}
}

func (s *memorySource) put(key artifact.Key, rows []Transition, meta Metadata) {
	key = key.Normalize()
	s.tables[key.String()] = rows
	s.meta[key.String()] = meta
}

func (s *memorySource) LoadTransitions(_ context.Context, key artifact.Key) ([]Transition, Metadata, error) {
	s.calls = append(s.calls, key)
	rows, ok := s.tables[key.String()]
	if !ok {
		return nil, Metadata{}, fmt.Errorf("no table for %s: %w", key, artifact.ErrNotFound)
	}
	return rows, s.meta[key.String()], nil
}

// dogTable is the depth-2 table from the barks/runs scenario.
func dogTable() []Transition {
	return []Transition{
		{Context: []string{"the", "dog"}, NextToken: "barks", Probability: 0.7},
		{Context: []string{"the", "dog"}, NextToken: "runs", Probability: 0.3},
		{Context: []string{"dog", "barks"}, NextToken: "loudly", Probability: 1},
		{Context: []string{"dog", "runs"}, NextToken: "away", Probability: 1},
		{Context: []string{"barks", "loudly"}, NextToken: "▁at", Probability: 1},
		{Context: []string{"runs", "away"}, NextToken: "▁from", Probability: 1},
	}
}

// seededRand returns a deterministic random source for tests.
func seededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// setupTestChain builds a depth-2 chain over dogTable with a seeded source.
func setupTestChain(t testing.TB, seed uint64) *Chain {
	c, err := NewChain(2, dogTable(), Metadata{VocabSize: 8}, WithRand(seededRand(seed)))
	if err != nil {
		t.Fatalf("NewChain() error = %v", err)
	}
	return c
}
