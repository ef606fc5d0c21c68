package ngram

import (
	"context"
	"fmt"
	"testing"

	"github.com/CTAG07/wikilm/pkg/artifact"
)

// memorySource is an in-memory Source keyed by artifact.Key.String().
type memorySource struct {
	tables map[string][]Entry
	meta   map[string]Metadata
	calls  []artifact.Key
}

func newMemorySource() *memorySource {
	return &memorySource{
		tables: make(map[string][]Entry),
		meta:   make(map[string]Metadata),
	}
}

func (s *memorySource) put(key artifact.Key, entries []Entry, meta Metadata) {
	key = key.Normalize()
	s.tables[key.String()] = entries
	s.meta[key.String()] = meta
}

func (s *memorySource) LoadNGrams(_ context.Context, key artifact.Key) ([]Entry, Metadata, error) {
	s.calls = append(s.calls, key)
	entries, ok := s.tables[key.String()]
	if !ok {
		return nil, Metadata{}, fmt.Errorf("no table for %s: %w", key, artifact.ErrNotFound)
	}
	return entries, s.meta[key.String()], nil
}

// trigramTable is a small table shared by most tests.
func trigramTable() []Entry {
	return []Entry{
		{NGram: []string{"a", "b", "c"}, Frequency: 10},
		{NGram: []string{"b", "c", "d"}, Frequency: 5},
		{NGram: []string{"the", "dog", "barks"}, Frequency: 7},
		{NGram: []string{"the", "dog", "runs"}, Frequency: 3},
		{NGram: []string{"the", "dog", "sleeps"}, Frequency: 3},
		{NGram: []string{"the", "cat", "sleeps"}, Frequency: 4},
	}
}

// setupTestModel builds a trigram model over trigramTable.
func setupTestModel(t testing.TB) *Model {
	m, err := New(3, trigramTable(), Metadata{TotalNGrams: 100, UniqueNGrams: 6})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}
