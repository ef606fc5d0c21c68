package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/CTAG07/wikilm/pkg/artifact"
	"github.com/CTAG07/wikilm/pkg/markov"
	"github.com/CTAG07/wikilm/pkg/ngram"
)

// gatedSource serves bigram tables. Loads of a language listed in gates
// report on started and then wait until that gate is closed.
type gatedSource struct {
	gates   map[string]chan struct{}
	started chan string

	mu      sync.Mutex
	loads   int
	entries []ngram.Entry
}

func newGatedSource(gated ...string) *gatedSource {
	s := &gatedSource{
		gates:   make(map[string]chan struct{}),
		started: make(chan string, len(gated)),
		entries: []ngram.Entry{{NGram: []string{"old", "table"}, Frequency: 1}},
	}
	for _, lang := range gated {
		s.gates[lang] = make(chan struct{})
	}
	return s
}

func (s *gatedSource) setEntries(entries []ngram.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
}

func (s *gatedSource) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

func (s *gatedSource) LoadNGrams(_ context.Context, key artifact.Key) ([]ngram.Entry, ngram.Metadata, error) {
	s.mu.Lock()
	s.loads++
	entries := s.entries
	s.mu.Unlock()

	if gate, ok := s.gates[key.Lang]; ok {
		s.started <- key.Lang
		<-gate
	}
	return entries, ngram.Metadata{TotalNGrams: 1}, nil
}

func (s *gatedSource) LoadTransitions(_ context.Context, key artifact.Key) ([]markov.Transition, markov.Metadata, error) {
	return nil, markov.Metadata{}, fmt.Errorf("no chain for %s: %w", key, artifact.ErrNotFound)
}

func waitStarted(t *testing.T, s *gatedSource, lang string) {
	t.Helper()
	select {
	case got := <-s.started:
		if got != lang {
			t.Fatalf("load started for %q, want %q", got, lang)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("load for %q never started", lang)
	}
}

func TestModelCacheLoadsOnce(t *testing.T) {
	src := newGatedSource()
	cache := newModelCache(src, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	key := artifact.Key{Lang: "en", Order: 2}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.NGram(t.Context(), key); err != nil {
				t.Errorf("NGram() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if _, err := cache.NGram(t.Context(), key); err != nil {
		t.Fatalf("NGram() error = %v", err)
	}
	if got := src.loadCount(); got != 1 {
		t.Errorf("source loaded %d times, want 1", got)
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}
}

func TestModelCacheInvalidateDuringLoad(t *testing.T) {
	src := newGatedSource("en")
	cache := newModelCache(src, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	key := artifact.Key{Lang: "en", Order: 2}

	done := make(chan *ngram.Model, 1)
	go func() {
		m, err := cache.NGram(context.Background(), key)
		if err != nil {
			t.Errorf("NGram() error = %v", err)
		}
		done <- m
	}()
	waitStarted(t, src, "en")

	// The table changes and is invalidated while the old rows are in flight.
	src.setEntries([]ngram.Entry{{NGram: []string{"new", "table"}, Frequency: 1}})
	cache.Invalidate(artifact.KindNGram, "en")
	close(src.gates["en"])
	<-done

	if cache.Len() != 0 {
		t.Fatalf("Len() = %d after a load raced an invalidation, want 0", cache.Len())
	}

	delete(src.gates, "en")
	m, err := cache.NGram(t.Context(), key)
	if err != nil {
		t.Fatalf("NGram() error = %v", err)
	}
	preds := m.PredictNext("new", 1)
	if len(preds) != 1 || preds[0].Token != "table" {
		t.Errorf("PredictNext(\"new\") = %+v, want the replaced table", preds)
	}
	if got := src.loadCount(); got != 2 {
		t.Errorf("source loaded %d times, want 2", got)
	}
}

func TestModelCacheLoadsDifferentKeysConcurrently(t *testing.T) {
	src := newGatedSource("en")
	cache := newModelCache(src, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	go func() {
		_, _ = cache.NGram(context.Background(), artifact.Key{Lang: "en", Order: 2})
	}()
	waitStarted(t, src, "en")
	defer close(src.gates["en"])

	done := make(chan error, 1)
	go func() {
		_, err := cache.NGram(context.Background(), artifact.Key{Lang: "de", Order: 2})
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("NGram(de) error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("NGram(de) waited on the unrelated en load")
	}
}
