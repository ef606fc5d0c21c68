package markov

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/CTAG07/wikilm/pkg/artifact"
)

func TestNewChainUnsupportedDepth(t *testing.T) {
	for _, depth := range []int{-1, 0, 6, 42} {
		_, err := NewChain(depth, dogTable(), Metadata{})
		if !errors.Is(err, ErrUnsupportedDepth) {
			t.Errorf("NewChain(%d) error = %v, want ErrUnsupportedDepth", depth, err)
		}
	}
	for _, depth := range SupportedDepths() {
		if _, err := NewChain(depth, nil, Metadata{}); err != nil {
			t.Errorf("NewChain(%d) with empty table error = %v", depth, err)
		}
	}
}

func TestChainAccessors(t *testing.T) {
	c := setupTestChain(t, 1)
	if c.Depth() != 2 {
		t.Errorf("Depth() = %d, want 2", c.Depth())
	}
	if c.VocabSize() != 8 {
		t.Errorf("VocabSize() = %d, want 8", c.VocabSize())
	}
	if c.Size() != len(dogTable()) || c.TotalTransitions() != len(dogTable()) {
		t.Errorf("Size() = %d, TotalTransitions() = %d, want %d", c.Size(), c.TotalTransitions(), len(dogTable()))
	}
	if !slices.Equal(SupportedDepths(), []int{1, 2, 3, 4, 5}) {
		t.Errorf("SupportedDepths() = %v", SupportedDepths())
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	wordKey := artifact.Key{Kind: artifact.KindMarkov, Lang: "en", Order: 2, Variant: artifact.VariantWord}

	t.Run("loads requested variant", func(t *testing.T) {
		src := newMemorySource()
		src.put(wordKey, dogTable(), Metadata{VocabSize: 8})
		c, err := Load(ctx, src, wordKey, WithRand(seededRand(3)))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if c.Size() != len(dogTable()) {
			t.Errorf("Size() = %d, want %d", c.Size(), len(dogTable()))
		}
	})

	t.Run("falls back to word variant", func(t *testing.T) {
		src := newMemorySource()
		src.put(wordKey, dogTable(), Metadata{})
		c, err := Load(ctx, src, wordKey.WithVariant(artifact.VariantSubword))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if c.Variant() != artifact.VariantWord {
			t.Errorf("Variant() = %q, want %q", c.Variant(), artifact.VariantWord)
		}
	})

	t.Run("missing model is unavailable", func(t *testing.T) {
		_, err := Load(ctx, newMemorySource(), wordKey)
		if !errors.Is(err, ErrModelUnavailable) {
			t.Errorf("Load() error = %v, want ErrModelUnavailable", err)
		}
	})

	t.Run("unsupported depth is rejected before loading", func(t *testing.T) {
		src := newMemorySource()
		_, err := Load(ctx, src, artifact.Key{Lang: "en", Order: 9})
		if !errors.Is(err, ErrUnsupportedDepth) {
			t.Errorf("Load() error = %v, want ErrUnsupportedDepth", err)
		}
		if len(src.calls) != 0 {
			t.Errorf("source was queried %d times for an invalid depth", len(src.calls))
		}
	})
}
