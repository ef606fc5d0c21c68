package ngram

import (
	"context"
	"errors"
	"testing"

	"github.com/CTAG07/wikilm/pkg/artifact"
)

func TestNewUnsupportedOrder(t *testing.T) {
	for _, size := range []int{-1, 0, 1, 6, 10} {
		_, err := New(size, trigramTable(), Metadata{TotalNGrams: 100})
		if !errors.Is(err, ErrUnsupportedOrder) {
			t.Errorf("New(%d) error = %v, want ErrUnsupportedOrder", size, err)
		}
	}
	for _, size := range SupportedSizes {
		if _, err := New(size, nil, Metadata{}); err != nil {
			t.Errorf("New(%d) with empty table error = %v", size, err)
		}
	}
}

func TestAccessors(t *testing.T) {
	m := setupTestModel(t)
	if m.GramSize() != 3 {
		t.Errorf("GramSize() = %d, want 3", m.GramSize())
	}
	if m.Size() != 6 {
		t.Errorf("Size() = %d, want 6", m.Size())
	}
	if m.TotalNGrams() != 100 {
		t.Errorf("TotalNGrams() = %d, want 100", m.TotalNGrams())
	}
	if m.VocabSize() != 6 {
		t.Errorf("VocabSize() = %d, want 6", m.VocabSize())
	}
	if m.Variant() != artifact.VariantWord {
		t.Errorf("Variant() = %q, want %q", m.Variant(), artifact.VariantWord)
	}

	// Without metadata the counts fall back to the table size.
	bare, err := New(3, trigramTable(), Metadata{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if bare.TotalNGrams() != 6 || bare.VocabSize() != 6 {
		t.Errorf("fallback counts = (%d, %d), want (6, 6)", bare.TotalNGrams(), bare.VocabSize())
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	wordKey := artifact.Key{Kind: artifact.KindNGram, Lang: "en", Order: 3, Variant: artifact.VariantWord}

	t.Run("loads requested variant", func(t *testing.T) {
		src := newMemorySource()
		src.put(wordKey, trigramTable(), Metadata{TotalNGrams: 100})
		m, err := Load(ctx, src, wordKey)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if m.Size() != 6 {
			t.Errorf("Size() = %d, want 6", m.Size())
		}
	})

	t.Run("falls back to word variant", func(t *testing.T) {
		src := newMemorySource()
		src.put(wordKey, trigramTable(), Metadata{TotalNGrams: 100})
		m, err := Load(ctx, src, wordKey.WithVariant(artifact.VariantSubword))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if m.Variant() != artifact.VariantWord {
			t.Errorf("Variant() = %q, want %q", m.Variant(), artifact.VariantWord)
		}
		if len(src.calls) != 2 {
			t.Errorf("expected 2 source calls, got %d", len(src.calls))
		}
	})

	t.Run("missing model is unavailable", func(t *testing.T) {
		src := newMemorySource()
		_, err := Load(ctx, src, wordKey)
		if !errors.Is(err, ErrModelUnavailable) {
			t.Errorf("Load() error = %v, want ErrModelUnavailable", err)
		}
		if !errors.Is(err, artifact.ErrNotFound) {
			t.Errorf("Load() error = %v, want it to wrap artifact.ErrNotFound", err)
		}
	})

	t.Run("unsupported order is rejected before loading", func(t *testing.T) {
		src := newMemorySource()
		_, err := Load(ctx, src, artifact.Key{Lang: "en", Order: 7})
		if !errors.Is(err, ErrUnsupportedOrder) {
			t.Errorf("Load() error = %v, want ErrUnsupportedOrder", err)
		}
		if len(src.calls) != 0 {
			t.Errorf("source was queried %d times for an invalid order", len(src.calls))
		}
	})
}

func TestMalformedRowsAreSkipped(t *testing.T) {
	entries := append(trigramTable(),
		Entry{NGram: []string{"too", "short"}, Frequency: 50},
		Entry{NGram: []string{"a", "b", "c"}, Frequency: 99}, // duplicate, first wins for scoring
	)
	m, err := New(3, entries, Metadata{TotalNGrams: 100})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got, want := m.Score("a b c"), setupTestModel(t).Score("a b c"); got != want {
		t.Errorf("Score() with duplicate row = %v, want first row's score %v", got, want)
	}
	if preds := m.PredictNext("too", 5); len(preds) != 0 {
		t.Errorf("PredictNext() used a short row: %+v", preds)
	}
}
