package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/CTAG07/wikilm/pkg/artifact"
	"github.com/CTAG07/wikilm/pkg/markov"
	"github.com/CTAG07/wikilm/pkg/ngram"
)

func TestDirLayout(t *testing.T) {
	d := NewDir("/data")

	testCases := []struct {
		key  artifact.Key
		want string
	}{
		{
			key:  artifact.Key{Kind: artifact.KindNGram, Lang: "en", Order: 3},
			want: filepath.Join("/data", "en", "latest", "models", "word_ngram", "en_3gram_word.json"),
		},
		{
			key:  artifact.Key{Kind: artifact.KindMarkov, Lang: "ary", Date: "20251201", Order: 2, Variant: artifact.VariantSubword},
			want: filepath.Join("/data", "ary", "20251201", "models", "subword_markov", "ary_markov_ctx2_subword.json"),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.key.String(), func(t *testing.T) {
			if got := d.Path(tc.key); got != tc.want {
				t.Errorf("Path() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDirWriteAndLoad(t *testing.T) {
	d := NewDir(t.TempDir())
	ctx := context.Background()

	if err := d.WriteNGrams(ctx, trigramKey, trigramTable(), ngram.Metadata{TotalNGrams: 21, UniqueNGrams: 4}); err != nil {
		t.Fatalf("WriteNGrams() failed: %v", err)
	}
	if err := d.WriteTransitions(ctx, dogKey, dogTable(), markov.Metadata{VocabSize: 6}); err != nil {
		t.Fatalf("WriteTransitions() failed: %v", err)
	}

	entries, meta, err := d.LoadNGrams(ctx, trigramKey)
	if err != nil {
		t.Fatalf("LoadNGrams() failed: %v", err)
	}
	if !reflect.DeepEqual(entries, trigramTable()) || meta.TotalNGrams != 21 {
		t.Errorf("LoadNGrams() = %v %+v", entries, meta)
	}

	rows, markovMeta, err := d.LoadTransitions(ctx, dogKey)
	if err != nil {
		t.Fatalf("LoadTransitions() failed: %v", err)
	}
	if !reflect.DeepEqual(rows, dogTable()) || markovMeta.VocabSize != 6 {
		t.Errorf("LoadTransitions() = %v %+v", rows, markovMeta)
	}
}

func TestDirMissing(t *testing.T) {
	d := NewDir(t.TempDir())

	_, _, err := d.LoadNGrams(t.Context(), trigramKey)
	if !errors.Is(err, artifact.ErrNotFound) {
		t.Errorf("LoadNGrams() error = %v, want ErrNotFound", err)
	}

	// The subword variant is missing, so ngram.Load falls back to word.
	if err = d.WriteNGrams(t.Context(), trigramKey, trigramTable(), ngram.Metadata{TotalNGrams: 21}); err != nil {
		t.Fatal(err)
	}
	m, err := ngram.Load(t.Context(), d, trigramKey.WithVariant(artifact.VariantSubword))
	if err != nil {
		t.Fatalf("ngram.Load() failed: %v", err)
	}
	if m.Variant() != artifact.VariantWord {
		t.Errorf("Variant() = %q, want word", m.Variant())
	}
}

func TestDirMissingMetadata(t *testing.T) {
	root := t.TempDir()
	d := NewDir(root)

	path := d.Path(dogKey)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	doc := `[{"context":["the","dog"],"next_token":"barks","probability":1}]`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	rows, meta, err := d.LoadTransitions(t.Context(), dogKey)
	if err != nil {
		t.Fatalf("LoadTransitions() failed: %v", err)
	}
	if len(rows) != 1 || rows[0].NextToken != "barks" {
		t.Errorf("LoadTransitions() rows = %v", rows)
	}
	if meta != (markov.Metadata{}) {
		t.Errorf("expected empty metadata, got %+v", meta)
	}
}

func TestDirCorruptTable(t *testing.T) {
	d := NewDir(t.TempDir())

	path := d.Path(trigramKey)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, _, err := d.LoadNGrams(t.Context(), trigramKey)
	if err == nil || errors.Is(err, artifact.ErrNotFound) {
		t.Errorf("LoadNGrams() error = %v, want a decode error", err)
	}
}
