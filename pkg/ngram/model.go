package ngram

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/CTAG07/wikilm/pkg/artifact"
	"github.com/CTAG07/wikilm/pkg/tokens"
)

var (
	// ErrUnsupportedOrder is returned when a gram size outside SupportedSizes is requested.
	ErrUnsupportedOrder = errors.New("unsupported gram size")
	// ErrModelUnavailable is returned when the backing table cannot be obtained.
	ErrModelUnavailable = errors.New("n-gram model unavailable")
)

// SupportedSizes lists the gram sizes tables are published for.
var SupportedSizes = []int{2, 3, 4, 5}

// Entry is a single row of an n-gram table.
type Entry struct {
	NGram     []string `json:"ngram"`
	Frequency int64    `json:"frequency"`
}

// Metadata holds the scalar counts published alongside a table.
type Metadata struct {
	TotalNGrams  int64 `json:"total_ngrams"`
	UniqueNGrams int64 `json:"unique_ngrams,omitempty"`
}

// Source supplies materialized n-gram tables. Implementations return an
// error wrapping artifact.ErrNotFound when they hold no table for a key.
type Source interface {
	LoadNGrams(ctx context.Context, key artifact.Key) ([]Entry, Metadata, error)
}

// Prediction is a candidate next token with its probability conditioned on
// the observed continuations of the context.
type Prediction struct {
	Token       string  `json:"token"`
	Probability float64 `json:"probability"`
}

// candidate is a distinct continuation of a prefix with its summed frequency.
type candidate struct {
	token  string
	weight int64
}

// continuations are the ranked candidates for one prefix.
type continuations struct {
	items []candidate
	total int64
}

// Model is an n-gram scorer and predictor over an immutable table.
type Model struct {
	gramSize int
	variant  string
	size     int
	meta     Metadata
	index    map[string]int64
	prefixes map[string]*continuations
	logger   *slog.Logger
}

// Option configures a Model at construction.
type Option func(*Model)

// WithVariant records the tokenization variant the table was fitted on.
func WithVariant(variant string) Option {
	return func(m *Model) { m.variant = variant }
}

// WithLogger sets the logger used while building and querying the model.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// IsSupportedSize reports whether n is one of SupportedSizes.
func IsSupportedSize(n int) bool {
	return slices.Contains(SupportedSizes, n)
}

// New builds a Model from an already materialized table. The entries are
// indexed immediately; the slice is not retained.
func New(gramSize int, entries []Entry, meta Metadata, opts ...Option) (*Model, error) {
	if !IsSupportedSize(gramSize) {
		return nil, fmt.Errorf("%w: %d (supported sizes: %v)", ErrUnsupportedOrder, gramSize, SupportedSizes)
	}

	m := &Model{
		gramSize: gramSize,
		variant:  artifact.VariantWord,
		size:     len(entries),
		meta:     meta,
		index:    make(map[string]int64, len(entries)),
		prefixes: make(map[string]*continuations),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}

	// Position of each (prefix, token) pair inside its prefix's candidate list.
	positions := make(map[string]int, len(entries))
	var skipped, duplicates int

	for _, e := range entries {
		if len(e.NGram) != gramSize || e.Frequency < 0 {
			skipped++
			continue
		}
		key := tokens.Key(e.NGram)
		if _, seen := m.index[key]; seen {
			duplicates++
		} else {
			m.index[key] = e.Frequency
		}

		prefixKey := tokens.Key(e.NGram[:gramSize-1])
		conts, ok := m.prefixes[prefixKey]
		if !ok {
			conts = &continuations{}
			m.prefixes[prefixKey] = conts
		}
		if pos, ok := positions[key]; ok {
			conts.items[pos].weight += e.Frequency
		} else {
			positions[key] = len(conts.items)
			conts.items = append(conts.items, candidate{token: e.NGram[gramSize-1], weight: e.Frequency})
		}
		conts.total += e.Frequency
	}

	// Rank once; ties keep table order.
	for _, conts := range m.prefixes {
		slices.SortStableFunc(conts.items, func(a, b candidate) int {
			return cmp.Compare(b.weight, a.weight)
		})
	}

	if skipped > 0 || duplicates > 0 {
		m.logger.Warn("Malformed n-gram rows in table",
			slog.Int("gram_size", gramSize),
			slog.Int("rows_skipped", skipped),
			slog.Int("duplicate_ngrams", duplicates),
		)
	}
	m.logger.Debug("N-gram model built",
		slog.Int("gram_size", gramSize),
		slog.String("variant", m.variant),
		slog.Int("rows", m.size),
		slog.Int("prefixes", len(m.prefixes)),
	)

	return m, nil
}

// Load validates the key's order and fetches its table from src. If the key
// asks for a non-word variant the source does not hold, the word variant is
// loaded instead. Any failure to obtain the table wraps ErrModelUnavailable.
func Load(ctx context.Context, src Source, key artifact.Key, opts ...Option) (*Model, error) {
	key = key.Normalize()
	key.Kind = artifact.KindNGram
	if !IsSupportedSize(key.Order) {
		return nil, fmt.Errorf("%w: %d (supported sizes: %v)", ErrUnsupportedOrder, key.Order, SupportedSizes)
	}

	entries, meta, err := src.LoadNGrams(ctx, key)
	if errors.Is(err, artifact.ErrNotFound) && key.Variant != artifact.VariantWord {
		key = key.WithVariant(artifact.VariantWord)
		entries, meta, err = src.LoadNGrams(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrModelUnavailable, key, err)
	}

	opts = append([]Option{WithVariant(key.Variant)}, opts...)
	return New(key.Order, entries, meta, opts...)
}

// SetLogger sets the logger for the Model. By default, all logs are discarded.
func (m *Model) SetLogger(logger *slog.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// GramSize is the order of the model.
func (m *Model) GramSize() int { return m.gramSize }

// Variant is the tokenization variant the table was fitted on.
func (m *Model) Variant() string { return m.variant }

// Metadata returns a copy of the table's metadata.
func (m *Model) Metadata() Metadata { return m.meta }

// Size is the number of rows in the table.
func (m *Model) Size() int { return m.size }

// VocabSize is the published number of unique n-grams, or the table size
// when the metadata does not carry it.
func (m *Model) VocabSize() int64 {
	if m.meta.UniqueNGrams > 0 {
		return m.meta.UniqueNGrams
	}
	return int64(m.size)
}

// TotalNGrams is the published n-gram count, or the table size when the
// metadata does not carry it.
func (m *Model) TotalNGrams() int64 {
	if m.meta.TotalNGrams > 0 {
		return m.meta.TotalNGrams
	}
	return int64(m.size)
}
