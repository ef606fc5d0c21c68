package markov

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/CTAG07/wikilm/pkg/artifact"
)

var (
	// ErrUnsupportedDepth is returned when a depth outside SupportedDepths is requested.
	ErrUnsupportedDepth = errors.New("unsupported depth")
	// ErrModelUnavailable is returned when the backing table cannot be obtained.
	ErrModelUnavailable = errors.New("markov model unavailable")
)

// supportedDepths lists the context depths tables are published for.
var supportedDepths = []int{1, 2, 3, 4, 5}

// Source supplies materialized transition tables. Implementations return an
// error wrapping artifact.ErrNotFound when they hold no table for a key.
type Source interface {
	LoadTransitions(ctx context.Context, key artifact.Key) ([]Transition, Metadata, error)
}

// Chain is a Markov text generator over an immutable Table.
type Chain struct {
	depth   int
	variant string
	table   *Table
	meta    Metadata
	mu      sync.Mutex // guards rng
	rng     *rand.Rand
	logger  *slog.Logger
}

// Option configures a Chain at construction.
type Option func(*Chain)

// WithRand sets the random source used for sampling. Seeding it makes
// generation reproducible.
func WithRand(rng *rand.Rand) Option {
	return func(c *Chain) {
		if rng != nil {
			c.rng = rng
		}
	}
}

// WithVariant records the tokenization variant the table was fitted on.
func WithVariant(variant string) Option {
	return func(c *Chain) { c.variant = variant }
}

// WithLogger sets the logger used for construction and generation.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// SupportedDepths returns the context depths a Chain can be built with.
func SupportedDepths() []int {
	return slices.Clone(supportedDepths)
}

// IsSupportedDepth reports whether depth is one of SupportedDepths.
func IsSupportedDepth(depth int) bool {
	return slices.Contains(supportedDepths, depth)
}

// NewChain builds a Chain from an already materialized table. Rows whose
// context does not have exactly depth tokens are dropped.
func NewChain(depth int, rows []Transition, meta Metadata, opts ...Option) (*Chain, error) {
	if !IsSupportedDepth(depth) {
		return nil, fmt.Errorf("%w: %d (supported depths: %v)", ErrUnsupportedDepth, depth, supportedDepths)
	}

	c := &Chain{
		depth:   depth,
		variant: artifact.VariantWord,
		meta:    meta,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	table, dropped := NewTable(depth, rows)
	c.table = table

	if dropped > 0 {
		c.logger.Warn("Dropped transitions with a malformed context",
			slog.Int("depth", depth),
			slog.Int("rows_dropped", dropped),
		)
	}
	c.logger.Debug("Markov chain built",
		slog.Int("depth", depth),
		slog.String("variant", c.variant),
		slog.Int("rows", table.Len()),
		slog.Int("contexts", table.Contexts()),
	)
	return c, nil
}

// Load validates the key's depth and fetches its table from src. If the key
// asks for a non-word variant the source does not hold, the word variant is
// loaded instead. Any failure to obtain the table wraps ErrModelUnavailable.
func Load(ctx context.Context, src Source, key artifact.Key, opts ...Option) (*Chain, error) {
	key = key.Normalize()
	key.Kind = artifact.KindMarkov
	if !IsSupportedDepth(key.Order) {
		return nil, fmt.Errorf("%w: %d (supported depths: %v)", ErrUnsupportedDepth, key.Order, supportedDepths)
	}

	rows, meta, err := src.LoadTransitions(ctx, key)
	if errors.Is(err, artifact.ErrNotFound) && key.Variant != artifact.VariantWord {
		key = key.WithVariant(artifact.VariantWord)
		rows, meta, err = src.LoadTransitions(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrModelUnavailable, key, err)
	}

	opts = append([]Option{WithVariant(key.Variant)}, opts...)
	return NewChain(key.Order, rows, meta, opts...)
}

// SetLogger sets the logger for the Chain. By default, all logs are discarded.
func (c *Chain) SetLogger(logger *slog.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Depth is the context length of the chain.
func (c *Chain) Depth() int { return c.depth }

// Variant is the tokenization variant the table was fitted on.
func (c *Chain) Variant() string { return c.variant }

// Metadata returns a copy of the table's metadata.
func (c *Chain) Metadata() Metadata { return c.meta }

// Table returns the chain's immutable transition table.
func (c *Chain) Table() *Table { return c.table }

// VocabSize is the published vocabulary size, or 0 when unknown.
func (c *Chain) VocabSize() int64 { return c.meta.VocabSize }

// Size is the number of transitions in the table.
func (c *Chain) Size() int { return c.table.Len() }

// TotalTransitions is the number of transitions in the table.
func (c *Chain) TotalTransitions() int { return c.table.Len() }
