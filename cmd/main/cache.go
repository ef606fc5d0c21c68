package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/CTAG07/wikilm/pkg/artifact"
	"github.com/CTAG07/wikilm/pkg/markov"
	"github.com/CTAG07/wikilm/pkg/ngram"
	"github.com/CTAG07/wikilm/pkg/store"
)

// modelSource is everything the cache loads tables from.
type modelSource interface {
	ngram.Source
	markov.Source
}

// layeredSource serves tables from the database first and falls back to
// the published artifact directory, if one is configured.
type layeredSource struct {
	db  *store.Store
	dir *store.Dir
}

func (l *layeredSource) LoadNGrams(ctx context.Context, key artifact.Key) ([]ngram.Entry, ngram.Metadata, error) {
	entries, meta, err := l.db.LoadNGrams(ctx, key)
	if errors.Is(err, artifact.ErrNotFound) && l.dir != nil {
		return l.dir.LoadNGrams(ctx, key)
	}
	return entries, meta, err
}

func (l *layeredSource) LoadTransitions(ctx context.Context, key artifact.Key) ([]markov.Transition, markov.Metadata, error) {
	rows, meta, err := l.db.LoadTransitions(ctx, key)
	if errors.Is(err, artifact.ErrNotFound) && l.dir != nil {
		return l.dir.LoadTransitions(ctx, key)
	}
	return rows, meta, err
}

// ModelCache keeps loaded models in memory, keyed by the normalized key
// that was requested. Concurrent requests for the same key share one load;
// loads of different keys run in parallel.
type ModelCache struct {
	src    modelSource
	max    int
	mu     sync.RWMutex
	ngrams map[artifact.Key]*ngram.Model
	chains map[artifact.Key]*markov.Chain
	// gens counts invalidations per kind and language. A load that started
	// before an invalidation is returned to its callers but not cached.
	gens   map[langKey]uint64
	group  singleflight.Group
	logger *slog.Logger
}

type langKey struct {
	kind artifact.Kind
	lang string
}

// NewModelCache creates a cache over the given sources. dir may be nil.
// max bounds the number of cached models; zero or less means unbounded.
func NewModelCache(db *store.Store, dir *store.Dir, max int, logger *slog.Logger) *ModelCache {
	return newModelCache(&layeredSource{db: db, dir: dir}, max, logger)
}

func newModelCache(src modelSource, max int, logger *slog.Logger) *ModelCache {
	return &ModelCache{
		src:    src,
		max:    max,
		ngrams: make(map[artifact.Key]*ngram.Model),
		chains: make(map[artifact.Key]*markov.Chain),
		gens:   make(map[langKey]uint64),
		logger: logger,
	}
}

// NGram returns the n-gram model for key, loading it on first use.
func (c *ModelCache) NGram(ctx context.Context, key artifact.Key) (*ngram.Model, error) {
	key = key.Normalize()
	key.Kind = artifact.KindNGram
	return cached(ctx, c, c.ngrams, key, func(ctx context.Context) (*ngram.Model, error) {
		return ngram.Load(ctx, c.src, key, ngram.WithLogger(c.logger))
	})
}

// Chain returns the Markov chain for key, loading it on first use.
func (c *ModelCache) Chain(ctx context.Context, key artifact.Key) (*markov.Chain, error) {
	key = key.Normalize()
	key.Kind = artifact.KindMarkov
	return cached(ctx, c, c.chains, key, func(ctx context.Context) (*markov.Chain, error) {
		return markov.Load(ctx, c.src, key, markov.WithLogger(c.logger))
	})
}

// sizedModel is what the cache logs about a freshly loaded model.
type sizedModel interface {
	Variant() string
	Size() int
}

// cached looks key up in models and otherwise loads it once, sharing the
// load between concurrent callers of the same key.
func cached[T sizedModel](ctx context.Context, c *ModelCache, models map[artifact.Key]T, key artifact.Key, load func(context.Context) (T, error)) (T, error) {
	c.mu.RLock()
	m, ok := models[key]
	c.mu.RUnlock()
	if ok {
		return m, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		lk := langKey{kind: key.Kind, lang: key.Lang}
		c.mu.RLock()
		m, ok := models[key]
		gen := c.gens[lk]
		c.mu.RUnlock()
		if ok {
			return m, nil
		}

		// Waiters share this load, so one caller's cancellation must not fail it.
		m, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gens[lk] != gen {
			c.logger.Debug("Model changed while loading, not caching", "model_key", key.String())
			return m, nil
		}
		c.evictLocked()
		models[key] = m
		c.logger.Info("Model loaded", "model_key", key.String(), "variant", m.Variant(), "rows", m.Size())
		return m, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops every cached model loaded for the given kind and
// language, and keeps loads already in flight for them from being cached.
// A table stored under one key may back requests for other variants
// through the fallback, so the whole language is dropped.
func (c *ModelCache) Invalidate(kind artifact.Kind, lang string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[langKey{kind: kind, lang: lang}]++
	var dropped int
	if kind == artifact.KindNGram {
		dropped = dropLang(c.ngrams, lang)
	} else {
		dropped = dropLang(c.chains, lang)
	}
	if dropped > 0 {
		c.logger.Debug("Model cache invalidated", "kind", string(kind), "lang", lang, "dropped", dropped)
	}
}

func dropLang[T any](models map[artifact.Key]T, lang string) int {
	var dropped int
	for k := range models {
		if k.Lang == lang {
			delete(models, k)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of cached models.
func (c *ModelCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ngrams) + len(c.chains)
}

// evictLocked clears the cache once it is full. The caller holds c.mu.
func (c *ModelCache) evictLocked() {
	if c.max <= 0 || len(c.ngrams)+len(c.chains) < c.max {
		return
	}
	c.logger.Info("Model cache full, clearing", "cached", len(c.ngrams)+len(c.chains))
	clear(c.ngrams)
	clear(c.chains)
}
