package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/CTAG07/wikilm/pkg/artifact"
	"github.com/CTAG07/wikilm/pkg/markov"
	"github.com/CTAG07/wikilm/pkg/ngram"
	"github.com/CTAG07/wikilm/pkg/store"
)

// session holds what a single command run needs: the logger and either the
// artifact directory or the database store.
type session struct {
	logger *slog.Logger
	db     *sql.DB
	store  *store.Store
	dir    *store.Dir
}

// openSession applies the config file, builds the logger and opens the
// table source. With needStore the database is opened even when
// --models-dir is set.
func openSession(cmd *cli.Command, needStore bool) (*session, error) {
	applyConfig(cmd, LoadConfig(configPath()))
	s := &session{logger: newLogger()}

	if modelsDir != "" {
		s.dir = store.NewDir(modelsDir)
		s.dir.SetLogger(s.logger)
		if !needStore {
			return s, nil
		}
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("could not create %s: %w", dir, err)
		}
	}
	db, err := initDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = store.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup model schema: %w", err)
	}
	st, err := store.New(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create model store: %w", err)
	}
	st.SetLogger(s.logger)
	s.db = db
	s.store = st
	return s, nil
}

func (s *session) Close() {
	if s.store != nil {
		s.store.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

// key builds the artifact key for the selected language, date and variant.
func (s *session) key(kind artifact.Kind, order int) (artifact.Key, error) {
	if lang == "" {
		return artifact.Key{}, errors.New("--lang is required")
	}
	return artifact.Key{Kind: kind, Lang: lang, Date: date, Order: order, Variant: variant}.Normalize(), nil
}

func (s *session) ngramSource() ngram.Source {
	if s.dir != nil {
		return s.dir
	}
	return s.store
}

func (s *session) markovSource() markov.Source {
	if s.dir != nil {
		return s.dir
	}
	return s.store
}

func (s *session) loadNGram(ctx context.Context, order int) (*ngram.Model, error) {
	key, err := s.key(artifact.KindNGram, order)
	if err != nil {
		return nil, err
	}
	return ngram.Load(ctx, s.ngramSource(), key, ngram.WithLogger(s.logger))
}

func (s *session) loadChain(ctx context.Context, depth int) (*markov.Chain, error) {
	key, err := s.key(artifact.KindMarkov, depth)
	if err != nil {
		return nil, err
	}
	opts := []markov.Option{markov.WithLogger(s.logger)}
	if seed != 0 {
		opts = append(opts, markov.WithRand(rand.New(rand.NewPCG(uint64(seed), uint64(seed)))))
	}
	return markov.Load(ctx, s.markovSource(), key, opts...)
}
