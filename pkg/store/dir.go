package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/natefinch/atomic"

	"github.com/CTAG07/wikilm/pkg/artifact"
	"github.com/CTAG07/wikilm/pkg/markov"
	"github.com/CTAG07/wikilm/pkg/ngram"
)

// Dir reads and writes tables published as JSON files under a root
// directory, laid out as
//
//	<root>/<lang>/<date>/models/<variant>_<kind>/<basename>.json
//	<root>/<lang>/<date>/models/<variant>_<kind>/<basename>_metadata.json
//
// A missing metadata file is treated as empty metadata.
type Dir struct {
	root   string
	logger *slog.Logger
}

// NewDir returns a Dir rooted at root.
func NewDir(root string) *Dir {
	return &Dir{
		root:   root,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for the Dir. By default, all logs are discarded.
func (d *Dir) SetLogger(logger *slog.Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// Root returns the directory the artifacts are read from.
func (d *Dir) Root() string { return d.root }

// Path returns the table file path for key.
func (d *Dir) Path(key artifact.Key) string {
	key = key.Normalize()
	return filepath.Join(d.folder(key), key.Filename())
}

func (d *Dir) folder(key artifact.Key) string {
	return filepath.Join(d.root, key.Lang, key.Date, "models", key.Folder())
}

// LoadNGrams implements ngram.Source.
func (d *Dir) LoadNGrams(ctx context.Context, key artifact.Key) ([]ngram.Entry, ngram.Metadata, error) {
	key = key.Normalize()
	key.Kind = artifact.KindNGram

	var entries []ngram.Entry
	var meta ngram.Metadata
	if err := d.read(ctx, key, &entries, &meta); err != nil {
		return nil, meta, err
	}
	return entries, meta, nil
}

// LoadTransitions implements markov.Source.
func (d *Dir) LoadTransitions(ctx context.Context, key artifact.Key) ([]markov.Transition, markov.Metadata, error) {
	key = key.Normalize()
	key.Kind = artifact.KindMarkov

	var rows []markov.Transition
	var meta markov.Metadata
	if err := d.read(ctx, key, &rows, &meta); err != nil {
		return nil, meta, err
	}
	return rows, meta, nil
}

// WriteNGrams publishes an n-gram table and its metadata under key. Each
// file is replaced atomically.
func (d *Dir) WriteNGrams(ctx context.Context, key artifact.Key, entries []ngram.Entry, meta ngram.Metadata) error {
	key = key.Normalize()
	key.Kind = artifact.KindNGram
	if entries == nil {
		entries = []ngram.Entry{}
	}
	return d.write(ctx, key, entries, meta, len(entries))
}

// WriteTransitions publishes a transition table and its metadata under key.
// Each file is replaced atomically.
func (d *Dir) WriteTransitions(ctx context.Context, key artifact.Key, rows []markov.Transition, meta markov.Metadata) error {
	key = key.Normalize()
	key.Kind = artifact.KindMarkov
	if rows == nil {
		rows = []markov.Transition{}
	}
	return d.write(ctx, key, rows, meta, len(rows))
}

func (d *Dir) read(ctx context.Context, key artifact.Key, rows, meta any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	folder := d.folder(key)

	data, err := os.ReadFile(filepath.Join(folder, key.Filename()))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", artifact.ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("could not read table for %s: %w", key, err)
	}
	if err = json.Unmarshal(data, rows); err != nil {
		return fmt.Errorf("corrupt table for %s: %w", key, err)
	}

	metaData, err := os.ReadFile(filepath.Join(folder, key.MetadataFilename()))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		d.logger.WarnContext(ctx, "Metadata file missing, using empty metadata",
			slog.String("model_key", key.String()),
		)
	case err != nil:
		return fmt.Errorf("could not read metadata for %s: %w", key, err)
	default:
		if err = json.Unmarshal(metaData, meta); err != nil {
			return fmt.Errorf("corrupt metadata for %s: %w", key, err)
		}
	}

	d.logger.DebugContext(ctx, "Table read from directory",
		slog.String("model_key", key.String()),
		slog.String("folder", folder),
	)
	return nil
}

func (d *Dir) write(ctx context.Context, key artifact.Key, rows, meta any, count int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	folder := d.folder(key)
	if err := os.MkdirAll(folder, 0755); err != nil {
		return fmt.Errorf("could not create %s: %w", folder, err)
	}

	encodedRows, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("could not encode table for %s: %w", key, err)
	}
	encodedMeta, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode metadata for %s: %w", key, err)
	}

	if err = atomic.WriteFile(filepath.Join(folder, key.Filename()), bytes.NewReader(encodedRows)); err != nil {
		return fmt.Errorf("could not write table for %s: %w", key, err)
	}
	if err = atomic.WriteFile(filepath.Join(folder, key.MetadataFilename()), bytes.NewReader(encodedMeta)); err != nil {
		return fmt.Errorf("could not write metadata for %s: %w", key, err)
	}

	d.logger.InfoContext(ctx, "Table written to directory",
		slog.String("model_key", key.String()),
		slog.Int("rows", count),
	)
	return nil
}
