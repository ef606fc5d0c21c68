// Package artifact names the pre-fit model tables a language model is
// loaded from. A Key scopes one table to a kind, language, snapshot date,
// order and tokenization variant.
package artifact

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by sources that hold no table for a key.
var ErrNotFound = errors.New("artifact not found")

// Kind is the type of table an artifact holds.
type Kind string

const (
	KindNGram  Kind = "ngram"
	KindMarkov Kind = "markov"
)

const (
	// DefaultDate is used when a key carries no snapshot date.
	DefaultDate = "latest"
	// VariantWord is the whitespace-tokenized variant every language ships.
	VariantWord = "word"
	// VariantSubword is the SentencePiece-tokenized variant.
	VariantSubword = "subword"
)

// Key identifies one artifact. Order is the gram size for n-gram tables and
// the context depth for Markov tables.
type Key struct {
	Kind    Kind   `json:"kind" yaml:"kind"`
	Lang    string `json:"lang" yaml:"lang"`
	Date    string `json:"date" yaml:"date"`
	Order   int    `json:"order" yaml:"order"`
	Variant string `json:"variant" yaml:"variant"`
}

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindNGram, KindMarkov:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown artifact kind %q", s)
}

// Normalize fills in the default date and variant.
func (k Key) Normalize() Key {
	if k.Date == "" {
		k.Date = DefaultDate
	}
	if k.Variant == "" {
		k.Variant = VariantWord
	}
	return k
}

// WithVariant returns a copy of k using the given variant.
func (k Key) WithVariant(variant string) Key {
	k.Variant = variant
	return k
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s@%s/%d/%s", k.Kind, k.Lang, k.Date, k.Order, k.Variant)
}

// Basename is the file stem used for the table, e.g. "en_3gram_word" or
// "en_markov_ctx2_subword".
func (k Key) Basename() string {
	switch k.Kind {
	case KindMarkov:
		return fmt.Sprintf("%s_markov_ctx%d_%s", k.Lang, k.Order, k.Variant)
	default:
		return fmt.Sprintf("%s_%dgram_%s", k.Lang, k.Order, k.Variant)
	}
}

// Filename is the table file name.
func (k Key) Filename() string {
	return k.Basename() + ".json"
}

// MetadataFilename is the metadata file name stored next to the table.
func (k Key) MetadataFilename() string {
	return k.Basename() + "_metadata.json"
}

// Folder is the directory, relative to a language's models root, that
// holds the artifact, e.g. "word_ngram".
func (k Key) Folder() string {
	return fmt.Sprintf("%s_%s", k.Variant, k.Kind)
}
