// Package tokens holds the token-level helpers shared by the n-gram and
// Markov models: whitespace tokenization, context keys for hash lookups,
// and cleanup of sub-word boundary markers.
package tokens

import (
	"strconv"
	"strings"
)

const (
	// BoundaryMarker is the SentencePiece prefix that marks a sub-word token
	// starting a new whitespace-delimited word.
	BoundaryMarker = "▁"
	// PadToken right-pads seeds that are shorter than a chain's depth.
	PadToken = "<pad>"
)

// Fields splits text on whitespace.
func Fields(text string) []string {
	return strings.Fields(text)
}

// Key serializes an ordered token tuple into a string usable as a map key.
// Each token is written as its byte length, a colon and the token itself,
// so distinct tuples never share a key whatever bytes the tokens contain.
func Key(toks []string) string {
	n := 0
	for _, t := range toks {
		n += len(t) + 4
	}
	b := make([]byte, 0, n)
	for _, t := range toks {
		b = strconv.AppendInt(b, int64(len(t)), 10)
		b = append(b, ':')
		b = append(b, t...)
	}
	return string(b)
}

// Clean strips exactly one leading boundary marker from a token.
func Clean(token string) string {
	return strings.TrimPrefix(token, BoundaryMarker)
}

// Join cleans every token and joins the result with single spaces.
func Join(toks []string) string {
	var sb strings.Builder
	for i, t := range toks {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(Clean(t))
	}
	return sb.String()
}
