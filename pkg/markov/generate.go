package markov

import (
	"context"
	"log/slog"
	"math"
	"slices"

	"github.com/CTAG07/wikilm/pkg/tokens"
)

// maxRetries bounds how many random contexts a dead end may jump to
// before generation stops.
const maxRetries = 10

// Generate walks the chain for up to length steps and returns the initial
// context followed by the generated tokens, each stripped of its boundary
// marker and joined by single spaces.
//
// With an empty seed the walk starts from the context of a random table
// row. A seed shorter than Depth is right-padded with tokens.PadToken; a
// longer one contributes its last Depth tokens. When the current context
// has no transitions, up to 10 random contexts are tried; if none has any,
// or the table is empty, the text generated so far is returned.
func (c *Chain) Generate(length int, seed []string) string {
	return tokens.Join(c.GenerateTokens(length, seed))
}

// GenerateTokens is Generate without cleanup: it returns the raw tokens of
// the initial context and the walk.
func (c *Chain) GenerateTokens(length int, seed []string) []string {
	var out []string
	c.walk(context.Background(), length, seed, func(token string) bool {
		out = append(out, token)
		return true
	})
	return out
}

// GetTransitions returns the raw weights of every token recorded after
// context. The map is freshly allocated and empty when the context is
// unknown.
func (c *Chain) GetTransitions(context []string) map[string]float64 {
	choices := c.table.candidates(context)
	transitions := make(map[string]float64, len(choices))
	for _, choice := range choices {
		transitions[choice.Token] = choice.Weight
	}
	return transitions
}

// walk contains the main generation loop. emit receives the initial context
// tokens and then every generated token; returning false stops the walk.
func (c *Chain) walk(ctx context.Context, length int, seed []string, emit func(string) bool) {
	window := c.initialContext(seed)
	for _, token := range window {
		if !emit(token) {
			return
		}
	}

	generatedCount := 0
	for ; generatedCount < length; generatedCount++ {
		if ctx.Err() != nil {
			return
		}

		choices := c.table.candidates(window)
		retries := 0
		for len(choices) == 0 && retries < maxRetries && c.table.Len() > 0 {
			window = c.randomContext()
			choices = c.table.candidates(window)
			retries++
		}

		if len(choices) == 0 { // Dead end that recovery could not escape
			c.logger.DebugContext(ctx, "Generation terminated due to dead-end",
				slog.Int("depth", c.depth),
				slog.Int("retries", retries),
				slog.Int("generated_length", generatedCount),
				slog.Int("requested_length", length),
			)
			return
		}

		next := c.chooseNextToken(choices)
		if !emit(next) {
			return
		}
		window = append(window[1:], next)
	}

	c.logger.DebugContext(ctx, "Generation terminated by reaching length",
		slog.Int("depth", c.depth),
		slog.Int("generated_length", generatedCount),
	)
}

// initialContext builds the starting window from the seed, or from a
// random row when there is no seed. The result is owned by the caller.
func (c *Chain) initialContext(seed []string) []string {
	if len(seed) == 0 {
		return c.randomContext()
	}
	window := make([]string, 0, c.depth)
	if len(seed) < c.depth {
		window = append(window, seed...)
		for len(window) < c.depth {
			window = append(window, tokens.PadToken)
		}
		return window
	}
	return append(window, seed[len(seed)-c.depth:]...)
}

// randomContext returns a copy of the context of a uniformly chosen row,
// or nil when the table is empty.
func (c *Chain) randomContext() []string {
	n := c.table.Len()
	if n == 0 {
		return nil
	}
	c.mu.Lock()
	i := c.rng.IntN(n)
	c.mu.Unlock()
	return slices.Clone(c.table.rows[i].Context)
}

// chooseNextToken samples a candidate in proportion to its weight. Weights
// that are not positive never get picked unless every weight is, in which
// case the choice is uniform.
func (c *Chain) chooseNextToken(choices []Candidate) string {
	var total float64
	for _, choice := range choices {
		if choice.Weight > 0 {
			total += choice.Weight
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if total <= 0 || math.IsInf(total, 1) {
		return choices[c.rng.IntN(len(choices))].Token
	}

	randChoice := c.rng.Float64() * total
	last := -1
	for i, choice := range choices {
		if choice.Weight <= 0 {
			continue
		}
		randChoice -= choice.Weight
		if randChoice < 0 {
			return choice.Token
		}
		last = i
	}
	// Rounding left a sliver of mass unassigned.
	return choices[last].Token
}
