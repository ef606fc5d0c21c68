package markov

import (
	"slices"

	"github.com/CTAG07/wikilm/pkg/tokens"
)

// Transition is a single row of a Markov table: the weight with which
// NextToken follows Context. Weights for one context need not sum to 1.
type Transition struct {
	Context     []string `json:"context"`
	NextToken   string   `json:"next_token"`
	Probability float64  `json:"probability"`
}

// Metadata holds the scalar counts published alongside a table.
type Metadata struct {
	VocabSize        int64 `json:"vocab_size,omitempty"`
	UniqueContexts   int64 `json:"unique_contexts,omitempty"`
	TotalTransitions int64 `json:"total_transitions,omitempty"`
}

// Candidate is a possible next token for a context and its raw weight.
type Candidate struct {
	Token  string
	Weight float64
}

// Table is an immutable transition table indexed by context.
type Table struct {
	depth int
	rows  []Transition
	index map[string][]Candidate
}

// NewTable copies the rows whose context has exactly depth tokens and
// indexes them by context. When a context lists the same next token more
// than once, the candidate keeps the position of its first row and the
// weight of its last one. It returns the table and the number of rows
// dropped for having the wrong context length.
func NewTable(depth int, rows []Transition) (*Table, int) {
	t := &Table{
		depth: depth,
		rows:  make([]Transition, 0, len(rows)),
		index: make(map[string][]Candidate),
	}

	type pair struct{ ctx, token string }
	positions := make(map[pair]int)
	var dropped int
	for _, r := range rows {
		if len(r.Context) != depth {
			dropped++
			continue
		}
		row := Transition{
			Context:     slices.Clone(r.Context),
			NextToken:   r.NextToken,
			Probability: r.Probability,
		}
		t.rows = append(t.rows, row)

		ctxKey := tokens.Key(row.Context)
		pairKey := pair{ctx: ctxKey, token: row.NextToken}
		if pos, ok := positions[pairKey]; ok {
			t.index[ctxKey][pos].Weight = row.Probability
			continue
		}
		positions[pairKey] = len(t.index[ctxKey])
		t.index[ctxKey] = append(t.index[ctxKey], Candidate{Token: row.NextToken, Weight: row.Probability})
	}
	return t, dropped
}

// Depth is the context length of every row.
func (t *Table) Depth() int { return t.depth }

// Len is the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Contexts is the number of distinct contexts.
func (t *Table) Contexts() int { return len(t.index) }

// Row returns a copy of the i-th row.
func (t *Table) Row(i int) Transition {
	r := t.rows[i]
	r.Context = slices.Clone(r.Context)
	return r
}

// Lookup returns a copy of the candidates recorded for context, in table
// order. It returns nil when the context is unknown.
func (t *Table) Lookup(context []string) []Candidate {
	return slices.Clone(t.candidates(context))
}

func (t *Table) candidates(context []string) []Candidate {
	if len(context) != t.depth {
		return nil
	}
	return t.index[tokens.Key(context)]
}
