package ngram

import "github.com/CTAG07/wikilm/pkg/tokens"

// PredictNext returns up to topK continuations of the last GramSize-1
// tokens of context, most frequent first. Probabilities are relative to
// all observed continuations of that context, so they sum to 1 unless the
// list was truncated. Duplicate table rows for the same continuation are
// merged by summing their frequencies.
//
// A context with too few tokens, an unknown context or a non-positive topK
// yields an empty result.
func (m *Model) PredictNext(context string, topK int) []Prediction {
	toks := tokens.Fields(context)
	anchorLen := m.gramSize - 1
	if len(toks) < anchorLen || topK <= 0 {
		return nil
	}

	conts, ok := m.prefixes[tokens.Key(toks[len(toks)-anchorLen:])]
	if !ok || len(conts.items) == 0 {
		return nil
	}

	items := conts.items
	if topK < len(items) {
		items = items[:topK]
	}

	predictions := make([]Prediction, len(items))
	for i, c := range items {
		var p float64
		if conts.total > 0 {
			p = float64(c.weight) / float64(conts.total)
		}
		predictions[i] = Prediction{Token: c.token, Probability: p}
	}
	return predictions
}
