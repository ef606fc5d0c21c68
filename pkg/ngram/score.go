package ngram

import (
	"log/slog"
	"math"

	"github.com/CTAG07/wikilm/pkg/tokens"
)

// unseenProbability is the smoothing mass given to n-grams absent from the table.
const unseenProbability = 1e-10

// Score returns the natural-log likelihood of text under the model: the sum
// over every window of GramSize consecutive whitespace tokens of
// ln(frequency / total_ngrams), with unseen windows contributing
// ln(1e-10). Texts shorter than GramSize score negative infinity.
func (m *Model) Score(text string) float64 {
	toks := tokens.Fields(text)
	if len(toks) < m.gramSize {
		return math.Inf(-1)
	}

	total := m.meta.TotalNGrams
	if total <= 0 {
		total = 1
	}

	var logProb float64
	var unseen int
	for i := 0; i+m.gramSize <= len(toks); i++ {
		freq, ok := m.index[tokens.Key(toks[i:i+m.gramSize])]
		if ok && freq > 0 {
			logProb += math.Log(float64(freq) / float64(total))
		} else {
			logProb += math.Log(unseenProbability)
			unseen++
		}
	}

	m.logger.Debug("Scored text",
		slog.Int("tokens", len(toks)),
		slog.Int("windows", len(toks)-m.gramSize+1),
		slog.Int("unseen_windows", unseen),
	)
	return logProb
}
