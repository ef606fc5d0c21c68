package ngram

import (
	"math"
	"testing"
)

func TestScore(t *testing.T) {
	m := setupTestModel(t)
	unseen := math.Log(1e-10)

	testCases := []struct {
		name string
		text string
		want float64
	}{
		{name: "single known trigram", text: "a b c", want: math.Log(10.0 / 100.0)},
		{name: "two known windows", text: "a b c d", want: math.Log(10.0/100.0) + math.Log(5.0/100.0)},
		{name: "unseen trigram is smoothed", text: "x y z", want: unseen},
		{name: "mixed windows", text: "a b c x", want: math.Log(10.0/100.0) + unseen},
		{name: "extra whitespace", text: "  a\tb \n c ", want: math.Log(10.0 / 100.0)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := m.Score(tc.text)
			if math.Abs(got-tc.want) > 1e-12 {
				t.Errorf("Score(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestScoreExact(t *testing.T) {
	m, err := New(3, []Entry{{NGram: []string{"a", "b", "c"}, Frequency: 10}}, Metadata{TotalNGrams: 100})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got, want := m.Score("a b c"), math.Log(10.0/100.0); got != want {
		t.Errorf("Score(\"a b c\") = %v, want exactly %v", got, want)
	}
}

func TestScoreShortText(t *testing.T) {
	for _, size := range SupportedSizes {
		m, err := New(size, nil, Metadata{TotalNGrams: 1})
		if err != nil {
			t.Fatalf("New(%d) error = %v", size, err)
		}
		texts := []string{"", "   "}
		for n := 1; n < size; n++ {
			text := ""
			for i := 0; i < n; i++ {
				text += "w "
			}
			texts = append(texts, text)
		}
		for _, text := range texts {
			if got := m.Score(text); !math.IsInf(got, -1) {
				t.Errorf("gram size %d: Score(%q) = %v, want -Inf", size, text, got)
			}
		}
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	m := setupTestModel(t)
	text := "the dog barks at the cat sleeps"
	first := m.Score(text)
	for i := 0; i < 5; i++ {
		if got := m.Score(text); got != first {
			t.Fatalf("Score() changed between calls: %v then %v", first, got)
		}
	}
}

func TestScoreZeroFrequencyIsSmoothed(t *testing.T) {
	m, err := New(2, []Entry{{NGram: []string{"a", "b"}, Frequency: 0}}, Metadata{TotalNGrams: 10})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := m.Score("a b"); got != math.Log(1e-10) {
		t.Errorf("Score() for zero-frequency row = %v, want %v", got, math.Log(1e-10))
	}
}

func TestScoreControlBytesInTokens(t *testing.T) {
	m, err := New(2, []Entry{{NGram: []string{"a\x1fb", "c"}, Frequency: 5}}, Metadata{TotalNGrams: 100})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	testCases := []struct {
		text string
		want float64
	}{
		{text: "a\x1fb c", want: math.Log(5.0 / 100.0)},
		{text: "a b\x1fc", want: math.Log(1e-10)},
		{text: "a\x1eb c", want: math.Log(1e-10)},
	}
	for _, tc := range testCases {
		if got := m.Score(tc.text); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("Score(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func BenchmarkScore(b *testing.B) {
	m := setupTestModel(b)
	text := "the dog barks a b c d the cat sleeps the dog runs"
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.Score(text)
	}
}
