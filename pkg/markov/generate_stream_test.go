package markov

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestGenerateStream(t *testing.T) {
	ctx := context.Background()
	streamed := setupTestChain(t, 31)
	direct := setupTestChain(t, 31)

	for i := 0; i < 10; i++ {
		var toks []string
		for token := range streamed.GenerateStream(ctx, 4, []string{"the", "dog"}) {
			toks = append(toks, token)
		}
		want := direct.Generate(4, []string{"the", "dog"})
		if got := strings.Join(toks, " "); got != want {
			t.Errorf("GenerateStream() = %q, want %q", got, want)
		}
	}
}

func TestGenerateStreamCancellation(t *testing.T) {
	rows := []Transition{{Context: []string{"a"}, NextToken: "a", Probability: 1}}
	c, err := NewChain(1, rows, Metadata{}, WithRand(seededRand(8)))
	if err != nil {
		t.Fatalf("NewChain() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream := c.GenerateStream(ctx, 1_000_000, []string{"a"})

	for i := 0; i < 5; i++ {
		if _, ok := <-stream; !ok {
			t.Fatal("stream closed before cancellation")
		}
	}
	cancel()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-stream:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("stream was not closed after cancellation")
		}
	}
}
