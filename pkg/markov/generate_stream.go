package markov

import (
	"context"

	"github.com/CTAG07/wikilm/pkg/tokens"
)

// GenerateStream runs the same walk as Generate and returns a read-only
// channel of cleaned tokens, starting with the initial context. This allows
// callers to consume long generations token by token and to bound them by
// wall-clock time: the channel is closed once generation is complete or
// the context is cancelled.
func (c *Chain) GenerateStream(ctx context.Context, length int, seed []string) <-chan string {
	tokenChan := make(chan string)

	go func() {
		defer close(tokenChan)
		c.walk(ctx, length, seed, func(token string) bool {
			select {
			case tokenChan <- tokens.Clean(token):
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()

	return tokenChan
}
