package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/CTAG07/wikilm/pkg/tokens"
)

func generateCmd() *cli.Command {
	var (
		depth   int
		length  int
		timeout time.Duration
	)

	return &cli.Command{
		Name:      "generate",
		Aliases:   []string{"gen"},
		Usage:     "Generate text from a Markov chain",
		ArgsUsage: "[seed tokens...]",
		Flags: append(commonFlags(),
			seedFlag(),
			&cli.IntFlag{
				Name:        "depth",
				Aliases:     []string{"d"},
				Usage:       "context depth (1-5)",
				Value:       2,
				Destination: &depth,
			},
			&cli.IntFlag{
				Name:        "length",
				Usage:       "number of tokens to generate",
				Value:       20,
				Destination: &length,
			},
			&cli.DurationFlag{
				Name:        "timeout",
				Usage:       "stop generating after this long (0 disables)",
				Destination: &timeout,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := openSession(cmd, false)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer s.Close()

			chain, err := s.loadChain(ctx, depth)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			seedTokens := tokens.Fields(strings.Join(cmd.Args().Slice(), " "))

			w := cmd.Root().Writer
			if timeout <= 0 {
				_, _ = fmt.Fprintln(w, chain.Generate(length, seedTokens))
				return nil
			}

			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			first := true
			for token := range chain.GenerateStream(ctx, length, seedTokens) {
				if !first {
					_, _ = fmt.Fprint(w, " ")
				}
				_, _ = fmt.Fprint(w, token)
				first = false
			}
			_, _ = fmt.Fprintln(w)
			if ctx.Err() != nil {
				s.logger.Warn("Generation stopped by timeout", "timeout", timeout)
			}
			return nil
		},
	}
}
