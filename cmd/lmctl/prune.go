package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/CTAG07/wikilm/pkg/artifact"
)

func pruneCmd() *cli.Command {
	var (
		kind    string
		order   int
		minFreq int64
		minProb float64
	)

	return &cli.Command{
		Name:  "prune",
		Usage: "Delete rare rows from a stored table",
		Flags: append(commonFlags(),
			&cli.StringFlag{
				Name:        "kind",
				Usage:       "table kind (ngram, markov)",
				Value:       string(artifact.KindNGram),
				Destination: &kind,
			},
			&cli.IntFlag{
				Name:        "order",
				Aliases:     []string{"n"},
				Usage:       "gram size or context depth",
				Value:       3,
				Destination: &order,
			},
			&cli.Int64Flag{
				Name:        "min-frequency",
				Usage:       "remove n-grams with a frequency at or below this value",
				Value:       1,
				Destination: &minFreq,
			},
			&cli.Float64Flag{
				Name:        "min-probability",
				Usage:       "remove transitions with a probability at or below this value",
				Destination: &minProb,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			k, err := artifact.ParseKind(kind)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			s, err := openSession(cmd, true)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer s.Close()

			key, err := s.key(k, order)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			var removed int64
			if k == artifact.KindNGram {
				removed, err = s.store.PruneNGrams(ctx, key, minFreq)
			} else {
				removed, err = s.store.PruneTransitions(ctx, key, minProb)
			}
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			_, _ = fmt.Fprintf(cmd.Root().Writer, "removed %d rows from %s\n", removed, key)
			return nil
		},
	}
}
