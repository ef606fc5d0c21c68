package main

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/urfave/cli/v3"
)

func scoreCmd() *cli.Command {
	var order int

	return &cli.Command{
		Name:      "score",
		Usage:     "Print the log-likelihood of a text under an n-gram model",
		ArgsUsage: "<text>",
		Flags: append(commonFlags(),
			&cli.IntFlag{
				Name:        "order",
				Aliases:     []string{"n"},
				Usage:       "gram size (2-5)",
				Value:       3,
				Destination: &order,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := openSession(cmd, false)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer s.Close()

			m, err := s.loadNGram(ctx, order)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			score := m.Score(strings.Join(cmd.Args().Slice(), " "))
			w := cmd.Root().Writer
			if math.IsInf(score, -1) {
				_, _ = fmt.Fprintf(w, "-Inf (text shorter than %d tokens)\n", m.GramSize())
				return nil
			}
			_, _ = fmt.Fprintf(w, "%.6f\n", score)
			return nil
		},
	}
}
