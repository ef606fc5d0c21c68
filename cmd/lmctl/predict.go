package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"
)

func predictCmd() *cli.Command {
	var (
		order int
		topK  int
	)

	return &cli.Command{
		Name:      "predict",
		Usage:     "Print the most likely next tokens after a context",
		ArgsUsage: "<context>",
		Flags: append(commonFlags(),
			&cli.IntFlag{
				Name:        "order",
				Aliases:     []string{"n"},
				Usage:       "gram size (2-5)",
				Value:       3,
				Destination: &order,
			},
			&cli.IntFlag{
				Name:        "top-k",
				Aliases:     []string{"k"},
				Usage:       "number of predictions",
				Value:       5,
				Destination: &topK,
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

			w := cmd.Root().Writer
			for _, p := range m.PredictNext(strings.Join(cmd.Args().Slice(), " "), topK) {
				_, _ = fmt.Fprintf(w, "%-24s %.6f\n", p.Token, p.Probability)
			}
			return nil
		},
	}
}
