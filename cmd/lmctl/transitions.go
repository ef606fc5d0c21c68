package main

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/CTAG07/wikilm/pkg/tokens"
)

func transitionsCmd() *cli.Command {
	var depth int

	return &cli.Command{
		Name:      "transitions",
		Usage:     "Print the recorded next-token weights for a context",
		ArgsUsage: "<context tokens...>",
		Flags: append(commonFlags(),
			&cli.IntFlag{
				Name:        "depth",
				Aliases:     []string{"d"},
				Usage:       "context depth (1-5)",
				Value:       2,
				Destination: &depth,
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

			transitions := chain.GetTransitions(tokens.Fields(strings.Join(cmd.Args().Slice(), " ")))
			next := slices.SortedFunc(maps.Keys(transitions), func(a, b string) int {
				if c := cmp.Compare(transitions[b], transitions[a]); c != 0 {
					return c
				}
				return strings.Compare(a, b)
			})

			w := cmd.Root().Writer
			for _, token := range next {
				_, _ = fmt.Fprintf(w, "%-24s %.6f\n", token, transitions[token])
			}
			return nil
		},
	}
}
