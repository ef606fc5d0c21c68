package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func listCmd() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List the tables stored in the database",
		Flags:   commonFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := openSession(cmd, true)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer s.Close()

			stats, err := s.store.GetStats(ctx)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			w := cmd.Root().Writer
			if len(stats.Models) == 0 {
				_, _ = fmt.Fprintln(w, "no models stored")
				return nil
			}
			for _, m := range stats.Models {
				st := stats.Stats[m.Id]
				_, _ = fmt.Fprintf(w, "  %-40s %10d rows\n", m.Key, st.Rows)
			}
			_, _ = fmt.Fprintf(w, "\n%d model(s), %d n-gram rows, %d transition rows\n", len(stats.Models), stats.TotalNGrams, stats.TotalTransitions)
			return nil
		},
	}
}
