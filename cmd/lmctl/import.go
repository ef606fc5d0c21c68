package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

func importCmd() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import a JSON model document into the database, replacing any table under the same key",
		ArgsUsage: "<file|->",
		Flags:     commonFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return cli.Exit("error: expected exactly one file argument", 1)
			}
			s, err := openSession(cmd, true)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer s.Close()

			var r io.Reader = os.Stdin
			if name := cmd.Args().First(); name != "-" {
				f, err := os.Open(name)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				defer func() { _ = f.Close() }()
				r = f
			}

			key, err := s.store.ImportModel(ctx, r)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			_, _ = fmt.Fprintf(cmd.Root().Writer, "imported %s\n", key)
			return nil
		},
	}
}
