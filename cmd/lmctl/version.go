package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			w := cmd.Root().Writer
			_, _ = fmt.Fprintf(w, "version:    %s\n", Version)
			_, _ = fmt.Fprintf(w, "commit:     %s\n", Commit)
			_, _ = fmt.Fprintf(w, "build date: %s\n", BuildDate)
			return nil
		},
	}
}
