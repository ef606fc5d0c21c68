package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func newApp(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "lmctl",
		Usage:     "Query and manage pre-fit Wikipedia language models",
		Writer:    w,
		ErrWriter: os.Stderr,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			scoreCmd(),
			predictCmd(),
			generateCmd(),
			transitionsCmd(),
			importCmd(),
			exportCmd(),
			listCmd(),
			pruneCmd(),
			versionCmd(),
		},
	}
}

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
