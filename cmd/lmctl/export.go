package main

import (
	"bytes"
	"context"
	"fmt"

	"github.com/natefinch/atomic"
	"github.com/urfave/cli/v3"

	"github.com/CTAG07/wikilm/pkg/artifact"
)

func exportCmd() *cli.Command {
	var (
		kind  string
		order int
		out   string
	)

	return &cli.Command{
		Name:  "export",
		Usage: "Export a stored table as a JSON document, or publish it into --models-dir",
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
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "write the document to this file instead of stdout",
				Destination: &out,
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

			if s.dir != nil {
				if err = publish(ctx, s, key); err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				_, _ = fmt.Fprintf(cmd.Root().Writer, "published %s to %s\n", key, s.dir.Path(key))
				return nil
			}

			var buf bytes.Buffer
			if err = s.store.ExportModel(ctx, key, &buf); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if out == "" {
				_, _ = buf.WriteTo(cmd.Root().Writer)
				return nil
			}
			if err = atomic.WriteFile(out, &buf); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return nil
		},
	}
}

// publish copies a stored table into the artifact directory layout.
func publish(ctx context.Context, s *session, key artifact.Key) error {
	switch key.Kind {
	case artifact.KindNGram:
		entries, meta, err := s.store.LoadNGrams(ctx, key)
		if err != nil {
			return err
		}
		return s.dir.WriteNGrams(ctx, key, entries, meta)
	default:
		rows, meta, err := s.store.LoadTransitions(ctx, key)
		if err != nil {
			return err
		}
		return s.dir.WriteTransitions(ctx, key, rows, meta)
	}
}
