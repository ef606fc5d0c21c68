package main

import "github.com/urfave/cli/v3"

var (
	dbPath    string
	modelsDir string
	lang      string
	date      string
	variant   string
	logLevel  string
	seed      int64
)

// commonFlags selects where tables come from and which table to use.
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "db",
			Usage:       "path to the SQLite model store",
			Value:       "./data/wikilm.db",
			Destination: &dbPath,
		},
		&cli.StringFlag{
			Name:        "models-dir",
			Usage:       "read tables from a published JSON artifact directory instead of the database",
			Destination: &modelsDir,
		},
		&cli.StringFlag{
			Name:        "lang",
			Aliases:     []string{"l"},
			Usage:       "language code, e.g. en",
			Destination: &lang,
		},
		&cli.StringFlag{
			Name:        "date",
			Usage:       "snapshot date of the artifacts",
			Value:       "latest",
			Destination: &date,
		},
		&cli.StringFlag{
			Name:        "variant",
			Usage:       "tokenization variant (word, subword)",
			Value:       "word",
			Destination: &variant,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "warn",
			Destination: &logLevel,
		},
	}
}

func seedFlag() cli.Flag {
	return &cli.Int64Flag{
		Name:        "seed",
		Usage:       "seed for reproducible generation (0 picks a random seed)",
		Destination: &seed,
	}
}
