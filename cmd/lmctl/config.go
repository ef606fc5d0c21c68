package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the lmctl configuration file (~/.config/wikilm/config.yaml).
type Config struct {
	DBPath    string `yaml:"db_path"`
	ModelsDir string `yaml:"models_dir"`
	Lang      string `yaml:"lang"`
	Date      string `yaml:"date"`
	Variant   string `yaml:"variant"`
	LogLevel  string `yaml:"log_level"`
	Seed      *int64 `yaml:"seed"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "wikilm", "config.yaml")
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig(path string) Config {
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}

// applyConfig applies config file defaults to the common flag variables
// when the corresponding CLI flag was not explicitly set.
func applyConfig(c *cli.Command, cfg Config) {
	if cfg.DBPath != "" && !c.IsSet("db") {
		dbPath = cfg.DBPath
	}
	if cfg.ModelsDir != "" && !c.IsSet("models-dir") {
		modelsDir = cfg.ModelsDir
	}
	if cfg.Lang != "" && !c.IsSet("lang") {
		lang = cfg.Lang
	}
	if cfg.Date != "" && !c.IsSet("date") {
		date = cfg.Date
	}
	if cfg.Variant != "" && !c.IsSet("variant") {
		variant = cfg.Variant
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		seed = *cfg.Seed
	}
}

// newLogger builds the stderr logger for a command run.
func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
