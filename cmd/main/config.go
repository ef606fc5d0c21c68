package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/goccy/go-json"
	"github.com/natefinch/atomic"

	"github.com/CTAG07/wikilm/pkg/artifact"
)

// ServerConfig holds the configuration for the HTTP server and its storage.
type ServerConfig struct {
	ApiAddr      string `json:"api_addr"`
	LogLevel     string `json:"log_level"`
	DataDir      string `json:"data_dir"`
	DatabasePath string `json:"database_path"`
	// ModelsDir, when set, is a published JSON artifact directory consulted
	// for tables the database does not hold.
	ModelsDir string `json:"models_dir"`
}

// ModelConfig holds the defaults and limits applied to model queries.
type ModelConfig struct {
	DefaultDate       string `json:"default_date"`
	DefaultVariant    string `json:"default_variant"`
	MaxGenerateLength int    `json:"max_generate_length"`
	MaxTopK           int    `json:"max_top_k"`
	GenerateTimeoutMs int    `json:"generate_timeout_ms"`
	MaxCachedModels   int    `json:"max_cached_models"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server *ServerConfig `json:"server_config"`
	Models *ModelConfig  `json:"model_config"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ApiAddr:      ":7380",
		LogLevel:     "info",
		DataDir:      "./data",
		DatabasePath: "./data/wikilm.db?_journal_mode=WAL&_busy_timeout=5000",
		ModelsDir:    "",
	}
}

// DefaultModelConfig creates a model configuration with default values.
func DefaultModelConfig() *ModelConfig {
	return &ModelConfig{
		DefaultDate:       artifact.DefaultDate,
		DefaultVariant:    artifact.VariantWord,
		MaxGenerateLength: 500,
		MaxTopK:           100,
		GenerateTimeoutMs: 5000,
		MaxCachedModels:   32,
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := &Config{
		Server: DefaultServerConfig(),
		Models: DefaultModelConfig(),
	}

	file, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// The server can still run with defaults.
				fmt.Printf("warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.Server == nil {
		config.Server = DefaultServerConfig()
	}
	if config.Models == nil {
		config.Models = DefaultModelConfig()
	}

	return config, nil
}

// ConfigManager handles thread-safe access to configuration.
type ConfigManager struct {
	config     *Config
	mu         sync.RWMutex
	configPath string
	logger     *slog.Logger
}

// NewConfigManager loads the config and initializes the manager.
func NewConfigManager(path string) (*ConfigManager, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	return &ConfigManager{
		config:     cfg,
		configPath: path,
		// Log to stdout before the application-specific logger is set.
		logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{})),
	}, nil
}

// SetLogger sets the logger.
func (cm *ConfigManager) SetLogger(logger *slog.Logger) {
	cm.logger = logger
}

// Get returns a copy of the current configuration.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	server := *cm.config.Server
	models := *cm.config.Models
	return Config{Server: &server, Models: &models}
}

// Update validates the configuration, saves it to disk and swaps it in.
func (cm *ConfigManager) Update(newConfig Config) error {
	if newConfig.Server == nil || newConfig.Models == nil {
		return errors.New("server_config and model_config are required")
	}
	if newConfig.Models.MaxGenerateLength < 0 || newConfig.Models.MaxTopK < 0 || newConfig.Models.GenerateTimeoutMs < 0 {
		return errors.New("model limits must not be negative")
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	data, err := json.MarshalIndent(newConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err = atomic.WriteFile(cm.configPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	server := *newConfig.Server
	models := *newConfig.Models
	cm.config = &Config{Server: &server, Models: &models}
	cm.logger.Info("Configuration updated", "path", cm.configPath)

	return nil
}

// parseLogLevel maps a config string to a slog level, defaulting to info.
func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
