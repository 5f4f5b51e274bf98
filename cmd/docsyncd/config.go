package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fishy/docsync/local"
	"github.com/fishy/docsync/remote"
)

// Config is the docsyncd configuration file.
type Config struct {
	// Listen is the address to listen on.
	Listen string `yaml:"listen"`

	// Clients lists the client ids allowed to write, empty to allow any.
	Clients []string `yaml:"clients,omitempty"`

	// GzipThreshold is the response size above which responses are gzipped.
	GzipThreshold *int `yaml:"gzip_threshold,omitempty"`

	// Safety is the local collections safety, "clone" or "freeze".
	Safety string `yaml:"safety,omitempty"`

	// LogLevel is one of debug, info, warn and error.
	LogLevel string `yaml:"log_level,omitempty"`

	Collections []CollectionConfig `yaml:"collections"`
}

// CollectionConfig configures one served collection.
type CollectionConfig struct {
	// Name is the collection name, served at /{name}.
	Name string `yaml:"name"`

	// Seed is an optional JSON file holding an array of documents to start
	// with. Relative paths are resolved against the config file directory.
	Seed string `yaml:"seed,omitempty"`
}

// DefaultListen is the default listen address.
const DefaultListen = ":8080"

// LoadConfig reads and validates a config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	base := filepath.Dir(path)
	for i, col := range cfg.Collections {
		if col.Seed != "" && !filepath.IsAbs(col.Seed) {
			cfg.Collections[i].Seed = filepath.Join(base, col.Seed)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (cfg *Config) validate() error {
	if len(cfg.Collections) == 0 {
		return fmt.Errorf("no collections")
	}
	seen := make(map[string]bool, len(cfg.Collections))
	for i, col := range cfg.Collections {
		if col.Name == "" {
			return fmt.Errorf("collections[%d]: name is required", i)
		}
		if strings.ContainsAny(col.Name, "/?#") {
			return fmt.Errorf("collections[%d]: invalid name %q", i, col.Name)
		}
		if seen[col.Name] {
			return fmt.Errorf("collections[%d]: duplicate name %q", i, col.Name)
		}
		seen[col.Name] = true
	}
	if _, err := local.ParseSafety(cfg.Safety); err != nil {
		return err
	}
	if _, err := cfg.level(); err != nil {
		return err
	}
	return nil
}

// level returns the slog level of LogLevel.
func (cfg *Config) level() (slog.Level, error) {
	var level slog.Level
	if cfg.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
	}
	return level, nil
}

// localOptions returns the options of the served local collections.
func (cfg *Config) localOptions(logger *slog.Logger) local.Options {
	safety, _ := local.ParseSafety(cfg.Safety)
	return local.NewDefaultOptions().SetSafety(safety).SetLogger(logger).Build()
}

// handlerOptions returns the options of the collection handlers.
func (cfg *Config) handlerOptions(logger *slog.Logger) remote.HandlerOptions {
	threshold := remote.DefaultGzipThreshold
	if cfg.GzipThreshold != nil {
		threshold = *cfg.GzipThreshold
	}
	return remote.HandlerOptions{
		Clients:       cfg.Clients,
		GzipThreshold: threshold,
		Logger:        logger,
	}
}
