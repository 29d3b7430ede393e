package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/andreyvit/todostore"
)

// Config selects and configures the storage backend. It is read from an
// optional YAML file; command-line flags override the file.
type Config struct {
	Backend    string `yaml:"backend"` // bolt | pebble | mem
	Path       string `yaml:"path"`
	Format     string `yaml:"format"` // envelope | json
	Verbose    bool   `yaml:"verbose"`
	MaxRetries int    `yaml:"max_retries"`
}

var ValidBackends = []string{"bolt", "pebble", "mem"}

func DefaultConfig() Config {
	return Config{
		Backend: "bolt",
		Path:    "todo.db",
		Format:  "envelope",
	}
}

// LoadConfig reads path on top of DefaultConfig. Unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if !isOneOf(c.Backend, ValidBackends) {
		return fmt.Errorf("invalid backend %q: must be one of %v", c.Backend, ValidBackends)
	}
	if c.Backend != "mem" && c.Path == "" {
		return fmt.Errorf("path is required for the %s backend", c.Backend)
	}
	if _, err := todostore.ParseValueFormat(c.Format); err != nil {
		return err
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	return nil
}

// OpenKVStore opens the backend named by cfg. The caller owns the result.
func OpenKVStore(cfg Config, logger *slog.Logger) (todostore.KVStore, error) {
	switch cfg.Backend {
	case "bolt":
		kv, err := todostore.OpenBolt(cfg.Path, todostore.BoltOptions{})
		if err != nil {
			return nil, err
		}
		return kv, nil
	case "pebble":
		kv, err := todostore.OpenPebble(cfg.Path, todostore.PebbleOptions{Logger: logger})
		if err != nil {
			return nil, err
		}
		return kv, nil
	case "mem":
		return todostore.NewMemStore(), nil
	default:
		return nil, fmt.Errorf("invalid backend %q", cfg.Backend)
	}
}

// OpenEngine opens the configured store and wraps it in an Engine.
func OpenEngine(cfg Config, logger *slog.Logger) (*todostore.Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	format, err := todostore.ParseValueFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	kv, err := OpenKVStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	return todostore.New(kv, todostore.Options{
		Logger:      logger,
		Verbose:     cfg.Verbose,
		ValueFormat: format,
		MaxRetries:  cfg.MaxRetries,
	}), nil
}

func isOneOf(s string, list []string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
