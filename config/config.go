package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendRemote = "remote"
	BackendNone   = "none"
)

type Config struct {
	DataDir        string `yaml:"data_dir"`
	StoreFile      string `yaml:"store_file"`
	Backend        string `yaml:"backend"`
	Listen         string `yaml:"listen"`
	CoordinatorURL string `yaml:"coordinator_url"`
	WindowID       string `yaml:"window_id"`
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	RateLimit      int    `yaml:"rate_limit"`
	WatchStore     bool   `yaml:"watch_store"`
}

func Default() Config {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return Config{
		DataDir:        filepath.Join(dir, "tray"),
		StoreFile:      "config.json",
		Backend:        BackendJSON,
		Listen:         "http://localhost:7421",
		CoordinatorURL: "http://localhost:7421",
		LogLevel:       "info",
		LogFormat:      "json",
		RateLimit:      120,
		WatchStore:     true,
	}
}

// Load reads path on top of the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendJSON, BackendSQLite, BackendMemory, BackendRemote, BackendNone:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	return nil
}

// StorePath is the durable file used by the json and sqlite backends.
func (c Config) StorePath() string {
	if filepath.IsAbs(c.StoreFile) {
		return c.StoreFile
	}
	return filepath.Join(c.DataDir, c.StoreFile)
}
