package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// HTTP configures the API listener.
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Database locates the SQLite file.
type Database struct {
	Path string `yaml:"path"`
}

// NATS configures change events and report ingest.
type NATS struct {
	Enabled  bool   `yaml:"enabled"`
	Embedded bool   `yaml:"embedded"`
	Addr     string `yaml:"addr"`
	URL      string `yaml:"url"`
}

// Log sets the logger level.
type Log struct {
	Level string `yaml:"level"`
}

// Config is the server configuration.
type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Database Database `yaml:"database"`
	NATS     NATS     `yaml:"nats"`
	Log      Log      `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		HTTP:     HTTP{Addr: "127.0.0.1:57935"},
		Database: Database{Path: "inventory.db"},
		NATS: NATS{
			Enabled:  true,
			Embedded: true,
			Addr:     "127.0.0.1:4222",
		},
		Log: Log{Level: "info"},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the fields the server cannot start without.
func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.NATS.Enabled && !c.NATS.Embedded && c.NATS.URL == "" {
		return errors.New("nats.url is required when nats.embedded is false")
	}
	return nil
}
