// Package config loads the server configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all crossword server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Session SessionConfig `yaml:"session"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP listener and rate limits.
type ServerConfig struct {
	Addr string `yaml:"addr"`

	// Per client IP.
	UploadsPerMinute  int `yaml:"uploads_per_minute"`
	ActionsPerSecond  int `yaml:"actions_per_second"`
	SessionsPerMinute int `yaml:"sessions_per_minute"`
}

// StorageConfig locates the puzzle archive and the snapshot database.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	// SnapshotPath is the badger directory. Empty keeps snapshots in memory.
	SnapshotPath string `yaml:"snapshot_path"`
}

// SessionConfig tunes the play session host.
type SessionConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	SaveTimeout  time.Duration `yaml:"save_timeout"`
	// IdleTimeout closes sessions nobody acts on or watches. Zero keeps
	// them open until shutdown.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// GeminiConfig configures puzzle import from photos. An empty ProjectID
// disables it.
type GeminiConfig struct {
	ProjectID string `yaml:"project_id"`
	Region    string `yaml:"region"`
	Model     string `yaml:"model"`
}

// LoggingConfig selects the log level: debug, info, warn or error.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:             ":8080",
			UploadsPerMinute:  5,
			ActionsPerSecond:  60,
			SessionsPerMinute: 30,
		},
		Storage: StorageConfig{
			DatabasePath: "data/puzzles.db",
			SnapshotPath: "data/snapshots",
		},
		Session: SessionConfig{
			TickInterval: time.Second,
			SaveTimeout:  5 * time.Second,
			IdleTimeout:  30 * time.Minute,
		},
		Gemini: GeminiConfig{
			Region: "europe-west1",
			Model:  "gemini-2.5-flash",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error when path is empty.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	if port, ok := lookup("PORT"); ok && port != "" {
		c.Server.Addr = ":" + port
	}
	set("GCP_PROJECT_ID", &c.Gemini.ProjectID)
	set("GCP_REGION", &c.Gemini.Region)
	set("CROSSWORD_DB", &c.Storage.DatabasePath)
	// Set but empty means in-memory snapshots.
	if v, ok := lookup("CROSSWORD_SNAPSHOTS"); ok {
		c.Storage.SnapshotPath = v
	}
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Storage.DatabasePath == "" {
		errs = append(errs, errors.New("storage.database_path is required"))
	}
	if c.Session.TickInterval <= 0 {
		errs = append(errs, errors.New("session.tick_interval must be positive"))
	}
	if c.Session.IdleTimeout < 0 {
		errs = append(errs, errors.New("session.idle_timeout must not be negative"))
	}
	if c.Server.UploadsPerMinute <= 0 || c.Server.ActionsPerSecond <= 0 || c.Server.SessionsPerMinute <= 0 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	return errors.Join(errs...)
}
