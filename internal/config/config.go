// Package config loads the cartwright configuration file.
//
// Configuration lives at ~/.config/cartwright/config.toml (or under
// $XDG_CONFIG_HOME when set) and supplies defaults that CLI flags override:
// course metadata for builds, the artifact cache location, and the serve
// command's bind address and backing stores. A missing file is not an
// error; every field has a working default.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"cartwright/pkg/dataset"
	"cartwright/pkg/errors"
)

// Defaults contains build options applied when the corresponding flags
// are not set.
type Defaults struct {
	Title   string `toml:"title"`
	BaseURL string `toml:"base_url"`
	Section string `toml:"section"`
	Format  string `toml:"format"`
	Workers int    `toml:"workers"`
}

// Cache contains artifact cache settings.
type Cache struct {
	Dir      string `toml:"dir"`
	Disabled bool   `toml:"disabled"`
}

// Server contains settings for the serve command.
type Server struct {
	Addr          string `toml:"addr"`
	Redis         string `toml:"redis"`
	Mongo         string `toml:"mongo"`
	MongoDatabase string `toml:"mongo_database"`
	Workers       int    `toml:"workers"`
	MaxUploadMB   int    `toml:"max_upload_mb"`
	JobTTLHours   int    `toml:"job_ttl_hours"`
}

// Config encapsulates all configuration values for cartwright.
//
// Sections:
//   - Defaults: build options (course title, base URL, section, format)
//   - Cache: artifact cache directory and kill switch
//   - Server: bind address, redis/mongo endpoints, job pool sizing
type Config struct {
	Defaults Defaults `toml:"defaults"`
	Cache    Cache    `toml:"cache"`
	Server   Server   `toml:"server"`
}

const (
	defaultServerAddr    = "127.0.0.1:8318"
	defaultMongoDatabase = "cartwright"
	defaultServerWorkers = 2
	defaultMaxUploadMB   = 32
	defaultJobTTLHours   = 24
)

// Default returns a Config populated with working defaults.
func Default() Config {
	return Config{
		Server: Server{
			Addr:          defaultServerAddr,
			MongoDatabase: defaultMongoDatabase,
			Workers:       defaultServerWorkers,
			MaxUploadMB:   defaultMaxUploadMB,
			JobTTLHours:   defaultJobTTLHours,
		},
	}
}

// DefaultPath returns the default configuration file location,
// $XDG_CONFIG_HOME/cartwright/config.toml or ~/.config/cartwright/config.toml.
func DefaultPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "cartwright", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "cartwright", "config.toml"), nil
}

// Load reads and validates the configuration file at path. An empty path
// means the default location, where a missing file yields Default(). An
// explicit path that cannot be read is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return &cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return &cfg, nil
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate ensures the configuration is usable. Fields absent from the
// file keep their defaults, so validation only fires on values a user
// actually wrote.
func (c *Config) Validate() error {
	if c.Defaults.BaseURL != "" {
		if err := errors.ValidateBaseURL(c.Defaults.BaseURL); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "defaults.base_url")
		}
	}
	if c.Defaults.Format != "" {
		if _, err := dataset.ByFormat(c.Defaults.Format, dataset.Loaders()...); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "defaults.format")
		}
	}
	if c.Defaults.Workers < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "defaults.workers cannot be negative")
	}
	if c.Server.Addr == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "server.addr cannot be empty")
	}
	if c.Server.Workers < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "server.workers must be at least 1")
	}
	if c.Server.MaxUploadMB < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "server.max_upload_mb must be at least 1")
	}
	if c.Server.JobTTLHours < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "server.job_ttl_hours must be at least 1")
	}
	return nil
}
