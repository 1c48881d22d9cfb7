// Package config loads the engine configuration from viper, merging config
// file, environment and flag values into one typed struct.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// RepositoryConfig describes the remote skill repository source
type RepositoryConfig struct {
	URL          string        `mapstructure:"url"`
	Branch       string        `mapstructure:"branch"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
	CloneTimeout time.Duration `mapstructure:"clone_timeout"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// HTTPConfig describes the optional HTTP API listener
type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// Config is the full engine configuration
type Config struct {
	Repository RepositoryConfig `mapstructure:"repository"`
	LocalDir   string           `mapstructure:"local_dir"`
	Overrides  string           `mapstructure:"overrides"`
	DataDir    string           `mapstructure:"data_dir"`

	CacheMaxAge time.Duration `mapstructure:"cache_max_age"`
	WatchLocal  bool          `mapstructure:"watch_local"`

	HTTP HTTPConfig `mapstructure:"http"`

	// Profile selects a named overlay from Profiles; overlay values replace
	// the corresponding base values before defaults apply
	Profile  string                    `mapstructure:"profile"`
	Profiles map[string]map[string]any `mapstructure:"profiles"`
}

// FromViper builds the configuration from the current viper state, applies
// the selected profile overlay and fills in defaults
func FromViper() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal configuration")
	}
	if err := config.applyProfile(); err != nil {
		return nil, err
	}
	config.applyDefaults()
	return &config, nil
}

// applyProfile merges the selected profile overlay into the config, leaving
// fields the overlay does not mention untouched
func (c *Config) applyProfile() error {
	if c.Profile == "" {
		return nil
	}
	overlay, ok := c.Profiles[c.Profile]
	if !ok {
		return errors.Errorf("profile %q not defined", c.Profile)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		WeaklyTypedInput: true,
		ZeroFields:       false,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create profile decoder")
	}
	if err := decoder.Decode(overlay); err != nil {
		return errors.Wrapf(err, "failed to apply profile %q", c.Profile)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Repository.Branch == "" {
		c.Repository.Branch = "main"
	}
	if c.Repository.SyncInterval <= 0 {
		c.Repository.SyncInterval = 15 * time.Minute
	}
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.DataDir = filepath.Join(home, ".skillmesh")
	}
	if c.CacheMaxAge <= 0 {
		c.CacheMaxAge = time.Hour
	}
	if c.HTTP.Host == "" {
		c.HTTP.Host = "127.0.0.1"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8315
	}
}

// Validate checks that at least one skill source is configured
func (c *Config) Validate() error {
	if c.Repository.URL == "" && c.LocalDir == "" {
		return errors.New("no skill source configured: set repository.url or local_dir")
	}
	return nil
}

// RepoWorkDir is where the remote working copy lives
func (c *Config) RepoWorkDir() string {
	return filepath.Join(c.DataDir, "repo")
}

// CachePath is where the snapshot database lives
func (c *Config) CachePath() string {
	return filepath.Join(c.DataDir, "cache.db")
}
