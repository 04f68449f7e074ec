// Package config provides configuration loading from YAML files.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Backend types.
const (
	BackendSimulated = "simulated"
	BackendSpotify   = "spotify"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Remote  RemoteConfig  `yaml:"remote"`
	Page    PageConfig    `yaml:"page"`
	Player  PlayerConfig  `yaml:"player"`
	Backend BackendConfig `yaml:"backend"`
	Spotify SpotifyConfig `yaml:"spotify"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// RemoteConfig represents the remote control configuration.
type RemoteConfig struct {
	Token string `yaml:"token"` // Empty disables token checks
}

// PageConfig names the page controls.
type PageConfig struct {
	Media  string `yaml:"media" default:"videoElement" validate:"required"`
	Play   string `yaml:"play" default:"playBtn" validate:"required"`
	Pause  string `yaml:"pause" default:"pauseBtn" validate:"required"`
	Seek   string `yaml:"seek" default:"seekBtn" validate:"required"`
	Status string `yaml:"status" default:"playbackState" validate:"required"`
}

// PlayerConfig represents player behavior configuration.
type PlayerConfig struct {
	SeekToSec float64 `yaml:"seek_to_sec" default:"30" validate:"gte=0"`
}

// BackendConfig selects the host media element.
type BackendConfig struct {
	Type     string         `yaml:"type" default:"simulated" validate:"oneof=simulated spotify"`
	Settings map[string]any `yaml:"settings"`
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return cfg, nil
}

// Read loads a configuration file like Load but skips validation.
// It serves tools that fill in missing values, such as the Spotify
// refresh token.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	if err := prepare(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	return finish(&Config{})
}

func finish(cfg *Config) (*Config, error) {
	if err := prepare(cfg); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return cfg, nil
}

// prepare applies environment overrides and defaults.
func prepare(cfg *Config) error {
	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(cfg); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	return nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
	if v := os.Getenv("VPLAYER_REMOTE_TOKEN"); v != "" {
		c.Remote.Token = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Backend.Type == BackendSpotify {
		if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" || c.Spotify.RefreshToken == "" {
			return errors.New("spotify backend requires client_id, client_secret and refresh_token")
		}
	}

	return nil
}
