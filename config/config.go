package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Log       LogConfig       `toml:"log"`
	SignWell  SignWellConfig  `toml:"signwell"`
	HelloSign HelloSignConfig `toml:"hellosign"`
	Spotify   SpotifyConfig   `toml:"spotify"`
	Jobs      JobsConfig      `toml:"jobs"`
	Events    EventsConfig    `toml:"events"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	// gin mode: debug, release or test
	Mode string `toml:"mode"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type SignWellConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	WebhookKey     string `toml:"webhook_key"`
	TestMode       bool   `toml:"test_mode"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type HelloSignConfig struct {
	APIKey string `toml:"api_key"`
}

type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

func (s SpotifyConfig) Enabled() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

type JobsConfig struct {
	Workers        int     `toml:"workers"`
	PollIntervalMS int     `toml:"poll_interval_ms"`
	MaxAttempts    int     `toml:"max_attempts"`
	SpotifyRate    float64 `toml:"spotify_rate"`
}

type EventsConfig struct {
	Sink   string `toml:"sink"`
	Source string `toml:"source"`
}

// Default returns the configuration embedded in config.example.toml.
func Default() *Config {
	var cfg Config
	if err := toml.Unmarshal(exampleConf, &cfg); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &cfg
}

// Load reads the TOML file at path over the embedded defaults, applies
// RIGHTS_* environment overrides and validates the result. An empty path
// skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	overrides := map[string]*string{
		"RIGHTS_DATABASE_DRIVER":       &c.Database.Driver,
		"RIGHTS_DATABASE_DSN":          &c.Database.DSN,
		"RIGHTS_LOG_LEVEL":             &c.Log.Level,
		"RIGHTS_SIGNWELL_API_KEY":      &c.SignWell.APIKey,
		"RIGHTS_SIGNWELL_WEBHOOK_KEY":  &c.SignWell.WebhookKey,
		"RIGHTS_HELLOSIGN_API_KEY":     &c.HelloSign.APIKey,
		"RIGHTS_SPOTIFY_CLIENT_ID":     &c.Spotify.ClientID,
		"RIGHTS_SPOTIFY_CLIENT_SECRET": &c.Spotify.ClientSecret,
		"RIGHTS_EVENTS_SINK":           &c.Events.Sink,
	}
	for key, dst := range overrides {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("%w: unsupported database driver %q", ErrInvalidConfig, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("%w: database dsn is required", ErrInvalidConfig)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("%w: jobs.workers must be positive", ErrInvalidConfig)
	}
	if c.Jobs.MaxAttempts <= 0 {
		return fmt.Errorf("%w: jobs.max_attempts must be positive", ErrInvalidConfig)
	}
	if c.Jobs.PollIntervalMS <= 0 {
		return fmt.Errorf("%w: jobs.poll_interval_ms must be positive", ErrInvalidConfig)
	}
	if c.SignWell.BaseURL == "" {
		return fmt.Errorf("%w: signwell.base_url is required", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile writes the embedded example config to path, refusing to
// overwrite an existing file.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
