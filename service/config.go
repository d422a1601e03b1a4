package service

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "30s"
// or "1h" instead of raw nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements custom YAML unmarshaling for durations.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var str string
	if err := unmarshal(&str); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(str)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", str, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config represents the service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Generation GenerationConfig `yaml:"generation"`
	Tickets    TicketsConfig    `yaml:"tickets"`
	Sessions   SessionsConfig   `yaml:"sessions"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Listen       string   `yaml:"listen"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

// GenerationConfig configures the generation collaborator. When
// disabled, or when no API key can be resolved, responses come from
// the template table only.
type GenerationConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	// APIKeyEnv names an environment variable consulted when APIKey
	// is empty.
	APIKeyEnv string   `yaml:"api_key_env"`
	Model     string   `yaml:"model"`
	BaseURL   string   `yaml:"base_url"`
	Timeout   Duration `yaml:"timeout"`
}

// TicketsConfig configures where escalated requests are recorded.
type TicketsConfig struct {
	// Path is the SQLite database file; empty keeps tickets in memory.
	Path string `yaml:"path"`
}

// SessionsConfig configures the session result cache.
type SessionsConfig struct {
	TTL Duration `yaml:"ttl"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen:       ":8080",
			ReadTimeout:  Duration(10 * time.Second),
			WriteTimeout: Duration(60 * time.Second),
		},
		Generation: GenerationConfig{
			Enabled:   false,
			APIKeyEnv: "GOOGLE_API_KEY",
			Timeout:   Duration(30 * time.Second),
		},
		Sessions: SessionsConfig{
			TTL: Duration(30 * time.Minute),
		},
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must not be empty")
	}
	if c.Sessions.TTL < 0 {
		return fmt.Errorf("sessions.ttl must not be negative")
	}
	if c.Generation.Enabled && c.resolveAPIKey() == "" {
		return fmt.Errorf("generation enabled but no API key configured (set generation.api_key or %s)", c.Generation.APIKeyEnv)
	}
	return nil
}

// resolveAPIKey returns the configured key, falling back to the
// configured environment variable.
func (c *Config) resolveAPIKey() string {
	if c.Generation.APIKey != "" {
		return c.Generation.APIKey
	}
	if c.Generation.APIKeyEnv != "" {
		return os.Getenv(c.Generation.APIKeyEnv)
	}
	return ""
}
