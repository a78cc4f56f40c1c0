package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server ServerConfig `yaml:"server"`
	State  StateConfig  `yaml:"state"`
	Family FamilyConfig `yaml:"family"`
	CORS   CORSConfig   `yaml:"cors"`
	Notify NotifyConfig `yaml:"notify"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// StateConfig contains state document persistence settings.
type StateConfig struct {
	Path string `yaml:"path"`
}

// FamilyConfig locates the family configuration and its backups.
type FamilyConfig struct {
	ConfigPath string `yaml:"config_path"`
	BackupDir  string `yaml:"backup_dir"`
}

// CORSConfig contains cross-origin settings for browser dashboards.
type CORSConfig struct {
	AllowedOrigin string `yaml:"allowed_origin"`
}

// NotifyConfig contains notification channel settings.
type NotifyConfig struct {
	BufferSize        int      `yaml:"buffer_size"`
	KeepAliveInterval Duration `yaml:"keepalive_interval"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("STARBOARD_CONFIG_PATH", "config/starboard.yaml")

	// Load YAML file if it exists (missing file is not an error)
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3001,
			ReadTimeout:     Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		State: StateConfig{
			Path: "data/state.json",
		},
		Family: FamilyConfig{
			ConfigPath: "config/family.yaml",
			BackupDir:  "config-backups",
		},
		CORS: CORSConfig{
			AllowedOrigin: "http://localhost:5173",
		},
		Notify: NotifyConfig{
			BufferSize:        16,
			KeepAliveInterval: Duration(15 * time.Second),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STARBOARD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("STARBOARD_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("STARBOARD_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	if v := os.Getenv("STARBOARD_STATE_PATH"); v != "" {
		cfg.State.Path = v
	}

	if v := os.Getenv("STARBOARD_FAMILY_CONFIG"); v != "" {
		cfg.Family.ConfigPath = v
	}
	if v := os.Getenv("STARBOARD_BACKUP_DIR"); v != "" {
		cfg.Family.BackupDir = v
	}

	if v := os.Getenv("STARBOARD_ALLOWED_ORIGIN"); v != "" {
		cfg.CORS.AllowedOrigin = v
	}

	if v := os.Getenv("STARBOARD_NOTIFY_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Notify.BufferSize = n
		}
	}
	if v := os.Getenv("STARBOARD_KEEPALIVE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Notify.KeepAliveInterval = Duration(d)
		}
	}

	if v := os.Getenv("STARBOARD_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("STARBOARD_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks that configuration values are usable.
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.State.Path == "" {
		return fmt.Errorf("state path must not be empty")
	}
	if c.Notify.BufferSize < 0 {
		return fmt.Errorf("notify buffer size must not be negative")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
