package conf

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config represents application configuration
type Config struct {
	// Feishu configuration
	Feishu FeishuConfig `envPrefix:"FEISHU_"`

	// DBPath is the sqlite file backing contexts, messages and blacklists
	DBPath string `env:"DB_PATH" envDefault:"data/chatimitate.db"`

	// DictPath is an optional gse dictionary; empty loads the embedded one
	DictPath string `env:"DICT_PATH"`

	// APIPort is the local operator API port
	APIPort int `env:"API_PORT" envDefault:"9876"`

	// SyncInterval is the maintenance period (flush, daily clearup)
	SyncInterval time.Duration `env:"SYNC_INTERVAL" envDefault:"1h"`

	// SpeakInterval is how often proactive speaking is attempted
	SpeakInterval time.Duration `env:"SPEAK_INTERVAL" envDefault:"60s"`

	// EngineConfigPath points at the engine tunables YAML
	EngineConfigPath string `env:"ENGINE_CONFIG_PATH"`

	// Debug mode
	Debug bool `env:"DEBUG"`
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string `env:"APP_ID"`
	AppSecret string `env:"APP_SECRET"`
}

// APIBaseURL is the address of the local operator API
func (c *Config) APIBaseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", c.APIPort)
}

// LoadEnvFile loads a .env file into the process environment.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("no env file found, using process environment", "path", path)
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration needed to run the bot
func (c *Config) Validate() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	return c.ValidateStorage()
}

// ValidateStorage validates the subset needed by offline commands
func (c *Config) ValidateStorage() error {
	if c.DBPath == "" {
		return &ConfigError{Field: "DB_PATH", Message: "required"}
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return &ConfigError{Field: "API_PORT", Message: "must be between 1 and 65535"}
	}
	if c.SyncInterval <= 0 {
		return &ConfigError{Field: "SYNC_INTERVAL", Message: "must be positive"}
	}
	if c.SpeakInterval <= 0 {
		return &ConfigError{Field: "SPEAK_INTERVAL", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
