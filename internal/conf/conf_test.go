package conf

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("FEISHU_APP_ID", "cli_x")
	t.Setenv("FEISHU_APP_SECRET", "secret")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Feishu.AppID != "cli_x" {
		t.Errorf("Expected app id cli_x, got %q", cfg.Feishu.AppID)
	}
	if cfg.DBPath != "data/chatimitate.db" {
		t.Errorf("Expected default db path, got %q", cfg.DBPath)
	}
	if cfg.APIPort != 9876 {
		t.Errorf("Expected port 9876, got %d", cfg.APIPort)
	}
	if cfg.SyncInterval != time.Hour {
		t.Errorf("Expected 1h sync interval, got %v", cfg.SyncInterval)
	}
	if cfg.SpeakInterval != time.Minute {
		t.Errorf("Expected 60s speak interval, got %v", cfg.SpeakInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
	if cfg.APIBaseURL() != "http://127.0.0.1:9876" {
		t.Errorf("Expected local base url, got %q", cfg.APIBaseURL())
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("SYNC_INTERVAL", "10m")
	t.Setenv("API_PORT", "8000")
	t.Setenv("DEBUG", "true")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SyncInterval != 10*time.Minute {
		t.Errorf("Expected 10m, got %v", cfg.SyncInterval)
	}
	if cfg.APIPort != 8000 || !cfg.Debug {
		t.Errorf("Expected overrides applied, got %+v", cfg)
	}
}

func TestLoadFromEnv_BadDuration(t *testing.T) {
	t.Setenv("SPEAK_INTERVAL", "soon")

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected parse error for bad duration")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{DBPath: "x.db", APIPort: 1, SyncInterval: time.Second, SpeakInterval: time.Second}

	err := cfg.Validate()
	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected ConfigError, got %v", err)
	}
	if cerr.Field != "FEISHU_APP_ID/FEISHU_APP_SECRET" {
		t.Errorf("Expected credentials field, got %q", cerr.Field)
	}

	if err := cfg.ValidateStorage(); err != nil {
		t.Errorf("Expected storage config valid, got %v", err)
	}

	cfg.APIPort = 70000
	if err := cfg.ValidateStorage(); err == nil {
		t.Error("Expected port range error")
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("Expected missing file to be ignored, got %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("CHATIMITATE_TEST_KEY=hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHATIMITATE_TEST_KEY", "")
	os.Unsetenv("CHATIMITATE_TEST_KEY")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("CHATIMITATE_TEST_KEY"); got != "hello" {
		t.Errorf("Expected hello, got %q", got)
	}
}
