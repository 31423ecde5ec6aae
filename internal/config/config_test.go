package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zsprackett/flowcontrol/internal/config"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"FLOWCONTROL_API_URL", "EXPO_PUBLIC_API_URL", "FLOWCONTROL_WS_URL", "EXPO_PUBLIC_WS_URL", "FLOWCONTROL_LOG_LEVEL", "FLOWCONTROL_LANGUAGE"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Load("/nonexistent/path/config.json")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIURL != config.DefaultAPIURL {
		t.Errorf("api url: got %q", cfg.APIURL)
	}
	if cfg.Dashboard.RefreshIntervalSeconds != 5 || cfg.Push.RetryDelayMs != 3000 || !cfg.Push.AutoReconnect {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"apiUrl":"https://flow.example.org","dashboard":{"refreshIntervalSeconds":10}}`), 0644)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIURL != "https://flow.example.org" || cfg.Dashboard.RefreshIntervalSeconds != 10 {
		t.Errorf("got %+v", cfg)
	}
	if got := cfg.PushBaseURL(); got != "wss://flow.example.org" {
		t.Errorf("push base: got %q", got)
	}
}

func TestLoadBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{`), 0644)
	if _, err := config.Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("EXPO_PUBLIC_API_URL", "http://10.0.0.5:8000")
	t.Setenv("FLOWCONTROL_LOG_LEVEL", "debug")

	cfg := config.Defaults()
	config.ApplyEnv(&cfg)
	if cfg.APIURL != "http://10.0.0.5:8000" || cfg.LogLevel != "debug" {
		t.Errorf("got %+v", cfg)
	}
	if got := cfg.PushBaseURL(); got != "ws://10.0.0.5:8000" {
		t.Errorf("push base: %q", got)
	}

	t.Setenv("FLOWCONTROL_API_URL", "http://primary:8000")
	t.Setenv("FLOWCONTROL_WS_URL", "ws://push:9000/")
	config.ApplyEnv(&cfg)
	if cfg.APIURL != "http://primary:8000" {
		t.Errorf("FLOWCONTROL_API_URL should win: %q", cfg.APIURL)
	}
	if got := cfg.PushBaseURL(); got != "ws://push:9000" {
		t.Errorf("explicit ws url: %q", got)
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	os.WriteFile(envFile, []byte("FLOWCONTROL_API_URL=http://from-dotenv:8000\nFLOWCONTROL_LOG_LEVEL=warn\n"), 0644)
	t.Setenv("FLOWCONTROL_LOG_LEVEL", "error")
	// t.Setenv restores the variable; unset the one .env will set so it is restored too.
	t.Setenv("FLOWCONTROL_API_URL", "")
	os.Unsetenv("FLOWCONTROL_API_URL")

	config.LoadDotEnv(filepath.Join(dir, "missing.env"), envFile)
	if got := os.Getenv("FLOWCONTROL_API_URL"); got != "http://from-dotenv:8000" {
		t.Errorf("api url from .env: %q", got)
	}
	if got := os.Getenv("FLOWCONTROL_LOG_LEVEL"); got != "error" {
		t.Errorf(".env overrode existing variable: %q", got)
	}
}

func TestEnsureJWTSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	cfg := config.Defaults()
	if err := config.EnsureJWTSecret(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if len(cfg.Auth.JWTSecret) != 64 {
		t.Errorf("secret length: %d", len(cfg.Auth.JWTSecret))
	}
	clearEnv(t)
	loaded, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Auth.JWTSecret != cfg.Auth.JWTSecret {
		t.Error("secret not persisted")
	}

	before := cfg.Auth.JWTSecret
	config.EnsureJWTSecret(path, &cfg)
	if cfg.Auth.JWTSecret != before {
		t.Error("existing secret replaced")
	}
}
