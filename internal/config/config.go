package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/zsprackett/flowcontrol/internal/push"
)

const DefaultAPIURL = "http://localhost:8000"

type NotificationsConfig struct {
	Enabled bool   `json:"enabled"`
	Desktop bool   `json:"desktop"`
	Webhook string `json:"webhook"`
	NtfyURL string `json:"ntfy"`
}

type PushConfig struct {
	AutoReconnect bool `json:"autoReconnect"`
	RetryDelayMs  int  `json:"retryDelayMs"`
}

type DashboardConfig struct {
	AutoRefresh            bool `json:"autoRefresh"`
	RefreshIntervalSeconds int  `json:"refreshIntervalSeconds"`
	SimulateIncrease       int  `json:"simulateIncrease"`
	ResolveDecrease        int  `json:"resolveDecrease"`
}

type AuthConfig struct {
	JWTSecret       string `json:"jwtSecret"`
	TokenTTLMinutes int    `json:"tokenTTLMinutes"`
}

type Config struct {
	APIURL        string              `json:"apiUrl"`
	WSURL         string              `json:"wsUrl"`
	Language      string              `json:"language"`
	LogLevel      string              `json:"logLevel"`
	LogDir        string              `json:"logDir"`
	Push          PushConfig          `json:"push"`
	Dashboard     DashboardConfig     `json:"dashboard"`
	Notifications NotificationsConfig `json:"notifications"`
	Auth          AuthConfig          `json:"auth"`
}

func Defaults() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		Language: "th",
		LogLevel: "info",
		LogDir:   filepath.Join(Dir(), "logs"),
		Push:     PushConfig{AutoReconnect: true, RetryDelayMs: 3000},
		Dashboard: DashboardConfig{
			AutoRefresh:            true,
			RefreshIntervalSeconds: 5,
			SimulateIncrease:       20,
			ResolveDecrease:        15,
		},
		Notifications: NotificationsConfig{Desktop: true},
		Auth:          AuthConfig{TokenTTLMinutes: 60},
	}
}

// Dir is ~/.flowcontrol.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".flowcontrol")
}

func DefaultPath() string {
	return filepath.Join(Dir(), "config.json")
}

func DBPath() string {
	return filepath.Join(Dir(), "state.db")
}

// Load reads path over the defaults, then applies .env files and the
// environment. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	LoadDotEnv(".env", filepath.Join(Dir(), ".env"))
	ApplyEnv(&cfg)
	return cfg, nil
}

// LoadDotEnv loads each existing file into the environment without
// overriding variables that are already set.
func LoadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		godotenv.Load(p)
	}
}

// ApplyEnv overrides cfg from FLOWCONTROL_* variables, falling back to the
// EXPO_PUBLIC_* names the mobile client uses.
func ApplyEnv(cfg *Config) {
	if v := firstEnv("FLOWCONTROL_API_URL", "EXPO_PUBLIC_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := firstEnv("FLOWCONTROL_WS_URL", "EXPO_PUBLIC_WS_URL"); v != "" {
		cfg.WSURL = v
	}
	if v := os.Getenv("FLOWCONTROL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FLOWCONTROL_LANGUAGE"); v == "th" || v == "en" {
		cfg.Language = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// PushBaseURL returns WSURL, or the API URL with its scheme swapped to ws/wss.
func (c Config) PushBaseURL() string {
	if c.WSURL != "" {
		return strings.TrimRight(c.WSURL, "/")
	}
	return push.WebsocketURL(c.APIURL)
}

func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// EnsureJWTSecret generates and persists a signing secret when none is configured.
func EnsureJWTSecret(path string, cfg *Config) error {
	if cfg.Auth.JWTSecret != "" {
		return nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return err
	}
	cfg.Auth.JWTSecret = hex.EncodeToString(b)
	return Save(path, *cfg)
}
