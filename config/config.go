// Package config loads kedai settings from an optional TOML file, then from
// KEDAI_* environment variables, which win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

var ErrInvalid = errors.New("invalid config")

const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type Config struct {
	AppID     string  `toml:"app_id"`
	Addr      string  `toml:"addr"`
	ServerURL string  `toml:"server_url"`
	LogEvents bool    `toml:"log_events"`
	Store     Store   `toml:"store"`
	Session   Session `toml:"session"`
}

type Store struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

type Session struct {
	Secret         string        `toml:"secret"`
	TTL            time.Duration `toml:"ttl"`
	AllowAnonymous bool          `toml:"allow_anonymous"`
}

func Default() Config {
	return Config{
		AppID: "kedai",
		Addr:  "127.0.0.1:8080",
		Store: Store{
			Backend: BackendBadger,
			Path:    "data",
		},
		Session: Session{
			TTL:            24 * time.Hour,
			AllowAnonymous: true,
		},
	}
}

// Load reads path over the defaults, when path is not empty, and applies
// the environment.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &c); err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}
	c.applyEnv()
	if c.ServerURL == "" {
		c.ServerURL = "http://" + c.Addr
	}
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
	return c, c.Validate()
}

func (c *Config) applyEnv() {
	c.AppID = envOrDefault("KEDAI_APP_ID", c.AppID)
	c.Addr = envOrDefault("KEDAI_ADDR", c.Addr)
	c.ServerURL = envOrDefault("KEDAI_SERVER_URL", c.ServerURL)
	c.LogEvents = boolOrDefault("KEDAI_LOG_EVENTS", c.LogEvents)
	c.Store.Backend = envOrDefault("KEDAI_STORE_BACKEND", c.Store.Backend)
	c.Store.Path = envOrDefault("KEDAI_STORE_PATH", c.Store.Path)
	c.Session.Secret = envOrDefault("KEDAI_SESSION_SECRET", c.Session.Secret)
	c.Session.TTL = durationOrDefault("KEDAI_SESSION_TTL_SEC", c.Session.TTL)
	c.Session.AllowAnonymous = boolOrDefault("KEDAI_SESSION_ALLOW_ANONYMOUS", c.Session.AllowAnonymous)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.AppID) == "" || strings.Contains(c.AppID, "/") {
		return fmt.Errorf("%w: app_id %q", ErrInvalid, c.AppID)
	}
	switch c.Store.Backend {
	case BackendBadger, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("%w: store.backend %q", ErrInvalid, c.Store.Backend)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("%w: session.ttl %v", ErrInvalid, c.Session.TTL)
	}
	return nil
}

// CheckServer reports settings only the server needs.
func (c Config) CheckServer() error {
	if c.Session.Secret == "" {
		return fmt.Errorf("%w: session.secret is required to serve", ErrInvalid)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationOrDefault(envKey string, fallback time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}

func boolOrDefault(envKey string, fallback bool) bool {
	if v := strings.TrimSpace(strings.ToLower(os.Getenv(envKey))); v != "" {
		switch v {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return fallback
}
