package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/imba3r/kedai/config"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := config.Load("")
	assert.Equal(t, nil, err)
	assert.Equal(t, "kedai", c.AppID)
	assert.Equal(t, "http://127.0.0.1:8080", c.ServerURL)
	assert.Equal(t, config.BackendBadger, c.Store.Backend)
	assert.Equal(t, true, c.Session.AllowAnonymous)
	assert.Equal(t, true, errors.Is(c.CheckServer(), config.ErrInvalid))
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kedai.toml")
	err := os.WriteFile(path, []byte(`
app_id = "kopi-senja"
addr = "0.0.0.0:9000"
log_events = true

[store]
backend = "sqlite"
path = "kedai.db"

[session]
secret = "from-file"
ttl = "2h"
allow_anonymous = false
`), 0o600)
	assert.Equal(t, nil, err)

	t.Setenv("KEDAI_SESSION_SECRET", "from-env")
	t.Setenv("KEDAI_SERVER_URL", "https://kedai.example.com/")

	c, err := config.Load(path)
	assert.Equal(t, nil, err)
	assert.Equal(t, "kopi-senja", c.AppID)
	assert.Equal(t, "0.0.0.0:9000", c.Addr)
	assert.Equal(t, "https://kedai.example.com", c.ServerURL)
	assert.Equal(t, true, c.LogEvents)
	assert.Equal(t, config.Store{Backend: "sqlite", Path: "kedai.db"}, c.Store)
	assert.Equal(t, config.Session{Secret: "from-env", TTL: 2 * time.Hour, AllowAnonymous: false}, c.Session)
	assert.Equal(t, nil, c.CheckServer())
}

func TestLoad_EnvParsing(t *testing.T) {
	t.Setenv("KEDAI_SESSION_TTL_SEC", "90")
	t.Setenv("KEDAI_SESSION_ALLOW_ANONYMOUS", "off")
	t.Setenv("KEDAI_STORE_BACKEND", "memory")

	c, err := config.Load("")
	assert.Equal(t, nil, err)
	assert.Equal(t, 90*time.Second, c.Session.TTL)
	assert.Equal(t, false, c.Session.AllowAnonymous)
	assert.Equal(t, config.BackendMemory, c.Store.Backend)

	t.Setenv("KEDAI_SESSION_TTL_SEC", "nope")
	c, err = config.Load("")
	assert.Equal(t, nil, err)
	assert.Equal(t, 24*time.Hour, c.Session.TTL)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("KEDAI_STORE_BACKEND", "postgres")
	_, err := config.Load("")
	assert.Equal(t, true, errors.Is(err, config.ErrInvalid))

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.NotEqual(t, nil, err)
}
