package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutPath(t *testing.T) {
	t.Setenv("ARCHIPELO_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Tick.LowRateHz)
	assert.Equal(t, 60, cfg.Tick.HighRateHz)
	assert.Equal(t, "memory", cfg.Storage.Backend)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	data := []byte(`
server:
  version: "2.1.0"
  ws_port: 9443
tick:
  high_rate_hz: 30
storage:
  backend: badger
  badger_path: /tmp/world
world:
  maps: [town, forest]
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2.1.0", cfg.Server.Version)
	assert.Equal(t, 9443, cfg.Server.GetWSPort())
	assert.Equal(t, 20, cfg.Tick.LowRateHz, "не заданное поле сохраняет дефолт")
	assert.Equal(t, time.Second/30, cfg.Tick.HighInterval())
	assert.Equal(t, []string{"town", "forest"}, cfg.World.Maps)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: floppy\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestPortEnvFallback(t *testing.T) {
	s := ServerConfig{}
	t.Setenv("ARCHIPELO_REST_PORT", "9999")
	assert.Equal(t, 9999, s.GetRESTPort())

	t.Setenv("ARCHIPELO_REST_PORT", "junk")
	assert.Equal(t, 8088, s.GetRESTPort())

	s.RESTPort = 1234
	assert.Equal(t, 1234, s.GetRESTPort())
}
