package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frameforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	t.Setenv("FRAMEFORGE_WORKERS", "")
	t.Setenv("POSTGRES_ENABLED", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 1920, cfg.Width)
	assert.Equal(t, 30, cfg.FPS)
	assert.False(t, cfg.Postgres.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Cache.PresetTTL)
}

func TestLoadYAMLKeepsUnsetDefaults(t *testing.T) {
	t.Setenv("FRAMEFORGE_OUTPUT_DIR", "")
	path := writeConfig(t, `
width: 1280
height: 720
output_dir: /tmp/renders
postgres:
  enabled: true
  schema: staging
cache:
  preset_ttl: 30s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1280, cfg.Width)
	assert.Equal(t, 720, cfg.Height)
	assert.Equal(t, "/tmp/renders", cfg.OutputDir)
	assert.True(t, cfg.Postgres.Enabled)
	assert.Equal(t, "staging", cfg.Postgres.Schema)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, 30*time.Second, cfg.Cache.PresetTTL)
	assert.Equal(t, 30, cfg.FPS)
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "width: [1"))
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "workers: 2\nrabbitmq:\n  exchange: from-file\n")
	t.Setenv("FRAMEFORGE_WORKERS", "6")
	t.Setenv("RABBITMQ_ENABLED", "true")
	t.Setenv("RABBITMQ_EXCHANGE", "from-env")
	t.Setenv("PRESET_CACHE_TTL", "not-a-duration")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Workers)
	assert.True(t, cfg.RabbitMQ.Enabled)
	assert.Equal(t, "from-env", cfg.RabbitMQ.Exchange)
	assert.Equal(t, 10*time.Minute, cfg.Cache.PresetTTL)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("FRAMEFORGE_WORK_DIR", "")
	cfg := Default()
	cfg.WorkDir = "/srv/work"
	cfg.Assets.DPI = 300

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/work", got.WorkDir)
	assert.Equal(t, 300, got.Assets.DPI)
}

func TestContextFallsBackToDefaults(t *testing.T) {
	assert.Equal(t, Default(), FromContext(context.Background()))

	cfg := Default()
	cfg.FPS = 60
	assert.Same(t, cfg, FromContext(WithConfig(context.Background(), cfg)))
}

func TestRenderParamsSeconds(t *testing.T) {
	assert.InDelta(t, 5.0, RenderParams{FPS: 30, DurationInFrames: 150}.Seconds(), 1e-9)
	assert.InDelta(t, 2.5, RenderParams{FPS: 24, DurationInFrames: 60}.Seconds(), 1e-9)
	assert.Zero(t, RenderParams{DurationInFrames: 150}.Seconds())
}
