package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/smodf-client/pkg/types"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ProviderStub, cfg.Vision.Provider)
	assert.Equal(t, "usuario_smodf1", cfg.Session.MarkerKey)
	assert.Equal(t, types.DefaultSettings(), cfg.Settings)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
backend:
  url: http://smodf.local:9000
  timeout: 10s
vision:
  provider: ollama
  model: llava
  min_confidence: 0.25
settings:
  camera_quality: low
  auto_save: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://smodf.local:9000", cfg.Backend.URL)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, ProviderOllama, cfg.Vision.Provider)
	assert.Equal(t, "llava", cfg.Vision.Model)
	assert.Equal(t, 0.25, cfg.Vision.MinConfidence)
	assert.Equal(t, "http://localhost:11434", cfg.Vision.URL, "unset keys keep defaults")
	assert.Equal(t, types.QualityLow, cfg.Settings.CameraQuality)
	assert.Equal(t, types.QualityMedium, cfg.Settings.ModelQuality)
	assert.False(t, cfg.Settings.AutoSave)
	assert.True(t, cfg.Settings.Notifications)
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  url: http://from-file:8000\n"), 0o600))

	t.Setenv("SMODF_BACKEND_URL", "http://from-env:8000")
	t.Setenv("SMODF_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:8000", cfg.Backend.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "error reading config")
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("settings:\n  model_quality: ultra\n"), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "settings.model_quality")
}

func TestSaveToFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Backend.URL = "http://saved:8000"
	cfg.Settings.CameraQuality = types.QualityMedium
	cfg.Session.TTL = time.Hour
	require.NoError(t, cfg.SaveToFile(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://saved:8000", loaded.Backend.URL)
	assert.Equal(t, types.QualityMedium, loaded.Settings.CameraQuality)
	assert.Equal(t, time.Hour, loaded.Session.TTL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"relative backend url", func(c *Config) { c.Backend.URL = "localhost" }, "backend.url"},
		{"negative timeout", func(c *Config) { c.Backend.Timeout = -time.Second }, "backend.timeout"},
		{"unknown vision provider", func(c *Config) { c.Vision.Provider = "opencv" }, "vision.provider"},
		{"ollama without model", func(c *Config) {
			c.Vision.Provider = ProviderOllama
			c.Vision.Model = ""
		}, "vision.model"},
		{"confidence out of range", func(c *Config) { c.Vision.MinConfidence = 1.5 }, "min_confidence"},
		{"unknown generator", func(c *Config) { c.Reconstruction.Provider = ProviderOllama }, "reconstruction.provider"},
		{"naming without vision model", func(c *Config) { c.Reconstruction.NameWithVision = true }, "name_with_vision"},
		{"zero camera size", func(c *Config) { c.Camera.Width = 0 }, "camera.width"},
		{"empty marker key", func(c *Config) { c.Session.MarkerKey = "" }, "marker_key"},
		{"bad camera quality", func(c *Config) { c.Settings.CameraQuality = "4k" }, "camera_quality"},
		{"negative log backups", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging rotation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	assert.Equal(t, "config.yaml", filepath.Base(GetConfigPath()))
}
