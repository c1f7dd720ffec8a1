package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "nonexistent")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Mode)
	assert.Empty(t, cfg.Host)
	assert.Equal(t, 3100, cfg.Port)
	assert.Equal(t, int64(32768), cfg.ReadLimit)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, 5, cfg.Playback.MinSteps)
	assert.Equal(t, 10, cfg.Playback.MaxSteps)
	assert.Equal(t, 500*time.Millisecond, cfg.Playback.MinDelay)
	assert.Equal(t, 2*time.Second, cfg.Playback.MaxDelay)
	assert.Equal(t, "tongtong", cfg.TTS.Voice)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CONFIG_ENV", "test")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	yaml := `
mode: debug
port: 4200
playback:
  min_steps: 2
  max_steps: 3
  min_delay: 10ms
  max_delay: 20ms
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 4200, cfg.Port)
	assert.Equal(t, 2, cfg.Playback.MinSteps)
	assert.Equal(t, 20*time.Millisecond, cfg.Playback.MaxDelay)
	// unset fields keep defaults
	assert.Equal(t, int64(32768), cfg.ReadLimit)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Mode:       "release",
			Port:       3100,
			ReadLimit:  32768,
			PingPeriod: 54 * time.Second,
			Playback: PlaybackConfig{
				MinSteps: 5,
				MaxSteps: 10,
				MinDelay: 500 * time.Millisecond,
				MaxDelay: 2 * time.Second,
			},
		}
	}

	t.Run("valid config passes", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("port out of range", func(t *testing.T) {
		cfg := valid()
		cfg.Port = 0
		require.Error(t, cfg.Validate())
	})

	t.Run("bad mode", func(t *testing.T) {
		cfg := valid()
		cfg.Mode = "verbose"
		require.Error(t, cfg.Validate())
	})

	t.Run("max steps below min", func(t *testing.T) {
		cfg := valid()
		cfg.Playback.MaxSteps = 1
		require.Error(t, cfg.Validate())
	})

	t.Run("max delay below min", func(t *testing.T) {
		cfg := valid()
		cfg.Playback.MaxDelay = time.Millisecond
		require.Error(t, cfg.Validate())
	})
}
