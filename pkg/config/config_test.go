package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nzoschke/energybpm/pkg/detector"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, detector.DefaultConfig(), cfg.Detector)
	assert.Equal(t, 44100, cfg.Detector.SampleRate)
	assert.Equal(t, 1024, cfg.Detector.BlockSize)
	assert.Equal(t, 43, cfg.Detector.BlockCount)
	assert.Equal(t, 4, cfg.Detector.RunLength)
	assert.Equal(t, -0.0000015, cfg.Detector.Slope)
	assert.Equal(t, 1.5142857, cfg.Detector.Intercept)
	assert.Zero(t, cfg.Detector.Stride, "zero stride follows the sample rate")
	assert.Equal(t, 44100, cfg.Detector.Resolved().Stride)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_OverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "energybpm.yaml")
	err := os.WriteFile(path, []byte(`
detector:
  run_length: 3
  stride: 44032
music_dir: /srv/music
log_level: debug
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Detector.RunLength)
	assert.Equal(t, 44032, cfg.Detector.Stride)
	assert.Equal(t, 44100, cfg.Detector.SampleRate, "unset keys keep defaults")
	assert.Equal(t, 1.5142857, cfg.Detector.Intercept)
	assert.Equal(t, "/srv/music", cfg.MusicDir)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, log.DEBUG, cfg.Level())
}

func TestLoad_SampleRateMovesStride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "half.yaml")
	err := os.WriteFile(path, []byte(`
detector:
  sample_rate: 22050
  block_count: 21
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	d, err := detector.New(cfg.Detector)
	require.NoError(t, err)
	assert.Equal(t, 22050, d.Config().Stride)

	samples := make([]float64, 4*22050)
	for i := range samples {
		samples[i] = 0.5
	}
	result, err := d.Estimate(samples)
	require.NoError(t, err)

	require.Len(t, result.Windows, 4)
	for i, w := range result.Windows {
		assert.Equal(t, i*22050, w.Span.Start, "window %d", i)
		assert.Equal(t, 21*1024, w.Span.Len(), "window %d", i)
		assert.Equal(t, 512.0, w.Mean, "window %d", i)
	}
}

func TestLoad_Env(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: :9999\n"), 0644))
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
}

func TestLoad_NoPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("detector: [1, 2"), 0644))
	_, err = Load(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("detector:\n  block_size: 0\n"), 0644))
	_, err = Load(invalid)
	assert.ErrorIs(t, err, detector.ErrInvalidConfig)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]log.Lvl{
		"debug":   log.DEBUG,
		"INFO":    log.INFO,
		"":        log.INFO,
		"warning": log.WARN,
		"error":   log.ERROR,
		"off":     log.OFF,
	}
	for name, want := range tests {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}
