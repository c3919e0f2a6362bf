package analysis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nzoschke/energybpm/pkg/detector"
)

// beatTrack returns seconds of quiet samples where the last four blocks of
// every window are loud, one beat per second.
func beatTrack(seconds int) []float64 {
	cfg := detector.DefaultConfig()
	samples := make([]float64, seconds*cfg.SampleRate)
	for i := range samples {
		samples[i] = 0.1
		if i%cfg.SampleRate >= 39*cfg.BlockSize {
			samples[i] = 1.0
		}
	}
	return samples
}

func writeSamples(t *testing.T, path string, samples []float64) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, WriteText(f, samples))
}

func TestAnalyze(t *testing.T) {
	a, err := New(detector.DefaultConfig(), WithPixelsPerSec(10))
	require.NoError(t, err)

	ta := a.Analyze("beats.txt", beatTrack(3), 0)

	assert.Empty(t, ta.Error)
	assert.Equal(t, "beats.txt", ta.File)
	assert.Equal(t, 60, ta.BPM)
	assert.Equal(t, 3, ta.Beats)
	assert.Equal(t, 44100, ta.SampleRate)
	assert.Equal(t, 3.0, ta.Duration)
	assert.Len(t, ta.Windows, 3)
	require.NotNil(t, ta.Waveform)
	assert.Len(t, ta.Waveform.Peaks, 30)
}

func TestAnalyze_RecordsDetectorErrors(t *testing.T) {
	a, err := New(detector.DefaultConfig())
	require.NoError(t, err)

	ta := a.Analyze("short.txt", make([]float64, 1000), 0)
	assert.Contains(t, ta.Error, "insufficient samples")
	assert.Zero(t, ta.BPM)
	assert.Nil(t, ta.Waveform)

	_, err = a.AnalyzeSamples(nil, 0)
	assert.ErrorIs(t, err, detector.ErrInvalidInput)
}

func TestAnalyzeSamples_FileRate(t *testing.T) {
	cfg := detector.DefaultConfig()
	cfg.BlockSize = 100
	cfg.BlockCount = 80

	a, err := New(cfg, WithFileRate(true))
	require.NoError(t, err)

	d, err := a.detectorFor(8000)
	require.NoError(t, err)
	assert.Equal(t, 8000, d.Config().SampleRate)
	assert.Equal(t, 8000, d.Config().Stride)

	result, err := a.AnalyzeSamples(make([]float64, 16000), 8000)
	require.NoError(t, err)
	assert.Len(t, result.Windows, 2)

	ta := a.Analyze("low.wav", beatTrackAt(cfg, 8000, 2), 8000)
	assert.Empty(t, ta.Error)
	assert.Equal(t, 8000, ta.Config.SampleRate)
	assert.Equal(t, 8000, ta.Config.Stride)
	require.Len(t, ta.Windows, 2)
	assert.Equal(t, detector.Span{Start: 8000, End: 16000}, ta.Windows[1].Span)
	assert.Equal(t, 2, ta.Beats)

	cfg.Stride = 7000
	a, err = New(cfg, WithFileRate(true))
	require.NoError(t, err)
	d, err = a.detectorFor(8000)
	require.NoError(t, err)
	assert.Equal(t, 7000, d.Config().Stride, "explicit stride is kept")

	a, err = New(cfg)
	require.NoError(t, err)
	_, err = a.AnalyzeSamples(make([]float64, 16000), 8000)
	assert.ErrorIs(t, err, detector.ErrInsufficientSamples)
}

// beatTrackAt returns seconds of quiet samples at rate where the last
// RunLength blocks of every window are loud.
func beatTrackAt(cfg detector.Config, rate, seconds int) []float64 {
	samples := make([]float64, seconds*rate)
	loudFrom := (cfg.BlockCount - cfg.RunLength) * cfg.BlockSize
	for i := range samples {
		samples[i] = 0.1
		if i%rate >= loudFrom {
			samples[i] = 1.0
		}
	}
	return samples
}

func TestAnalyzeDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "album")
	require.NoError(t, os.MkdirAll(sub, 0755))

	writeSamples(t, filepath.Join(sub, "beats.txt"), beatTrack(2))
	writeSamples(t, filepath.Join(dir, "short.dat"), make([]float64, 10))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("# notes"), 0644))

	a, err := New(detector.DefaultConfig(), WithPixelsPerSec(100))
	require.NoError(t, err)

	n, err := a.AnalyzeDir(dir, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ta, err := ReadTrackAnalysis(filepath.Join(sub, "beats.json"))
	require.NoError(t, err)
	assert.Equal(t, 60, ta.BPM)
	assert.Equal(t, 2, ta.Beats)
	assert.Len(t, ta.Windows, 2)
	assert.Equal(t, detector.DefaultConfig().Resolved(), ta.Config)
	assert.Equal(t, 44100, ta.Config.Stride)

	short, err := ReadTrackAnalysis(filepath.Join(dir, "short.json"))
	require.NoError(t, err)
	assert.NotEmpty(t, short.Error)

	_, err = os.Stat(filepath.Join(dir, "notes.json"))
	assert.True(t, os.IsNotExist(err))

	n, err = a.AnalyzeDir(dir, false)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "existing sidecars are skipped")

	n, err = a.AnalyzeDir(dir, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestGenerateWaveform(t *testing.T) {
	samples := []float64{0.1, -0.2, 0.3, 0.9, -0.9, 0, 0.5}

	w, err := GenerateWaveform(samples, 6, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, w.PixelsPerSec)
	assert.Equal(t, []float64{0.3, 0.9}, w.Peaks)
	assert.Equal(t, []float64{-0.2, -0.9}, w.Troughs)

	_, err = GenerateWaveform(samples[:2], 6, 2)
	assert.Error(t, err)

	_, err = GenerateWaveform(samples, 0, 2)
	assert.Error(t, err)
}

func TestSidecarPath(t *testing.T) {
	assert.Equal(t, "music/a/track.json", SidecarPath("music/a/track.mp3"))
	assert.Equal(t, "take.1.json", SidecarPath("take.1.txt"))
}
