package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"gonum.org/v1/gonum/floats"

	"github.com/nzoschke/energybpm/pkg/detector"
)

// TrackAnalysis represents the JSON sidecar written for a track.
type TrackAnalysis struct {
	File         string                  `json:"file"`
	Duration     float64                 `json:"duration"`
	SampleRate   int                     `json:"sample_rate"`
	TotalSamples int                     `json:"total_samples"`
	BPM          int                     `json:"bpm"`
	Beats        int                     `json:"beats"`
	Error        string                  `json:"error,omitempty"`
	Config       detector.Config         `json:"config"`
	Windows      []detector.WindowReport `json:"windows,omitempty"`
	Waveform     *Waveform               `json:"waveform,omitempty"`
}

// Waveform contains downsampled waveform data for visualization.
type Waveform struct {
	PixelsPerSec int       `json:"pixels_per_sec"`
	Peaks        []float64 `json:"peaks"`
	Troughs      []float64 `json:"troughs"`
}

// Analyzer runs the energy detector over files and sample buffers.
type Analyzer struct {
	cfg          detector.Config
	detector     *detector.Detector
	logger       *log.Logger
	pixelsPerSec int
	useFileRate  bool
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(l *log.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithPixelsPerSec sets the waveform resolution. Zero disables waveforms.
func WithPixelsPerSec(n int) Option {
	return func(a *Analyzer) { a.pixelsPerSec = n }
}

// WithFileRate makes the window length follow each file's sample rate.
func WithFileRate(enabled bool) Option {
	return func(a *Analyzer) { a.useFileRate = enabled }
}

// New creates an Analyzer for the given detector parameters.
func New(cfg detector.Config, opts ...Option) (*Analyzer, error) {
	d, err := detector.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("create detector: %w", err)
	}

	quiet := log.New("analysis")
	quiet.SetOutput(io.Discard)

	a := &Analyzer{cfg: cfg, detector: d, logger: quiet}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Config returns the detector parameters.
func (a *Analyzer) Config() detector.Config {
	return a.detector.Config()
}

// detectorFor returns the detector for samples decoded at sampleRate.
// An unset stride keeps following the window length.
func (a *Analyzer) detectorFor(sampleRate int) (*detector.Detector, error) {
	if !a.useFileRate || sampleRate <= 0 || sampleRate == a.cfg.SampleRate {
		return a.detector, nil
	}

	cfg := a.cfg
	cfg.SampleRate = sampleRate
	return detector.New(cfg)
}

// AnalyzeSamples estimates the BPM of samples decoded at sampleRate.
// A sampleRate of 0 means unknown.
func (a *Analyzer) AnalyzeSamples(samples []float64, sampleRate int) (*detector.Result, error) {
	d, err := a.detectorFor(sampleRate)
	if err != nil {
		return nil, err
	}
	return a.estimate(d, samples, sampleRate)
}

func (a *Analyzer) estimate(d *detector.Detector, samples []float64, sampleRate int) (*detector.Result, error) {
	cfg := d.Config()
	if sampleRate > 0 && sampleRate != cfg.SampleRate {
		a.logger.Warnj(log.JSON{
			"msg":         "file sample rate differs from detector window",
			"file_rate":   sampleRate,
			"window_rate": cfg.SampleRate,
		})
	}

	result, err := d.Estimate(samples)
	if err != nil {
		return nil, err
	}

	for _, w := range result.Windows {
		a.logger.Debugj(log.JSON{
			"window":      w.Index,
			"start":       w.Span.Start,
			"end":         w.Span.End,
			"mean":        w.Mean,
			"variance":    w.Variance,
			"sensitivity": w.Sensitivity,
			"threshold":   w.Threshold,
			"beats":       w.Beats,
		})
	}

	return result, nil
}

// AnalyzeFileWithPath loads and analyzes a single audio file.
// Load failures are returned; detector failures are recorded in the
// Error field so a sidecar can still be written.
func (a *Analyzer) AnalyzeFileWithPath(audioPath string) (*TrackAnalysis, error) {
	start := time.Now()

	samples, sampleRate, err := LoadAudioMono(audioPath)
	if err != nil {
		return nil, fmt.Errorf("load audio: %w", err)
	}

	ta := a.Analyze(filepath.Base(audioPath), samples, sampleRate)

	a.logger.Infoj(log.JSON{
		"file":    ta.File,
		"bpm":     ta.BPM,
		"beats":   ta.Beats,
		"windows": len(ta.Windows),
		"error":   ta.Error,
		"elapsed": time.Since(start).String(),
	})

	return ta, nil
}

// Analyze builds the sidecar for already decoded samples.
func (a *Analyzer) Analyze(name string, samples []float64, sampleRate int) *TrackAnalysis {
	cfg := a.detector.Config()
	rate := sampleRate
	if rate <= 0 {
		rate = cfg.SampleRate
	}

	ta := &TrackAnalysis{
		File:         name,
		SampleRate:   rate,
		TotalSamples: len(samples),
		Duration:     float64(len(samples)) / float64(rate),
		Config:       cfg,
	}
	result, err := a.analyzeWith(ta, samples, sampleRate)
	if err != nil {
		ta.Error = err.Error()
	} else {
		ta.BPM = result.BPM
		ta.Beats = result.Beats
		ta.Windows = result.Windows
	}

	if a.pixelsPerSec > 0 {
		waveform, err := GenerateWaveform(samples, rate, a.pixelsPerSec)
		if err != nil {
			a.logger.Warnf("could not generate waveform for %s: %v", name, err)
		} else {
			ta.Waveform = waveform
		}
	}

	return ta
}

// analyzeWith picks the detector for sampleRate, records its parameters in
// ta and runs it.
func (a *Analyzer) analyzeWith(ta *TrackAnalysis, samples []float64, sampleRate int) (*detector.Result, error) {
	d, err := a.detectorFor(sampleRate)
	if err != nil {
		return nil, err
	}
	ta.Config = d.Config()
	return a.estimate(d, samples, sampleRate)
}

// GenerateWaveform creates downsampled waveform data for visualization.
// pixelsPerSec controls the resolution (e.g., 100 = 100 data points per second).
func GenerateWaveform(samples []float64, sampleRate, pixelsPerSec int) (*Waveform, error) {
	if sampleRate <= 0 || pixelsPerSec <= 0 {
		return nil, fmt.Errorf("invalid waveform resolution: %d Hz at %d px/sec", sampleRate, pixelsPerSec)
	}

	samplesPerPixel := max(sampleRate/pixelsPerSec, 1)

	numPixels := len(samples) / samplesPerPixel
	if numPixels == 0 {
		return nil, errors.New("audio too short")
	}

	peaks := make([]float64, numPixels)
	troughs := make([]float64, numPixels)

	for i := 0; i < numPixels; i++ {
		chunk := samples[i*samplesPerPixel : (i+1)*samplesPerPixel]
		peaks[i] = floats.Max(chunk)
		troughs[i] = floats.Min(chunk)
	}

	return &Waveform{
		PixelsPerSec: pixelsPerSec,
		Peaks:        peaks,
		Troughs:      troughs,
	}, nil
}

// SidecarPath returns the JSON path written next to an audio file.
func SidecarPath(audioPath string) string {
	return strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".json"
}

// AnalyzeDir recursively analyzes all audio files in a directory.
// For each audio file, it creates a corresponding .json sidecar file.
// If force is true, existing JSON files are overwritten. It returns the
// number of sidecars written.
func (a *Analyzer) AnalyzeDir(dir string, force bool) (int, error) {
	written := 0

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !isSupportedAudio(ext) {
			return nil
		}

		jsonPath := SidecarPath(path)
		if !force {
			if _, err := os.Stat(jsonPath); err == nil {
				a.logger.Infof("skipping %s (already analyzed)", filepath.Base(path))
				return nil
			}
		}

		ta, err := a.AnalyzeFileWithPath(path)
		if err != nil {
			a.logger.Errorf("%s: %v", filepath.Base(path), err)
			return nil // Continue with other files
		}

		if err := ta.WriteJSON(jsonPath); err != nil {
			return err
		}
		written++
		return nil
	})

	return written, err
}

// WriteJSON writes the analysis to a JSON file.
func (ta *TrackAnalysis) WriteJSON(path string) error {
	data, err := json.MarshalIndent(ta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write JSON: %w", err)
	}
	return nil
}

// ReadTrackAnalysis reads a sidecar written by WriteJSON.
func ReadTrackAnalysis(path string) (*TrackAnalysis, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var ta TrackAnalysis
	if err := json.Unmarshal(data, &ta); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return &ta, nil
}
