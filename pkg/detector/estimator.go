package detector

import "fmt"

// WindowReport contains the diagnostics of one analysis window.
type WindowReport struct {
	Index       int     `json:"index"`
	Span        Span    `json:"span"`        // Span is the range of samples summed into blocks.
	Mean        float64 `json:"mean"`        // Mean is the average block energy.
	Variance    float64 `json:"variance"`    // Variance is the population variance of block energies.
	Sensitivity float64 `json:"sensitivity"` // Sensitivity is the multiplier c.
	Threshold   float64 `json:"threshold"`   // Threshold is c*mean.
	Beats       int     `json:"beats"`       // Beats is the number of beats registered in this window.
}

// Result contains the outcome of a BPM estimate.
type Result struct {
	BPM          int            // BPM is floor(Beats*SampleRate*60/TotalSamples).
	Beats        int            // Beats is the total number of beats.
	TotalSamples int            // TotalSamples is the length of the input.
	SampleRate   int            // SampleRate is the window size used.
	Windows      []WindowReport // Windows has one entry per completed window.
}

// Duration returns the input length in seconds.
func (r *Result) Duration() float64 {
	if r.SampleRate == 0 {
		return 0
	}
	return float64(r.TotalSamples) / float64(r.SampleRate)
}

// Detector estimates tempo with the energy-variance method.
// It holds no per-run state and may be shared between goroutines.
type Detector struct {
	cfg Config
}

// New creates a Detector after validating cfg. A zero Stride follows
// SampleRate.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg.Resolved()}, nil
}

// Config returns the detector's parameters with Stride resolved.
func (d *Detector) Config() Config {
	return d.cfg
}

// Estimate runs the detector over every complete window of samples.
// samples is not modified. It returns ErrInvalidInput for an empty input and
// ErrInsufficientSamples when the input is shorter than one window.
func (d *Detector) Estimate(samples []float64) (*Result, error) {
	cfg := d.cfg
	total := len(samples)
	if total == 0 {
		return nil, ErrInvalidInput
	}

	numWindows := total / cfg.SampleRate
	if numWindows == 0 {
		return nil, fmt.Errorf("%w: got %d samples, need %d", ErrInsufficientSamples, total, cfg.SampleRate)
	}

	model := cfg.threshold()
	energy := make([]float64, 0, numWindows*cfg.SampleRate)
	cursor := NewCursor(cfg.BlockSize)
	state := &BeatState{}

	result := &Result{
		TotalSamples: total,
		SampleRate:   cfg.SampleRate,
		Windows:      make([]WindowReport, 0, numWindows),
	}

	for w := 0; w < numWindows; w++ {
		end := (w + 1) * cfg.SampleRate
		energy = AppendEnergy(energy, samples[end-cfg.SampleRate:end], cfg.Gain)

		blocks, span := Aggregate(energy, cursor, cfg.BlockSize, cfg.BlockCount)
		stats := Stats(blocks)
		threshold := model.Threshold(stats)
		found := state.Count(blocks, threshold, cfg.RunLength)

		result.Windows = append(result.Windows, WindowReport{
			Index:       w,
			Span:        span,
			Mean:        stats.Mean,
			Variance:    stats.Variance,
			Sensitivity: model.Sensitivity(stats.Variance),
			Threshold:   threshold,
			Beats:       found,
		})

		cursor = cursor.Advance(cfg.Stride)
	}

	bpm, err := ComputeBPM(state.Beats, total, cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	result.Beats = state.Beats
	result.BPM = bpm

	return result, nil
}

// ComputeBPM returns floor(beats*sampleRate*60/totalSamples) using integer
// arithmetic. totalSamples must be positive.
func ComputeBPM(beats, totalSamples, sampleRate int) (int, error) {
	if totalSamples <= 0 {
		return 0, fmt.Errorf("%w: total samples %d", ErrInvalidInput, totalSamples)
	}
	if beats < 0 {
		return 0, fmt.Errorf("%w: negative beat count %d", ErrInvalidInput, beats)
	}
	return int(int64(beats) * int64(sampleRate) * 60 / int64(totalSamples)), nil
}
