// Package detector implements the windowed energy-variance beat detector.
// Samples are squared into energy, summed into blocks, and each one-second
// window's blocks are compared against a threshold derived from their
// variance. Sustained runs above the threshold count as beats.
package detector

import "fmt"

const (
	// DefaultSampleRate is the number of samples in one analysis window.
	DefaultSampleRate = 44100
	// DefaultBlockSize is the number of energy values summed into one block.
	DefaultBlockSize = 1024
	// DefaultBlockCount is the number of blocks per window.
	DefaultBlockCount = 43
	// DefaultRunLength is the number of consecutive loud blocks per beat.
	DefaultRunLength = 4
	// DefaultSlope is the variance coefficient of the sensitivity model.
	DefaultSlope = -0.0000015
	// DefaultIntercept is the constant term of the sensitivity model.
	DefaultIntercept = 1.5142857
	// DefaultGain scales the squared sample into an energy value.
	DefaultGain = 2.0
)

// Config holds the parameters of the energy detector.
type Config struct {
	// SampleRate is the number of samples in one window.
	// Default: 44100
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// BlockSize is the number of energy values per block.
	// Default: 1024
	BlockSize int `yaml:"block_size" json:"block_size"`

	// BlockCount is the number of blocks per window. BlockCount*BlockSize
	// does not have to equal SampleRate.
	// Default: 43
	BlockCount int `yaml:"block_count" json:"block_count"`

	// RunLength is the number of consecutive above-threshold blocks that
	// register one beat.
	// Default: 4
	RunLength int `yaml:"run_length" json:"run_length"`

	// Slope and Intercept define the sensitivity c = Slope*variance + Intercept.
	// Defaults: -0.0000015 and 1.5142857
	Slope     float64 `yaml:"slope" json:"slope"`
	Intercept float64 `yaml:"intercept" json:"intercept"`

	// Gain multiplies the squared sample.
	// Default: 2
	Gain float64 `yaml:"gain" json:"gain"`

	// Stride is how far the block cursor moves between windows. Zero means
	// SampleRate, which leaves SampleRate-BlockCount*BlockSize samples (68 with
	// defaults) unread at the end of every window. Set it to
	// BlockCount*BlockSize for gap-free block spans.
	// Default: 0 (SampleRate)
	Stride int `yaml:"stride" json:"stride"`
}

// DefaultConfig returns the reference detector parameters.
func DefaultConfig() Config {
	return Config{
		SampleRate: DefaultSampleRate,
		BlockSize:  DefaultBlockSize,
		BlockCount: DefaultBlockCount,
		RunLength:  DefaultRunLength,
		Slope:      DefaultSlope,
		Intercept:  DefaultIntercept,
		Gain:       DefaultGain,
	}
}

// Drift returns the number of samples skipped (positive) or re-read
// (negative) between the block spans of consecutive windows.
func (c Config) Drift() int {
	return c.Resolved().Stride - c.BlockCount*c.BlockSize
}

// Resolved returns c with a zero Stride replaced by SampleRate.
func (c Config) Resolved() Config {
	if c.Stride == 0 {
		c.Stride = c.SampleRate
	}
	return c
}

// Validate reports whether every size in the config is usable.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidConfig, c.SampleRate)
	case c.BlockSize <= 0:
		return fmt.Errorf("%w: block size must be positive, got %d", ErrInvalidConfig, c.BlockSize)
	case c.BlockCount <= 0:
		return fmt.Errorf("%w: block count must be positive, got %d", ErrInvalidConfig, c.BlockCount)
	case c.RunLength <= 0:
		return fmt.Errorf("%w: run length must be positive, got %d", ErrInvalidConfig, c.RunLength)
	case c.Stride < 0:
		return fmt.Errorf("%w: stride must not be negative, got %d", ErrInvalidConfig, c.Stride)
	}
	return nil
}

func (c Config) threshold() ThresholdModel {
	return ThresholdModel{Slope: c.Slope, Intercept: c.Intercept}
}
