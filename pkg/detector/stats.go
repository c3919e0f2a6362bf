package detector

import "gonum.org/v1/gonum/stat"

// WindowStats holds the mean and variance of a window's block energies.
type WindowStats struct {
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
}

// Mean returns the average block energy.
func Mean(blocks []float64) float64 {
	if len(blocks) == 0 {
		return 0
	}
	return stat.Mean(blocks, nil)
}

// Variance returns the population variance of blocks around mean.
func Variance(blocks []float64, mean float64) float64 {
	if len(blocks) == 0 {
		return 0
	}
	return stat.MomentAbout(2, blocks, mean, nil)
}

// Stats computes the mean and population variance of blocks.
func Stats(blocks []float64) WindowStats {
	if len(blocks) == 0 {
		return WindowStats{}
	}
	mean := Mean(blocks)
	return WindowStats{Mean: mean, Variance: Variance(blocks, mean)}
}
