package detector

// Energy returns the instantaneous energy of a sample.
func Energy(s, gain float64) float64 {
	return gain * s * s
}

// AppendEnergy appends the energy of every sample in src to dst.
// src is never modified.
func AppendEnergy(dst, src []float64, gain float64) []float64 {
	for _, s := range src {
		dst = append(dst, Energy(s, gain))
	}
	return dst
}
