package detector

// ThresholdModel maps window variance to a beat-trigger threshold with the
// linear fit c = Slope*variance + Intercept. Erratic windows get a lower c.
type ThresholdModel struct {
	Slope     float64
	Intercept float64
}

// DefaultThresholdModel returns the reference sensitivity model.
func DefaultThresholdModel() ThresholdModel {
	return ThresholdModel{Slope: DefaultSlope, Intercept: DefaultIntercept}
}

// Sensitivity returns c for the given variance. It is not clamped.
func (m ThresholdModel) Sensitivity(variance float64) float64 {
	return m.Slope*variance + m.Intercept
}

// Threshold returns c*mean for the window.
func (m ThresholdModel) Threshold(s WindowStats) float64 {
	return m.Sensitivity(s.Variance) * s.Mean
}
