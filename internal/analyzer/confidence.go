package analyzer

import "math"

const (
	// DefaultConfidence is reported when the inputs cannot be scored
	DefaultConfidence = 0.75
	maxConfidence     = 0.99
)

// Score combines overall quality with the richness of the detected structure.
// The result lies in [0, 0.99].
func Score(overallQuality float64, minutiae, core, delta int) float64 {
	if math.IsNaN(overallQuality) || math.IsInf(overallQuality, 0) ||
		overallQuality < 0 || minutiae < 0 || core < 0 || delta < 0 {
		return DefaultConfidence
	}

	score := overallQuality/100 +
		math.Min(0.2, float64(minutiae)/50) +
		math.Min(0.1, float64(core+delta)/10)
	return clamp(score, 0, maxConfidence)
}
