package analyzer

import "math"

// PatternClass is the coarse fingerprint pattern label
type PatternClass string

const (
	PatternArch       PatternClass = "Arch"
	PatternTentedArch PatternClass = "Tented Arch"
	PatternLoop       PatternClass = "Loop"
	PatternWhorl      PatternClass = "Whorl"
	PatternUnknown    PatternClass = "Unknown"
)

const orientationEpsilon = 1e-9

// Classify maps singular point counts, and the dominant orientation as a fallback, to a pattern label
func Classify(core, delta int, orientation float64) PatternClass {
	if core < 0 || delta < 0 || math.IsNaN(orientation) || math.IsInf(orientation, 0) {
		return PatternUnknown
	}

	switch {
	case core == 0 && delta == 0:
		return PatternArch
	case core == 1 && delta == 0:
		return PatternTentedArch
	case core == 1 && delta == 1:
		return PatternLoop
	case core >= 2 || delta >= 2:
		return PatternWhorl
	}

	switch angle := math.Mod(math.Mod(orientation, 180)+180, 180); {
	case nearAngle(angle, 0) || nearAngle(angle, 180):
		return PatternLoop
	case nearAngle(angle, 45) || nearAngle(angle, 135):
		return PatternWhorl
	default:
		return PatternArch
	}
}

func nearAngle(angle, target float64) bool {
	return math.Abs(angle-target) <= orientationEpsilon
}
