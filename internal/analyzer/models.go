package analyzer

import "image"

// Step names reported in PreprocessingResult.Steps, in execution order.
const (
	StepNormalization       = "normalization"
	StepNoiseReduction      = "noise_reduction"
	StepContrastEnhancement = "contrast_enhancement"
	StepGaussianFiltering   = "gaussian_filtering"
)

// Size is a raster's width and height in pixels
type Size struct {
	Width  int `json:"width" cbor:"width"`
	Height int `json:"height" cbor:"height"`
}

func sizeOf(img *image.Gray) Size {
	return Size{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
}

// QualityMetrics summarises how usable a capture is. OverallQuality is always within [0,100].
type QualityMetrics struct {
	Sharpness      float64 `json:"sharpness" cbor:"sharpness"`
	Contrast       float64 `json:"contrast" cbor:"contrast"`
	Brightness     float64 `json:"brightness" cbor:"brightness"`
	NoiseLevel     float64 `json:"noise_level" cbor:"noise_level"`
	RidgeClarity   float64 `json:"ridge_clarity" cbor:"ridge_clarity"`
	OverallQuality float64 `json:"overall_quality" cbor:"overall_quality"`
}

// PreprocessingResult is the enhanced capture with its measurements
type PreprocessingResult struct {
	Enhanced      *image.Gray    `json:"-" cbor:"-"`
	OriginalSize  Size           `json:"original_size" cbor:"original_size"`
	ProcessedSize Size           `json:"processed_size" cbor:"processed_size"`
	Quality       QualityMetrics `json:"quality_metrics" cbor:"quality_metrics"`
	Steps         []string       `json:"preprocessing_steps" cbor:"preprocessing_steps"`
}

// RidgePatternAnalysis is the output of the oriented filter bank
type RidgePatternAnalysis struct {
	DominantOrientation float64 `json:"dominant_orientation" cbor:"dominant_orientation"`
	RidgeFrequency      float64 `json:"ridge_frequency" cbor:"ridge_frequency"`
	PatternStrength     float64 `json:"pattern_strength" cbor:"pattern_strength"`
}

// MinutiaKind distinguishes ridge endings from bifurcations
type MinutiaKind string

const (
	MinutiaEnding      MinutiaKind = "ending"
	MinutiaBifurcation MinutiaKind = "bifurcation"
)

// MinutiaPoint is a skeleton pixel classified by its neighbour count
type MinutiaPoint struct {
	Kind MinutiaKind `json:"type" cbor:"type"`
	X    int         `json:"x" cbor:"x"`
	Y    int         `json:"y" cbor:"y"`
}

// SingularPoint is a core or delta candidate
type SingularPoint struct {
	X int `json:"x" cbor:"x"`
	Y int `json:"y" cbor:"y"`
}

// RidgeDetectionResult aggregates the structural detectors.
// Minutiae holds at most 50 points, CorePoints and DeltaPoints at most 3 each.
type RidgeDetectionResult struct {
	RidgeCount   int                  `json:"ridge_count" cbor:"ridge_count"`
	Minutiae     []MinutiaPoint       `json:"minutiae_points" cbor:"minutiae_points"`
	CorePoints   []SingularPoint      `json:"core_points" cbor:"core_points"`
	DeltaPoints  []SingularPoint      `json:"delta_points" cbor:"delta_points"`
	RidgePattern RidgePatternAnalysis `json:"ridge_pattern_analysis" cbor:"ridge_pattern_analysis"`
}

// MergeQuality extends QualityMetrics with seam statistics
type MergeQuality struct {
	QualityMetrics
	EdgeContinuity float64 `json:"edge_continuity" cbor:"edge_continuity"`
	MergeSuccess   float64 `json:"merge_success" cbor:"merge_success"`
}

// MergeResult is the composite of two or three partial captures
type MergeResult struct {
	Merged  *image.Gray  `json:"-" cbor:"-"`
	Quality MergeQuality `json:"merge_quality" cbor:"merge_quality"`
	Width   int          `json:"width" cbor:"width"`
	Height  int          `json:"height" cbor:"height"`
}

// FingerprintReport is the full analysis of one capture
type FingerprintReport struct {
	Classification PatternClass         `json:"classification" cbor:"classification"`
	Confidence     float64              `json:"confidence" cbor:"confidence"`
	Quality        QualityMetrics       `json:"quality_metrics" cbor:"quality_metrics"`
	Detection      RidgeDetectionResult `json:"detection" cbor:"detection"`
}
