package analyzer

import (
	"image"

	"github.com/anime-shed/fingerprint-inspector-go/internal/imaging"
)

// Engine is the fingerprint pipeline. Implementations are safe for concurrent use.
type Engine interface {
	// Preprocess enhances a capture and measures its quality
	Preprocess(src imaging.Source) Outcome[PreprocessingResult]

	// DetectRidgesAndMinutiae extracts ridge pattern, minutiae, singular points and ridge count
	DetectRidgesAndMinutiae(src imaging.Source) Outcome[RidgeDetectionResult]

	// Merge stitches two or three partial captures; middle may be nil
	Merge(left, middle, right imaging.Source) Outcome[MergeResult]

	// Analyze runs preprocessing and detection, then classifies and scores the capture
	Analyze(src imaging.Source) Outcome[FingerprintReport]
}

// QualityAnalyzer measures an enhanced capture against its original
type QualityAnalyzer interface {
	Analyze(original, processed *image.Gray) (QualityMetrics, []string)
}

// RidgePatternDetector summarises ridge orientation and frequency
type RidgePatternDetector interface {
	Detect(gray *image.Gray) (RidgePatternAnalysis, error)
}

// MinutiaeExtractor finds ridge endings and bifurcations
type MinutiaeExtractor interface {
	Extract(gray *image.Gray) ([]MinutiaPoint, error)
}

// CoreDeltaDetector finds core and delta candidates
type CoreDeltaDetector interface {
	Detect(gray *image.Gray) (core, delta []SingularPoint, err error)
}

// RidgeCounter counts ridge-like contours
type RidgeCounter interface {
	Count(gray *image.Gray) (int, error)
}
