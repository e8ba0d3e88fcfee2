package validation

import (
	"github.com/anime-shed/fingerprint-inspector-go/internal/analyzer"
)

// QualityThresholds defines configurable thresholds for capture quality gating
type QualityThresholds struct {
	// Sharpness thresholds (Laplacian variance)
	MinSharpness float64
	MaxSharpness float64

	// Contrast threshold (intensity standard deviation)
	MinContrast float64

	// Brightness thresholds (mean intensity)
	MinBrightness float64
	MaxBrightness float64

	// Mean absolute change introduced by denoising
	MaxNoiseLevel float64

	// Percentage of strong ridge gradients
	MinRidgeClarity float64

	// Weighted overall score
	MinOverallQuality float64

	// Resolution thresholds
	MinWidth  int
	MinHeight int
}

// DefaultQualityThresholds returns the default quality thresholds
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		MinSharpness:      100.0,
		MaxSharpness:      5000.0, // above this the capture is mostly sensor noise
		MinContrast:       30.0,
		MinBrightness:     50.0,
		MaxBrightness:     200.0,
		MaxNoiseLevel:     15.0,
		MinRidgeClarity:   10.0,
		MinOverallQuality: 40.0,
		MinWidth:          150,
		MinHeight:         150,
	}
}

// QualityValidator turns capture measurements into user facing issues
type QualityValidator struct {
	thresholds QualityThresholds
}

// NewQualityValidator creates a new quality validator with default thresholds
func NewQualityValidator() *QualityValidator {
	return &QualityValidator{
		thresholds: DefaultQualityThresholds(),
	}
}

// NewQualityValidatorWithThresholds creates a quality validator with custom thresholds
func NewQualityValidatorWithThresholds(thresholds QualityThresholds) *QualityValidator {
	return &QualityValidator{
		thresholds: thresholds,
	}
}

// QualityIssue represents a quality validation issue
type QualityIssue struct {
	Type        string  `json:"type" cbor:"type"`
	Message     string  `json:"message" cbor:"message"`
	Severity    string  `json:"severity" cbor:"severity"` // "error", "warning", "info"
	ActualValue float64 `json:"actual_value,omitempty" cbor:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty" cbor:"threshold,omitempty"`
}

// ValidateFingerprintQuality checks the metrics of one capture against the thresholds
func (qv *QualityValidator) ValidateFingerprintQuality(metrics analyzer.QualityMetrics, size analyzer.Size) []QualityIssue {
	var issues []QualityIssue

	// 1. Sharpness
	if metrics.Sharpness < qv.thresholds.MinSharpness {
		issues = append(issues, QualityIssue{
			Type:        "low_sharpness",
			Message:     "Fingerprint is blurry. Keep the finger still on the sensor.",
			Severity:    "error",
			ActualValue: metrics.Sharpness,
			Threshold:   qv.thresholds.MinSharpness,
		})
	} else if metrics.Sharpness > qv.thresholds.MaxSharpness {
		issues = append(issues, QualityIssue{
			Type:        "over_sharpening",
			Message:     "Capture is dominated by high frequency noise. Clean the sensor surface.",
			Severity:    "warning",
			ActualValue: metrics.Sharpness,
			Threshold:   qv.thresholds.MaxSharpness,
		})
	}

	// 2. Contrast
	if metrics.Contrast < qv.thresholds.MinContrast {
		issues = append(issues, QualityIssue{
			Type:        "low_contrast",
			Message:     "Ridges are hard to tell from valleys. Press the finger more firmly.",
			Severity:    "error",
			ActualValue: metrics.Contrast,
			Threshold:   qv.thresholds.MinContrast,
		})
	}

	// 3. Brightness
	if metrics.Brightness < qv.thresholds.MinBrightness {
		issues = append(issues, QualityIssue{
			Type:        "too_dark",
			Message:     "Capture is too dark. The finger may be wet or pressed too hard.",
			Severity:    "error",
			ActualValue: metrics.Brightness,
			Threshold:   qv.thresholds.MinBrightness,
		})
	} else if metrics.Brightness > qv.thresholds.MaxBrightness {
		issues = append(issues, QualityIssue{
			Type:        "too_bright",
			Message:     "Capture is too light. The finger may be dry or barely touching.",
			Severity:    "error",
			ActualValue: metrics.Brightness,
			Threshold:   qv.thresholds.MaxBrightness,
		})
	}

	// 4. Noise
	if metrics.NoiseLevel > qv.thresholds.MaxNoiseLevel {
		issues = append(issues, QualityIssue{
			Type:        "noisy",
			Message:     "Capture is noisy. Clean the sensor and try again.",
			Severity:    "warning",
			ActualValue: metrics.NoiseLevel,
			Threshold:   qv.thresholds.MaxNoiseLevel,
		})
	}

	// 5. Ridge clarity
	if metrics.RidgeClarity < qv.thresholds.MinRidgeClarity {
		issues = append(issues, QualityIssue{
			Type:        "weak_ridges",
			Message:     "Ridge structure is faint.",
			Severity:    "warning",
			ActualValue: metrics.RidgeClarity,
			Threshold:   qv.thresholds.MinRidgeClarity,
		})
	}

	// 6. Overall score
	if metrics.OverallQuality < qv.thresholds.MinOverallQuality {
		issues = append(issues, QualityIssue{
			Type:        "low_quality",
			Message:     "Overall capture quality is too low for reliable matching.",
			Severity:    "error",
			ActualValue: metrics.OverallQuality,
			Threshold:   qv.thresholds.MinOverallQuality,
		})
	}

	// 7. Resolution
	if size.Width < qv.thresholds.MinWidth || size.Height < qv.thresholds.MinHeight {
		issues = append(issues, QualityIssue{
			Type:        "low_resolution",
			Message:     "Capture is too small. Use the full sensor area.",
			Severity:    "warning",
			ActualValue: float64(size.Width * size.Height),
			Threshold:   float64(qv.thresholds.MinWidth * qv.thresholds.MinHeight),
		})
	}

	return issues
}

// ConvertIssuesToMessages converts quality issues to plain messages
func (qv *QualityValidator) ConvertIssuesToMessages(issues []QualityIssue) []string {
	var messages []string
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}

// HasCriticalIssues checks if there are any critical (error severity) issues
func (qv *QualityValidator) HasCriticalIssues(issues []QualityIssue) bool {
	for _, issue := range issues {
		if issue.Severity == "error" {
			return true
		}
	}
	return false
}
