package analyzer

import (
	"fmt"
	"image"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/anime-shed/fingerprint-inspector-go/internal/errors"
	"github.com/anime-shed/fingerprint-inspector-go/internal/imaging"
	"github.com/anime-shed/fingerprint-inspector-go/internal/logger"
)

// engine implements Engine and orchestrates all components
type engine struct {
	opts         Options
	preprocessor *preprocessor
	quality      QualityAnalyzer
	pattern      RidgePatternDetector
	minutiae     MinutiaeExtractor
	singular     CoreDeltaDetector
	ridges       RidgeCounter
	merger       *merger
	log          *logrus.Entry
}

// NewEngine creates a pipeline; zero option fields take their defaults
func NewEngine(opts Options) Engine {
	opts = opts.Normalized()
	pre := newPreprocessor(opts)
	quality := newQualityAnalyzer()

	return &engine{
		opts:         opts,
		preprocessor: pre,
		quality:      quality,
		pattern:      newRidgePatternDetector(opts),
		minutiae:     newMinutiaeExtractor(opts),
		singular:     newCoreDeltaDetector(opts),
		ridges:       newRidgeCounter(opts),
		merger:       newMerger(opts, pre, quality),
		log:          logger.WithComponent("engine"),
	}
}

// Preprocess decodes src, runs the four enhancement stages and measures the result
func (e *engine) Preprocess(src imaging.Source) (out Outcome[PreprocessingResult]) {
	start := time.Now()
	defer recoverInto(e.log, "preprocess", &out)

	gray, appErr := load(src)
	if appErr != nil {
		return fail[PreprocessingResult](e.logFailure("preprocess", src, appErr))
	}

	enhanced, steps, warnings, appErr := e.preprocessor.Enhance(gray)
	if appErr != nil {
		return fail[PreprocessingResult](e.logFailure("preprocess", src, appErr))
	}

	metrics, warns := e.quality.Analyze(gray, enhanced)
	warnings = append(warnings, warns...)

	result := PreprocessingResult{
		Enhanced:      enhanced,
		OriginalSize:  sizeOf(gray),
		ProcessedSize: sizeOf(enhanced),
		Quality:       metrics,
		Steps:         steps,
	}
	e.log.WithFields(logrus.Fields{
		"source":          sourceName(src),
		"overall_quality": metrics.OverallQuality,
		"warnings":        len(warnings),
		"duration_ms":     time.Since(start).Milliseconds(),
	}).Info("Preprocessing completed")
	return succeed(result, warnings)
}

// DetectRidgesAndMinutiae normalizes and denoises src, then runs every structural
// detector. A failing detector contributes its zero value and a warning.
func (e *engine) DetectRidgesAndMinutiae(src imaging.Source) (out Outcome[RidgeDetectionResult]) {
	start := time.Now()
	defer recoverInto(e.log, "detect", &out)

	gray, appErr := load(src)
	if appErr != nil {
		return fail[RidgeDetectionResult](e.logFailure("detect", src, appErr))
	}

	result, warnings, appErr := e.detect(gray)
	if appErr != nil {
		return fail[RidgeDetectionResult](e.logFailure("detect", src, appErr))
	}

	e.log.WithFields(logrus.Fields{
		"source":      sourceName(src),
		"minutiae":    len(result.Minutiae),
		"ridge_count": result.RidgeCount,
		"warnings":    len(warnings),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Detection completed")
	return succeed(result, warnings)
}

func (e *engine) detect(gray *image.Gray) (RidgeDetectionResult, []string, *apperrors.AppError) {
	prepared, _, warnings, appErr := e.preprocessor.NormalizeAndDenoise(gray)
	if appErr != nil {
		return RidgeDetectionResult{}, nil, appErr
	}

	result := RidgeDetectionResult{
		Minutiae:    []MinutiaPoint{},
		CorePoints:  []SingularPoint{},
		DeltaPoints: []SingularPoint{},
	}
	degrade := func(detector string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s unavailable: %v", detector, err))
		e.log.WithError(err).WithField("detector", detector).Warn("Detector degraded to empty result")
	}

	if pattern, err := e.pattern.Detect(prepared); err != nil {
		degrade("ridge_pattern_analysis", err)
	} else {
		result.RidgePattern = pattern
	}
	if minutiae, err := e.minutiae.Extract(prepared); err != nil {
		degrade("minutiae_points", err)
	} else {
		result.Minutiae = minutiae
	}
	if count, err := e.ridges.Count(prepared); err != nil {
		degrade("ridge_count", err)
	} else {
		result.RidgeCount = count
	}
	if core, delta, err := e.singular.Detect(prepared); err != nil {
		degrade("core_delta_points", err)
	} else {
		result.CorePoints, result.DeltaPoints = core, delta
	}

	return result, warnings, nil
}

// Merge decodes the parts and stitches them left to right. Any failure fails the whole call.
func (e *engine) Merge(left, middle, right imaging.Source) (out Outcome[MergeResult]) {
	start := time.Now()
	defer recoverInto(e.log, "merge", &out)

	if left == nil || right == nil {
		return fail[MergeResult](apperrors.NewValidationError("left and right parts are required", nil))
	}

	sources := []imaging.Source{left}
	if middle != nil {
		sources = append(sources, middle)
	}
	sources = append(sources, right)

	parts := make([]*image.Gray, 0, len(sources))
	for _, src := range sources {
		gray, appErr := load(src)
		if appErr != nil {
			return fail[MergeResult](e.logFailure("merge", src, appErr))
		}
		parts = append(parts, gray)
	}

	result, warnings, appErr := e.merger.Merge(parts...)
	if appErr != nil {
		return fail[MergeResult](e.logFailure("merge", left, appErr))
	}

	e.log.WithFields(logrus.Fields{
		"parts":         len(parts),
		"width":         result.Width,
		"height":        result.Height,
		"merge_success": result.Quality.MergeSuccess,
		"duration_ms":   time.Since(start).Milliseconds(),
	}).Info("Merge completed")
	return succeed(result, warnings)
}

// Analyze produces the full report: quality from preprocessing, structure from
// detection on the same decoded capture, then label and confidence.
func (e *engine) Analyze(src imaging.Source) (out Outcome[FingerprintReport]) {
	defer recoverInto(e.log, "analyze", &out)

	gray, appErr := load(src)
	if appErr != nil {
		return fail[FingerprintReport](e.logFailure("analyze", src, appErr))
	}
	loaded := imaging.FromImage(sourceName(src), gray)

	pre := e.Preprocess(loaded)
	if !pre.OK() {
		return fail[FingerprintReport](pre.Err)
	}
	det := e.DetectRidgesAndMinutiae(loaded)
	if !det.OK() {
		return fail[FingerprintReport](det.Err)
	}

	detection := det.Value
	cores, deltas := len(detection.CorePoints), len(detection.DeltaPoints)
	report := FingerprintReport{
		Classification: Classify(cores, deltas, detection.RidgePattern.DominantOrientation),
		Confidence:     Score(pre.Value.Quality.OverallQuality, len(detection.Minutiae), cores, deltas),
		Quality:        pre.Value.Quality,
		Detection:      detection,
	}

	warnings := append(append([]string{}, pre.Warnings...), det.Warnings...)
	return succeed(report, dedupe(warnings))
}

func (e *engine) logFailure(op string, src imaging.Source, err *apperrors.AppError) *apperrors.AppError {
	e.log.WithFields(logrus.Fields{
		"operation":  op,
		"source":     sourceName(src),
		"error_type": err.Type,
	}).WithError(err).Error("Pipeline operation failed")
	return err
}

// recoverInto turns a panic inside an entry point into an internal failure.
// It must be deferred directly.
func recoverInto[T any](log *logrus.Entry, op string, out *Outcome[T]) {
	if r := recover(); r != nil {
		log.WithFields(logrus.Fields{"operation": op, "panic": r}).Error("Recovered from panic in pipeline")
		*out = fail[T](apperrors.NewInternalError(fmt.Sprintf("%s failed unexpectedly", op), fmt.Errorf("panic: %v", r)))
	}
}

// load decodes src, mapping unexpected errors to DecodeError
func load(src imaging.Source) (*image.Gray, *apperrors.AppError) {
	if src == nil {
		return nil, apperrors.NewValidationError("no image supplied", nil)
	}
	gray, err := src.Load()
	if err != nil {
		if appErr, ok := apperrors.As(err); ok {
			return nil, appErr
		}
		return nil, apperrors.NewDecodeError("unable to load image", err)
	}
	return gray, nil
}

func sourceName(src imaging.Source) string {
	if src == nil {
		return ""
	}
	return src.Name()
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
