package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/fingerprint-inspector-go/internal/analyzer"
	apperrors "github.com/anime-shed/fingerprint-inspector-go/internal/errors"
	"github.com/anime-shed/fingerprint-inspector-go/internal/imaging"
	"github.com/anime-shed/fingerprint-inspector-go/internal/logger"
	"github.com/anime-shed/fingerprint-inspector-go/internal/observer"
	"github.com/anime-shed/fingerprint-inspector-go/internal/repository"
	"github.com/anime-shed/fingerprint-inspector-go/internal/strategy"
	"github.com/anime-shed/fingerprint-inspector-go/pkg/models"
	"github.com/anime-shed/fingerprint-inspector-go/pkg/validation"
)

// Operation names reported to observers
const (
	OpPreprocess = "preprocess"
	OpDetect     = "detect"
	OpMerge      = "merge"
	OpClassify   = "classify"
)

const timestampFormat = "2006-01-02T15:04:05Z07:00"

// FingerprintService exposes the pipeline entry points with input resolution and persistence
type FingerprintService interface {
	Preprocess(ctx context.Context, input *models.ImageInput) (*models.PreprocessResponse, error)
	Detect(ctx context.Context, input *models.ImageInput) (*models.DetectionResponse, error)
	Merge(ctx context.Context, left, middle, right *models.ImageInput) (*models.MergeResponse, error)
	Classify(ctx context.Context, input *models.ImageInput) (*models.ClassificationResponse, error)

	Metrics() observer.MetricsSnapshot
	PoolStats() analyzer.PoolStats
}

// Dependencies are the collaborators of the fingerprint service
type Dependencies struct {
	Engine          analyzer.Engine
	Pool            *analyzer.WorkerPool
	Images          repository.ImageRepository
	Artifacts       repository.ArtifactRepository
	Classifier      *strategy.AnalysisContext
	Quality         *validation.QualityValidator
	Events          observer.Subject
	Metrics         *observer.MetricsObserver
	AnalysisTimeout time.Duration
}

type fingerprintService struct {
	engine     analyzer.Engine
	pool       *analyzer.WorkerPool
	images     repository.ImageRepository
	artifacts  repository.ArtifactRepository
	classifier *strategy.AnalysisContext
	quality    *validation.QualityValidator
	events     observer.Subject
	counters   *observer.MetricsObserver
	timeout    time.Duration
	log        *logrus.Entry
}

// NewFingerprintService creates a new fingerprint service. Deps.Pool must be started.
func NewFingerprintService(deps Dependencies) FingerprintService {
	if deps.Quality == nil {
		deps.Quality = validation.NewQualityValidator()
	}
	if deps.Events == nil {
		deps.Events = observer.NewEventPublisher()
	}
	if deps.Metrics == nil {
		deps.Metrics = observer.NewMetricsObserver()
		deps.Events.Subscribe(deps.Metrics)
	}
	return &fingerprintService{
		engine:     deps.Engine,
		pool:       deps.Pool,
		images:     deps.Images,
		artifacts:  deps.Artifacts,
		classifier: deps.Classifier,
		quality:    deps.Quality,
		events:     deps.Events,
		counters:   deps.Metrics,
		timeout:    deps.AnalysisTimeout,
		log:        logger.WithComponent("service"),
	}
}

func (s *fingerprintService) Preprocess(ctx context.Context, input *models.ImageInput) (*models.PreprocessResponse, error) {
	start := time.Now()
	name := input.DisplayName()
	s.notify(ctx, observer.OperationStarted, OpPreprocess, name, 0, nil)

	src, appErr := s.resolve(ctx, OpPreprocess, input)
	if appErr != nil {
		return nil, s.failed(ctx, OpPreprocess, name, start, appErr)
	}

	var outcome analyzer.Outcome[analyzer.PreprocessingResult]
	if appErr := s.run(ctx, func(context.Context) { outcome = s.engine.Preprocess(src) }); appErr != nil {
		return nil, s.failed(ctx, OpPreprocess, name, start, appErr)
	}
	if !outcome.OK() {
		return nil, s.failed(ctx, OpPreprocess, name, start, outcome.Err)
	}

	id := uuid.NewString()
	result := outcome.Value
	key := fmt.Sprintf("enhanced_fingerprints/%s_%s_enhanced.png", baseName(src.Name()), shortID(id))
	location, err := s.artifacts.SaveImage(ctx, key, result.Enhanced)
	if err != nil {
		return nil, s.failed(ctx, OpPreprocess, name, start, apperrors.NewResourceError("failed to persist enhanced image", err))
	}
	s.notify(ctx, observer.ArtifactStored, OpPreprocess, name, 0, map[string]interface{}{"location": location})

	response := &models.PreprocessResponse{
		ID:                id,
		Source:            name,
		Timestamp:         start.UTC().Format(timestampFormat),
		ProcessingTimeSec: time.Since(start).Seconds(),
		Status:            outcome.Status,
		EnhancedImage:     location,
		OriginalSize:      result.OriginalSize,
		ProcessedSize:     result.ProcessedSize,
		Quality:           result.Quality,
		Steps:             result.Steps,
		QualityIssues:     s.quality.ValidateFingerprintQuality(result.Quality, result.ProcessedSize),
		Warnings:          outcome.Warnings,
	}
	if response.QualityIssues == nil {
		response.QualityIssues = []validation.QualityIssue{}
	}

	s.finished(ctx, OpPreprocess, name, start, outcome.Status, outcome.Warnings)
	return response, nil
}

func (s *fingerprintService) Detect(ctx context.Context, input *models.ImageInput) (*models.DetectionResponse, error) {
	start := time.Now()
	name := input.DisplayName()
	s.notify(ctx, observer.OperationStarted, OpDetect, name, 0, nil)

	src, appErr := s.resolve(ctx, OpDetect, input)
	if appErr != nil {
		return nil, s.failed(ctx, OpDetect, name, start, appErr)
	}

	var outcome analyzer.Outcome[analyzer.RidgeDetectionResult]
	if appErr := s.run(ctx, func(context.Context) { outcome = s.engine.DetectRidgesAndMinutiae(src) }); appErr != nil {
		return nil, s.failed(ctx, OpDetect, name, start, appErr)
	}
	if !outcome.OK() {
		return nil, s.failed(ctx, OpDetect, name, start, outcome.Err)
	}

	record := &repository.DetectionRecord{
		ID:                uuid.NewString(),
		Source:            name,
		Timestamp:         start.UTC().Format(timestampFormat),
		ProcessingTimeSec: time.Since(start).Seconds(),
		Status:            string(outcome.Status),
		Detection:         outcome.Value,
		Warnings:          outcome.Warnings,
	}
	location, err := s.artifacts.SaveDetectionRecord(ctx, record)
	if err != nil {
		return nil, s.failed(ctx, OpDetect, name, start, apperrors.NewResourceError("failed to persist detection record", err))
	}
	s.notify(ctx, observer.ArtifactStored, OpDetect, name, 0, map[string]interface{}{"location": location})

	s.finished(ctx, OpDetect, name, start, outcome.Status, outcome.Warnings)
	return &models.DetectionResponse{
		ID:                record.ID,
		Source:            name,
		Timestamp:         record.Timestamp,
		ProcessingTimeSec: record.ProcessingTimeSec,
		Status:            outcome.Status,
		Record:            location,
		Detection:         outcome.Value,
		Warnings:          outcome.Warnings,
	}, nil
}

func (s *fingerprintService) Merge(ctx context.Context, left, middle, right *models.ImageInput) (*models.MergeResponse, error) {
	start := time.Now()
	name := strings.Join(nonEmpty(left.DisplayName(), middle.DisplayName(), right.DisplayName()), "+")
	s.notify(ctx, observer.OperationStarted, OpMerge, name, 0, nil)

	if left == nil || right == nil {
		return nil, s.failed(ctx, OpMerge, name, start, apperrors.NewValidationError("left and right images are required", nil))
	}

	parts := 2
	var sources [3]imaging.Source
	for i, input := range []*models.ImageInput{left, middle, right} {
		if input == nil {
			continue
		}
		src, appErr := s.resolve(ctx, OpMerge, input)
		if appErr != nil {
			return nil, s.failed(ctx, OpMerge, name, start, appErr)
		}
		sources[i] = src
	}
	if middle != nil {
		parts = 3
	}

	var outcome analyzer.Outcome[analyzer.MergeResult]
	if appErr := s.run(ctx, func(context.Context) { outcome = s.engine.Merge(sources[0], sources[1], sources[2]) }); appErr != nil {
		return nil, s.failed(ctx, OpMerge, name, start, appErr)
	}
	if !outcome.OK() {
		return nil, s.failed(ctx, OpMerge, name, start, outcome.Err)
	}

	id := uuid.NewString()
	result := outcome.Value
	location, err := s.artifacts.SaveImage(ctx, fmt.Sprintf("merged_fingerprints/merged_fingerprint_%s.png", id), result.Merged)
	if err != nil {
		return nil, s.failed(ctx, OpMerge, name, start, apperrors.NewResourceError("failed to persist merged image", err))
	}
	s.notify(ctx, observer.ArtifactStored, OpMerge, name, 0, map[string]interface{}{"location": location})

	s.finished(ctx, OpMerge, name, start, outcome.Status, outcome.Warnings)
	return &models.MergeResponse{
		ID:                id,
		Timestamp:         start.UTC().Format(timestampFormat),
		ProcessingTimeSec: time.Since(start).Seconds(),
		Status:            outcome.Status,
		Parts:             parts,
		MergedImage:       location,
		Quality:           result.Quality,
		Width:             result.Width,
		Height:            result.Height,
		Warnings:          outcome.Warnings,
	}, nil
}

func (s *fingerprintService) Classify(ctx context.Context, input *models.ImageInput) (*models.ClassificationResponse, error) {
	start := time.Now()
	name := input.DisplayName()
	s.notify(ctx, observer.OperationStarted, OpClassify, name, 0, nil)

	src, appErr := s.resolve(ctx, OpClassify, input)
	if appErr != nil {
		return nil, s.failed(ctx, OpClassify, name, start, appErr)
	}

	var result *strategy.Classification
	var classifyErr error
	if appErr := s.run(ctx, func(jobCtx context.Context) {
		result, classifyErr = s.classifier.ExecuteAnalysis(jobCtx, src)
	}); appErr != nil {
		return nil, s.failed(ctx, OpClassify, name, start, appErr)
	}
	if classifyErr != nil {
		appErr, ok := apperrors.As(classifyErr)
		if !ok {
			appErr = apperrors.NewInternalError("classification failed", classifyErr)
		}
		return nil, s.failed(ctx, OpClassify, name, start, appErr)
	}

	status := analyzer.StatusSuccess
	if len(result.Warnings) > 0 {
		status = analyzer.StatusPartial
	}

	s.finished(ctx, OpClassify, name, start, status, result.Warnings)
	return &models.ClassificationResponse{
		ID:                uuid.NewString(),
		Source:            name,
		Timestamp:         start.UTC().Format(timestampFormat),
		ProcessingTimeSec: time.Since(start).Seconds(),
		Status:            status,
		Classification:    *result,
	}, nil
}

func (s *fingerprintService) Metrics() observer.MetricsSnapshot {
	return s.counters.GetMetrics()
}

func (s *fingerprintService) PoolStats() analyzer.PoolStats {
	return s.pool.GetStats()
}

// run executes job on the worker pool under the analysis deadline.
// A job that outlives the deadline keeps its worker but its result is dropped.
func (s *fingerprintService) run(ctx context.Context, job func(ctx context.Context)) *apperrors.AppError {
	jobCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.pool.Do(jobCtx, func() { job(jobCtx) })
	switch {
	case err == nil:
		return nil
	case errors.Is(err, analyzer.ErrPoolClosed):
		return apperrors.NewInternalError("service is shutting down", err)
	case errors.Is(err, context.DeadlineExceeded):
		s.log.WithField("timeout", s.timeout.String()).Warn("Analysis deadline exceeded, result will be discarded")
		return apperrors.NewTimeoutError(fmt.Sprintf("analysis exceeded %s", s.timeout), err)
	default:
		return apperrors.NewTimeoutError("analysis cancelled", err)
	}
}

// resolve turns an inline upload or a reference into a source
func (s *fingerprintService) resolve(ctx context.Context, op string, input *models.ImageInput) (imaging.Source, *apperrors.AppError) {
	if input == nil {
		return nil, apperrors.NewValidationError("no image supplied", nil)
	}
	if input.Inline() {
		return imaging.FromBytes(input.DisplayName(), input.Data), nil
	}

	src, err := s.images.Resolve(ctx, input.Ref)
	if err != nil {
		appErr := resolveError(err)
		s.notify(ctx, observer.ImageResolveFailed, op, input.Ref, 0, map[string]interface{}{"error": appErr.Error()})
		return nil, appErr
	}
	s.notify(ctx, observer.ImageResolved, op, input.Ref, 0, nil)
	return src, nil
}

// resolveError maps repository failures onto the error taxonomy
func resolveError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, repository.ErrInvalidImageURL):
		if appErr, ok := apperrors.As(err); ok {
			return appErr
		}
		return apperrors.NewValidationError("invalid image reference", err)
	case errors.Is(err, repository.ErrImageNotFound):
		return apperrors.NewNotFoundError("image not found", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperrors.NewTimeoutError("image fetch timed out", err)
	default:
		return apperrors.NewNetworkError("failed to fetch image", err)
	}
}

func (s *fingerprintService) failed(ctx context.Context, op, name string, start time.Time, appErr *apperrors.AppError) *apperrors.AppError {
	s.notify(ctx, observer.OperationFailed, op, name, time.Since(start), map[string]interface{}{
		"error":      appErr.Error(),
		"error_type": string(appErr.Type),
	})
	return appErr
}

func (s *fingerprintService) finished(ctx context.Context, op, name string, start time.Time, status analyzer.Status, warnings []string) {
	eventType := observer.OperationCompleted
	if status == analyzer.StatusPartial {
		eventType = observer.OperationPartial
	}
	s.notify(ctx, eventType, op, name, time.Since(start), map[string]interface{}{"warnings": len(warnings)})
}

func (s *fingerprintService) notify(ctx context.Context, eventType observer.EventType, op, name string, elapsed time.Duration, metadata map[string]interface{}) {
	event := observer.FingerprintEvent{
		EventType:      eventType,
		Timestamp:      time.Now(),
		Operation:      op,
		Source:         name,
		ProcessingTime: elapsed,
		Metadata:       metadata,
	}
	if eventType == observer.OperationFailed || eventType == observer.ImageResolveFailed {
		if msg, ok := metadata["error"].(string); ok {
			event.ErrorMessage = msg
		}
	}
	s.events.NotifyObservers(ctx, event)
}

// baseName strips directory and extension and keeps artifact keys to a safe alphabet
func baseName(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "fingerprint"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
}

func shortID(id string) string {
	return strings.ReplaceAll(id, "-", "")[:12]
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
