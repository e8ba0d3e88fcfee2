package strategy

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/fingerprint-inspector-go/internal/analyzer"
	apperrors "github.com/anime-shed/fingerprint-inspector-go/internal/errors"
	"github.com/anime-shed/fingerprint-inspector-go/internal/imaging"
)

// Classification is the pattern class assigned to one capture by a strategy
type Classification struct {
	Label         string             `json:"classification" cbor:"classification"`
	RidgeCount    int                `json:"ridge_count" cbor:"ridge_count"`
	Confidence    float64            `json:"confidence" cbor:"confidence"`
	Probabilities map[string]float64 `json:"probabilities,omitempty" cbor:"probabilities,omitempty"`
	Strategy      string             `json:"strategy" cbor:"strategy"`
	Warnings      []string           `json:"warnings,omitempty" cbor:"warnings,omitempty"`
}

// AnalysisStrategy defines the interface for different classification strategies
type AnalysisStrategy interface {
	Analyze(ctx context.Context, src imaging.Source) (*Classification, error)
	GetStrategyName() string
}

// PipelineStrategy classifies with the local ridge and singular point pipeline
type PipelineStrategy struct {
	engine analyzer.Engine
}

// NewPipelineStrategy creates a new pipeline strategy
func NewPipelineStrategy(engine analyzer.Engine) AnalysisStrategy {
	return &PipelineStrategy{
		engine: engine,
	}
}

// Analyze runs the full local analysis
func (s *PipelineStrategy) Analyze(ctx context.Context, src imaging.Source) (*Classification, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewTimeoutError("classification cancelled", err)
	}

	outcome := s.engine.Analyze(src)
	if !outcome.OK() {
		return nil, outcome.Err
	}

	report := outcome.Value
	return &Classification{
		Label:         string(report.Classification),
		RidgeCount:    report.Detection.RidgeCount,
		Confidence:    report.Confidence,
		Probabilities: map[string]float64{string(report.Classification): report.Confidence},
		Strategy:      s.GetStrategyName(),
		Warnings:      outcome.Warnings,
	}, nil
}

// GetStrategyName returns the strategy name
func (s *PipelineStrategy) GetStrategyName() string {
	return "pipeline"
}

// FallbackStrategy consults primary first and fallback when primary cannot answer
type FallbackStrategy struct {
	primary  AnalysisStrategy
	fallback AnalysisStrategy
	log      *logrus.Entry
}

// NewFallbackStrategy creates a strategy that degrades from primary to fallback
func NewFallbackStrategy(primary, fallback AnalysisStrategy, log *logrus.Entry) AnalysisStrategy {
	return &FallbackStrategy{
		primary:  primary,
		fallback: fallback,
		log:      log,
	}
}

// Analyze returns the primary answer, or the fallback answer with a warning.
// Inputs that are themselves invalid are not retried.
func (s *FallbackStrategy) Analyze(ctx context.Context, src imaging.Source) (*Classification, error) {
	result, err := s.primary.Analyze(ctx, src)
	if err == nil {
		return result, nil
	}
	if apperrors.IsType(err, apperrors.ErrorTypeDecode) || apperrors.IsType(err, apperrors.ErrorTypeValidation) || ctx.Err() != nil {
		return nil, err
	}

	s.log.WithError(err).WithFields(logrus.Fields{
		"primary":  s.primary.GetStrategyName(),
		"fallback": s.fallback.GetStrategyName(),
	}).Warn("Primary classifier failed, using fallback")

	result, fallbackErr := s.fallback.Analyze(ctx, src)
	if fallbackErr != nil {
		return nil, fallbackErr
	}
	result.Warnings = append(result.Warnings, fmt.Sprintf("%s classifier unavailable: %v", s.primary.GetStrategyName(), err))
	return result, nil
}

// GetStrategyName returns the strategy name
func (s *FallbackStrategy) GetStrategyName() string {
	return s.primary.GetStrategyName() + "_with_fallback"
}

// AnalysisContext manages the analysis strategy
type AnalysisContext struct {
	mu       sync.RWMutex
	strategy AnalysisStrategy
}

// NewAnalysisContext creates a new analysis context
func NewAnalysisContext(strategy AnalysisStrategy) *AnalysisContext {
	return &AnalysisContext{
		strategy: strategy,
	}
}

// SetStrategy changes the analysis strategy
func (c *AnalysisContext) SetStrategy(strategy AnalysisStrategy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strategy = strategy
}

// ExecuteAnalysis performs analysis using the current strategy
func (c *AnalysisContext) ExecuteAnalysis(ctx context.Context, src imaging.Source) (*Classification, error) {
	c.mu.RLock()
	strategy := c.strategy
	c.mu.RUnlock()
	return strategy.Analyze(ctx, src)
}

// GetCurrentStrategy returns the current strategy name
func (c *AnalysisContext) GetCurrentStrategy() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.strategy.GetStrategyName()
}
