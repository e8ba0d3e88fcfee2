package models

import (
	"github.com/anime-shed/fingerprint-inspector-go/internal/analyzer"
	"github.com/anime-shed/fingerprint-inspector-go/internal/strategy"
	"github.com/anime-shed/fingerprint-inspector-go/pkg/validation"
)

// PreprocessResponse is returned by the preprocessing endpoint
type PreprocessResponse struct {
	ID                string                    `json:"id" cbor:"id"`
	Source            string                    `json:"source" cbor:"source"`
	Timestamp         string                    `json:"timestamp" cbor:"timestamp"`
	ProcessingTimeSec float64                   `json:"processing_time_sec" cbor:"processing_time_sec"`
	Status            analyzer.Status           `json:"status" cbor:"status"`
	EnhancedImage     string                    `json:"enhanced_image" cbor:"enhanced_image"`
	OriginalSize      analyzer.Size             `json:"original_size" cbor:"original_size"`
	ProcessedSize     analyzer.Size             `json:"processed_size" cbor:"processed_size"`
	Quality           analyzer.QualityMetrics   `json:"quality_metrics" cbor:"quality_metrics"`
	Steps             []string                  `json:"preprocessing_steps" cbor:"preprocessing_steps"`
	QualityIssues     []validation.QualityIssue `json:"quality_issues" cbor:"quality_issues"`
	Warnings          []string                  `json:"warnings,omitempty" cbor:"warnings,omitempty"`
}

// DetectionResponse is returned by the ridge and minutiae endpoint
type DetectionResponse struct {
	ID                string                        `json:"id" cbor:"id"`
	Source            string                        `json:"source" cbor:"source"`
	Timestamp         string                        `json:"timestamp" cbor:"timestamp"`
	ProcessingTimeSec float64                       `json:"processing_time_sec" cbor:"processing_time_sec"`
	Status            analyzer.Status               `json:"status" cbor:"status"`
	Record            string                        `json:"record" cbor:"record"`
	Detection         analyzer.RidgeDetectionResult `json:"detection" cbor:"detection"`
	Warnings          []string                      `json:"warnings,omitempty" cbor:"warnings,omitempty"`
}

// MergeResponse is returned by the merge endpoint
type MergeResponse struct {
	ID                string                `json:"id" cbor:"id"`
	Timestamp         string                `json:"timestamp" cbor:"timestamp"`
	ProcessingTimeSec float64               `json:"processing_time_sec" cbor:"processing_time_sec"`
	Status            analyzer.Status       `json:"status" cbor:"status"`
	Parts             int                   `json:"parts" cbor:"parts"`
	MergedImage       string                `json:"merged_image" cbor:"merged_image"`
	Quality           analyzer.MergeQuality `json:"merge_quality" cbor:"merge_quality"`
	Width             int                   `json:"width" cbor:"width"`
	Height            int                   `json:"height" cbor:"height"`
	Warnings          []string              `json:"warnings,omitempty" cbor:"warnings,omitempty"`
}

// ClassificationResponse is returned by the classification endpoint
type ClassificationResponse struct {
	ID                string          `json:"id" cbor:"id"`
	Source            string          `json:"source" cbor:"source"`
	Timestamp         string          `json:"timestamp" cbor:"timestamp"`
	ProcessingTimeSec float64         `json:"processing_time_sec" cbor:"processing_time_sec"`
	Status            analyzer.Status `json:"status" cbor:"status"`
	strategy.Classification
}
