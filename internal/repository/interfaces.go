package repository

import (
	"context"
	"image"

	"github.com/anime-shed/fingerprint-inspector-go/internal/analyzer"
	"github.com/anime-shed/fingerprint-inspector-go/internal/imaging"
)

// ImageRepository defines the interface for capture data access operations
type ImageRepository interface {
	// Resolve loads the capture named by ref, an http(s) URL or an artifact:// reference
	Resolve(ctx context.Context, ref string) (imaging.Source, error)

	// ValidateImageRef validates if the provided reference is acceptable
	ValidateImageRef(ref string) error
}

// ArtifactRepository defines the interface for persisted pipeline outputs
type ArtifactRepository interface {
	// SaveImage stores img as PNG under key and returns its location
	SaveImage(ctx context.Context, key string, img *image.Gray) (string, error)

	// SaveDetectionRecord stores a detection result and returns its location
	SaveDetectionRecord(ctx context.Context, record *DetectionRecord) (string, error)

	// GetDetectionRecord retrieves a stored detection result
	GetDetectionRecord(ctx context.Context, id string) (*DetectionRecord, error)
}

// DetectionRecord is the persisted form of one ridge and minutiae detection run
type DetectionRecord struct {
	ID                string                        `json:"id" cbor:"id"`
	Source            string                        `json:"source" cbor:"source"`
	Timestamp         string                        `json:"timestamp" cbor:"timestamp"`
	ProcessingTimeSec float64                       `json:"processing_time_sec" cbor:"processing_time_sec"`
	Status            string                        `json:"status" cbor:"status"`
	Detection         analyzer.RidgeDetectionResult `json:"detection" cbor:"detection"`
	Warnings          []string                      `json:"warnings,omitempty" cbor:"warnings,omitempty"`
}
