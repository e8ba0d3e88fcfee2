package repository

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/anime-shed/fingerprint-inspector-go/internal/imaging"
	"github.com/anime-shed/fingerprint-inspector-go/internal/storage"
)

const detectionRecordPrefix = "detection_records/"

type artifactRepository struct {
	store storage.ArtifactStore
}

// NewArtifactRepository creates a repository writing pipeline outputs to store
func NewArtifactRepository(store storage.ArtifactStore) ArtifactRepository {
	return &artifactRepository{store: store}
}

func (r *artifactRepository) SaveImage(ctx context.Context, key string, img *image.Gray) (string, error) {
	if img == nil {
		return "", fmt.Errorf("no image to save under %s", key)
	}
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return "", err
	}

	location, err := r.store.Put(ctx, key, data, "image/png")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}
	return location, nil
}

func (r *artifactRepository) SaveDetectionRecord(ctx context.Context, record *DetectionRecord) (string, error) {
	if record == nil || strings.TrimSpace(record.ID) == "" {
		return "", fmt.Errorf("detection record requires an id")
	}
	data, err := cbor.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to encode detection record: %w", err)
	}

	location, err := r.store.Put(ctx, detectionRecordPrefix+record.ID+".cbor", data, "application/cbor")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}
	return location, nil
}

func (r *artifactRepository) GetDetectionRecord(ctx context.Context, id string) (*DetectionRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrAnalysisNotFound
	}

	data, err := r.store.Get(ctx, detectionRecordPrefix+id+".cbor")
	if errors.Is(err, storage.ErrArtifactNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAnalysisNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}

	var record DetectionRecord
	if err := cbor.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("corrupt detection record %s: %w", id, err)
	}
	return &record, nil
}
