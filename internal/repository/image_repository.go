package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/anime-shed/fingerprint-inspector-go/internal/imaging"
	"github.com/anime-shed/fingerprint-inspector-go/internal/storage"
	"github.com/anime-shed/fingerprint-inspector-go/pkg/validation"
)

// imageRepository resolves remote URLs through the fetcher and artifact references through the store
type imageRepository struct {
	fetcher   storage.ImageFetcher
	artifacts storage.ArtifactStore
	validator *validation.URLValidator
}

// NewImageRepository creates a new image repository
func NewImageRepository(fetcher storage.ImageFetcher, artifacts storage.ArtifactStore, validator *validation.URLValidator) ImageRepository {
	return &imageRepository{
		fetcher:   fetcher,
		artifacts: artifacts,
		validator: validator,
	}
}

func isArtifactRef(ref string) bool {
	return strings.HasPrefix(ref, storage.ArtifactScheme)
}

// ValidateImageRef validates if the provided reference is acceptable
func (r *imageRepository) ValidateImageRef(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ErrInvalidImageURL
	}

	if isArtifactRef(ref) {
		key, err := storage.CleanKey(ref)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidImageURL, err)
		}
		if !imaging.IsSupportedExtension(key) {
			return fmt.Errorf("%w: unsupported image format %q", ErrInvalidImageURL, path.Ext(key))
		}
		return nil
	}

	if err := r.validator.ValidateImageURL(ref); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidImageURL, err)
	}
	return nil
}

// Resolve loads the capture named by ref. Decoding is deferred to the returned source.
func (r *imageRepository) Resolve(ctx context.Context, ref string) (imaging.Source, error) {
	ref = strings.TrimSpace(ref)
	if err := r.ValidateImageRef(ref); err != nil {
		return nil, err
	}

	if isArtifactRef(ref) {
		data, err := r.artifacts.Get(ctx, ref)
		if err != nil {
			return nil, classifyLoadError(ctx, err)
		}
		return imaging.FromBytes(path.Base(strings.TrimPrefix(ref, storage.ArtifactScheme)), data), nil
	}

	data, err := r.fetcher.FetchImage(ctx, ref)
	if err != nil {
		return nil, classifyLoadError(ctx, err)
	}
	return imaging.FromBytes(nameFromURL(ref), data), nil
}

// classifyLoadError maps storage failures onto the repository sentinels
func classifyLoadError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	if errors.Is(err, storage.ErrArtifactNotFound) {
		return fmt.Errorf("%w: %v", ErrImageNotFound, err)
	}

	var statusErr *storage.StatusError
	if errors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusNotFound || statusErr.StatusCode == http.StatusGone) {
		return fmt.Errorf("%w: %v", ErrImageNotFound, err)
	}
	return fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
}

func nameFromURL(ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil || parsed.Path == "" || parsed.Path == "/" {
		return "remote"
	}
	return path.Base(parsed.Path)
}
