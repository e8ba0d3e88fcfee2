package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ArtifactScheme prefixes references to stored artifacts, e.g. artifact://enhanced_fingerprints/a_enhanced.png
const ArtifactScheme = "artifact://"

// ErrArtifactNotFound is returned by Get for unknown keys
var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactStore persists pipeline outputs under slash separated keys
type ArtifactStore interface {
	// Put stores data under key and returns where it can be retrieved from
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Get returns the bytes stored under key
	Get(ctx context.Context, key string) ([]byte, error)
}

// CleanKey normalizes key and rejects keys escaping the store root
func CleanKey(key string) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), ArtifactScheme)
	if key == "" {
		return "", fmt.Errorf("empty artifact key")
	}
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	return cleaned, nil
}

// discardStore accepts writes without keeping them
type discardStore struct{}

// NewDiscardStore returns a store for deployments that do not persist artifacts
func NewDiscardStore() ArtifactStore {
	return discardStore{}
}

func (discardStore) Put(_ context.Context, key string, _ []byte, _ string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return ArtifactScheme + key, nil
}

func (discardStore) Get(context.Context, string) ([]byte, error) {
	return nil, ErrArtifactNotFound
}
