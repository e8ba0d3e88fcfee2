package factory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/anime-shed/fingerprint-inspector-go/internal/analyzer"
	"github.com/anime-shed/fingerprint-inspector-go/internal/config"
	"github.com/anime-shed/fingerprint-inspector-go/internal/storage"
)

func TestCreateStorage(t *testing.T) {
	f := NewStorageFactory()

	local, err := f.CreateStorage(&config.Config{
		StorageBackend:  config.StorageLocal,
		LocalStorageDir: filepath.Join(t.TempDir(), "media"),
	})
	if err != nil {
		t.Fatalf("Failed to create local storage: %v", err)
	}
	location, err := local.Put(context.Background(), "a/b.png", []byte("x"), "image/png")
	if err != nil || location != "artifact://a/b.png" {
		t.Errorf("Unexpected put result %q, %v", location, err)
	}

	none, err := f.CreateStorage(&config.Config{StorageBackend: config.StorageNone})
	if err != nil {
		t.Fatalf("Failed to create discard storage: %v", err)
	}
	if _, err := none.Get(context.Background(), "a/b.png"); err != storage.ErrArtifactNotFound {
		t.Errorf("Expected discard store to hold nothing, got %v", err)
	}

	if _, err := f.CreateStorage(&config.Config{StorageBackend: "s3"}); err == nil {
		t.Error("Expected error for unsupported backend")
	}
}

func TestCreateStrategy(t *testing.T) {
	f := NewStrategyFactory()
	engine := analyzer.NewEngine(analyzer.DefaultOptions())

	tests := []struct {
		name     string
		endpoint string
		wantName string
		wantErr  bool
	}{
		{name: config.StrategyPipeline, wantName: "pipeline"},
		{name: config.StrategyRemote, endpoint: "http://model:9000/classify", wantName: "remote_model"},
		{name: config.StrategyRemoteWithFallback, endpoint: "http://model:9000/classify", wantName: "remote_model_with_fallback"},
		{name: config.StrategyRemote, wantErr: true},
		{name: "neural", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.endpoint, func(t *testing.T) {
			s, err := f.CreateStrategy(tt.name, engine, tt.endpoint, time.Second)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got strategy %s", s.GetStrategyName())
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if s.GetStrategyName() != tt.wantName {
				t.Errorf("Expected %s, got %s", tt.wantName, s.GetStrategyName())
			}
		})
	}
}
