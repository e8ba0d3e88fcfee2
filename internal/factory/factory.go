package factory

import (
	"fmt"
	"time"

	"github.com/anime-shed/fingerprint-inspector-go/internal/analyzer"
	"github.com/anime-shed/fingerprint-inspector-go/internal/config"
	"github.com/anime-shed/fingerprint-inspector-go/internal/logger"
	"github.com/anime-shed/fingerprint-inspector-go/internal/storage"
	"github.com/anime-shed/fingerprint-inspector-go/internal/strategy"
)

// StorageFactory creates artifact stores
type StorageFactory interface {
	CreateStorage(cfg *config.Config) (storage.ArtifactStore, error)
}

// StrategyFactory creates classification strategies
type StrategyFactory interface {
	CreateStrategy(name string, engine analyzer.Engine, modelEndpoint string, timeout time.Duration) (strategy.AnalysisStrategy, error)
}

// storageFactory implements StorageFactory
type storageFactory struct{}

// NewStorageFactory creates a new storage factory
func NewStorageFactory() StorageFactory {
	return &storageFactory{}
}

// CreateStorage creates the backend named by cfg.StorageBackend
func (f *storageFactory) CreateStorage(cfg *config.Config) (storage.ArtifactStore, error) {
	switch cfg.StorageBackend {
	case config.StorageLocal:
		return storage.NewLocalStorage(cfg.LocalStorageDir)
	case config.StorageAzure:
		return storage.NewAzureStorage(cfg.AzureStorageAccount, cfg.AzureStorageKey, cfg.AzureStorageContainer)
	case config.StorageNone:
		return storage.NewDiscardStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageBackend)
	}
}

// strategyFactory implements StrategyFactory
type strategyFactory struct{}

// NewStrategyFactory creates a new strategy factory
func NewStrategyFactory() StrategyFactory {
	return &strategyFactory{}
}

// CreateStrategy creates a classifier. remote_with_fallback degrades to the local pipeline.
func (f *strategyFactory) CreateStrategy(name string, engine analyzer.Engine, modelEndpoint string, timeout time.Duration) (strategy.AnalysisStrategy, error) {
	switch name {
	case config.StrategyPipeline:
		return strategy.NewPipelineStrategy(engine), nil
	case config.StrategyRemote:
		if modelEndpoint == "" {
			return nil, fmt.Errorf("strategy %s requires a model endpoint", name)
		}
		return strategy.NewRemoteModelStrategy(modelEndpoint, timeout), nil
	case config.StrategyRemoteWithFallback:
		if modelEndpoint == "" {
			return nil, fmt.Errorf("strategy %s requires a model endpoint", name)
		}
		return strategy.NewFallbackStrategy(
			strategy.NewRemoteModelStrategy(modelEndpoint, timeout),
			strategy.NewPipelineStrategy(engine),
			logger.WithComponent("classifier"),
		), nil
	default:
		return nil, fmt.Errorf("unsupported strategy type: %s", name)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	StorageFactory  StorageFactory
	StrategyFactory StrategyFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory() *ComponentFactory {
	return &ComponentFactory{
		StorageFactory:  NewStorageFactory(),
		StrategyFactory: NewStrategyFactory(),
	}
}
