package container

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/fingerprint-inspector-go/internal/analyzer"
	"github.com/anime-shed/fingerprint-inspector-go/internal/config"
	"github.com/anime-shed/fingerprint-inspector-go/internal/factory"
	"github.com/anime-shed/fingerprint-inspector-go/internal/logger"
	"github.com/anime-shed/fingerprint-inspector-go/internal/observer"
	"github.com/anime-shed/fingerprint-inspector-go/internal/repository"
	"github.com/anime-shed/fingerprint-inspector-go/internal/service"
	"github.com/anime-shed/fingerprint-inspector-go/internal/storage"
	"github.com/anime-shed/fingerprint-inspector-go/internal/strategy"
	"github.com/anime-shed/fingerprint-inspector-go/internal/transport"
	"github.com/anime-shed/fingerprint-inspector-go/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config             *config.Config
	engine             analyzer.Engine
	pool               *analyzer.WorkerPool
	imageFetcher       storage.ImageFetcher
	artifactStore      storage.ArtifactStore
	imageRepository    repository.ImageRepository
	artifactRepository repository.ArtifactRepository
	events             observer.Subject
	fingerprintService service.FingerprintService
	handler            http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	components := factory.NewComponentFactory()

	// Build dependency graph
	engine := analyzer.NewEngine(cfg.Pipeline)

	artifactStore, err := components.StorageFactory.CreateStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact storage: %w", err)
	}

	classifier, err := components.StrategyFactory.CreateStrategy(cfg.ClassifierStrategy, engine, cfg.ModelEndpoint, cfg.AnalysisTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}

	imageFetcher := storage.NewHTTPImageFetcher(cfg.ImageFetchTimeout, cfg.MaxRequestBodySize)
	imageRepository := repository.NewImageRepository(imageFetcher, artifactStore, validation.NewURLValidator())
	artifactRepository := repository.NewArtifactRepository(artifactStore)

	metrics := observer.NewMetricsObserver()
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	pool := analyzer.NewWorkerPool(cfg.MaxConcurrentJobs)
	pool.Start()

	fingerprintService := service.NewFingerprintService(service.Dependencies{
		Engine:          engine,
		Pool:            pool,
		Images:          imageRepository,
		Artifacts:       artifactRepository,
		Classifier:      strategy.NewAnalysisContext(classifier),
		Quality:         validation.NewQualityValidator(),
		Events:          events,
		Metrics:         metrics,
		AnalysisTimeout: cfg.AnalysisTimeout,
	})
	handler := transport.NewHandler(fingerprintService, cfg)

	logger.WithFields(logrus.Fields{
		"storage":    cfg.StorageBackend,
		"classifier": classifier.GetStrategyName(),
		"workers":    cfg.MaxConcurrentJobs,
	}).Info("Container initialized")

	return &Container{
		config:             cfg,
		engine:             engine,
		pool:               pool,
		imageFetcher:       imageFetcher,
		artifactStore:      artifactStore,
		imageRepository:    imageRepository,
		artifactRepository: artifactRepository,
		events:             events,
		fingerprintService: fingerprintService,
		handler:            handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the fingerprint service
func (c *Container) Service() service.FingerprintService {
	return c.fingerprintService
}

// Close stops accepting analysis jobs and waits for queued ones to finish
func (c *Container) Close() {
	c.pool.Close()
	c.pool.Wait()
}
