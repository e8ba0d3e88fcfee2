package config

import (
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/anime-shed/fingerprint-inspector-go/internal/analyzer"
)

// Storage backends
const (
	StorageLocal = "local"
	StorageAzure = "azure"
	StorageNone  = "none"
)

// Classifier strategies
const (
	StrategyPipeline           = "pipeline"
	StrategyRemote             = "remote"
	StrategyRemoteWithFallback = "remote_with_fallback"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	AnalysisTimeout    time.Duration
	MaxRequestBodySize int64
	MaxConcurrentJobs  int

	LogLevel string
	LogFile  string

	StorageBackend        string
	LocalStorageDir       string
	AzureStorageAccount   string
	AzureStorageKey       string
	AzureStorageContainer string

	ClassifierStrategy string
	ModelEndpoint      string

	PipelineConfig string
	Pipeline       analyzer.Options
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

func LoadFromEnv() (*Config, error) {
	// Set defaults
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		AnalysisTimeout:    parseDurationOrDefault("ANALYSIS_TIMEOUT", 20*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB
		MaxConcurrentJobs:  int(parseIntOrDefault("MAX_CONCURRENT_JOBS", int64(runtime.NumCPU()))),

		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),

		StorageBackend:        strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", StorageLocal)),
		LocalStorageDir:       getEnvOrDefault("LOCAL_STORAGE_DIR", "media"),
		AzureStorageAccount:   os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureStorageKey:       os.Getenv("AZURE_STORAGE_KEY"),
		AzureStorageContainer: getEnvOrDefault("AZURE_STORAGE_CONTAINER", "fingerprints"),

		ClassifierStrategy: strings.ToLower(getEnvOrDefault("CLASSIFIER_STRATEGY", StrategyPipeline)),
		ModelEndpoint:      os.Getenv("MODEL_ENDPOINT"),

		PipelineConfig: os.Getenv("PIPELINE_CONFIG"),
	}

	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", cfg.MaxRequestBodySize)
	}
	if cfg.MaxConcurrentJobs <= 0 {
		return nil, fmt.Errorf("MAX_CONCURRENT_JOBS must be > 0 (got %d)", cfg.MaxConcurrentJobs)
	}
	if cfg.RequestTimeout <= 0 || cfg.ImageFetchTimeout <= 0 || cfg.AnalysisTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, analysis=%s)",
			cfg.RequestTimeout, cfg.ImageFetchTimeout, cfg.AnalysisTimeout)
	}

	switch cfg.StorageBackend {
	case StorageLocal, StorageNone:
	case StorageAzure:
		if cfg.AzureStorageAccount == "" || cfg.AzureStorageKey == "" {
			return nil, fmt.Errorf("STORAGE_BACKEND=azure requires AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY")
		}
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND: %q", cfg.StorageBackend)
	}

	switch cfg.ClassifierStrategy {
	case StrategyPipeline:
	case StrategyRemote, StrategyRemoteWithFallback:
		if cfg.ModelEndpoint == "" {
			return nil, fmt.Errorf("CLASSIFIER_STRATEGY=%s requires MODEL_ENDPOINT", cfg.ClassifierStrategy)
		}
	default:
		return nil, fmt.Errorf("invalid CLASSIFIER_STRATEGY: %q", cfg.ClassifierStrategy)
	}

	cfg.Pipeline, err = LoadPipelineOptions(cfg.PipelineConfig)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
