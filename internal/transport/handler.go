package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/fingerprint-inspector-go/internal/analyzer"
	"github.com/anime-shed/fingerprint-inspector-go/internal/config"
	apperrors "github.com/anime-shed/fingerprint-inspector-go/internal/errors"
	"github.com/anime-shed/fingerprint-inspector-go/internal/imaging"
	"github.com/anime-shed/fingerprint-inspector-go/internal/logger"
	"github.com/anime-shed/fingerprint-inspector-go/internal/observer"
	"github.com/anime-shed/fingerprint-inspector-go/internal/service"
	"github.com/anime-shed/fingerprint-inspector-go/pkg/models"
)

const mimeCBOR = "application/cbor"

// MetricsResponse reports operation counters and worker pool state
type MetricsResponse struct {
	Operations observer.MetricsSnapshot `json:"operations" cbor:"operations"`
	Pool       PoolResponse             `json:"pool" cbor:"pool"`
}

// PoolResponse mirrors analyzer.PoolStats for the wire
type PoolResponse struct {
	Workers       int   `json:"workers" cbor:"workers"`
	TotalJobs     int64 `json:"total_jobs" cbor:"total_jobs"`
	CompletedJobs int64 `json:"completed_jobs" cbor:"completed_jobs"`
	ActiveWorkers int64 `json:"active_workers" cbor:"active_workers"`
}

func NewHandler(svc service.FingerprintService, cfg *config.Config) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	r.GET("/metrics", metrics(svc))

	v1 := r.Group("/v1")
	v1.POST("/preprocess", singleImage(cfg, service.OpPreprocess, func(ctx context.Context, in *models.ImageInput) (interface{}, error) {
		return svc.Preprocess(ctx, in)
	}))
	v1.POST("/detect", singleImage(cfg, service.OpDetect, func(ctx context.Context, in *models.ImageInput) (interface{}, error) {
		return svc.Detect(ctx, in)
	}))
	v1.POST("/classify", singleImage(cfg, service.OpClassify, func(ctx context.Context, in *models.ImageInput) (interface{}, error) {
		return svc.Classify(ctx, in)
	}))
	v1.POST("/merge", mergeImages(svc, cfg))

	return r
}

// singleImage handles endpoints taking one capture, uploaded as the "image"
// multipart field or referenced by a JSON body
func singleImage(cfg *config.Config, op string, call func(context.Context, *models.ImageInput) (interface{}, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logRequest(c, op)

		var input *models.ImageInput
		if isMultipart(c) {
			in, err := formImage(c, "image", true)
			if err != nil {
				respondError(c, "invalid upload", err)
				return
			}
			input = in
		} else {
			var req models.ImageRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, "invalid request format", bindError(err))
				return
			}
			input = &models.ImageInput{Ref: req.URL}
		}

		result, err := call(ctx, input)
		if err != nil {
			respondError(c, op+" failed", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"operation":          op,
			"source":             input.DisplayName(),
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Info("Request completed successfully")
		respond(c, http.StatusOK, result)
	}
}

// mergeImages accepts "left", "middle" and "right" uploads or a JSON body of URLs
func mergeImages(svc service.FingerprintService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logRequest(c, service.OpMerge)

		var left, middle, right *models.ImageInput
		if isMultipart(c) {
			var err error
			if left, err = formImage(c, "left", true); err == nil {
				if middle, err = formImage(c, "middle", false); err == nil {
					right, err = formImage(c, "right", true)
				}
			}
			if err != nil {
				respondError(c, "invalid upload", err)
				return
			}
		} else {
			var req models.MergeRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, "invalid request format", bindError(err))
				return
			}
			left = &models.ImageInput{Ref: req.LeftURL}
			right = &models.ImageInput{Ref: req.RightURL}
			if strings.TrimSpace(req.MiddleURL) != "" {
				middle = &models.ImageInput{Ref: req.MiddleURL}
			}
		}

		result, err := svc.Merge(ctx, left, middle, right)
		if err != nil {
			respondError(c, "merge failed", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"operation":          service.OpMerge,
			"parts":              result.Parts,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Info("Request completed successfully")
		respond(c, http.StatusOK, result)
	}
}

func metrics(svc service.FingerprintService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := svc.PoolStats()
		respond(c, http.StatusOK, MetricsResponse{
			Operations: svc.Metrics(),
			Pool:       poolResponse(stats),
		})
	}
}

func poolResponse(stats analyzer.PoolStats) PoolResponse {
	return PoolResponse{
		Workers:       stats.Workers,
		TotalJobs:     stats.TotalJobs,
		CompletedJobs: stats.CompletedJobs,
		ActiveWorkers: stats.ActiveWorkers,
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func logRequest(c *gin.Context, op string) {
	logger.WithFields(logrus.Fields{
		"operation":  op,
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"ip":         c.ClientIP(),
	}).Info("Processing fingerprint request")
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// formImage reads one uploaded capture. A missing optional field yields nil.
func formImage(c *gin.Context, field string, required bool) (*models.ImageInput, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) && !required {
			return nil, nil
		}
		if tooLarge(err) {
			return nil, err
		}
		return nil, apperrors.NewValidationError(fmt.Sprintf("missing %q file", field), err)
	}
	if !imaging.IsSupportedExtension(header.Filename) {
		return nil, apperrors.NewValidationError("unsupported image format", nil).WithDetails(header.Filename)
	}

	data, err := readUpload(header)
	if err != nil {
		return nil, err
	}
	return &models.ImageInput{Name: header.Filename, Data: data}, nil
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, apperrors.NewValidationError("unreadable upload", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperrors.NewValidationError("unreadable upload", err)
	}
	return data, nil
}

func bindError(err error) error {
	if tooLarge(err) {
		return err
	}
	return apperrors.NewValidationError("invalid request body", err)
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			respondError(c, "request processing failed", c.Errors.Last().Err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	if appErr, ok := apperrors.As(err); ok {
		return appErr.StatusCode
	}

	switch {
	case tooLarge(err):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// wantsCBOR reports whether the client asked for a CBOR body
func wantsCBOR(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), mimeCBOR)
}

func respond(c *gin.Context, code int, body interface{}) {
	if wantsCBOR(c) {
		data, err := cbor.Marshal(body)
		if err != nil {
			logger.WithError(err).Error("Failed to encode CBOR response")
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   http.StatusText(http.StatusInternalServerError),
				Message: "failed to encode response",
			})
			return
		}
		c.Data(code, mimeCBOR, data)
		return
	}
	c.JSON(code, body)
}

func respondError(c *gin.Context, message string, err error) {
	code := determineStatusCode(err)

	// Log the error with context
	entry := logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.Abort()
	respond(c, code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
