package strategy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	apperrors "github.com/anime-shed/fingerprint-inspector-go/internal/errors"
	"github.com/anime-shed/fingerprint-inspector-go/internal/imaging"
)

const maxModelReplyBytes = 1 << 20

// modelReply is the body returned by the model serving endpoint, as JSON or CBOR
type modelReply struct {
	Classification string             `json:"classification" cbor:"classification"`
	RidgeCount     int                `json:"ridge_count" cbor:"ridge_count"`
	Confidence     float64            `json:"confidence" cbor:"confidence"`
	Probabilities  map[string]float64 `json:"probabilities" cbor:"probabilities"`
}

// RemoteModelStrategy delegates classification to a model serving endpoint
type RemoteModelStrategy struct {
	endpoint string
	client   *http.Client
	attempts int
	backoff  time.Duration
}

// NewRemoteModelStrategy creates a strategy posting PNG captures to endpoint
func NewRemoteModelStrategy(endpoint string, timeout time.Duration) *RemoteModelStrategy {
	return &RemoteModelStrategy{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		attempts: 3,
		backoff:  time.Second,
	}
}

// WithBackoff returns a copy of the strategy using a different base retry delay
func (s *RemoteModelStrategy) WithBackoff(backoff time.Duration) *RemoteModelStrategy {
	cp := *s
	cp.backoff = backoff
	return &cp
}

// GetStrategyName returns the strategy name
func (s *RemoteModelStrategy) GetStrategyName() string {
	return "remote_model"
}

// Analyze uploads the capture and validates the reply
func (s *RemoteModelStrategy) Analyze(ctx context.Context, src imaging.Source) (*Classification, error) {
	if src == nil {
		return nil, apperrors.NewValidationError("no image supplied", nil)
	}
	gray, err := src.Load()
	if err != nil {
		if appErr, ok := apperrors.As(err); ok {
			return nil, appErr
		}
		return nil, apperrors.NewDecodeError("unable to load image", err)
	}
	payload, err := imaging.EncodePNG(gray)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode capture", err)
	}

	body, contentType, err := s.post(ctx, payload)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.NewTimeoutError("model request cancelled", err)
		}
		return nil, apperrors.NewNetworkError("model endpoint unavailable", err)
	}

	reply, err := decodeReply(body, contentType)
	if err != nil {
		return nil, apperrors.NewNetworkError("invalid model response", err)
	}

	return &Classification{
		Label:         reply.Classification,
		RidgeCount:    reply.RidgeCount,
		Confidence:    reply.Confidence,
		Probabilities: reply.Probabilities,
		Strategy:      s.GetStrategyName(),
	}, nil
}

// post sends payload, retrying network errors and 5xx replies with linear backoff
func (s *RemoteModelStrategy) post(ctx context.Context, payload []byte) ([]byte, string, error) {
	var lastErr error

	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-time.After(time.Duration(attempt) * s.backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, "", fmt.Errorf("invalid model endpoint: %w", err)
		}
		req.Header.Set("Content-Type", "image/png")
		req.Header.Set("Accept", "application/cbor, application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxModelReplyBytes))
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK && readErr == nil:
			return body, resp.Header.Get("Content-Type"), nil
		case resp.StatusCode == http.StatusOK:
			lastErr = fmt.Errorf("failed to read model response: %w", readErr)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			// 4xx client errors are non-retryable
			return nil, "", fmt.Errorf("client error: status code %d", resp.StatusCode)
		default:
			lastErr = fmt.Errorf("server error: status code %d", resp.StatusCode)
		}
	}
	return nil, "", fmt.Errorf("model request failed after %d attempts: %w", s.attempts, lastErr)
}

func decodeReply(body []byte, contentType string) (*modelReply, error) {
	var reply modelReply

	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/cbor" {
		if err := cbor.Unmarshal(body, &reply); err != nil {
			return nil, fmt.Errorf("malformed cbor reply: %w", err)
		}
	} else if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("malformed json reply: %w", err)
	}

	if strings.TrimSpace(reply.Classification) == "" {
		return nil, fmt.Errorf("reply has no classification")
	}
	if reply.RidgeCount < 0 {
		return nil, fmt.Errorf("negative ridge count %d", reply.RidgeCount)
	}
	if math.IsNaN(reply.Confidence) || reply.Confidence < 0 || reply.Confidence > 1 {
		return nil, fmt.Errorf("confidence %v outside [0,1]", reply.Confidence)
	}
	return &reply, nil
}
