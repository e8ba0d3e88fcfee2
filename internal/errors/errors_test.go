package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructors_StatusCodes(t *testing.T) {
	cause := stderrors.New("boom")
	tests := []struct {
		name       string
		err        *AppError
		wantType   ErrorType
		wantStatus int
	}{
		{"validation", NewValidationError("bad", cause), ErrorTypeValidation, http.StatusBadRequest},
		{"network", NewNetworkError("net", cause), ErrorTypeNetwork, http.StatusBadGateway},
		{"decode", NewDecodeError("unreadable", cause), ErrorTypeDecode, http.StatusBadRequest},
		{"stage", NewStageComputationError("normalization", "degenerate", cause), ErrorTypeStageComputation, http.StatusUnprocessableEntity},
		{"resource", NewResourceError("persist", cause), ErrorTypeResource, http.StatusBadGateway},
		{"timeout", NewTimeoutError("slow", cause), ErrorTypeTimeout, http.StatusGatewayTimeout},
		{"not found", NewNotFoundError("missing", cause), ErrorTypeNotFound, http.StatusNotFound},
		{"internal", NewInternalError("oops", cause), ErrorTypeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.wantType {
				t.Errorf("Expected type %s, got %s", tt.wantType, tt.err.Type)
			}
			if GetStatusCode(tt.err) != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, GetStatusCode(tt.err))
			}
			if !stderrors.Is(tt.err, cause) {
				t.Error("Expected cause to be reachable through Unwrap")
			}
		})
	}
}

func TestStageComputationError_CarriesStage(t *testing.T) {
	err := NewStageComputationError("contrast_enhancement", "clahe failed", nil)
	if err.Details != "contrast_enhancement" {
		t.Errorf("Expected stage in details, got %q", err.Details)
	}
	if err.Error() != "stage_computation: clahe failed" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}

func TestIsType_WrappedError(t *testing.T) {
	wrapped := fmt.Errorf("loading left part: %w", NewDecodeError("corrupt png", nil))

	if !IsType(wrapped, ErrorTypeDecode) {
		t.Error("Expected wrapped decode error to be detected")
	}
	if IsType(wrapped, ErrorTypeResource) {
		t.Error("Did not expect resource type")
	}
	if GetStatusCode(wrapped) != http.StatusBadRequest {
		t.Errorf("Expected 400 for wrapped decode error, got %d", GetStatusCode(wrapped))
	}
}

func TestGetStatusCode_PlainError(t *testing.T) {
	if GetStatusCode(stderrors.New("plain")) != http.StatusInternalServerError {
		t.Error("Expected 500 for non-AppError")
	}
}

func TestWithDetails_DoesNotMutateOriginal(t *testing.T) {
	base := NewResourceError("upload failed", nil)
	detailed := base.WithDetails("enhanced_fingerprints/a.png")

	if base.Details != "" {
		t.Errorf("Expected original details untouched, got %q", base.Details)
	}
	if detailed.Details != "enhanced_fingerprints/a.png" {
		t.Errorf("Unexpected details %q", detailed.Details)
	}
}
