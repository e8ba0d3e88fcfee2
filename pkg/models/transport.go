package models

import (
	"path/filepath"
	"strings"
)

// ImageRequest references one capture by URL or artifact:// location
type ImageRequest struct {
	URL string `json:"url" binding:"required"`
}

// MergeRequest references two or three partial captures, left to right
type MergeRequest struct {
	LeftURL   string `json:"left_url" binding:"required"`
	MiddleURL string `json:"middle_url,omitempty"`
	RightURL  string `json:"right_url" binding:"required"`
}

// ImageInput is a capture supplied either inline (Data) or by reference (Ref)
type ImageInput struct {
	Ref  string
	Name string
	Data []byte
}

// Inline reports whether the capture bytes were uploaded with the request
func (in *ImageInput) Inline() bool {
	return in != nil && in.Data != nil
}

// DisplayName is used for logs and artifact names
func (in *ImageInput) DisplayName() string {
	switch {
	case in == nil:
		return ""
	case in.Name != "":
		return filepath.Base(in.Name)
	case in.Ref != "":
		ref := strings.SplitN(in.Ref, "?", 2)[0]
		return filepath.Base(ref)
	default:
		return "upload"
	}
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" cbor:"error"`
	Message string `json:"message,omitempty" cbor:"message,omitempty"`
}
