package repository

import (
	"context"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anime-shed/fingerprint-inspector-go/internal/analyzer"
	apperrors "github.com/anime-shed/fingerprint-inspector-go/internal/errors"
	"github.com/anime-shed/fingerprint-inspector-go/internal/imaging"
	"github.com/anime-shed/fingerprint-inspector-go/internal/storage"
	"github.com/anime-shed/fingerprint-inspector-go/pkg/validation"
)

type stubFetcher struct {
	data  []byte
	err   error
	calls int
}

func (f *stubFetcher) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

func createGradientGray(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Pix[y*img.Stride+x] = uint8((x * 255) / width)
		}
	}
	return img
}

func newLocalRepos(t *testing.T, fetcher storage.ImageFetcher) (ImageRepository, ArtifactRepository) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return NewImageRepository(fetcher, store, validation.NewURLValidator()), NewArtifactRepository(store)
}

func TestResolve_ArtifactRoundTrip(t *testing.T) {
	images, artifacts := newLocalRepos(t, &stubFetcher{})
	ctx := context.Background()

	location, err := artifacts.SaveImage(ctx, "enhanced_fingerprints/thumb_enhanced.png", createGradientGray(12, 8))
	if err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}

	src, err := images.Resolve(ctx, location)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if src.Name() != "thumb_enhanced.png" {
		t.Errorf("Unexpected source name %s", src.Name())
	}

	gray, err := src.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if gray.Bounds().Dx() != 12 || gray.Bounds().Dy() != 8 {
		t.Errorf("Unexpected size %v", gray.Bounds())
	}
}

func TestResolve_MissingArtifact(t *testing.T) {
	images, _ := newLocalRepos(t, &stubFetcher{})

	_, err := images.Resolve(context.Background(), "artifact://enhanced_fingerprints/none.png")
	if !errors.Is(err, ErrImageNotFound) {
		t.Errorf("Expected ErrImageNotFound, got %v", err)
	}
}

func TestResolve_RemoteURL(t *testing.T) {
	png, err := imaging.EncodePNG(createGradientGray(6, 4))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	fetcher := &stubFetcher{data: png}
	images, _ := newLocalRepos(t, fetcher)

	src, err := images.Resolve(context.Background(), "https://scanner.example.com/captures/left.png?session=1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("Expected one fetch, got %d", fetcher.calls)
	}
	if src.Name() != "left.png" {
		t.Errorf("Unexpected source name %s", src.Name())
	}
}

func TestResolve_RemoteNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	images, _ := newLocalRepos(t, storage.NewHTTPImageFetcher(5*time.Second, 1<<20))

	_, err := images.Resolve(context.Background(), server.URL+"/missing.png")
	if !errors.Is(err, ErrImageNotFound) {
		t.Errorf("Expected ErrImageNotFound, got %v", err)
	}
}

func TestResolve_RemoteUnavailable(t *testing.T) {
	images, _ := newLocalRepos(t, &stubFetcher{err: errors.New("connection refused")})

	_, err := images.Resolve(context.Background(), "https://scanner.example.com/a.png")
	if !errors.Is(err, ErrRepositoryUnavailable) {
		t.Errorf("Expected ErrRepositoryUnavailable, got %v", err)
	}
}

func TestResolve_CancelledContext(t *testing.T) {
	images, _ := newLocalRepos(t, &stubFetcher{err: errors.New("request aborted")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := images.Resolve(ctx, "https://scanner.example.com/a.png")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestValidateImageRef(t *testing.T) {
	images, _ := newLocalRepos(t, &stubFetcher{})

	tests := []struct {
		ref     string
		wantErr bool
	}{
		{"https://example.com/a.png", false},
		{"artifact://merged_fingerprints/merged_fingerprint_1.png", false},
		{"", true},
		{"   ", true},
		{"ftp://example.com/a.png", true},
		{"artifact://../secrets.png", true},
		{"artifact://records/a.cbor", true},
		{"https://example.com/a.gif", true},
	}

	for _, tt := range tests {
		err := images.ValidateImageRef(tt.ref)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateImageRef(%q) error = %v, wantErr %v", tt.ref, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidImageURL) {
			t.Errorf("ValidateImageRef(%q) should wrap ErrInvalidImageURL, got %v", tt.ref, err)
		}
	}
}

func TestValidateImageRef_KeepsValidationDetail(t *testing.T) {
	images, _ := newLocalRepos(t, &stubFetcher{})

	err := images.ValidateImageRef("ftp://example.com/a.png")
	appErr, ok := apperrors.As(err)
	if !ok {
		t.Fatalf("Expected AppError in chain, got %v", err)
	}
	if appErr.Message != "URL scheme not allowed" {
		t.Errorf("Unexpected message %s", appErr.Message)
	}
}

func TestDetectionRecord_RoundTrip(t *testing.T) {
	_, artifacts := newLocalRepos(t, &stubFetcher{})
	ctx := context.Background()

	record := &DetectionRecord{
		ID:        "abc123",
		Source:    "left.png",
		Timestamp: "2026-10-16T10:00:00Z",
		Status:    string(analyzer.StatusPartial),
		Detection: analyzer.RidgeDetectionResult{
			RidgeCount:  7,
			Minutiae:    []analyzer.MinutiaPoint{{Kind: analyzer.MinutiaEnding, X: 3, Y: 4}},
			CorePoints:  []analyzer.SingularPoint{{X: 50, Y: 50}},
			DeltaPoints: []analyzer.SingularPoint{},
		},
		Warnings: []string{"ridge pattern unavailable: empty response"},
	}

	location, err := artifacts.SaveDetectionRecord(ctx, record)
	if err != nil {
		t.Fatalf("SaveDetectionRecord failed: %v", err)
	}
	if location != "artifact://detection_records/abc123.cbor" {
		t.Errorf("Unexpected location %s", location)
	}

	got, err := artifacts.GetDetectionRecord(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetDetectionRecord failed: %v", err)
	}
	if got.Detection.RidgeCount != 7 || len(got.Detection.Minutiae) != 1 || got.Detection.Minutiae[0].Kind != analyzer.MinutiaEnding {
		t.Errorf("Detection not preserved: %+v", got.Detection)
	}
	if len(got.Warnings) != 1 || got.Status != "partial" {
		t.Errorf("Metadata not preserved: %+v", got)
	}
}

func TestDetectionRecord_Errors(t *testing.T) {
	_, artifacts := newLocalRepos(t, &stubFetcher{})
	ctx := context.Background()

	if _, err := artifacts.GetDetectionRecord(ctx, "missing"); !errors.Is(err, ErrAnalysisNotFound) {
		t.Errorf("Expected ErrAnalysisNotFound, got %v", err)
	}
	if _, err := artifacts.SaveDetectionRecord(ctx, &DetectionRecord{}); err == nil {
		t.Error("Expected error for a record without id")
	}
	if _, err := artifacts.SaveImage(ctx, "a.png", nil); err == nil {
		t.Error("Expected error for a nil image")
	}
}
