package service

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/anime-shed/fingerprint-inspector-go/internal/analyzer"
	apperrors "github.com/anime-shed/fingerprint-inspector-go/internal/errors"
	"github.com/anime-shed/fingerprint-inspector-go/internal/imaging"
	"github.com/anime-shed/fingerprint-inspector-go/internal/repository"
	"github.com/anime-shed/fingerprint-inspector-go/internal/storage"
	"github.com/anime-shed/fingerprint-inspector-go/internal/strategy"
	"github.com/anime-shed/fingerprint-inspector-go/pkg/models"
	"github.com/anime-shed/fingerprint-inspector-go/pkg/validation"
)

type stubFetcher struct {
	data []byte
	err  error
}

func (f *stubFetcher) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	return f.data, f.err
}

type stubStrategy struct {
	result *strategy.Classification
	err    error
	block  bool
}

func (s *stubStrategy) Analyze(ctx context.Context, src imaging.Source) (*strategy.Classification, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.result, s.err
}

func (s *stubStrategy) GetStrategyName() string {
	return "stub"
}

type failingArtifacts struct{}

func (failingArtifacts) SaveImage(ctx context.Context, key string, img *image.Gray) (string, error) {
	return "", errors.New("disk full")
}

func (failingArtifacts) SaveDetectionRecord(ctx context.Context, record *repository.DetectionRecord) (string, error) {
	return "", errors.New("disk full")
}

func (failingArtifacts) GetDetectionRecord(ctx context.Context, id string) (*repository.DetectionRecord, error) {
	return nil, repository.ErrAnalysisNotFound
}

type testEnv struct {
	svc       FingerprintService
	root      string
	artifacts repository.ArtifactRepository
}

type envOption func(*Dependencies)

func newTestEnv(t *testing.T, fetcher storage.ImageFetcher, opts ...envOption) *testEnv {
	t.Helper()

	root := t.TempDir()
	store, err := storage.NewLocalStorage(root)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	engine := analyzer.NewEngine(analyzer.DefaultOptions())
	pool := analyzer.NewWorkerPool(2)
	pool.Start()
	t.Cleanup(pool.Close)

	deps := Dependencies{
		Engine:          engine,
		Pool:            pool,
		Images:          repository.NewImageRepository(fetcher, store, validation.NewURLValidator()),
		Artifacts:       repository.NewArtifactRepository(store),
		Classifier:      strategy.NewAnalysisContext(strategy.NewPipelineStrategy(engine)),
		AnalysisTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &testEnv{svc: NewFingerprintService(deps), root: root, artifacts: deps.Artifacts}
}

func createStripeGray(width, height, period int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if (x/(period/2))%2 == 0 {
				img.Pix[y*img.Stride+x] = 220
			} else {
				img.Pix[y*img.Stride+x] = 30
			}
		}
	}
	return img
}

func stripeUpload(t *testing.T, name string, width, height int) *models.ImageInput {
	t.Helper()
	data, err := imaging.EncodePNG(createStripeGray(width, height, 10))
	if err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return &models.ImageInput{Name: name, Data: data}
}

func expectErrorType(t *testing.T, err error, want apperrors.ErrorType) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected %s error, got nil", want)
	}
	if !apperrors.IsType(err, want) {
		t.Errorf("Expected %s error, got %v", want, err)
	}
}

func TestPreprocess_PersistsEnhancedImage(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})

	resp, err := env.svc.Preprocess(context.Background(), stripeUpload(t, "left thumb.png", 120, 90))
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}

	if !strings.HasPrefix(resp.EnhancedImage, "artifact://enhanced_fingerprints/left_thumb_") {
		t.Errorf("Unexpected artifact location %s", resp.EnhancedImage)
	}
	if !strings.HasSuffix(resp.EnhancedImage, "_enhanced.png") {
		t.Errorf("Expected _enhanced.png suffix, got %s", resp.EnhancedImage)
	}
	key := strings.TrimPrefix(resp.EnhancedImage, storage.ArtifactScheme)
	if _, err := os.Stat(filepath.Join(env.root, filepath.FromSlash(key))); err != nil {
		t.Errorf("Expected enhanced image on disk: %v", err)
	}
	if resp.Source != "left thumb.png" {
		t.Errorf("Expected source left thumb.png, got %s", resp.Source)
	}
	if resp.ProcessedSize != (analyzer.Size{Width: 120, Height: 90}) {
		t.Errorf("Unexpected processed size %+v", resp.ProcessedSize)
	}
	if len(resp.Steps) != 4 {
		t.Errorf("Expected 4 preprocessing steps, got %v", resp.Steps)
	}
	if resp.QualityIssues == nil {
		t.Error("Expected a non-nil quality issue list")
	}
	if resp.ID == "" || resp.Timestamp == "" {
		t.Error("Expected id and timestamp to be set")
	}
}

func TestPreprocess_ArtifactKeysAreUnique(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})
	ctx := context.Background()

	first, err := env.svc.Preprocess(ctx, stripeUpload(t, "thumb.png", 100, 80))
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	second, err := env.svc.Preprocess(ctx, stripeUpload(t, "thumb.png", 100, 80))
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	if first.EnhancedImage == second.EnhancedImage {
		t.Errorf("Expected distinct artifacts, both were %s", first.EnhancedImage)
	}
}

func TestPreprocess_RemoteReference(t *testing.T) {
	data, err := imaging.EncodePNG(createStripeGray(100, 80, 10))
	if err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	env := newTestEnv(t, &stubFetcher{data: data})

	resp, err := env.svc.Preprocess(context.Background(), &models.ImageInput{Ref: "https://example.com/scans/index.png?v=2"})
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	if resp.Source != "index.png" {
		t.Errorf("Expected source index.png, got %s", resp.Source)
	}
	if !strings.Contains(resp.EnhancedImage, "/index_") {
		t.Errorf("Expected artifact named after the remote file, got %s", resp.EnhancedImage)
	}
}

func TestPreprocess_UndecodableUpload(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})

	_, err := env.svc.Preprocess(context.Background(), &models.ImageInput{Name: "junk.png", Data: []byte("not an image")})
	expectErrorType(t, err, apperrors.ErrorTypeDecode)
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *stubFetcher
		input   *models.ImageInput
		want    apperrors.ErrorType
	}{
		{
			name:    "no input",
			fetcher: &stubFetcher{},
			input:   nil,
			want:    apperrors.ErrorTypeValidation,
		},
		{
			name:    "unsupported scheme",
			fetcher: &stubFetcher{},
			input:   &models.ImageInput{Ref: "ftp://example.com/print.png"},
			want:    apperrors.ErrorTypeValidation,
		},
		{
			name:    "missing artifact",
			fetcher: &stubFetcher{},
			input:   &models.ImageInput{Ref: "artifact://enhanced_fingerprints/none.png"},
			want:    apperrors.ErrorTypeNotFound,
		},
		{
			name:    "remote not found",
			fetcher: &stubFetcher{err: &storage.StatusError{StatusCode: 404}},
			input:   &models.ImageInput{Ref: "https://example.com/print.png"},
			want:    apperrors.ErrorTypeNotFound,
		},
		{
			name:    "remote unavailable",
			fetcher: &stubFetcher{err: errors.New("connection refused")},
			input:   &models.ImageInput{Ref: "https://example.com/print.png"},
			want:    apperrors.ErrorTypeNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.fetcher)

			_, err := env.svc.Detect(context.Background(), tt.input)
			expectErrorType(t, err, tt.want)
		})
	}
}

func TestDetect_PersistsRecord(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})
	ctx := context.Background()

	resp, err := env.svc.Detect(ctx, stripeUpload(t, "index.png", 120, 120))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if resp.Record != "artifact://detection_records/"+resp.ID+".cbor" {
		t.Errorf("Unexpected record location %s", resp.Record)
	}

	record, err := env.artifacts.GetDetectionRecord(ctx, resp.ID)
	if err != nil {
		t.Fatalf("GetDetectionRecord failed: %v", err)
	}
	if record.Source != "index.png" {
		t.Errorf("Expected source index.png, got %s", record.Source)
	}
	if record.Status != string(resp.Status) {
		t.Errorf("Expected status %s, got %s", resp.Status, record.Status)
	}
	if record.Detection.RidgeCount != resp.Detection.RidgeCount {
		t.Errorf("Expected ridge count %d, got %d", resp.Detection.RidgeCount, record.Detection.RidgeCount)
	}
	if len(record.Detection.Minutiae) != len(resp.Detection.Minutiae) {
		t.Errorf("Expected %d minutiae, got %d", len(resp.Detection.Minutiae), len(record.Detection.Minutiae))
	}
}

func TestDetect_PersistenceFailure(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{}, func(d *Dependencies) {
		d.Artifacts = failingArtifacts{}
	})

	_, err := env.svc.Detect(context.Background(), stripeUpload(t, "index.png", 100, 100))
	expectErrorType(t, err, apperrors.ErrorTypeResource)

	if m := env.svc.Metrics(); m.Failed != 1 || m.Completed+m.Partial != 0 {
		t.Errorf("Expected one failed operation, got %+v", m)
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name       string
		withMiddle bool
		wantParts  int
	}{
		{name: "two parts", withMiddle: false, wantParts: 2},
		{name: "three parts", withMiddle: true, wantParts: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &stubFetcher{})

			var middle *models.ImageInput
			if tt.withMiddle {
				middle = stripeUpload(t, "middle.png", 160, 100)
			}
			resp, err := env.svc.Merge(context.Background(),
				stripeUpload(t, "left.png", 200, 100), middle, stripeUpload(t, "right.png", 200, 100))
			if err != nil {
				t.Fatalf("Merge failed: %v", err)
			}

			if resp.Parts != tt.wantParts {
				t.Errorf("Expected %d parts, got %d", tt.wantParts, resp.Parts)
			}
			if resp.MergedImage != "artifact://merged_fingerprints/merged_fingerprint_"+resp.ID+".png" {
				t.Errorf("Unexpected merged location %s", resp.MergedImage)
			}
			if resp.Height != 100 || resp.Width <= 200 {
				t.Errorf("Unexpected merged size %dx%d", resp.Width, resp.Height)
			}
			if q := resp.Quality.OverallQuality; q < 0 || q > 100 {
				t.Errorf("Expected overall quality in [0,100], got %f", q)
			}
		})
	}
}

func TestMerge_RequiresBothSides(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})

	_, err := env.svc.Merge(context.Background(), stripeUpload(t, "left.png", 100, 100), nil, nil)
	expectErrorType(t, err, apperrors.ErrorTypeValidation)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		strategy   *stubStrategy
		wantStatus analyzer.Status
		wantErr    apperrors.ErrorType
	}{
		{
			name: "clean result",
			strategy: &stubStrategy{result: &strategy.Classification{
				Label: "Whorl", RidgeCount: 14, Confidence: 0.9, Strategy: "stub",
			}},
			wantStatus: analyzer.StatusSuccess,
		},
		{
			name: "result with warnings",
			strategy: &stubStrategy{result: &strategy.Classification{
				Label: "Arch", Confidence: 0.2, Strategy: "stub", Warnings: []string{"remote classifier unavailable"},
			}},
			wantStatus: analyzer.StatusPartial,
		},
		{
			name:     "typed error passes through",
			strategy: &stubStrategy{err: apperrors.NewNetworkError("model endpoint unavailable", nil)},
			wantErr:  apperrors.ErrorTypeNetwork,
		},
		{
			name:     "plain error becomes internal",
			strategy: &stubStrategy{err: errors.New("boom")},
			wantErr:  apperrors.ErrorTypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &stubFetcher{}, func(d *Dependencies) {
				d.Classifier = strategy.NewAnalysisContext(tt.strategy)
			})

			resp, err := env.svc.Classify(context.Background(), stripeUpload(t, "print.png", 80, 80))
			if tt.wantErr != "" {
				expectErrorType(t, err, tt.wantErr)
				return
			}
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("Expected status %s, got %s", tt.wantStatus, resp.Status)
			}
			if resp.Label != tt.strategy.result.Label {
				t.Errorf("Expected label %s, got %s", tt.strategy.result.Label, resp.Label)
			}
		})
	}
}

func TestClassify_PipelineStrategy(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})

	resp, err := env.svc.Classify(context.Background(), stripeUpload(t, "print.png", 120, 120))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if resp.Strategy != "pipeline" {
		t.Errorf("Expected pipeline strategy, got %s", resp.Strategy)
	}
	if resp.Confidence < 0 || resp.Confidence > 1 {
		t.Errorf("Expected confidence in [0,1], got %f", resp.Confidence)
	}
}

func TestAnalysisTimeout(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{}, func(d *Dependencies) {
		d.Classifier = strategy.NewAnalysisContext(&stubStrategy{block: true})
		d.AnalysisTimeout = 20 * time.Millisecond
	})

	_, err := env.svc.Classify(context.Background(), stripeUpload(t, "print.png", 80, 80))
	expectErrorType(t, err, apperrors.ErrorTypeTimeout)
}

func TestClosedPool(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{}, func(d *Dependencies) {
		pool := analyzer.NewWorkerPool(1)
		pool.Start()
		pool.Close()
		d.Pool = pool
	})

	_, err := env.svc.Preprocess(context.Background(), stripeUpload(t, "print.png", 80, 80))
	expectErrorType(t, err, apperrors.ErrorTypeInternal)
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})
	ctx := context.Background()

	if _, err := env.svc.Preprocess(ctx, stripeUpload(t, "print.png", 120, 90)); err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	if _, err := env.svc.Detect(ctx, &models.ImageInput{Ref: "artifact://missing.png"}); err == nil {
		t.Fatal("Expected detect to fail")
	}

	m := env.svc.Metrics()
	if m.Started != 2 {
		t.Errorf("Expected 2 started, got %d", m.Started)
	}
	if m.Completed+m.Partial != 1 {
		t.Errorf("Expected 1 finished, got %d completed and %d partial", m.Completed, m.Partial)
	}
	if m.Failed != 1 {
		t.Errorf("Expected 1 failed, got %d", m.Failed)
	}
	if m.InFlight != 0 {
		t.Errorf("Expected nothing in flight, got %d", m.InFlight)
	}
	if m.ByOperation[OpPreprocess] != 1 || m.ByOperation[OpDetect] != 1 {
		t.Errorf("Unexpected per operation counts %v", m.ByOperation)
	}

	if stats := env.svc.PoolStats(); stats.Workers != 2 {
		t.Errorf("Expected 2 workers, got %+v", stats)
	}
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"thumb.png", "thumb"},
		{"scans/left index.jpg", "left_index"},
		{"", "fingerprint"},
		{"ünïcode.png", "_n_code"},
		{"already_safe-name.pgm", "already_safe-name"},
	}

	for _, tt := range tests {
		if got := baseName(tt.in); got != tt.want {
			t.Errorf("baseName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
