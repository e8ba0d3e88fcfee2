package analyzer

import (
	"fmt"
	"image"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"github.com/anime-shed/fingerprint-inspector-go/internal/imaging"
	"github.com/anime-shed/fingerprint-inspector-go/internal/logger"
)

// Weights of the aggregate quality score
const (
	sharpnessWeight    = 0.30
	contrastWeight     = 0.25
	ridgeClarityWeight = 0.35
	noiseWeight        = 0.10
)

// qualityAnalyzer computes QualityMetrics. Every metric is computed independently and a
// failing one degrades to 0 without affecting the others.
type qualityAnalyzer struct {
	log *logrus.Entry
}

func newQualityAnalyzer() *qualityAnalyzer {
	return &qualityAnalyzer{log: logger.WithComponent("quality_analyzer")}
}

// Analyze measures processed, using original only for the noise estimate.
// The returned warnings name each metric that could not be computed.
func (qa *qualityAnalyzer) Analyze(original, processed *image.Gray) (QualityMetrics, []string) {
	var warnings []string
	degrade := func(metric string, err error) float64 {
		warnings = append(warnings, fmt.Sprintf("%s unavailable: %v", metric, err))
		qa.log.WithError(err).WithField("metric", metric).Warn("Quality metric degraded to zero")
		return 0
	}

	if processed == nil || processed.Bounds().Empty() {
		return QualityMetrics{}, []string{"quality metrics unavailable: empty image"}
	}
	processed = imaging.Compact(processed)

	var m QualityMetrics
	var err error

	if m.Sharpness, err = qa.sharpness(processed); err != nil {
		m.Sharpness = degrade("sharpness", err)
	}
	if m.Brightness, m.Contrast, err = intensityStats(processed); err != nil {
		m.Brightness = degrade("brightness", err)
		m.Contrast = degrade("contrast", err)
	}
	if m.NoiseLevel, err = meanAbsoluteDifference(original, processed); err != nil {
		m.NoiseLevel = degrade("noise_level", err)
	}
	if m.RidgeClarity, err = qa.ridgeClarity(processed); err != nil {
		m.RidgeClarity = degrade("ridge_clarity", err)
	}

	m.OverallQuality = OverallQuality(m.Sharpness, m.Contrast, m.RidgeClarity, m.NoiseLevel)

	m.Sharpness = round2(m.Sharpness)
	m.Contrast = round2(m.Contrast)
	m.Brightness = round2(m.Brightness)
	m.NoiseLevel = round2(m.NoiseLevel)
	m.RidgeClarity = round2(m.RidgeClarity)
	m.OverallQuality = round2(m.OverallQuality)

	return m, warnings
}

// OverallQuality combines the sub-metrics into a score clamped to [0,100]
func OverallQuality(sharpness, contrast, ridgeClarity, noiseLevel float64) float64 {
	score := sharpnessWeight*(sharpness/1000) +
		contrastWeight*(contrast/100) +
		ridgeClarityWeight*ridgeClarity +
		noiseWeight*(100-noiseLevel)
	if math.IsNaN(score) {
		return 0
	}
	return clamp(score, 0, 100)
}

// sharpness is the variance of the Laplacian response
func (qa *qualityAnalyzer) sharpness(gray *image.Gray) (float64, error) {
	src, err := imaging.ToMat(gray)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	lap := gocv.NewMat()
	defer lap.Close()
	if err := gocv.Laplacian(src, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault); err != nil {
		return 0, fmt.Errorf("laplacian: %w", err)
	}

	values, err := imaging.Float64s(lap)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("no samples")
	}
	return finite(stat.PopVariance(values, nil))
}

// ridgeClarity is the percentage of pixels whose gradient magnitude exceeds the 75th percentile
func (qa *qualityAnalyzer) ridgeClarity(gray *image.Gray) (float64, error) {
	src, err := imaging.ToMat(gray)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	magnitude, err := sobelMagnitude(src)
	if err != nil {
		return 0, err
	}

	sorted := make([]float64, len(magnitude))
	copy(sorted, magnitude)
	sort.Float64s(sorted)
	p75 := percentile(sorted, 0.75)

	strong := 0
	for _, v := range magnitude {
		if v > p75 {
			strong++
		}
	}
	clarity := float64(strong) / float64(len(magnitude)) * 100
	return math.Min(100, clarity), nil
}

// percentile interpolates linearly between the two closest ranks of sorted, rank p*(n-1)
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	return sorted[lo] + (rank-float64(lo))*(sorted[hi]-sorted[lo])
}

// sobelMagnitude returns the per-pixel gradient magnitude of a 3x3 Sobel pair
func sobelMagnitude(src gocv.Mat) ([]float64, error) {
	gx := gocv.NewMat()
	defer gx.Close()
	gy := gocv.NewMat()
	defer gy.Close()

	if err := gocv.Sobel(src, &gx, gocv.MatTypeCV64F, 1, 0, 3, 1, 0, gocv.BorderDefault); err != nil {
		return nil, fmt.Errorf("sobel x: %w", err)
	}
	if err := gocv.Sobel(src, &gy, gocv.MatTypeCV64F, 0, 1, 3, 1, 0, gocv.BorderDefault); err != nil {
		return nil, fmt.Errorf("sobel y: %w", err)
	}

	dx, err := imaging.Float64s(gx)
	if err != nil {
		return nil, err
	}
	dy, err := imaging.Float64s(gy)
	if err != nil {
		return nil, err
	}
	if len(dx) != len(dy) || len(dx) == 0 {
		return nil, fmt.Errorf("gradient size mismatch")
	}

	magnitude := make([]float64, len(dx))
	for i := range dx {
		magnitude[i] = math.Hypot(dx[i], dy[i])
	}
	return magnitude, nil
}

// intensityStats returns mean and standard deviation of the intensities
func intensityStats(gray *image.Gray) (mean, stdDev float64, err error) {
	if len(gray.Pix) == 0 {
		return 0, 0, fmt.Errorf("no samples")
	}
	values := make([]float64, len(gray.Pix))
	for i, v := range gray.Pix {
		values[i] = float64(v)
	}
	mean, stdDev = stat.PopMeanStdDev(values, nil)
	if mean, err = finite(mean); err != nil {
		return 0, 0, err
	}
	if stdDev, err = finite(stdDev); err != nil {
		return 0, 0, err
	}
	return mean, stdDev, nil
}

// meanAbsoluteDifference compares two equally sized rasters in parallel row strips
func meanAbsoluteDifference(original, processed *image.Gray) (float64, error) {
	if original == nil {
		return 0, fmt.Errorf("original image missing")
	}
	original = imaging.Compact(original)
	if original.Rect != processed.Rect {
		return 0, fmt.Errorf("size mismatch: original %v, processed %v", original.Rect.Size(), processed.Rect.Size())
	}

	width, height := processed.Rect.Dx(), processed.Rect.Dy()
	numWorkers := runtime.NumCPU()
	if height < numWorkers {
		numWorkers = height
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	rowsPerWorker := (height + numWorkers - 1) / numWorkers // ceil division

	results := make(chan float64, numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		startY := i * rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > height {
			endY = height
		}
		if startY >= endY {
			continue
		}
		wg.Add(1)
		go func(startY, endY int) {
			defer wg.Done()

			var total float64
			for i := startY * width; i < endY*width; i++ {
				total += math.Abs(float64(original.Pix[i]) - float64(processed.Pix[i]))
			}
			results <- total
		}(startY, endY)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var total float64
	for part := range results {
		total += part
	}
	return total / float64(width*height), nil
}

func finite(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value")
	}
	return v, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
