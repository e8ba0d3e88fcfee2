package analyzer

import (
	"image"
	"math"
	"testing"
)

func TestQualityAnalyzer_UniformImage(t *testing.T) {
	qa := newQualityAnalyzer()
	gray := createUniformGray(100, 100, 128)

	m, warnings := qa.Analyze(gray, gray)

	if len(warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", warnings)
	}
	if m.Brightness != 128 {
		t.Errorf("Expected brightness 128, got %f", m.Brightness)
	}
	if m.NoiseLevel != 0 {
		t.Errorf("Expected noise 0, got %f", m.NoiseLevel)
	}
	if m.Sharpness != 0 || m.Contrast != 0 || m.RidgeClarity != 0 {
		t.Errorf("Expected flat image to have no sharpness, contrast or clarity, got %+v", m)
	}
	if m.OverallQuality != 10 {
		t.Errorf("Expected overall quality 10, got %f", m.OverallQuality)
	}
}

func TestQualityAnalyzer_StripesAreSharperThanUniform(t *testing.T) {
	qa := newQualityAnalyzer()
	stripes := createStripeGray(100, 100, 8)

	m, _ := qa.Analyze(stripes, stripes)

	if m.Sharpness <= 0 {
		t.Errorf("Expected positive sharpness for stripes, got %f", m.Sharpness)
	}
	if m.Contrast <= 50 {
		t.Errorf("Expected high contrast for stripes, got %f", m.Contrast)
	}
	if m.RidgeClarity <= 0 || m.RidgeClarity > 100 {
		t.Errorf("Expected ridge clarity in (0,100], got %f", m.RidgeClarity)
	}
}

func TestQualityAnalyzer_SizeMismatchDegradesNoiseOnly(t *testing.T) {
	qa := newQualityAnalyzer()
	original := createUniformGray(50, 50, 10)
	processed := createStripeGray(100, 100, 8)

	m, warnings := qa.Analyze(original, processed)

	if len(warnings) != 1 {
		t.Fatalf("Expected exactly one warning, got %v", warnings)
	}
	if m.NoiseLevel != 0 {
		t.Errorf("Expected degraded noise level 0, got %f", m.NoiseLevel)
	}
	if m.Sharpness <= 0 {
		t.Errorf("Expected sharpness to be unaffected, got %f", m.Sharpness)
	}
}

func TestQualityAnalyzer_NoiseLevel(t *testing.T) {
	qa := newQualityAnalyzer()
	original := createUniformGray(40, 40, 100)
	processed := createUniformGray(40, 40, 110)

	m, _ := qa.Analyze(original, processed)

	if m.NoiseLevel != 10 {
		t.Errorf("Expected noise level 10, got %f", m.NoiseLevel)
	}
}

func TestQualityAnalyzer_EmptyImage(t *testing.T) {
	qa := newQualityAnalyzer()

	m, warnings := qa.Analyze(nil, image.NewGray(image.Rect(0, 0, 0, 0)))

	if len(warnings) == 0 {
		t.Error("Expected a warning for an empty image")
	}
	if m != (QualityMetrics{}) {
		t.Errorf("Expected zero metrics, got %+v", m)
	}
}

func TestOverallQuality_Bounds(t *testing.T) {
	tests := []struct {
		name                                string
		sharpness, contrast, clarity, noise float64
		want                                float64
	}{
		{"all zero", 0, 0, 0, 0, 10},
		{"clipped high", 1e9, 1e9, 100, 0, 100},
		{"clipped low", 0, 0, 0, 1e6, 0},
		{"typical", 500, 60, 25, 5, 0.15 + 0.15 + 8.75 + 9.5},
		{"nan", math.NaN(), 0, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OverallQuality(tt.sharpness, tt.contrast, tt.clarity, tt.noise)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("OverallQuality() = %f, want %f", got, tt.want)
			}
			if got < 0 || got > 100 {
				t.Errorf("OverallQuality() = %f outside [0,100]", got)
			}
		})
	}
}

func TestMeanAbsoluteDifference_ManyStrips(t *testing.T) {
	original := createNoiseGray(37, 53, 1)
	processed := createNoiseGray(37, 53, 2)

	var want float64
	for i := range original.Pix {
		want += math.Abs(float64(original.Pix[i]) - float64(processed.Pix[i]))
	}
	want /= float64(len(original.Pix))

	got, err := meanAbsoluteDifference(original, processed)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected %f, got %f", want, got)
	}
}

func TestIntensityStats_Population(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 2, 1))
	gray.Pix[0], gray.Pix[1] = 0, 255

	mean, stdDev, err := intensityStats(gray)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if mean != 127.5 {
		t.Errorf("Expected mean 127.5, got %f", mean)
	}
	if stdDev != 127.5 {
		t.Errorf("Expected population std 127.5, got %f", stdDev)
	}
	if variance := stdDev * stdDev; variance != 16256.25 {
		t.Errorf("Expected population variance 16256.25, got %f", variance)
	}
}

func TestSharpness_PopulationVariance(t *testing.T) {
	qa := newQualityAnalyzer()
	gray := image.NewGray(image.Rect(0, 0, 2, 1))
	gray.Pix[0], gray.Pix[1] = 0, 255

	// Laplacian responses are +510 and -510 under reflected borders
	got, err := qa.sharpness(gray)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if math.Abs(got-260100) > 1e-6 {
		t.Errorf("Expected population variance 260100, got %f", got)
	}
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"interpolated", []float64{1, 2, 3, 4}, 0.75, 3.25},
		{"ties at rank", []float64{1, 2, 2, 2, 10}, 0.75, 2},
		{"ties around rank", []float64{0, 0, 10, 10}, 0.75, 10},
		{"between ties", []float64{0, 0, 0, 8, 8}, 0.6, 3.2},
		{"single", []float64{7}, 0.75, 7},
		{"minimum", []float64{1, 5, 9}, 0, 1},
		{"maximum", []float64{1, 5, 9}, 1, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := percentile(tt.sorted, tt.p); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("percentile(%v, %v) = %f, want %f", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
	if got := percentile(nil, 0.5); !math.IsNaN(got) {
		t.Errorf("Expected NaN for no samples, got %f", got)
	}
}

func TestRidgeClarity_TiedMagnitudes(t *testing.T) {
	qa := newQualityAnalyzer()
	// a single vertical edge: most magnitudes tie at zero
	gray := createUniformGray(16, 16, 0)
	for y := 0; y < 16; y++ {
		for x := 8; x < 16; x++ {
			gray.Pix[y*gray.Stride+x] = 255
		}
	}

	got, err := qa.ridgeClarity(gray)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// only the two edge columns sit above the zero 75th percentile
	if want := 2.0 * 16 / 256 * 100; math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected clarity %f, got %f", want, got)
	}
}

func TestRound2(t *testing.T) {
	if got := round2(12.3456); got != 12.35 {
		t.Errorf("Expected 12.35, got %f", got)
	}
	if got := round2(-0.004); got != 0 {
		t.Errorf("Expected 0, got %f", got)
	}
}
