package analyzer

import (
	"fmt"
	"image"
	"math"
	"math/cmplx"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"github.com/anime-shed/fingerprint-inspector-go/internal/imaging"
)

// Orientations of the filter bank, in degrees
var gaborOrientations = [...]float64{0, 45, 90, 135}

type ridgePatternDetector struct {
	opts Options
}

func newRidgePatternDetector(opts Options) *ridgePatternDetector {
	return &ridgePatternDetector{opts: opts}
}

// Detect estimates dominant orientation, ridge frequency and pattern strength
func (d *ridgePatternDetector) Detect(gray *image.Gray) (RidgePatternAnalysis, error) {
	src, err := imaging.ToMat(gray)
	if err != nil {
		return RidgePatternAnalysis{}, err
	}
	defer src.Close()

	responses := make([][]float32, 0, len(gaborOrientations))
	for _, theta := range gaborOrientations {
		resp, err := d.filter(src, theta)
		if err != nil {
			return RidgePatternAnalysis{}, fmt.Errorf("orientation %v: %w", theta, err)
		}
		responses = append(responses, resp)
	}

	orientation, strength, err := summarizeResponses(responses)
	if err != nil {
		return RidgePatternAnalysis{}, err
	}

	frequency, err := spectrumWindowMean(imaging.Compact(gray), d.opts.SpectrumWindow)
	if err != nil {
		return RidgePatternAnalysis{}, err
	}

	return RidgePatternAnalysis{
		DominantOrientation: orientation,
		RidgeFrequency:      frequency,
		PatternStrength:     strength,
	}, nil
}

// filter returns the absolute response of src to the kernel oriented at theta degrees
func (d *ridgePatternDetector) filter(src gocv.Mat, theta float64) ([]float32, error) {
	size := d.opts.GaborKernelSize
	values := gaborKernel(size, d.opts.GaborSigma, theta*math.Pi/180, d.opts.GaborWavelength, d.opts.GaborAspect, 0)
	kernel, err := imaging.MatFromFloat32s(size, size, values)
	if err != nil {
		return nil, err
	}
	defer kernel.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	if err := gocv.Filter2D(src, &dst, gocv.MatTypeCV32F, kernel, image.Point{X: -1, Y: -1}, 0, gocv.BorderDefault); err != nil {
		return nil, err
	}
	if err := checkMat(dst, src); err != nil {
		return nil, err
	}

	resp, err := imaging.Float32s(dst)
	if err != nil {
		return nil, err
	}
	for i, v := range resp {
		resp[i] = float32(math.Abs(float64(v)))
	}
	return resp, nil
}

// gaborKernel builds a size x size kernel in row-major order, laid out the way
// OpenCV's getGaborKernel lays it out.
func gaborKernel(size int, sigma, theta, lambda, gamma, psi float64) []float32 {
	half := size / 2
	sigmaX := sigma
	sigmaY := sigma / gamma
	ex := -0.5 / (sigmaX * sigmaX)
	ey := -0.5 / (sigmaY * sigmaY)
	scale := 2 * math.Pi / lambda
	c, s := math.Cos(theta), math.Sin(theta)

	kernel := make([]float32, size*size)
	for y := -half; y <= half; y++ {
		for x := -half; x <= half; x++ {
			xr := float64(x)*c + float64(y)*s
			yr := -float64(x)*s + float64(y)*c
			v := math.Exp(ex*xr*xr+ey*yr*yr) * math.Cos(scale*xr+psi)
			kernel[(half-y)*size+(half-x)] = float32(v)
		}
	}
	return kernel
}

// summarizeResponses picks the orientation with the strongest mean response and
// measures how much the orientation-averaged response varies across the image.
func summarizeResponses(responses [][]float32) (orientation, strength float64, err error) {
	if len(responses) != len(gaborOrientations) {
		return 0, 0, fmt.Errorf("expected %d responses, got %d", len(gaborOrientations), len(responses))
	}
	n := len(responses[0])
	if n == 0 {
		return 0, 0, fmt.Errorf("empty response")
	}

	best := math.Inf(-1)
	averaged := make([]float64, n)
	for k, resp := range responses {
		if len(resp) != n {
			return 0, 0, fmt.Errorf("response %d has %d values, want %d", k, len(resp), n)
		}
		var sum float64
		for i, v := range resp {
			sum += float64(v)
			averaged[i] += float64(v) / float64(len(responses))
		}
		if mean := sum / float64(n); mean > best {
			best = mean
			orientation = gaborOrientations[k]
		}
	}

	if strength, err = finite(stat.PopStdDev(averaged, nil)); err != nil {
		return 0, 0, err
	}
	return orientation, strength, nil
}

// spectrumWindowMean returns the mean of ln(|F|+1) over a window x window block
// centred on the zero frequency of the 2D DFT of g.
func spectrumWindowMean(g *image.Gray, window int) (float64, error) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if w == 0 || h == 0 {
		return 0, fmt.Errorf("empty raster")
	}

	fys := windowFrequencies(h, window)
	fxs := windowFrequencies(w, window)

	rowFFT := fourier.NewCmplxFFT(w)
	rows := make([][]complex128, h)
	line := make([]complex128, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			line[x] = complex(float64(g.Pix[y*g.Stride+x]), 0)
		}
		rows[y] = rowFFT.Coefficients(nil, line)
	}

	colFFT := fourier.NewCmplxFFT(h)
	column := make([]complex128, h)
	spectrum := make([]complex128, h)
	var sum float64
	for _, fx := range fxs {
		for y := 0; y < h; y++ {
			column[y] = rows[y][fx]
		}
		colFFT.Coefficients(spectrum, column)
		for _, fy := range fys {
			sum += math.Log(cmplx.Abs(spectrum[fy]) + 1)
		}
	}

	mean := sum / float64(len(fxs)*len(fys))
	return finite(mean)
}

// windowFrequencies lists the DFT indices of frequencies -half..half-1, wrapped
// into [0,n). The window shrinks to fit short axes.
func windowFrequencies(n, window int) []int {
	half := window / 2
	if n/2 < half {
		half = n / 2
	}
	if half == 0 {
		return []int{0}
	}
	out := make([]int, 0, 2*half)
	for f := -half; f < half; f++ {
		out = append(out, (f+n)%n)
	}
	return out
}
