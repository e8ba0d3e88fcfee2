package analyzer

import (
	"fmt"
	"image"
	"math"

	"github.com/emirpasic/gods/stacks/arraystack"
	"gocv.io/x/gocv"

	"github.com/anime-shed/fingerprint-inspector-go/internal/imaging"
)

// coreDeltaDetector locates corner-like points and labels the central ones as cores.
// It is a centrality heuristic, not a Poincaré index over an orientation field.
type coreDeltaDetector struct {
	opts Options
}

func newCoreDeltaDetector(opts Options) *coreDeltaDetector {
	return &coreDeltaDetector{opts: opts}
}

// Detect returns at most MaxSingularPoints core and delta candidates each
func (d *coreDeltaDetector) Detect(gray *image.Gray) (core, delta []SingularPoint, err error) {
	response, w, h, err := d.harrisResponse(gray)
	if err != nil {
		return nil, nil, err
	}
	candidates := strongestComponents(response, w, h, d.opts.HarrisThresholdRatio, d.opts.MaxCornerCandidates)
	core, delta = classifyCandidates(candidates, w, h, d.opts)
	return core, delta, nil
}

// harrisResponse computes det(M) - k*trace(M)^2 for the structure tensor M summed
// over a HarrisBlockSize window.
func (d *coreDeltaDetector) harrisResponse(gray *image.Gray) ([]float64, int, int, error) {
	src, err := imaging.ToMat(gray)
	if err != nil {
		return nil, 0, 0, err
	}
	defer src.Close()
	w, h := src.Cols(), src.Rows()

	aperture := d.opts.HarrisAperture
	block := d.opts.HarrisBlockSize
	scale := 1 / (float64(int(1)<<(aperture-1)) * float64(block) * 255)

	gx := gocv.NewMat()
	defer gx.Close()
	gy := gocv.NewMat()
	defer gy.Close()
	if err := gocv.Sobel(src, &gx, gocv.MatTypeCV32F, 1, 0, aperture, scale, 0, gocv.BorderDefault); err != nil {
		return nil, 0, 0, fmt.Errorf("sobel x: %w", err)
	}
	if err := gocv.Sobel(src, &gy, gocv.MatTypeCV32F, 0, 1, aperture, scale, 0, gocv.BorderDefault); err != nil {
		return nil, 0, 0, fmt.Errorf("sobel y: %w", err)
	}

	dx, err := imaging.Float32s(gx)
	if err != nil {
		return nil, 0, 0, err
	}
	dy, err := imaging.Float32s(gy)
	if err != nil {
		return nil, 0, 0, err
	}
	if len(dx) != w*h || len(dy) != w*h {
		return nil, 0, 0, fmt.Errorf("gradient size mismatch")
	}

	xx := make([]float64, w*h)
	yy := make([]float64, w*h)
	xy := make([]float64, w*h)
	for i := range dx {
		fx, fy := float64(dx[i]), float64(dy[i])
		xx[i] = fx * fx
		yy[i] = fy * fy
		xy[i] = fx * fy
	}
	sxx := boxSum(xx, w, h, block)
	syy := boxSum(yy, w, h, block)
	sxy := boxSum(xy, w, h, block)

	k := d.opts.HarrisK
	response := make([]float64, w*h)
	for i := range response {
		det := sxx[i]*syy[i] - sxy[i]*sxy[i]
		tr := sxx[i] + syy[i]
		response[i] = det - k*tr*tr
	}
	return response, w, h, nil
}

// boxSum sums values over a size x size window anchored at its centre, OpenCV style,
// with reflect-101 borders.
func boxSum(values []float64, w, h, size int) []float64 {
	anchor := size / 2
	out := make([]float64, len(values))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for j := 0; j < size; j++ {
				yy := reflect101(y+j-anchor, h)
				for i := 0; i < size; i++ {
					sum += values[yy*w+reflect101(x+i-anchor, w)]
				}
			}
			out[y*w+x] = sum
		}
	}
	return out
}

func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		} else {
			i = 2*n - 2 - i
		}
	}
	return i
}

// strongestComponents thresholds response at ratio*max, dilates the mask by one pixel
// and returns the strongest pixel of each 8-connected component, in the raster order
// of the components' first pixels.
func strongestComponents(response []float64, w, h int, ratio float64, limit int) []SingularPoint {
	peak := math.Inf(-1)
	for _, v := range response {
		if v > peak {
			peak = v
		}
	}
	if !(peak > 0) || math.IsInf(peak, 0) {
		return nil
	}

	threshold := ratio * peak
	mask := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if response[y*w+x] <= threshold {
				continue
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx >= 0 && nx < w && ny >= 0 && ny < h {
						mask[ny*w+nx] = true
					}
				}
			}
		}
	}

	visited := make([]bool, w*h)
	var points []SingularPoint
	for start := 0; start < w*h && len(points) < limit; start++ {
		if !mask[start] || visited[start] {
			continue
		}

		best := start
		visited[start] = true
		stack := arraystack.New()
		stack.Push(start)
		for !stack.Empty() {
			top, _ := stack.Pop()
			idx := top.(int)
			if response[idx] > response[best] || (response[idx] == response[best] && idx < best) {
				best = idx
			}
			x, y := idx%w, idx/w
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						continue
					}
					n := ny*w + nx
					if mask[n] && !visited[n] {
						visited[n] = true
						stack.Push(n)
					}
				}
			}
		}
		points = append(points, SingularPoint{X: best % w, Y: best / w})
	}
	return points
}

// classifyCandidates splits candidates into cores (strictly inside the central region)
// and deltas, keeping at most MaxSingularPoints of each.
func classifyCandidates(candidates []SingularPoint, w, h int, opts Options) (core, delta []SingularPoint) {
	cores := NewBoundedCollector[SingularPoint](opts.MaxSingularPoints)
	deltas := NewBoundedCollector[SingularPoint](opts.MaxSingularPoints)

	lowX, highX := opts.CentralRegionLow*float64(w), opts.CentralRegionHigh*float64(w)
	lowY, highY := opts.CentralRegionLow*float64(h), opts.CentralRegionHigh*float64(h)
	for _, p := range candidates {
		x, y := float64(p.X), float64(p.Y)
		if x > lowX && x < highX && y > lowY && y < highY {
			cores.Add(p)
		} else {
			deltas.Add(p)
		}
	}
	return cores.Items(), deltas.Items()
}
