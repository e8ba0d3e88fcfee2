package analyzer

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/anime-shed/fingerprint-inspector-go/internal/imaging"
)

type ridgeCounter struct {
	opts Options
}

func newRidgeCounter(opts Options) *ridgeCounter {
	return &ridgeCounter{opts: opts}
}

// Count returns the number of external edge contours whose area lies strictly
// between MinRidgeArea and MaxRidgeArea.
func (rc *ridgeCounter) Count(gray *image.Gray) (int, error) {
	src, err := imaging.ToMat(gray)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	edges := gocv.NewMat()
	defer edges.Close()
	if err := gocv.Canny(src, &edges, float32(rc.opts.CannyLow), float32(rc.opts.CannyHigh)); err != nil {
		return 0, fmt.Errorf("canny: %w", err)
	}
	if err := checkMat(edges, src); err != nil {
		return 0, err
	}

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	count := 0
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area > rc.opts.MinRidgeArea && area < rc.opts.MaxRidgeArea {
			count++
		}
	}
	return count, nil
}

// edgeDensity is the fraction of pixels Canny marks as edges
func edgeDensity(src gocv.Mat, low, high float64) (float64, error) {
	edges := gocv.NewMat()
	defer edges.Close()
	if err := gocv.Canny(src, &edges, float32(low), float32(high)); err != nil {
		return 0, fmt.Errorf("canny: %w", err)
	}
	if err := checkMat(edges, src); err != nil {
		return 0, err
	}
	total := edges.Rows() * edges.Cols()
	return float64(gocv.CountNonZero(edges)) / float64(total), nil
}
