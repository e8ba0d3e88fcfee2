package analyzer

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/anime-shed/fingerprint-inspector-go/internal/imaging"
)

type minutiaeExtractor struct {
	opts Options
}

func newMinutiaeExtractor(opts Options) *minutiaeExtractor {
	return &minutiaeExtractor{opts: opts}
}

// Extract binarizes and skeletonizes gray and returns ridge endings and bifurcations
// in raster order, at most MaxMinutiae of them.
func (e *minutiaeExtractor) Extract(gray *image.Gray) ([]MinutiaPoint, error) {
	skeleton, err := e.skeletonize(gray)
	if err != nil {
		return nil, err
	}
	return scanMinutiae(skeleton, e.opts.MaxMinutiae), nil
}

// skeletonize closes small gaps between ridge fragments, thresholds the result
// and thins it into a 0/1 grid.
func (e *minutiaeExtractor) skeletonize(gray *image.Gray) (*binaryGrid, error) {
	src, err := imaging.ToMat(gray)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: e.opts.ClosingKernel, Y: e.opts.ClosingKernel})
	defer kernel.Close()

	closed := gocv.NewMat()
	defer closed.Close()
	if err := gocv.MorphologyEx(src, &closed, gocv.MorphClose, kernel); err != nil {
		return nil, fmt.Errorf("closing: %w", err)
	}
	if err := checkMat(closed, src); err != nil {
		return nil, err
	}

	thresholded := gocv.NewMat()
	defer thresholded.Close()
	gocv.Threshold(closed, &thresholded, float32(e.opts.BinaryThreshold), 255, gocv.ThresholdBinary)
	if err := checkMat(thresholded, src); err != nil {
		return nil, err
	}

	return thin(thresholded)
}

// scanMinutiae classifies interior skeleton pixels by their 8-neighbour count
func scanMinutiae(skeleton *binaryGrid, limit int) []MinutiaPoint {
	found := NewBoundedCollector[MinutiaPoint](limit)
	for y := 1; y < skeleton.height-1 && !found.Full(); y++ {
		for x := 1; x < skeleton.width-1 && !found.Full(); x++ {
			if skeleton.at(x, y) == 0 {
				continue
			}
			count := 0
			for _, v := range skeleton.neighbours(x, y) {
				count += int(v)
			}
			switch {
			case count == 1:
				found.Add(MinutiaPoint{Kind: MinutiaEnding, X: x, Y: y})
			case count >= 3:
				found.Add(MinutiaPoint{Kind: MinutiaBifurcation, X: x, Y: y})
			}
		}
	}
	return found.Items()
}
