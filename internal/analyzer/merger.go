package analyzer

import (
	"fmt"
	"image"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	apperrors "github.com/anime-shed/fingerprint-inspector-go/internal/errors"
	"github.com/anime-shed/fingerprint-inspector-go/internal/imaging"
	"github.com/anime-shed/fingerprint-inspector-go/internal/logger"
)

// StageMerge names merge failures in StageComputationError details
const StageMerge = "merge"

// merger stitches partial captures side by side with a blended seam.
// Ridges are not aligned across the seam.
type merger struct {
	opts    Options
	pre     *preprocessor
	quality *qualityAnalyzer
	log     *logrus.Entry
}

func newMerger(opts Options, pre *preprocessor, quality *qualityAnalyzer) *merger {
	return &merger{opts: opts, pre: pre, quality: quality, log: logger.WithComponent("merger")}
}

// Merge composes two or three parts left to right. Three parts are merged as
// the pair of (left+middle) and right, so the result matches merging the
// intermediate composite with right in a separate call.
func (m *merger) Merge(parts ...*image.Gray) (MergeResult, []string, *apperrors.AppError) {
	if len(parts) < 2 || len(parts) > 3 {
		return MergeResult{}, nil, apperrors.NewValidationError(fmt.Sprintf("merge needs 2 or 3 parts, got %d", len(parts)), nil)
	}

	var warnings []string
	merged := parts[0]
	for i, part := range parts[1:] {
		out, warns, err := m.mergePair(merged, part)
		if err != nil {
			return MergeResult{}, nil, err
		}
		warnings = append(warnings, warns...)
		merged = out
		m.log.WithFields(logrus.Fields{"step": i + 1, "width": out.Rect.Dx(), "height": out.Rect.Dy()}).Debug("Merged pair")
	}

	quality, err := m.measure(merged)
	if err != nil {
		return MergeResult{}, nil, err
	}

	return MergeResult{
		Merged:  merged,
		Quality: quality,
		Width:   merged.Rect.Dx(),
		Height:  merged.Rect.Dy(),
	}, warnings, nil
}

// mergePair normalizes both parts, scales them to the shorter height and blends
// SeamWidth columns where they meet.
func (m *merger) mergePair(left, right *image.Gray) (*image.Gray, []string, *apperrors.AppError) {
	var warnings []string

	normLeft, warns, err := m.pre.Normalize(left)
	if err != nil {
		return nil, nil, err
	}
	warnings = append(warnings, warns...)
	normRight, warns, err := m.pre.Normalize(right)
	if err != nil {
		return nil, nil, err
	}
	warnings = append(warnings, warns...)

	height := normLeft.Rect.Dy()
	if h := normRight.Rect.Dy(); h < height {
		height = h
	}

	scaledLeft, err := m.scaleToHeight(normLeft, height)
	if err != nil {
		return nil, nil, err
	}
	scaledRight, err := m.scaleToHeight(normRight, height)
	if err != nil {
		return nil, nil, err
	}

	seam, seamErr := m.blendSeam(scaledLeft, scaledRight)
	if seamErr != nil {
		return nil, nil, apperrors.NewStageComputationError(StageMerge, "seam blending failed", seamErr)
	}
	return assemble(scaledLeft, scaledRight, seam), warnings, nil
}

// scaleToHeight resizes g to height, keeping the aspect ratio with a truncated width
func (m *merger) scaleToHeight(g *image.Gray, height int) (*image.Gray, *apperrors.AppError) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	width := w * height / h
	if width < m.opts.SeamWidth {
		return nil, apperrors.NewStageComputationError(StageMerge,
			fmt.Sprintf("part is %d px wide after scaling, narrower than the %d px seam", width, m.opts.SeamWidth), nil)
	}
	if height == h {
		return g, nil
	}

	src, err := imaging.ToMat(g)
	if err != nil {
		return nil, apperrors.NewStageComputationError(StageMerge, "failed to load part", err)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	if err := gocv.Resize(src, &dst, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationLinear); err != nil {
		return nil, apperrors.NewStageComputationError(StageMerge, "failed to resize part", err)
	}
	if dst.Empty() || dst.Cols() != width || dst.Rows() != height {
		return nil, apperrors.NewStageComputationError(StageMerge, "resize produced an unexpected size", nil)
	}

	out, err := imaging.FromMat(dst)
	if err != nil {
		return nil, apperrors.NewStageComputationError(StageMerge, "failed to read resized part", err)
	}
	return out, nil
}

// blendSeam averages the last SeamWidth columns of left with the first SeamWidth of right
func (m *merger) blendSeam(left, right *image.Gray) (*image.Gray, error) {
	seam := m.opts.SeamWidth
	leftEdge := columns(left, left.Rect.Dx()-seam, seam)
	rightEdge := columns(right, 0, seam)

	a, err := imaging.ToMat(leftEdge)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	b, err := imaging.ToMat(rightEdge)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	blended := gocv.NewMat()
	defer blended.Close()
	if err := gocv.AddWeighted(a, 0.5, b, 0.5, 0, &blended); err != nil {
		return nil, fmt.Errorf("blend seam: %w", err)
	}
	if err := checkMat(blended, a); err != nil {
		return nil, err
	}
	return imaging.FromMat(blended)
}

// columns copies width columns of g starting at x0
func columns(g *image.Gray, x0, width int) *image.Gray {
	h := g.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, width, h))
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride+x0 : y*g.Stride+x0+width]
		copy(out.Pix[y*out.Stride:], row)
	}
	return out
}

// assemble lays out left, the blended seam and the rest of right. All three share a height.
func assemble(left, right, seam *image.Gray) *image.Gray {
	sw := seam.Rect.Dx()
	wl, wr, h := left.Rect.Dx(), right.Rect.Dx(), left.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, wl+wr-sw, h))
	for y := 0; y < h; y++ {
		dst := out.Pix[y*out.Stride : (y+1)*out.Stride]
		n := copy(dst, left.Pix[y*left.Stride:y*left.Stride+wl-sw])
		n += copy(dst[n:], seam.Pix[y*seam.Stride:y*seam.Stride+sw])
		copy(dst[n:], right.Pix[y*right.Stride+sw:y*right.Stride+wr])
	}
	return out
}

// measure scores the composite against itself and adds seam statistics
func (m *merger) measure(merged *image.Gray) (MergeQuality, *apperrors.AppError) {
	metrics, warnings := m.quality.Analyze(merged, merged)
	for _, w := range warnings {
		m.log.WithField("warning", w).Warn("Merged image metric degraded")
	}

	src, err := imaging.ToMat(merged)
	if err != nil {
		return MergeQuality{}, apperrors.NewStageComputationError(StageMerge, "failed to load composite", err)
	}
	defer src.Close()

	density, err := edgeDensity(src, m.opts.CannyLow, m.opts.CannyHigh)
	if err != nil {
		return MergeQuality{}, apperrors.NewStageComputationError(StageMerge, "edge statistics failed", err)
	}
	continuity := (1 - density) * 100

	return MergeQuality{
		QualityMetrics: metrics,
		EdgeContinuity: round2(continuity),
		MergeSuccess:   round2(MergeSuccess(metrics.OverallQuality, continuity)),
	}, nil
}

// MergeSuccess averages overall quality and edge continuity, clamped to [0,100]
func MergeSuccess(overallQuality, edgeContinuity float64) float64 {
	return clamp((overallQuality+edgeContinuity)/2, 0, 100)
}
