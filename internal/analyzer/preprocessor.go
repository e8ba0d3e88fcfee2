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

// minDimension is the smallest side a 3x3 neighbourhood filter can run on
const minDimension = 3

const warnBlankCapture = "blank capture: image has no intensity variation"

// stage transforms one matrix into a freshly allocated one. flat marks inputs with no
// intensity variation.
type stage struct {
	name  string
	apply func(src gocv.Mat, flat bool) (gocv.Mat, error)
}

// preprocessor runs the enhancement chain. Stage order is part of its contract.
type preprocessor struct {
	opts Options
	log  *logrus.Entry
}

func newPreprocessor(opts Options) *preprocessor {
	return &preprocessor{opts: opts, log: logger.WithComponent("preprocessor")}
}

// Enhance runs normalization, noise reduction, contrast enhancement and gaussian
// filtering in that order. It returns the applied step names and any warnings.
func (p *preprocessor) Enhance(gray *image.Gray) (*image.Gray, []string, []string, *apperrors.AppError) {
	return p.run(gray, []stage{
		{StepNormalization, p.normalize},
		{StepNoiseReduction, p.denoise},
		{StepContrastEnhancement, p.enhanceContrast},
		{StepGaussianFiltering, p.smooth},
	})
}

// NormalizeAndDenoise runs only the first two stages, the input of the structural detectors.
func (p *preprocessor) NormalizeAndDenoise(gray *image.Gray) (*image.Gray, []string, []string, *apperrors.AppError) {
	return p.run(gray, []stage{
		{StepNormalization, p.normalize},
		{StepNoiseReduction, p.denoise},
	})
}

// Normalize runs the normalization stage alone; the merger prepares each part with it.
func (p *preprocessor) Normalize(gray *image.Gray) (*image.Gray, []string, *apperrors.AppError) {
	out, _, warnings, err := p.run(gray, []stage{{StepNormalization, p.normalize}})
	return out, warnings, err
}

func (p *preprocessor) run(gray *image.Gray, stages []stage) (*image.Gray, []string, []string, *apperrors.AppError) {
	if err := checkDimensions(gray); err != nil {
		return nil, nil, nil, err
	}

	lo, hi := imaging.MinMax(gray)
	flat := lo == hi
	var warnings []string
	if flat {
		warnings = append(warnings, warnBlankCapture)
		p.log.WithField("intensity", lo).Warn("Flat capture, contrast stages pass through")
	}

	current, err := imaging.ToMat(gray)
	if err != nil {
		return nil, nil, nil, apperrors.NewStageComputationError(stages[0].name, "failed to load raster", err)
	}
	defer func() { current.Close() }()

	steps := make([]string, 0, len(stages))
	for _, s := range stages {
		next, err := s.apply(current, flat)
		if err != nil {
			next.Close()
			return nil, nil, nil, apperrors.NewStageComputationError(s.name, fmt.Sprintf("%s failed", s.name), err)
		}
		current.Close()
		current = next
		steps = append(steps, s.name)
		p.log.WithField("step", s.name).Debug("Preprocessing step applied")
	}

	out, err := imaging.FromMat(current)
	if err != nil {
		return nil, nil, nil, apperrors.NewStageComputationError(steps[len(steps)-1], "failed to read back raster", err)
	}
	return out, steps, warnings, nil
}

// normalize equalizes the histogram and stretches the result to [0,255]
func (p *preprocessor) normalize(src gocv.Mat, flat bool) (gocv.Mat, error) {
	if flat {
		return src.Clone(), nil
	}

	equalized := gocv.NewMat()
	defer equalized.Close()
	if err := gocv.EqualizeHist(src, &equalized); err != nil {
		return gocv.NewMat(), fmt.Errorf("equalize histogram: %w", err)
	}
	if err := checkMat(equalized, src); err != nil {
		return gocv.NewMat(), err
	}

	dst := gocv.NewMat()
	if err := gocv.Normalize(equalized, &dst, 0, 255, gocv.NormMinMax); err != nil {
		return dst, fmt.Errorf("normalize: %w", err)
	}
	return dst, checkMat(dst, src)
}

// denoise suppresses salt-and-pepper noise, then smooths while keeping ridge edges
func (p *preprocessor) denoise(src gocv.Mat, _ bool) (gocv.Mat, error) {
	median := gocv.NewMat()
	defer median.Close()
	if err := gocv.MedianBlur(src, &median, p.opts.MedianKernel); err != nil {
		return gocv.NewMat(), fmt.Errorf("median blur: %w", err)
	}
	if err := checkMat(median, src); err != nil {
		return gocv.NewMat(), err
	}

	dst := gocv.NewMat()
	if err := gocv.BilateralFilter(median, &dst, p.opts.BilateralDiameter, p.opts.BilateralSigmaColor, p.opts.BilateralSigmaSpace); err != nil {
		return dst, fmt.Errorf("bilateral filter: %w", err)
	}
	return dst, checkMat(dst, src)
}

// enhanceContrast applies tile-local adaptive histogram equalization
func (p *preprocessor) enhanceContrast(src gocv.Mat, flat bool) (gocv.Mat, error) {
	if flat {
		return src.Clone(), nil
	}

	clahe := gocv.NewCLAHEWithParams(p.opts.ClaheClipLimit, image.Point{X: p.opts.ClaheTileGrid, Y: p.opts.ClaheTileGrid})
	defer clahe.Close()

	dst := gocv.NewMat()
	if err := clahe.Apply(src, &dst); err != nil {
		return dst, fmt.Errorf("clahe: %w", err)
	}
	return dst, checkMat(dst, src)
}

// smooth removes residual high-frequency artifacts
func (p *preprocessor) smooth(src gocv.Mat, _ bool) (gocv.Mat, error) {
	dst := gocv.NewMat()
	k := p.opts.GaussianKernel
	if err := gocv.GaussianBlur(src, &dst, image.Point{X: k, Y: k}, 0, 0, gocv.BorderDefault); err != nil {
		return dst, fmt.Errorf("gaussian blur: %w", err)
	}
	return dst, checkMat(dst, src)
}

func checkDimensions(gray *image.Gray) *apperrors.AppError {
	if gray == nil {
		return apperrors.NewStageComputationError(StepNormalization, "no raster supplied", nil)
	}
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	if w < minDimension || h < minDimension {
		return apperrors.NewStageComputationError(StepNormalization,
			fmt.Sprintf("image %dx%d is smaller than %dx%d", w, h, minDimension, minDimension), nil)
	}
	return nil
}

// checkMat verifies that an OpenCV call produced a matrix shaped like its input
func checkMat(out, like gocv.Mat) error {
	if out.Empty() {
		return fmt.Errorf("operation produced an empty matrix")
	}
	if out.Rows() != like.Rows() || out.Cols() != like.Cols() {
		return fmt.Errorf("operation changed size from %dx%d to %dx%d", like.Cols(), like.Rows(), out.Cols(), out.Rows())
	}
	return nil
}
