package analyzer

import (
	defaults "github.com/mcuadros/go-defaults"
)

// Options holds every tunable constant of the fingerprint pipeline.
// Zero values are never used directly: DefaultOptions fills them from the default tags.
type Options struct {
	// Denoise
	MedianKernel        int     `default:"3" yaml:"median_kernel" toml:"median_kernel"`
	BilateralDiameter   int     `default:"9" yaml:"bilateral_diameter" toml:"bilateral_diameter"`
	BilateralSigmaColor float64 `default:"75" yaml:"bilateral_sigma_color" toml:"bilateral_sigma_color"`
	BilateralSigmaSpace float64 `default:"75" yaml:"bilateral_sigma_space" toml:"bilateral_sigma_space"`

	// Contrast and smoothing
	ClaheClipLimit float64 `default:"2.0" yaml:"clahe_clip_limit" toml:"clahe_clip_limit"`
	ClaheTileGrid  int     `default:"8" yaml:"clahe_tile_grid" toml:"clahe_tile_grid"`
	GaussianKernel int     `default:"3" yaml:"gaussian_kernel" toml:"gaussian_kernel"`

	// Oriented filter bank
	GaborKernelSize int     `default:"21" yaml:"gabor_kernel_size" toml:"gabor_kernel_size"`
	GaborSigma      float64 `default:"5" yaml:"gabor_sigma" toml:"gabor_sigma"`
	GaborWavelength float64 `default:"10" yaml:"gabor_wavelength" toml:"gabor_wavelength"`
	GaborAspect     float64 `default:"0.5" yaml:"gabor_aspect" toml:"gabor_aspect"`
	SpectrumWindow  int     `default:"40" yaml:"spectrum_window" toml:"spectrum_window"`

	// Minutiae
	BinaryThreshold int `default:"127" yaml:"binary_threshold" toml:"binary_threshold"`
	ClosingKernel   int `default:"3" yaml:"closing_kernel" toml:"closing_kernel"`
	MaxMinutiae     int `default:"50" yaml:"max_minutiae" toml:"max_minutiae"`

	// Core and delta candidates
	HarrisBlockSize      int     `default:"2" yaml:"harris_block_size" toml:"harris_block_size"`
	HarrisAperture       int     `default:"3" yaml:"harris_aperture" toml:"harris_aperture"`
	HarrisK              float64 `default:"0.04" yaml:"harris_k" toml:"harris_k"`
	HarrisThresholdRatio float64 `default:"0.01" yaml:"harris_threshold_ratio" toml:"harris_threshold_ratio"`
	MaxCornerCandidates  int     `default:"10" yaml:"max_corner_candidates" toml:"max_corner_candidates"`
	MaxSingularPoints    int     `default:"3" yaml:"max_singular_points" toml:"max_singular_points"`
	CentralRegionLow     float64 `default:"0.3" yaml:"central_region_low" toml:"central_region_low"`
	CentralRegionHigh    float64 `default:"0.7" yaml:"central_region_high" toml:"central_region_high"`

	// Ridge counting and edge statistics
	CannyLow     float64 `default:"50" yaml:"canny_low" toml:"canny_low"`
	CannyHigh    float64 `default:"150" yaml:"canny_high" toml:"canny_high"`
	MinRidgeArea float64 `default:"50" yaml:"min_ridge_area" toml:"min_ridge_area"`
	MaxRidgeArea float64 `default:"1000" yaml:"max_ridge_area" toml:"max_ridge_area"`

	// Merge
	SeamWidth int `default:"20" yaml:"seam_width" toml:"seam_width"`
}

// DefaultOptions returns the reference pipeline constants
func DefaultOptions() Options {
	var opts Options
	defaults.SetDefaults(&opts)
	return opts
}

// Normalized fills any zero field from the defaults, so partially specified
// pipeline files keep the reference behaviour for everything they omit.
func (opts Options) Normalized() Options {
	defaults.SetDefaults(&opts)
	return opts
}

// WithSeamWidth returns options with a different merge seam
func (opts Options) WithSeamWidth(width int) Options {
	opts.SeamWidth = width
	return opts
}

// WithMaxMinutiae returns options with a different minutiae cap
func (opts Options) WithMaxMinutiae(limit int) Options {
	opts.MaxMinutiae = limit
	return opts
}

// WithCannyThresholds sets the hysteresis thresholds used for ridge counting and edge continuity
func (opts Options) WithCannyThresholds(low, high float64) Options {
	opts.CannyLow = low
	opts.CannyHigh = high
	return opts
}

// WithGabor overrides the oriented filter bank geometry
func (opts Options) WithGabor(kernelSize int, sigma, wavelength, aspect float64) Options {
	opts.GaborKernelSize = kernelSize
	opts.GaborSigma = sigma
	opts.GaborWavelength = wavelength
	opts.GaborAspect = aspect
	return opts
}
