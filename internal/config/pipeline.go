package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/anime-shed/fingerprint-inspector-go/internal/analyzer"
)

// LoadPipelineOptions reads analyzer options from a YAML or TOML file, chosen by
// extension. Fields the file omits keep their defaults. An empty path returns the defaults.
func LoadPipelineOptions(path string) (analyzer.Options, error) {
	if path == "" {
		return analyzer.DefaultOptions(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return analyzer.Options{}, fmt.Errorf("error reading pipeline config: %w", err)
	}

	var opts analyzer.Options
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &opts); err != nil {
			return analyzer.Options{}, fmt.Errorf("error parsing pipeline config: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &opts); err != nil {
			return analyzer.Options{}, fmt.Errorf("error parsing pipeline config: %w", err)
		}
	default:
		return analyzer.Options{}, fmt.Errorf("unsupported pipeline config format %q", ext)
	}

	opts = opts.Normalized()
	if err := validatePipeline(opts); err != nil {
		return analyzer.Options{}, err
	}
	return opts, nil
}

func validatePipeline(opts analyzer.Options) error {
	for name, k := range map[string]int{
		"median_kernel":     opts.MedianKernel,
		"gaussian_kernel":   opts.GaussianKernel,
		"gabor_kernel_size": opts.GaborKernelSize,
	} {
		if k < 1 || k%2 == 0 {
			return fmt.Errorf("%s must be a positive odd number (got %d)", name, k)
		}
	}
	if opts.SeamWidth < 1 {
		return fmt.Errorf("seam_width must be > 0 (got %d)", opts.SeamWidth)
	}
	if opts.CannyLow >= opts.CannyHigh {
		return fmt.Errorf("canny_low must be below canny_high (got %v >= %v)", opts.CannyLow, opts.CannyHigh)
	}
	if opts.MinRidgeArea >= opts.MaxRidgeArea {
		return fmt.Errorf("min_ridge_area must be below max_ridge_area (got %v >= %v)", opts.MinRidgeArea, opts.MaxRidgeArea)
	}
	if opts.CentralRegionLow >= opts.CentralRegionHigh {
		return fmt.Errorf("central_region_low must be below central_region_high")
	}
	return nil
}
