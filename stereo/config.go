package stereo

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
)

// Config are the attributes of a stereo depth estimator.
type Config struct {
	// NumDisparities is how many disparity levels are searched, starting at zero.
	NumDisparities int `json:"num_disparities"`
	// BlockSize is the side of the square matching window in pixels.
	BlockSize int `json:"block_size"`
	// FocalLength is the focal length of the rectified cameras in pixels.
	FocalLength float64    `json:"focal_length"`
	BaselineM   float64    `json:"baseline_m"`
	DepthRangeM [2]float64 `json:"depth_range_m"`
	// Equalize runs histogram equalization on both frames before matching.
	Equalize bool `json:"equalize"`
	// SpeckleWindow is the side of the median filter applied to the depth output; 0 or 1 disables it.
	SpeckleWindow int `json:"speckle_window"`
}

// DefaultConfig returns the estimator defaults.
func DefaultConfig() Config {
	return Config{
		NumDisparities: 64,
		BlockSize:      9,
		FocalLength:    525,
		BaselineM:      0.075,
		DepthRangeM:    [2]float64{0.1, 5},
		Equalize:       true,
		SpeckleWindow:  3,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	var errs error
	if cfg.NumDisparities <= 0 || cfg.NumDisparities%16 != 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("num_disparities must be a positive multiple of 16, got %d", cfg.NumDisparities)))
	}
	if cfg.BlockSize < 3 || cfg.BlockSize > 255 || cfg.BlockSize%2 == 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("block_size must be odd and within [3, 255], got %d", cfg.BlockSize)))
	}
	if cfg.FocalLength <= 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(path, "focal_length"))
	}
	if cfg.BaselineM <= 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(path, "baseline_m"))
	}
	if cfg.DepthRangeM[0] <= 0 || cfg.DepthRangeM[1] <= cfg.DepthRangeM[0] {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("depth_range_m must be 0 < min < max, got %v", cfg.DepthRangeM)))
	}
	if cfg.SpeckleWindow < 0 || (cfg.SpeckleWindow > 1 && cfg.SpeckleWindow%2 == 0) {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("speckle_window must be 0, 1 or an odd size, got %d", cfg.SpeckleWindow)))
	}
	return errs
}
