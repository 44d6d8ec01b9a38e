// Package config holds the configuration of a depth-to-terrain pipeline and how to read it.
package config

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/arsandbox/sandscape/fusion"
	"github.com/arsandbox/sandscape/logging"
	"github.com/arsandbox/sandscape/pointcloud"
	"github.com/arsandbox/sandscape/rimage/transform"
	"github.com/arsandbox/sandscape/stereo"
	"github.com/arsandbox/sandscape/temporal"
	"github.com/arsandbox/sandscape/terrain"
	"github.com/arsandbox/sandscape/vision/material"
)

// Camera describes the primary depth sensor.
type Camera struct {
	IntrinsicParams *transform.PinholeCameraIntrinsics `json:"intrinsic_parameters,omitempty"`
	// IntrinsicsFile, when set, replaces IntrinsicParams with the contents of a JSON file. A relative
	// path is resolved against the config file's directory.
	IntrinsicsFile string `json:"intrinsics_file,omitempty"`
}

// Config is the configuration of one pipeline instance.
type Config struct {
	Camera     Camera                      `json:"camera"`
	Stereo     stereo.Config               `json:"stereo"`
	Fusion     fusion.Config               `json:"fusion"`
	Temporal   temporal.Config             `json:"temporal"`
	Projection pointcloud.ProjectionConfig `json:"projection"`
	Grid       terrain.GridConfig          `json:"grid"`
	Voxel      pointcloud.VoxelConfig      `json:"voxel"`
	Change     terrain.ChangeConfig        `json:"change"`
	Material   material.Config             `json:"material"`

	// FrameBudgetMS is the per-frame processing time above which a cycle is reported as an
	// overrun; 0 disables the check.
	FrameBudgetMS int           `json:"frame_budget_ms,omitempty"`
	LogLevel      logging.Level `json:"log_level"`

	ConfigFilePath string `json:"-"`
}

// DefaultIntrinsics are the parameters of a 640x480 structured-light sensor.
func DefaultIntrinsics() *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{
		Width:  640,
		Height: 480,
		Fx:     525,
		Fy:     525,
		Ppx:    319.5,
		Ppy:    239.5,
	}
}

// Default returns a config with every section at its defaults.
func Default() *Config {
	return &Config{
		Camera:     Camera{IntrinsicParams: DefaultIntrinsics()},
		Stereo:     stereo.DefaultConfig(),
		Fusion:     fusion.DefaultConfig(),
		Temporal:   temporal.DefaultConfig(),
		Projection: pointcloud.DefaultProjectionConfig(),
		Grid:       terrain.DefaultGridConfig(),
		Voxel:      pointcloud.DefaultVoxelConfig(),
		Change:     terrain.DefaultChangeConfig(),
		Material:   material.DefaultConfig(),
		LogLevel:   logging.INFO,
	}
}

func join(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

// Validate ensures all parts of the config are valid. Every section is checked and all failures
// are reported together.
func (cfg *Config) Validate(path string) error {
	var errs error
	if err := cfg.Camera.IntrinsicParams.CheckValid(); err != nil {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(join(path, "camera.intrinsic_parameters"), err))
	}
	errs = multierr.Combine(errs,
		cfg.Stereo.Validate(join(path, "stereo")),
		cfg.Fusion.Validate(join(path, "fusion")),
		cfg.Temporal.Validate(join(path, "temporal")),
		cfg.Projection.Validate(join(path, "projection")),
		cfg.Grid.Validate(join(path, "grid")),
		cfg.Voxel.Validate(join(path, "voxel")),
		cfg.Change.Validate(join(path, "change")),
		cfg.Material.Validate(join(path, "material")),
	)
	if cfg.FrameBudgetMS < 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("frame_budget_ms cannot be negative, got %d", cfg.FrameBudgetMS)))
	}
	return errs
}
