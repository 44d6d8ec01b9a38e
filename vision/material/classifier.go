package material

import (
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/arsandbox/sandscape/logging"
	"github.com/arsandbox/sandscape/pointcloud"
	"github.com/arsandbox/sandscape/utils"
)

// Config holds the thresholds of the decision table. Heights are normalized to [0, 1]; hues are
// in degrees and saturation and value in [0, 1].
type Config struct {
	WaterMaxHeight     float64 `json:"water_max_height"`
	SandMaxHeight      float64 `json:"sand_max_height"`
	StoneMinHeight     float64 `json:"stone_min_height"`
	DarkMaxValue       float64 `json:"dark_max_value"`
	GreenMinHue        float64 `json:"green_min_hue"`
	GreenMaxHue        float64 `json:"green_max_hue"`
	GreenMinSaturation float64 `json:"green_min_saturation"`
}

// DefaultConfig returns the classifier defaults.
func DefaultConfig() Config {
	return Config{
		WaterMaxHeight:     0.2,
		SandMaxHeight:      0.5,
		StoneMinHeight:     0.75,
		DarkMaxValue:       0.35,
		GreenMinHue:        75,
		GreenMaxHue:        165,
		GreenMinSaturation: 0.25,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	var errs error
	if !(0 <= cfg.WaterMaxHeight && cfg.WaterMaxHeight <= cfg.SandMaxHeight &&
		cfg.SandMaxHeight <= cfg.StoneMinHeight && cfg.StoneMinHeight <= 1) {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("height thresholds must satisfy 0 <= water_max_height <= sand_max_height <= stone_min_height <= 1, got %v, %v, %v",
				cfg.WaterMaxHeight, cfg.SandMaxHeight, cfg.StoneMinHeight)))
	}
	if !utils.InRange(cfg.DarkMaxValue, 0, 1) {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("dark_max_value must be within [0, 1], got %v", cfg.DarkMaxValue)))
	}
	if !(0 <= cfg.GreenMinHue && cfg.GreenMinHue < cfg.GreenMaxHue && cfg.GreenMaxHue <= 360) {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("green hue range must satisfy 0 <= min < max <= 360, got [%v, %v]", cfg.GreenMinHue, cfg.GreenMaxHue)))
	}
	if !utils.InRange(cfg.GreenMinSaturation, 0, 1) {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("green_min_saturation must be within [0, 1], got %v", cfg.GreenMinSaturation)))
	}
	return errs
}

// Classifier labels voxel grids.
type Classifier struct {
	cfg    Config
	logger logging.Logger
}

// NewClassifier returns a classifier for the given thresholds.
func NewClassifier(cfg Config, logger logging.Logger) (*Classifier, error) {
	if err := cfg.Validate("material"); err != nil {
		return nil, err
	}
	return &Classifier{cfg: cfg, logger: logger}, nil
}

// Classify gives every occupied voxel exactly one material and every empty voxel None.
//
// Height runs against the K axis: the camera looks down on the terrain, so smaller z is higher.
// A column's height is how far its topmost occupied voxel sits above the deepest layer, normalized
// by the tallest column of the grid, and every voxel of the column shares it.
func (c *Classifier) Classify(vg *pointcloud.VoxelGrid) (*Grid, error) {
	if vg == nil {
		return nil, utils.NewMissingInputError("voxel grid")
	}
	dims := vg.Dims
	heights := make([]int, dims.I*dims.J)
	maxHeight := 0
	for j := 0; j < dims.J; j++ {
		for i := 0; i < dims.I; i++ {
			for k := 0; k < dims.K; k++ {
				if vg.IsOccupied(pointcloud.VoxelCoords{I: i, J: j, K: k}) {
					h := dims.K - k
					heights[j*dims.I+i] = h
					maxHeight = utils.MaxInt(maxHeight, h)
					break
				}
			}
		}
	}

	out := &Grid{Dims: dims, Labels: make([]Material, vg.Len())}
	if maxHeight == 0 {
		return out, nil
	}
	for idx, occupied := range vg.Occupied {
		if !occupied {
			continue
		}
		coords := vg.Coords(idx)
		height := float64(heights[coords.J*dims.I+coords.I]) / float64(maxHeight)
		col, colored := vg.ColorAt(coords)
		out.Labels[idx] = c.label(height, col, colored)
	}
	return out, nil
}

func (c *Classifier) label(height float64, col colorful.Color, colored bool) Material {
	cfg := c.cfg
	if height >= cfg.StoneMinHeight {
		return Stone
	}
	if !colored {
		switch {
		case height <= cfg.WaterMaxHeight:
			return Water
		case height <= cfg.SandMaxHeight:
			return Sand
		default:
			return Dirt
		}
	}
	hue, sat, val := col.Hsv()
	if height > cfg.WaterMaxHeight && utils.InRange(hue, cfg.GreenMinHue, cfg.GreenMaxHue) && sat >= cfg.GreenMinSaturation {
		return Vegetation
	}
	switch {
	case height <= cfg.WaterMaxHeight && val <= cfg.DarkMaxValue:
		return Water
	case height <= cfg.SandMaxHeight && val > cfg.DarkMaxValue:
		return Sand
	default:
		return Dirt
	}
}
