package fusion

import (
	"image"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/arsandbox/sandscape/logging"
	"github.com/arsandbox/sandscape/rimage"
	"github.com/arsandbox/sandscape/utils"
)

// Config are the attributes of a fusion engine.
type Config struct {
	// PrimaryWeight is how much the primary sensor is trusted over stereo where both have data.
	PrimaryWeight float64    `json:"primary_weight"`
	DepthRangeM   [2]float64 `json:"depth_range_m"`
}

// DefaultConfig returns the fusion defaults.
func DefaultConfig() Config {
	return Config{PrimaryWeight: 0.7, DepthRangeM: [2]float64{0.1, 5}}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	var errs error
	if cfg.PrimaryWeight < 0 || cfg.PrimaryWeight > 1 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("primary_weight must be within [0, 1], got %v", cfg.PrimaryWeight)))
	}
	if cfg.DepthRangeM[0] < 0 || cfg.DepthRangeM[1] <= cfg.DepthRangeM[0] {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("depth_range_m must be 0 <= min < max, got %v", cfg.DepthRangeM)))
	}
	return errs
}

// Engine blends a primary depth sensor with a stereo estimate.
type Engine struct {
	cfg         Config
	logger      logging.Logger
	primarySize image.Point
}

// EngineOption configures optional engine behavior.
type EngineOption func(*Engine)

// WithPrimaryResolution sets the resolution of the primary sensor. A stereo-only cycle is resampled
// onto it so that every fused frame shares the primary pixel grid.
func WithPrimaryResolution(width, height int) EngineOption {
	return func(e *Engine) {
		e.primarySize = image.Pt(width, height)
	}
}

// NewEngine returns a fusion engine for the given config.
func NewEngine(cfg Config, logger logging.Logger, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate("fusion"); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	if e.primarySize.X < 0 || e.primarySize.Y < 0 {
		return nil, errors.Errorf("invalid primary resolution %v", e.primarySize)
	}
	return e, nil
}

// Fuse merges the two inputs into one frame on the primary's pixel grid. Either input may be nil.
// A lone primary is used directly. A lone secondary is resampled onto the primary resolution when
// one was configured. A secondary of a different size is always resampled onto the primary grid,
// never the reverse.
func (e *Engine) Fuse(primary, secondary *rimage.DepthMap) (*Frame, error) {
	if primary == nil && secondary == nil {
		return nil, utils.NewMissingInputError("depth sources")
	}
	if primary == nil {
		if e.primarySize.X > 0 && e.primarySize.Y > 0 && secondary.Size() != e.primarySize {
			e.logger.Debugw("resampling stereo-only depth onto primary resolution",
				"primary", e.primarySize, "secondary", secondary.Size())
			secondary = secondary.Resize(e.primarySize.X, e.primarySize.Y)
		}
		return e.single(secondary, SourceStereo), nil
	}
	if secondary == nil {
		return e.single(primary, SourcePrimary), nil
	}
	if secondary.Size() != primary.Size() {
		e.logger.Debugw("resampling secondary depth onto primary grid",
			"primary", primary.Size(), "secondary", secondary.Size())
		secondary = secondary.Resize(primary.Width(), primary.Height())
	}

	w := e.cfg.PrimaryWeight
	out := e.newFrame(primary)
	for y := 0; y < primary.Height(); y++ {
		for x := 0; x < primary.Width(); x++ {
			p, pOK := e.sample(primary, x, y)
			s, sOK := e.sample(secondary, x, y)
			switch {
			case pOK && sOK:
				v := p
				if p != s {
					v = w*p + (1-w)*s
				}
				out.Set(x, y, v, SourcePrimary|SourceStereo)
			case pOK:
				out.Set(x, y, p, SourcePrimary)
			case sOK:
				out.Set(x, y, s, SourceStereo)
			}
		}
	}
	return out, nil
}

func (e *Engine) newFrame(dm *rimage.DepthMap) *Frame {
	out := NewFrame(dm.Width(), dm.Height())
	out.PrimaryWeight = e.cfg.PrimaryWeight
	out.Timestamp = dm.Timestamp
	out.SensorID = dm.SensorID
	return out
}

func (e *Engine) single(dm *rimage.DepthMap, src Source) *Frame {
	out := e.newFrame(dm)
	for y := 0; y < dm.Height(); y++ {
		for x := 0; x < dm.Width(); x++ {
			if v, ok := e.sample(dm, x, y); ok {
				out.Set(x, y, v, src)
			}
		}
	}
	return out
}

func (e *Engine) sample(dm *rimage.DepthMap, x, y int) (float64, bool) {
	v := dm.Meters(x, y)
	if v == 0 || !utils.InRange(v, e.cfg.DepthRangeM[0], e.cfg.DepthRangeM[1]) {
		return 0, false
	}
	return v, true
}
