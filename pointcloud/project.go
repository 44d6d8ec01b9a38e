package pointcloud

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/arsandbox/sandscape/logging"
	"github.com/arsandbox/sandscape/rimage"
	"github.com/arsandbox/sandscape/rimage/transform"
	"github.com/arsandbox/sandscape/utils"
)

// ProjectionConfig are the attributes of a point cloud projector.
type ProjectionConfig struct {
	DepthRangeM [2]float64 `json:"depth_range_m"`
	// MinPoints is the fewest valid points a frame must yield to be used downstream.
	MinPoints int `json:"min_points"`
}

// DefaultProjectionConfig returns the projector defaults.
func DefaultProjectionConfig() ProjectionConfig {
	return ProjectionConfig{DepthRangeM: [2]float64{0.1, 5}, MinPoints: 100}
}

// Validate ensures all parts of the config are valid.
func (cfg *ProjectionConfig) Validate(path string) error {
	var errs error
	if cfg.DepthRangeM[0] < 0 || cfg.DepthRangeM[1] <= cfg.DepthRangeM[0] {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("depth_range_m must be 0 <= min < max, got %v", cfg.DepthRangeM)))
	}
	if cfg.MinPoints < 1 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("min_points must be at least 1, got %d", cfg.MinPoints)))
	}
	return errs
}

// Projector back-projects depth frames through a pinhole camera model.
type Projector struct {
	intrinsics *transform.PinholeCameraIntrinsics
	cfg        ProjectionConfig
	logger     logging.Logger
}

// NewProjector returns a projector for the calibrated camera.
func NewProjector(intrinsics *transform.PinholeCameraIntrinsics, cfg ProjectionConfig, logger logging.Logger) (*Projector, error) {
	if intrinsics == nil {
		return nil, transform.NewNoIntrinsicsError("projector needs camera intrinsics")
	}
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	if err := cfg.Validate("projection"); err != nil {
		return nil, err
	}
	return &Projector{intrinsics: intrinsics, cfg: cfg, logger: logger}, nil
}

// Intrinsics returns the calibrated camera parameters.
func (p *Projector) Intrinsics() *transform.PinholeCameraIntrinsics {
	return p.intrinsics
}

// Project turns every valid in-range sample into a camera-space point, ordered row-major. The
// intrinsics are rescaled when the depth resolution differs from the calibrated one. When a color
// frame is given it is resampled to the depth resolution and each point takes its pixel's color.
func (p *Projector) Project(depth rimage.MetricDepth, img *rimage.Image) (*PointCloud, error) {
	if depth == nil || !depth.HasData() {
		return nil, utils.NewMissingInputError("depth frame")
	}
	width, height := depth.Width(), depth.Height()
	intrinsics := p.intrinsics
	if width != intrinsics.Width || height != intrinsics.Height {
		intrinsics = intrinsics.Scaled(width, height)
	}
	if img != nil && (img.Width() != width || img.Height() != height) {
		img = img.Resize(width, height)
	}

	pc := NewWithCapacity(width * height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			z := depth.Meters(x, y)
			if z == 0 || !utils.InRange(z, p.cfg.DepthRangeM[0], p.cfg.DepthRangeM[1]) {
				continue
			}
			pos := intrinsics.PixelToVector(x, y, z)
			if !utils.IsFinite(pos.X) || !utils.IsFinite(pos.Y) || !utils.IsFinite(pos.Z) {
				continue
			}
			pt := Point{Position: pos}
			if img != nil {
				pt.Color, pt.HasColor = toColorful(img.GetXY(x, y))
			}
			pc.Append(pt)
		}
	}
	if pc.Size() < p.cfg.MinPoints {
		return nil, utils.NewInsufficientDataError("projected points", pc.Size(), p.cfg.MinPoints)
	}
	return pc, nil
}

func toColorful(c color.NRGBA) (colorful.Color, bool) {
	if c.A == 0 {
		return colorful.Color{}, false
	}
	return colorful.MakeColor(color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255})
}
