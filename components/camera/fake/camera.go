// Package fake implements a synthetic sandbox sensor rig: a flat surface with a raised block
// drifting across it, seen by a depth sensor, a color camera and optionally a stereo pair.
package fake

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"math"
	"math/rand"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/arsandbox/sandscape/components/camera"
	"github.com/arsandbox/sandscape/rimage"
)

// Config describes the rendered scene.
type Config struct {
	Width  int `json:"width_px"`
	Height int `json:"height_px"`
	// FloorMM is the distance from the sensor to the flat surface.
	FloorMM rimage.Depth `json:"floor_mm"`
	// BlockMM is the distance from the sensor to the top of the block; 0 disables the block.
	BlockMM   rimage.Depth `json:"block_mm"`
	BlockSize int          `json:"block_size_px"`
	// BlockSpeed is how many pixels the block moves right per frame.
	BlockSpeed int  `json:"block_speed_px"`
	Color      bool `json:"color"`
	// Stereo renders a textured left/right pair whose disparity matches the floor distance for
	// the given focal length and baseline.
	Stereo          bool    `json:"stereo"`
	StereoFocalPx   float64 `json:"stereo_focal_px"`
	StereoBaselineM float64 `json:"stereo_baseline_m"`
	// Frames is how many cycles to produce before io.EOF; 0 means forever.
	Frames int   `json:"frames"`
	Seed   int64 `json:"seed"`
}

// DefaultConfig returns a 320x240 scene with a 1 m floor and a 20 pixel block at 0.7 m.
func DefaultConfig() Config {
	return Config{
		Width:           320,
		Height:          240,
		FloorMM:         1000,
		BlockMM:         700,
		BlockSize:       20,
		Color:           true,
		StereoFocalPx:   525,
		StereoBaselineM: 0.075,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate() error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return errors.Errorf("invalid resolution %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FloorMM == 0 {
		return errors.New("floor_mm must be positive")
	}
	if cfg.BlockMM != 0 && (cfg.BlockSize <= 0 || cfg.BlockSize > cfg.Width || cfg.BlockSize > cfg.Height) {
		return errors.Errorf("block_size_px must be within (0, %d], got %d", min(cfg.Width, cfg.Height), cfg.BlockSize)
	}
	if cfg.Stereo && (cfg.StereoFocalPx <= 0 || cfg.StereoBaselineM <= 0) {
		return errors.New("stereo rendering needs a positive focal length and baseline")
	}
	return nil
}

var (
	sandColor  = color.NRGBA{R: 194, G: 178, B: 128, A: 255}
	grassColor = color.NRGBA{R: 60, G: 160, B: 70, A: 255}
)

// Camera renders the scene on demand.
type Camera struct {
	cfg      Config
	clk      clock.Clock
	sensorID string
	frame    int
	texture  []uint8
}

// NewCamera returns a synthetic rig. A nil clock uses the wall clock.
func NewCamera(cfg Config, clk clock.Clock) (*Camera, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	c := &Camera{
		cfg:      cfg,
		clk:      clk,
		sensorID: fmt.Sprintf("fake-%s", uuid.NewString()[:8]),
	}
	if cfg.Stereo {
		//nolint:gosec
		r := rand.New(rand.NewSource(cfg.Seed))
		c.texture = make([]uint8, (cfg.Width+c.disparity())*cfg.Height)
		for i := range c.texture {
			c.texture[i] = uint8(r.Intn(256))
		}
	}
	return c, nil
}

// SensorID identifies the depth frames this camera produces.
func (c *Camera) SensorID() string {
	return c.sensorID
}

func (c *Camera) disparity() int {
	return int(math.Round(c.cfg.StereoFocalPx * c.cfg.StereoBaselineM * 1000 / float64(c.cfg.FloorMM)))
}

func (c *Camera) blockOrigin() (int, int) {
	x := (c.cfg.Width-c.cfg.BlockSize)/2 + c.frame*c.cfg.BlockSpeed
	span := c.cfg.Width - c.cfg.BlockSize + 1
	return ((x % span) + span) % span, (c.cfg.Height - c.cfg.BlockSize) / 2
}

func (c *Camera) inBlock(x, y int) bool {
	if c.cfg.BlockMM == 0 {
		return false
	}
	bx, by := c.blockOrigin()
	return x >= bx && x < bx+c.cfg.BlockSize && y >= by && y < by+c.cfg.BlockSize
}

// NextDepth renders the depth frame of the current cycle.
func (c *Camera) NextDepth(ctx context.Context) (*rimage.DepthMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dm := rimage.NewEmptyDepthMap(c.cfg.Width, c.cfg.Height)
	for y := 0; y < c.cfg.Height; y++ {
		for x := 0; x < c.cfg.Width; x++ {
			if c.inBlock(x, y) {
				dm.Set(x, y, c.cfg.BlockMM)
			} else {
				dm.Set(x, y, c.cfg.FloorMM)
			}
		}
	}
	dm.Timestamp = c.clk.Now()
	dm.SensorID = c.sensorID
	return dm, nil
}

// NextColor renders the color frame of the current cycle: sand with a green block.
func (c *Camera) NextColor(ctx context.Context) (*rimage.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img := rimage.NewImage(c.cfg.Width, c.cfg.Height)
	for y := 0; y < c.cfg.Height; y++ {
		for x := 0; x < c.cfg.Width; x++ {
			if c.inBlock(x, y) {
				img.SetXY(x, y, grassColor)
			} else {
				img.SetXY(x, y, sandColor)
			}
		}
	}
	img.Timestamp = c.clk.Now()
	img.CameraID = c.sensorID + "-color"
	return img, nil
}

// NextStereo renders the stereo pair. Both views see the floor texture; left(x) matches
// right(x - disparity).
func (c *Camera) NextStereo(ctx context.Context) (*rimage.Image, *rimage.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if !c.cfg.Stereo {
		return nil, nil, errors.New("stereo rendering is disabled")
	}
	d := c.disparity()
	stride := c.cfg.Width + d
	gray := func(x, y int) color.NRGBA {
		v := c.texture[y*stride+x]
		return color.NRGBA{R: v, G: v, B: v, A: 255}
	}
	left := rimage.NewImage(c.cfg.Width, c.cfg.Height)
	right := rimage.NewImage(c.cfg.Width, c.cfg.Height)
	for y := 0; y < c.cfg.Height; y++ {
		for x := 0; x < c.cfg.Width; x++ {
			left.SetXY(x, y, gray(x, y))
			right.SetXY(x, y, gray(x+d, y))
		}
	}
	now := c.clk.Now()
	left.Timestamp, right.Timestamp = now, now
	left.CameraID, right.CameraID = c.sensorID+"-left", c.sensorID+"-right"
	return left, right, nil
}

// Next renders every enabled view of the current cycle and advances the scene.
func (c *Camera) Next(ctx context.Context) (camera.Frames, error) {
	if c.cfg.Frames > 0 && c.frame >= c.cfg.Frames {
		return camera.Frames{}, io.EOF
	}
	var frames camera.Frames
	var err error
	if frames.Depth, err = c.NextDepth(ctx); err != nil {
		return camera.Frames{}, err
	}
	if c.cfg.Color {
		if frames.Color, err = c.NextColor(ctx); err != nil {
			return camera.Frames{}, err
		}
	}
	if c.cfg.Stereo {
		if frames.Left, frames.Right, err = c.NextStereo(ctx); err != nil {
			return camera.Frames{}, err
		}
	}
	c.frame++
	return frames, nil
}

// Close does nothing.
func (c *Camera) Close() error {
	return nil
}
