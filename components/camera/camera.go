// Package camera defines the capabilities the pipeline needs from its sensors: something that
// produces depth frames and something that produces color frames.
package camera

import (
	"context"
	"io"

	"go.uber.org/multierr"

	"github.com/arsandbox/sandscape/rimage"
)

// A DepthSource produces depth frames in millimeters with 0 meaning no data.
type DepthSource interface {
	NextDepth(ctx context.Context) (*rimage.DepthMap, error)
}

// A ColorSource produces color frames.
type ColorSource interface {
	NextColor(ctx context.Context) (*rimage.Image, error)
}

// Frames is everything captured for one pipeline cycle. Any field may be nil.
type Frames struct {
	Depth *rimage.DepthMap
	Color *rimage.Image
	// Left and Right are a rectified stereo pair.
	Left, Right *rimage.Image
}

// Empty reports whether nothing was captured.
func (f Frames) Empty() bool {
	return f.Depth == nil && f.Color == nil && f.Left == nil && f.Right == nil
}

// A Source delivers one Frames per cycle and returns io.EOF when it has no more.
type Source interface {
	Next(ctx context.Context) (Frames, error)
	Close() error
}

// FromSources combines a depth source with an optional color source. Either may be nil but not
// both.
func FromSources(depth DepthSource, color ColorSource) Source {
	return &combined{depth: depth, color: color}
}

type combined struct {
	depth DepthSource
	color ColorSource
}

func (c *combined) Next(ctx context.Context) (Frames, error) {
	if c.depth == nil && c.color == nil {
		return Frames{}, io.EOF
	}
	var frames Frames
	var err error
	if c.depth != nil {
		if frames.Depth, err = c.depth.NextDepth(ctx); err != nil {
			return Frames{}, err
		}
	}
	if c.color != nil {
		if frames.Color, err = c.color.NextColor(ctx); err != nil {
			return Frames{}, err
		}
	}
	return frames, nil
}

func (c *combined) Close() error {
	var errs error
	for _, s := range []interface{}{c.depth, c.color} {
		if closer, ok := s.(io.Closer); ok {
			errs = multierr.Combine(errs, closer.Close())
		}
	}
	return errs
}
