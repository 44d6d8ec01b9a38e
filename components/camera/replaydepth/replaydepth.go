// Package replaydepth plays back depth maps previously written with rimage.WriteDepthMap, or
// 16-bit greyscale PNG depth images.
package replaydepth

import (
	"context"
	"io"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/arsandbox/sandscape/components/camera"
	"github.com/arsandbox/sandscape/logging"
	"github.com/arsandbox/sandscape/rimage"
)

// Source returns one recorded depth map per cycle in the order given.
type Source struct {
	paths  []string
	loop   bool
	next   int
	logger logging.Logger
}

// NewSource returns a replay source over the given files. Glob patterns are expanded and sorted.
// With loop set the recording restarts instead of ending with io.EOF.
func NewSource(patterns []string, loop bool, logger logging.Logger) (*Source, error) {
	var paths []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, errors.Wrapf(err, "bad replay pattern %q", p)
		}
		if len(matches) == 0 {
			return nil, errors.Errorf("no depth maps match %q", p)
		}
		sort.Strings(matches)
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, errors.New("replay needs at least one depth map")
	}
	return &Source{paths: paths, loop: loop, logger: logger}, nil
}

// Len returns the number of recorded frames.
func (s *Source) Len() int {
	return len(s.paths)
}

// NextDepth reads the next recorded depth map.
func (s *Source) NextDepth(ctx context.Context) (*rimage.DepthMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.paths) {
		if !s.loop {
			return nil, io.EOF
		}
		s.next = 0
	}
	fn := s.paths[s.next]
	s.next++
	s.logger.Debugw("replaying depth map", "path", fn)
	return rimage.ParseDepthMap(fn)
}

// Next returns the next recorded depth map as a depth-only cycle.
func (s *Source) Next(ctx context.Context) (camera.Frames, error) {
	dm, err := s.NextDepth(ctx)
	if err != nil {
		return camera.Frames{}, err
	}
	return camera.Frames{Depth: dm}, nil
}

// Close does nothing.
func (s *Source) Close() error {
	return nil
}
