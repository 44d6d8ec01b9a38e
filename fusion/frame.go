// Package fusion merges depth from several sources into one confidence-weighted frame.
package fusion

import (
	"image"
	"time"

	"github.com/arsandbox/sandscape/rimage"
)

// Source is a bitmask of the inputs that contributed to a fused sample.
type Source uint8

// The sources a fused sample can come from.
const (
	SourceNone    Source = 0
	SourcePrimary Source = 1 << 0
	SourceStereo  Source = 1 << 1
)

// Frame is a depth frame in meters at the primary sensor's resolution. A sample of 0 means no
// source had valid data there.
type Frame struct {
	width, height int
	Data          []float64
	Sources       []Source
	// PrimaryWeight is the trust given to the primary sensor when both sources were blended.
	PrimaryWeight float64
	Timestamp     time.Time
	SensorID      string
}

// NewFrame returns a blank frame of the given size.
func NewFrame(width, height int) *Frame {
	return &Frame{
		width:   width,
		height:  height,
		Data:    make([]float64, width*height),
		Sources: make([]Source, width*height),
	}
}

// Width returns the horizontal size of the frame.
func (f *Frame) Width() int {
	return f.width
}

// Height returns the vertical size of the frame.
func (f *Frame) Height() int {
	return f.height
}

// Size returns the frame dimensions as a point.
func (f *Frame) Size() image.Point {
	return image.Point{f.width, f.height}
}

// Meters returns the fused depth at (x,y), 0 when there is no data.
func (f *Frame) Meters(x, y int) float64 {
	return f.Data[y*f.width+x]
}

// Set stores a fused sample.
func (f *Frame) Set(x, y int, meters float64, src Source) {
	f.Data[y*f.width+x] = meters
	f.Sources[y*f.width+x] = src
}

// SourceAt returns which inputs contributed to (x,y).
func (f *Frame) SourceAt(x, y int) Source {
	return f.Sources[y*f.width+x]
}

// Confidence is 1 where both sources agreed to a blend, the source's trust weight where only one
// contributed and 0 where there is no data.
func (f *Frame) Confidence(x, y int) float64 {
	switch f.SourceAt(x, y) {
	case SourcePrimary | SourceStereo:
		return 1
	case SourcePrimary:
		return f.PrimaryWeight
	case SourceStereo:
		return 1 - f.PrimaryWeight
	default:
		return 0
	}
}

// ValidCount returns the number of samples holding data.
func (f *Frame) ValidCount() int {
	n := 0
	for _, v := range f.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// HasData reports whether any sample holds data. A nil frame has none.
func (f *Frame) HasData() bool {
	if f == nil {
		return false
	}
	for _, v := range f.Data {
		if v != 0 {
			return true
		}
	}
	return false
}

// Coverage is the fraction of samples holding data.
func (f *Frame) Coverage() float64 {
	if len(f.Data) == 0 {
		return 0
	}
	return float64(f.ValidCount()) / float64(len(f.Data))
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	out := NewFrame(f.width, f.height)
	copy(out.Data, f.Data)
	copy(out.Sources, f.Sources)
	out.PrimaryWeight = f.PrimaryWeight
	out.Timestamp = f.Timestamp
	out.SensorID = f.SensorID
	return out
}

// ToDepthMap converts the frame back to a millimeter depth map.
func (f *Frame) ToDepthMap() *rimage.DepthMap {
	dm := rimage.NewEmptyDepthMap(f.width, f.height)
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			mm := f.Meters(x, y)*1000 + 0.5
			if mm >= float64(rimage.MaxDepth) {
				mm = float64(rimage.MaxDepth)
			}
			dm.Set(x, y, rimage.Depth(mm))
		}
	}
	dm.Timestamp = f.Timestamp
	dm.SensorID = f.SensorID
	return dm
}
