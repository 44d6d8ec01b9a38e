package rimage

import (
	"image"
	"image/color"
	"math"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// Depth is the depth in millimeters of a pixel. Zero means there is no data for the pixel.
type Depth uint16

// MaxDepth is the largest depth a DepthMap can hold.
const MaxDepth = Depth(math.MaxUint16)

// MetricDepth is a depth image whose samples can be read in meters. A zero sample means no data.
// HasData must be safe to call on a nil receiver.
type MetricDepth interface {
	HasData() bool
	Width() int
	Height() int
	Meters(x, y int) float64
}

// DepthMap is a depth frame from a single sensor: row-major millimeter samples of a fixed
// resolution, the moment it was captured and the sensor it came from.
type DepthMap struct {
	width  int
	height int

	data []Depth

	Timestamp time.Time
	SensorID  string
}

// NewEmptyDepthMap returns an all-zero depth map of the given size.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]Depth, width*height),
	}
}

// NewDepthMapFromSlice wraps row-major millimeter data.
func NewDepthMapFromSlice(width, height int, data []Depth) (*DepthMap, error) {
	if width <= 0 || height <= 0 || len(data) != width*height {
		return nil, errors.Errorf("bad depth map dimensions (%d,%d) for %d samples", width, height, len(data))
	}
	return &DepthMap{width: width, height: height, data: data}, nil
}

// HasData returns true if the map has a non-empty shape.
func (dm *DepthMap) HasData() bool {
	return dm != nil && dm.width > 0 && dm.height > 0 && dm.data != nil
}

// Width returns the horizontal dimension of the map.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the vertical dimension of the map.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Size returns the dimensions as a point.
func (dm *DepthMap) Size() image.Point {
	return image.Pt(dm.width, dm.height)
}

func (dm *DepthMap) kxy(x, y int) int {
	return (y * dm.width) + x
}

// Contains returns whether or not a point is within the bounds of the depth map.
func (dm *DepthMap) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < dm.width && y < dm.height
}

// Get returns the depth at a given image.Point.
func (dm *DepthMap) Get(p image.Point) Depth {
	return dm.data[dm.kxy(p.X, p.Y)]
}

// GetDepth returns the depth at a given (x,y) coordinate.
func (dm *DepthMap) GetDepth(x, y int) Depth {
	return dm.data[dm.kxy(x, y)]
}

// Set sets the depth at a given (x,y) coordinate.
func (dm *DepthMap) Set(x, y int, val Depth) {
	dm.data[dm.kxy(x, y)] = val
}

// Meters returns the depth at (x,y) in meters, 0 when there is no data.
func (dm *DepthMap) Meters(x, y int) float64 {
	return float64(dm.data[dm.kxy(x, y)]) / 1000.
}

// Fill sets every pixel to the same depth.
func (dm *DepthMap) Fill(val Depth) {
	for i := range dm.data {
		dm.data[i] = val
	}
}

// ValidCount returns how many samples are non-zero and inside [min, max] millimeters.
func (dm *DepthMap) ValidCount(min, max Depth) int {
	n := 0
	for _, d := range dm.data {
		if d != 0 && d >= min && d <= max {
			n++
		}
	}
	return n
}

// MinMax returns the minimum and maximum non-zero depth.
func (dm *DepthMap) MinMax() (Depth, Depth) {
	min := MaxDepth
	max := Depth(0)
	for _, z := range dm.data {
		if z == 0 {
			continue
		}
		if z < min {
			min = z
		}
		if z > max {
			max = z
		}
	}
	return min, max
}

// Clone makes a copy of the depth map, metadata included.
func (dm *DepthMap) Clone() *DepthMap {
	out := &DepthMap{
		width:     dm.width,
		height:    dm.height,
		data:      make([]Depth, len(dm.data)),
		Timestamp: dm.Timestamp,
		SensorID:  dm.SensorID,
	}
	copy(out.data, dm.data)
	return out
}

// ColorModel for DepthMap so that it implements image.Image.
func (dm *DepthMap) ColorModel() color.Model { return color.Gray16Model }

// Bounds for DepthMap so that it implements image.Image.
func (dm *DepthMap) Bounds() image.Rectangle { return image.Rect(0, 0, dm.width, dm.height) }

// At for DepthMap so that it implements image.Image.
func (dm *DepthMap) At(x, y int) color.Color {
	return color.Gray16{Y: uint16(dm.GetDepth(x, y))}
}

// Resize returns the depth map resampled to the given size with nearest-neighbor sampling, so that
// no depth value is invented between valid and missing samples.
func (dm *DepthMap) Resize(width, height int) *DepthMap {
	if width == dm.width && height == dm.height {
		return dm.Clone()
	}
	dst := image.NewGray16(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), dm, dm.Bounds(), draw.Src, nil)
	out := ConvertGray16ToDepthMap(dst)
	out.Timestamp = dm.Timestamp
	out.SensorID = dm.SensorID
	return out
}

// ConvertGray16ToDepthMap copies a 16-bit greyscale image into a depth map.
func ConvertGray16ToDepthMap(img *image.Gray16) *DepthMap {
	bounds := img.Bounds()
	dm := NewEmptyDepthMap(bounds.Dx(), bounds.Dy())
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			dm.Set(x, y, Depth(img.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y))
		}
	}
	return dm
}

// ConvertImageToDepthMap takes an image and figures out if it's already a DepthMap or a
// 16-bit greyscale image that can be converted.
func ConvertImageToDepthMap(img image.Image) (*DepthMap, error) {
	switch ii := img.(type) {
	case *DepthMap:
		return ii, nil
	case *image.Gray16:
		return ConvertGray16ToDepthMap(ii), nil
	default:
		return nil, errors.Errorf("don't know how to make DepthMap from %T", img)
	}
}
