// Package pointcloud holds the points back-projected from a depth frame and the occupancy grid
// built from them.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
)

// Point is a camera-space position in meters with an optional color.
type Point struct {
	Position r3.Vector
	Color    colorful.Color
	HasColor bool
}

// MetaData is data about what's stored in the point cloud.
type MetaData struct {
	HasColor bool

	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// NewMetaData returns metadata with empty bounds.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MinZ: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
		MaxZ: -math.MaxFloat64,
	}
}

// Merge grows the bounds to include p.
func (meta *MetaData) Merge(p Point) {
	if p.HasColor {
		meta.HasColor = true
	}
	v := p.Position
	meta.MinX = math.Min(meta.MinX, v.X)
	meta.MinY = math.Min(meta.MinY, v.Y)
	meta.MinZ = math.Min(meta.MinZ, v.Z)
	meta.MaxX = math.Max(meta.MaxX, v.X)
	meta.MaxY = math.Max(meta.MaxY, v.Y)
	meta.MaxZ = math.Max(meta.MaxZ, v.Z)
}

// Min returns the lower corner of the bounding box.
func (meta *MetaData) Min() r3.Vector {
	return r3.Vector{X: meta.MinX, Y: meta.MinY, Z: meta.MinZ}
}

// Max returns the upper corner of the bounding box.
func (meta *MetaData) Max() r3.Vector {
	return r3.Vector{X: meta.MaxX, Y: meta.MaxY, Z: meta.MaxZ}
}

// Extent returns the size of the bounding box, zero when the cloud is empty.
func (meta *MetaData) Extent() r3.Vector {
	if meta.MaxX < meta.MinX {
		return r3.Vector{}
	}
	return meta.Max().Sub(meta.Min())
}

// PointCloud is an ordered list of points. Order follows the row-major scan of the depth frame
// the points came from.
type PointCloud struct {
	points []Point
	meta   MetaData
}

// New returns an empty point cloud.
func New() *PointCloud {
	return NewWithCapacity(0)
}

// NewWithCapacity returns an empty point cloud with room for n points.
func NewWithCapacity(n int) *PointCloud {
	return &PointCloud{points: make([]Point, 0, n), meta: NewMetaData()}
}

// Size returns the number of points in the cloud.
func (pc *PointCloud) Size() int {
	return len(pc.points)
}

// MetaData returns the bounds and color flag of the cloud.
func (pc *PointCloud) MetaData() MetaData {
	return pc.meta
}

// Append adds a point to the end of the cloud.
func (pc *PointCloud) Append(p Point) {
	pc.points = append(pc.points, p)
	pc.meta.Merge(p)
}

// At returns the i-th point.
func (pc *PointCloud) At(i int) Point {
	return pc.points[i]
}

// Iterate calls fn for every point in order until fn returns false.
func (pc *PointCloud) Iterate(fn func(i int, p Point) bool) {
	for i, p := range pc.points {
		if !fn(i, p) {
			return
		}
	}
}
