// Package terrain resamples point clouds onto regular elevation grids and compares successive grids.
package terrain

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Grid is a regular elevation grid. Z has one row per Y coordinate and one column per X
// coordinate; a node's elevation is its camera-space depth in meters. Nodes without nearby
// samples hold FillValue and are not Valid.
type Grid struct {
	X, Y       []float64
	Z          *mat.Dense
	Valid      []bool
	Resolution float64
	FillValue  float64
}

func newGrid(x, y []float64, resolution, fill float64) *Grid {
	g := &Grid{
		X:          x,
		Y:          y,
		Z:          mat.NewDense(len(y), len(x), nil),
		Valid:      make([]bool, len(x)*len(y)),
		Resolution: resolution,
		FillValue:  fill,
	}
	if fill != 0 {
		for i := 0; i < len(y); i++ {
			for j := 0; j < len(x); j++ {
				g.Z.Set(i, j, fill)
			}
		}
	}
	return g
}

// Dims returns the number of rows (Y nodes) and columns (X nodes).
func (g *Grid) Dims() (int, int) {
	return len(g.Y), len(g.X)
}

// At returns the elevation at row i, column j.
func (g *Grid) At(i, j int) float64 {
	return g.Z.At(i, j)
}

// IsFilled reports whether the node at row i, column j holds the fill value rather than data.
func (g *Grid) IsFilled(i, j int) bool {
	return !g.Valid[i*len(g.X)+j]
}

// SameShape reports whether both grids have the same number of rows and columns.
func (g *Grid) SameShape(other *Grid) bool {
	if other == nil {
		return false
	}
	r1, c1 := g.Dims()
	r2, c2 := other.Dims()
	return r1 == r2 && c1 == c2
}

// ValidCount returns the number of nodes holding data.
func (g *Grid) ValidCount() int {
	n := 0
	for _, v := range g.Valid {
		if v {
			n++
		}
	}
	return n
}

// MeanElevation averages the valid nodes, 0 when there are none.
func (g *Grid) MeanElevation() float64 {
	values := make([]float64, 0, len(g.Valid))
	rows, cols := g.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if !g.IsFilled(i, j) {
				values = append(values, g.Z.At(i, j))
			}
		}
	}
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}
