// Package material labels occupied voxels with a terrain material using height and color
// heuristics. The labels drive rendering only; they are not a measurement.
package material

import (
	"github.com/samber/lo"

	"github.com/arsandbox/sandscape/pointcloud"
)

// Material is one of a closed set of terrain labels.
type Material uint8

// The materials a voxel can be labeled with. None marks an unoccupied voxel.
const (
	None Material = iota
	Water
	Sand
	Dirt
	Vegetation
	Stone
)

var materialNames = [...]string{"none", "water", "sand", "dirt", "vegetation", "stone"}

func (m Material) String() string {
	if int(m) < len(materialNames) {
		return materialNames[m]
	}
	return "unknown"
}

// Grid holds one label per voxel of the grid it was classified from.
type Grid struct {
	Dims   pointcloud.VoxelCoords
	Labels []Material
}

// At returns the label of a voxel.
func (g *Grid) At(c pointcloud.VoxelCoords) Material {
	return g.Labels[c.I+g.Dims.I*(c.J+g.Dims.J*c.K)]
}

// Counts returns how many voxels carry each material, None excluded.
func (g *Grid) Counts() map[Material]int {
	return lo.CountValues(lo.Filter(g.Labels, func(m Material, _ int) bool {
		return m != None
	}))
}
