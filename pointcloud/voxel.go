package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/arsandbox/sandscape/logging"
	"github.com/arsandbox/sandscape/utils"
)

// VoxelCoords stores Voxel coordinates in VoxelGrid axes.
type VoxelCoords struct {
	I, J, K int
}

// IsEqual tests if two VoxelCoords are the same.
func (c VoxelCoords) IsEqual(c2 VoxelCoords) bool {
	return c.I == c2.I && c.J == c2.J && c.K == c2.K
}

// VoxelConfig are the attributes of a voxelizer.
type VoxelConfig struct {
	EdgeLengthM float64 `json:"edge_length_m"`
	// MaxCellsPerAxis caps the grid; the edge length grows when the cloud would need more cells.
	MaxCellsPerAxis int  `json:"max_cells_per_axis"`
	Enabled         bool `json:"enabled"`
}

// DefaultVoxelConfig returns the voxelizer defaults.
func DefaultVoxelConfig() VoxelConfig {
	return VoxelConfig{EdgeLengthM: 0.01, MaxCellsPerAxis: 200, Enabled: true}
}

// Validate ensures all parts of the config are valid.
func (cfg *VoxelConfig) Validate(path string) error {
	var errs error
	if cfg.EdgeLengthM <= 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("edge_length_m must be positive, got %v", cfg.EdgeLengthM)))
	}
	if cfg.MaxCellsPerAxis < 1 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("max_cells_per_axis must be at least 1, got %d", cfg.MaxCellsPerAxis)))
	}
	return errs
}

// VoxelGrid is a dense occupancy grid over the bounding box of a point cloud. Cells are stored
// with I varying fastest.
type VoxelGrid struct {
	Dims       VoxelCoords
	Occupied   []bool
	Colors     []colorful.Color
	Colored    []bool
	EdgeLength float64
	Min, Max   r3.Vector
}

// NewVoxelGrid returns an empty grid of the given dimensions.
func NewVoxelGrid(dims VoxelCoords, edge float64, minPt r3.Vector) *VoxelGrid {
	n := dims.I * dims.J * dims.K
	return &VoxelGrid{
		Dims:       dims,
		Occupied:   make([]bool, n),
		Colors:     make([]colorful.Color, n),
		Colored:    make([]bool, n),
		EdgeLength: edge,
		Min:        minPt,
		Max: minPt.Add(r3.Vector{
			X: float64(dims.I) * edge,
			Y: float64(dims.J) * edge,
			Z: float64(dims.K) * edge,
		}),
	}
}

// Len is the total number of cells.
func (vg *VoxelGrid) Len() int {
	return len(vg.Occupied)
}

// Contains reports whether c addresses a cell of the grid.
func (vg *VoxelGrid) Contains(c VoxelCoords) bool {
	return c.I >= 0 && c.J >= 0 && c.K >= 0 && c.I < vg.Dims.I && c.J < vg.Dims.J && c.K < vg.Dims.K
}

// Index returns the flat index of the cell.
func (vg *VoxelGrid) Index(c VoxelCoords) int {
	return c.I + vg.Dims.I*(c.J+vg.Dims.J*c.K)
}

// Coords is the inverse of Index.
func (vg *VoxelGrid) Coords(idx int) VoxelCoords {
	return VoxelCoords{
		I: idx % vg.Dims.I,
		J: (idx / vg.Dims.I) % vg.Dims.J,
		K: idx / (vg.Dims.I * vg.Dims.J),
	}
}

// IsOccupied reports whether any point fell into the cell.
func (vg *VoxelGrid) IsOccupied(c VoxelCoords) bool {
	return vg.Occupied[vg.Index(c)]
}

// ColorAt returns the color of the last colored point written to the cell.
func (vg *VoxelGrid) ColorAt(c VoxelCoords) (colorful.Color, bool) {
	idx := vg.Index(c)
	return vg.Colors[idx], vg.Colored[idx]
}

// OccupiedCount returns the number of occupied cells.
func (vg *VoxelGrid) OccupiedCount() int {
	n := 0
	for _, o := range vg.Occupied {
		if o {
			n++
		}
	}
	return n
}

// Center returns the camera-space center of the cell.
func (vg *VoxelGrid) Center(c VoxelCoords) r3.Vector {
	return vg.Min.Add(r3.Vector{
		X: (float64(c.I) + 0.5) * vg.EdgeLength,
		Y: (float64(c.J) + 0.5) * vg.EdgeLength,
		Z: (float64(c.K) + 0.5) * vg.EdgeLength,
	})
}

// GetVoxelCoordinates computes the cell of pt, clamped into the grid so that points on the upper
// boundary land in the last cell.
func (vg *VoxelGrid) GetVoxelCoordinates(pt r3.Vector) VoxelCoords {
	return VoxelCoords{
		I: utils.ClampInt(int(math.Floor((pt.X-vg.Min.X)/vg.EdgeLength)), 0, vg.Dims.I-1),
		J: utils.ClampInt(int(math.Floor((pt.Y-vg.Min.Y)/vg.EdgeLength)), 0, vg.Dims.J-1),
		K: utils.ClampInt(int(math.Floor((pt.Z-vg.Min.Z)/vg.EdgeLength)), 0, vg.Dims.K-1),
	}
}

// Voxelizer converts point clouds into occupancy grids.
type Voxelizer struct {
	cfg    VoxelConfig
	logger logging.Logger
}

// NewVoxelizer returns a voxelizer for the given config.
func NewVoxelizer(cfg VoxelConfig, logger logging.Logger) (*Voxelizer, error) {
	if err := cfg.Validate("voxel"); err != nil {
		return nil, err
	}
	return &Voxelizer{cfg: cfg, logger: logger}, nil
}

// Voxelize marks every cell containing at least one point. When several colored points share a
// cell the last one wins.
func (v *Voxelizer) Voxelize(pc *PointCloud) (*VoxelGrid, error) {
	if pc == nil || pc.Size() == 0 {
		return nil, utils.NewMissingInputError("point cloud")
	}
	meta := pc.MetaData()
	extent := meta.Extent()
	maxExtent := math.Max(extent.X, math.Max(extent.Y, extent.Z))
	edge := math.Max(v.cfg.EdgeLengthM, maxExtent/float64(v.cfg.MaxCellsPerAxis))
	if edge != v.cfg.EdgeLengthM {
		v.logger.Debugw("coarsening voxel edge to respect cell cap",
			"requested", v.cfg.EdgeLengthM, "effective", edge)
	}
	cells := func(e float64) int {
		return utils.ClampInt(int(math.Ceil(e/edge)), 1, v.cfg.MaxCellsPerAxis)
	}
	dims := VoxelCoords{I: cells(extent.X), J: cells(extent.Y), K: cells(extent.Z)}

	vg := NewVoxelGrid(dims, edge, meta.Min())
	pc.Iterate(func(_ int, p Point) bool {
		idx := vg.Index(vg.GetVoxelCoordinates(p.Position))
		vg.Occupied[idx] = true
		if p.HasColor {
			vg.Colors[idx] = p.Color
			vg.Colored[idx] = true
		}
		return true
	})
	return vg, nil
}
