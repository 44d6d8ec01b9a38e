package terrain

import (
	"math"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"gonum.org/v1/gonum/floats"

	"github.com/arsandbox/sandscape/logging"
	"github.com/arsandbox/sandscape/pointcloud"
	"github.com/arsandbox/sandscape/utils"
)

// Method selects how scattered points become grid nodes.
type Method string

// The interpolation methods.
const (
	MethodNearest = Method("nearest")
	MethodLinear  = Method("linear")
	MethodCubic   = Method("cubic")
)

// GridConfig are the attributes of a terrain interpolator.
type GridConfig struct {
	ResolutionM     float64 `json:"resolution_m"`
	MaxCellsPerAxis int     `json:"max_cells_per_axis"`
	Method          Method  `json:"method"`
	// FillRadiusCells is how far, in nodes, the linear and cubic methods reach to fill empty nodes.
	FillRadiusCells int     `json:"fill_radius_cells"`
	FillValue       float64 `json:"fill_value"`
}

// DefaultGridConfig returns the interpolator defaults.
func DefaultGridConfig() GridConfig {
	return GridConfig{
		ResolutionM:     0.005,
		MaxCellsPerAxis: 500,
		Method:          MethodCubic,
		FillRadiusCells: 2,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *GridConfig) Validate(path string) error {
	var errs error
	if cfg.ResolutionM <= 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("resolution_m must be positive, got %v", cfg.ResolutionM)))
	}
	if cfg.MaxCellsPerAxis < 2 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("max_cells_per_axis must be at least 2, got %d", cfg.MaxCellsPerAxis)))
	}
	if !lo.Contains([]Method{MethodNearest, MethodLinear, MethodCubic}, cfg.Method) {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("unknown interpolation method %q", cfg.Method)))
	}
	if cfg.FillRadiusCells < 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("fill_radius_cells cannot be negative, got %d", cfg.FillRadiusCells)))
	}
	return errs
}

// Interpolator resamples point clouds onto elevation grids.
type Interpolator struct {
	cfg    GridConfig
	logger logging.Logger
}

// NewInterpolator returns an interpolator for the given config.
func NewInterpolator(cfg GridConfig, logger logging.Logger) (*Interpolator, error) {
	if err := cfg.Validate("grid"); err != nil {
		return nil, err
	}
	return &Interpolator{cfg: cfg, logger: logger}, nil
}

// Interpolate builds a grid spanning the XY bounding box of the cloud. The resolution is coarsened
// when the box would need more than the configured nodes per axis. Nodes with no sample nearby
// hold the fill value; the grid is never extrapolated.
func (in *Interpolator) Interpolate(pc *pointcloud.PointCloud) (*Grid, error) {
	if pc == nil || pc.Size() == 0 {
		return nil, utils.NewMissingInputError("point cloud")
	}
	meta := pc.MetaData()
	extent := meta.Extent()
	res := in.cfg.ResolutionM
	if extent.X < res || extent.Y < res {
		return nil, errors.Wrapf(utils.ErrInsufficientData,
			"point cloud footprint %.4fx%.4f m is smaller than one grid cell", extent.X, extent.Y)
	}
	maxExtent := math.Max(extent.X, extent.Y)
	if nodes(maxExtent, res) > in.cfg.MaxCellsPerAxis {
		coarse := maxExtent / float64(in.cfg.MaxCellsPerAxis-1)
		in.logger.Debugw("coarsening grid resolution to respect node cap",
			"requested", res, "effective", coarse)
		res = coarse
	}
	cols := utils.MinInt(nodes(extent.X, res), in.cfg.MaxCellsPerAxis)
	rows := utils.MinInt(nodes(extent.Y, res), in.cfg.MaxCellsPerAxis)
	g := newGrid(axis(meta.MinX, res, cols), axis(meta.MinY, res, rows), res, in.cfg.FillValue)

	bins := in.bin(g, pc, meta.MinX, meta.MinY)
	switch in.cfg.Method {
	case MethodNearest:
		for idx, b := range bins {
			if b.count > 0 {
				in.setNode(g, idx, b.nearestZ)
			}
		}
	case MethodLinear, MethodCubic:
		for idx, b := range bins {
			if b.count > 0 {
				in.setNode(g, idx, b.sum/float64(b.count))
			}
		}
		in.fillGaps(g)
		if in.cfg.Method == MethodCubic {
			smooth(g)
		}
	}
	return g, nil
}

func nodes(extent, res float64) int {
	// small epsilon so an extent that is an exact multiple of res is not lost to rounding
	return int(math.Floor(extent/res+1e-9)) + 1
}

func axis(start, res float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	return floats.Span(out, start, start+float64(n-1)*res)
}

type bin struct {
	count    int
	sum      float64
	nearestZ float64
	nearestD float64
}

func (in *Interpolator) bin(g *Grid, pc *pointcloud.PointCloud, minX, minY float64) []bin {
	rows, cols := g.Dims()
	bins := make([]bin, rows*cols)
	pc.Iterate(func(_ int, p pointcloud.Point) bool {
		fj := (p.Position.X - minX) / g.Resolution
		fi := (p.Position.Y - minY) / g.Resolution
		j := utils.ClampInt(int(math.Round(fj)), 0, cols-1)
		i := utils.ClampInt(int(math.Round(fi)), 0, rows-1)
		d := utils.Square(fj-float64(j)) + utils.Square(fi-float64(i))
		b := &bins[i*cols+j]
		if b.count == 0 || d < b.nearestD {
			b.nearestD = d
			b.nearestZ = p.Position.Z
		}
		b.count++
		b.sum += p.Position.Z
		return true
	})
	return bins
}

func (in *Interpolator) setNode(g *Grid, idx int, z float64) {
	cols := len(g.X)
	g.Z.Set(idx/cols, idx%cols, z)
	g.Valid[idx] = true
}

// fillGaps gives every empty node within the fill radius of sampled nodes the inverse distance
// weighted average of those nodes.
func (in *Interpolator) fillGaps(g *Grid) {
	radius := in.cfg.FillRadiusCells
	if radius == 0 {
		return
	}
	rows, cols := g.Dims()
	sampled := make([]bool, len(g.Valid))
	copy(sampled, g.Valid)
	filled := 0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if sampled[i*cols+j] {
				continue
			}
			var sum, weights float64
			for ii := utils.MaxInt(0, i-radius); ii <= utils.MinInt(rows-1, i+radius); ii++ {
				for jj := utils.MaxInt(0, j-radius); jj <= utils.MinInt(cols-1, j+radius); jj++ {
					if !sampled[ii*cols+jj] {
						continue
					}
					w := 1 / float64(utils.SquareInt(ii-i)+utils.SquareInt(jj-j))
					sum += w * g.Z.At(ii, jj)
					weights += w
				}
			}
			if weights > 0 {
				g.Z.Set(i, j, sum/weights)
				g.Valid[i*cols+j] = true
				filled++
			}
		}
	}
	if filled > 0 {
		in.logger.Debugw("filled empty grid nodes", "count", filled)
	}
}

var bspline = [5]float64{1, 4, 6, 4, 1}

// smooth runs a separable cubic B-spline kernel over the valid nodes, renormalizing the weights
// where the kernel overlaps empty nodes or the border.
func smooth(g *Grid) {
	rows, cols := g.Dims()
	pass := func(src []float64, horizontal bool) []float64 {
		dst := make([]float64, len(src))
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				idx := i*cols + j
				if !g.Valid[idx] {
					continue
				}
				var sum, weights float64
				for k, w := range bspline {
					ii, jj := i, j
					if horizontal {
						jj += k - 2
					} else {
						ii += k - 2
					}
					if ii < 0 || jj < 0 || ii >= rows || jj >= cols || !g.Valid[ii*cols+jj] {
						continue
					}
					sum += w * src[ii*cols+jj]
					weights += w
				}
				dst[idx] = sum / weights
			}
		}
		return dst
	}
	raw := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			raw[i*cols+j] = g.Z.At(i, j)
		}
	}
	out := pass(pass(raw, true), false)
	for idx, v := range g.Valid {
		if v {
			g.Z.Set(idx/cols, idx%cols, out[idx])
		}
	}
}
