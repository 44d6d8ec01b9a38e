package terrain

import (
	"image"
	"math"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/arsandbox/sandscape/logging"
	"github.com/arsandbox/sandscape/rimage/transform"
	"github.com/arsandbox/sandscape/utils"
)

// ChangeConfig are the attributes of a change detector.
type ChangeConfig struct {
	// ThresholdM is the elevation difference above which a node counts as changed.
	ThresholdM float64 `json:"threshold_m"`
}

// DefaultChangeConfig returns the change detector defaults.
func DefaultChangeConfig() ChangeConfig {
	return ChangeConfig{ThresholdM: 0.001}
}

// Validate ensures all parts of the config are valid.
func (cfg *ChangeConfig) Validate(path string) error {
	if cfg.ThresholdM < 0 {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("threshold_m cannot be negative, got %v", cfg.ThresholdM))
	}
	return nil
}

// ChangeMap is the per-node absolute elevation difference between two grids of the same shape.
type ChangeMap struct {
	X, Y         []float64
	Diff         *mat.Dense
	Significant  []bool
	MaxChange    float64
	ChangedCells int
	Threshold    float64
}

// IsSignificant reports whether the node at row i, column j changed by more than the threshold.
func (cm *ChangeMap) IsSignificant(i, j int) bool {
	return cm.Significant[i*len(cm.X)+j]
}

// SignificantBounds returns the XY box covering all significant nodes. ok is false when nothing
// changed.
func (cm *ChangeMap) SignificantBounds() (minX, maxX, minY, maxY float64, ok bool) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for idx, s := range cm.Significant {
		if !s {
			continue
		}
		x, y := cm.X[idx%len(cm.X)], cm.Y[idx/len(cm.X)]
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
		ok = true
	}
	return minX, maxX, minY, maxY, ok
}

// PixelBounds projects every significant node, at its elevation in current, through intrinsics and
// returns the pixel rectangle covering them, clipped to the image. ok is false when nothing
// changed or nothing lands in the image.
func (cm *ChangeMap) PixelBounds(current *Grid, intrinsics *transform.PinholeCameraIntrinsics) (image.Rectangle, bool) {
	if current == nil || intrinsics == nil {
		return image.Rectangle{}, false
	}
	cols := len(cm.X)
	var r image.Rectangle
	for idx, s := range cm.Significant {
		if !s {
			continue
		}
		i, j := idx/cols, idx%cols
		u, v := intrinsics.PointToPixel(cm.X[j], cm.Y[i], current.At(i, j))
		r = r.Union(image.Rect(int(u), int(v), int(u)+1, int(v)+1))
	}
	r = r.Intersect(image.Rect(0, 0, intrinsics.Width, intrinsics.Height))
	return r, !r.Empty()
}

// Compare returns |current - previous| per node. Nodes that are fill in either grid contribute 0.
func Compare(previous, current *Grid, threshold float64) (*ChangeMap, error) {
	if previous == nil || current == nil {
		return nil, utils.NewMissingInputError("grid to compare")
	}
	if !previous.SameShape(current) {
		pr, pc := previous.Dims()
		cr, cc := current.Dims()
		return nil, utils.NewShapeMismatchError("terrain grid", imagePoint(pc, pr), imagePoint(cc, cr))
	}
	rows, cols := current.Dims()
	cm := &ChangeMap{
		X:           current.X,
		Y:           current.Y,
		Diff:        mat.NewDense(rows, cols, nil),
		Significant: make([]bool, rows*cols),
		Threshold:   threshold,
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if previous.IsFilled(i, j) || current.IsFilled(i, j) {
				continue
			}
			d := math.Abs(current.At(i, j) - previous.At(i, j))
			cm.Diff.Set(i, j, d)
			if d > threshold {
				cm.Significant[i*cols+j] = true
				cm.ChangedCells++
			}
		}
	}
	cm.MaxChange = floats.Max(cm.Diff.RawMatrix().Data)
	return cm, nil
}

// ChangeDetector compares each grid with the one before it.
// It is not safe for concurrent use.
type ChangeDetector struct {
	cfg      ChangeConfig
	logger   logging.Logger
	baseline *Grid
}

// NewChangeDetector returns a change detector for the given config.
func NewChangeDetector(cfg ChangeConfig, logger logging.Logger) (*ChangeDetector, error) {
	if err := cfg.Validate("change"); err != nil {
		return nil, err
	}
	return &ChangeDetector{cfg: cfg, logger: logger}, nil
}

// Baseline returns the grid the next one will be compared against.
func (cd *ChangeDetector) Baseline() *Grid {
	return cd.baseline
}

// Reset forgets the baseline.
func (cd *ChangeDetector) Reset() {
	cd.baseline = nil
}

// Detect compares current with the stored baseline and makes current the new baseline. The first
// grid and a grid of a different shape only become the baseline; a nil grid leaves it untouched.
func (cd *ChangeDetector) Detect(current *Grid) (*ChangeMap, error) {
	if current == nil {
		return nil, utils.NewMissingInputError("terrain grid")
	}
	previous := cd.baseline
	cd.baseline = current
	if previous == nil {
		return nil, utils.NewMissingInputError("baseline terrain grid")
	}
	cm, err := Compare(previous, current, cd.cfg.ThresholdM)
	if err != nil {
		cd.logger.Debugw("terrain grid shape changed, resetting baseline", "error", err)
		return nil, err
	}
	return cm, nil
}

func imagePoint(x, y int) image.Point {
	return image.Point{X: x, Y: y}
}
