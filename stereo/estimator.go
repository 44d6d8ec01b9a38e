// Package stereo estimates depth from a pair of laterally offset color cameras.
package stereo

import (
	"fmt"
	"image"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/arsandbox/sandscape/logging"
	"github.com/arsandbox/sandscape/rimage"
	"github.com/arsandbox/sandscape/utils"
)

// Estimator computes a dense depth map from a left/right color pair with sum-of-absolute-differences
// block matching.
type Estimator struct {
	cfg    Config
	logger logging.Logger
}

// NewEstimator returns an estimator for the given config.
func NewEstimator(cfg Config, logger logging.Logger) (*Estimator, error) {
	if err := cfg.Validate("stereo"); err != nil {
		return nil, err
	}
	return &Estimator{cfg: cfg, logger: logger}, nil
}

// Estimate returns the depth seen by the left camera in millimeters. Pixels whose disparity is not
// positive or whose depth falls outside the configured band have no data. Frames of different sizes
// are cropped to the common top-left region. If either frame is absent the result is
// utils.ErrMissingInput, never an empty map.
func (e *Estimator) Estimate(left, right *rimage.Image) (*rimage.DepthMap, error) {
	if left == nil || right == nil {
		return nil, utils.NewMissingInputError("stereo pair")
	}
	width := utils.MinInt(left.Width(), right.Width())
	height := utils.MinInt(left.Height(), right.Height())
	half := e.cfg.BlockSize / 2
	if width <= 2*half || height <= 2*half {
		return nil, utils.NewInsufficientDataError("stereo frame pixels", width*height, utils.SquareInt(e.cfg.BlockSize))
	}
	if left.Size() != right.Size() {
		e.logger.Debugw("cropping stereo pair to common resolution",
			"left", left.Size(), "right", right.Size(), "width", width, "height", height)
		left = left.Crop(width, height)
		right = right.Crop(width, height)
	}

	lg := rimage.Grayscale(left)
	rg := rimage.Grayscale(right)
	if e.cfg.Equalize {
		lg = rimage.EqualizeHistogram(lg)
		rg = rimage.EqualizeHistogram(rg)
	}

	disparity := e.disparityMap(lg, rg)

	dm := rimage.NewEmptyDepthMap(width, height)
	dm.Timestamp = left.Timestamp
	dm.SensorID = fmt.Sprintf("stereo:%s+%s", left.CameraID, right.CameraID)
	focalBaseline := e.cfg.FocalLength * e.cfg.BaselineM
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			d := disparity[y*width+x]
			if d <= 0 {
				continue
			}
			z := focalBaseline / d
			if !utils.InRange(z, e.cfg.DepthRangeM[0], e.cfg.DepthRangeM[1]) {
				continue
			}
			dm.Set(x, y, rimage.Depth(math.Round(z*1000)))
		}
	}

	if e.cfg.SpeckleWindow > 1 {
		dm = medianFilter(dm, e.cfg.SpeckleWindow)
	}
	return dm, nil
}

// disparityMap runs winner-take-all block matching. For every disparity level the absolute
// difference image is summed over the block with an integral image, so each level costs one pass
// regardless of block size. The result has sub-pixel precision; zero means no match.
func (e *Estimator) disparityMap(left, right *image.Gray) []float64 {
	width, height := left.Rect.Dx(), left.Rect.Dy()
	half := e.cfg.BlockSize / 2
	numDisparities := utils.MinInt(e.cfg.NumDisparities, width-2*half)

	bestCost := make([]int64, width*height)
	bestD := make([]int, width*height)
	for i := range bestCost {
		bestCost[i] = math.MaxInt64
		bestD[i] = -1
	}

	stride := width + 1
	integral := make([]int64, stride*(height+1))
	for d := 0; d < numDisparities; d++ {
		for y := 0; y < height; y++ {
			var rowSum int64
			for x := 0; x < width; x++ {
				if x >= d {
					diff := int64(left.Pix[y*left.Stride+x]) - int64(right.Pix[y*right.Stride+x-d])
					if diff < 0 {
						diff = -diff
					}
					rowSum += diff
				}
				integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + rowSum
			}
		}
		for y := half; y < height-half; y++ {
			for x := half + d; x < width-half; x++ {
				x0, y0, x1, y1 := x-half, y-half, x+half+1, y+half+1
				cost := integral[y1*stride+x1] - integral[y0*stride+x1] - integral[y1*stride+x0] + integral[y0*stride+x0]
				i := y*width + x
				if cost < bestCost[i] {
					bestCost[i] = cost
					bestD[i] = d
				}
			}
		}
	}

	out := make([]float64, width*height)
	for y := half; y < height-half; y++ {
		for x := half; x < width-half; x++ {
			i := y*width + x
			d := bestD[i]
			if d <= 0 {
				continue
			}
			out[i] = float64(d)
			if d+1 < numDisparities && x-half-(d+1) >= 0 {
				c0 := float64(blockSAD(left, right, x, y, d-1, half))
				c1 := float64(bestCost[i])
				c2 := float64(blockSAD(left, right, x, y, d+1, half))
				if denom := c0 - 2*c1 + c2; denom > 0 {
					out[i] += (c0 - c2) / (2 * denom)
				}
			}
		}
	}
	return out
}

func blockSAD(left, right *image.Gray, x, y, d, half int) int64 {
	var sum int64
	for yy := y - half; yy <= y+half; yy++ {
		for xx := x - half; xx <= x+half; xx++ {
			diff := int64(left.Pix[yy*left.Stride+xx]) - int64(right.Pix[yy*right.Stride+xx-d])
			if diff < 0 {
				diff = -diff
			}
			sum += diff
		}
	}
	return sum
}

// medianFilter replaces every valid sample with the median of the valid samples in its window.
// Missing samples stay missing.
func medianFilter(dm *rimage.DepthMap, window int) *rimage.DepthMap {
	out := dm.Clone()
	half := window / 2
	values := make([]float64, 0, window*window)
	for y := 0; y < dm.Height(); y++ {
		for x := 0; x < dm.Width(); x++ {
			if dm.GetDepth(x, y) == 0 {
				continue
			}
			values = values[:0]
			for yy := y - half; yy <= y+half; yy++ {
				for xx := x - half; xx <= x+half; xx++ {
					if !dm.Contains(xx, yy) {
						continue
					}
					if d := dm.GetDepth(xx, yy); d != 0 {
						values = append(values, float64(d))
					}
				}
			}
			median, err := stats.Median(values)
			if err != nil {
				continue
			}
			out.Set(x, y, rimage.Depth(math.Round(median)))
		}
	}
	return out
}
