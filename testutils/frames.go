// Package testutils builds the synthetic frames shared by the stage tests.
package testutils

import (
	"image/color"
	"math/rand"
	"time"

	"github.com/arsandbox/sandscape/rimage"
)

// NewFlatDepthMap returns a depth map where every pixel is mm millimeters away.
func NewFlatDepthMap(width, height int, mm rimage.Depth) *rimage.DepthMap {
	dm := rimage.NewEmptyDepthMap(width, height)
	dm.Fill(mm)
	dm.Timestamp = time.Unix(0, 0)
	dm.SensorID = "primary"
	return dm
}

// PaintDepthBlock sets a size x size square with its top-left corner at (x0, y0) to mm.
func PaintDepthBlock(dm *rimage.DepthMap, x0, y0, size int, mm rimage.Depth) {
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			if dm.Contains(x, y) {
				dm.Set(x, y, mm)
			}
		}
	}
}

// NewSolidImage returns a color frame of a single color.
func NewSolidImage(width, height int, c color.NRGBA) *rimage.Image {
	img := rimage.NewImage(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetXY(x, y, c)
		}
	}
	return img
}

// NewTexturedStereoPair renders a random-noise scene seen by two cameras whose views differ by a
// constant horizontal disparity: left(x, y) == right(x-disparity, y).
func NewTexturedStereoPair(width, height, disparity int, seed int64) (*rimage.Image, *rimage.Image) {
	//nolint:gosec
	r := rand.New(rand.NewSource(seed))
	scene := make([]uint8, (width+disparity)*height)
	for i := range scene {
		scene[i] = uint8(r.Intn(256))
	}
	sceneAt := func(x, y int) color.NRGBA {
		v := scene[y*(width+disparity)+x]
		return color.NRGBA{R: v, G: v, B: v, A: 255}
	}

	left := rimage.NewImage(width, height)
	right := rimage.NewImage(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			left.SetXY(x, y, sceneAt(x, y))
			right.SetXY(x, y, sceneAt(x+disparity, y))
		}
	}
	left.CameraID = "left"
	right.CameraID = "right"
	return left, right
}
