package terrain

import (
	"image"
	"testing"

	"go.viam.com/test"

	"github.com/arsandbox/sandscape/logging"
	"github.com/arsandbox/sandscape/rimage/transform"
	"github.com/arsandbox/sandscape/utils"
)

func flatGrid(rows, cols int, z float64) *Grid {
	x := make([]float64, cols)
	y := make([]float64, rows)
	for j := range x {
		x[j] = float64(j) * 0.01
	}
	for i := range y {
		y[i] = float64(i) * 0.01
	}
	g := newGrid(x, y, 0.01, 0)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			g.Z.Set(i, j, z)
			g.Valid[i*cols+j] = true
		}
	}
	return g
}

func TestCompareSelfIsZero(t *testing.T) {
	g := flatGrid(4, 5, 1.2)
	cm, err := Compare(g, g, 0.001)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cm.MaxChange, test.ShouldEqual, 0.)
	test.That(t, cm.ChangedCells, test.ShouldEqual, 0)
	_, _, _, _, ok := cm.SignificantBounds()
	test.That(t, ok, test.ShouldBeFalse)
}

func TestCompare(t *testing.T) {
	a := flatGrid(4, 5, 1.0)
	b := flatGrid(4, 5, 1.0)
	b.Z.Set(1, 2, 0.7)
	b.Z.Set(2, 3, 1.0005)
	b.Z.Set(3, 4, 0.2)
	b.Valid[3*5+4] = false

	cm, err := Compare(a, b, 0.001)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cm.MaxChange, test.ShouldAlmostEqual, 0.3)
	test.That(t, cm.ChangedCells, test.ShouldEqual, 1)
	test.That(t, cm.IsSignificant(1, 2), test.ShouldBeTrue)
	test.That(t, cm.IsSignificant(2, 3), test.ShouldBeFalse)
	test.That(t, cm.Diff.At(2, 3), test.ShouldAlmostEqual, 0.0005)
	test.That(t, cm.Diff.At(3, 4), test.ShouldEqual, 0.)

	minX, maxX, minY, maxY, ok := cm.SignificantBounds()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, minX, test.ShouldAlmostEqual, 0.02)
	test.That(t, maxX, test.ShouldAlmostEqual, 0.02)
	test.That(t, minY, test.ShouldAlmostEqual, 0.01)
	test.That(t, maxY, test.ShouldAlmostEqual, 0.01)

	_, err = Compare(a, flatGrid(3, 5, 1), 0.001)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "shape mismatch")
}

func TestChangePixelBounds(t *testing.T) {
	intrinsics := &transform.PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 500, Fy: 500, Ppx: 319.5, Ppy: 239.5}
	a := flatGrid(4, 5, 1.0)
	b := flatGrid(4, 5, 1.0)
	cm, err := Compare(a, b, 0.001)
	test.That(t, err, test.ShouldBeNil)
	_, ok := cm.PixelBounds(b, intrinsics)
	test.That(t, ok, test.ShouldBeFalse)

	b.Z.Set(1, 2, 0.7)
	b.Z.Set(3, 4, 0.7)
	cm, err = Compare(a, b, 0.001)
	test.That(t, err, test.ShouldBeNil)
	r, ok := cm.PixelBounds(b, intrinsics)
	test.That(t, ok, test.ShouldBeTrue)
	// (0.02, 0.01, 0.7) lands on pixel (334, 247) and (0.04, 0.03, 0.7) on (348, 261)
	test.That(t, r, test.ShouldResemble, image.Rect(334, 247, 349, 262))

	_, ok = cm.PixelBounds(nil, intrinsics)
	test.That(t, ok, test.ShouldBeFalse)

	// a change outside the field of view is dropped
	b = flatGrid(4, 5, 1.0)
	b.X[2] = 5
	b.Z.Set(1, 2, 0.7)
	cm, err = Compare(a, b, 0.001)
	test.That(t, err, test.ShouldBeNil)
	_, ok = cm.PixelBounds(b, intrinsics)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestChangeDetector(t *testing.T) {
	cd, err := NewChangeDetector(DefaultChangeConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	_, err = cd.Detect(nil)
	test.That(t, utils.IsNoUpdate(err), test.ShouldBeTrue)
	test.That(t, cd.Baseline(), test.ShouldBeNil)

	first := flatGrid(4, 4, 1.0)
	_, err = cd.Detect(first)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, utils.IsNoUpdate(err), test.ShouldBeTrue)
	test.That(t, cd.Baseline(), test.ShouldEqual, first)

	second := flatGrid(4, 4, 1.01)
	cm, err := cd.Detect(second)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cm.ChangedCells, test.ShouldEqual, 16)
	test.That(t, cd.Baseline(), test.ShouldEqual, second)

	_, err = cd.Detect(nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, cd.Baseline(), test.ShouldEqual, second)

	resized := flatGrid(5, 4, 1.01)
	_, err = cd.Detect(resized)
	test.That(t, utils.IsNoUpdate(err), test.ShouldBeTrue)
	test.That(t, cd.Baseline(), test.ShouldEqual, resized)

	cm, err = cd.Detect(flatGrid(5, 4, 1.01))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cm.ChangedCells, test.ShouldEqual, 0)

	cd.Reset()
	test.That(t, cd.Baseline(), test.ShouldBeNil)

	_, err = NewChangeDetector(ChangeConfig{ThresholdM: -1}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
