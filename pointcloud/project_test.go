package pointcloud

import (
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/arsandbox/sandscape/fusion"
	"github.com/arsandbox/sandscape/logging"
	"github.com/arsandbox/sandscape/rimage"
	"github.com/arsandbox/sandscape/rimage/transform"
	"github.com/arsandbox/sandscape/testutils"
	"github.com/arsandbox/sandscape/utils"
)

func testIntrinsics() *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{
		Width:  640,
		Height: 480,
		Fx:     525,
		Fy:     525,
		Ppx:    319.5,
		Ppy:    239.5,
	}
}

func TestNewProjectorValidation(t *testing.T) {
	logger := logging.NewTestLogger(t)
	_, err := NewProjector(nil, DefaultProjectionConfig(), logger)
	test.That(t, err, test.ShouldNotBeNil)

	bad := testIntrinsics()
	bad.Fx = 0
	_, err = NewProjector(bad, DefaultProjectionConfig(), logger)
	test.That(t, err, test.ShouldNotBeNil)

	cfg := DefaultProjectionConfig()
	cfg.DepthRangeM = [2]float64{3, 1}
	_, err = NewProjector(testIntrinsics(), cfg, logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestProjectFlatPlane(t *testing.T) {
	p, err := NewProjector(testIntrinsics(), DefaultProjectionConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	dm := testutils.NewFlatDepthMap(320, 240, 1000)
	dm.Set(0, 0, 0)
	dm.Set(1, 0, 9000)
	pc, err := p.Project(dm, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 320*240-2)

	pc.Iterate(func(_ int, pt Point) bool {
		test.That(t, utils.IsFinite(pt.Position.X), test.ShouldBeTrue)
		test.That(t, utils.IsFinite(pt.Position.Y), test.ShouldBeTrue)
		test.That(t, pt.Position.Z, test.ShouldAlmostEqual, 1.0)
		test.That(t, pt.HasColor, test.ShouldBeFalse)
		return true
	})

	// intrinsics scaled by one half: fx 262.5, ppx 159.5, ppy 119.5
	meta := pc.MetaData()
	test.That(t, meta.MaxX, test.ShouldAlmostEqual, (319-159.5)/262.5)
	test.That(t, meta.MinX, test.ShouldAlmostEqual, -meta.MaxX)
	test.That(t, meta.MinY, test.ShouldAlmostEqual, -119.5/262.5)
	test.That(t, meta.HasColor, test.ShouldBeFalse)
	test.That(t, pc.At(0).Position.X, test.ShouldAlmostEqual, (2-159.5)/262.5)
}

func TestProjectColor(t *testing.T) {
	p, err := NewProjector(testIntrinsics(), DefaultProjectionConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	dm := testutils.NewFlatDepthMap(40, 30, 800)
	img := testutils.NewSolidImage(80, 60, color.NRGBA{R: 20, G: 200, B: 40, A: 255})
	pc, err := p.Project(dm, img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 1200)
	test.That(t, pc.MetaData().HasColor, test.ShouldBeTrue)
	r, g, b := pc.At(10).Color.RGB255()
	test.That(t, r, test.ShouldEqual, uint8(20))
	test.That(t, g, test.ShouldEqual, uint8(200))
	test.That(t, b, test.ShouldEqual, uint8(40))
}

func TestProjectNoUpdate(t *testing.T) {
	p, err := NewProjector(testIntrinsics(), DefaultProjectionConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	_, err = p.Project(nil, nil)
	test.That(t, utils.IsNoUpdate(err), test.ShouldBeTrue)

	_, err = p.Project(testutils.NewFlatDepthMap(8, 8, 1000), nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "64")

	_, err = p.Project(rimage.NewEmptyDepthMap(64, 48), nil)
	test.That(t, utils.IsNoUpdate(err), test.ShouldBeTrue)
}

func TestProjectNilFrames(t *testing.T) {
	p, err := NewProjector(testIntrinsics(), DefaultProjectionConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	for _, depth := range []rimage.MetricDepth{(*rimage.DepthMap)(nil), (*fusion.Frame)(nil), fusion.NewFrame(32, 24)} {
		pc, err := p.Project(depth, nil)
		test.That(t, pc, test.ShouldBeNil)
		test.That(t, errors.Is(err, utils.ErrMissingInput), test.ShouldBeTrue)
	}
}
