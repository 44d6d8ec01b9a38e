package fusion

import (
	"testing"

	"go.viam.com/test"

	"github.com/arsandbox/sandscape/logging"
	"github.com/arsandbox/sandscape/rimage"
	"github.com/arsandbox/sandscape/testutils"
	"github.com/arsandbox/sandscape/utils"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return e
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	test.That(t, cfg.Validate("fusion"), test.ShouldBeNil)
	cfg.PrimaryWeight = 1.5
	test.That(t, cfg.Validate("fusion"), test.ShouldNotBeNil)
	_, err := NewEngine(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "primary_weight")
}

func TestFuseMissing(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Fuse(nil, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, utils.IsNoUpdate(err), test.ShouldBeTrue)
}

func TestFuseIdempotent(t *testing.T) {
	e := newTestEngine(t)
	dm := testutils.NewFlatDepthMap(16, 12, 1234)
	testutils.PaintDepthBlock(dm, 4, 4, 4, 987)
	dm.Set(0, 0, 0)

	f, err := e.Fuse(dm, dm)
	test.That(t, err, test.ShouldBeNil)
	for y := 0; y < dm.Height(); y++ {
		for x := 0; x < dm.Width(); x++ {
			test.That(t, f.Meters(x, y), test.ShouldEqual, dm.Meters(x, y))
		}
	}
	test.That(t, f.SourceAt(0, 0), test.ShouldEqual, SourceNone)
	test.That(t, f.Confidence(0, 0), test.ShouldEqual, 0.)
	test.That(t, f.Confidence(1, 1), test.ShouldEqual, 1.)
	test.That(t, f.ValidCount(), test.ShouldEqual, 16*12-1)
}

func TestFuseBlend(t *testing.T) {
	e := newTestEngine(t)
	primary := testutils.NewFlatDepthMap(8, 8, 1000)
	stereo := testutils.NewFlatDepthMap(8, 8, 1300)
	primary.Set(1, 1, 0)
	stereo.Set(2, 2, 0)
	primary.Set(3, 3, 0)
	stereo.Set(3, 3, 0)

	f, err := e.Fuse(primary, stereo)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.Meters(0, 0), test.ShouldAlmostEqual, 1.09)
	test.That(t, f.SourceAt(0, 0), test.ShouldEqual, SourcePrimary|SourceStereo)
	test.That(t, f.Meters(1, 1), test.ShouldAlmostEqual, 1.3)
	test.That(t, f.SourceAt(1, 1), test.ShouldEqual, SourceStereo)
	test.That(t, f.Confidence(1, 1), test.ShouldAlmostEqual, 0.3)
	test.That(t, f.Meters(2, 2), test.ShouldAlmostEqual, 1.0)
	test.That(t, f.Confidence(2, 2), test.ShouldAlmostEqual, 0.7)
	test.That(t, f.Meters(3, 3), test.ShouldEqual, 0.)
	test.That(t, f.SensorID, test.ShouldEqual, "primary")
}

func TestFuseSingleSource(t *testing.T) {
	e := newTestEngine(t)
	stereo := testutils.NewFlatDepthMap(10, 6, 1500)
	stereo.Set(5, 5, 9000)

	f, err := e.Fuse(nil, stereo)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.Width(), test.ShouldEqual, 10)
	test.That(t, f.Height(), test.ShouldEqual, 6)
	test.That(t, f.Meters(0, 0), test.ShouldAlmostEqual, 1.5)
	test.That(t, f.SourceAt(0, 0), test.ShouldEqual, SourceStereo)
	// beyond the depth range
	test.That(t, f.Meters(5, 5), test.ShouldEqual, 0.)

	f, err = e.Fuse(stereo, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.SourceAt(0, 0), test.ShouldEqual, SourcePrimary)
}

func TestFuseStereoOnlyUsesPrimaryResolution(t *testing.T) {
	e, err := NewEngine(DefaultConfig(), logging.NewTestLogger(t), WithPrimaryResolution(20, 12))
	test.That(t, err, test.ShouldBeNil)
	stereo := testutils.NewFlatDepthMap(10, 6, 1500)
	stereo.Set(9, 5, 2500)

	f, err := e.Fuse(nil, stereo)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.Width(), test.ShouldEqual, 20)
	test.That(t, f.Height(), test.ShouldEqual, 12)
	test.That(t, f.Meters(0, 0), test.ShouldAlmostEqual, 1.5)
	test.That(t, f.Meters(19, 11), test.ShouldAlmostEqual, 2.5)
	test.That(t, f.Meters(18, 10), test.ShouldAlmostEqual, 2.5)
	test.That(t, f.SourceAt(19, 11), test.ShouldEqual, SourceStereo)
	test.That(t, f.ValidCount(), test.ShouldEqual, 240)

	// a stereo map already at the primary resolution passes through
	f, err = e.Fuse(nil, testutils.NewFlatDepthMap(20, 12, 1000))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.Width(), test.ShouldEqual, 20)

	_, err = NewEngine(DefaultConfig(), logging.NewTestLogger(t), WithPrimaryResolution(-1, 12))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFuseResamplesSecondary(t *testing.T) {
	e := newTestEngine(t)
	primary := testutils.NewFlatDepthMap(20, 10, 1000)
	primary.Fill(0)
	stereo := testutils.NewFlatDepthMap(10, 5, 2000)

	f, err := e.Fuse(primary, stereo)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.Width(), test.ShouldEqual, 20)
	test.That(t, f.Height(), test.ShouldEqual, 10)
	test.That(t, f.ValidCount(), test.ShouldEqual, 200)
	test.That(t, f.Meters(19, 9), test.ShouldAlmostEqual, 2.0)
	test.That(t, f.Coverage(), test.ShouldEqual, 1.)
}

func TestFrameToDepthMap(t *testing.T) {
	f := NewFrame(3, 2)
	f.Set(1, 1, 1.2346, SourcePrimary)
	dm := f.ToDepthMap()
	test.That(t, dm.GetDepth(1, 1), test.ShouldEqual, rimage.Depth(1235))
	test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, rimage.Depth(0))
	test.That(t, f.HasData(), test.ShouldBeTrue)
	test.That(t, NewFrame(2, 2).HasData(), test.ShouldBeFalse)
}
