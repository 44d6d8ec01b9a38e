package pointcloud

import (
	"bytes"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"go.viam.com/test"

	"github.com/arsandbox/sandscape/logging"
	"github.com/arsandbox/sandscape/utils"
)

func cloudOf(points ...r3.Vector) *PointCloud {
	pc := New()
	for _, p := range points {
		pc.Append(Point{Position: p})
	}
	return pc
}

func TestVoxelConfigValidate(t *testing.T) {
	cfg := DefaultVoxelConfig()
	test.That(t, cfg.Validate("voxel"), test.ShouldBeNil)
	cfg.EdgeLengthM = 0
	_, err := NewVoxelizer(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "edge_length_m")
}

func TestVoxelize(t *testing.T) {
	v, err := NewVoxelizer(DefaultVoxelConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	_, err = v.Voxelize(nil)
	test.That(t, utils.IsNoUpdate(err), test.ShouldBeTrue)
	_, err = v.Voxelize(New())
	test.That(t, utils.IsNoUpdate(err), test.ShouldBeTrue)

	pc := cloudOf(
		r3.Vector{X: 0, Y: 0, Z: 1},
		r3.Vector{X: 0.004, Y: 0.004, Z: 1.004},
		r3.Vector{X: 0.045, Y: 0.015, Z: 1.025},
	)
	red := colorful.Color{R: 1}
	blue := colorful.Color{B: 1}
	pc.Append(Point{Position: r3.Vector{X: 0.001, Y: 0.001, Z: 1.001}, Color: red, HasColor: true})
	pc.Append(Point{Position: r3.Vector{X: 0.002, Y: 0.002, Z: 1.002}, Color: blue, HasColor: true})

	vg, err := v.Voxelize(pc)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, vg.Dims.I, test.ShouldEqual, 5)
	test.That(t, vg.Dims.J, test.ShouldEqual, 2)
	test.That(t, vg.Dims.K, test.ShouldEqual, 3)
	test.That(t, vg.Len(), test.ShouldEqual, 30)
	test.That(t, vg.OccupiedCount(), test.ShouldEqual, 2)
	test.That(t, vg.IsOccupied(VoxelCoords{}), test.ShouldBeTrue)
	// the maximum point lands in the last cell
	test.That(t, vg.IsOccupied(VoxelCoords{I: 4, J: 1, K: 2}), test.ShouldBeTrue)

	c, ok := vg.ColorAt(VoxelCoords{})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, c, test.ShouldResemble, blue)
	_, ok = vg.ColorAt(VoxelCoords{I: 4, J: 1, K: 2})
	test.That(t, ok, test.ShouldBeFalse)

	for idx := 0; idx < vg.Len(); idx++ {
		test.That(t, vg.Index(vg.Coords(idx)), test.ShouldEqual, idx)
	}
	test.That(t, vg.Contains(VoxelCoords{I: 5}), test.ShouldBeFalse)
}

func TestVoxelizeSinglePoint(t *testing.T) {
	v, err := NewVoxelizer(DefaultVoxelConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	vg, err := v.Voxelize(cloudOf(r3.Vector{X: 1, Y: 2, Z: 3}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, vg.Dims, test.ShouldResemble, VoxelCoords{I: 1, J: 1, K: 1})
	test.That(t, vg.OccupiedCount(), test.ShouldEqual, 1)
}

func TestVoxelizeCap(t *testing.T) {
	cfg := DefaultVoxelConfig()
	v, err := NewVoxelizer(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	vg, err := v.Voxelize(cloudOf(r3.Vector{}, r3.Vector{X: 10, Y: 0.5, Z: 0.02}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, vg.EdgeLength, test.ShouldAlmostEqual, 0.05)
	test.That(t, vg.Dims.I, test.ShouldBeLessThanOrEqualTo, cfg.MaxCellsPerAxis)
	test.That(t, vg.Dims.J, test.ShouldBeLessThanOrEqualTo, cfg.MaxCellsPerAxis)
	test.That(t, vg.Dims.K, test.ShouldEqual, 1)
	test.That(t, vg.OccupiedCount(), test.ShouldEqual, 2)
}

func TestToPCD(t *testing.T) {
	pc := cloudOf(r3.Vector{X: 1, Y: 2, Z: 3}, r3.Vector{X: -1, Y: 0.5, Z: 2})
	var buf bytes.Buffer
	test.That(t, ToPCD(pc, &buf, PCDAscii), test.ShouldBeNil)
	out := buf.String()
	test.That(t, out, test.ShouldContainSubstring, "FIELDS x y z\n")
	test.That(t, out, test.ShouldContainSubstring, "POINTS 2\n")
	test.That(t, strings.HasSuffix(out, "-1.000000 0.500000 2.000000\n"), test.ShouldBeTrue)

	pc.Append(Point{Position: r3.Vector{Z: 1}, Color: colorful.Color{G: 1}, HasColor: true})
	buf.Reset()
	test.That(t, ToPCD(pc, &buf, PCDBinary), test.ShouldBeNil)
	header := "VERSION .7\nFIELDS x y z rgb\nSIZE 4 4 4 4\nTYPE F F F I\nCOUNT 1 1 1 1\n" +
		"WIDTH 3\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS 3\nDATA binary\n"
	test.That(t, buf.Len(), test.ShouldEqual, len(header)+3*16)
	test.That(t, strings.HasPrefix(buf.String(), header), test.ShouldBeTrue)
}
