package rimage

import (
	"bufio"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestDepthMapFileRoundTrip(t *testing.T) {
	dm := NewEmptyDepthMap(5, 4)
	dm.Fill(1000)
	dm.Set(2, 2, 700)
	dm.Set(0, 0, 0)
	dm.Timestamp = time.Unix(0, 1234567)
	dm.SensorID = "kinect-1"

	for _, name := range []string{"frame.dep", "frame.dep.gz"} {
		t.Run(name, func(t *testing.T) {
			fn := filepath.Join(t.TempDir(), name)
			test.That(t, dm.WriteToFile(fn), test.ShouldBeNil)
			got, err := ParseDepthMap(fn)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, got, test.ShouldResemble, dm)
		})
	}
}

func TestReadDepthMapErrors(t *testing.T) {
	_, err := ReadDepthMap(bufio.NewReader(strings.NewReader("JUNK\n")))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "not a depth map")

	_, err = ReadDepthMap(bufio.NewReader(strings.NewReader("SANDDEPTH\n4\n0.001\n1\n1\n0\nx\n")))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "2 bytes per pixel")

	_, err = ReadDepthMap(bufio.NewReader(strings.NewReader("SANDDEPTH\n2\n0.001\n0\n1\n0\nx\n")))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bad width or height")

	_, err = ReadDepthMap(bufio.NewReader(strings.NewReader("SANDDEPTH\n2\n0.001\n2\n2\n0\nx\n\x01\x00")))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "short depth data")
	test.That(t, err.Error(), test.ShouldContainSubstring, "row 0 of 2")

	_, err = ParseDepthMap(filepath.Join(t.TempDir(), "missing.dep"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReadDepthMapUnits(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("SANDDEPTH\n2\n0.0001\n1\n1\n0\ncam\n")
	buf.Write([]byte{0x10, 0x27}) // 10000 tenths of a millimeter
	dm, err := ReadDepthMap(bufio.NewReader(&buf))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, Depth(1000))
	test.That(t, dm.SensorID, test.ShouldEqual, "cam")
}

func TestReadDepthMapRejectsHostileHeaders(t *testing.T) {
	for _, tc := range []struct {
		name   string
		header string
		err    string
	}{
		{"huge width", "SANDDEPTH\n2\n0.001\n99999\n99999\n0\nx\n", "bad width or height"},
		{"just over the cap", "SANDDEPTH\n2\n0.001\n8193\n1\n0\nx\n", "bad width or height"},
		{"negative height", "SANDDEPTH\n2\n0.001\n4\n-4\n0\nx\n", "bad width or height"},
		{"negative units", "SANDDEPTH\n2\n-0.001\n1\n1\n0\nx\n", "positive and finite"},
		{"zero units", "SANDDEPTH\n2\n0\n1\n1\n0\nx\n", "positive and finite"},
		{"nan units", "SANDDEPTH\n2\nNaN\n1\n1\n0\nx\n", "positive and finite"},
		{"infinite units", "SANDDEPTH\n2\n+Inf\n1\n1\n0\nx\n", "positive and finite"},
		// the largest allowed frame with no samples fails on the first row
		{"header only", "SANDDEPTH\n2\n0.001\n8192\n8192\n0\nx\n", "short depth data at row 0 of 8192"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadDepthMap(bufio.NewReader(strings.NewReader(tc.header)))
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.err)
		})
	}
}

func TestParseDepthMapPNG(t *testing.T) {
	dir := t.TempDir()
	img := image.NewGray16(image.Rect(0, 0, 4, 3))
	img.SetGray16(1, 2, color.Gray16{Y: 1234})
	fn := filepath.Join(dir, "kinect.png")
	f, err := os.Create(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, png.Encode(f, img), test.ShouldBeNil)
	test.That(t, f.Close(), test.ShouldBeNil)

	dm, err := ParseDepthMap(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.Width(), test.ShouldEqual, 4)
	test.That(t, dm.Height(), test.ShouldEqual, 3)
	test.That(t, dm.GetDepth(1, 2), test.ShouldEqual, Depth(1234))
	test.That(t, dm.SensorID, test.ShouldEqual, "kinect")

	// 8-bit images carry no usable depth
	gray := filepath.Join(dir, "gray.png")
	f, err = os.Create(gray)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 4, 3))), test.ShouldBeNil)
	test.That(t, f.Close(), test.ShouldBeNil)
	_, err = ParseDepthMap(gray)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "don't know how to make DepthMap")
}
