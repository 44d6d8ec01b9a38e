package rimage

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"
)

func TestImageResizeAndCrop(t *testing.T) {
	img := NewImage(4, 2)
	img.CameraID = "left"
	red := color.NRGBA{R: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			if x < 2 {
				img.SetXY(x, y, red)
			} else {
				img.SetXY(x, y, blue)
			}
		}
	}

	big := img.Resize(8, 4)
	test.That(t, big.Size(), test.ShouldResemble, image.Pt(8, 4))
	test.That(t, big.CameraID, test.ShouldEqual, "left")
	test.That(t, big.GetXY(0, 0), test.ShouldResemble, red)
	test.That(t, big.GetXY(7, 3), test.ShouldResemble, blue)

	cropped := img.Crop(2, 2)
	test.That(t, cropped.Size(), test.ShouldResemble, image.Pt(2, 2))
	test.That(t, cropped.GetXY(1, 1), test.ShouldResemble, red)

	converted := ConvertImage(image.NewRGBA(image.Rect(0, 0, 3, 3)))
	test.That(t, converted.Width(), test.ShouldEqual, 3)
	test.That(t, ConvertImage(img), test.ShouldEqual, img)
}

func TestGrayscaleAndEqualize(t *testing.T) {
	img := NewImage(16, 1)
	for x := 0; x < 16; x++ {
		v := uint8(100 + x)
		img.SetXY(x, 0, color.NRGBA{R: v, G: v, B: v, A: 255})
	}
	g := Grayscale(img)
	test.That(t, g.GrayAt(0, 0).Y, test.ShouldEqual, uint8(100))
	test.That(t, g.GrayAt(15, 0).Y, test.ShouldEqual, uint8(115))

	eq := EqualizeHistogram(g)
	test.That(t, eq.GrayAt(0, 0).Y, test.ShouldEqual, uint8(0))
	test.That(t, eq.GrayAt(15, 0).Y, test.ShouldEqual, uint8(255))
	for x := 1; x < 16; x++ {
		test.That(t, eq.GrayAt(x, 0).Y, test.ShouldBeGreaterThan, eq.GrayAt(x-1, 0).Y)
	}

	flat := image.NewGray(image.Rect(0, 0, 3, 3))
	for i := range flat.Pix {
		flat.Pix[i] = 42
	}
	test.That(t, EqualizeHistogram(flat).GrayAt(1, 1).Y, test.ShouldEqual, uint8(42))
}
