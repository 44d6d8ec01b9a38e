// Package rimage holds the frame types the pipeline consumes: millimeter depth maps from the
// primary sensor and color frames from secondary cameras, plus the resampling and greyscale
// helpers the stages share.
package rimage

import (
	"image"
	"image/color"
	"time"

	"github.com/disintegration/imaging"
)

// Image is a color frame from one camera. The resolution may differ from the depth frame it
// accompanies; callers resample before combining the two.
type Image struct {
	img *image.NRGBA

	Timestamp time.Time
	CameraID  string
}

// NewImage returns a black image of the given size.
func NewImage(width, height int) *Image {
	return &Image{img: image.NewNRGBA(image.Rect(0, 0, width, height))}
}

// ConvertImage copies any image into an Image anchored at (0,0).
func ConvertImage(img image.Image) *Image {
	if ii, ok := img.(*Image); ok {
		return ii
	}
	return &Image{img: imaging.Clone(img)}
}

// Width returns the horizontal dimension.
func (i *Image) Width() int {
	return i.img.Rect.Dx()
}

// Height returns the vertical dimension.
func (i *Image) Height() int {
	return i.img.Rect.Dy()
}

// Size returns the dimensions as a point.
func (i *Image) Size() image.Point {
	return image.Pt(i.Width(), i.Height())
}

// ColorModel for Image so that it implements image.Image.
func (i *Image) ColorModel() color.Model {
	return color.NRGBAModel
}

// Bounds for Image so that it implements image.Image.
func (i *Image) Bounds() image.Rectangle {
	return i.img.Bounds()
}

// At for Image so that it implements image.Image.
func (i *Image) At(x, y int) color.Color {
	return i.img.NRGBAAt(x, y)
}

// GetXY returns the color at (x,y).
func (i *Image) GetXY(x, y int) color.NRGBA {
	return i.img.NRGBAAt(x, y)
}

// SetXY sets the color at (x,y).
func (i *Image) SetXY(x, y int, c color.NRGBA) {
	i.img.SetNRGBA(x, y, c)
}

// NRGBA exposes the underlying pixel buffer.
func (i *Image) NRGBA() *image.NRGBA {
	return i.img
}

func (i *Image) withPixels(img *image.NRGBA) *Image {
	return &Image{img: img, Timestamp: i.Timestamp, CameraID: i.CameraID}
}

// Clone makes a copy of the image, metadata included.
func (i *Image) Clone() *Image {
	return i.withPixels(imaging.Clone(i.img))
}

// Resize resamples the image with nearest-neighbor sampling so colors are never blended across
// object edges.
func (i *Image) Resize(width, height int) *Image {
	if width == i.Width() && height == i.Height() {
		return i.Clone()
	}
	return i.withPixels(imaging.Resize(i.img, width, height, imaging.NearestNeighbor))
}

// Crop returns the top-left width x height region of the image.
func (i *Image) Crop(width, height int) *Image {
	return i.withPixels(imaging.Crop(i.img, image.Rect(0, 0, width, height)))
}
