package rimage

import (
	"image"

	"github.com/disintegration/imaging"
)

// Grayscale converts a color frame to 8-bit luminance.
func Grayscale(img *Image) *image.Gray {
	g := imaging.Grayscale(img.img)
	out := image.NewGray(image.Rect(0, 0, img.Width(), img.Height()))
	for y := 0; y < out.Rect.Dy(); y++ {
		for x := 0; x < out.Rect.Dx(); x++ {
			out.Pix[y*out.Stride+x] = g.Pix[y*g.Stride+x*4]
		}
	}
	return out
}

// EqualizeHistogram spreads the intensities of a greyscale image over the full range using its
// cumulative histogram, which stabilizes block matching under uneven lighting.
func EqualizeHistogram(img *image.Gray) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(bounds)
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return out
	}

	var hist [256]int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[img.GrayAt(x, y).Y]++
		}
	}

	var cdf [256]int
	running := 0
	cdfMin := 0
	for v, n := range hist {
		running += n
		cdf[v] = running
		if cdfMin == 0 && running > 0 {
			cdfMin = running
		}
	}

	var lut [256]uint8
	if total == cdfMin {
		// a single intensity; nothing to spread
		for v := range lut {
			lut[v] = uint8(v)
		}
	} else {
		for v := range lut {
			if cdf[v] < cdfMin {
				continue
			}
			lut[v] = uint8((float64(cdf[v]-cdfMin)*255)/float64(total-cdfMin) + 0.5)
		}
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			out.Pix[out.PixOffset(x, y)] = lut[img.Pix[img.PixOffset(x, y)]]
		}
	}
	return out
}
