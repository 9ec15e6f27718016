package raster

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// IsIndexed reports whether img uses a palette (indexed) color model.
func IsIndexed(img image.Image) bool {
	if img == nil {
		return false
	}
	_, ok := img.ColorModel().(color.Palette)
	return ok
}

// ToDirect expands img into a non-indexed NRGBA buffer whose bounds start at (0,0).
func ToDirect(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Normalize returns img unchanged unless it is indexed, in which case it is expanded to direct color.
// Copying indexed pixels as-is is not portable across backends.
func Normalize(img image.Image) image.Image {
	if IsIndexed(img) {
		return ToDirect(img)
	}
	return img
}
