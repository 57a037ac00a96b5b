// Package alphadither reduces a frame's alpha channel to binary
// transparency (GIF has no partial transparency) using an 8x8 Bayer
// ordered dither, so a field of semi-transparent pixels becomes a
// stable stipple pattern instead of a hard, shifting edge. Grounded on
// github.com/makeworld-the-better-one/dither/v2, used the same way the
// reference gif-animation example wires up a Ditherer.
package alphadither

import (
	"image"
	"image/color"

	"github.com/makeworld-the-better-one/dither/v2"
)

var binaryPalette = []color.Color{
	color.Gray{Y: 0},
	color.Gray{Y: 255},
}

// Mask ordered-dithers img's alpha channel to a binary opaque/transparent
// decision per pixel. The returned slice is row-major, width*height
// bools, true meaning the pixel stays opaque.
func Mask(img *image.NRGBA) []bool {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	gray := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			_, _, _, a := img.NRGBAAt(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			gray.SetGray(x, y, color.Gray{Y: uint8(a >> 8)})
		}
	}

	d := dither.NewDitherer(binaryPalette)
	d.Matrix = dither.Bayer8x8

	dithered := d.DitherPaletted(gray)

	mask := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			mask[y*w+x] = dithered.ColorIndexAt(x, y) == 1
		}
	}
	return mask
}

// MatteBlend composes src over matte wherever src is not fully opaque,
// used instead of Mask when Settings.Matte is set (section 9: matte
// takes priority over alpha dithering).
func MatteBlend(img *image.NRGBA, matte color.RGBA) *image.NRGBA {
	bounds := img.Bounds()
	out := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := img.NRGBAAt(x, y)
			if c.A == 255 {
				out.SetNRGBA(x, y, c)
				continue
			}
			a := float64(c.A) / 255.0
			blend := func(fg, bg uint8) uint8 {
				return uint8(float64(fg)*a + float64(bg)*(1-a))
			}
			out.SetNRGBA(x, y, color.NRGBA{
				R: blend(c.R, matte.R),
				G: blend(c.G, matte.G),
				B: blend(c.B, matte.B),
				A: 255,
			})
		}
	}
	return out
}
