package colorquant

import (
	"image"
	"image/color"
	"math"

	"github.com/soniakeys/quant/median"
)

// Median is the fast-path quantizer used under Settings.Fast: a median-cut
// implementation from github.com/soniakeys/quant/median, which already
// satisfies the stdlib image/draw.Quantizer contract. It trades NeuQuant's
// iterative refinement for a single recursive split, at a fraction of the
// cost.
type Median struct{}

func (Median) Quantize(samples []Sample, fixedColors []color.RGBA, maxColors int) (Palette, error) {
	img := samplesToImage(samples)

	budget := maxColors - len(fixedColors)
	if budget < 2 {
		budget = 2
	}
	q := median.Quantizer(budget)
	pal := q.Quantize(make(color.Palette, 0, budget), img)

	colors := make([]color.RGBA, 0, len(fixedColors)+len(pal))
	colors = append(colors, fixedColors...)
	for _, c := range pal {
		r, g, b, a := c.RGBA()
		colors = append(colors, color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)})
	}
	return &linearPalette{colors: colors, fixedCount: len(fixedColors)}, nil
}

// samplesToImage lays samples out as a roughly-square NRGBA image, which
// is all quant.Quantizer's Quantize needs: it only looks at pixel values,
// not geometry.
func samplesToImage(samples []Sample) *image.NRGBA {
	n := len(samples)
	if n == 0 {
		n = 1
	}
	w := int(math.Ceil(math.Sqrt(float64(n))))
	h := (n + w - 1) / w
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, s := range samples {
		img.SetNRGBA(i%w, i/w, color.NRGBA{R: s.R, G: s.G, B: s.B, A: 255})
	}
	return img
}

// linearPalette is a Palette backed by a plain slice, used by any backend
// (median, or fixed-color-only frames) without its own fast search
// structure. Index does a linear nearest-color scan, matching the
// distance metric the teacher's GIFEncoder.findClosestRGB used.
type linearPalette struct {
	colors     []color.RGBA
	fixedCount int
}

func (p *linearPalette) Colors() []color.RGBA { return p.colors }

func (p *linearPalette) Index(r, g, b uint8) int {
	best, bestd := 0, math.MaxFloat64
	for i, c := range p.colors {
		dr := float64(c.R) - float64(r)
		dg := float64(c.G) - float64(g)
		db := float64(c.B) - float64(b)
		d := dr*dr + dg*dg + db*db
		if d < bestd {
			bestd, best = d, i
		}
	}
	return best
}
