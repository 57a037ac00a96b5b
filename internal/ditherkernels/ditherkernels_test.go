package ditherkernels

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

type fixedIndexer struct{ colors []color.RGBA }

func (f fixedIndexer) Index(r, g, b uint8) int {
	best, bestd := 0, int(1<<30)
	for i, c := range f.colors {
		dr := int(r) - int(c.R)
		dg := int(g) - int(c.G)
		db := int(b) - int(c.B)
		d := dr*dr + dg*dg + db*db
		if d < bestd {
			bestd, best = d, i
		}
	}
	return best
}

func TestKernelForKnownMethods(t *testing.T) {
	for _, m := range []Method{MethodFloydSteinberg, MethodFalseFloyd, MethodStucki, MethodAtkinson} {
		k, ok := KernelFor(m)
		require.True(t, ok)
		require.NotEmpty(t, k)
	}
	_, ok := KernelFor(None)
	require.False(t, ok)
}

func TestApplyProducesOneIndexPerPixel(t *testing.T) {
	palette := []color.RGBA{{A: 255}, {R: 255, G: 255, B: 255, A: 255}}
	idx := fixedIndexer{colors: palette}

	const w, h = 4, 4
	pixels := make([]byte, w*h*3)
	for i := 0; i < w*h; i++ {
		v := byte(0)
		if i%2 == 0 {
			v = 255
		}
		pixels[i*3], pixels[i*3+1], pixels[i*3+2] = v, v, v
	}

	kernel, _ := KernelFor(MethodFloydSteinberg)
	out := Apply(pixels, w, h, idx, palette, kernel, true)
	require.Len(t, out, w*h)
	for _, b := range out {
		require.Less(t, int(b), len(palette))
	}
}
