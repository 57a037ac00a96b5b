package alphadither

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaskFullyOpaqueStaysOpaque(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	mask := Mask(img)
	require.Len(t, mask, 64)
	for _, opaque := range mask {
		require.True(t, opaque)
	}
}

func TestMaskFullyTransparentStaysTransparent(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	mask := Mask(img)
	for _, opaque := range mask {
		require.False(t, opaque)
	}
}

func TestMatteBlendOpaqueUnchanged(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	out := MatteBlend(img, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	require.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 255}, out.NRGBAAt(0, 0))
}

func TestMatteBlendTransparentTakesMatte(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	out := MatteBlend(img, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	c := out.NRGBAAt(0, 0)
	require.Equal(t, uint8(200), c.R)
	require.Equal(t, uint8(100), c.G)
	require.Equal(t, uint8(50), c.B)
	require.Equal(t, uint8(255), c.A)
}
