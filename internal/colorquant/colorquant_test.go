package colorquant

import (
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomSamples(n int, seed int64) []Sample {
	r := rand.New(rand.NewSource(seed))
	out := make([]Sample, n)
	for i := range out {
		out[i] = Sample{
			R:          uint8(r.Intn(256)),
			G:          uint8(r.Intn(256)),
			B:          uint8(r.Intn(256)),
			Importance: uint8(r.Intn(256)),
		}
	}
	return out
}

func TestNeuQuantBuildsRequestedPaletteSize(t *testing.T) {
	nq := &NeuQuant{SampleFactor: 4}
	pal, err := nq.Quantize(randomSamples(2000, 1), nil, 64)
	require.NoError(t, err)
	require.Len(t, pal.Colors(), 64)
}

func TestNeuQuantKeepsFixedColorsFirst(t *testing.T) {
	fixed := []color.RGBA{{R: 255, A: 255}, {B: 255, A: 255}}
	nq := &NeuQuant{SampleFactor: 8}
	pal, err := nq.Quantize(randomSamples(500, 2), fixed, 32)
	require.NoError(t, err)
	colors := pal.Colors()
	require.Equal(t, fixed[0], colors[0])
	require.Equal(t, fixed[1], colors[1])
}

func TestNeuQuantIndexFindsNearestColor(t *testing.T) {
	nq := &NeuQuant{SampleFactor: 4}
	samples := []Sample{
		{R: 255, G: 0, B: 0, Importance: 200},
		{R: 0, G: 255, B: 0, Importance: 200},
		{R: 0, G: 0, B: 255, Importance: 200},
	}
	pal, err := nq.Quantize(samples, nil, 4)
	require.NoError(t, err)
	idx := pal.Index(250, 10, 10)
	c := pal.Colors()[idx]
	require.Greater(t, int(c.R), int(c.G))
	require.Greater(t, int(c.R), int(c.B))
}

func TestMedianQuantizeRespectsMaxColors(t *testing.T) {
	m := Median{}
	pal, err := m.Quantize(randomSamples(500, 3), nil, 16)
	require.NoError(t, err)
	require.LessOrEqual(t, len(pal.Colors()), 16)
	require.NotEmpty(t, pal.Colors())
}

func TestMedianQuantizeKeepsFixedColors(t *testing.T) {
	fixed := []color.RGBA{{R: 10, G: 20, B: 30, A: 255}}
	m := Median{}
	pal, err := m.Quantize(randomSamples(200, 4), fixed, 8)
	require.NoError(t, err)
	require.Equal(t, fixed[0], pal.Colors()[0])
}
