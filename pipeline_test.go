package gifpipe

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkerboardFrame(w, h, phase int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 0, G: 0, B: 0, A: 255}
			if (x+y+phase)%8 < 4 {
				c = color.NRGBA{R: 240, G: 240, B: 240, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestCollectorEncodesValidGIF(t *testing.T) {
	settings := DefaultSettings()
	settings.Quality = 80

	var buf bytes.Buffer
	ctx := context.Background()
	collector, err := NewCollector(ctx, settings, &buf, NopProgress{})
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		img := checkerboardFrame(32, 24, i*2)
		require.NoError(t, collector.AddFrameRGBA(i, img, float64(i)*0.1))
	}

	require.NoError(t, collector.Finish())
	assert.True(t, buf.Len() > 0)

	decoded, err := gif.DecodeAll(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.NotEmpty(t, decoded.Image)
	for _, delay := range decoded.Delay {
		assert.GreaterOrEqual(t, delay, minDelayCentis)
	}
}

func TestCollectorRejectsZeroFrames(t *testing.T) {
	settings := DefaultSettings()

	var buf bytes.Buffer
	ctx := context.Background()
	collector, err := NewCollector(ctx, settings, &buf, NopProgress{})
	require.NoError(t, err)

	err = collector.Finish()
	require.Error(t, err)
	assert.Equal(t, KindNoFrames, KindOf(err))
}

func TestCollectorHonorsCancellation(t *testing.T) {
	settings := DefaultSettings()

	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	collector, err := NewCollector(ctx, settings, &buf, NopProgress{})
	require.NoError(t, err)

	cancel()
	_ = collector.AddFrameRGBA(0, checkerboardFrame(16, 16, 0), 0)
	err = collector.Finish()
	require.Error(t, err)
}

// TestSingleFramePTS01ProducesOneFrameGIF is end-to-end scenario (a): one
// image, PTS=0.1, must decode to a one-frame GIF with delay >= 2.
func TestSingleFramePTS01ProducesOneFrameGIF(t *testing.T) {
	settings := DefaultSettings()

	var buf bytes.Buffer
	ctx := context.Background()
	collector, err := NewCollector(ctx, settings, &buf, NopProgress{})
	require.NoError(t, err)

	require.NoError(t, collector.AddFrameRGBA(0, checkerboardFrame(16, 16, 0), 0.1))
	require.NoError(t, collector.Finish())

	decoded, err := gif.DecodeAll(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, decoded.Image, 1)
	assert.GreaterOrEqual(t, decoded.Delay[0], minDelayCentis)
}

// TestThreeIdenticalFramesElideToOneFrame is end-to-end scenario (b):
// three identical frames at PTS [0.1, 1.2, 1.3] collapse into a single
// GIF frame with delay ~=130 centiseconds. This exercises the denoiser's
// flush path with frameCount (3) below pixelRingDepth, which must still
// emit every pushed frame so the dedup stage downstream has real data to
// compare rather than silently dropping frames.
func TestThreeIdenticalFramesElideToOneFrame(t *testing.T) {
	settings := DefaultSettings()

	var buf bytes.Buffer
	ctx := context.Background()
	collector, err := NewCollector(ctx, settings, &buf, NopProgress{})
	require.NoError(t, err)

	img := checkerboardFrame(16, 16, 0)
	for i, pts := range []float64{0.1, 1.2, 1.3} {
		require.NoError(t, collector.AddFrameRGBA(i, img, pts))
	}
	require.NoError(t, collector.Finish())

	decoded, err := gif.DecodeAll(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, decoded.Image, 1)
	assert.InDelta(t, 130, decoded.Delay[0], 2)
}

// TestPartialDuplicatesProduceTwoFramesWithSplitDelays is end-to-end
// scenario (c): A,B,B at PTS [0.0, 1.2, 1.3] yields two frames with
// delays [120, 20] — the trailing duplicate of B merges into the frame
// that precedes it rather than vanishing. Another frameCount(3) <
// pixelRingDepth case for the denoiser flush path.
func TestPartialDuplicatesProduceTwoFramesWithSplitDelays(t *testing.T) {
	settings := DefaultSettings()

	var buf bytes.Buffer
	ctx := context.Background()
	collector, err := NewCollector(ctx, settings, &buf, NopProgress{})
	require.NoError(t, err)

	a := checkerboardFrame(16, 16, 0)
	b := checkerboardFrame(16, 16, 4)
	require.NoError(t, collector.AddFrameRGBA(0, a, 0.0))
	require.NoError(t, collector.AddFrameRGBA(1, b, 1.2))
	require.NoError(t, collector.AddFrameRGBA(2, b, 1.3))
	require.NoError(t, collector.Finish())

	decoded, err := gif.DecodeAll(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, decoded.Image, 2)
	assert.InDelta(t, 120, decoded.Delay[0], 2)
	assert.InDelta(t, 20, decoded.Delay[1], 2)
}

func TestLossyPipelineProducesDecodableGIF(t *testing.T) {
	settings := DefaultSettings()
	settings.Quality = 60
	settings.Lossy = true
	settings.Fast = true

	var buf bytes.Buffer
	ctx := context.Background()
	collector, err := NewCollector(ctx, settings, &buf, NopProgress{})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, collector.AddFrameRGBA(i, checkerboardFrame(20, 20, i*3), float64(i)*0.2))
	}
	require.NoError(t, collector.Finish())

	_, err = gif.DecodeAll(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
}
