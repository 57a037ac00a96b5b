package gifpipe

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/nullpixel/gifpipe/internal/ditherkernels"
)

// remapper is the pipeline's single-owner of the virtual screen (section
// 4.6, 9): it must run on exactly one goroutine because every step
// depends on the screen state left by the previous frame.
type remapper struct {
	settings Settings
	screen   *image.NRGBA
	screenW  int
	screenH  int

	havePrev   bool
	prevRect   image.Rectangle
	prevDispose Disposal
}

// paletteIndexer is a linear nearest-color search over a plain palette
// slice, used by the remap step instead of internal/colorquant's own
// Palette type: by the time a frame reaches here its palette is already
// fixed, so there is no further training to do, only lookup.
type paletteIndexer struct {
	colors []colorRGBA
}

func (p paletteIndexer) Index(r, g, b uint8) int {
	best, bestd := 0, math.MaxFloat64
	for i, c := range p.colors {
		if c.A == 0 {
			continue
		}
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

func runRemapStage(ctx context.Context, settings Settings, in <-chan quantizedFrame, out chan<- finalFrame) error {
	r := &remapper{settings: settings}
	defer close(out)

	var pending *quantizedFrame
	for {
		select {
		case <-ctx.Done():
			return ErrAborted
		case qf, ok := <-in:
			if !ok {
				if pending != nil {
					ff, err := r.remapOne(*pending, true)
					if err != nil {
						return err
					}
					select {
					case out <- ff:
					case <-ctx.Done():
						return ErrAborted
					}
				}
				return nil
			}
			if pending != nil {
				ff, err := r.remapOne(*pending, false)
				if err != nil {
					return err
				}
				select {
				case out <- ff:
				case <-ctx.Done():
					return ErrAborted
				}
			}
			qfCopy := qf
			pending = &qfCopy
		}
	}
}

func (r *remapper) remapOne(qf quantizedFrame, lastFrame bool) (finalFrame, error) {
	if r.screen == nil {
		r.screenW, r.screenH = qf.width, qf.height
		r.screen = image.NewNRGBA(image.Rect(0, 0, r.screenW, r.screenH))
	}

	// Step 1: apply the previous frame's disposal to produce the
	// post-dispose background this frame is remapped against.
	if r.havePrev && r.prevDispose == DisposeBackground {
		clearRect(r.screen, r.prevRect)
	}

	indices, normalizedPalette, transparentIndex := r.indexAgainstBackground(qf)

	// Step 4: crop to the smallest rectangle that differs from the
	// post-dispose background.
	left, top, width, height := r.cropRect(qf, indices, normalizedPalette, transparentIndex)
	if qf.firstFrame || lastFrame {
		if width == 0 || height == 0 {
			left, top, width, height = 0, 0, qf.width, qf.height
		}
	}
	if width == 0 || height == 0 {
		// Nothing changed; emit a 1x1 no-op sub-image rather than an
		// empty one, which no GIF decoder accepts.
		left, top, width, height = 0, 0, 1, 1
	}

	croppedIndices := make([]byte, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			croppedIndices[y*width+x] = indices[(top+y)*qf.width+(left+x)]
		}
	}

	// Step 5: blit onto the screen.
	r.blit(qf, indices, normalizedPalette, left, top, width, height)
	r.havePrev = true
	r.prevRect = image.Rect(left, top, left+width, top+height)
	r.prevDispose = qf.dispose

	return finalFrame{
		frameIndex:  qf.frameIndex,
		ordinal:     qf.ordinal,
		endPTS:      qf.endPTS,
		left:        left,
		top:         top,
		width:       width,
		height:      height,
		palette:     normalizedPalette,
		indices:     croppedIndices,
		transparent: transparentIndex,
		dispose:     qf.dispose,
		screenW:     r.screenW,
		screenH:     r.screenH,
		firstFrame:  qf.firstFrame,
		lastFrame:   lastFrame,
	}, nil
}

// indexAgainstBackground maps every pixel of qf to a palette index,
// dithering with the teacher's error-diffusion kernels scaled by
// qf.ditherStrength, then normalizes the palette so at most one entry is
// transparent (section 4.6 steps 2-3).
func (r *remapper) indexAgainstBackground(qf quantizedFrame) ([]byte, []colorRGBA, int) {
	pixels := make([]byte, qf.width*qf.height*3)
	transparentMask := make([]bool, qf.width*qf.height)
	for i := 0; i < qf.width*qf.height; i++ {
		x, y := i%qf.width, i/qf.width
		c := qf.image.NRGBAAt(qf.image.Bounds().Min.X+x, qf.image.Bounds().Min.Y+y)
		if c.A == 0 {
			transparentMask[i] = true
			continue
		}
		pixels[i*3], pixels[i*3+1], pixels[i*3+2] = c.R, c.G, c.B
	}

	colors := make([]color.RGBA, len(qf.palette))
	for i, c := range qf.palette {
		colors[i] = color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
	}
	idx := paletteIndexer{colors: qf.palette}

	kernel, ok := ditherkernels.KernelFor(ditherkernels.MethodFloydSteinberg)
	var indices []byte
	if ok && qf.ditherStrength > 0 {
		scaled := scaleKernel(kernel, qf.ditherStrength)
		indices = ditherkernels.Apply(pixels, qf.width, qf.height, idx, colors, scaled, true)
	} else {
		indices = make([]byte, qf.width*qf.height)
		for i := 0; i < qf.width*qf.height; i++ {
			indices[i] = byte(idx.Index(pixels[i*3], pixels[i*3+1], pixels[i*3+2]))
		}
	}

	firstTransparent := -1
	for i, c := range qf.palette {
		if c.A <= 128 {
			if firstTransparent == -1 {
				firstTransparent = i
			}
		}
	}

	for i := range transparentMask {
		if transparentMask[i] {
			if firstTransparent == -1 {
				firstTransparent = len(qf.palette)
				qf.palette = append(qf.palette, colorRGBA{})
			}
			indices[i] = byte(firstTransparent)
		}
	}

	normalized := make([]colorRGBA, 0, len(qf.palette))
	remap := make([]int, len(qf.palette))
	for i, c := range qf.palette {
		if c.A <= 128 {
			remap[i] = firstTransparent
			continue
		}
		remap[i] = len(normalized)
		normalized = append(normalized, c)
	}
	if firstTransparent != -1 {
		transparentTarget := len(normalized)
		normalized = append(normalized, colorRGBA{})
		for i, c := range qf.palette {
			if c.A <= 128 {
				remap[i] = transparentTarget
			}
		}
		for i := range indices {
			indices[i] = byte(remap[indices[i]])
		}
		return indices, normalized, transparentTarget
	}

	for i := range indices {
		indices[i] = byte(remap[indices[i]])
	}
	return indices, normalized, -1
}

func scaleKernel(k ditherkernels.Kernel, factor float64) ditherkernels.Kernel {
	out := make(ditherkernels.Kernel, len(k))
	for i, tap := range k {
		out[i] = [3]float64{tap[0] * factor, tap[1], tap[2]}
	}
	return out
}

// cropRect finds the smallest rectangle containing every pixel that
// differs from the post-dispose screen, via four trim passes (section
// 4.6 step 4).
func (r *remapper) cropRect(qf quantizedFrame, indices []byte, palette []colorRGBA, transparentIndex int) (int, int, int, int) {
	w, h := qf.width, qf.height
	differs := func(x, y int) bool {
		idx := indices[y*w+x]
		c := palette[idx]
		sx, sy := x, y
		var bgc color.NRGBA
		if sx >= 0 && sx < r.screenW && sy >= 0 && sy < r.screenH {
			bgc = r.screen.NRGBAAt(sx, sy)
		}
		if int(idx) == transparentIndex {
			if qf.dispose == DisposeBackground {
				return bgc.A != 0
			}
			// Under Keep, a transparent pixel is a no-op regardless of
			// the background, so it never forces the crop to include it.
			return false
		}
		return c.R != bgc.R || c.G != bgc.G || c.B != bgc.B || bgc.A == 0
	}

	top, bottom := 0, h
	for top < bottom {
		rowDiffers := false
		for x := 0; x < w; x++ {
			if differs(x, top) {
				rowDiffers = true
				break
			}
		}
		if rowDiffers {
			break
		}
		top++
	}
	for bottom > top {
		rowDiffers := false
		for x := 0; x < w; x++ {
			if differs(x, bottom-1) {
				rowDiffers = true
				break
			}
		}
		if rowDiffers {
			break
		}
		bottom--
	}

	left, right := 0, w
	for left < right {
		colDiffers := false
		for y := top; y < bottom; y++ {
			if differs(left, y) {
				colDiffers = true
				break
			}
		}
		if colDiffers {
			break
		}
		left++
	}
	for right > left {
		colDiffers := false
		for y := top; y < bottom; y++ {
			if differs(right-1, y) {
				colDiffers = true
				break
			}
		}
		if colDiffers {
			break
		}
		right--
	}

	if left >= right || top >= bottom {
		return 0, 0, 0, 0
	}
	return left, top, right - left, bottom - top
}

// blit draws the sub-image onto the screen. indices refer to palette (the
// normalized palette); a transparent index draws nothing, leaving the
// pixel underneath as it was.
func (r *remapper) blit(qf quantizedFrame, indices []byte, palette []colorRGBA, left, top, width, height int) {
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sx, sy := left+x, top+y
			idx := indices[sy*qf.width+sx]
			c := palette[idx]
			if c.A == 0 {
				continue
			}
			r.screen.SetNRGBA(sx, sy, color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255})
		}
	}
}

func clearRect(img *image.NRGBA, rect image.Rectangle) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetNRGBA(x, y, color.NRGBA{})
		}
	}
}
