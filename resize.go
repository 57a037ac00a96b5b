package gifpipe

import (
	"context"
	"image"
	"image/color"
	"math"
	"runtime"
	"sort"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/nullpixel/gifpipe/internal/alphadither"
	"github.com/nullpixel/gifpipe/internal/ordqueue"
)

const edgeAlphaOverrideThreshold = 0.35

// targetSize resolves section 4.2 step 1: shrink to ~800x600 area when
// both dimensions are unset, otherwise fit within the given bounds
// preserving whichever axis is unset.
func targetSize(srcW, srcH, cfgW, cfgH int) (int, int) {
	if cfgW == 0 && cfgH == 0 {
		const targetArea = 800 * 600
		area := srcW * srcH
		if area <= targetArea {
			return srcW, srcH
		}
		factor := math.Sqrt(float64(area) / float64(targetArea))
		w := int(float64(srcW) / factor)
		h := int(float64(srcH) / factor)
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		return w, h
	}
	if cfgW == 0 {
		h := cfgH
		w := srcW * h / srcH
		return w, h
	}
	if cfgH == 0 {
		w := cfgW
		h := srcH * w / srcW
		return w, h
	}
	wScale := float64(cfgW) / float64(srcW)
	hScale := float64(cfgH) / float64(srcH)
	scale := math.Min(wScale, hScale)
	w := int(float64(srcW) * scale)
	h := int(float64(srcH) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// runResizeStage pulls frames off in, resizes/dithers them across a
// worker pool sized min(6, GOMAXPROCS), and pushes the results (back in
// input order, via an ordered queue) onto out.
func runResizeStage(ctx context.Context, settings Settings, in <-chan Frame, out chan<- resizedFrame) error {
	logger := settings.Logger.With().Str("component", "resize").Logger()

	workers := runtime.GOMAXPROCS(0)
	if workers > 6 {
		workers = 6
	}
	if workers < 1 {
		workers = 1
	}

	q, recv := ordqueue.New[resizedFrame](workers * 2)
	g, gctx := errgroup.WithContext(ctx)

	var firstDims [2]int
	haveDims := false

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return ErrAborted
				case f, ok := <-in:
					if !ok {
						return nil
					}
					rf, err := resizeOneFrame(settings, f)
					if err != nil {
						return err
					}
					if !haveDims {
						firstDims = [2]int{rf.image.Bounds().Dx(), rf.image.Bounds().Dy()}
						haveDims = true
					} else if rf.image.Bounds().Dx() != firstDims[0] || rf.image.Bounds().Dy() != firstDims[1] {
						return newErrorf(KindWrongSize, "frame %d: resized to %dx%d, expected %dx%d",
							f.Index, rf.image.Bounds().Dx(), rf.image.Bounds().Dy(), firstDims[0], firstDims[1])
					}
					q.Push(f.Index, rf)
					logger.Debug().Int("frame", f.Index).Msg("resized")
				}
			}
		})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			v, ok := recv.Next()
			if !ok {
				return
			}
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()

	err := g.Wait()
	q.Close()
	<-done
	close(out)
	return err
}

func resizeOneFrame(settings Settings, f Frame) (resizedFrame, error) {
	srcBounds := f.Image.Bounds()
	w, h := targetSize(srcBounds.Dx(), srcBounds.Dy(), settings.Width, settings.Height)

	var resized *image.NRGBA
	if w == srcBounds.Dx() && h == srcBounds.Dy() {
		resized = cloneNRGBA(f.Image)
	} else {
		resized = imaging.Resize(f.Image, w, h, imaging.Lanczos)
	}

	if settings.Matte != nil {
		resized = alphadither.MatteBlend(resized, *settings.Matte)
	} else {
		mask := alphadither.Mask(resized)
		applyAlphaMask(resized, mask)
	}

	blurred := blurredCompanion(resized)

	return resizedFrame{
		index:   f.Index,
		pts:     f.PTS,
		image:   resized,
		blurred: blurred,
	}, nil
}

func cloneNRGBA(src *image.NRGBA) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.SetNRGBA(x, y, src.NRGBAAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

// applyAlphaMask forces every pixel's alpha to 0 or 255 per mask, except
// at detected edges (a large alpha gradient among 4-neighbors), where a
// flat 35% threshold is used instead to avoid fuzzy halos (section 4.2
// step 4).
func applyAlphaMask(img *image.NRGBA, mask []bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	alphaAt := func(x, y int) uint8 {
		if x < 0 || x >= w || y < 0 || y >= h {
			return 0
		}
		return img.NRGBAAt(b.Min.X+x, b.Min.Y+y).A
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.NRGBAAt(b.Min.X+x, b.Min.Y+y)

			isEdge := isAlphaEdge(alphaAt, x, y)
			var opaque bool
			if isEdge {
				opaque = float64(c.A)/255.0 >= edgeAlphaOverrideThreshold
			} else {
				opaque = mask[y*w+x]
			}

			a := uint8(0)
			if opaque {
				a = 255
			}
			c.A = a
			img.SetNRGBA(b.Min.X+x, b.Min.Y+y, c)
		}
	}
}

func isAlphaEdge(alphaAt func(x, y int) uint8, x, y int) bool {
	center := int(alphaAt(x, y))
	neighbors := [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}}
	for _, n := range neighbors {
		d := int(alphaAt(n[0], n[1])) - center
		if d < 0 {
			d = -d
		}
		if d > 127 {
			return true
		}
	}
	return false
}

// blurredCompanion computes a 3x3 median-filtered RGB image, ignoring
// transparent neighbors, and falls back to the original pixel wherever
// the median is close enough to not matter (section 4.2 step 5).
func blurredCompanion(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	const keepThreshold = 6 // per-channel

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			orig := img.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			med := medianOf9(img, b, x, y)

			dr := int(med.R) - int(orig.R)
			dg := int(med.G) - int(orig.G)
			db := int(med.B) - int(orig.B)
			if abs(dr) <= keepThreshold && abs(dg) <= keepThreshold && abs(db) <= keepThreshold {
				out.SetNRGBA(x, y, color.NRGBA{R: orig.R, G: orig.G, B: orig.B, A: 255})
			} else {
				out.SetNRGBA(x, y, color.NRGBA{R: med.R, G: med.G, B: med.B, A: 255})
			}
		}
	}
	return out
}

func medianOf9(img *image.NRGBA, b image.Rectangle, x, y int) color.NRGBA {
	w, h := b.Dx(), b.Dy()
	var rs, gs, bs []int
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			nx, ny := x+dx, y+dy
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			c := img.NRGBAAt(b.Min.X+nx, b.Min.Y+ny)
			if c.A == 0 {
				continue
			}
			rs = append(rs, int(c.R))
			gs = append(gs, int(c.G))
			bs = append(bs, int(c.B))
		}
	}
	if len(rs) == 0 {
		c := img.NRGBAAt(b.Min.X+x, b.Min.Y+y)
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}
	}
	return color.NRGBA{R: uint8(median(rs)), G: uint8(median(gs)), B: uint8(median(bs)), A: 255}
}

func median(vs []int) int {
	sorted := append([]int(nil), vs...)
	sort.Ints(sorted)
	return sorted[len(sorted)/2]
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
