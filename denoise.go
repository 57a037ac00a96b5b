package gifpipe

import (
	"context"
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// pixelRingDepth is the 5-frame look-ahead window (section 4.3).
const pixelRingDepth = 5

// pixelState is the per-pixel sliding-window state: struct-of-arrays per
// section 9 ("five u8 slots per channel per pixel... single cache
// line"), plus the committed background and its stay counters.
type pixelState struct {
	r, g, b     [pixelRingDepth]uint8
	br, bg, bb  [pixelRingDepth]uint8
	transparent [pixelRingDepth]bool
	fill        int // number of valid ring entries, caps at pixelRingDepth

	bgR, bgG, bgB, bgA uint8
	bgValid            bool
	canStayFor         int
	stayedFor          int
}

// push shifts the ring left and appends a new sample at the tail.
func (p *pixelState) push(r, g, b, br, bg, bb uint8, transparent bool) {
	for i := 0; i < pixelRingDepth-1; i++ {
		p.r[i], p.g[i], p.b[i] = p.r[i+1], p.g[i+1], p.b[i+1]
		p.br[i], p.bg[i], p.bb[i] = p.br[i+1], p.bg[i+1], p.bb[i+1]
		p.transparent[i] = p.transparent[i+1]
	}
	last := pixelRingDepth - 1
	p.r[last], p.g[last], p.b[last] = r, g, b
	p.br[last], p.bg[last], p.bb[last] = br, bg, bb
	p.transparent[last] = transparent
	if p.fill < pixelRingDepth {
		p.fill++
	}
}

type denoiser struct {
	settings     Settings
	width, height int
	pixels       []pixelState
	frames       [pixelRingDepth]*resizedFrame
	frameCount   int
	ordinal      int
	lastEmitPTS  float64
	havePrevPTS  bool
}

func newDenoiser(settings Settings, width, height int) *denoiser {
	return &denoiser{
		settings: settings,
		width:    width,
		height:   height,
		pixels:   make([]pixelState, width*height),
	}
}

// colorDiff returns the squared Lab distance between a and b, scaled to
// the 0-255 range of a color channel, so it is on the same scale as
// denoiseThreshold's squared threshold.
func colorDiff(a, b color.NRGBA) float64 {
	ca := colorful.Color{R: float64(a.R) / 255, G: float64(a.G) / 255, B: float64(a.B) / 255}
	cb := colorful.Color{R: float64(b.R) / 255, G: float64(b.G) / 255, B: float64(b.B) / 255}
	d := ca.DistanceLab(cb) * 255
	return d * d
}

func denoiseThreshold(quality int) float64 {
	v := 55.0 - float64(quality)/2.0
	return v * v
}

// cohort is a cheap binary partition of a pixel's color, used to
// stagger background updates (section 4.3, section glossary "Cohort").
func cohort(r, g, b uint8) bool {
	return (int(r)+int(g)+int(b))%2 == 0
}

// pushFrame feeds one resized frame into the sliding window, returning
// the denoised output for the frame now 4 positions back (if the window
// has filled) and ok=true, or ok=false if more input is needed first.
func (d *denoiser) pushFrame(f resizedFrame) (denoisedFrame, bool) {
	bounds := f.image.Bounds()
	for y := 0; y < d.height; y++ {
		for x := 0; x < d.width; x++ {
			c := f.image.NRGBAAt(bounds.Min.X+x, bounds.Min.Y+y)
			bc := f.blurred.NRGBAAt(bounds.Min.X+x, bounds.Min.Y+y)
			idx := y*d.width + x
			d.pixels[idx].push(c.R, c.G, c.B, bc.R, bc.G, bc.B, c.A == 0)
		}
	}

	for i := 0; i < pixelRingDepth-1; i++ {
		d.frames[i] = d.frames[i+1]
	}
	d.frames[pixelRingDepth-1] = &f
	d.frameCount++

	if d.frameCount < pixelRingDepth {
		return denoisedFrame{}, false
	}
	return d.emit(), true
}

// flush drains the tail of the window by feeding fully-transparent dummy
// samples, emitting the remaining buffered frames in order. The window
// holds pixelRingDepth slots regardless of how many real frames were ever
// pushed, so draining it always takes exactly pixelRingDepth-1 dummy
// pushes: when frameCount >= pixelRingDepth every one of those pushes
// surfaces a real, not-yet-emitted frame at d.frames[0]; when frameCount
// is smaller, the first few pushes only shift stale nils into position
// before the real frames start arriving. Those nil-fronted steps are
// skipped rather than emitted, since emit() has nothing real to read yet.
func (d *denoiser) flush() []denoisedFrame {
	var out []denoisedFrame
	for i := 0; i < pixelRingDepth-1; i++ {
		for p := range d.pixels {
			d.pixels[p].push(0, 0, 0, 0, 0, 0, true)
		}
		for j := 0; j < pixelRingDepth-1; j++ {
			d.frames[j] = d.frames[j+1]
		}
		d.frames[pixelRingDepth-1] = nil
		if d.frames[0] == nil {
			continue
		}
		out = append(out, d.emit())
	}
	return out
}

func (d *denoiser) emit() denoisedFrame {
	target := d.frames[0]
	out := image.NewNRGBA(image.Rect(0, 0, d.width, d.height))
	importance := make([]uint8, d.width*d.height)

	quality := d.settings.motionQuality()
	baseThreshold := denoiseThreshold(quality)
	cohortFrame := d.ordinal%2 == 0

	for y := 0; y < d.height; y++ {
		for x := 0; x < d.width; x++ {
			idx := y*d.width + x
			ps := &d.pixels[idx]
			outColor, imp := d.decidePixel(ps, cohortFrame, baseThreshold)
			out.SetNRGBA(x, y, outColor)
			importance[idx] = imp
		}
	}

	pts := 0.0
	if target != nil {
		pts = target.pts
	}
	duration := 0.0
	if d.havePrevPTS {
		duration = pts - d.lastEmitPTS
	}
	d.lastEmitPTS = pts
	d.havePrevPTS = true

	result := denoisedFrame{
		ordinal:    d.ordinal,
		pts:        pts,
		duration:   duration,
		image:      out,
		importance: importance,
		width:      d.width,
		height:     d.height,
	}
	d.ordinal++
	return result
}

// decidePixel implements the per-pixel decision tree of section 4.3.
func (d *denoiser) decidePixel(ps *pixelState, cohortFrame bool, baseThreshold float64) (color.NRGBA, uint8) {
	current := color.NRGBA{R: ps.r[0], G: ps.g[0], B: ps.b[0], A: 255}
	if ps.transparent[0] {
		if ps.bgValid && ps.bgA != 0 {
			ps.bgA = 0
			return color.NRGBA{A: 0}, 1
		}
		ps.bgA = 0
		return color.NRGBA{A: 0}, 0
	}

	blurred := color.NRGBA{R: ps.br[0], G: ps.bg[0], B: ps.bb[0], A: 255}

	if !ps.bgValid {
		ps.bgR, ps.bgG, ps.bgB, ps.bgA = current.R, current.G, current.B, 255
		ps.bgValid = true
		return current, 255
	}

	bg := color.NRGBA{R: ps.bgR, G: ps.bgG, B: ps.bgB, A: 255}

	threshold := baseThreshold
	pixelCohort := cohort(current.R, current.G, current.B)
	if pixelCohort != cohortFrame {
		threshold *= 2
	}

	diffDirect := colorDiff(bg, current)
	diffBlurred := (diffDirect + colorDiff(bg, blurred)) / 2
	diff := diffDirect
	if diffBlurred < diff {
		diff = diffBlurred
	}

	if ps.stayedFor < ps.canStayFor {
		ps.stayedFor++
		imp := uint8(0)
		if ps.stayedFor == 1 {
			remaining := ps.canStayFor - ps.stayedFor
			imp = uint8(clampInt(remaining*20, 0, 255))
		}
		return bg, imp
	}

	if diff < threshold {
		return bg, 0
	}

	// Scan forward through the window for how many future samples stay
	// within threshold of current.
	stay := 0
	for i := 1; i < ps.fill; i++ {
		future := color.NRGBA{R: ps.r[i], G: ps.g[i], B: ps.b[i], A: 255}
		if colorDiff(current, future) < threshold {
			stay++
		} else {
			break
		}
	}

	if stay == 0 {
		ps.bgR, ps.bgG, ps.bgB, ps.bgA = current.R, current.G, current.B, 255
		ps.canStayFor = 0
		ps.stayedFor = 0
		imp := uint8(clampInt(10+int(diff), 10, 110))
		return current, imp
	}

	if stay > 4 {
		stay = 4
	}
	medR, medG, medB := medianRGB(ps, stay)
	ps.bgR, ps.bgG, ps.bgB, ps.bgA = medR, medG, medB, 255
	ps.canStayFor = stay
	ps.stayedFor = 0

	var imp uint8
	switch {
	case stay == 1:
		imp = uint8(clampInt(5+int(diff), 5, 80))
	case stay <= 2:
		imp = uint8(clampInt(15+int(diff), 15, 190))
	default:
		imp = uint8(clampInt(50+int(diff), 50, 205))
	}
	return color.NRGBA{R: medR, G: medG, B: medB, A: 255}, imp
}

func medianRGB(ps *pixelState, count int) (uint8, uint8, uint8) {
	rs := make([]int, 0, count+1)
	gs := make([]int, 0, count+1)
	bs := make([]int, 0, count+1)
	for i := 0; i <= count && i < ps.fill; i++ {
		rs = append(rs, int(ps.r[i]))
		gs = append(gs, int(ps.g[i]))
		bs = append(bs, int(ps.b[i]))
	}
	return uint8(median(rs)), uint8(median(gs)), uint8(median(bs))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// runDenoiserStage drains in, feeding the sliding window, and forwards
// every emitted frame to out in order. The denoiser is strictly
// sequential (single goroutine owns the ring state). Dimensions come
// from the first frame actually seen, since the pipeline doesn't know
// the resize stage's output size up front.
func runDenoiserStage(ctx context.Context, settings Settings, in <-chan resizedFrame, out chan<- denoisedFrame) error {
	defer close(out)

	send := func(df denoisedFrame) error {
		select {
		case out <- df:
			return nil
		case <-ctx.Done():
			return ErrAborted
		}
	}

	var d *denoiser
	for {
		select {
		case <-ctx.Done():
			return ErrAborted
		case f, ok := <-in:
			if !ok {
				if d == nil {
					return nil
				}
				for _, df := range d.flush() {
					if err := send(df); err != nil {
						return err
					}
				}
				return nil
			}
			if d == nil {
				b := f.image.Bounds()
				d = newDenoiser(settings, b.Dx(), b.Dy())
			}
			if df, emitted := d.pushFrame(f); emitted {
				if err := send(df); err != nil {
					return err
				}
			}
		}
	}
}
