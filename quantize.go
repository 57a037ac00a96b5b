package gifpipe

import (
	"context"
	"image/color"
	"math/rand"
	"runtime"

	"github.com/nullpixel/gifpipe/internal/colorquant"
	"github.com/nullpixel/gifpipe/internal/ordqueue"
	"golang.org/x/sync/errgroup"
)

const maxQuantizeWorkers = 4

// runQuantizeStage builds a per-frame palette for each diff message
// across a worker pool, re-serializing results through an ordered queue
// (section 4.5).
func runQuantizeStage(ctx context.Context, settings Settings, in <-chan diffMessage, out chan<- quantizedFrame) error {
	logger := settings.Logger.With().Str("component", "quantize").Logger()

	workers := runtime.GOMAXPROCS(0)
	if workers > maxQuantizeWorkers {
		workers = maxQuantizeWorkers
	}
	if workers < 1 {
		workers = 1
	}

	q, recv := ordqueue.New[quantizedFrame](workers * 2)
	g, gctx := errgroup.WithContext(ctx)

	for w := 0; w < workers; w++ {
		seed := int64(w + 1)
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-gctx.Done():
					return ErrAborted
				case msg, ok := <-in:
					if !ok {
						return nil
					}
					qf, err := quantizeOne(settings, msg, rng)
					if err != nil {
						return err
					}
					q.Push(msg.ordinal, qf)
					logger.Debug().Int("frame", msg.ordinal).Int("palette", len(qf.palette)).Msg("quantized")
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

func quantizeOne(settings Settings, msg diffMessage, rng *rand.Rand) (quantizedFrame, error) {
	pixels := cloneNRGBA(msg.image)

	if msg.prevDispose == DisposeKeep {
		// Give the quantizer a larger "don't care" area: pixels the
		// denoiser marked unimportant are hidden, except a small
		// fraction kept visible at higher quality so the quantizer can
		// still refine the background there.
		skipProb := float64(settings.Quality) / 400.0
		for i, imp := range msg.importance {
			if imp != 0 {
				continue
			}
			if rng.Float64() < skipProb {
				continue
			}
			x, y := i%msg.width, i/msg.width
			pixels.SetNRGBA(x, y, color.NRGBA{})
		}
	}

	needsTransparent := false
	b := pixels.Bounds()
	for y := 0; y < b.Dy() && !needsTransparent; y++ {
		for x := 0; x < b.Dx(); x++ {
			if pixels.NRGBAAt(b.Min.X+x, b.Min.Y+y).A == 0 {
				needsTransparent = true
				break
			}
		}
	}

	fixedColors := make([]color.RGBA, 0, len(settings.FixedColors)+1)
	transparentSeed := false
	if needsTransparent {
		fixedColors = append(fixedColors, color.RGBA{})
		transparentSeed = true
	}
	fixedColors = append(fixedColors, settings.FixedColors...)

	maxColors := 256
	if settings.Quality < 50 {
		maxColors = 128
	}

	samples := make([]colorquant.Sample, 0, b.Dx()*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := pixels.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			if c.A == 0 {
				continue
			}
			samples = append(samples, colorquant.Sample{R: c.R, G: c.G, B: c.B, Importance: msg.importance[y*b.Dx()+x]})
		}
	}

	var quantizer colorquant.Quantizer
	if settings.Fast {
		quantizer = colorquant.Median{}
	} else {
		sampleFactor := 10
		if settings.ExtraEffort {
			sampleFactor = 1
		}
		quantizer = &colorquant.NeuQuant{SampleFactor: sampleFactor}
	}

	pal, err := quantizer.Quantize(samples, fixedColors, maxColors)
	if err != nil {
		return quantizedFrame{}, newError(KindQuant, err)
	}

	colors := pal.Colors()
	palette := make([]colorRGBA, len(colors))
	for i, c := range colors {
		palette[i] = colorRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
	}
	if transparentSeed {
		palette[0].A = 0
	}

	gifsicleFactor := 1.0
	if settings.Lossy {
		gifsicleFactor = 0.6
	}
	ditherStrength := clampFloat(float64(settings.Quality)/50.0*gifsicleFactor-1, 0.2, 1.0)

	return quantizedFrame{
		diffMessage:     msg,
		palette:         palette,
		ditherStrength:  ditherStrength,
		transparentSeed: transparentSeed,
	}, nil
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
