package gifpipe

import (
	"context"
	"image/color"
	"math/bits"
	"runtime"

	"github.com/nullpixel/gifpipe/internal/gifcodec"
	"github.com/nullpixel/gifpipe/internal/ordqueue"
	"golang.org/x/sync/errgroup"
)

// lzwMinCodeSize returns the smallest code size the LZW encoder can start
// from for a palette of the given size (minimum 2, per the GIF spec).
func lzwMinCodeSize(paletteSize int) int {
	if paletteSize < 2 {
		paletteSize = 2
	}
	n := paletteSize - 1
	bitsNeeded := bits.Len(uint(n))
	if bitsNeeded < 2 {
		bitsNeeded = 2
	}
	return bitsNeeded
}

// runLZWStage compresses each final frame's indices into an LZW byte
// stream across a worker pool (one worker normally, three under fast mode
// or lossy LZW, per section 4.7), re-serializing through an ordered queue
// since workers finish out of order.
func runLZWStage(ctx context.Context, settings Settings, in <-chan finalFrame, out chan<- compressedFrame) error {
	workers := 1
	if settings.Fast || settings.Lossy {
		workers = 3
	}
	if max := runtime.GOMAXPROCS(0); workers > max {
		workers = max
	}
	if workers < 1 {
		workers = 1
	}

	q, recv := ordqueue.New[compressedFrame](workers * 2)
	g, gctx := errgroup.WithContext(ctx)

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return ErrAborted
				case ff, ok := <-in:
					if !ok {
						return nil
					}
					cf, err := lzwCompressOne(settings, ff)
					if err != nil {
						return err
					}
					q.Push(ff.ordinal, cf)
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

func lzwCompressOne(settings Settings, ff finalFrame) (compressedFrame, error) {
	minCodeSize := lzwMinCodeSize(len(ff.palette))
	w := gifcodec.NewByteWriter()

	if settings.Lossy {
		palette := make([]color.RGBA, len(ff.palette))
		for i, c := range ff.palette {
			palette[i] = color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
		}
		enc := &gifcodec.LossyEncoder{Palette: palette, Quality: settings.lossyQuality()}
		enc.Encode(ff.indices, minCodeSize, w)
	} else {
		gifcodec.Encode(ff.indices, minCodeSize, w)
	}

	return compressedFrame{
		finalFrame:     ff,
		lzwMinCodeSize: minCodeSize,
		data:           w.Bytes(),
	}, nil
}
