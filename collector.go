package gifpipe

import (
	"bytes"
	"context"
	"image"
	"image/draw"
	"image/gif"
	"image/png"
	"io"
	"os"

	"github.com/nullpixel/gifpipe/internal/ordqueue"
)

// Collector is the pipeline's input-facing API: callers push frames by
// index (order doesn't matter, AddFrame* calls may run from multiple
// goroutines) and the collector re-serializes them before feeding the
// resize stage, the way the teacher's AddFrame accepted frames one at a
// time from its caller's render loop.
type Collector struct {
	pipeline *Pipeline
	q        *ordqueue.Queue[Frame]
	done     chan struct{}
}

// NewCollector starts a pipeline writing to sink and returns a Collector
// ready to receive frames. Call Finish once every frame has been added.
func NewCollector(ctx context.Context, settings Settings, sink io.Writer, progress Progress) (*Collector, error) {
	p, err := NewPipeline(ctx, settings, sink, progress)
	if err != nil {
		return nil, err
	}

	q, recv := ordqueue.New[Frame](stageChannelDepth * 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			f, ok := recv.Next()
			if !ok {
				p.closeInput()
				return
			}
			if err := p.push(f); err != nil {
				p.closeInput()
				return
			}
		}
	}()

	return &Collector{pipeline: p, q: q, done: done}, nil
}

// AddFrameRGBA adds a frame already decoded into an *image.NRGBA.
func (c *Collector) AddFrameRGBA(index int, img *image.NRGBA, pts float64) error {
	select {
	case <-c.pipeline.ctx.Done():
		return ErrAborted
	default:
	}
	c.q.Push(index, Frame{Index: index, PTS: pts, Image: img})
	return nil
}

// AddFramePNGBytes decodes a PNG from data and adds it as a frame.
func (c *Collector) AddFramePNGBytes(index int, data []byte, pts float64) error {
	img, err := decodePNGBytes(data)
	if err != nil {
		return newError(KindPNG, err)
	}
	return c.AddFrameRGBA(index, img, pts)
}

// AddFramePNGFile decodes the PNG at path and adds it as a frame.
func (c *Collector) AddFramePNGFile(index int, path string, pts float64) error {
	f, err := os.Open(path)
	if err != nil {
		return newPNGError(path, err)
	}
	defer f.Close()

	decoded, err := png.Decode(f)
	if err != nil {
		return newPNGError(path, err)
	}
	return c.AddFrameRGBA(index, toNRGBA(decoded), pts)
}

// AddFrameGIFFile decodes every frame of the GIF at path and adds them in
// sequence, starting at startIndex and spacing PTS by each frame's own
// delay (section 4.1's supplemented "re-encode an existing GIF" input
// path: the original gifski CLI accepts a directory of PNGs or frames
// extracted from a source video; accepting a GIF directly is a natural
// extension the distilled spec didn't call out but the command-line tool
// benefits from).
func (c *Collector) AddFrameGIFFile(path string, startIndex int, startPTS float64) error {
	f, err := os.Open(path)
	if err != nil {
		return newPNGError(path, err)
	}
	defer f.Close()

	g, err := gif.DecodeAll(f)
	if err != nil {
		return newPNGError(path, err)
	}

	pts := startPTS
	canvas := image.NewRGBA(g.Image[0].Bounds())
	for i, frame := range g.Image {
		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		snapshot := image.NewNRGBA(canvas.Bounds())
		draw.Draw(snapshot, snapshot.Bounds(), canvas, canvas.Bounds().Min, draw.Src)
		if err := c.AddFrameRGBA(startIndex+i, snapshot, pts); err != nil {
			return err
		}
		delay := g.Delay[i]
		if delay <= 0 {
			delay = 10
		}
		pts += float64(delay) / 100.0
		if g.Disposal != nil && g.Disposal[i] == gif.DisposalBackground {
			canvas = image.NewRGBA(g.Image[0].Bounds())
		}
	}
	return nil
}

// Finish signals that no more frames will be added and blocks until the
// output has been fully written, returning the pipeline's combined error.
func (c *Collector) Finish() error {
	c.q.Close()
	<-c.done
	return c.pipeline.Wait()
}

// Abort cancels the pipeline immediately; Finish (if still pending) will
// then return ErrAborted or whatever real failure triggered cancellation.
func (c *Collector) Abort() {
	c.pipeline.Abort()
}

func decodePNGBytes(data []byte) (*image.NRGBA, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return toNRGBA(img), nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	return out
}
