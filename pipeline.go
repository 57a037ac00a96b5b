package gifpipe

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"
)

// stageChannelDepth bounds every inter-stage channel (section 5: small,
// fixed-depth channels so a slow stage applies backpressure to its
// upstream neighbor instead of letting memory grow unbounded).
const stageChannelDepth = 2

// Pipeline wires the Collector's frame stream through resize, denoise,
// diff, quantize, remap, and LZW stages into the writer, the way the
// teacher's EncodeGIF function ran its steps in sequence, generalized
// into a concurrent, cancelable, multi-stage run (section 5).
type Pipeline struct {
	settings Settings
	sink     io.Writer
	progress Progress

	ctx    context.Context
	cancel context.CancelFunc
	g      *errgroup.Group

	frames chan Frame
	done   chan struct{}
	err    error
}

// NewPipeline constructs a pipeline that writes a GIF89a stream to sink as
// frames are pushed into it (NewCollector wraps one and feeds it). Call
// Wait after the last frame has been added to block until the file is
// fully written and retrieve the combined error.
func NewPipeline(ctx context.Context, settings Settings, sink io.Writer, progress Progress) (*Pipeline, error) {
	settings, err := settings.normalize()
	if err != nil {
		return nil, err
	}
	if progress == nil {
		progress = NopProgress{}
	}

	pctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(pctx)

	p := &Pipeline{
		settings: settings,
		sink:     sink,
		progress: progress,
		ctx:      gctx,
		cancel:   cancel,
		g:        g,
		frames:   make(chan Frame, stageChannelDepth),
		done:     make(chan struct{}),
	}

	resized := make(chan resizedFrame, stageChannelDepth)
	denoised := make(chan denoisedFrame, stageChannelDepth)
	diffed := make(chan diffMessage, stageChannelDepth)
	quantized := make(chan quantizedFrame, stageChannelDepth)
	finals := make(chan finalFrame, stageChannelDepth)
	compressed := make(chan compressedFrame, stageChannelDepth)

	g.Go(func() error { return runResizeStage(gctx, settings, p.frames, resized) })
	g.Go(func() error { return runDenoiserStage(gctx, settings, resized, denoised) })
	g.Go(func() error { return runDiffStage(gctx, settings, denoised, diffed) })
	g.Go(func() error { return runQuantizeStage(gctx, settings, diffed, quantized) })
	g.Go(func() error { return runRemapStage(gctx, settings, quantized, finals) })
	g.Go(func() error { return runLZWStage(gctx, settings, finals, compressed) })
	g.Go(func() error { return runWriterStage(gctx, settings, sink, progress, compressed) })

	go func() {
		p.err = combineErrors(g.Wait())
		cancel()
		close(p.done)
	}()

	return p, nil
}

// push sends f into the pipeline, returning ErrAborted if the pipeline has
// already failed or been canceled.
func (p *Pipeline) push(f Frame) error {
	select {
	case p.frames <- f:
		return nil
	case <-p.ctx.Done():
		return ErrAborted
	}
}

// closeInput signals that no more frames will be pushed.
func (p *Pipeline) closeInput() {
	close(p.frames)
}

// Wait blocks until every stage has finished (successfully, on error, or
// on cancellation) and returns the combined result.
func (p *Pipeline) Wait() error {
	<-p.done
	return p.err
}

// Abort cancels the pipeline; Wait will then return ErrAborted (or
// whatever real error triggered cancellation first).
func (p *Pipeline) Abort() {
	p.cancel()
}
