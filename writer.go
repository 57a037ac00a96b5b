package gifpipe

import (
	"context"
	"fmt"
	"image/color"
	"io"

	"github.com/nullpixel/gifpipe/internal/gifcodec"
)

// writerState tracks where the writer sits in the GIF89a byte stream, the
// way the teacher's GIFEncoder.go tracked "started" with a single bool,
// generalized to the extra states a streaming, multi-frame writer needs
// (section 6).
type writerState int

const (
	writerIdle writerState = iota
	writerHeaderWritten
	writerFrameWritten
	writerFinished
	writerAborted
)

const writerEncoderComment = "gifpipe"

// minDelayCentis/maxDelayCentis bound a frame's graphic-control delay field
// (section 4.7: most decoders render delays under 2 centiseconds as "as
// fast as possible", which thrashes CPUs, so the writer floors it).
const (
	minDelayCentis = 2
	maxDelayCentis = 30000
)

// runWriterStage drains ordered compressed frames and assembles the GIF89a
// byte stream on sink, reporting progress and honoring cancellation
// (section 6, 7). It removes nothing from sink itself on failure -- the
// caller owns sink's lifetime and is responsible for discarding a partial
// file, per section 7's "no partial output" guarantee.
func runWriterStage(ctx context.Context, settings Settings, sink io.Writer, progress Progress, in <-chan compressedFrame) error {
	if progress == nil {
		progress = NopProgress{}
	}

	w := gifcodec.NewByteWriter()
	state := writerIdle
	framesWritten := 0
	cumulativeCentis := 0

	finish := func(err error) error {
		if err != nil {
			state = writerAborted
			progress.OnFinished(err.Error())
			return err
		}
		state = writerFinished
		progress.OnFinished(fmt.Sprintf("wrote %d frame(s)", framesWritten))
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return finish(ErrAborted)
		case cf, ok := <-in:
			if !ok {
				if framesWritten == 0 {
					return finish(newErrorf(KindNoFrames, "no frames written"))
				}
				gifcodec.WriteTrailer(w)
				if _, err := sink.Write(w.Bytes()); err != nil {
					return finish(newError(KindIO, err))
				}
				progress.OnBytesWritten(uint64(len(w.Bytes())))
				return finish(nil)
			}

			if state == writerIdle {
				gifcodec.WriteSignature(w)
				gifcodec.WriteLogicalScreenDescriptor(w, cf.screenW, cf.screenH, 0, false)
				if count, emit := settings.Repeat.netscapeCount(); emit {
					gifcodec.WriteNetscapeLoop(w, count)
				}
				gifcodec.WriteComment(w, writerEncoderComment)
				state = writerHeaderWritten
			}

			if err := writeFrame(w, cf, &cumulativeCentis); err != nil {
				return finish(err)
			}
			framesWritten++
			state = writerFrameWritten

			progress.OnBytesWritten(uint64(len(w.Bytes())))
			if !progress.OnFrameWritten() {
				gifcodec.WriteTrailer(w)
				sink.Write(w.Bytes())
				return finish(ErrAborted)
			}
		}
	}
}

// writeFrame appends one frame's graphic control extension, image
// descriptor, local palette, and LZW sub-blocks to w, advancing
// cumulativeCentis by this frame's delay.
func writeFrame(w *gifcodec.ByteWriter, cf compressedFrame, cumulativeCentis *int) error {
	endCentis := int(cf.endPTS*100 + 0.5)
	delay := endCentis - *cumulativeCentis
	if delay < minDelayCentis {
		delay = minDelayCentis
	}
	if delay > maxDelayCentis {
		delay = maxDelayCentis
	}
	*cumulativeCentis += delay

	disposal := gifcodec.DisposalKeep
	if cf.dispose == DisposeBackground {
		disposal = gifcodec.DisposalBackground
	}

	transparentIndex := cf.transparent
	gifcodec.WriteGraphicControl(w, delay, disposal, transparentIndex)

	paletteBits := gifcodec.PaletteBits(len(cf.palette))
	gifcodec.WriteImageDescriptor(w, cf.left, cf.top, cf.width, cf.height, paletteBits)

	colors := make([]color.RGBA, len(cf.palette))
	for i, c := range cf.palette {
		colors[i] = color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
	}
	gifcodec.WritePalette(w, colors, paletteBits)

	w.Write(cf.data)
	return nil
}
