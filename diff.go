package gifpipe

import (
	"context"
	"image"
)

// runDiffStage consumes denoised frames with one-frame lookahead,
// eliding bit-exact duplicates, choosing disposal, and computing each
// frame's end-PTS (section 4.4).
func runDiffStage(ctx context.Context, settings Settings, in <-chan denoisedFrame, out chan<- diffMessage) error {
	defer close(out)

	var pending *denoisedFrame
	prevFrameKeeps := false
	prevDispose := DisposeKeep
	first := true
	// A first-frame PTS above 1/100 s is subtracted from every PTS and
	// becomes the last frame's trailing duration; smaller values are noise.
	ptsShift := 0.0
	shiftKnown := false

	flushCurrent := func(current, next *denoisedFrame) (diffMessage, bool) {
		if next != nil && framesBitExactEqual(current.image, next.image) {
			// Duplicate: its delay accumulates into the next non-duplicate
			// by simply not emitting this frame; the next frame's end_pts
			// calculation naturally absorbs the gap since pts keeps moving.
			return diffMessage{}, false
		}

		dispose := DisposeKeep
		if next != nil && becomesMoreTransparent(current.image, next.image) {
			dispose = DisposeBackground
		}

		trailing := current.duration
		if ptsShift > 0 {
			trailing = ptsShift
		}
		endPTS := current.pts - ptsShift + trailing
		if next != nil {
			endPTS = next.pts - ptsShift
		}

		if prevFrameKeeps && importanceAllZero(current.importance) {
			prevFrameKeeps = dispose == DisposeKeep
			return diffMessage{}, false
		}

		msg := diffMessage{
			frameIndex:  current.ordinal,
			ordinal:     current.ordinal,
			image:       current.image,
			importance:  current.importance,
			width:       current.width,
			height:      current.height,
			dispose:     dispose,
			endPTS:      endPTS,
			firstFrame:  first,
			prevDispose: prevDispose,
		}
		first = false
		prevFrameKeeps = dispose == DisposeKeep
		prevDispose = dispose
		return msg, true
	}

	send := func(msg diffMessage) error {
		select {
		case out <- msg:
			return nil
		case <-ctx.Done():
			return ErrAborted
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ErrAborted
		case df, ok := <-in:
			if !ok {
				if pending != nil {
					if msg, emit := flushCurrent(pending, nil); emit {
						if err := send(msg); err != nil {
							return err
						}
					}
				}
				return nil
			}
			cur := df
			if !shiftKnown {
				if cur.pts > 0.01 {
					ptsShift = cur.pts
				}
				shiftKnown = true
			}
			if pending != nil {
				if msg, emit := flushCurrent(pending, &cur); emit {
					if err := send(msg); err != nil {
						return err
					}
				}
			}
			pendingCopy := cur
			pending = &pendingCopy
		}
	}
}

func framesBitExactEqual(a, b *image.NRGBA) bool {
	if a.Bounds() != b.Bounds() {
		return false
	}
	ba, bb := a.Bounds(), b.Bounds()
	if ba.Dx() != bb.Dx() || ba.Dy() != bb.Dy() {
		return false
	}
	for y := 0; y < ba.Dy(); y++ {
		for x := 0; x < ba.Dx(); x++ {
			if a.NRGBAAt(ba.Min.X+x, ba.Min.Y+y) != b.NRGBAAt(bb.Min.X+x, bb.Min.Y+y) {
				return false
			}
		}
	}
	return true
}

// becomesMoreTransparent reports whether any pixel of next is
// transparent where the same pixel of current was opaque (section 4.4:
// this forces Background disposal so Keep doesn't leak old pixels
// through the new hole).
func becomesMoreTransparent(current, next *image.NRGBA) bool {
	cb, nb := current.Bounds(), next.Bounds()
	w, h := cb.Dx(), cb.Dy()
	if nb.Dx() != w || nb.Dy() != h {
		return false
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cc := current.NRGBAAt(cb.Min.X+x, cb.Min.Y+y)
			nc := next.NRGBAAt(nb.Min.X+x, nb.Min.Y+y)
			if cc.A != 0 && nc.A == 0 {
				return true
			}
		}
	}
	return false
}

func importanceAllZero(importance []uint8) bool {
	for _, v := range importance {
		if v != 0 {
			return false
		}
	}
	return true
}
