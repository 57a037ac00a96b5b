package gifpipe

// Progress is the sink the writer stage reports to (spec section 6). A nil
// Progress is treated as "never abort, ignore byte/finish events".
type Progress interface {
	// OnFrameWritten is called after each frame is written to the output
	// sink. Returning false requests cancellation: the writer finishes the
	// current frame, then returns ErrAborted.
	OnFrameWritten() (cont bool)

	// OnBytesWritten reports the cumulative number of bytes written so far.
	OnBytesWritten(total uint64)

	// OnFinished is called exactly once, with a human-readable summary,
	// after the writer stops (successfully or not).
	OnFinished(message string)
}

// NopProgress implements Progress with no-ops that never request
// cancellation.
type NopProgress struct{}

func (NopProgress) OnFrameWritten() bool        { return true }
func (NopProgress) OnBytesWritten(total uint64) {}
func (NopProgress) OnFinished(message string)   {}
