package gifpipe

import (
	"github.com/pkg/errors"
)

// ErrorKind classifies a pipeline failure the way spec section 7 enumerates
// them. Kinds are compared with Is/errors.As rather than string matching.
type ErrorKind int

const (
	// KindThreadSend covers internal channel/plumbing failures.
	KindThreadSend ErrorKind = iota
	// KindAborted covers user cancellation or a downstream stage's failure
	// propagating upstream.
	KindAborted
	// KindNoFrames is returned when the input ends before any frame has
	// been written.
	KindNoFrames
	// KindIO covers filesystem/output-sink failures.
	KindIO
	// KindPNG covers PNG decode failures; Path names the offending input.
	KindPNG
	// KindWrongSize covers configuration or frame-dimension mismatches.
	KindWrongSize
	// KindQuant covers color quantizer failures.
	KindQuant
	// KindPalette covers virtual-screen blit failures.
	KindPalette
	// KindGIF covers container-encoding failures.
	KindGIF
	// KindLossyLZW covers lossy-LZW encoder failures.
	KindLossyLZW
)

func (k ErrorKind) String() string {
	switch k {
	case KindThreadSend:
		return "thread_send"
	case KindAborted:
		return "aborted"
	case KindNoFrames:
		return "no_frames"
	case KindIO:
		return "io"
	case KindPNG:
		return "png"
	case KindWrongSize:
		return "wrong_size"
	case KindQuant:
		return "quant"
	case KindPalette:
		return "palette"
	case KindGIF:
		return "gif"
	case KindLossyLZW:
		return "gifsicle"
	default:
		return "unknown"
	}
}

// PipelineError is the error type every stage returns. Path is set only for
// KindPNG failures that originate from a named file.
type PipelineError struct {
	Kind  ErrorKind
	Path  string
	cause error
}

func (e *PipelineError) Error() string {
	if e.Path != "" {
		return e.Kind.String() + ": " + e.Path + ": " + e.cause.Error()
	}
	return e.Kind.String() + ": " + e.cause.Error()
}

func (e *PipelineError) Unwrap() error { return e.cause }
func (e *PipelineError) Cause() error  { return e.cause }

// newError wraps cause with errors.WithStack (recording a stack trace) and
// tags it with kind.
func newError(kind ErrorKind, cause error) error {
	return &PipelineError{Kind: kind, cause: errors.WithStack(cause)}
}

func newErrorf(kind ErrorKind, format string, args ...interface{}) error {
	return &PipelineError{Kind: kind, cause: errors.Errorf(format, args...)}
}

func newPNGError(path string, cause error) error {
	return &PipelineError{Kind: KindPNG, Path: path, cause: errors.WithStack(cause)}
}

// ErrAborted is the sentinel returned by stages observing the shared abort
// flag. Its Kind is KindAborted, which is how combineErrors (below)
// recognizes it as noise to discard in favor of a real cause.
var ErrAborted = &PipelineError{Kind: KindAborted, cause: errors.New("aborted")}

// KindOf returns the ErrorKind of err, or KindThreadSend if err does not
// carry one.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindThreadSend
}

// combineErrors keeps the first non-Aborted, non-ThreadSend error seen
// across every stage's join result, discarding Aborted/ThreadSend noise
// that is only a symptom of the real cause propagating through the
// pipeline. Mirrors spec section 7's combine_res.
func combineErrors(errs ...error) error {
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		kind := KindOf(err)
		if kind == KindAborted || kind == KindThreadSend {
			if first == nil {
				first = err
			}
			continue
		}
		return err
	}
	return first
}
