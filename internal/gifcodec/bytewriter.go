// Package gifcodec assembles GIF89a containers: the LZW bitstream (both
// the classic lossless variant and a lossy variant that folds
// perceptually-redundant runs into fewer dictionary entries) and the
// header/descriptor/extension framing around it. Adapted from the
// teacher's ByteArray/LZWEncoder/GIFEncoder, split into pieces the
// pipeline's writer stage can call per-frame instead of one monolithic
// whole-file encoder.
package gifcodec

import "bytes"

const defaultPageSize = 4096

// ByteWriter is a growing, paged byte buffer. Pages let the LZW encoder
// write byte-at-a-time without reallocating a single backing array on
// every sub-block.
type ByteWriter struct {
	pages    [][]byte
	page     int
	cursor   int
	pageSize int
}

// NewByteWriter creates an empty ByteWriter with the default page size.
func NewByteWriter() *ByteWriter {
	w := &ByteWriter{page: -1, pageSize: defaultPageSize}
	w.newPage()
	return w
}

func (w *ByteWriter) newPage() {
	w.page++
	w.pages = append(w.pages, make([]byte, w.pageSize))
	w.cursor = 0
}

// WriteByte writes a single byte.
func (w *ByteWriter) WriteByte(b byte) {
	if w.cursor >= w.pageSize {
		w.newPage()
	}
	w.pages[w.page][w.cursor] = b
	w.cursor++
}

// Write implements io.Writer.
func (w *ByteWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		w.WriteByte(b)
	}
	return len(p), nil
}

// Bytes returns all written data as a single contiguous slice.
func (w *ByteWriter) Bytes() []byte {
	var buf bytes.Buffer
	for i, page := range w.pages {
		if i < len(w.pages)-1 {
			buf.Write(page)
		} else {
			buf.Write(page[:w.cursor])
		}
	}
	return buf.Bytes()
}

// Checkpoint is a rewindable position in a ByteWriter's output. The lossy
// LZW encoder takes Snapshots to measure how many bytes were written
// between two samples of its EWMA heuristic; it does not call Rewind.
type Checkpoint struct {
	page   int
	cursor int
}

// Snapshot captures the current write position.
func (w *ByteWriter) Snapshot() Checkpoint {
	return Checkpoint{page: w.page, cursor: w.cursor}
}

// Rewind discards everything written since c was captured.
func (w *ByteWriter) Rewind(c Checkpoint) {
	w.pages = w.pages[:c.page+1]
	w.page = c.page
	w.cursor = c.cursor
}
