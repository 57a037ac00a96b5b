package gifcodec

import "image/color"

/*
GIF89a container framing: signature, logical screen descriptor, color
tables, the Netscape2.0 looping extension, graphic control extension,
and image descriptor. Adapted from the teacher's GIFEncoder.go, split
into standalone writer functions so the pipeline's writer stage can
call them once per frame against a shared output sink instead of
through one encoder object that owns the whole file.
*/

// WriteSignature writes the six-byte GIF89a header.
func WriteSignature(w *ByteWriter) {
	w.Write([]byte("GIF89a"))
}

// WriteLogicalScreenDescriptor writes the logical screen descriptor.
// paletteBits is the color table size field (0-7, table holds
// 2^(paletteBits+1) entries).
func WriteLogicalScreenDescriptor(w *ByteWriter, width, height, paletteBits int, hasGlobalTable bool) {
	writeShort(w, width)
	writeShort(w, height)

	packed := 0x70 | paletteBits // color resolution = 7, gct sort = 0
	if hasGlobalTable {
		packed |= 0x80
	}
	w.WriteByte(byte(packed))
	w.WriteByte(0) // background color index
	w.WriteByte(0) // pixel aspect ratio, assume 1:1
}

// WriteNetscapeLoop writes the Netscape2.0 application extension that
// requests count loops (0 = forever).
func WriteNetscapeLoop(w *ByteWriter, count int) {
	w.WriteByte(0x21)
	w.WriteByte(0xff)
	w.Write([]byte("\x0bNETSCAPE2.0"))
	w.WriteByte(3)
	w.WriteByte(1)
	writeShort(w, count)
	w.WriteByte(0)
}

// WritePalette writes palette as RGB triples, zero-padded up to
// 2^(paletteBits+1) entries.
func WritePalette(w *ByteWriter, palette []color.RGBA, paletteBits int) {
	size := 1 << (paletteBits + 1)
	for i := 0; i < size; i++ {
		if i < len(palette) {
			c := palette[i]
			w.WriteByte(c.R)
			w.WriteByte(c.G)
			w.WriteByte(c.B)
		} else {
			w.WriteByte(0)
			w.WriteByte(0)
			w.WriteByte(0)
		}
	}
}

// Disposal mirrors the GIF disposal method field of the graphic control
// extension.
type Disposal int

const (
	DisposalNone       Disposal = 0
	DisposalKeep       Disposal = 1
	DisposalBackground Disposal = 2
)

// WriteGraphicControl writes the graphic control extension preceding an
// image descriptor. transparentIndex < 0 means no transparency.
func WriteGraphicControl(w *ByteWriter, delayCentis int, disposal Disposal, transparentIndex int) {
	w.WriteByte(0x21)
	w.WriteByte(0xf9)
	w.WriteByte(4)

	transp := 0
	if transparentIndex >= 0 {
		transp = 1
	}
	packed := (int(disposal) & 7) << 2
	packed |= transp
	w.WriteByte(byte(packed))

	writeShort(w, delayCentis)
	if transparentIndex >= 0 {
		w.WriteByte(byte(transparentIndex))
	} else {
		w.WriteByte(0)
	}
	w.WriteByte(0)
}

// WriteImageDescriptor writes the image descriptor for a frame occupying
// (left,top)-(left+width,top+height) of the logical screen. Pass
// paletteBits < 0 when the frame uses the global color table.
func WriteImageDescriptor(w *ByteWriter, left, top, width, height, paletteBits int) {
	w.WriteByte(0x2c)
	writeShort(w, left)
	writeShort(w, top)
	writeShort(w, width)
	writeShort(w, height)

	if paletteBits < 0 {
		w.WriteByte(0)
		return
	}
	w.WriteByte(byte(0x80 | paletteBits))
}

// WriteComment writes a plain-text comment extension, truncated to 255
// bytes (the sub-block size field is a single byte).
func WriteComment(w *ByteWriter, text string) {
	if len(text) > 255 {
		text = text[:255]
	}
	w.WriteByte(0x21)
	w.WriteByte(0xfe)
	w.WriteByte(byte(len(text)))
	w.Write([]byte(text))
	w.WriteByte(0)
}

// WriteTrailer writes the GIF trailer byte that ends the stream.
func WriteTrailer(w *ByteWriter) {
	w.WriteByte(0x3b)
}

func writeShort(w *ByteWriter, v int) {
	w.WriteByte(byte(v & 0xff))
	w.WriteByte(byte((v >> 8) & 0xff))
}

// PaletteBits returns the color table size field for a palette with n
// entries: the smallest b in [0,7] with 2^(b+1) >= n.
func PaletteBits(n int) int {
	if n <= 2 {
		return 0
	}
	b := 0
	size := 2
	for size < n {
		size <<= 1
		b++
	}
	return b
}
