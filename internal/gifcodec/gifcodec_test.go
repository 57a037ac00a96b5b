package gifcodec

import (
	"bytes"
	"compress/lzw"
	"image/color"
	gogif "image/gif"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByteWriterAccumulatesAcrossPages(t *testing.T) {
	w := NewByteWriter()
	for i := 0; i < defaultPageSize*2+10; i++ {
		w.WriteByte(byte(i))
	}
	data := w.Bytes()
	require.Len(t, data, defaultPageSize*2+10)
	require.Equal(t, byte(0), data[0])
	require.Equal(t, byte(9), data[defaultPageSize*2+9])
}

func TestByteWriterSnapshotRewind(t *testing.T) {
	w := NewByteWriter()
	w.Write([]byte("hello"))
	cp := w.Snapshot()
	w.Write([]byte(" world"))
	require.Equal(t, "hello world", string(w.Bytes()))
	w.Rewind(cp)
	require.Equal(t, "hello", string(w.Bytes()))
}

func TestEncodeDecodesBackToOriginalIndices(t *testing.T) {
	pixels := make([]byte, 256)
	for i := range pixels {
		pixels[i] = byte(i % 4)
	}
	w := NewByteWriter()
	Encode(pixels, 2, w)
	out := w.Bytes()
	require.Greater(t, len(out), 0)
	require.Equal(t, byte(2), out[0])

	var data []byte
	for i := 1; out[i] != 0; i += int(out[i]) + 1 {
		data = append(data, out[i+1:i+1+int(out[i])]...)
	}
	decoded, err := io.ReadAll(lzw.NewReader(bytes.NewReader(data), lzw.LSB, 2))
	require.NoError(t, err)
	require.Equal(t, pixels, decoded)
}

func TestPaletteBits(t *testing.T) {
	require.Equal(t, 0, PaletteBits(2))
	require.Equal(t, 1, PaletteBits(4))
	require.Equal(t, 2, PaletteBits(8))
	require.Equal(t, 7, PaletteBits(256))
}

// TestWriteSingleFrameGIFDecodesWithStdlib builds one GIF frame through
// the container writers and checks the stdlib image/gif decoder accepts
// it, which is the cheapest way to catch a framing mistake without a
// pixel-for-pixel reference.
func TestWriteSingleFrameGIFDecodesWithStdlib(t *testing.T) {
	palette := []color.RGBA{
		{R: 0, G: 0, B: 0, A: 255},
		{R: 255, G: 0, B: 0, A: 255},
		{R: 0, G: 255, B: 0, A: 255},
		{R: 0, G: 0, B: 255, A: 255},
	}
	const w, h = 4, 4
	indices := make([]byte, w*h)
	for i := range indices {
		indices[i] = byte(i % 4)
	}

	bw := NewByteWriter()
	WriteSignature(bw)
	bits := PaletteBits(len(palette))
	WriteLogicalScreenDescriptor(bw, w, h, bits, true)
	WritePalette(bw, palette, bits)
	WriteGraphicControl(bw, 10, DisposalNone, -1)
	WriteImageDescriptor(bw, 0, 0, w, h, -1)
	Encode(indices, bits+1, bw)
	WriteTrailer(bw)

	decoded, err := gogif.Decode(bytes.NewReader(bw.Bytes()))
	require.NoError(t, err)
	require.Equal(t, w, decoded.Bounds().Dx())
	require.Equal(t, h, decoded.Bounds().Dy())
}
