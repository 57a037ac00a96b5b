package gifpipe

import "image"

// Frame is a single input animation frame: a dense, zero-based index, a
// presentation timestamp in seconds, and the RGBA pixels to encode.
type Frame struct {
	Index int
	PTS   float64
	Image *image.NRGBA
}

// Disposal is the GIF disposal method applied to a frame's sub-rectangle
// before the next frame is composited onto the virtual screen.
type Disposal uint8

const (
	// DisposeKeep leaves the frame's pixels on the canvas (disposal method 1).
	DisposeKeep Disposal = iota
	// DisposeBackground clears the frame's sub-rectangle to transparent
	// before the next frame is drawn (disposal method 2).
	DisposeBackground
)

func (d Disposal) String() string {
	if d == DisposeBackground {
		return "background"
	}
	return "keep"
}

// resizedFrame is a frame after resizing and alpha dithering: every pixel's
// alpha is either 0 or 255. blurred is a perceptually-smoothed companion
// image used only by the denoiser.
type resizedFrame struct {
	index   int
	pts     float64
	image   *image.NRGBA
	blurred *image.NRGBA
}

// denoisedFrame is the denoiser's output: a stabilized image plus a
// per-pixel importance map (0 = background/ignorable, 255 = critical).
type denoisedFrame struct {
	ordinal    int
	pts        float64
	duration   float64
	image      *image.NRGBA
	importance []uint8 // len == width*height, row-major
	width      int
	height     int
}

// diffMessage is the diff stage's output: a denoised frame plus the
// disposal chosen for it and the PTS at which it stops being shown.
type diffMessage struct {
	frameIndex int
	ordinal    int
	image      *image.NRGBA
	importance []uint8
	width      int
	height     int
	dispose    Disposal
	endPTS     float64
	firstFrame bool
	// prevDispose is the disposal chosen for the immediately preceding
	// emitted frame (DisposeKeep if this is the first frame), needed by
	// the quantizer's "previous frame kept" rule (section 4.5 step 1).
	prevDispose Disposal
}

// quantizedFrame is the quantizer's output: a palette built for this frame
// plus the pixel buffer, importance map and dither strength carried on to
// the remapper, which indexes the frame's own pixels against the palette.
type quantizedFrame struct {
	diffMessage
	palette         []colorRGBA // <= 256 entries, at most one with A==0
	ditherStrength  float64
	transparentSeed bool
}

// colorRGBA is a small value type used for palette entries throughout the
// pipeline, independent of image/color so the pipeline's internal plumbing
// doesn't need to box colors behind the color.Color interface.
type colorRGBA struct {
	R, G, B, A uint8
}

// finalFrame is what the LZW stage consumes and the writer emits: a
// palette-indexed sub-image positioned on the logical screen.
type finalFrame struct {
	frameIndex  int
	ordinal     int
	endPTS      float64
	left, top   int
	width       int
	height      int
	palette     []colorRGBA
	indices     []byte
	transparent int // -1 if none
	dispose     Disposal
	screenW     int
	screenH     int
	firstFrame  bool
	lastFrame   bool
}

// compressedFrame is the LZW stage's output, carrying the same placement
// metadata as finalFrame plus the compressed sub-block stream ready to be
// written verbatim after the image descriptor.
type compressedFrame struct {
	finalFrame
	lzwMinCodeSize int
	data           []byte
}
