// Package colorquant builds per-frame color palettes. Two backends share
// the same interface: a NeuQuant Kohonen-network quantizer (adapted from
// the teacher's hand-rolled implementation, generalized to honor an
// importance map and a fixed-color seed list) and a median-cut fast path
// for Settings.Fast mode.
package colorquant

import "image/color"

// Sample is one training pixel: an opaque RGB triple plus the importance
// weight the denoiser/diff stage assigned it. Zero-importance samples are
// still passed in and get the lowest weight a backend gives (NeuQuant
// trains on them once; Median ignores importance altogether).
type Sample struct {
	R, G, B    uint8
	Importance uint8
}

// Palette is a built color table together with a nearest-match lookup.
// Backends may implement Index with a faster structure than a linear
// scan (NeuQuant keeps its own sorted index table).
type Palette interface {
	// Colors returns the palette in the order assigned, fixed colors
	// first. A transparent marker, if any, is one of the fixed colors the
	// caller supplied.
	Colors() []color.RGBA
	// Index returns the palette entry closest to the opaque color
	// (r, g, b). Callers handle transparency themselves; Index is never
	// asked to match a transparent pixel.
	Index(r, g, b uint8) int
}

// Quantizer builds a Palette of at most maxColors entries from samples.
// fixedColors are guaranteed to appear in the result verbatim, in the
// order given, occupying the first len(fixedColors) slots.
type Quantizer interface {
	Quantize(samples []Sample, fixedColors []color.RGBA, maxColors int) (Palette, error)
}
