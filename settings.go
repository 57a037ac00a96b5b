package gifpipe

import (
	"image/color"

	"github.com/rs/zerolog"
)

// Repeat controls the GIF's Netscape looping extension.
type Repeat struct {
	kind  repeatKind
	count int
}

type repeatKind int

const (
	repeatInfinite repeatKind = iota
	repeatFinite
	repeatDisabled
)

// RepeatInfinite loops the animation forever.
func RepeatInfinite() Repeat { return Repeat{kind: repeatInfinite} }

// RepeatFinite loops the animation n times (n must be >= 1).
func RepeatFinite(n int) Repeat { return Repeat{kind: repeatFinite, count: n} }

// RepeatDisabled plays the animation once, with no looping extension.
func RepeatDisabled() Repeat { return Repeat{kind: repeatDisabled} }

// netscapeCount returns the value to encode in the Netscape2.0 loop
// sub-block, and whether the extension should be emitted at all.
func (r Repeat) netscapeCount() (count int, emit bool) {
	switch r.kind {
	case repeatInfinite:
		return 0, true
	case repeatFinite:
		return r.count, true
	default:
		return 0, false
	}
}

// Settings is the pipeline's configuration, copied into each stage at
// construction time (spec section 5: "Configuration is copied into each
// stage").
type Settings struct {
	// Width, Height bound the output dimensions. If both are zero the
	// image is shrunk to approximately 800x600 (section 4.2).
	Width, Height int

	// Quality is the master quality knob, 1-100.
	Quality int

	// Fast trades quality for speed in the quantizer and LZW stage.
	Fast bool

	// ExtraEffort trades speed for quality: NeuQuant trains on every
	// sample (sample factor 1 instead of 10). The palette is built once;
	// it is not re-quantized to a different size.
	ExtraEffort bool

	// MotionQuality overrides Quality for the denoiser's threshold, when
	// non-zero.
	MotionQuality int

	// LossyQuality overrides Quality for the lossy LZW loss parameter,
	// when non-zero. Has no effect unless Lossy is true.
	LossyQuality int

	// Lossy enables lossy LZW compression (section 4.7, 9).
	Lossy bool

	// Repeat controls GIF looping.
	Repeat Repeat

	// Matte, if non-nil, is blended under semi-transparent pixels instead
	// of dithering them to binary transparency (section 4.2; matte wins
	// over alpha dither per the open question in section 9).
	Matte *color.RGBA

	// FixedColors are always retained in every frame's palette (<=255
	// entries; the quantizer is asked to keep these plus one transparent
	// marker).
	FixedColors []color.RGBA

	// Logger receives structured diagnostic events from every stage. The
	// zero value is zerolog.Nop(), so library consumers opt in.
	Logger zerolog.Logger
}

// DefaultSettings returns a Settings with the teacher-compatible defaults:
// moderate quality, infinite repeat, no matte, no fixed colors, a
// discarding logger.
func DefaultSettings() Settings {
	return Settings{
		Quality: 90,
		Repeat:  RepeatInfinite(),
		Logger:  zerolog.Nop(),
	}
}

// motionQuality resolves the quality value the denoiser's threshold
// formula should use.
func (s Settings) motionQuality() int {
	if s.MotionQuality > 0 {
		return s.MotionQuality
	}
	return s.Quality
}

// lossyQuality resolves the quality value the lossy-LZW loss formula
// should use.
func (s Settings) lossyQuality() int {
	if s.LossyQuality > 0 {
		return s.LossyQuality
	}
	return s.Quality
}

// normalize clamps Quality/MotionQuality/LossyQuality into [1,100] and
// validates FixedColors length, returning a WrongSize error when invalid.
// Section 9's open question ("quality < 20: warning vs error") is resolved
// here as documented in DESIGN.md: any quality in [1,100] is accepted
// without error or warning, and values outside it are clamped.
func (s Settings) normalize() (Settings, error) {
	if len(s.FixedColors) > 255 {
		return s, newErrorf(KindWrongSize, "fixed_colors: at most 255 entries, got %d", len(s.FixedColors))
	}
	clampQuality := func(q int) int {
		if q <= 0 {
			return 1
		}
		if q > 100 {
			return 100
		}
		return q
	}
	s.Quality = clampQuality(s.Quality)
	if s.MotionQuality != 0 {
		s.MotionQuality = clampQuality(s.MotionQuality)
	}
	if s.LossyQuality != 0 {
		s.LossyQuality = clampQuality(s.LossyQuality)
	}
	return s, nil
}
