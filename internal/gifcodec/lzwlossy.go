package gifcodec

import "image/color"

// LossyEncoder compresses palette indices the same way Encode does, but
// first folds runs of perceptually-similar pixels down to a single
// repeated color when doing so stays under an error budget, and monitors
// dictionary efficiency so it can clear early instead of waiting for the
// code table to fill. Both tricks shrink the bitstream at the cost of a
// small, bounded amount of visible drift, the same trade gifsicle's
// lossy mode makes.
type LossyEncoder struct {
	Palette []color.RGBA
	// Quality is 1-100; 100 asks for (near) lossless behavior, 1 for the
	// most aggressive folding.
	Quality int
}

// lossyWeightR/G/B are the perceptual weighting classic GIF tooling uses for a
// cheap RGB distance metric: green carries the most luminance, blue the
// least.
const (
	lossyWeightR = 2
	lossyWeightG = 3
	lossyWeightB = 1
)

func (e *LossyEncoder) budget() float64 {
	q := e.Quality
	if q <= 0 {
		q = 1
	}
	if q > 100 {
		q = 100
	}
	// Empirically scaled: quality 100 -> 0 (lossless), quality 1 -> a
	// budget generous enough to fold runs of several dozen near-matching
	// pixels.
	return float64(100-q) * 6.0
}

func (e *LossyEncoder) colorDiff(a, b byte) float64 {
	ca, cb := e.Palette[a], e.Palette[b]
	dr := float64(ca.R) - float64(cb.R)
	dg := float64(ca.G) - float64(cb.G)
	db := float64(ca.B) - float64(cb.B)
	return lossyWeightR*dr*dr + lossyWeightG*dg*dg + lossyWeightB*db*db
}

// foldRuns rewrites pixels in place (on a copy), replacing each maximal
// run whose cumulative perceptual error against its first pixel stays
// under budget with that first pixel's value repeated. This is the
// "trie search for the longest within-threshold run": rather than a
// literal trie, it walks forward greedily, which is equivalent for a
// single-color target and much cheaper.
func (e *LossyEncoder) foldRuns(pixels []byte) []byte {
	budget := e.budget()
	if budget <= 0 {
		return pixels
	}
	out := make([]byte, len(pixels))
	i := 0
	for i < len(pixels) {
		head := pixels[i]
		out[i] = head
		acc := 0.0
		j := i + 1
		for j < len(pixels) {
			acc += e.colorDiff(head, pixels[j])
			if acc > budget {
				break
			}
			out[j] = head
			j++
		}
		i = j
	}
	return out
}

// Encode folds near-duplicate runs, then compresses with the shared LZW
// loop, clearing the dictionary early whenever a trailing-average of
// recent code lengths indicates the table has stopped paying for itself
// (the EWMA heuristic below).
func (e *LossyEncoder) Encode(pixels []byte, minCodeSize int, out *ByteWriter) {
	if minCodeSize < 2 {
		minCodeSize = 2
	}
	folded := e.foldRuns(pixels)

	out.WriteByte(byte(minCodeSize))

	const ewmaAlpha = 0.1
	const staleThreshold = 0.15
	ewma := 1.0
	emitted := 0
	checkpoint := out.Snapshot()

	forceClear := func() bool {
		emitted++
		// compress() polls once per emitted code. Every 64th poll, the
		// bytes written since the previous sample (per poll) are folded
		// into the EWMA and the checkpoint moves forward; a clear is
		// forced whenever the EWMA is above staleThreshold. Output
		// already written is never rewound.
		if emitted%64 != 0 {
			return false
		}
		grown := out.Snapshot()
		bytesOut := (grown.page-checkpoint.page)*defaultPageSize + (grown.cursor - checkpoint.cursor)
		density := float64(bytesOut) / 64.0
		ewma = ewma*(1-ewmaAlpha) + density*ewmaAlpha
		checkpoint = grown
		return ewma > staleThreshold
	}

	compress(folded, minCodeSize+1, out, forceClear)
	out.WriteByte(0)
}
