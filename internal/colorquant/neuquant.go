package colorquant

import (
	"image/color"
	"math"
)

// NeuQuant quantizes colors with a Kohonen self-organizing network,
// adapted from Anthony Dekker's 1994 algorithm. Unlike the teacher's fixed
// 256-neuron network, the network size follows the caller's maxColors
// (rounded up to a power of two and clamped to [4,256]) so it can serve
// any palette size the quantize stage asks for. Training also honors a per-sample importance weight: samples with
// higher importance are replayed more often during the learning cycles,
// biasing the network toward regions of the frame the denoiser judged
// motion-critical.
type NeuQuant struct {
	// SampleFactor controls how much of the training set is skipped per
	// learning cycle; 1 trains on every sample, higher values trade
	// palette fidelity for speed. The quantize stage uses 10, or 1 under
	// Settings.ExtraEffort (Settings.Fast uses Median instead).
	SampleFactor int
}

const (
	nqNCycles         = 100
	nqNetBiasShift    = 4
	nqRadiusBiasShift = 6
	nqRadiusBias      = 1 << nqRadiusBiasShift
	nqRadiusDec       = 30
	nqAlphaBiasShift  = 10
	nqInitAlpha       = 1 << nqAlphaBiasShift
	nqRadBiasShift    = 8
	nqRadBias         = 1 << nqRadBiasShift
	nqAlphaRadBShift  = nqAlphaBiasShift + nqRadBiasShift
	nqAlphaRadBias    = 1 << nqAlphaRadBShift
	nqPrime1          = 499
	nqPrime2          = 491
	nqPrime3          = 487
	nqPrime4          = 503
)

type neuron struct {
	r, g, b float64
}

type neuNet struct {
	netsize  int
	network  []neuron
	netindex [256]int
	bias     []float64
	freq     []float64
	pixels   []byte // r,g,b triples, importance-weighted
	samplefac int
}

// Quantize implements Quantizer. maxColors is clamped up to the next
// power of two if it is not already one (callers should already pass
// powers of two per the palette-size invariant).
func (nq *NeuQuant) Quantize(samples []Sample, fixedColors []color.RGBA, maxColors int) (Palette, error) {
	netsize := nextPow2(maxColors)
	if netsize < 4 {
		netsize = 4
	}
	if netsize > 256 {
		netsize = 256
	}

	n := &neuNet{netsize: netsize}
	n.buildPixels(samples)
	n.samplefac = nq.SampleFactor
	if n.samplefac < 1 {
		n.samplefac = 1
	}
	n.init()
	n.learn()
	n.unbiasnet()
	n.inxbuild()

	return n.toPalette(fixedColors), nil
}

// buildPixels flattens samples into an RGB byte stream, replaying
// higher-importance samples proportionally more often so the learning
// loop (which walks the stream with a fixed prime stride) sees them more
// frequently. Zero-importance samples are kept once so background colors
// still influence the palette.
func (n *neuNet) buildPixels(samples []Sample) {
	n.pixels = make([]byte, 0, len(samples)*3)
	for _, s := range samples {
		reps := 1 + int(s.Importance)/32 // importance 0-255 -> 1-8 replays
		for i := 0; i < reps; i++ {
			n.pixels = append(n.pixels, s.R, s.G, s.B)
		}
	}
	if len(n.pixels) < 3*nqPrime4 {
		// Pad with the last sample so the prime-stride walk in learn()
		// has enough material to avoid degenerate short cycles.
		for len(n.pixels) < 3*nqPrime4 && len(samples) > 0 {
			last := samples[len(samples)-1]
			n.pixels = append(n.pixels, last.R, last.G, last.B)
		}
	}
}

func (n *neuNet) init() {
	n.network = make([]neuron, n.netsize)
	n.bias = make([]float64, n.netsize)
	n.freq = make([]float64, n.netsize)
	for i := range n.network {
		v := float64(i) * 256.0 / float64(n.netsize)
		n.network[i] = neuron{r: v, g: v, b: v}
		n.freq[i] = 1.0 / float64(n.netsize)
		n.bias[i] = 0
	}
}

func (n *neuNet) learn() {
	lengthcount := len(n.pixels)
	if lengthcount == 0 {
		return
	}
	samplepixels := lengthcount / (3 * n.samplefac)
	delta := samplepixels / nqNCycles
	if delta == 0 {
		delta = 1
	}
	alphadec := 30 + (n.samplefac-1)/3
	pos := 0
	alpha := float64(nqInitAlpha)
	radius := float64(n.netsize >> 3 * nqRadiusBias)
	rad := int(radius) >> nqRadiusBiasShift
	if rad <= 1 {
		rad = 0
	}

	step := 3
	if lengthcount%(3*nqPrime2) != 0 {
		step = 3 * nqPrime2
	} else if lengthcount%(3*nqPrime3) != 0 {
		step = 3 * nqPrime3
	} else if lengthcount%(3*nqPrime4) != 0 {
		step = 3 * nqPrime4
	}

	i := 0
	for i < samplepixels {
		rr := float64(n.pixels[pos])
		gg := float64(n.pixels[pos+1])
		bb := float64(n.pixels[pos+2])

		j := n.contest(rr, gg, bb)
		n.altersingle(alpha, j, rr, gg, bb)
		if rad > 0 {
			n.alterneigh(rad, j, rr, gg, bb)
		}

		pos += step
		for pos >= lengthcount {
			pos -= lengthcount
		}

		i++
		if i%delta == 0 {
			alpha -= alpha / float64(alphadec)
			radius -= radius / float64(nqRadiusDec)
			rad = int(radius) >> nqRadiusBiasShift
			if rad <= 1 {
				rad = 0
			}
		}
	}
}

func (n *neuNet) contest(r, g, b float64) int {
	bestd := math.MaxFloat64
	bestbiasd := bestd
	best, bestbias := -1, -1
	for i := 0; i < n.netsize; i++ {
		nx := n.network[i]
		dr, dg, db := nx.r-r, nx.g-g, nx.b-b
		d := dr*dr + dg*dg + db*db
		if d < bestd {
			bestd = d
			best = i
		}
		biasd := d - n.bias[i]
		if biasd < bestbiasd {
			bestbiasd = biasd
			bestbias = i
		}
		n.freq[i] -= n.freq[i] / 1024
		n.bias[i] += n.freq[i] / 1023 // 1/(1-1/1024) approx, matches teacher's scale
	}
	n.freq[best] += 1.0 / 1024
	n.bias[best] -= 1.0
	if bestbias >= 0 {
		return bestbias
	}
	return best
}

func (n *neuNet) altersingle(alpha float64, i int, r, g, b float64) {
	nx := &n.network[i]
	nx.r -= alpha / nqInitAlpha * (nx.r - r)
	nx.g -= alpha / nqInitAlpha * (nx.g - g)
	nx.b -= alpha / nqInitAlpha * (nx.b - b)
}

func (n *neuNet) alterneigh(rad int, i int, r, g, b float64) {
	lo, hi := i-rad, i+rad
	if lo < -1 {
		lo = -1
	}
	if hi > n.netsize {
		hi = n.netsize
	}
	j := i + 1
	k := i - 1
	m := 1
	for j < hi || k > lo {
		factor := float64(rad*rad-m*m) / float64(rad*rad)
		if factor < 0 {
			factor = 0
		}
		if j < hi {
			nx := &n.network[j]
			nx.r -= factor * (nx.r - r) * 0.25
			nx.g -= factor * (nx.g - g) * 0.25
			nx.b -= factor * (nx.b - b) * 0.25
			j++
		}
		if k > lo {
			nx := &n.network[k]
			nx.r -= factor * (nx.r - r) * 0.25
			nx.g -= factor * (nx.g - g) * 0.25
			nx.b -= factor * (nx.b - b) * 0.25
			k--
		}
		m++
	}
}

func (n *neuNet) unbiasnet() {
	// Network values are already direct rgb floats in this adaptation
	// (no netbiasshift fixed-point scaling), so unbiasing is a clamp.
	for i := range n.network {
		n.network[i].r = clamp255(n.network[i].r)
		n.network[i].g = clamp255(n.network[i].g)
		n.network[i].b = clamp255(n.network[i].b)
	}
}

func (n *neuNet) inxbuild() {
	previouscol := 0
	startpos := 0
	for i := 0; i < n.netsize; i++ {
		smallpos := i
		smallval := n.network[i].g
		for j := i + 1; j < n.netsize; j++ {
			if n.network[j].g < smallval {
				smallpos = j
				smallval = n.network[j].g
			}
		}
		if i != smallpos {
			n.network[i], n.network[smallpos] = n.network[smallpos], n.network[i]
		}
		if int(smallval) != previouscol {
			n.netindex[previouscol] = (startpos + i) >> 1
			for pv := previouscol + 1; pv < int(smallval); pv++ {
				n.netindex[pv] = i
			}
			previouscol = int(smallval)
			startpos = i
		}
	}
	maxnetpos := n.netsize - 1
	n.netindex[previouscol] = (startpos + maxnetpos) >> 1
	for pv := previouscol + 1; pv < 256; pv++ {
		n.netindex[pv] = maxnetpos
	}
}

func (n *neuNet) search(r, g, b uint8) int {
	bestd := math.MaxFloat64
	best := 0
	g0 := int(g)
	i := n.netindex[g0]
	j := i - 1
	fr, fg, fb := float64(r), float64(g), float64(b)
	for i < n.netsize || j >= 0 {
		if i < n.netsize {
			nx := n.network[i]
			dg := nx.g - fg
			if dg*dg >= bestd {
				i = n.netsize
			} else {
				dr, db := nx.r-fr, nx.b-fb
				d := dr*dr + dg*dg + db*db
				if d < bestd {
					bestd = d
					best = i
				}
				i++
			}
		}
		if j >= 0 {
			nx := n.network[j]
			dg := nx.g - fg
			if dg*dg >= bestd {
				j = -1
			} else {
				dr, db := nx.r-fr, nx.b-fb
				d := dr*dr + dg*dg + db*db
				if d < bestd {
					bestd = d
					best = j
				}
				j--
			}
		}
	}
	return best
}

func (n *neuNet) toPalette(fixedColors []color.RGBA) Palette {
	colors := make([]color.RGBA, 0, n.netsize)
	for _, fc := range fixedColors {
		colors = append(colors, fc)
	}
	for i := 0; i < n.netsize && len(colors) < n.netsize; i++ {
		nx := n.network[i]
		colors = append(colors, color.RGBA{
			R: uint8(clamp255(nx.r)),
			G: uint8(clamp255(nx.g)),
			B: uint8(clamp255(nx.b)),
			A: 255,
		})
	}
	return &neuPalette{net: n, colors: colors, fixedCount: len(fixedColors)}
}

type neuPalette struct {
	net        *neuNet
	colors     []color.RGBA
	fixedCount int
}

func (p *neuPalette) Colors() []color.RGBA { return p.colors }

func (p *neuPalette) Index(r, g, b uint8) int {
	if p.fixedCount > 0 {
		best, bestd := -1, math.MaxFloat64
		for i := 0; i < p.fixedCount; i++ {
			c := p.colors[i]
			dr := float64(c.R) - float64(r)
			dg := float64(c.G) - float64(g)
			db := float64(c.B) - float64(b)
			d := dr*dr + dg*dg + db*db
			if d < bestd {
				bestd, best = d, i
			}
		}
		netBest := p.net.search(r, g, b) + p.fixedCount
		if netBest >= len(p.colors) {
			return best
		}
		c := p.colors[netBest]
		dr := float64(c.R) - float64(r)
		dg := float64(c.G) - float64(g)
		db := float64(c.B) - float64(b)
		d := dr*dr + dg*dg + db*db
		if d < bestd {
			return netBest
		}
		return best
	}
	return p.net.search(r, g, b)
}

func clamp255(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
