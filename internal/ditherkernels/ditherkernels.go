// Package ditherkernels implements error-diffusion dithering for
// palette remapping, adapted from the teacher's dither.go. It is used by
// the remap stage when flattening a frame to its final color indices;
// binary alpha dithering (a separate ordered-matrix concern) lives in
// internal/alphadither instead.
package ditherkernels

import "image/color"

// Kernel is a list of (weight, dx, dy) error-diffusion taps.
type Kernel [][3]float64

var (
	// FalseFloydSteinberg spreads error to three neighbors.
	FalseFloydSteinberg = Kernel{
		{3.0 / 8.0, 1, 0},
		{3.0 / 8.0, 0, 1},
		{2.0 / 8.0, 1, 1},
	}

	// FloydSteinberg is the classic, most widely used kernel.
	FloydSteinberg = Kernel{
		{7.0 / 16.0, 1, 0},
		{3.0 / 16.0, -1, 1},
		{5.0 / 16.0, 0, 1},
		{1.0 / 16.0, 1, 1},
	}

	// Stucki spreads error over a wider 5x3 neighborhood.
	Stucki = Kernel{
		{8.0 / 42.0, 1, 0},
		{4.0 / 42.0, 2, 0},
		{2.0 / 42.0, -2, 1},
		{4.0 / 42.0, -1, 1},
		{8.0 / 42.0, 0, 1},
		{4.0 / 42.0, 1, 1},
		{2.0 / 42.0, 2, 1},
		{1.0 / 42.0, -2, 2},
		{2.0 / 42.0, -1, 2},
		{4.0 / 42.0, 0, 2},
		{2.0 / 42.0, 1, 2},
		{1.0 / 42.0, 2, 2},
	}

	// Atkinson only diffuses 3/4 of the error, which keeps contrast but
	// can lose detail in dark/light regions.
	Atkinson = Kernel{
		{1.0 / 8.0, 1, 0},
		{1.0 / 8.0, 2, 0},
		{1.0 / 8.0, -1, 1},
		{1.0 / 8.0, 0, 1},
		{1.0 / 8.0, 1, 1},
		{1.0 / 8.0, 0, 2},
	}
)

// Method names a kernel.
type Method string

const (
	None                Method = "none"
	MethodFloydSteinberg Method = "floyd-steinberg"
	MethodFalseFloyd     Method = "false-floyd-steinberg"
	MethodStucki         Method = "stucki"
	MethodAtkinson       Method = "atkinson"
)

// KernelFor resolves a Method to its Kernel. ok is false for None or an
// unrecognized name.
func KernelFor(m Method) (Kernel, bool) {
	switch m {
	case MethodFloydSteinberg:
		return FloydSteinberg, true
	case MethodFalseFloyd:
		return FalseFloydSteinberg, true
	case MethodStucki:
		return Stucki, true
	case MethodAtkinson:
		return Atkinson, true
	default:
		return nil, false
	}
}

// Indexer looks up the palette entry nearest an RGB triple. Satisfied by
// internal/colorquant.Palette; declared independently here so the two
// packages don't need to import one another.
type Indexer interface {
	Index(r, g, b uint8) int
}

// Apply indexes width*height RGB pixels (row-major, three bytes each)
// against pal, diffusing each pixel's quantization error to its
// neighbors per kernel. serpentine reverses scan direction every other
// row, which spreads directional dithering artifacts more evenly.
func Apply(pixels []byte, width, height int, pal Indexer, colors []color.RGBA, kernel Kernel, serpentine bool) []byte {
	indices := make([]byte, width*height)
	data := make([]byte, len(pixels))
	copy(data, pixels)

	direction := 1
	for y := 0; y < height; y++ {
		if serpentine && y > 0 {
			direction = -direction
		}

		x, xEnd := 0, width
		if direction == -1 {
			x, xEnd = width-1, -1
		}

		for x != xEnd {
			pos := y*width + x
			idx := pos * 3
			r1, g1, b1 := data[idx], data[idx+1], data[idx+2]

			ci := pal.Index(r1, g1, b1)
			indices[pos] = byte(ci)

			c := colors[ci]
			er := int(r1) - int(c.R)
			eg := int(g1) - int(c.G)
			eb := int(b1) - int(c.B)

			ki, kEnd := 0, len(kernel)
			if direction == -1 {
				ki, kEnd = len(kernel)-1, -1
			}
			for ki != kEnd {
				tap := kernel[ki]
				nx := x + int(tap[1])
				ny := y + int(tap[2])
				if nx >= 0 && nx < width && ny >= 0 && ny < height {
					w := tap[0]
					nidx := (ny*width + nx) * 3
					data[nidx] = clamp255(int(data[nidx]) + int(float64(er)*w))
					data[nidx+1] = clamp255(int(data[nidx+1]) + int(float64(eg)*w))
					data[nidx+2] = clamp255(int(data[nidx+2]) + int(float64(eb)*w))
				}
				if direction == 1 {
					ki++
				} else {
					ki--
				}
			}

			x += direction
		}
	}
	return indices
}

func clamp255(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
