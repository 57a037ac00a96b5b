package gifcodec

/*
Classic GIF LZW compression, ported from the teacher's LZWEncoder.go,
itself descended through Kevin Weiner (Java), Thibault Imbert (AS3) and
Johan Nordberg (JS) from the original 'compress' GIF modifications by
David Rowley, based on compress.c (Thomas, McKie, Davies, Turkowski,
Woods, Orost; IEEE Computer, June 1984).
*/

const (
	lzwEOF   = -1
	lzwBits  = 12
	lzwHSize = 5003 // 80% occupancy
)

var lzwMasks = []int{
	0x0000, 0x0001, 0x0003, 0x0007, 0x000F, 0x001F,
	0x003F, 0x007F, 0x00FF, 0x01FF, 0x03FF, 0x07FF,
	0x0FFF, 0x1FFF, 0x3FFF, 0x7FFF, 0xFFFF,
}

func maxcodeFor(nBits int) int { return (1 << nBits) - 1 }

// Encode compresses pixels (palette indices) with classic LZW and writes
// the result, including the leading code-size byte and trailing block
// terminator, to out.
func Encode(pixels []byte, minCodeSize int, out *ByteWriter) {
	if minCodeSize < 2 {
		minCodeSize = 2
	}
	out.WriteByte(byte(minCodeSize))
	compress(pixels, minCodeSize+1, out, nil)
	out.WriteByte(0)
}

// clearHook is a callback type for dictionary-clear bookkeeping. compress
// does not take one; the lossy encoder's hook is compress's forceClear
// parameter.
type clearHook func()

// compress runs the LZW dictionary loop shared by the lossless and lossy
// encoders. forceClear, if non-nil, is polled after every emitted code;
// returning true injects an extra dictionary clear beyond the ones the
// algorithm issues on its own when the code table fills up.
func compress(pixels []byte, initBits int, out *ByteWriter, forceClear func() bool) {
	var (
		fcode, c, i, ent, disp, hsizeReg, hshift int
	)

	curPixel := 0
	remaining := len(pixels)
	nextPixel := func() int {
		if remaining == 0 {
			return lzwEOF
		}
		remaining--
		p := pixels[curPixel]
		curPixel++
		return int(p) & 0xff
	}

	gInitBits := initBits
	clearFlg := false
	nBits := gInitBits
	maxcode := maxcodeFor(nBits)

	clearCode := 1 << (initBits - 1)
	eofCode := clearCode + 1
	freeEnt := clearCode + 2

	aCount := 0
	curAccum := 0
	curBits := 0

	accum := make([]byte, 256)
	htab := make([]int, lzwHSize)
	codetab := make([]int, lzwHSize)

	flushChar := func() {
		if aCount > 0 {
			out.WriteByte(byte(aCount))
			out.Write(accum[:aCount])
			aCount = 0
		}
	}

	charOut := func(c byte) {
		accum[aCount] = c
		aCount++
		if aCount >= 254 {
			flushChar()
		}
	}

	clHash := func(hsize int) {
		for i := 0; i < hsize; i++ {
			htab[i] = -1
		}
	}

	var output func(int)
	output = func(code int) {
		curAccum &= lzwMasks[curBits]
		if curBits > 0 {
			curAccum |= code << curBits
		} else {
			curAccum = code
		}
		curBits += nBits
		for curBits >= 8 {
			charOut(byte(curAccum & 0xff))
			curAccum >>= 8
			curBits -= 8
		}

		if freeEnt > maxcode || clearFlg {
			if clearFlg {
				nBits = gInitBits
				maxcode = maxcodeFor(nBits)
				clearFlg = false
			} else {
				nBits++
				if nBits == lzwBits {
					maxcode = 1 << lzwBits
				} else {
					maxcode = maxcodeFor(nBits)
				}
			}
		}

		if code == eofCode {
			for curBits > 0 {
				charOut(byte(curAccum & 0xff))
				curAccum >>= 8
				curBits -= 8
			}
			flushChar()
		}
	}

	clBlock := func() {
		clHash(lzwHSize)
		freeEnt = clearCode + 2
		clearFlg = true
		output(clearCode)
	}

	ent = nextPixel()

	hshift = 0
	for fcode = lzwHSize; fcode < 65536; fcode *= 2 {
		hshift++
	}
	hshift = 8 - hshift

	hsizeReg = lzwHSize
	clHash(hsizeReg)

	output(clearCode)

outerLoop:
	for {
		c = nextPixel()
		if c == lzwEOF {
			break
		}

		fcode = (c << lzwBits) + ent
		i = (c << hshift) ^ ent

		if htab[i] == fcode {
			ent = codetab[i]
			continue
		} else if htab[i] >= 0 {
			disp = hsizeReg - i
			if i == 0 {
				disp = 1
			}
			for {
				i -= disp
				if i < 0 {
					i += hsizeReg
				}
				if htab[i] == fcode {
					ent = codetab[i]
					continue outerLoop
				}
				if htab[i] < 0 {
					break
				}
			}
		}

		output(ent)
		ent = c

		if freeEnt < (1 << lzwBits) {
			codetab[i] = freeEnt
			freeEnt++
			htab[i] = fcode
		} else {
			clBlock()
		}

		if forceClear != nil && forceClear() {
			clBlock()
		}
	}

	output(ent)
	output(eofCode)
}
