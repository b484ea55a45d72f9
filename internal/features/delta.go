package features

// DeltaWidth is the number of frames in the delta regression window.
const DeltaWidth = 9

// Deltas returns the first and second order temporal derivatives of m. Both
// have the same shape as m.
func Deltas(m Matrix) (delta, deltaDelta Matrix) {
	delta = regress(m, DeltaWidth)
	deltaDelta = regress(delta, DeltaWidth)
	return delta, deltaDelta
}

// regress computes a local least-squares slope along the frame axis over a
// centred window of width frames. Frames closer than half a window to either
// edge take the slope of the first or last full window. The width shrinks to
// the largest odd value that fits short matrices; below three frames the
// result is all zeros.
func regress(m Matrix, width int) Matrix {
	out := NewMatrix(m.Bands, m.Frames)
	if width > m.Frames {
		width = m.Frames
	}
	if width%2 == 0 {
		width--
	}
	if width < 3 {
		return out
	}

	half := width / 2
	var denom float64
	for n := 1; n <= half; n++ {
		denom += float64(n * n)
	}
	denom *= 2

	for b := 0; b < m.Bands; b++ {
		src := m.Row(b)
		dst := out.Row(b)
		for t := half; t < m.Frames-half; t++ {
			var num float64
			for n := 1; n <= half; n++ {
				num += float64(n) * (float64(src[t+n]) - float64(src[t-n]))
			}
			dst[t] = float32(num / denom)
		}
		for t := 0; t < half; t++ {
			dst[t] = dst[half]
		}
		last := m.Frames - half - 1
		for t := last + 1; t < m.Frames; t++ {
			dst[t] = dst[last]
		}
	}
	return out
}
