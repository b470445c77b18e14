package timing

import (
	"gonum.org/v1/gonum/mat"
)

// Smooth applies the interval-to-ahead polynomial filter: a local
// least-squares polynomial fit (order polyOrder, window length
// min(maxWindow, 2*floor(validCount/2)-1)) evaluated at the window centre.
// Missing samples remain missing; the filter is only ever applied to
// interval-to-ahead, never to gap-to-leader.
func Smooth(raw []float64, maxWindow, polyOrder int) []float64 {
	out := make([]float64, len(raw))
	copy(out, raw)

	validIdx := make([]int, 0, len(raw))
	for i, v := range raw {
		if !isAbsent(v) {
			validIdx = append(validIdx, i)
		}
	}
	validCount := len(validIdx)
	if validCount == 0 {
		return out
	}

	windowLen := 2*(validCount/2) - 1
	if windowLen > maxWindow {
		windowLen = maxWindow
	}
	if windowLen < polyOrder+1 {
		return out // not enough points to fit; leave raw values as-is
	}

	half := windowLen / 2
	for center := 0; center < validCount; center++ {
		lo := center - half
		hi := center + half
		if lo < 0 {
			hi -= lo
			lo = 0
		}
		if hi > validCount-1 {
			lo -= hi - (validCount - 1)
			hi = validCount - 1
		}
		if lo < 0 {
			lo = 0
		}

		coeff, ok := fitPolynomialCentered(validIdx, raw, lo, hi, center, polyOrder)
		if ok {
			out[validIdx[center]] = coeff
		}
	}
	return out
}

// fitPolynomialCentered fits a degree-polyOrder least-squares polynomial to
// raw[validIdx[lo..hi]] against x = validIdx[i] - validIdx[center], and
// returns the fitted value at x = 0 (the window centre).
func fitPolynomialCentered(validIdx []int, raw []float64, lo, hi, center, polyOrder int) (float64, bool) {
	n := hi - lo + 1
	cols := polyOrder + 1
	if n < cols {
		return 0, false
	}

	a := mat.NewDense(n, cols, nil)
	b := mat.NewDense(n, 1, nil)
	centerGrid := validIdx[center]
	for r := 0; r < n; r++ {
		x := float64(validIdx[lo+r] - centerGrid)
		xp := 1.0
		for c := 0; c < cols; c++ {
			a.Set(r, c, xp)
			xp *= x
		}
		b.Set(r, 0, raw[validIdx[lo+r]])
	}

	var qr mat.QR
	qr.Factorize(a)
	var coeff mat.Dense
	if err := qr.SolveTo(&coeff, false, b); err != nil {
		return 0, false
	}
	return coeff.At(0, 0), true
}
