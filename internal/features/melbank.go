package features

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Slaney mel scale constants: linear below 1 kHz, logarithmic above.
const (
	melFSp       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSp
)

var melLogStep = math.Log(6.4) / 27.0

// hzToMel converts frequency in Hz to the Slaney mel scale.
func hzToMel(hz float64) float64 {
	if hz >= melMinLogHz {
		return melMinLogMel + math.Log(hz/melMinLogHz)/melLogStep
	}
	return hz / melFSp
}

// melToHz converts a Slaney mel value back to Hz.
func melToHz(mel float64) float64 {
	if mel >= melMinLogMel {
		return melMinLogHz * math.Exp(melLogStep*(mel-melMinLogMel))
	}
	return melFSp * mel
}

// fftFrequencies returns the centre frequency of each one-sided FFT bin.
func fftFrequencies(sampleRate, nfft int) []float64 {
	bins := nfft/2 + 1
	freqs := make([]float64, bins)
	if bins == 1 {
		return freqs
	}
	step := float64(sampleRate) / 2 / float64(bins-1)
	for k := range freqs {
		freqs[k] = float64(k) * step
	}
	return freqs
}

// melFilterBank builds a (bands x nfft/2+1) matrix of area-normalized
// triangular filters with edges spaced evenly on the mel scale between fmin
// and fmax.
func melFilterBank(sampleRate, nfft, bands int, fmin, fmax float64) *mat.Dense {
	freqs := fftFrequencies(sampleRate, nfft)

	lo, hi := hzToMel(fmin), hzToMel(fmax)
	edges := make([]float64, bands+2)
	for i := range edges {
		edges[i] = melToHz(lo + (hi-lo)*float64(i)/float64(bands+1))
	}

	bank := mat.NewDense(bands, len(freqs), nil)
	for m := 0; m < bands; m++ {
		left, centre, right := edges[m], edges[m+1], edges[m+2]
		norm := 2 / (right - left)
		for k, f := range freqs {
			lower := (f - left) / (centre - left)
			upper := (right - f) / (right - centre)
			w := math.Min(lower, upper)
			if w <= 0 {
				continue
			}
			bank.Set(m, k, w*norm)
		}
	}
	return bank
}
