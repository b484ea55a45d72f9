package features

import (
	"math"
	"math/cmplx"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slaneyMel is the Slaney mel scale written out directly from its
// definition: linear at 200/3 Hz per mel below 1 kHz, then ln(6.4)/27 per mel.
func slaneyMel(hz float64) float64 {
	if hz < 1000 {
		return 3 * hz / 200
	}
	return 15 + 27*math.Log(hz/1000)/math.Log(6.4)
}

func slaneyHz(mel float64) float64 {
	if mel < 15 {
		return 200 * mel / 3
	}
	return 1000 * math.Pow(6.4, (mel-15)/27)
}

// referenceLogMel computes the log-mel matrix with a direct DFT and no
// shared code, as [band][frame].
func referenceLogMel(cfg ExtractorConfig, x []float64) [][]float64 {
	n := int(float64(cfg.SampleRate)*cfg.ClipDuration.Seconds()/float64(cfg.Frames)*2) - 8
	hop := n - n/2
	bins := n/2 + 1
	frames := (len(x)-n)/hop + 1

	w := make([]float64, n)
	var energy float64
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		energy += w[i] * w[i]
	}
	scale := math.Sqrt(1 / (float64(cfg.SampleRate) * energy))

	lo, hi := slaneyMel(cfg.FMin), slaneyMel(cfg.FMax)
	edges := make([]float64, cfg.Bands+2)
	for i := range edges {
		edges[i] = slaneyHz(lo + (hi-lo)*float64(i)/float64(cfg.Bands+1))
	}

	out := make([][]float64, cfg.Bands)
	for m := range out {
		out[m] = make([]float64, frames)
	}

	mag := make([]float64, bins)
	for t := 0; t < frames; t++ {
		for k := 0; k < bins; k++ {
			var sum complex128
			for i := 0; i < n; i++ {
				phase := -2 * math.Pi * float64(k) * float64(i) / float64(n)
				sum += complex(x[t*hop+i]*w[i], 0) * cmplx.Exp(complex(0, phase))
			}
			mag[k] = cmplx.Abs(sum) * scale
		}

		for m := 0; m < cfg.Bands; m++ {
			left, centre, right := edges[m], edges[m+1], edges[m+2]
			var bandEnergy float64
			for k := 0; k < bins; k++ {
				f := float64(k) * float64(cfg.SampleRate) / float64(n)
				var weight float64
				switch {
				case f > left && f <= centre:
					weight = (f - left) / (centre - left)
				case f > centre && f < right:
					weight = (right - f) / (right - centre)
				}
				bandEnergy += weight * 2 / (right - left) * mag[k]
			}
			out[m][t] = math.Log(bandEnergy + 1e-8)
		}
	}
	return out
}

func TestExtractor_MatchesDirectComputation(t *testing.T) {
	cfg := ExtractorConfig{
		SampleRate:   8000,
		Bands:        6,
		Frames:       40,
		ClipDuration: time.Second,
		FMin:         0,
		FMax:         4000,
	}
	ext, err := NewExtractor(cfg)
	require.NoError(t, err)
	require.Equal(t, 392, ext.WindowSize())
	require.Equal(t, 196, ext.Hop())

	signal := make([]float64, 392+3*196)
	for i := range signal {
		ti := float64(i) / float64(cfg.SampleRate)
		signal[i] = 0.5*math.Sin(2*math.Pi*1000*ti) + 0.2*math.Cos(2*math.Pi*2500*ti) + 0.05
	}

	got, err := ext.Extract(signal)
	require.NoError(t, err)
	want := referenceLogMel(cfg, signal)

	require.Equal(t, cfg.Bands, got.Bands)
	require.Equal(t, 4, got.Frames)
	for b := 0; b < cfg.Bands; b++ {
		for f := 0; f < got.Frames; f++ {
			assert.InDelta(t, want[b][f], got.At(b, f), 1e-4, "band %d frame %d", b, f)
		}
	}
}

func TestExtractor_DCBelowFirstBandIsSilent(t *testing.T) {
	// Bands between 2 and 4 kHz only see the window's far sidelobes of a
	// constant input.
	cfg := ExtractorConfig{
		SampleRate:   8000,
		Bands:        4,
		Frames:       40,
		ClipDuration: time.Second,
		FMin:         2000,
		FMax:         4000,
	}
	ext, err := NewExtractor(cfg)
	require.NoError(t, err)

	dc := make([]float64, ext.WindowSize())
	for i := range dc {
		dc[i] = 1
	}
	got, err := ext.Extract(dc)
	require.NoError(t, err)
	want := referenceLogMel(cfg, dc)
	for b := 0; b < cfg.Bands; b++ {
		assert.InDelta(t, want[b][0], got.At(b, 0), 1e-3)
		assert.Less(t, float64(got.At(b, 0)), -8.0, "band %d picked up DC", b)
	}
}
