package features

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"time"

	"github.com/mjibson/go-dsp/window"
	"github.com/r9y9/gossp/stft"
	"gonum.org/v1/gonum/mat"
)

// ErrTooShort is returned when a waveform is shorter than one analysis window.
var ErrTooShort = errors.New("waveform shorter than analysis window")

// ErrInvalidConfig is returned by NewExtractor for unusable parameters.
var ErrInvalidConfig = errors.New("invalid extractor config")

// ExtractorConfig holds the parameters of the log-mel transform.
type ExtractorConfig struct {
	// SampleRate of the waveforms passed to Extract, in Hz.
	SampleRate int
	// Bands is the number of mel bands.
	Bands int
	// Frames is the target number of frames per clip. It only drives the
	// window arithmetic; Extract itself returns a variable frame count.
	Frames int
	// ClipDuration is the nominal clip length the window is sized for.
	ClipDuration time.Duration
	// FMin and FMax bound the mel filterbank, in Hz.
	FMin float64
	FMax float64
}

// DefaultExtractorConfig returns the UrbanSound8K settings: 22.05 kHz,
// 60 bands, 41 frames per 4 second clip, mel bands spanning 0-8000 Hz.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		SampleRate:   22050,
		Bands:        60,
		Frames:       41,
		ClipDuration: 4 * time.Second,
		FMin:         0,
		FMax:         8000,
	}
}

// WindowLength returns the STFT window length and overlap, in samples, that
// make a full clip of the given duration yield close to frames frames.
func WindowLength(sampleRate int, clipDuration time.Duration, frames int) (n, overlap int) {
	n = int(math.Floor(float64(sampleRate)*clipDuration.Seconds()/float64(frames)*2)) - 8
	return n, n / 2
}

// Extractor turns mono waveforms into log-mel matrices. It is immutable after
// construction and safe for concurrent use.
type Extractor struct {
	cfg     ExtractorConfig
	window  []float64
	n       int
	hop     int
	scale   float64
	melBank *mat.Dense
}

// NewExtractor precomputes the analysis window and mel filterbank.
func NewExtractor(cfg ExtractorConfig) (*Extractor, error) {
	if cfg.SampleRate <= 0 || cfg.Bands <= 0 || cfg.Frames <= 0 || cfg.ClipDuration <= 0 {
		return nil, fmt.Errorf("%w: sample rate, bands, frames and duration must be positive", ErrInvalidConfig)
	}
	if cfg.FMax <= cfg.FMin || cfg.FMin < 0 {
		return nil, fmt.Errorf("%w: mel range %.0f-%.0f Hz", ErrInvalidConfig, cfg.FMin, cfg.FMax)
	}

	n, overlap := WindowLength(cfg.SampleRate, cfg.ClipDuration, cfg.Frames)
	if n < 2 {
		return nil, fmt.Errorf("%w: window length %d", ErrInvalidConfig, n)
	}

	w := window.Hamming(n)
	var energy float64
	for _, v := range w {
		energy += v * v
	}

	return &Extractor{
		cfg:     cfg,
		window:  w,
		n:       n,
		hop:     n - overlap,
		scale:   math.Sqrt(1 / (float64(cfg.SampleRate) * energy)),
		melBank: melFilterBank(cfg.SampleRate, n, cfg.Bands, cfg.FMin, cfg.FMax),
	}, nil
}

// WindowSize returns the analysis window length in samples. Clips shorter
// than this cannot be extracted.
func (e *Extractor) WindowSize() int {
	return e.n
}

// Hop returns the distance between successive frames in samples.
func (e *Extractor) Hop() int {
	return e.hop
}

// Config returns the extractor parameters.
func (e *Extractor) Config() ExtractorConfig {
	return e.cfg
}

// Extract computes the (bands x frames) log-mel matrix of samples, where
// frames = (len(samples)-WindowSize())/Hop() + 1.
func (e *Extractor) Extract(samples []float64) (Matrix, error) {
	if len(samples) < e.n {
		return Matrix{}, fmt.Errorf("%w: %d samples, window %d", ErrTooShort, len(samples), e.n)
	}

	mag := e.magnitude(samples)

	var mel mat.Dense
	mel.Mul(e.melBank, mag)

	bands, frames := mel.Dims()
	out := NewMatrix(bands, frames)
	for b := 0; b < bands; b++ {
		row := out.Row(b)
		for f := range row {
			row[f] = float32(math.Log(mel.At(b, f) + LogFloor))
		}
	}
	return out, nil
}

// magnitude returns the scaled one-sided magnitude spectrogram as a
// (bins x frames) matrix.
func (e *Extractor) magnitude(samples []float64) *mat.Dense {
	s := stft.New(e.hop, e.n)
	s.Window = e.window
	frames := s.STFT(samples)

	bins := e.n/2 + 1
	mag := mat.NewDense(bins, len(frames), nil)
	for t, frame := range frames {
		for k := 0; k < bins; k++ {
			mag.Set(k, t, cmplx.Abs(frame[k])*e.scale)
		}
	}
	return mag
}
