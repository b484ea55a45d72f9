// Package audio provides interfaces and implementations for decoding stored
// clips into mono waveforms at a fixed sample rate.
package audio

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDecode is returned when a file cannot be parsed as audio.
	ErrDecode = errors.New("audio: decode failed")
	// ErrEmptyClip is returned when a file decodes to zero samples.
	ErrEmptyClip = errors.New("audio: empty clip")
)

// Clip is a decoded mono waveform.
type Clip struct {
	// Samples holds the waveform in [-1, 1].
	Samples []float64
	// SampleRate is the rate of Samples in Hz.
	SampleRate int
	// Path is the file the clip was decoded from.
	Path string
}

// Duration returns the length of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.SampleRate) * float64(time.Second))
}

// LoadOpts configures how a clip is decoded.
type LoadOpts struct {
	// TargetSampleRate is the rate of the returned waveform. Clips stored at a
	// different rate are resampled.
	// Default: 22050 Hz.
	TargetSampleRate int

	// MaxDuration bounds how much audio is decoded. Zero means no bound.
	// Default: 4 seconds.
	MaxDuration time.Duration
}

// DefaultLoadOpts returns the default options for loading clips.
func DefaultLoadOpts() LoadOpts {
	return LoadOpts{
		TargetSampleRate: 22050,
		MaxDuration:      4 * time.Second,
	}
}

// Loader defines the interface for decoding stored clips.
type Loader interface {
	// Load decodes the file at path into a mono waveform at
	// opts.TargetSampleRate, truncated to opts.MaxDuration of source audio.
	//
	// Returns an error wrapping ErrDecode if the file is not valid audio and
	// ErrEmptyClip if it contains no samples.
	Load(ctx context.Context, path string, opts LoadOpts) (*Clip, error)
}
