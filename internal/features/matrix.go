// Package features computes fixed-shape log-mel feature tensors from mono waveforms.
//
// The pipeline for one clip is:
//
//	Extract   -> log-mel matrix (bands x variable frames)
//	Normalize -> log-mel matrix (bands x target frames)
//	Deltas    -> first and second order temporal derivatives
//	NewTensor -> (bands, frames, 3) tensor
package features

import "math"

// LogFloor is added to mel energies before taking the logarithm.
const LogFloor = 1e-8

// Silence is the log-mel value of a frame with zero energy. Padding uses it so
// padded frames are indistinguishable from silence.
var Silence = float32(math.Log(LogFloor))

// Matrix is a row-major (bands x frames) float32 matrix.
type Matrix struct {
	Bands  int
	Frames int
	Data   []float32
}

// NewMatrix allocates a zeroed bands x frames matrix.
func NewMatrix(bands, frames int) Matrix {
	return Matrix{
		Bands:  bands,
		Frames: frames,
		Data:   make([]float32, bands*frames),
	}
}

// At returns the value at band b, frame f.
func (m Matrix) At(b, f int) float32 {
	return m.Data[b*m.Frames+f]
}

// Set stores v at band b, frame f.
func (m Matrix) Set(b, f int, v float32) {
	m.Data[b*m.Frames+f] = v
}

// Row returns the frames of band b. The slice aliases the matrix data.
func (m Matrix) Row(b int) []float32 {
	return m.Data[b*m.Frames : (b+1)*m.Frames]
}

// Normalize pads or truncates m along the frame axis to exactly frames
// columns. Missing frames on the right are filled with Silence; extra frames
// on the right are dropped. m is never modified.
func Normalize(m Matrix, frames int) Matrix {
	out := NewMatrix(m.Bands, frames)
	keep := min(m.Frames, frames)
	for b := 0; b < m.Bands; b++ {
		row := out.Row(b)
		copy(row, m.Row(b)[:keep])
		for f := keep; f < frames; f++ {
			row[f] = Silence
		}
	}
	return out
}
