package features

import "fmt"

// Channels is the number of feature channels per tensor.
const Channels = 3

// Tensor is a (bands, frames, 3) feature tensor in row-major order. Channel 0
// holds the log-mel energies, channel 1 their delta and channel 2 the
// delta-delta.
type Tensor struct {
	Bands  int
	Frames int
	Data   []float32
}

// NewTensor interleaves three equally shaped matrices into one tensor.
func NewTensor(logMel, delta, deltaDelta Matrix) (Tensor, error) {
	for _, m := range []Matrix{delta, deltaDelta} {
		if m.Bands != logMel.Bands || m.Frames != logMel.Frames {
			return Tensor{}, fmt.Errorf("channel shape %dx%d does not match %dx%d",
				m.Bands, m.Frames, logMel.Bands, logMel.Frames)
		}
	}

	t := Tensor{
		Bands:  logMel.Bands,
		Frames: logMel.Frames,
		Data:   make([]float32, logMel.Bands*logMel.Frames*Channels),
	}
	for i := range logMel.Data {
		t.Data[i*Channels] = logMel.Data[i]
		t.Data[i*Channels+1] = delta.Data[i]
		t.Data[i*Channels+2] = deltaDelta.Data[i]
	}
	return t, nil
}

// At returns the value at band b, frame f, channel c.
func (t Tensor) At(b, f, c int) float32 {
	return t.Data[(b*t.Frames+f)*Channels+c]
}

// Shape returns (bands, frames, channels).
func (t Tensor) Shape() [3]int {
	return [3]int{t.Bands, t.Frames, Channels}
}
