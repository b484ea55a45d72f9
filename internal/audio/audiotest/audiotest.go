// Package audiotest writes small WAV fixtures for tests.
package audiotest

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"testing"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

// Sine returns n samples of a sine tone at half amplitude.
func Sine(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

// WriteWAV writes a 16-bit PCM WAV file. Each element of channels is one
// channel; all channels must have the same length. No channels, or channels of
// length zero, produce a valid file with an empty data chunk.
func WriteWAV(t testing.TB, path string, sampleRate int, channels ...[]float64) {
	t.Helper()
	WriteWAVPrecision(t, path, sampleRate, 2, channels...)
}

// WriteWAVPrecision is WriteWAV with a sample width of precision bytes (1, 2
// or 3).
func WriteWAVPrecision(t testing.TB, path string, sampleRate, precision int, channels ...[]float64) {
	t.Helper()

	numChannels := len(channels)
	if numChannels == 0 {
		numChannels = 1
	}
	if numChannels > 2 {
		t.Fatalf("WriteWAV supports at most 2 channels, got %d", numChannels)
	}

	length := 0
	if len(channels) > 0 {
		length = len(channels[0])
	}
	pos := 0
	streamer := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= length {
			return 0, false
		}
		n := 0
		for n < len(samples) && pos < length {
			left := channels[0][pos]
			right := left
			if len(channels) == 2 {
				right = channels[1][pos]
			}
			samples[n] = [2]float64{left, right}
			n++
			pos++
		}
		return n, true
	})

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()

	format := beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: numChannels,
		Precision:   precision,
	}
	if err := wav.Encode(f, streamer, format); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// WriteGarbage writes bytes that no audio decoder accepts.
func WriteGarbage(t testing.TB, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("this is not a riff file at all"), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WritePCM16 writes a 16-bit PCM WAV with any channel count. frames holds
// one slice of per-channel samples per frame. beep cannot encode more than
// two channels, so the RIFF layout is written by hand.
func WritePCM16(t testing.TB, path string, sampleRate int, frames [][]int16) {
	t.Helper()

	channels := 1
	if len(frames) > 0 {
		channels = len(frames[0])
	}
	blockAlign := channels * 2
	dataLen := len(frames) * blockAlign

	var buf bytes.Buffer
	w := func(v any) {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			t.Fatalf("write wav header: %v", err)
		}
	}
	buf.WriteString("RIFF")
	w(uint32(36 + dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	w(uint32(16))
	w(uint16(1)) // PCM
	w(uint16(channels))
	w(uint32(sampleRate))
	w(uint32(sampleRate * blockAlign))
	w(uint16(blockAlign))
	w(uint16(16))
	buf.WriteString("data")
	w(uint32(dataLen))
	for _, frame := range frames {
		w(frame)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
