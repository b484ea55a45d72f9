package audio

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/urbanmel/internal/audio/audiotest"
)

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestFileLoader_MonoAtTargetRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	audiotest.WriteWAV(t, path, 22050, audiotest.Sine(440, 22050, 22050))

	clip, err := NewFileLoader().Load(context.Background(), path, DefaultLoadOpts())
	require.NoError(t, err)

	assert.Equal(t, 22050, clip.SampleRate)
	assert.Equal(t, path, clip.Path)
	assert.Len(t, clip.Samples, 22050)
	assert.InDelta(t, time.Second, clip.Duration(), float64(time.Millisecond))
}

func TestFileLoader_StereoIsAveraged(t *testing.T) {
	tests := []struct {
		name      string
		precision int
		delta     float64
	}{
		{"8-bit", 1, 1e-2},
		{"16-bit", 2, 1e-3},
		{"24-bit", 3, 1e-3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "stereo.wav")
			audiotest.WriteWAVPrecision(t, path, 22050, tt.precision, constant(0.5, 1000), constant(-0.1, 1000))

			clip, err := NewFileLoader().Load(context.Background(), path, DefaultLoadOpts())
			require.NoError(t, err)
			require.Len(t, clip.Samples, 1000)
			for _, s := range clip.Samples {
				assert.InDelta(t, 0.2, s, tt.delta)
			}
		})
	}
}

func TestFileLoader_FullScaleAcrossBitDepths(t *testing.T) {
	for _, precision := range []int{1, 2, 3} {
		path := filepath.Join(t.TempDir(), "level.wav")
		audiotest.WriteWAVPrecision(t, path, 22050, precision, constant(0.5, 500))

		clip, err := NewFileLoader().Load(context.Background(), path, DefaultLoadOpts())
		require.NoError(t, err)
		assert.InDelta(t, 0.5, clip.Samples[0], 1e-2, "precision %d", precision)
	}
}

func TestFileLoader_PCM16Scale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pcm.wav")
	frames := make([][]int16, 200)
	for i := range frames {
		frames[i] = []int16{8000, -4000}
	}
	audiotest.WritePCM16(t, path, 22050, frames)

	clip, err := NewFileLoader().Load(context.Background(), path, DefaultLoadOpts())
	require.NoError(t, err)
	require.Len(t, clip.Samples, 200)
	assert.InDelta(t, 2000.0/32768, clip.Samples[0], 1e-6)
}

func TestFileLoader_RejectsMoreThanTwoChannels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surround.wav")
	frames := make([][]int16, 100)
	for i := range frames {
		frames[i] = []int16{8000, 8000, -16000}
	}
	audiotest.WritePCM16(t, path, 22050, frames)

	_, err := NewFileLoader().Load(context.Background(), path, DefaultLoadOpts())
	assert.ErrorIs(t, err, ErrDecode)
}

func TestFileLoader_TruncatesToMaxDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "long.wav")
	audiotest.WriteWAV(t, path, 8000, audiotest.Sine(300, 8000, 6*8000))

	opts := LoadOpts{TargetSampleRate: 8000, MaxDuration: 4 * time.Second}
	clip, err := NewFileLoader().Load(context.Background(), path, opts)
	require.NoError(t, err)
	assert.Len(t, clip.Samples, 4*8000)

	opts.MaxDuration = 0
	clip, err = NewFileLoader().Load(context.Background(), path, opts)
	require.NoError(t, err)
	assert.Len(t, clip.Samples, 6*8000)
}

func TestFileLoader_Resamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hirate.wav")
	audiotest.WriteWAV(t, path, 44100, audiotest.Sine(440, 44100, 44100))

	clip, err := NewFileLoader().Load(context.Background(), path, DefaultLoadOpts())
	require.NoError(t, err)

	assert.Equal(t, 22050, clip.SampleRate)
	assert.InDelta(t, 22050, len(clip.Samples), 22050*0.02)
}

func TestFileLoader_Errors(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	loader := NewFileLoader()

	t.Run("garbage wav", func(t *testing.T) {
		path := filepath.Join(dir, "bad.wav")
		audiotest.WriteGarbage(t, path)
		_, err := loader.Load(ctx, path, DefaultLoadOpts())
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("garbage flac", func(t *testing.T) {
		path := filepath.Join(dir, "bad.flac")
		audiotest.WriteGarbage(t, path)
		_, err := loader.Load(ctx, path, DefaultLoadOpts())
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loader.Load(ctx, filepath.Join(dir, "nope.wav"), DefaultLoadOpts())
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := loader.Load(ctx, filepath.Join(dir, "clip.mp3"), DefaultLoadOpts())
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("empty clip", func(t *testing.T) {
		path := filepath.Join(dir, "empty.wav")
		audiotest.WriteWAV(t, path, 22050)
		_, err := loader.Load(ctx, path, DefaultLoadOpts())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrEmptyClip) || errors.Is(err, ErrDecode), "got %v", err)
	})

	t.Run("invalid target rate", func(t *testing.T) {
		_, err := loader.Load(ctx, filepath.Join(dir, "x.wav"), LoadOpts{})
		assert.Error(t, err)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := loader.Load(cctx, filepath.Join(dir, "x.wav"), DefaultLoadOpts())
		assert.ErrorIs(t, err, context.Canceled)
	})
}
