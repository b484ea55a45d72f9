package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/faiface/beep/wav"
	"github.com/mewkiz/flac"
	resampling "github.com/tphakala/go-audio-resampling"
)

// Compile-time check that FileLoader implements Loader.
var _ Loader = (*FileLoader)(nil)

// streamBlock is the number of frames pulled from a decoder per read.
const streamBlock = 4096

// FileLoader implements Loader for WAV and FLAC files on local disk.
// The container is chosen by file extension.
type FileLoader struct{}

// NewFileLoader creates a new FileLoader.
func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

// Load implements Loader.Load.
func (l *FileLoader) Load(ctx context.Context, path string, opts LoadOpts) (*Clip, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if opts.TargetSampleRate <= 0 {
		return nil, fmt.Errorf("invalid target sample rate %d", opts.TargetSampleRate)
	}

	var (
		samples    []float64
		sampleRate int
		err        error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		samples, sampleRate, err = decodeWAV(path, opts.MaxDuration)
	case ".flac":
		samples, sampleRate, err = decodeFLAC(path, opts.MaxDuration)
	default:
		err = fmt.Errorf("%w: unsupported extension %q", ErrDecode, ext)
	}
	if err != nil {
		return nil, err
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyClip, path)
	}

	if sampleRate != opts.TargetSampleRate {
		samples, err = resample(samples, sampleRate, opts.TargetSampleRate)
		if err != nil {
			return nil, fmt.Errorf("resample %s: %w", path, err)
		}
	}

	return &Clip{
		Samples:    samples,
		SampleRate: opts.TargetSampleRate,
		Path:       path,
	}, nil
}

// frameLimit returns how many frames of sampleRate audio fit in maxDuration,
// or -1 for no limit.
func frameLimit(sampleRate int, maxDuration time.Duration) int {
	if maxDuration <= 0 {
		return -1
	}
	return int(float64(sampleRate) * maxDuration.Seconds())
}

// decodeWAV reads a PCM WAV file and averages its channels into mono.
func decodeWAV(path string, maxDuration time.Duration) ([]float64, int, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from the dataset scan
	if err != nil {
		return nil, 0, fmt.Errorf("%w: open %s: %v", ErrDecode, path, err)
	}
	defer func() { _ = f.Close() }()

	streamer, format, err := wav.Decode(f)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}

	if format.NumChannels > 2 {
		return nil, 0, fmt.Errorf("%w: %s: %d channels, at most 2 supported", ErrDecode, path, format.NumChannels)
	}
	gain, err := pcmGain(format.Precision)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}

	sampleRate := int(format.SampleRate)
	limit := frameLimit(sampleRate, maxDuration)

	var out []float64
	if n := streamer.Len(); n > 0 {
		if limit >= 0 && n > limit {
			n = limit
		}
		out = make([]float64, 0, n)
	}

	// The beep decoder duplicates mono input into both channels, so the
	// average is correct for mono and stereo files.
	buf := make([][2]float64, streamBlock)
	for limit < 0 || len(out) < limit {
		want := len(buf)
		if limit >= 0 {
			want = min(want, limit-len(out))
		}
		n, ok := streamer.Stream(buf[:want])
		for i := 0; i < n; i++ {
			out = append(out, gain*(buf[i][0]+buf[i][1])/2)
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}

	return out, sampleRate, nil
}

// pcmGain maps beep's decoded sample range back onto [-1, 1]. beep divides
// 16 and 24 bit samples by 2^bits-1 instead of 2^(bits-1), which halves them;
// 8 bit samples already span the full range.
func pcmGain(precision int) (float64, error) {
	switch precision {
	case 1:
		return 1, nil
	case 2:
		return float64(1<<16-1) / (1 << 15), nil
	case 3:
		return float64(1<<24-1) / (1 << 23), nil
	default:
		return 0, fmt.Errorf("unsupported sample width of %d bytes", precision)
	}
}

// decodeFLAC reads a FLAC file and averages its channels into mono.
func decodeFLAC(path string, maxDuration time.Duration) ([]float64, int, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	defer func() { _ = stream.Close() }()

	sampleRate := int(stream.Info.SampleRate)
	channels := int(stream.Info.NChannels)
	bits := int(stream.Info.BitsPerSample)
	if sampleRate == 0 || channels == 0 || bits == 0 {
		return nil, 0, fmt.Errorf("%w: %s: missing stream info", ErrDecode, path)
	}

	limit := frameLimit(sampleRate, maxDuration)
	scale := 1 / (math.Exp2(float64(bits-1)) * float64(channels))

	var out []float64
	for limit < 0 || len(out) < limit {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
		}

		n := len(frame.Subframes[0].Samples)
		if limit >= 0 {
			n = min(n, limit-len(out))
		}
		for i := 0; i < n; i++ {
			var sum int64
			for _, sub := range frame.Subframes {
				sum += int64(sub.Samples[i])
			}
			out = append(out, float64(sum)*scale)
		}
	}

	return out, sampleRate, nil
}

// resample converts mono samples between rates with a high quality
// polyphase FIR resampler.
func resample(samples []float64, from, to int) ([]float64, error) {
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}

	out, err := r.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("process: %w", err)
	}
	tail, err := r.Flush()
	if err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}
	out = append(out, tail...)

	want := int(math.Ceil(float64(len(samples)) * float64(to) / float64(from)))
	if len(out) > want {
		out = out[:want]
	}
	return out, nil
}
