// Package dataset writes fold batches to disk as NumPy arrays: a features
// array of shape (N, bands, frames, 3) and a one-hot label array of shape
// (N, classes).
package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maauso/urbanmel/internal/features"
	"github.com/maauso/urbanmel/internal/fold"
	"github.com/maauso/urbanmel/internal/storage"
)

// ErrStorage wraps every failure to write an artifact.
var ErrStorage = errors.New("dataset: storage failure")

// FeaturesName returns the artifact name of fold k's features.
func FeaturesName(k int) string {
	return fmt.Sprintf("fold%d_x.npy", k)
}

// LabelsName returns the artifact name of fold k's labels.
func LabelsName(k int) string {
	return fmt.Sprintf("fold%d_y.npy", k)
}

// OneHot expands class ids into a row-major (len(labels), numClasses) matrix.
func OneHot(labels []int, numClasses int) ([]float32, error) {
	if numClasses <= 0 {
		return nil, fmt.Errorf("num classes must be positive, got %d", numClasses)
	}
	out := make([]float32, len(labels)*numClasses)
	for i, l := range labels {
		if l < 0 || l >= numClasses {
			return nil, fmt.Errorf("label %d at row %d outside [0, %d)", l, i, numClasses)
		}
		out[i*numClasses+l] = 1
	}
	return out, nil
}

// Artifacts describes what Persist wrote for one fold.
type Artifacts struct {
	Fold         int
	Clips        int
	FeaturesPath string
	LabelsPath   string
	// FeaturesURL and LabelsURL are set when the storage mirrors to S3.
	FeaturesURL string
	LabelsURL   string
}

// Options configures a Persister.
type Options struct {
	NumClasses int
	DType      DType
}

// Persister encodes batches and hands them to storage.
type Persister struct {
	store  storage.Storage
	opts   Options
	logger *slog.Logger
}

// NewPersister creates a Persister. A nil logger uses slog.Default.
func NewPersister(store storage.Storage, opts Options, logger *slog.Logger) (*Persister, error) {
	if opts.NumClasses <= 0 {
		return nil, fmt.Errorf("num classes must be positive, got %d", opts.NumClasses)
	}
	if opts.DType == "" {
		opts.DType = Float32
	}
	if _, err := opts.DType.Descr(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{store: store, opts: opts, logger: logger}, nil
}

// Encode renders the features and labels arrays for batch.
func (p *Persister) Encode(batch *fold.Batch) (x, y []byte, err error) {
	n := batch.Len()
	if len(batch.Labels) != n {
		return nil, nil, fmt.Errorf("batch has %d tensors and %d labels", n, len(batch.Labels))
	}

	per := batch.Bands * batch.Frames * features.Channels
	data := make([]float32, 0, n*per)
	for i, t := range batch.Tensors {
		if len(t.Data) != per {
			return nil, nil, fmt.Errorf("tensor %d has %d values, want %d", i, len(t.Data), per)
		}
		data = append(data, t.Data...)
	}

	var xb bytes.Buffer
	if err := WriteFloat32(&xb, []int{n, batch.Bands, batch.Frames, features.Channels}, data, p.opts.DType); err != nil {
		return nil, nil, fmt.Errorf("encode features: %w", err)
	}

	hot, err := OneHot(batch.Labels, p.opts.NumClasses)
	if err != nil {
		return nil, nil, fmt.Errorf("encode labels: %w", err)
	}
	var yb bytes.Buffer
	if err := WriteFloat32(&yb, []int{n, p.opts.NumClasses}, hot, Float32); err != nil {
		return nil, nil, fmt.Errorf("encode labels: %w", err)
	}

	return xb.Bytes(), yb.Bytes(), nil
}

// Persist writes fold<k>_x.npy and fold<k>_y.npy, replacing earlier runs.
// Both arrays are encoded before either file is written. If the labels file
// cannot be written, both files of the fold are removed, including any left
// by an earlier run. When the
// storage mirrors to S3, both files are uploaded after the local write.
func (p *Persister) Persist(ctx context.Context, batch *fold.Batch) (Artifacts, error) {
	select {
	case <-ctx.Done():
		return Artifacts{}, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	x, y, err := p.Encode(batch)
	if err != nil {
		return Artifacts{}, err
	}

	xName, yName := FeaturesName(batch.Fold), LabelsName(batch.Fold)
	art := Artifacts{Fold: batch.Fold, Clips: batch.Len()}

	art.FeaturesPath, err = p.store.Save(ctx, xName, bytes.NewReader(x))
	if err != nil {
		return Artifacts{}, fmt.Errorf("%w: save %s: %v", ErrStorage, xName, err)
	}
	art.LabelsPath, err = p.store.Save(ctx, yName, bytes.NewReader(y))
	if err != nil {
		// Drop labels from an earlier run too so no mismatched pair remains.
		if cerr := p.store.Cleanup(context.WithoutCancel(ctx), []string{xName, yName}); cerr != nil {
			p.logger.Error("failed to remove partial fold artifacts",
				slog.Int("fold", batch.Fold),
				slog.String("error", cerr.Error()),
			)
		}
		return Artifacts{}, fmt.Errorf("%w: save %s: %v", ErrStorage, yName, err)
	}

	art.FeaturesURL, err = p.store.UploadToS3(ctx, xName, bytes.NewReader(x))
	if errors.Is(err, storage.ErrS3NotConfigured) {
		return art, nil
	}
	if err != nil {
		return Artifacts{}, fmt.Errorf("%w: mirror %s: %v", ErrStorage, xName, err)
	}
	art.LabelsURL, err = p.store.UploadToS3(ctx, yName, bytes.NewReader(y))
	if err != nil {
		return Artifacts{}, fmt.Errorf("%w: mirror %s: %v", ErrStorage, yName, err)
	}

	p.logger.Info("fold mirrored to S3",
		slog.Int("fold", batch.Fold),
		slog.String("features_url", art.FeaturesURL),
		slog.String("labels_url", art.LabelsURL),
	)
	return art, nil
}
