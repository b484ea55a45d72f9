package fold

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maauso/urbanmel/internal/audio"
	"github.com/maauso/urbanmel/internal/features"
	"github.com/maauso/urbanmel/internal/label"
)

// Options configures an Extractor.
type Options struct {
	// Extension selects which files in a fold directory are clips.
	// Default: ".wav".
	Extension string
	// Load is passed to the audio loader for every clip.
	Load audio.LoadOpts
}

// DefaultOptions returns the default extractor options.
func DefaultOptions() Options {
	return Options{
		Extension: ".wav",
		Load:      audio.DefaultLoadOpts(),
	}
}

// Extractor processes every clip of a fold sequentially.
type Extractor struct {
	loader   audio.Loader
	spectro  *features.Extractor
	resolver label.Resolver
	opts     Options
	logger   *slog.Logger
	observer Observer
}

// NewExtractor creates a new fold Extractor. A nil logger uses slog.Default
// and a nil observer discards notifications.
func NewExtractor(
	loader audio.Loader,
	spectro *features.Extractor,
	resolver label.Resolver,
	opts Options,
	logger *slog.Logger,
	observer Observer,
) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = NopObserver{}
	}
	if opts.Extension == "" {
		opts.Extension = ".wav"
	}
	// The loader must deliver audio at the rate the window was sized for.
	opts.Load.TargetSampleRate = spectro.Config().SampleRate
	return &Extractor{
		loader:   loader,
		spectro:  spectro,
		resolver: resolver,
		opts:     opts,
		logger:   logger,
		observer: observer,
	}
}

// Extract scans task.Dir and turns each clip into a tensor.
//
// On success the task is left in ASSEMBLING; the caller completes it once
// the batch is persisted. On failure the task is marked FAILED and the error
// is returned. Individual clips that cannot be used are skipped, tallied on
// the task and logged; they never fail the fold.
func (e *Extractor) Extract(ctx context.Context, task *Task) (batch *Batch, err error) {
	defer func() {
		if err != nil {
			_ = task.Fail(err.Error())
		}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if err := task.Start(); err != nil {
		return nil, err
	}

	paths, err := Scan(task.Dir, e.opts.Extension)
	if err != nil {
		return nil, err
	}

	if err := task.BeginExtract(len(paths)); err != nil {
		return nil, err
	}
	e.observer.FoldStarted(task.Fold, len(paths))

	cfg := e.spectro.Config()
	batch = &Batch{
		Fold:    task.Fold,
		Bands:   cfg.Bands,
		Frames:  cfg.Frames,
		Tensors: make([]features.Tensor, 0, len(paths)),
		Labels:  make([]int, 0, len(paths)),
		Paths:   make([]string, 0, len(paths)),
	}

	for _, path := range paths {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		res, err := e.processClip(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("process %s: %w", path, err)
		}

		if res.skip != "" {
			task.RecordSkip(res.skip)
			e.logger.Warn("skipping clip",
				slog.Int("fold", task.Fold),
				slog.String("path", path),
				slog.String("reason", string(res.skip)),
				slog.String("error", res.cause.Error()),
			)
		} else {
			task.RecordProcessed()
			batch.Tensors = append(batch.Tensors, res.tensor)
			batch.Labels = append(batch.Labels, res.label)
			batch.Paths = append(batch.Paths, path)
		}
		e.observer.ClipDone(task.Fold)
	}

	if err := task.BeginAssemble(); err != nil {
		return nil, err
	}

	e.logger.Info("fold extracted",
		slog.Int("fold", task.Fold),
		slog.Int("clips", len(paths)),
		slog.Int("processed", batch.Len()),
		slog.Int("skipped", task.SkippedTotal()),
	)

	return batch, nil
}

// processClip runs one file through load, extract, normalize and deltas.
// A non-nil error aborts the fold; unusable clips come back as skips.
func (e *Extractor) processClip(ctx context.Context, path string) (clipResult, error) {
	clip, err := e.loader.Load(ctx, path, e.opts.Load)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return clipResult{}, err
	case errors.Is(err, audio.ErrEmptyClip):
		return clipResult{skip: SkipEmpty, cause: err}, nil
	default:
		return clipResult{skip: SkipDecode, cause: err}, nil
	}

	e.logger.Debug("clip loaded",
		slog.String("path", path),
		slog.Duration("duration", clip.Duration()),
		slog.Int("samples", len(clip.Samples)),
	)

	if len(clip.Samples) < e.spectro.WindowSize() {
		return clipResult{
			skip:  SkipTooShort,
			cause: fmt.Errorf("%w: %d samples, window is %d", features.ErrTooShort, len(clip.Samples), e.spectro.WindowSize()),
		}, nil
	}

	logMel, err := e.spectro.Extract(clip.Samples)
	if errors.Is(err, features.ErrTooShort) {
		return clipResult{skip: SkipTooShort, cause: err}, nil
	}
	if err != nil {
		return clipResult{}, err
	}

	logMel = features.Normalize(logMel, e.spectro.Config().Frames)
	delta, deltaDelta := features.Deltas(logMel)
	tensor, err := features.NewTensor(logMel, delta, deltaDelta)
	if err != nil {
		return clipResult{}, err
	}

	class, err := e.resolver.Resolve(path)
	if err != nil {
		return clipResult{skip: SkipLabel, cause: err}, nil
	}

	return clipResult{tensor: tensor, label: class}, nil
}
