// Package driver runs fold extraction for many folds in parallel and joins
// the results.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/maauso/urbanmel/internal/dataset"
	"github.com/maauso/urbanmel/internal/fold"
	"github.com/maauso/urbanmel/internal/runid"
)

// DefaultWorkers matches the number of UrbanSound8K classes.
const DefaultWorkers = 10

// Options configures a Driver.
type Options struct {
	// DatasetDir contains fold1 ... foldK.
	DatasetDir string
	// Workers bounds how many folds run at once. Default: 10.
	Workers int
}

// FoldExtractor is the part of fold.Extractor the driver needs.
type FoldExtractor interface {
	Extract(ctx context.Context, task *fold.Task) (*fold.Batch, error)
}

// Persister is the part of dataset.Persister the driver needs.
type Persister interface {
	Persist(ctx context.Context, batch *fold.Batch) (dataset.Artifacts, error)
}

// Compile-time checks.
var (
	_ FoldExtractor = (*fold.Extractor)(nil)
	_ Persister     = (*dataset.Persister)(nil)
)

// Result is the outcome of a single fold.
type Result struct {
	Fold      int
	Task      *fold.Task
	Artifacts dataset.Artifacts
	Err       error
}

// Summary describes a finished run.
type Summary struct {
	RunID    string
	Results  []Result
	Duration time.Duration
}

// Failed returns the results whose fold failed.
func (s Summary) Failed() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Driver fans folds out to a bounded pool of workers.
type Driver struct {
	extractor FoldExtractor
	persister Persister
	repo      fold.Repository
	observer  fold.Observer
	opts      Options
	logger    *slog.Logger
}

// New creates a Driver. A nil logger uses slog.Default and a nil observer
// discards notifications.
func New(
	extractor FoldExtractor,
	persister Persister,
	repo fold.Repository,
	opts Options,
	logger *slog.Logger,
	observer fold.Observer,
) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = fold.NopObserver{}
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Driver{
		extractor: extractor,
		persister: persister,
		repo:      repo,
		observer:  observer,
		opts:      opts,
		logger:    logger,
	}
}

// Run processes every fold in folds and waits for all of them.
//
// Each fold fails independently: a failure is recorded in its Result and
// joined into the returned error, but never cancels other folds. Results are
// ordered by fold number.
func (d *Driver) Run(ctx context.Context, folds []int) (Summary, error) {
	start := time.Now()
	summary := Summary{RunID: runid.Generate()}
	logger := d.logger.With(slog.String("run_id", summary.RunID))

	if len(folds) == 0 {
		return summary, errors.New("no folds to process")
	}

	logger.Info("starting extraction",
		slog.String("dataset_dir", d.opts.DatasetDir),
		slog.Any("folds", folds),
		slog.Int("workers", d.opts.Workers),
	)

	results := make([]Result, len(folds))
	sem := make(chan struct{}, d.opts.Workers)
	var wg sync.WaitGroup

	for i, k := range folds {
		task := fold.NewTask(summary.RunID, k, fold.Dir(d.opts.DatasetDir, k))
		d.save(ctx, logger, task)

		wg.Add(1)
		go func(i int, task *fold.Task) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = d.runFold(ctx, logger, task)
		}(i, task)
	}

	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool { return results[i].Fold < results[j].Fold })
	summary.Results = results
	summary.Duration = time.Since(start)

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("fold %d: %w", r.Fold, r.Err))
		}
	}

	logger.Info("extraction finished",
		slog.Int("folds", len(results)),
		slog.Int("failed", len(errs)),
		slog.Duration("duration", summary.Duration),
	)

	return summary, errors.Join(errs...)
}

// runFold extracts and persists one fold.
func (d *Driver) runFold(ctx context.Context, logger *slog.Logger, task *fold.Task) (res Result) {
	res.Fold = task.Fold
	defer func() {
		res.Task = task.Clone()
		d.save(ctx, logger, task)
		d.observer.FoldFinished(task.Fold, res.Err)
	}()

	logger = logger.With(slog.Int("fold", task.Fold))
	logger.Info("processing fold", slog.String("dir", task.Dir))

	batch, err := d.extractor.Extract(ctx, task)
	if err != nil {
		logger.Error("fold extraction failed", slog.String("error", err.Error()))
		res.Err = err
		return res
	}

	art, err := d.persister.Persist(ctx, batch)
	if err != nil {
		_ = task.Fail(err.Error())
		logger.Error("fold persistence failed", slog.String("error", err.Error()))
		res.Err = err
		return res
	}

	if err := task.Complete(); err != nil {
		res.Err = err
		return res
	}

	res.Artifacts = art
	logger.Info("fold done",
		slog.String("status", string(task.GetStatus())),
		slog.Int("clips", art.Clips),
		slog.Int("skipped", task.SkippedTotal()),
		slog.String("features", art.FeaturesPath),
		slog.String("labels", art.LabelsPath),
	)
	return res
}

func (d *Driver) save(ctx context.Context, logger *slog.Logger, task *fold.Task) {
	if d.repo == nil {
		return
	}
	if err := d.repo.Save(context.WithoutCancel(ctx), task); err != nil {
		logger.Warn("failed to record task",
			slog.String("task_id", task.ID),
			slog.String("error", err.Error()),
		)
	}
}
