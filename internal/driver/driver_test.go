package driver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/urbanmel/internal/audio"
	"github.com/maauso/urbanmel/internal/audio/audiotest"
	"github.com/maauso/urbanmel/internal/dataset"
	"github.com/maauso/urbanmel/internal/features"
	"github.com/maauso/urbanmel/internal/fold"
	"github.com/maauso/urbanmel/internal/label"
	"github.com/maauso/urbanmel/internal/storage"
)

const rate = 22050

// writeDataset creates fold1 and fold2 under a fresh directory. fold2 also
// holds an empty clip.
func writeDataset(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "audio")
	for k, clips := range map[int][]string{
		1: {"101-0-0-0.wav", "102-4-0-1.wav"},
		2: {"201-9-0-0.wav", "202-5-1-0.wav"},
	} {
		dir := fold.Dir(root, k)
		require.NoError(t, os.MkdirAll(dir, 0o750))
		for i, name := range clips {
			audiotest.WriteWAV(t, filepath.Join(dir, name), rate, audiotest.Sine(float64(300*(i+k)), rate, rate))
		}
	}
	audiotest.WriteWAV(t, filepath.Join(fold.Dir(root, 2), "203-1-0-0.wav"), rate)
	return root
}

func newTestDriver(t *testing.T, datasetDir, outDir string, workers int) (*Driver, *fold.MemoryRepository) {
	t.Helper()
	spectro, err := features.NewExtractor(features.DefaultExtractorConfig())
	require.NoError(t, err)
	ext := fold.NewExtractor(audio.NewFileLoader(), spectro, label.FoldFilename{NumClasses: 10}, fold.DefaultOptions(), nil, nil)

	store, err := storage.NewLocalStorage(outDir)
	require.NoError(t, err)
	persister, err := dataset.NewPersister(store, dataset.Options{NumClasses: 10, DType: dataset.Float32}, nil)
	require.NoError(t, err)

	repo := fold.NewMemoryRepository()
	return New(ext, persister, repo, Options{DatasetDir: datasetDir, Workers: workers}, nil, nil), repo
}

func TestDriver_Run(t *testing.T) {
	root := writeDataset(t)
	out := filepath.Join(t.TempDir(), "features")
	d, repo := newTestDriver(t, root, out, 2)

	summary, err := d.Run(context.Background(), []int{2, 1})
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, 1, summary.Results[0].Fold)
	assert.Equal(t, 2, summary.Results[1].Fold)
	assert.Empty(t, summary.Failed())

	for _, r := range summary.Results {
		require.NotNil(t, r.Task, "fold %d has no task snapshot", r.Fold)
		assert.Equal(t, fold.StatusDone, r.Task.Status)
		assert.Equal(t, 2, r.Artifacts.Clips)
		assert.FileExists(t, filepath.Join(out, dataset.FeaturesName(r.Fold)))
		assert.FileExists(t, filepath.Join(out, dataset.LabelsName(r.Fold)))
	}
	assert.Equal(t, 1, summary.Results[1].Task.SkippedTotal())

	tasks, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Equal(t, fold.StatusDone, task.Status)
	}

	f, err := os.Open(filepath.Join(out, dataset.FeaturesName(2)))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	h, err := dataset.ReadHeader(f)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 60, 41, 3}, h.Shape)
}

func TestDriver_Run_Deterministic(t *testing.T) {
	root := writeDataset(t)
	outA := filepath.Join(t.TempDir(), "a")
	outB := filepath.Join(t.TempDir(), "b")

	dA, _ := newTestDriver(t, root, outA, 2)
	dB, _ := newTestDriver(t, root, outB, 1)
	_, err := dA.Run(context.Background(), []int{1, 2})
	require.NoError(t, err)
	_, err = dB.Run(context.Background(), []int{1, 2})
	require.NoError(t, err)

	for _, k := range []int{1, 2} {
		for _, name := range []string{dataset.FeaturesName(k), dataset.LabelsName(k)} {
			a, err := os.ReadFile(filepath.Join(outA, name))
			require.NoError(t, err)
			b, err := os.ReadFile(filepath.Join(outB, name))
			require.NoError(t, err)
			assert.Equal(t, a, b, "%s differs between runs", name)
		}
	}
}

func TestDriver_Run_RerunSameOutputIsIdentical(t *testing.T) {
	root := writeDataset(t)
	out := filepath.Join(t.TempDir(), "features")

	read := func() map[string][]byte {
		files := make(map[string][]byte)
		for _, k := range []int{1, 2} {
			for _, name := range []string{dataset.FeaturesName(k), dataset.LabelsName(k)} {
				data, err := os.ReadFile(filepath.Join(out, name))
				require.NoError(t, err)
				files[name] = data
			}
		}
		return files
	}

	d, _ := newTestDriver(t, root, out, 2)
	_, err := d.Run(context.Background(), []int{1, 2})
	require.NoError(t, err)
	first := read()

	d, _ = newTestDriver(t, root, out, 2)
	_, err = d.Run(context.Background(), []int{1, 2})
	require.NoError(t, err)
	second := read()

	assert.Equal(t, first, second)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 4, "re-run left extra files behind")
}

func TestDriver_Run_MissingFoldDoesNotStopOthers(t *testing.T) {
	root := writeDataset(t)
	out := t.TempDir()
	d, _ := newTestDriver(t, root, out, 3)

	summary, err := d.Run(context.Background(), []int{1, 2, 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fold 3")

	require.Len(t, summary.Results, 3)
	failed := summary.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, 3, failed[0].Fold)
	assert.Equal(t, fold.StatusFailed, failed[0].Task.Status)

	assert.FileExists(t, filepath.Join(out, dataset.FeaturesName(1)))
	assert.FileExists(t, filepath.Join(out, dataset.FeaturesName(2)))
	assert.NoFileExists(t, filepath.Join(out, dataset.FeaturesName(3)))
	assert.NoFileExists(t, filepath.Join(out, dataset.LabelsName(3)))
}

func TestDriver_Run_NoFolds(t *testing.T) {
	d, _ := newTestDriver(t, t.TempDir(), t.TempDir(), 1)
	_, err := d.Run(context.Background(), nil)
	assert.Error(t, err)
}

// stubExtractor returns an empty batch after a short delay and records how
// many calls overlap.
type stubExtractor struct {
	active  atomic.Int32
	maxSeen atomic.Int32
	failOn  int
}

func (s *stubExtractor) Extract(_ context.Context, task *fold.Task) (*fold.Batch, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		m := s.maxSeen.Load()
		if n <= m || s.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)

	_ = task.Start()
	_ = task.BeginExtract(0)
	if task.Fold == s.failOn {
		_ = task.Fail("boom")
		return nil, errors.New("boom")
	}
	_ = task.BeginAssemble()
	return &fold.Batch{Fold: task.Fold, Bands: 1, Frames: 1}, nil
}

type stubPersister struct {
	mu     sync.Mutex
	folds  []int
	failOn int
}

func (p *stubPersister) Persist(_ context.Context, batch *fold.Batch) (dataset.Artifacts, error) {
	if batch.Fold == p.failOn {
		return dataset.Artifacts{}, dataset.ErrStorage
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.folds = append(p.folds, batch.Fold)
	return dataset.Artifacts{Fold: batch.Fold}, nil
}

type countingObserver struct {
	fold.NopObserver
	finished atomic.Int32
}

func (o *countingObserver) FoldFinished(int, error) {
	o.finished.Add(1)
}

func TestDriver_Run_BoundsWorkers(t *testing.T) {
	ext := &stubExtractor{}
	obs := &countingObserver{}
	d := New(ext, &stubPersister{}, nil, Options{Workers: 3}, nil, obs)

	folds := []int{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}
	summary, err := d.Run(context.Background(), folds)
	require.NoError(t, err)

	assert.LessOrEqual(t, ext.maxSeen.Load(), int32(3))
	assert.Equal(t, int32(10), obs.finished.Load())
	for i, r := range summary.Results {
		assert.Equal(t, i+1, r.Fold)
		require.NotNil(t, r.Task)
		assert.Equal(t, r.Fold, r.Task.Fold)
	}
}

func TestDriver_Run_FoldFailures(t *testing.T) {
	ext := &stubExtractor{failOn: 2}
	persister := &stubPersister{failOn: 3}
	d := New(ext, persister, fold.NewMemoryRepository(), Options{}, nil, nil)

	summary, err := d.Run(context.Background(), []int{1, 2, 3, 4})
	require.Error(t, err)
	assert.ErrorIs(t, err, dataset.ErrStorage)

	assert.Equal(t, fold.StatusDone, summary.Results[0].Task.Status)
	assert.Equal(t, fold.StatusFailed, summary.Results[1].Task.Status)
	assert.Equal(t, fold.StatusFailed, summary.Results[2].Task.Status)
	assert.Equal(t, fold.StatusDone, summary.Results[3].Task.Status)
	assert.Len(t, summary.Failed(), 2)
	assert.ElementsMatch(t, []int{1, 4}, persister.folds)
}
