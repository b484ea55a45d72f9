package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"

	"github.com/maauso/urbanmel/internal/bootstrap"
	"github.com/maauso/urbanmel/internal/config"
	"github.com/maauso/urbanmel/internal/driver"
	"github.com/maauso/urbanmel/internal/fold"
)

type extractFlags struct {
	configFile string
	datasetDir string
	outputDir  string
	folds      []int
	workers    int
	dtype      string
	ext        string
	progress   bool
	verbose    bool
}

func newExtractCmd() *cobra.Command {
	f := &extractFlags{}

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract log-mel features for every fold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExtract(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.configFile, "config", "c", "", "YAML config file applied over the environment")
	flags.StringVar(&f.datasetDir, "dataset-dir", "", "directory containing fold1 ... foldK")
	flags.StringVarP(&f.outputDir, "output-dir", "o", "", "directory for fold<k>_x.npy and fold<k>_y.npy")
	flags.IntSliceVar(&f.folds, "folds", nil, "folds to process (default 1..NUM_FOLDS)")
	flags.IntVarP(&f.workers, "workers", "w", 0, "folds processed in parallel")
	flags.StringVar(&f.dtype, "dtype", "", "feature dtype: float32 or float16")
	flags.StringVar(&f.ext, "ext", "", "audio file extension: .wav or .flac")
	flags.BoolVar(&f.progress, "progress", false, "show per-fold progress bars on stderr")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")

	return cmd
}

// resolveConfig layers environment, config file and flags.
func resolveConfig(cmd *cobra.Command, f *extractFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if f.configFile != "" {
		if err := cfg.ApplyFile(f.configFile); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("dataset-dir") {
		cfg.DatasetDir = f.datasetDir
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = f.outputDir
	}
	if flags.Changed("folds") {
		cfg.Folds = f.folds
	}
	if flags.Changed("workers") {
		cfg.Workers = f.workers
	}
	if flags.Changed("dtype") {
		cfg.DType = f.dtype
	}
	if flags.Changed("ext") {
		cfg.AudioExt = f.ext
	}
	if f.verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runExtract(cmd *cobra.Command, f *extractFlags) error {
	cfg, err := resolveConfig(cmd, f)
	if err != nil {
		return err
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	logger.Debug("configuration loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		observer fold.Observer
		progress *mpb.Progress
	)
	if f.progress {
		progress = mpb.NewWithContext(ctx, mpb.WithWidth(64), mpb.WithOutput(cmd.ErrOrStderr()))
		observer = newBarObserver(progress)
	}

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger, observer)
	if err != nil {
		return err
	}

	summary, runErr := deps.Driver.Run(ctx, cfg.FoldList())
	if progress != nil {
		progress.Wait()
	}

	tasks, err := deps.Tasks.List(ctx)
	if err != nil {
		return fmt.Errorf("list fold tasks: %w", err)
	}
	printSummary(cmd.OutOrStdout(), summary, tasks, deps.Storage.Dir())

	if runErr != nil {
		return fmt.Errorf("%d of %d folds failed: %w", len(summary.Failed()), len(summary.Results), runErr)
	}
	return nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	failedStyle = cellStyle.Foreground(lipgloss.Color("#ff5f5f"))
)

// printSummary renders one row per recorded fold task. Artifact paths come
// from the run results.
func printSummary(w io.Writer, summary driver.Summary, tasks []*fold.Task, outputDir string) {
	features := make(map[int]string, len(summary.Results))
	for _, r := range summary.Results {
		features[r.Fold] = r.Artifacts.FeaturesPath
	}

	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			strconv.Itoa(t.Fold),
			string(t.Status),
			strconv.Itoa(t.Total),
			strconv.Itoa(t.Processed),
			strconv.Itoa(t.SkippedTotal()),
			features[t.Fold],
			t.Error,
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("FOLD", "STATUS", "CLIPS", "PROCESSED", "SKIPPED", "FEATURES", "ERROR").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(tasks) && tasks[row].Status == fold.StatusFailed:
				return failedStyle
			default:
				return cellStyle
			}
		})

	_, _ = fmt.Fprintln(w, tbl.Render())
	_, _ = fmt.Fprintf(w, "artifacts in %s\n", outputDir)
	_, _ = fmt.Fprintf(w, "run %s finished in %s\n", summary.RunID, summary.Duration.Round(time.Millisecond))
}
