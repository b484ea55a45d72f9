// Package cli implements the urbanmel command line.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the urbanmel command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "urbanmel",
		Short: "Log-mel feature extraction for fold-partitioned sound datasets",
		Long: `urbanmel - turns UrbanSound8K style datasets into NumPy feature arrays.

Each fold directory <dataset>/fold<k> is decoded, converted to 60-band log-mel
spectrograms with delta and delta-delta channels, and written as
fold<k>_x.npy (N, bands, frames, 3) and fold<k>_y.npy (N, classes).

Settings come from environment variables, an optional YAML file (--config)
and flags, in increasing order of precedence.

Examples:
  # Extract all ten folds with the default settings
  urbanmel extract --dataset-dir UrbanSound8K/audio --output-dir features

  # Re-run two folds in half precision with progress bars
  urbanmel extract --folds 3,7 --dtype float16 --progress

  # Check how file names map to classes
  urbanmel labels UrbanSound8K/audio/fold3/7061-6-0-0.wav`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newExtractCmd())
	root.AddCommand(newLabelsCmd())
	root.AddCommand(newInspectCmd())
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
