package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maauso/urbanmel/internal/dataset"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.npy>...",
		Short: "Print the dtype and shape of .npy artifacts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, p := range args {
				h, err := readHeader(p)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "%s\t%s\t%v\n", p, h.Descr, h.Shape)
			}
			return nil
		},
	}
}

func readHeader(path string) (dataset.Header, error) {
	f, err := os.Open(path) // #nosec G304 - path is given by the operator
	if err != nil {
		return dataset.Header{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h, err := dataset.ReadHeader(f)
	if err != nil {
		return dataset.Header{}, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}
