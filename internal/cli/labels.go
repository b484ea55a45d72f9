package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maauso/urbanmel/internal/label"
)

func newLabelsCmd() *cobra.Command {
	var classes int

	cmd := &cobra.Command{
		Use:   "labels <path>...",
		Short: "Print the class id encoded in each file name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := label.FoldFilename{NumClasses: classes}
			out := cmd.OutOrStdout()

			failed := 0
			for _, p := range args {
				class, err := resolver.Resolve(p)
				if err != nil {
					failed++
					_, _ = fmt.Fprintf(out, "%s\terror: %v\n", p, err)
					continue
				}
				_, _ = fmt.Fprintf(out, "%s\t%d\n", p, class)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d paths have no class id", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&classes, "classes", 10, "number of classes; ids must fall in [0, classes)")
	return cmd
}
