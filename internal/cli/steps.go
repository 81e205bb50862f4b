package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vrsandeep/oilspill-go/internal/processing"
)

func newStepsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List the pipeline stages and their delays",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			steps := processing.DefaultScript()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tDELAY\tMESSAGE")
			for i, s := range steps {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, s.Delay, s.Message)
			}
			tw.Flush()
			fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %s\n", processing.ScriptDuration(steps))
		},
	}
}
