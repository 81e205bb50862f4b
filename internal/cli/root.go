// Package cli implements oilspill-cli, which drives a standalone processing
// machine from the terminal.
package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// NewRootCommand creates the root command
func NewRootCommand(version, commit, date string) *cobra.Command {
	var noColor bool

	rootCmd := &cobra.Command{
		Use:   "oilspill-cli",
		Short: "Run the oil spill detection pipeline from the terminal",
		Long: `oilspill-cli loads a satellite image into a local processing machine and
plays out the detection pipeline, printing every log entry as it happens.

No server or database is needed.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newRunCommand(&noColor))
	rootCmd.AddCommand(newStepsCommand())
	rootCmd.AddCommand(newHashPasswordCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, date))

	return rootCmd
}

func newVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			if version == "dev" || version == "" {
				version = "development"
			}
			if commit == "none" || commit == "" {
				commit = "local-build"
			}
			if date == "unknown" || date == "" {
				date = "local-build"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "oilspill-cli %s (%s) built on %s\n", version, commit, date)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
