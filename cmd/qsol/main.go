// Package main implements the qsol CLI: a thin cobra front end over
// internal/pipeline, grounded on cmd/surge/main.go's root-command shape
// (persistent flags for color/quiet/timings/max-diagnostics, one
// subcommand per file, rootCmd.Version wired at startup).
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var qsolVersion = "dev"

var rootCmd = &cobra.Command{
	Use:   "qsol",
	Short: "QSOL compiler and solver dispatcher",
	Long:  "QSOL compiles declarative combinatorial-optimization models to CQM/BQM and dispatches them to solver runtimes.",
}

func main() {
	rootCmd.Version = qsolVersion

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize diagnostic output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show stage timing information")
	rootCmd.PersistentFlags().Int("max-diagnostics", 100, "maximum number of diagnostics to render")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
