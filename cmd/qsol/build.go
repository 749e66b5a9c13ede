package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"qsol/internal/artifacts"
	"qsol/internal/pipeline"
)

var buildCmd = &cobra.Command{
	Use:   "build [path]",
	Short: "Compile a program through the lowerer and persist its diagnostics",
	Long:  "Run every QSOL frontend stage through lowering and write explain.json/qsol.log under --out, without grounding any scenario.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().String("out", "qsol-out", "directory to write explain.json and qsol.log into")
}

func runBuild(cmd *cobra.Command, args []string) error {
	pathArg := ""
	if len(args) == 1 {
		pathArg = args[0]
	}
	outDir, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	rootPath, _, _, err := resolveRoot(pathArg)
	if err != nil {
		return err
	}

	front := pipeline.Compile(cmd.Context(), rootPath)
	renderer, err := newRenderer(cmd, front.Files)
	if err != nil {
		return err
	}
	renderDiagnostics(cmd, renderer, front.Bag.Items())
	renderer.Summary(front.Bag)

	if err := artifacts.EnsureDir(outDir); err != nil {
		return err
	}
	if err := artifacts.WriteExplain(outDir, front.Bag, front.Files); err != nil {
		return err
	}
	if err := artifacts.WriteLog(outDir, front.Bag, front.Files); err != nil {
		return err
	}

	if front.IR == nil {
		return fmt.Errorf("build failed")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "compiled %d problem(s)\n", len(front.IR.Problems))
	return nil
}
