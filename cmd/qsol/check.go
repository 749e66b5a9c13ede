package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"qsol/internal/pipeline"
)

var checkCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Parse, elaborate, resolve, type-check, and validate a program",
	Long:  "Run every QSOL frontend stage through lowering and report diagnostics, without grounding any scenario or writing any artifact.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	pathArg := ""
	if len(args) == 1 {
		pathArg = args[0]
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

	if front.Bag.HasErrors() {
		return fmt.Errorf("check failed")
	}
	return nil
}
