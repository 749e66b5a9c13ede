package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"qsol/internal/diag"
	"qsol/internal/diagfmt"
	"qsol/internal/source"
)

// newRenderer builds a diagfmt.Renderer writing to stdout, honoring the
// root command's --color (auto|on|off) and --quiet persistent flags:
// --quiet discards diagnostic output entirely (a caller only wants the
// process exit code), matching cmd/surge's own quiet/color plumbing.
func newRenderer(cmd *cobra.Command, files *source.FileSet) (*diagfmt.Renderer, error) {
	colorMode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return nil, err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stdout
	if quiet {
		out = io.Discard
	}
	r := diagfmt.NewRenderer(files, out)
	switch colorMode {
	case "on":
		r.Color = true
	case "off":
		r.Color = false
	}
	return r, nil
}

// renderDiagnostics renders at most --max-diagnostics items, mirroring
// cmd/surge's own truncation of driver results at that flag: the
// remaining count is reported as a single trailing line rather than
// silently dropped, per spec.md §7's diagnostic-report format.
func renderDiagnostics(cmd *cobra.Command, r *diagfmt.Renderer, items []diag.Diagnostic) {
	max, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil || max <= 0 || len(items) <= max {
		for _, d := range items {
			r.Render(d)
		}
		return
	}
	for _, d := range items[:max] {
		r.Render(d)
	}
	fmt.Fprintf(r.Out, "... %d more diagnostic(s) omitted (--max-diagnostics=%d)\n", len(items)-max, max)
}
