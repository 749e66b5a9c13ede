// Package diagfmt renders diag.Diagnostic values as the textual reports
// described in spec.md §7: a primary header, a file:line:col location, a
// source excerpt with carets under the span, and any notes/help.
package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
	"golang.org/x/text/width"

	"qsol/internal/diag"
	"qsol/internal/source"
)

// Renderer writes diagnostics to an io.Writer, optionally colorized.
type Renderer struct {
	Files *source.FileSet
	Out   io.Writer
	Color bool
}

// NewRenderer builds a Renderer, auto-detecting color support from the
// output stream the way cmd/qsol wires it for both stdout and file logs.
func NewRenderer(files *source.FileSet, out io.Writer) *Renderer {
	useColor := false
	if f, ok := out.(interface{ Fd() uintptr }); ok {
		useColor = term.IsTerminal(int(f.Fd()))
	}
	return &Renderer{Files: files, Out: out, Color: useColor}
}

var (
	errorColor = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow, color.Bold)
	infoColor  = color.New(color.FgCyan, color.Bold)
	dimColor   = color.New(color.FgHiBlack)
)

func (r *Renderer) sevColor(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return errorColor
	case diag.SevWarning:
		return warnColor
	default:
		return infoColor
	}
}

func (r *Renderer) paint(c *color.Color, s string) string {
	if !r.Color {
		return s
	}
	return c.Sprint(s)
}

// Render writes one diagnostic's full report.
func (r *Renderer) Render(d diag.Diagnostic) {
	header := fmt.Sprintf("%s[%s]: %s", d.Severity, d.Code, d.Message)
	fmt.Fprintln(r.Out, r.paint(r.sevColor(d.Severity), header))

	file := r.Files.Get(d.Primary.File)
	start, _ := r.Files.Resolve(d.Primary)
	fmt.Fprintf(r.Out, "  --> %s:%d:%d\n", file.Path, start.Line, start.Col)

	r.renderExcerpt(file, d.Primary, start)

	for _, n := range d.Notes {
		nf := r.Files.Get(n.Span.File)
		ns, _ := r.Files.Resolve(n.Span)
		fmt.Fprintf(r.Out, "  %s: %s (%s:%d:%d)\n", r.paint(dimColor, "note"), n.Msg, nf.Path, ns.Line, ns.Col)
	}
	for _, h := range d.Help {
		fmt.Fprintf(r.Out, "  %s: %s\n", r.paint(dimColor, "help"), h)
	}
}

func (r *Renderer) renderExcerpt(file *source.File, span source.Span, start source.LineCol) {
	line := file.Line(start.Line)
	fmtFprintfLine(r.Out, start.Line, line)

	// Caret column accounts for multi-width runes so the caret lands
	// under the first byte of the span even with wide characters
	// preceding it in the source line.
	prefixWidth := 0
	byteCol := 0
	for _, rn := range line {
		if uint32(byteCol) >= start.Col-1 {
			break
		}
		prefixWidth += runeDisplayWidth(rn)
		byteCol += len(string(rn))
	}
	caretLen := 1
	if span.End > span.Start {
		caretLen = int(span.End - span.Start)
		if caretLen > runewidth.StringWidth(line)-prefixWidth {
			caretLen = max(1, runewidth.StringWidth(line)-prefixWidth)
		}
	}
	fmt.Fprintln(r.Out, "      "+strings.Repeat(" ", prefixWidth)+strings.Repeat("^", caretLen))
}

// fmt.Fprintln with a gutter showing the line number, factored out so the
// gutter width stays consistent between the excerpt and any future
// multi-line rendering.
func fmtFprintfLine(w io.Writer, lineNum uint32, text string) {
	fmt.Fprintf(w, "%5d | %s\n", lineNum, text)
}

// runeDisplayWidth combines go-runewidth with x/text/width's East-Asian
// width classification: runewidth already handles most cases, but
// ambiguous-width runes are treated as wide only when width.LookupRune
// reports a fullwidth or wide kind, avoiding over-wide carets on terminals
// that render ambiguous runes as narrow.
func runeDisplayWidth(r rune) int {
	if p := width.LookupRune(r); p.Kind() == width.EastAsianWide || p.Kind() == width.EastAsianFullwidth {
		return 2
	}
	return runewidth.RuneWidth(r)
}

// Summary writes the final error/warning counts described in spec.md §7.
func (r *Renderer) Summary(bag *diag.Bag) {
	errs, warns := 0, 0
	for _, d := range bag.Items() {
		switch d.Severity {
		case diag.SevError:
			errs++
		case diag.SevWarning:
			warns++
		}
	}
	fmt.Fprintf(r.Out, "%d error(s), %d warning(s)\n", errs, warns)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
