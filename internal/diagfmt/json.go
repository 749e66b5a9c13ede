package diagfmt

import (
	"encoding/json"
	"io"

	"qsol/internal/diag"
	"qsol/internal/source"
)

// jsonDiagnostic is the wire shape of one entry in explain.json's
// `diagnostics` array (spec.md §6).
type jsonDiagnostic struct {
	Severity string       `json:"severity"`
	Code     string       `json:"code"`
	Message  string       `json:"message"`
	Span     jsonLocation `json:"span"`
	Notes    []jsonNote   `json:"notes,omitempty"`
	Help     []string     `json:"help,omitempty"`
}

type jsonLocation struct {
	File string `json:"file"`
	Line uint32 `json:"line"`
	Col  uint32 `json:"col"`
}

type jsonNote struct {
	Message string       `json:"message"`
	Span    jsonLocation `json:"span"`
}

// DiagnosticsDocument is explain.json's top-level shape.
type DiagnosticsDocument struct {
	Diagnostics []jsonDiagnostic `json:"diagnostics"`
}

// BuildDiagnosticsDocument converts a bag into explain.json's document,
// resolving spans to line/col via the FileSet the way diagfmt.Render does.
func BuildDiagnosticsDocument(bag *diag.Bag, files *source.FileSet) DiagnosticsDocument {
	items := bag.Items()
	out := make([]jsonDiagnostic, 0, len(items))
	for _, d := range items {
		out = append(out, jsonDiagnostic{
			Severity: d.Severity.String(),
			Code:     string(d.Code),
			Message:  d.Message,
			Span:     resolveLocation(files, d.Primary),
			Notes:    buildNotes(files, d.Notes),
			Help:     d.Help,
		})
	}
	return DiagnosticsDocument{Diagnostics: out}
}

func buildNotes(files *source.FileSet, notes []diag.Note) []jsonNote {
	if len(notes) == 0 {
		return nil
	}
	out := make([]jsonNote, 0, len(notes))
	for _, n := range notes {
		out = append(out, jsonNote{Message: n.Msg, Span: resolveLocation(files, n.Span)})
	}
	return out
}

func resolveLocation(files *source.FileSet, span source.Span) jsonLocation {
	file := files.Get(span.File)
	start, _ := files.Resolve(span)
	path := ""
	if file != nil {
		path = file.Path
	}
	return jsonLocation{File: path, Line: start.Line, Col: start.Col}
}

// WriteJSON writes explain.json's document to w.
func WriteJSON(w io.Writer, bag *diag.Bag, files *source.FileSet) error {
	doc := BuildDiagnosticsDocument(bag, files)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
