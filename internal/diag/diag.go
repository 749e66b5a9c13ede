// Package diag implements QSOL's stable diagnostic taxonomy: spans,
// severities, the fixed QSOL1xxx..QSOL5xxx codes, and an accumulating
// collector used by every compiler stage.
package diag

import (
	"fmt"
	"sort"

	"qsol/internal/source"
)

// Code is one of the stable diagnostic codes fixed by the external
// interface contract (spec.md §6). Unlike the teacher compiler's family-
// encoded uint16 codes, QSOL's codes are the literal strings callers and
// tests match against.
type Code string

const (
	CodeParse               Code = "QSOL1001"
	CodeUnknownIdent        Code = "QSOL2001"
	CodeDuplicateDecl       Code = "QSOL2002"
	CodeShape               Code = "QSOL2101"
	CodeScenarioShape       Code = "QSOL2201"
	CodeUnsupportedBackend  Code = "QSOL3001"
	CodeConfigAmbiguous     Code = "QSOL4002"
	CodeFileRead            Code = "QSOL4003"
	CodeConfigInvalid       Code = "QSOL4004"
	CodeSelectionUnresolved Code = "QSOL4006"
	CodeUnknownTargetID     Code = "QSOL4007"
	CodeIncompatiblePair    Code = "QSOL4008"
	CodePluginLoad          Code = "QSOL4009"
	CodeUnsupportedCap      Code = "QSOL4010"
	CodeRuntimeExecution    Code = "QSOL5001"
	CodeRuntimePolicy       Code = "QSOL5002"
)

// Severity is the importance of a diagnostic.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "info"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	}
	return "unknown"
}

// Note is a secondary annotation attached to a diagnostic, usually
// pointing at a different span than the primary one.
type Note struct {
	Span source.Span
	Msg  string
}

// Diagnostic is one reported problem, always tied to exactly one primary
// span per the data model in spec.md §3.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  source.Span
	Notes    []Note
	Help     []string
}

// Bag accumulates diagnostics for one compilation unit. Diagnostics are
// collected, never thrown, so every stage can report as many problems as
// it finds before the pipeline halts (spec.md §7).
type Bag struct {
	items []Diagnostic
}

// NewBag creates an empty diagnostic bag.
func NewBag() *Bag { return &Bag{} }

// Add appends a diagnostic.
func (b *Bag) Add(d Diagnostic) { b.items = append(b.items, d) }

// Errorf is a convenience for reporting a plain error diagnostic.
func (b *Bag) Errorf(code Code, span source.Span, format string, args ...any) {
	b.Add(Diagnostic{Severity: SevError, Code: code, Message: fmt.Sprintf(format, args...), Primary: span})
}

// HasErrors reports whether any accumulated diagnostic is error severity.
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Severity == SevError {
			return true
		}
	}
	return false
}

// Len is the number of accumulated diagnostics.
func (b *Bag) Len() int { return len(b.items) }

// Items returns the accumulated diagnostics; callers must not mutate the
// backing slice.
func (b *Bag) Items() []Diagnostic { return b.items }

// Merge appends another bag's diagnostics onto this one.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	b.items = append(b.items, other.items...)
}

// Sort orders diagnostics deterministically: by file, then span start,
// then span end, then severity (errors first), then code.
func (b *Bag) Sort() {
	sort.SliceStable(b.items, func(i, j int) bool {
		di, dj := b.items[i], b.items[j]
		if di.Primary.File != dj.Primary.File {
			return di.Primary.File < dj.Primary.File
		}
		if di.Primary.Start != dj.Primary.Start {
			return di.Primary.Start < dj.Primary.Start
		}
		if di.Primary.End != dj.Primary.End {
			return di.Primary.End < dj.Primary.End
		}
		if di.Severity != dj.Severity {
			return di.Severity > dj.Severity
		}
		return di.Code < dj.Code
	})
}

// Dedup removes diagnostics that repeat an earlier (code, span) pair.
func (b *Bag) Dedup() {
	seen := make(map[string]bool, len(b.items))
	out := make([]Diagnostic, 0, len(b.items))
	for _, d := range b.items {
		key := string(d.Code) + ":" + d.Primary.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	b.items = out
}

// Reporter is the narrow interface pipeline stages report through,
// allowing a single Bag or a fan-out to several bags (e.g. per-scenario).
type Reporter interface {
	Report(d Diagnostic)
}

// BagReporter reports directly into a Bag.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(d Diagnostic) { r.Bag.Add(d) }

// ReportBuilder accumulates optional notes/help before emitting.
type ReportBuilder struct {
	reporter Reporter
	diag     Diagnostic
}

// NewReportBuilder starts building a diagnostic bound to a reporter.
func NewReportBuilder(r Reporter, sev Severity, code Code, primary source.Span, msg string) *ReportBuilder {
	return &ReportBuilder{reporter: r, diag: Diagnostic{Severity: sev, Code: code, Message: msg, Primary: primary}}
}

// Error starts an error-severity diagnostic.
func Error(r Reporter, code Code, primary source.Span, msg string) *ReportBuilder {
	return NewReportBuilder(r, SevError, code, primary, msg)
}

// Note attaches a secondary note.
func (rb *ReportBuilder) Note(span source.Span, msg string) *ReportBuilder {
	rb.diag.Notes = append(rb.diag.Notes, Note{Span: span, Msg: msg})
	return rb
}

// Help attaches a help string.
func (rb *ReportBuilder) Help(msg string) *ReportBuilder {
	rb.diag.Help = append(rb.diag.Help, msg)
	return rb
}

// Emit reports the built diagnostic.
func (rb *ReportBuilder) Emit() {
	rb.reporter.Report(rb.diag)
}
