// Package langserver adapts this interpreter's front two passes
// (typecheck, borrowck) into an LSP diagnostics server. Grounded on the
// teacher's server/document.go + server/server.go: one Document per open
// file, re-lexed/parsed/checked on every change, diagnostics published
// through a callback rather than held for a request/response round trip.
package langserver

import (
	"github.com/ribbc/ribbon/internal/ast"
	"github.com/ribbc/ribbon/internal/borrowck"
	"github.com/ribbc/ribbon/internal/parser"
	"github.com/ribbc/ribbon/internal/typecheck"
)

// Severity mirrors the teacher's analysis.Severity enum, narrowed: this
// language's two checking passes only ever produce errors, never
// warnings/info/hints (there is no lint layer here), but the type stays
// so publishDiagnostics has somewhere to read severity from regardless.
type Severity int

const (
	SeverityError Severity = iota
)

// Diagnostic is one problem found in a document. Line is 1-based,
// matching ast.Position; this language's errors don't carry an end
// position, so a Diagnostic always spans the whole offending line.
type Diagnostic struct {
	Severity Severity
	Line     int
	Message  string
}

// Document is one file the client has open.
type Document struct {
	URI         string
	Version     int
	Content     string
	Crate       *ast.Crate
	Diagnostics []Diagnostic
}

// Parse lexes, parses, type-checks, and borrow-checks the document's
// current content, replacing Diagnostics with whatever the first
// failing pass reports (every pass here is fail-fast-on-first-error).
func (d *Document) Parse() {
	d.Diagnostics = nil

	crate, err := parser.Parse(d.Content)
	if err != nil {
		d.Diagnostics = append(d.Diagnostics, diagnosticFromError(err))
		return
	}

	d.Crate = crate

	typed, err := typecheck.Check(crate)
	if err != nil {
		d.Diagnostics = append(d.Diagnostics, diagnosticFromError(err))
		return
	}

	if err := borrowck.Check(crate, typed); err != nil {
		d.Diagnostics = append(d.Diagnostics, diagnosticFromError(err))
	}
}

// Update replaces the document's content and re-checks it.
func (d *Document) Update(content string, version int) {
	d.Content = content
	d.Version = version
	d.Parse()
}

// diagnosticFromError pulls a line number out of whichever pass failed.
// typecheck.Error, borrowck.Error, and parser.Error all carry one, but
// they don't share an interface for it, so this type-switches.
func diagnosticFromError(err error) Diagnostic {
	line := 0

	switch e := err.(type) {
	case *typecheck.Error:
		line = e.Line
	case *borrowck.Error:
		line = e.Line
	case *parser.Error:
		line = e.Line
	}

	return Diagnostic{Severity: SeverityError, Line: line, Message: err.Error()}
}
