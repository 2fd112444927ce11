package diag

import (
	"mica/internal/source"
)

// Note is a secondary annotation pointing at a related location.
type Note struct {
	Span source.Span
	Msg  string
}

// Diagnostic is one compiler message: a severity, a code, a primary
// location and message, and zero or more secondary notes.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  source.Span
	Notes    []Note
}

// New builds a diagnostic with the severity fixed by its code.
func New(code Code, primary source.Span, msg string) Diagnostic {
	return Diagnostic{
		Severity: code.Severity(),
		Code:     code,
		Message:  msg,
		Primary:  primary,
	}
}

func (d Diagnostic) WithNote(sp source.Span, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Span: sp, Msg: msg})
	return d
}
