package source

import (
	"fmt"
)

// FileID indexes a file registered in a FileSet. Zero is reserved for
// "no file" (synthetic locations).
type FileID uint32

const NoFile FileID = 0

// Span is a half-open byte range within a file.
type Span struct {
	File  FileID
	Start uint32
	End   uint32
}

func (s Span) Empty() bool {
	return s.Start == s.End
}

func (s Span) Len() uint32 {
	return s.End - s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d", s.File, s.Start, s.End)
}

// Cover extends s to include other. Spans from different files are not
// merged; s wins.
func (s Span) Cover(other Span) Span {
	if s.File != other.File {
		return s
	}
	if other.Start < s.Start {
		s.Start = other.Start
	}
	if other.End > s.End {
		s.End = other.End
	}
	return s
}

// Before orders spans by (file, start, end) for deterministic output.
func (s Span) Before(other Span) bool {
	if s.File != other.File {
		return s.File < other.File
	}
	if s.Start != other.Start {
		return s.Start < other.Start
	}
	return s.End < other.End
}

// Name is an identifier together with the span it was written at.
type Name struct {
	Value string
	Span  Span
}

func (n Name) String() string { return n.Value }

// Key returns a map key that ignores the span, since two mentions of the
// same identifier are the same name.
func (n Name) Key() string { return n.Value }
