package diag

// Severity defines the importance of a diagnostic. Ordering matters: the
// pipeline driver gates stage transitions on "any diagnostic at or above"
// a per-transition threshold, so Bug must compare highest.
type Severity uint8

const (
	// SevNote is for informational diagnostics.
	SevNote Severity = iota
	// SevWarning is for diagnostics that never stop a build.
	SevWarning
	// SevNonblockingError stops a build only once control flow is needed.
	SevNonblockingError
	// SevBlockingError stops a build before type checking.
	SevBlockingError
	// SevBug is an internal consistency violation in the compiler itself.
	SevBug
)

func (s Severity) String() string {
	switch s {
	case SevNote:
		return "note"
	case SevWarning:
		return "warning"
	case SevNonblockingError:
		return "error"
	case SevBlockingError:
		return "error"
	case SevBug:
		return "ICE"
	}
	return "unknown"
}
