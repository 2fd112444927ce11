package diag

import (
	"sort"
)

// Bag accumulates diagnostics for one compilation. Nothing is ever dropped
// silently; the only removal is the explicit TakeFinalWarnings, which
// separates warnings accompanying a successful build from hard failures.
// Not safe for concurrent use.
type Bag struct {
	items []Diagnostic
}

func NewBag() *Bag {
	return &Bag{}
}

func (b *Bag) Add(d Diagnostic) {
	b.items = append(b.items, d)
}

func (b *Bag) AddAll(other *Bag) {
	if other == nil {
		return
	}
	b.items = append(b.items, other.items...)
}

func (b *Bag) Len() int {
	return len(b.items)
}

func (b *Bag) IsEmpty() bool {
	return len(b.items) == 0
}

// Items returns the internal slice; callers must not modify it.
func (b *Bag) Items() []Diagnostic {
	return b.items
}

// HasAtOrAbove reports whether any diagnostic meets the severity threshold.
// Non-consuming; used by the pipeline driver between stage transitions.
func (b *Bag) HasAtOrAbove(sev Severity) bool {
	for i := range b.items {
		if b.items[i].Severity >= sev {
			return true
		}
	}
	return false
}

func (b *Bag) CountAtOrAbove(sev Severity) int {
	n := 0
	for i := range b.items {
		if b.items[i].Severity >= sev {
			n++
		}
	}
	return n
}

// TakeFinalWarnings removes and returns every diagnostic at warning level or
// above that is below blocking severity. Called once at the final stage
// transition so a successful build can still carry its warnings.
func (b *Bag) TakeFinalWarnings() *Bag {
	warnings := NewBag()
	kept := b.items[:0]
	for _, d := range b.items {
		if d.Severity >= SevWarning && d.Severity < SevBlockingError {
			warnings.Add(d)
		} else {
			kept = append(kept, d)
		}
	}
	b.items = kept
	return warnings
}

// Sort orders by file, start, end, then severity descending and code. Output
// order is a quality-of-life property, not a correctness contract.
func (b *Bag) Sort() {
	sort.SliceStable(b.items, func(i, j int) bool {
		di, dj := b.items[i], b.items[j]
		if di.Primary != dj.Primary {
			return di.Primary.Before(dj.Primary)
		}
		if di.Severity != dj.Severity {
			return di.Severity > dj.Severity
		}
		return di.Code.String() < dj.Code.String()
	})
}
