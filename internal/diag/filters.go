package diag

// Filter names recognized by the built-in allow attribute.
const (
	FilterAll          = "all"
	FilterUnused       = "unused"
	FilterUnusedAlias  = "unused_alias"
	FilterUnusedUseFun = "unused_use_fun"
)

// FilterKind discriminates how wide a suppression entry applies.
type FilterKind uint8

const (
	FilterKindAll FilterKind = iota
	FilterKindCategory
	FilterKindCode
)

// WarningFilter is one suppression entry: everything, a whole category, or a
// single code. Prefix names the attribute that introduced the entry ("" for
// the built-in allow attribute); matching ignores it, display keeps it.
type WarningFilter struct {
	Prefix   string
	Kind     FilterKind
	Category Category
	Code     Code
	Name     string
}

// WarningFilters is the suppression set attached to one declaration. The set
// for a dependency-origin declaration filters everything regardless of its
// own attributes.
type WarningFilters struct {
	forDependency bool
	all           bool
	categories    map[Category]struct{}
	codes         map[Code]struct{}
}

func NewWarningFiltersSource() *WarningFilters {
	return &WarningFilters{
		categories: make(map[Category]struct{}),
		codes:      make(map[Code]struct{}),
	}
}

func NewWarningFiltersDependency() *WarningFilters {
	wf := NewWarningFiltersSource()
	wf.forDependency = true
	return wf
}

func (wf *WarningFilters) Add(f WarningFilter) {
	switch f.Kind {
	case FilterKindAll:
		wf.all = true
	case FilterKindCategory:
		wf.categories[f.Category] = struct{}{}
	case FilterKindCode:
		wf.codes[f.Code] = struct{}{}
	}
}

func (wf *WarningFilters) Union(other *WarningFilters) {
	if other == nil {
		return
	}
	wf.forDependency = wf.forDependency || other.forDependency
	wf.all = wf.all || other.all
	for c := range other.categories {
		wf.categories[c] = struct{}{}
	}
	for c := range other.codes {
		wf.codes[c] = struct{}{}
	}
}

// Clone returns an independent copy; filter sets are both stored on the
// produced AST and pushed onto the active scope stack.
func (wf *WarningFilters) Clone() *WarningFilters {
	out := NewWarningFiltersSource()
	out.Union(wf)
	return out
}

// IsFiltered reports whether the diagnostic is suppressed by this set.
// Only warning-level diagnostics are ever suppressible.
func (wf *WarningFilters) IsFiltered(d Diagnostic) bool {
	if d.Severity > SevWarning {
		return false
	}
	if wf.forDependency || wf.all {
		return true
	}
	if _, ok := wf.categories[d.Code.Category]; ok {
		return true
	}
	_, ok := wf.codes[d.Code]
	return ok
}

// KnownFilters resolves a filter identifier from an allow attribute into
// concrete entries. An empty result means the identifier is unknown.
func KnownFilters(prefix, name string) []WarningFilter {
	switch name {
	case FilterAll:
		return []WarningFilter{{Prefix: prefix, Kind: FilterKindAll, Name: name}}
	case FilterUnused:
		return []WarningFilter{{Prefix: prefix, Kind: FilterKindCategory, Category: CategoryUnusedItem, Name: name}}
	case FilterUnusedAlias:
		return []WarningFilter{{Prefix: prefix, Kind: FilterKindCode, Code: UnusedItemAlias, Name: name}}
	case FilterUnusedUseFun:
		return []WarningFilter{{Prefix: prefix, Kind: FilterKindCode, Code: UnusedItemUseFun, Name: name}}
	default:
		return nil
	}
}
