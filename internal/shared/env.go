package shared

import (
	"fmt"

	"mica/internal/diag"
	"mica/internal/source"
)

// AllowAttribute is the built-in warning suppression attribute name.
const AllowAttribute = "allow"

// PackageConfig carries the per-package options visible to translation.
type PackageConfig struct {
	// IsDependency marks the whole package as dependency-origin: its
	// warnings are never emitted, though its attributes are still
	// validated.
	IsDependency bool
	// WarningFilter is the package-wide default suppression set, unioned
	// into every module's own filters.
	WarningFilter *diag.WarningFilters
	// DisabledFeatures turns off individual feature gates.
	DisabledFeatures []Feature
}

func (c *PackageConfig) supports(f Feature) bool {
	for _, d := range c.DisabledFeatures {
		if d == f {
			return false
		}
	}
	return true
}

// PackagePaths is one named group of files sharing an address map.
type PackagePaths struct {
	Name            string // "" for anonymous groups
	Config          *PackageConfig
	Paths           []string
	NamedAddressMap NamedAddressMap
}

// IndexedPackagePath is one path bound to its package and address map.
type IndexedPackagePath struct {
	Package         string
	Path            string
	NamedAddressMap int
}

// CompilationEnv is the single-owner context threaded through every
// translation function. Lifetime is exactly one compilation; it is never
// shared across concurrent compilations.
type CompilationEnv struct {
	flags          Flags
	diags          *diag.Bag
	filterScopes   []*diag.WarningFilters
	packageConfigs map[string]PackageConfig
	defaultConfig  PackageConfig
	// filter attribute names, in registration order; index 0 is "allow"
	filterAttributes []string
	customFilters    map[string]map[string][]diag.WarningFilter
}

func NewCompilationEnv(flags Flags, packageConfigs map[string]PackageConfig, defaultConfig *PackageConfig) *CompilationEnv {
	if packageConfigs == nil {
		packageConfigs = make(map[string]PackageConfig)
	}
	dc := PackageConfig{}
	if defaultConfig != nil {
		dc = *defaultConfig
	}
	return &CompilationEnv{
		flags:            flags,
		diags:            diag.NewBag(),
		packageConfigs:   packageConfigs,
		defaultConfig:    dc,
		filterAttributes: []string{AllowAttribute},
		customFilters:    make(map[string]map[string][]diag.WarningFilter),
	}
}

func (env *CompilationEnv) Flags() Flags { return env.flags }

// PackageConfig returns the configuration for the named package, or the
// default configuration for "" and unknown packages.
func (env *CompilationEnv) PackageConfig(pkg string) PackageConfig {
	if pkg != "" {
		if c, ok := env.packageConfigs[pkg]; ok {
			return c
		}
	}
	return env.defaultConfig
}

func (env *CompilationEnv) SupportsFeature(pkg string, f Feature) bool {
	c := env.PackageConfig(pkg)
	return c.supports(f)
}

// CheckFeature adds a diagnostic when the feature is disabled for pkg.
func (env *CompilationEnv) CheckFeature(f Feature, pkg string, sp source.Span) bool {
	if env.SupportsFeature(pkg, f) {
		return true
	}
	msg := fmt.Sprintf("%s is not supported by the current edition of package '%s'", f, pkg)
	env.AddDiag(diag.New(diag.DeclarationsInvalidName, sp, msg))
	return false
}

// AddDiag records a diagnostic unless an active warning-filter scope
// suppresses it.
func (env *CompilationEnv) AddDiag(d diag.Diagnostic) {
	if env.isFiltered(d) {
		return
	}
	env.diags.Add(d)
}

func (env *CompilationEnv) AddDiags(bag *diag.Bag) {
	if bag == nil {
		return
	}
	for _, d := range bag.Items() {
		env.AddDiag(d)
	}
}

func (env *CompilationEnv) isFiltered(d diag.Diagnostic) bool {
	if env.flags.KeepWarningsOnDeps && d.Severity <= diag.SevWarning {
		return false
	}
	for _, wf := range env.filterScopes {
		if wf.IsFiltered(d) {
			return true
		}
	}
	return false
}

func (env *CompilationEnv) HasDiagsAtOrAbove(sev diag.Severity) bool {
	return env.diags.HasAtOrAbove(sev)
}

func (env *CompilationEnv) HasErrors() bool {
	return env.diags.HasAtOrAbove(diag.SevNonblockingError)
}

// CheckDiagsAtOrAbove returns the full accumulated bag when any diagnostic
// meets the threshold, signalling the driver to stop.
func (env *CompilationEnv) CheckDiagsAtOrAbove(sev diag.Severity) (*diag.Bag, bool) {
	if env.diags.HasAtOrAbove(sev) {
		return env.TakeDiags(), false
	}
	return nil, true
}

// TakeDiags hands the whole bag over; the env keeps accumulating into a
// fresh one.
func (env *CompilationEnv) TakeDiags() *diag.Bag {
	out := env.diags
	env.diags = diag.NewBag()
	return out
}

// TakeFinalWarnings separates the warnings accompanying a successful build.
func (env *CompilationEnv) TakeFinalWarnings() *diag.Bag {
	return env.diags.TakeFinalWarnings()
}

func (env *CompilationEnv) Diags() *diag.Bag { return env.diags }

// PushWarningFilterScope activates a declaration's filter set. Scopes nest;
// every push must be matched by exactly one pop.
func (env *CompilationEnv) PushWarningFilterScope(wf *diag.WarningFilters) {
	if wf == nil {
		panic("ICE nil warning filter scope")
	}
	env.filterScopes = append(env.filterScopes, wf)
}

func (env *CompilationEnv) PopWarningFilterScope() {
	if len(env.filterScopes) == 0 {
		panic("ICE warning filter scope underflow")
	}
	env.filterScopes = env.filterScopes[:len(env.filterScopes)-1]
}

// FilterAttributes lists every attribute name that introduces warning
// filters, the built-in allow attribute plus registered custom prefixes.
func (env *CompilationEnv) FilterAttributes() []string {
	return env.filterAttributes
}

// AddCustomKnownFilters registers a tool-defined filter attribute and its
// recognized filter identifiers.
func (env *CompilationEnv) AddCustomKnownFilters(attrName string, filters []diag.WarningFilter) error {
	if attrName == AllowAttribute {
		return fmt.Errorf("custom filter attribute %q conflicts with the built-in attribute", attrName)
	}
	if _, ok := env.customFilters[attrName]; ok {
		return fmt.Errorf("duplicate custom filter attribute %q", attrName)
	}
	byName := make(map[string][]diag.WarningFilter, len(filters))
	for _, f := range filters {
		f.Prefix = attrName
		byName[f.Name] = append(byName[f.Name], f)
	}
	env.customFilters[attrName] = byName
	env.filterAttributes = append(env.filterAttributes, attrName)
	return nil
}

// FilterFromName resolves a filter identifier appearing under the given
// filter attribute. Empty result means unknown.
func (env *CompilationEnv) FilterFromName(attrName, name string) []diag.WarningFilter {
	if attrName == AllowAttribute {
		return diag.KnownFilters("", name)
	}
	if byName, ok := env.customFilters[attrName]; ok {
		return byName[name]
	}
	return nil
}
