package shared

import (
	"testing"

	"mica/internal/diag"
	"mica/internal/source"
)

func testSpan() source.Span {
	return source.Span{File: 1, Start: 0, End: 1}
}

func unusedWarning() diag.Diagnostic {
	return diag.New(diag.UnusedItemAlias, testSpan(), "unused")
}

func blockingError() diag.Diagnostic {
	return diag.New(diag.NameResolutionUnboundModule, testSpan(), "unbound")
}

func TestFilterScopeSuppressesWarnings(t *testing.T) {
	env := NewCompilationEnv(Flags{}, nil, nil)
	wf := diag.NewWarningFiltersSource()
	for _, f := range diag.KnownFilters("", diag.FilterUnusedAlias) {
		wf.Add(f)
	}
	env.PushWarningFilterScope(wf)
	env.AddDiag(unusedWarning())
	env.PopWarningFilterScope()
	env.AddDiag(unusedWarning())

	if n := env.Diags().Len(); n != 1 {
		t.Fatalf("got %d diagnostics, want only the post-pop one: %+v", n, env.Diags().Items())
	}
}

func TestFilterScopesNest(t *testing.T) {
	env := NewCompilationEnv(Flags{}, nil, nil)
	outer := diag.NewWarningFiltersSource()
	for _, f := range diag.KnownFilters("", diag.FilterUnusedAlias) {
		outer.Add(f)
	}
	env.PushWarningFilterScope(outer)
	env.PushWarningFilterScope(diag.NewWarningFiltersSource())

	// the inner scope adds nothing but the outer one still applies
	env.AddDiag(unusedWarning())
	if !env.Diags().IsEmpty() {
		t.Fatalf("outer scope ignored while inner active: %+v", env.Diags().Items())
	}
	env.PopWarningFilterScope()
	env.PopWarningFilterScope()
}

func TestFiltersNeverSuppressErrors(t *testing.T) {
	env := NewCompilationEnv(Flags{}, nil, nil)
	env.PushWarningFilterScope(diag.NewWarningFiltersDependency())
	env.AddDiag(blockingError())
	env.PopWarningFilterScope()
	if !env.HasErrors() {
		t.Fatalf("error suppressed by a dependency filter scope")
	}
}

func TestKeepWarningsOnDepsBypassesFilters(t *testing.T) {
	env := NewCompilationEnv(Flags{KeepWarningsOnDeps: true}, nil, nil)
	env.PushWarningFilterScope(diag.NewWarningFiltersDependency())
	env.AddDiag(unusedWarning())
	env.PopWarningFilterScope()
	if env.Diags().Len() != 1 {
		t.Fatalf("keep-warnings flag did not bypass the dependency filter")
	}
}

func TestPopUnderflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("underflow did not panic")
		}
	}()
	NewCompilationEnv(Flags{}, nil, nil).PopWarningFilterScope()
}

func TestPushNilScopePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("nil scope did not panic")
		}
	}()
	NewCompilationEnv(Flags{}, nil, nil).PushWarningFilterScope(nil)
}

func TestCheckDiagsAtOrAboveTakesBag(t *testing.T) {
	env := NewCompilationEnv(Flags{}, nil, nil)
	env.AddDiag(unusedWarning())
	env.AddDiag(blockingError())

	if bag, ok := env.CheckDiagsAtOrAbove(diag.SevBug); !ok || bag != nil {
		t.Fatalf("threshold below any diagnostic tripped: %v %v", bag, ok)
	}
	bag, ok := env.CheckDiagsAtOrAbove(diag.SevBlockingError)
	if ok {
		t.Fatalf("threshold not tripped")
	}
	// the whole bag moves out, warnings included
	if bag.Len() != 2 {
		t.Fatalf("bag carried %d diagnostics, want 2", bag.Len())
	}
	if !env.Diags().IsEmpty() {
		t.Fatalf("env kept diagnostics after handing the bag over")
	}
}

func TestTakeFinalWarnings(t *testing.T) {
	env := NewCompilationEnv(Flags{}, nil, nil)
	env.AddDiag(unusedWarning())
	env.AddDiag(blockingError())
	warnings := env.TakeFinalWarnings()
	if warnings.Len() != 1 {
		t.Fatalf("took %d warnings, want 1", warnings.Len())
	}
	if !env.HasErrors() {
		t.Fatalf("error removed together with warnings")
	}
}

func TestPackageConfigFallback(t *testing.T) {
	deflt := &PackageConfig{IsDependency: false, DisabledFeatures: []Feature{FeatureDotCall}}
	env := NewCompilationEnv(Flags{}, map[string]PackageConfig{
		"vendor": {IsDependency: true},
	}, deflt)

	if !env.PackageConfig("vendor").IsDependency {
		t.Errorf("named config not found")
	}
	if env.PackageConfig("unknown").IsDependency {
		t.Errorf("unknown package did not fall back to the default")
	}
	if env.SupportsFeature("unknown", FeatureDotCall) {
		t.Errorf("default disabled feature reported as supported")
	}
	if !env.SupportsFeature("vendor", FeatureDotCall) {
		t.Errorf("feature disabled for a package that allows it")
	}
}

func TestCheckFeatureReports(t *testing.T) {
	deflt := &PackageConfig{DisabledFeatures: []Feature{FeaturePublicPackage}}
	env := NewCompilationEnv(Flags{}, nil, deflt)
	if env.CheckFeature(FeaturePublicPackage, "app", testSpan()) {
		t.Fatalf("disabled feature passed the check")
	}
	if !env.HasErrors() {
		t.Fatalf("feature check added no diagnostic")
	}
}

func TestCustomKnownFilters(t *testing.T) {
	env := NewCompilationEnv(Flags{}, nil, nil)
	filters := []diag.WarningFilter{
		{Kind: diag.FilterKindCode, Code: diag.UnusedItemAlias, Name: "aliases"},
	}
	if err := env.AddCustomKnownFilters("lint", filters); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := env.AddCustomKnownFilters("lint", filters); err == nil {
		t.Fatalf("duplicate attribute accepted")
	}
	if err := env.AddCustomKnownFilters(AllowAttribute, filters); err == nil {
		t.Fatalf("built-in attribute name accepted")
	}

	got := env.FilterFromName("lint", "aliases")
	if len(got) != 1 || got[0].Prefix != "lint" {
		t.Fatalf("custom filter lookup = %+v", got)
	}
	if env.FilterFromName("lint", "unknown") != nil {
		t.Fatalf("unknown custom filter resolved")
	}
	if len(env.FilterFromName(AllowAttribute, diag.FilterUnusedAlias)) == 0 {
		t.Fatalf("built-in filter lookup broken")
	}

	attrs := env.FilterAttributes()
	if len(attrs) != 2 || attrs[0] != AllowAttribute || attrs[1] != "lint" {
		t.Fatalf("filter attributes = %v", attrs)
	}
}
