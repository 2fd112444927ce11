package compiler

import (
	"testing"

	"mica/internal/ast"
	"mica/internal/diag"
	"mica/internal/expansion"
	"mica/internal/shared"
	"mica/internal/source"
)

// progBuilder assembles parser-stage programs directly; the driver accepts
// them through NewFromProgram so no parser is involved.
type progBuilder struct {
	next uint32
}

func (b *progBuilder) span() source.Span {
	b.next += 10
	return source.Span{File: 1, Start: b.next, End: b.next + 5}
}

func (b *progBuilder) name(v string) source.Name {
	return source.Name{Value: v, Span: b.span()}
}

func (b *progBuilder) fn(name string) *ast.Function {
	semi := b.span()
	return &ast.Function{
		Loc:  b.span(),
		Name: b.name(name),
		Signature: ast.FunctionSignature{
			ReturnType: ast.Type{Loc: b.span(), Kind: ast.TypeUnit},
		},
		Body: ast.FunctionBody{Loc: b.span(), Seq: &ast.Sequence{FinalSemi: &semi}},
	}
}

func (b *progBuilder) module(addrHex, name string, members ...ast.ModuleMember) *ast.ModuleDefinition {
	a, err := shared.ParseNumericalAddress(addrHex)
	if err != nil {
		panic(err)
	}
	return &ast.ModuleDefinition{
		Loc:     b.span(),
		Address: &ast.LeadingNameAccess{Loc: b.span(), Anon: &a},
		Name:    b.name(name),
		Members: members,
	}
}

func (b *progBuilder) script(fname string) *ast.Script {
	return &ast.Script{Loc: b.span(), Function: b.fn(fname)}
}

func (b *progBuilder) use(addrHex, module string) *ast.UseDecl {
	a, err := shared.ParseNumericalAddress(addrHex)
	if err != nil {
		panic(err)
	}
	return &ast.UseDecl{Loc: b.span(), Use: &ast.ModuleUse{
		Module: ast.ModuleIdent{
			Loc:     b.span(),
			Address: ast.LeadingNameAccess{Loc: b.span(), Anon: &a},
			Module:  b.name(module),
		},
	}}
}

func assemble(srcs, libs []ast.Definition) *ast.Program {
	maps := shared.NewNamedAddressMaps()
	maps.Insert(shared.NamedAddressMap{})
	prog := &ast.Program{NamedAddressMaps: maps}
	for _, d := range srcs {
		prog.SourceDefinitions = append(prog.SourceDefinitions,
			ast.PackageDefinition{Package: "app", Def: d})
	}
	for _, d := range libs {
		prog.LibDefinitions = append(prog.LibDefinitions,
			ast.PackageDefinition{Package: "vendor", Def: d})
	}
	return prog
}

func basicProgram(b *progBuilder) *ast.Program {
	return assemble(
		[]ast.Definition{
			b.module("0x2", "coin", b.fn("mint")),
			b.script("deploy"),
		},
		[]ast.Definition{
			b.module("0x3", "registry", b.fn("register")),
		},
	)
}

func injectDiag(code diag.Code) Visitor {
	return func(env *shared.CompilationEnv, _ *expansion.Program) {
		env.AddDiag(diag.New(code, source.Span{File: 1, Start: 1, End: 2}, "injected"))
	}
}

func observeStages(c *Compiler) *[]Stage {
	var seen []Stage
	c.WithStageObserver(func(s Stage) { seen = append(seen, s) })
	return &seen
}

func unitKeys(units []CompiledUnit) []string {
	keys := make([]string, 0, len(units))
	for i := range units {
		keys = append(keys, units[i].Key())
	}
	return keys
}

func TestBuildEmitsSourceUnitsOnly(t *testing.T) {
	b := &progBuilder{}
	res, err := NewFromProgram(basicProgram(b)).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if res.Failed() {
		t.Fatalf("unexpected failure: %+v", res.Failure.Items())
	}
	got := unitKeys(res.Units)
	want := []string{"0x02::coin", "deploy"}
	if len(got) != len(want) {
		t.Fatalf("units = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("units = %v, want %v", got, want)
		}
	}
	for i := range res.Units {
		u := &res.Units[i]
		addr, name, isScript, ok := decodeUnitHeader(u.Bytes)
		if !ok {
			t.Fatalf("unit %s has malformed bytes", u.Key())
		}
		if addr != u.Address || name != u.Name || isScript != u.IsScript {
			t.Errorf("unit %s header mismatch: %s %s %v", u.Key(), addr, name, isScript)
		}
	}
}

func TestStageObserverSeesEveryTransition(t *testing.T) {
	b := &progBuilder{}
	c := NewFromProgram(basicProgram(b))
	seen := observeStages(c)
	if _, err := c.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	want := []Stage{StageParser, StageExpansion, StageNaming, StageTyping, StageHLIR, StageCFGIR, StageCompilation}
	if len(*seen) != len(want) {
		t.Fatalf("stages = %v, want %v", *seen, want)
	}
	for i := range want {
		if (*seen)[i] != want[i] {
			t.Fatalf("stages = %v, want %v", *seen, want)
		}
	}
}

func TestWarningNeverGates(t *testing.T) {
	b := &progBuilder{}
	c := NewFromProgram(basicProgram(b)).WithVisitors(injectDiag(diag.UnusedItemAlias))
	res, err := c.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if res.Failed() {
		t.Fatalf("warning stopped the pipeline: %+v", res.Failure.Items())
	}
	if res.Warnings.CountAtOrAbove(diag.SevWarning) != 1 {
		t.Fatalf("warning lost: %+v", res.Warnings.Items())
	}
	if len(res.Units) == 0 {
		t.Fatalf("warned build emitted no units")
	}
}

func TestNonblockingErrorGatesBeforeControlFlow(t *testing.T) {
	b := &progBuilder{}
	c := NewFromProgram(basicProgram(b)).WithVisitors(injectDiag(diag.DeclarationsInvalidModule))
	seen := observeStages(c)
	res, err := c.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !res.Failed() {
		t.Fatalf("nonblocking error did not stop the pipeline")
	}
	if last := (*seen)[len(*seen)-1]; last != StageHLIR {
		t.Fatalf("stopped after %s, want %s", last, StageHLIR)
	}
	if !res.Failure.HasAtOrAbove(diag.SevNonblockingError) {
		t.Fatalf("failure bag lost the error: %+v", res.Failure.Items())
	}
}

func TestBlockingErrorGatesBeforeTyping(t *testing.T) {
	b := &progBuilder{}
	c := NewFromProgram(basicProgram(b)).WithVisitors(injectDiag(diag.NameResolutionUnboundModule))
	seen := observeStages(c)
	res, err := c.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !res.Failed() {
		t.Fatalf("blocking error did not stop the pipeline")
	}
	if last := (*seen)[len(*seen)-1]; last != StageNaming {
		t.Fatalf("stopped after %s, want %s", last, StageNaming)
	}
}

func TestBugGatesImmediately(t *testing.T) {
	b := &progBuilder{}
	c := NewFromProgram(basicProgram(b)).WithVisitors(injectDiag(diag.BugUnexpectedState))
	seen := observeStages(c)
	res, err := c.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !res.Failed() {
		t.Fatalf("bug did not stop the pipeline")
	}
	if last := (*seen)[len(*seen)-1]; last != StageExpansion {
		t.Fatalf("stopped after %s, want %s", last, StageExpansion)
	}
}

func TestCheckStopsBeforeEmission(t *testing.T) {
	b := &progBuilder{}
	c := NewFromProgram(basicProgram(b))
	res, err := c.Check()
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.Failed() {
		t.Fatalf("unexpected failure: %+v", res.Failure.Items())
	}
	if res.Program.Stage() != StageCFGIR {
		t.Fatalf("check ended at %s", res.Program.Stage())
	}
	if len(res.Units) != 0 {
		t.Fatalf("check emitted units: %v", unitKeys(res.Units))
	}
	if res.Warnings == nil {
		t.Fatalf("check result carries no warning bag")
	}
}

func TestRepeatedRunsAreIdentical(t *testing.T) {
	b := &progBuilder{}
	c := NewFromProgram(basicProgram(b))
	first, err := c.Build()
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	second, err := c.Build()
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	fk, sk := unitKeys(first.Units), unitKeys(second.Units)
	if len(fk) != len(sk) {
		t.Fatalf("unit counts differ: %v vs %v", fk, sk)
	}
	for i := range fk {
		if fk[i] != sk[i] {
			t.Fatalf("unit order differs: %v vs %v", fk, sk)
		}
	}
	if first.Warnings.CountAtOrAbove(diag.SevWarning) != second.Warnings.CountAtOrAbove(diag.SevWarning) {
		t.Fatalf("warning counts differ across runs")
	}
}

func TestUnresolvedDependencyFailsCheck(t *testing.T) {
	b := &progBuilder{}
	prog := assemble(
		[]ast.Definition{
			b.module("0x2", "coin", b.use("0x3", "registry"), b.fn("mint")),
		},
		nil,
	)
	res, err := NewFromProgram(prog).Check()
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !res.Failed() {
		t.Fatalf("missing dependency passed the name-resolution gate")
	}
}

func TestPreCompiledLibSatisfiesDependency(t *testing.T) {
	b := &progBuilder{}
	depProg := assemble(nil, []ast.Definition{
		b.module("0x3", "registry", b.fn("register")),
	})
	lib, failure, err := ConstructPreCompiledLibFromProgram(depProg, shared.Flags{})
	if err != nil {
		t.Fatalf("construct lib: %v", err)
	}
	if failure != nil {
		t.Fatalf("lib failed: %+v", failure.Items())
	}
	if lib.Parser == nil || lib.Expansion == nil || lib.CFGIR == nil {
		t.Fatalf("library snapshots incomplete: %+v", lib)
	}
	if len(lib.Compiled) != 0 {
		t.Fatalf("dependency-only library emitted units: %v", unitKeys(lib.Compiled))
	}

	tb := &progBuilder{}
	target := assemble([]ast.Definition{
		tb.module("0x2", "coin", tb.use("0x3", "registry"), tb.fn("mint")),
	}, nil)
	res, err := NewFromProgram(target).WithPreCompiledLib(lib).Build()
	if err != nil {
		t.Fatalf("build with lib: %v", err)
	}
	if res.Failed() {
		t.Fatalf("precompiled dependency not visible: %+v", res.Failure.Items())
	}
	got := unitKeys(res.Units)
	if len(got) != 1 || got[0] != "0x02::coin" {
		t.Fatalf("units = %v, want [0x02::coin]", got)
	}
}

func TestPreCompiledLibMatchesInlinedDeps(t *testing.T) {
	mk := func() ([]ast.Definition, []ast.Definition) {
		b := &progBuilder{}
		srcs := []ast.Definition{
			b.module("0x2", "coin", b.use("0x3", "registry"), b.fn("mint")),
		}
		libs := []ast.Definition{
			b.module("0x3", "registry", b.fn("register")),
		}
		return srcs, libs
	}

	srcs, libs := mk()
	inlined, err := NewFromProgram(assemble(srcs, libs)).Build()
	if err != nil || inlined.Failed() {
		t.Fatalf("inlined build: err=%v failed=%v", err, inlined.Failed())
	}

	srcs2, libs2 := mk()
	lib, failure, err := ConstructPreCompiledLibFromProgram(assemble(nil, libs2), shared.Flags{})
	if err != nil || failure != nil {
		t.Fatalf("construct lib: err=%v failure=%v", err, failure)
	}
	reused, err := NewFromProgram(assemble(srcs2, nil)).WithPreCompiledLib(lib).Build()
	if err != nil || reused.Failed() {
		t.Fatalf("reused build: err=%v", err)
	}

	ik, rk := unitKeys(inlined.Units), unitKeys(reused.Units)
	if len(ik) != len(rk) {
		t.Fatalf("unit sets differ: %v vs %v", ik, rk)
	}
	for i := range ik {
		if ik[i] != rk[i] {
			t.Fatalf("unit sets differ: %v vs %v", ik, rk)
		}
	}
}

func TestVisitorRunsOnResolvedProgram(t *testing.T) {
	b := &progBuilder{}
	var sawModules []string
	v := func(_ *shared.CompilationEnv, prog *expansion.Program) {
		sawModules = prog.Modules.Keys()
	}
	if _, err := NewFromProgram(basicProgram(b)).WithVisitors(v).Check(); err != nil {
		t.Fatalf("check: %v", err)
	}
	found := false
	for _, k := range sawModules {
		if k == "0x02::coin" {
			found = true
		}
	}
	if !found {
		t.Fatalf("visitor did not see the resolved module set: %v", sawModules)
	}
}

func TestTestPlanHookOnlyInTestMode(t *testing.T) {
	b := &progBuilder{}
	ran := false
	hook := func(_ *shared.CompilationEnv, _ *CFGProgram) { ran = true }

	if _, err := NewFromProgram(basicProgram(b)).WithTestPlanHook(hook).Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	if ran {
		t.Fatalf("test plan ran without the test flag")
	}

	b2 := &progBuilder{}
	c := NewFromProgram(basicProgram(b2)).
		WithFlags(shared.Flags{Test: true}).
		WithTestPlanHook(hook)
	if _, err := c.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	if !ran {
		t.Fatalf("test plan skipped in test mode")
	}
}

func TestDecodeUnitHeaderRejectsGarbage(t *testing.T) {
	for _, data := range [][]byte{
		nil,
		[]byte("MICB"),
		[]byte("plain source text"),
		{'M', 'I', 'C', 'B', 0, 1, 0, 0, 0, 0, 9}, // truncated length prefix
	} {
		if _, _, _, ok := decodeUnitHeader(data); ok {
			t.Errorf("decodeUnitHeader accepted %q", data)
		}
	}
}

func TestDuplicateModuleAcrossTargetAndLib(t *testing.T) {
	b := &progBuilder{}
	prog := assemble(
		[]ast.Definition{b.module("0x2", "coin", b.fn("mint"))},
		[]ast.Definition{b.module("0x2", "coin")},
	)
	res, err := NewFromProgram(prog).Check()
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !res.Failed() {
		t.Fatalf("duplicate module across source and dependency not reported")
	}
}
