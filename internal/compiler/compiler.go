package compiler

import (
	"fmt"

	"mica/internal/ast"
	"mica/internal/diag"
	"mica/internal/shared"
)

// ParseFn turns one source file into its top-level definitions. The driver
// owns no parser of its own; the front end supplies one. Diagnostics go
// through env, a returned error aborts the whole run.
type ParseFn func(env *shared.CompilationEnv, path string) ([]ast.Definition, error)

type customFilterSet struct {
	attr    string
	filters []diag.WarningFilter
}

// Compiler accumulates everything a run needs: inputs, flags, package
// configuration, filter registrations and pass overrides. A configured
// Compiler can run any number of times; every run builds a fresh
// environment, so repeated runs over the same inputs produce the same
// result.
type Compiler struct {
	targets []shared.PackagePaths
	deps    []shared.PackagePaths
	parsed  *ast.Program
	parse   ParseFn

	flags          shared.Flags
	packageConfigs map[string]shared.PackageConfig
	defaultConfig  *shared.PackageConfig
	customFilters  []customFilterSet
	visitors       []Visitor
	passFns        PassFuncs
	testPlan       TestPlanHook
	precompiled    *FullyCompiledProgram
	interfaceRoot  string
	stageObserver  func(Stage)
}

// New builds a Compiler over package path groups; parse supplies the front
// end for each file.
func New(targets, deps []shared.PackagePaths, parse ParseFn) *Compiler {
	return &Compiler{targets: targets, deps: deps, parse: parse}
}

// NewFromProgram builds a Compiler over an already assembled parser-stage
// program, skipping file loading entirely.
func NewFromProgram(prog *ast.Program) *Compiler {
	return &Compiler{parsed: prog}
}

func (c *Compiler) WithFlags(f shared.Flags) *Compiler {
	c.flags = f
	return c
}

func (c *Compiler) WithDefaultConfig(cfg *shared.PackageConfig) *Compiler {
	c.defaultConfig = cfg
	return c
}

func (c *Compiler) WithPackageConfigs(cfgs map[string]shared.PackageConfig) *Compiler {
	c.packageConfigs = cfgs
	return c
}

// WithCustomKnownFilters registers a tool-defined warning filter attribute;
// registration is replayed into every run's environment.
func (c *Compiler) WithCustomKnownFilters(attrName string, filters []diag.WarningFilter) *Compiler {
	c.customFilters = append(c.customFilters, customFilterSet{attr: attrName, filters: filters})
	return c
}

func (c *Compiler) WithVisitors(vs ...Visitor) *Compiler {
	c.visitors = append(c.visitors, vs...)
	return c
}

func (c *Compiler) WithPassFuncs(fns PassFuncs) *Compiler {
	c.passFns = fns
	return c
}

func (c *Compiler) WithTestPlanHook(h TestPlanHook) *Compiler {
	c.testPlan = h
	return c
}

// WithStageObserver registers a callback invoked as each stage completes,
// for progress reporting.
func (c *Compiler) WithStageObserver(fn func(Stage)) *Compiler {
	c.stageObserver = fn
	return c
}

// WithPreCompiledLib reuses an already fully compiled dependency library;
// its definitions join the run as dependencies.
func (c *Compiler) WithPreCompiledLib(lib *FullyCompiledProgram) *Compiler {
	c.precompiled = lib
	return c
}

// WithInterfaceFilesDir sets where generated dependency interface files go.
// When set, compiled dependency files are replaced by generated interface
// sources before parsing.
func (c *Compiler) WithInterfaceFilesDir(dir string) *Compiler {
	c.interfaceRoot = dir
	return c
}

// Result is the outcome of one run. Exactly one of Failure or the success
// fields is meaningful: a non-nil Failure carries every diagnostic
// accumulated up to the gate that stopped the pipeline.
type Result struct {
	Failure  *diag.Bag
	Program  Program
	Units    []CompiledUnit
	Warnings *diag.Bag
}

func (r *Result) Failed() bool { return r.Failure != nil }

// Run drives the pipeline to the target stage. The error return is for
// infrastructure failures (unreadable files, bad filter registrations);
// source problems come back in Result.Failure.
func (c *Compiler) Run(target Stage) (*Result, error) {
	return c.run(target, nil)
}

// Check resolves and validates without emitting units.
func (c *Compiler) Check() (*Result, error) {
	return c.Run(StageCFGIR)
}

// Build runs the whole pipeline and returns compiled units.
func (c *Compiler) Build() (*Result, error) {
	return c.Run(StageCompilation)
}

func (c *Compiler) run(target Stage, hook StageHook) (*Result, error) {
	if c.stageObserver != nil {
		observer := c.stageObserver
		inner := hook
		hook = func(stage Stage, p *Program) {
			if inner != nil {
				inner(stage, p)
			}
			observer(stage)
		}
	}
	env := shared.NewCompilationEnv(c.flags, c.mergedPackageConfigs(), c.defaultConfig)
	for _, cf := range c.customFilters {
		if err := env.AddCustomKnownFilters(cf.attr, cf.filters); err != nil {
			return nil, err
		}
	}

	prog, err := c.assembleProgram(env)
	if err != nil {
		return nil, err
	}
	if c.precompiled != nil {
		mergePrecompiledDefs(prog, c.precompiled)
	}

	sc := &steppedCompiler{
		env:      env,
		program:  Program{stage: StageParser, Parser: prog},
		fns:      c.passFns.withDefaults(),
		hook:     hook,
		testPlan: c.testPlan,
		visitors: c.visitors,
	}
	if hook != nil {
		hook(StageParser, &sc.program)
	}
	if bag, ok := sc.runTo(target); !ok {
		return &Result{Failure: bag}, nil
	}
	res := &Result{Program: sc.program}
	if sc.program.stage == StageCompilation {
		res.Units = sc.program.Units
		res.Warnings = warningsOrEmpty(sc.program.Warnings)
	} else {
		res.Warnings = warningsOrEmpty(env.TakeFinalWarnings())
	}
	return res, nil
}

// mergedPackageConfigs folds per-group configs from the path lists into the
// explicitly supplied map; dependency groups are forced to dependency
// origin.
func (c *Compiler) mergedPackageConfigs() map[string]shared.PackageConfig {
	out := make(map[string]shared.PackageConfig, len(c.packageConfigs)+len(c.targets)+len(c.deps))
	for k, v := range c.packageConfigs {
		out[k] = v
	}
	for _, g := range c.targets {
		if g.Name != "" && g.Config != nil {
			out[g.Name] = *g.Config
		}
	}
	for _, g := range c.deps {
		if g.Name == "" {
			continue
		}
		cfg := shared.PackageConfig{}
		if g.Config != nil {
			cfg = *g.Config
		}
		cfg.IsDependency = true
		out[g.Name] = cfg
	}
	return out
}

func (c *Compiler) assembleProgram(env *shared.CompilationEnv) (*ast.Program, error) {
	if c.parsed != nil {
		return c.parsed, nil
	}
	if c.parse == nil {
		return nil, fmt.Errorf("no parser configured and no pre-assembled program supplied")
	}
	deps := c.deps
	if c.interfaceRoot != "" {
		var err error
		deps, err = substituteCompiledDeps(deps, c.interfaceRoot)
		if err != nil {
			return nil, err
		}
	}
	prog := &ast.Program{NamedAddressMaps: shared.NewNamedAddressMaps()}
	parseGroup := func(groups []shared.PackagePaths, lib bool) error {
		for _, g := range groups {
			idx := prog.NamedAddressMaps.Insert(g.NamedAddressMap)
			for _, path := range g.Paths {
				defs, err := c.parse(env, path)
				if err != nil {
					return fmt.Errorf("parse %s: %w", path, err)
				}
				for _, d := range defs {
					pd := ast.PackageDefinition{Package: g.Name, NamedAddressMap: idx, Def: d}
					if lib {
						prog.LibDefinitions = append(prog.LibDefinitions, pd)
					} else {
						prog.SourceDefinitions = append(prog.SourceDefinitions, pd)
					}
				}
			}
		}
		return nil
	}
	if err := parseGroup(c.targets, false); err != nil {
		return nil, err
	}
	if err := parseGroup(deps, true); err != nil {
		return nil, err
	}
	return prog, nil
}

// mergePrecompiledDefs appends the precompiled library's parser-stage
// definitions as dependencies, remapping address map indices into the
// current program's table. Re-expanding them as dependencies yields the
// same resolved modules the library was built from.
func mergePrecompiledDefs(prog *ast.Program, pre *FullyCompiledProgram) {
	remap := make(map[int]int)
	for i, m := range pre.Parser.NamedAddressMaps.All() {
		remap[i] = prog.NamedAddressMaps.Insert(m)
	}
	add := func(defs []ast.PackageDefinition) {
		for _, d := range defs {
			d.NamedAddressMap = remap[d.NamedAddressMap]
			prog.LibDefinitions = append(prog.LibDefinitions, d)
		}
	}
	add(pre.Parser.SourceDefinitions)
	add(pre.Parser.LibDefinitions)
}
