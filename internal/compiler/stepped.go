// Package compiler drives the staged pipeline: parsing output enters at one
// end, compiled units and warnings leave at the other, with severity-gated
// transitions between stages.
package compiler

import (
	"fmt"

	"mica/internal/ast"
	"mica/internal/diag"
	"mica/internal/expansion"
	"mica/internal/shared"
)

// Stage identifies one pipeline stage. A Program holds exactly one stage's
// payload at a time.
type Stage uint8

const (
	StageParser Stage = iota + 1
	StageExpansion
	StageNaming
	StageTyping
	StageHLIR
	StageCFGIR
	StageCompilation
)

func (s Stage) String() string {
	switch s {
	case StageParser:
		return "parser"
	case StageExpansion:
		return "expansion"
	case StageNaming:
		return "naming"
	case StageTyping:
		return "typing"
	case StageHLIR:
		return "hlir"
	case StageCFGIR:
		return "cfgir"
	case StageCompilation:
		return "compilation"
	default:
		return fmt.Sprintf("stage(%d)", uint8(s))
	}
}

// gateFor is the severity threshold for leaving the given stage. Diagnostics
// at or above the threshold stop the pipeline before the next stage runs.
func gateFor(from Stage) diag.Severity {
	switch from {
	case StageParser, StageExpansion, StageTyping:
		return diag.SevBug
	case StageNaming:
		return diag.SevBlockingError
	case StageHLIR, StageCFGIR:
		return diag.SevNonblockingError
	default:
		panic(fmt.Sprintf("ICE no transition out of %s", from))
	}
}

// Program is the tagged variant over the stage payloads. The driver owns it
// exclusively and replaces the live payload on every transition.
type Program struct {
	stage Stage

	Parser    *ast.Program
	Expansion *expansion.Program
	Naming    *NamingProgram
	Typing    *TypedProgram
	HLIR      *HLProgram
	CFGIR     *CFGProgram
	Units     []CompiledUnit
	Warnings  *diag.Bag
}

func (p *Program) Stage() Stage { return p.stage }

// assertStage guards cross-stage calls; a mismatch is a driver defect.
func (p *Program) assertStage(want Stage) {
	if p.stage != want {
		panic(fmt.Sprintf("ICE expected %s program, have %s", want, p.stage))
	}
}

// StageHook observes each completed stage; the precompiled-library builder
// uses it to snapshot intermediate programs.
type StageHook func(stage Stage, prog *Program)

// steppedCompiler advances one Program through the pipeline.
type steppedCompiler struct {
	env      *shared.CompilationEnv
	program  Program
	fns      PassFuncs
	hook     StageHook
	testPlan TestPlanHook
	visitors []Visitor
}

// runTo advances the program until target, gating on accumulated diagnostic
// severity before every transition. On a gated stop it returns the full
// diagnostic bag and false; already-run stages keep their diagnostics in it.
func (s *steppedCompiler) runTo(target Stage) (*diag.Bag, bool) {
	if s.program.stage > target {
		panic(fmt.Sprintf("ICE pipeline already past %s", target))
	}
	for s.program.stage < target {
		if bag, ok := s.env.CheckDiagsAtOrAbove(gateFor(s.program.stage)); !ok {
			return bag, false
		}
		s.advance()
		if s.hook != nil {
			s.hook(s.program.stage, &s.program)
		}
	}
	return nil, true
}

func (s *steppedCompiler) advance() {
	switch s.program.stage {
	case StageParser:
		s.program.assertStage(StageParser)
		eprog := expansion.TranslateProgram(s.env, s.program.Parser)
		for _, v := range s.visitors {
			v(s.env, eprog)
		}
		s.program = Program{stage: StageExpansion, Expansion: eprog}
	case StageExpansion:
		n := s.fns.Naming(s.env, s.program.Expansion)
		s.program = Program{stage: StageNaming, Naming: n}
	case StageNaming:
		t := s.fns.Typing(s.env, s.program.Naming)
		s.program = Program{stage: StageTyping, Typing: t}
	case StageTyping:
		h := s.fns.HLIR(s.env, s.program.Typing)
		s.program = Program{stage: StageHLIR, HLIR: h}
	case StageHLIR:
		c := s.fns.CFGIR(s.env, s.program.HLIR)
		if s.env.Flags().Test && s.testPlan != nil {
			s.testPlan(s.env, c)
		}
		s.program = Program{stage: StageCFGIR, CFGIR: c}
	case StageCFGIR:
		// warnings accompanying a successful build separate here; errors
		// were gated before this transition
		warnings := s.env.TakeFinalWarnings()
		units := s.fns.Compile(s.env, s.program.CFGIR)
		s.program = Program{stage: StageCompilation, Units: units, Warnings: warnings}
	default:
		panic(fmt.Sprintf("ICE cannot advance out of %s", s.program.stage))
	}
}
