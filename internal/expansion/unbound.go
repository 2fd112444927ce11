package expansion

import (
	"mica/internal/source"
)

// Unbound-name computation for inline specification blocks. Expressions are
// scanned backward: a use inserts its name, a binding construct removes the
// names it binds, so parameters and let bindings shadow outer uses.

// unboundNamesSpecBlock collects the names a translated spec block uses
// from its surrounding scope.
func unboundNamesSpecBlock(unbound map[string]source.Name, sb *SpecBlock) {
	for i := len(sb.Members) - 1; i >= 0; i-- {
		m := sb.Members[i]
		switch m.Kind {
		case SpecMemberCondition:
			for j := len(m.AdditionalExps) - 1; j >= 0; j-- {
				unboundNamesExp(unbound, m.AdditionalExps[j])
			}
			if m.Exp != nil {
				unboundNamesExp(unbound, m.Exp)
			}
		case SpecMemberLet:
			if m.Def != nil {
				unboundNamesExp(unbound, m.Def)
			}
		case SpecMemberUpdate:
			if m.RHS != nil {
				unboundNamesExp(unbound, m.RHS)
			}
			if m.LHS != nil {
				unboundNamesExp(unbound, m.LHS)
			}
		case SpecMemberInclude, SpecMemberApply:
			if m.Exp != nil {
				unboundNamesExp(unbound, m.Exp)
			}
		case SpecMemberVariable:
			if m.Init != nil {
				unboundNamesExp(unbound, m.Init)
			}
		}
	}
}

func unboundNamesExp(unbound map[string]source.Name, e Exp) {
	switch e := e.(type) {
	case *UnresolvedErrorExp, *UnitExp, *ValueExp, *BreakExp, *ContinueExp, *SpecExp:
		// no free names
	case *MoveExp:
		unbound[e.Var.Value] = e.Var
	case *CopyExp:
		unbound[e.Var.Value] = e.Var
	case *NameExp:
		if !e.Name.IsQualified() {
			unbound[e.Name.Name.Value] = e.Name.Name
		}
	case *CallExp:
		unboundNamesExps(unbound, e.Args)
	case *MethodCallExp:
		unboundNamesExps(unbound, e.Args)
		unboundNamesDotted(unbound, e.Target)
	case *PackExp:
		for i := len(e.Fields) - 1; i >= 0; i-- {
			unboundNamesExp(unbound, e.Fields[i].Exp)
		}
	case *VectorExp:
		unboundNamesExps(unbound, e.Args)
	case *IfElseExp:
		if e.False != nil {
			unboundNamesExp(unbound, e.False)
		}
		unboundNamesExp(unbound, e.True)
		unboundNamesExp(unbound, e.Cond)
	case *WhileExp:
		unboundNamesExp(unbound, e.Body)
		unboundNamesExp(unbound, e.Cond)
	case *LoopExp:
		unboundNamesExp(unbound, e.Body)
	case *BlockExp:
		unboundNamesSequence(unbound, e.Seq)
	case *LambdaExp:
		unboundNamesExp(unbound, e.Body)
		// parameters shadow
		unboundNamesLValues(unbound, e.Binds)
	case *QuantExp:
		unboundNamesExp(unbound, e.Body)
		if e.Cond != nil {
			unboundNamesExp(unbound, e.Cond)
		}
		for _, tr := range e.Triggers {
			unboundNamesExps(unbound, tr)
		}
		for i := len(e.Binds) - 1; i >= 0; i-- {
			unboundNamesLValue(unbound, e.Binds[i].Bind)
			unboundNamesExp(unbound, e.Binds[i].Range)
		}
	case *ExpListExp:
		unboundNamesExps(unbound, e.Exps)
	case *AssignExp:
		// assignment targets are uses of already-declared names
		unboundNamesAssigns(unbound, e.LHS)
		unboundNamesExp(unbound, e.RHS)
	case *MutateExp:
		unboundNamesExp(unbound, e.LHS)
		unboundNamesExp(unbound, e.RHS)
	case *FieldMutateExp:
		unboundNamesDotted(unbound, e.LHS)
		unboundNamesExp(unbound, e.RHS)
	case *ReturnExp:
		if e.Value != nil {
			unboundNamesExp(unbound, e.Value)
		}
	case *AbortExp:
		unboundNamesExp(unbound, e.Value)
	case *DereferenceExp:
		unboundNamesExp(unbound, e.Inner)
	case *UnaryExp:
		unboundNamesExp(unbound, e.Inner)
	case *BinopExp:
		unboundNamesExp(unbound, e.RHS)
		unboundNamesExp(unbound, e.LHS)
	case *BorrowExp:
		unboundNamesDotted(unbound, e.Inner)
	case *DottedExp:
		unboundNamesDotted(unbound, e.Dotted)
	case *IndexExp:
		unboundNamesExp(unbound, e.Index)
		unboundNamesDotted(unbound, e.Target)
	case *CastExp:
		unboundNamesExp(unbound, e.Inner)
	case *AnnotateExp:
		unboundNamesExp(unbound, e.Inner)
	}
}

func unboundNamesExps(unbound map[string]source.Name, es []Exp) {
	for i := len(es) - 1; i >= 0; i-- {
		unboundNamesExp(unbound, es[i])
	}
}

func unboundNamesDotted(unbound map[string]source.Name, d *ExpDotted) {
	if d == nil {
		return
	}
	unboundNamesExp(unbound, d.Base)
}

func unboundNamesSequence(unbound map[string]source.Name, seq Sequence) {
	for i := len(seq.Items) - 1; i >= 0; i-- {
		item := seq.Items[i]
		switch item.Kind {
		case SeqExp:
			unboundNamesExp(unbound, item.Exp)
		case SeqDeclare:
			unboundNamesLValues(unbound, item.LHS)
		case SeqBind:
			unboundNamesLValues(unbound, item.LHS)
			unboundNamesExp(unbound, item.Exp)
		}
	}
}

// unboundNamesLValues removes names bound by a declaration.
func unboundNamesLValues(unbound map[string]source.Name, ls LValueList) {
	for i := len(ls.LValues) - 1; i >= 0; i-- {
		unboundNamesLValue(unbound, ls.LValues[i])
	}
}

func unboundNamesLValue(unbound map[string]source.Name, l LValue) {
	switch l.Kind {
	case LValueVar:
		delete(unbound, l.Var.Value)
	case LValueUnpack:
		for i := len(l.Named) - 1; i >= 0; i-- {
			if l.Named[i].Bind != nil {
				unboundNamesLValue(unbound, *l.Named[i].Bind)
			}
		}
		for i := len(l.Positional) - 1; i >= 0; i-- {
			if l.Positional[i] != nil {
				unboundNamesLValue(unbound, *l.Positional[i])
			}
		}
	}
}

// unboundNamesAssigns treats assignment targets as uses, since the names
// must already be declared.
func unboundNamesAssigns(unbound map[string]source.Name, ls LValueList) {
	for i := len(ls.LValues) - 1; i >= 0; i-- {
		l := ls.LValues[i]
		switch l.Kind {
		case LValueVar:
			unbound[l.Var.Value] = l.Var
		case LValueUnpack:
			for j := len(l.Named) - 1; j >= 0; j-- {
				if l.Named[j].Bind != nil {
					unboundNamesAssigns(unbound, LValueList{LValues: []LValue{*l.Named[j].Bind}})
				}
			}
			for j := len(l.Positional) - 1; j >= 0; j-- {
				if l.Positional[j] != nil {
					unboundNamesAssigns(unbound, LValueList{LValues: []LValue{*l.Positional[j]}})
				}
			}
		}
	}
}
