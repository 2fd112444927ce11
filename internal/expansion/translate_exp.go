package expansion

import (
	"fmt"

	"mica/internal/ast"
	"mica/internal/diag"
	"mica/internal/shared"
	"mica/internal/source"
)

// Sequences.

func (c *Context) sequence(loc source.Span, pseq ast.Sequence) Sequence {
	builder, ufb := c.aliasesFromUses(pseq.Uses)
	outer := c.aliases.AddAndShadowAll(builder)
	uf := c.resolveUseFuns(ufb)
	c.mergeBlockUseFuns(uf)

	items := make([]SequenceItem, 0, len(pseq.Items)+1)
	for _, pi := range pseq.Items {
		items = append(items, c.sequenceItem(pi))
	}
	if pseq.Final != nil {
		items = append(items, SequenceItem{
			Loc:  pseq.Final.Span(),
			Kind: SeqExp,
			Exp:  c.exp(pseq.Final),
		})
	} else {
		unitLoc := loc
		if pseq.FinalSemi != nil {
			unitLoc = *pseq.FinalSemi
		}
		items = append(items, SequenceItem{
			Loc:  unitLoc,
			Kind: SeqExp,
			Exp:  &UnitExp{exp: exp{Loc: unitLoc}, Trailing: true},
		})
	}

	c.setToOuterScope(outer)
	return Sequence{Items: items}
}

// mergeBlockUseFuns folds a block's method candidates into the enclosing
// declaration's table, inner bindings taking precedence.
func (c *Context) mergeBlockUseFuns(uf UseFuns) {
	top := c.useFunsTop()
	if top == nil {
		return
	}
	top.Explicit = append(top.Explicit, uf.Explicit...)
	uf.Implicit.Each(func(name string, loc source.Span, cand *ImplicitUseFunCandidate) {
		top.Implicit.Set(name, loc, cand)
	})
}

func (c *Context) sequenceItem(pi ast.SequenceItem) SequenceItem {
	switch pi.Kind {
	case ast.SeqExp:
		return SequenceItem{Loc: pi.Loc, Kind: SeqExp, Exp: c.exp(pi.Exp)}
	case ast.SeqDeclare:
		var ty *Type
		if pi.Type != nil {
			t := c.typ(*pi.Type)
			ty = &t
		}
		return SequenceItem{Loc: pi.Loc, Kind: SeqDeclare, LHS: c.bindList(pi.Bind), Type: ty}
	default:
		var ty *Type
		if pi.Type != nil {
			t := c.typ(*pi.Type)
			ty = &t
		}
		return SequenceItem{
			Loc:  pi.Loc,
			Kind: SeqBind,
			LHS:  c.bindList(pi.Bind),
			Type: ty,
			Exp:  c.exp(pi.Exp),
		}
	}
}

// Binds.

func (c *Context) bindList(pl ast.BindList) LValueList {
	out := LValueList{Loc: pl.Loc}
	for _, pb := range pl.Binds {
		if lv, ok := c.bind(pb); ok {
			out.LValues = append(out.LValues, lv)
		}
	}
	return out
}

func (c *Context) bind(pb ast.Bind) (LValue, bool) {
	switch pb.Kind {
	case ast.BindVar:
		if pb.Var.Value == "_" {
			return LValue{Loc: pb.Loc, Kind: LValueIgnore, Var: pb.Var}, true
		}
		if pb.Mut != nil {
			c.env.CheckFeature(shared.FeatureLetMut, c.currentPackage, *pb.Mut)
		}
		if !checkValidLocalName(c.env, pb.Var) {
			return LValue{}, false
		}
		return LValue{Loc: pb.Loc, Kind: LValueVar, Mut: pb.Mut, Var: pb.Var}, true
	default:
		ma, ok := c.nameAccessChain(accessApplyNamed, *pb.Unpack)
		if !ok {
			return LValue{}, false
		}
		lv := LValue{Loc: pb.Loc, Kind: LValueUnpack, Unpack: ma, TypeArgs: c.optTypeArgs(pb.TypeArgs)}
		if pb.Positional != nil {
			c.env.CheckFeature(shared.FeaturePositionalFields, c.currentPackage, pb.Loc)
			for _, inner := range pb.Positional {
				sub, ok := c.bind(*inner)
				if !ok {
					return LValue{}, false
				}
				lv.Positional = append(lv.Positional, &sub)
			}
			return lv, true
		}
		seen := NewUniqueMap[struct{}]()
		for _, fb := range pb.Named {
			if prev, added := seen.Add(fb.Field.Value, fb.Field.Span, struct{}{}); !added {
				d := diag.New(diag.DeclarationsDuplicateItem, fb.Field.Span,
					fmt.Sprintf("duplicate field binding '%s'", fb.Field.Value))
				d = d.WithNote(prev, "Field previously bound here")
				c.env.AddDiag(d)
				continue
			}
			var sub LValue
			if fb.Bind != nil {
				s, ok := c.bind(*fb.Bind)
				if !ok {
					return LValue{}, false
				}
				sub = s
			} else {
				// field shorthand binds a variable of the field's name
				sub = LValue{Loc: fb.Field.Span, Kind: LValueVar, Var: fb.Field}
			}
			lv.Named = append(lv.Named, FieldLValue{Field: fb.Field, Bind: &sub})
		}
		return lv, true
	}
}

// Expressions.

func (c *Context) exps(pes []ast.Exp) []Exp {
	out := make([]Exp, 0, len(pes))
	for _, pe := range pes {
		out = append(out, c.exp(pe))
	}
	return out
}

func (c *Context) exp(pe ast.Exp) Exp {
	loc := pe.Span()
	base := exp{Loc: loc}
	switch pe := pe.(type) {
	case *ast.UnitExp:
		return &UnitExp{exp: base}
	case *ast.ValueExp:
		v, ok := c.value(pe.Value)
		if !ok {
			return &UnresolvedErrorExp{exp: base}
		}
		return &ValueExp{exp: base, Value: v}
	case *ast.MoveExp:
		checkValidLocalName(c.env, pe.Var)
		return &MoveExp{exp: base, Var: pe.Var}
	case *ast.CopyExp:
		checkValidLocalName(c.env, pe.Var)
		return &CopyExp{exp: base, Var: pe.Var}
	case *ast.NameExp:
		ma, ok := c.nameAccessChain(accessTerm, pe.Name)
		if !ok {
			return &UnresolvedErrorExp{exp: base}
		}
		return &NameExp{exp: base, Name: ma, TypeArgs: c.optTypeArgs(pe.TypeArgs)}
	case *ast.CallExp:
		ma, ok := c.nameAccessChain(accessApplyPositional, pe.Name)
		if !ok {
			return &UnresolvedErrorExp{exp: base}
		}
		return &CallExp{
			exp:      base,
			Name:     ma,
			IsMacro:  pe.IsMacro,
			TypeArgs: c.optTypeArgs(pe.TypeArgs),
			ArgsLoc:  pe.ArgsLoc,
			Args:     c.exps(pe.Args),
		}
	case *ast.PackExp:
		ma, ok := c.nameAccessChain(accessApplyNamed, pe.Name)
		if !ok {
			return &UnresolvedErrorExp{exp: base}
		}
		seen := NewUniqueMap[struct{}]()
		fields := make([]PackField, 0, len(pe.Fields))
		for _, f := range pe.Fields {
			if prev, added := seen.Add(f.Name.Value, f.Name.Span, struct{}{}); !added {
				d := diag.New(diag.DeclarationsDuplicateItem, f.Name.Span,
					fmt.Sprintf("duplicate argument given for field '%s'", f.Name.Value))
				d = d.WithNote(prev, "Field previously given here")
				c.env.AddDiag(d)
				continue
			}
			fields = append(fields, PackField{Name: f.Name, Exp: c.exp(f.Exp)})
		}
		return &PackExp{exp: base, Name: ma, TypeArgs: c.optTypeArgs(pe.TypeArgs), Fields: fields}
	case *ast.VectorExp:
		return &VectorExp{
			exp:      base,
			VecLoc:   pe.VecLoc,
			TypeArgs: c.optTypeArgs(pe.TypeArgs),
			ArgsLoc:  pe.ArgsLoc,
			Args:     c.exps(pe.Args),
		}
	case *ast.IfElseExp:
		out := &IfElseExp{exp: base, Cond: c.exp(pe.Cond), True: c.exp(pe.True)}
		if pe.False != nil {
			out.False = c.exp(pe.False)
		}
		return out
	case *ast.WhileExp:
		return &WhileExp{exp: base, Cond: c.exp(pe.Cond), Body: c.exp(pe.Body)}
	case *ast.LoopExp:
		return &LoopExp{exp: base, Body: c.exp(pe.Body)}
	case *ast.BlockExp:
		return &BlockExp{exp: base, Seq: c.sequence(loc, pe.Seq)}
	case *ast.LambdaExp:
		if !c.requireSpecContext(loc, "lambda expressions are") {
			return &UnresolvedErrorExp{exp: base}
		}
		return &LambdaExp{exp: base, Binds: c.bindList(pe.Binds), Body: c.exp(pe.Body)}
	case *ast.QuantExp:
		if !c.requireSpecContext(loc, "quantifier expressions are") {
			return &UnresolvedErrorExp{exp: base}
		}
		kind := QuantForall
		if pe.Kind == ast.QuantExists {
			kind = QuantExists
		}
		binds := make([]QuantBind, 0, len(pe.Binds))
		for _, qb := range pe.Binds {
			lv, ok := c.bind(qb.Bind)
			if !ok {
				continue
			}
			binds = append(binds, QuantBind{Loc: qb.Loc, Bind: lv, Range: c.exp(qb.Range)})
		}
		triggers := make([][]Exp, 0, len(pe.Triggers))
		for _, tr := range pe.Triggers {
			triggers = append(triggers, c.exps(tr))
		}
		out := &QuantExp{exp: base, Kind: kind, Binds: binds, Triggers: triggers, Body: c.exp(pe.Body)}
		if pe.Cond != nil {
			out.Cond = c.exp(pe.Cond)
		}
		return out
	case *ast.ExpListExp:
		return &ExpListExp{exp: base, Exps: c.exps(pe.Exps)}
	case *ast.AssignExp:
		return c.assign(base, pe.LHS, c.exp(pe.RHS))
	case *ast.ReturnExp:
		out := &ReturnExp{exp: base}
		if pe.Value != nil {
			out.Value = c.exp(pe.Value)
		}
		return out
	case *ast.AbortExp:
		return &AbortExp{exp: base, Value: c.exp(pe.Value)}
	case *ast.BreakExp:
		return &BreakExp{exp: base}
	case *ast.ContinueExp:
		return &ContinueExp{exp: base}
	case *ast.DereferenceExp:
		return &DereferenceExp{exp: base, Inner: c.exp(pe.Inner)}
	case *ast.UnaryExp:
		return &UnaryExp{exp: base, Op: pe.Op, Inner: c.exp(pe.Inner)}
	case *ast.BinopExp:
		if ast.SpecOnlyOps[pe.Op.Value] {
			if !c.requireSpecContext(pe.Op.Span, fmt.Sprintf("operator '%s' is", pe.Op.Value)) {
				return &UnresolvedErrorExp{exp: base}
			}
		}
		return &BinopExp{exp: base, LHS: c.exp(pe.LHS), Op: pe.Op, RHS: c.exp(pe.RHS)}
	case *ast.BorrowExp:
		d, ok := c.expDotted(pe.Inner)
		if !ok {
			return &UnresolvedErrorExp{exp: base}
		}
		return &BorrowExp{exp: base, Mut: pe.Mut, Inner: d}
	case *ast.DotExp:
		d, ok := c.expDotted(pe)
		if !ok {
			return &UnresolvedErrorExp{exp: base}
		}
		return &DottedExp{exp: base, Dotted: d}
	case *ast.DotCallExp:
		c.env.CheckFeature(shared.FeatureDotCall, c.currentPackage, loc)
		d, ok := c.expDotted(pe.LHS)
		if !ok {
			return &UnresolvedErrorExp{exp: base}
		}
		c.markMethodUsed(pe.Method)
		return &MethodCallExp{
			exp:      base,
			Target:   d,
			Method:   pe.Method,
			TypeArgs: c.optTypeArgs(pe.TypeArgs),
			ArgsLoc:  pe.ArgsLoc,
			Args:     c.exps(pe.Args),
		}
	case *ast.CastExp:
		return &CastExp{exp: base, Inner: c.exp(pe.Inner), Type: c.typ(pe.Type)}
	case *ast.IndexExp:
		if !c.requireSpecContext(loc, "index operations are") {
			return &UnresolvedErrorExp{exp: base}
		}
		d, ok := c.expDotted(pe.LHS)
		if !ok {
			return &UnresolvedErrorExp{exp: base}
		}
		return &IndexExp{exp: base, Target: d, Index: c.exp(pe.Index)}
	case *ast.AnnotateExp:
		return &AnnotateExp{exp: base, Inner: c.exp(pe.Inner), Type: c.typ(pe.Type)}
	case *ast.SpecExp:
		if c.inSpecContext {
			c.env.AddDiag(diag.New(diag.SyntaxSpecContextRestricted, loc,
				"'spec' blocks cannot be used inside of a specification context"))
			return &UnresolvedErrorExp{exp: base}
		}
		id, unbound := c.bindExpSpec(pe.Block)
		return &SpecExp{exp: base, ID: id, Unbound: unbound}
	default:
		panic("ICE unexpected expression node")
	}
}

// markMethodUsed records that a method name was called, keeping a use-alias
// candidate of that name alive.
func (c *Context) markMethodUsed(method source.Name) {
	for i := len(c.useFunStack) - 1; i >= 0; i-- {
		if cand, ok := c.useFunStack[i].Implicit.Get(method.Value); ok {
			cand.Used = true
			return
		}
	}
}

// Assignments. The left-hand side decides the expression form: a local or
// deconstructing binding, a dereferenced write, or a field write.
func (c *Context) assign(base exp, plhs ast.Exp, rhs Exp) Exp {
	switch lhs := plhs.(type) {
	case *ast.NameExp, *ast.PackExp, *ast.ExpListExp:
		ls, ok := c.assignList(plhs)
		if !ok {
			return &UnresolvedErrorExp{exp: base}
		}
		return &AssignExp{exp: base, LHS: ls, RHS: rhs}
	case *ast.DereferenceExp:
		return &MutateExp{exp: base, LHS: c.exp(lhs.Inner), RHS: rhs}
	case *ast.DotExp:
		d, ok := c.expDotted(lhs)
		if !ok {
			return &UnresolvedErrorExp{exp: base}
		}
		return &FieldMutateExp{exp: base, LHS: d, RHS: rhs}
	default:
		c.env.AddDiag(diag.New(diag.SyntaxInvalidLValue, plhs.Span(),
			"invalid assignment syntax. Expected: a local, a field write, or a deconstructing assignment"))
		return &UnresolvedErrorExp{exp: base}
	}
}

func (c *Context) assignList(plhs ast.Exp) (LValueList, bool) {
	loc := plhs.Span()
	switch lhs := plhs.(type) {
	case *ast.ExpListExp:
		out := LValueList{Loc: loc}
		for _, inner := range lhs.Exps {
			lv, ok := c.assignTarget(inner)
			if !ok {
				return LValueList{}, false
			}
			out.LValues = append(out.LValues, lv)
		}
		return out, true
	default:
		lv, ok := c.assignTarget(plhs)
		if !ok {
			return LValueList{}, false
		}
		return LValueList{Loc: loc, LValues: []LValue{lv}}, true
	}
}

func (c *Context) assignTarget(pe ast.Exp) (LValue, bool) {
	loc := pe.Span()
	switch pe := pe.(type) {
	case *ast.NameExp:
		if !pe.Name.IsOne() || pe.TypeArgs != nil {
			c.env.AddDiag(diag.New(diag.SyntaxInvalidLValue, loc,
				"invalid assignment target. Expected a local variable"))
			return LValue{}, false
		}
		n := pe.Name.Member
		if n.Value == "_" {
			return LValue{Loc: loc, Kind: LValueIgnore, Var: n}, true
		}
		return LValue{Loc: loc, Kind: LValueVar, Var: n}, true
	case *ast.PackExp:
		ma, ok := c.nameAccessChain(accessApplyNamed, pe.Name)
		if !ok {
			return LValue{}, false
		}
		lv := LValue{Loc: loc, Kind: LValueUnpack, Unpack: ma, TypeArgs: c.optTypeArgs(pe.TypeArgs)}
		for _, f := range pe.Fields {
			sub, ok := c.assignTarget(f.Exp)
			if !ok {
				return LValue{}, false
			}
			lv.Named = append(lv.Named, FieldLValue{Field: f.Name, Bind: &sub})
		}
		return lv, true
	default:
		c.env.AddDiag(diag.New(diag.SyntaxInvalidLValue, loc,
			"invalid assignment target. Expected a local or a deconstructing pattern"))
		return LValue{}, false
	}
}

// expDotted flattens a chain of field accesses onto its base expression.
func (c *Context) expDotted(pe ast.Exp) (*ExpDotted, bool) {
	switch pe := pe.(type) {
	case *ast.DotExp:
		inner, ok := c.expDotted(pe.LHS)
		if !ok {
			return nil, false
		}
		inner.Loc = pe.Span()
		inner.Fields = append(inner.Fields, pe.Field)
		return inner, true
	default:
		e := c.exp(pe)
		if _, failed := e.(*UnresolvedErrorExp); failed {
			return nil, false
		}
		return &ExpDotted{Loc: pe.Span(), Base: e}, true
	}
}

// Specification blocks.

func (c *Context) specBlock(ps *ast.SpecBlock) SpecBlock {
	attrs := c.uniqueAttributes(AttrPosSpec, false, ps.Attributes)
	wasSpec := c.inSpecContext
	c.inSpecContext = true
	defer func() { c.inSpecContext = wasSpec }()

	builder, ufb := c.aliasesFromUses(ps.Uses)
	outer := c.aliases.AddAndShadowAll(builder)
	uf := c.resolveUseFuns(ufb)
	c.mergeBlockUseFuns(uf)

	target := c.specTarget(ps.Target)
	var tparamShadow *OuterScope
	if len(target.TypeParameters) > 0 {
		names := make([]source.Name, 0, len(target.TypeParameters))
		for _, tp := range target.TypeParameters {
			names = append(names, tp.Name)
		}
		sh := c.aliases.ShadowForTypeParameters(names)
		tparamShadow = &sh
	}

	members := make([]SpecMember, 0, len(ps.Members))
	for _, pm := range ps.Members {
		members = append(members, c.specMember(pm))
	}

	if tparamShadow != nil {
		c.setToOuterScope(*tparamShadow)
	}
	c.setToOuterScope(outer)

	return SpecBlock{Loc: ps.Loc, Attributes: attrs, Target: target, Members: members}
}

func (c *Context) specTarget(pt ast.SpecTarget) SpecTarget {
	out := SpecTarget{Loc: pt.Loc, Name: pt.Name}
	switch pt.Kind {
	case ast.SpecTargetCode:
		out.Kind = SpecTargetCode
	case ast.SpecTargetModule:
		out.Kind = SpecTargetModule
	case ast.SpecTargetSchema:
		out.Kind = SpecTargetSchema
		checkValidModuleMemberName(c.env, CaseSchema, pt.Name)
		out.TypeParameters = c.specTypeParameters(pt.TypeParameters)
	case ast.SpecTargetMember:
		out.Kind = SpecTargetMember
		if pt.Signature != nil {
			sig := c.functionSignature(*pt.Signature)
			out.Signature = &sig
		}
	}
	return out
}

func (c *Context) specTypeParameters(pts []ast.TypeParameter) []TypeParameter {
	out := make([]TypeParameter, 0, len(pts))
	for _, tp := range pts {
		checkRestrictedName(c.env, CaseTypeParameter, tp.Name)
		out = append(out, TypeParameter{
			Name:        tp.Name,
			Constraints: c.abilitySet(tp.Constraints, fmt.Sprintf("type parameter '%s'", tp.Name.Value)),
		})
	}
	return out
}

func (c *Context) functionSignature(ps ast.FunctionSignature) FunctionSignature {
	tparams := c.specTypeParameters(ps.TypeParameters)
	params := make([]FunctionParameter, 0, len(ps.Parameters))
	for _, p := range ps.Parameters {
		params = append(params, FunctionParameter{Mut: p.Mut, Var: p.Var, Type: c.typ(p.Type)})
	}
	return FunctionSignature{
		TypeParameters: tparams,
		Parameters:     params,
		ReturnType:     c.typ(ps.ReturnType),
	}
}

func (c *Context) specMember(pm ast.SpecMember) SpecMember {
	out := SpecMember{Loc: pm.Loc}
	switch pm.Kind {
	case ast.SpecMemberCondition:
		out.Kind = SpecMemberCondition
		out.ConditionKind = SpecConditionKind(pm.ConditionKind)
		out.Properties = c.pragmaProperties(pm.Properties)
		var shadow *OuterScope
		if out.ConditionKind.HasTypeParameters() && len(pm.TypeParameters) > 0 {
			out.TypeParameters = c.specTypeParameters(pm.TypeParameters)
			names := make([]source.Name, 0, len(out.TypeParameters))
			for _, tp := range out.TypeParameters {
				names = append(names, tp.Name)
			}
			sh := c.aliases.ShadowForTypeParameters(names)
			shadow = &sh
		}
		out.Exp = c.exp(pm.Exp)
		for _, ae := range pm.AdditionalExps {
			out.AdditionalExps = append(out.AdditionalExps, c.exp(ae))
		}
		if shadow != nil {
			c.setToOuterScope(*shadow)
		}
	case ast.SpecMemberFunction:
		out.Kind = SpecMemberFunction
		out.Name = pm.Name
		out.Uninterpreted = pm.Uninterpreted
		if pm.Signature != nil {
			sig := c.functionSignature(*pm.Signature)
			out.Signature = &sig
		}
		if pm.Body != nil {
			var body FunctionBody
			if pm.Body.Native {
				body = FunctionBody{Loc: pm.Body.Loc, Native: true}
			} else {
				seq := c.sequence(pm.Body.Loc, *pm.Body.Seq)
				body = FunctionBody{Loc: pm.Body.Loc, Seq: &seq}
			}
			out.Body = &body
		}
	case ast.SpecMemberVariable:
		out.Kind = SpecMemberVariable
		out.Name = pm.Name
		out.IsGlobal = pm.IsGlobal
		if pm.Type != nil {
			t := c.typ(*pm.Type)
			out.Type = &t
		}
		if pm.Init != nil {
			out.Init = c.exp(pm.Init)
		}
	case ast.SpecMemberLet:
		out.Kind = SpecMemberLet
		out.Name = pm.Name
		out.PostState = pm.PostState
		out.Def = c.exp(pm.Def)
	case ast.SpecMemberInclude:
		out.Kind = SpecMemberInclude
		out.Properties = c.pragmaProperties(pm.Properties)
		out.Exp = c.exp(pm.Exp)
	case ast.SpecMemberApply:
		out.Kind = SpecMemberApply
		out.Exp = c.exp(pm.Exp)
		out.Patterns = pm.Patterns
		out.ExclusionPatterns = pm.ExclusionPatterns
	case ast.SpecMemberPragma:
		out.Kind = SpecMemberPragma
		out.Properties = c.pragmaProperties(pm.Properties)
	case ast.SpecMemberUpdate:
		out.Kind = SpecMemberUpdate
		out.LHS = c.exp(pm.LHS)
		out.RHS = c.exp(pm.RHS)
	}
	return out
}

func (c *Context) pragmaProperties(pps []ast.PragmaProperty) []PragmaProperty {
	out := make([]PragmaProperty, 0, len(pps))
	for _, pp := range pps {
		ep := PragmaProperty{Loc: pp.Loc, Name: pp.Name}
		if pp.Value != nil {
			if v, ok := c.attributeValue(*pp.Value); ok {
				ep.Value = v
			}
		}
		out = append(out, ep)
	}
	return out
}

// bindExpSpec translates an inline specification block, assigns it the next
// id, and computes the names it uses from the surrounding scope.
func (c *Context) bindExpSpec(ps *ast.SpecBlock) (SpecID, map[string]source.Name) {
	es := c.specBlock(ps)
	unbound := make(map[string]source.Name)
	unboundNamesSpecBlock(unbound, &es)
	id := SpecID(len(c.expSpecs))
	c.expSpecs = append(c.expSpecs, es)
	return id, unbound
}
