package expansion

import (
	"fmt"

	"mica/internal/ast"
	"mica/internal/diag"
	"mica/internal/shared"
	"mica/internal/source"
)

// Context threads the compilation environment and the live lexical state
// through every translation function. One per compilation, never shared.
type Context struct {
	env              *shared.CompilationEnv
	namedAddressMaps *shared.NamedAddressMaps
	addressConflicts map[string]bool
	currentMap       shared.NamedAddressMap
	currentPackage   string

	moduleMembers ModuleMembers
	aliases       *AliasMap

	isSourceDefinition bool
	currentModule      *ModuleIdent
	inSpecContext      bool

	useFunStack []*UseFuns
	expSpecs    []SpecBlock
}

// TranslateProgram runs the expansion pass over the whole parser-stage
// program, producing the alias-free second AST. Diagnostics accumulate on
// env; callers gate on severity afterwards.
func TranslateProgram(env *shared.CompilationEnv, prog *ast.Program) *Program {
	members := make(ModuleMembers)
	AllModuleMembers(members, prog.NamedAddressMaps, true, prog.SourceDefinitions)
	AllModuleMembers(members, prog.NamedAddressMaps, false, prog.LibDefinitions)

	c := &Context{
		env:              env,
		namedAddressMaps: prog.NamedAddressMaps,
		addressConflicts: computeAddressConflicts(prog.NamedAddressMaps),
		moduleMembers:    members,
		aliases:          NewAliasMap(),
	}

	moduleMap := NewUniqueMap[*ModuleDefinition]()
	var scripts []*Script

	c.isSourceDefinition = true
	for _, pd := range prog.SourceDefinitions {
		c.currentPackage = pd.Package
		c.currentMap = prog.NamedAddressMaps.Get(pd.NamedAddressMap)
		c.definition(moduleMap, &scripts, pd.Def)
	}
	c.isSourceDefinition = false
	for _, pd := range prog.LibDefinitions {
		c.currentPackage = pd.Package
		c.currentMap = prog.NamedAddressMaps.Get(pd.NamedAddressMap)
		c.definition(moduleMap, &scripts, pd.Def)
	}

	return &Program{Modules: moduleMap, Scripts: scriptKeys(scripts)}
}

// computeAddressConflicts finds named addresses whose name-to-value mapping
// is not bijective across all address maps in the compilation. Both
// directions count: a name with two values, and a value with two names.
func computeAddressConflicts(maps *shared.NamedAddressMaps) map[string]bool {
	nameToAddrs := make(map[string]map[shared.NumericalAddress]bool)
	addrToNames := make(map[shared.NumericalAddress]map[string]bool)
	for _, m := range maps.All() {
		for name, addr := range m {
			if nameToAddrs[name] == nil {
				nameToAddrs[name] = make(map[shared.NumericalAddress]bool)
			}
			nameToAddrs[name][addr] = true
			if addrToNames[addr] == nil {
				addrToNames[addr] = make(map[string]bool)
			}
			addrToNames[addr][name] = true
		}
	}
	conflicts := make(map[string]bool)
	for name, addrs := range nameToAddrs {
		if len(addrs) > 1 {
			conflicts[name] = true
		}
	}
	for _, names := range addrToNames {
		if len(names) > 1 {
			for name := range names {
				conflicts[name] = true
			}
		}
	}
	return conflicts
}

// scriptKeys derives the output key for each script. A base name used once
// keeps its name; any name used by several scripts suffixes every one of
// them in encounter order, so key derivation does not depend on scan order.
func scriptKeys(list []*Script) map[string]*Script {
	byName := make(map[string][]*Script)
	var order []string
	for _, s := range list {
		n := s.FunctionName.Value
		if _, seen := byName[n]; !seen {
			order = append(order, n)
		}
		byName[n] = append(byName[n], s)
	}
	out := make(map[string]*Script, len(list))
	for _, n := range order {
		ss := byName[n]
		if len(ss) == 1 {
			out[n] = ss[0]
			continue
		}
		for i, s := range ss {
			out[fmt.Sprintf("%s_%d", n, i)] = s
		}
	}
	return out
}

func (c *Context) definition(moduleMap *UniqueMap[*ModuleDefinition], scripts *[]*Script, def ast.Definition) {
	switch d := def.(type) {
	case *ast.ModuleDefinition:
		c.module(moduleMap, nil, d)
	case *ast.AddressDefinition:
		addr := c.topLevelAddress(true, d.Addr)
		for _, m := range d.Modules {
			c.module(moduleMap, &addr, m)
		}
	case *ast.Script:
		if !c.isSourceDefinition {
			// scripts are not a reusable library concept
			return
		}
		if s := c.script(d); s != nil {
			*scripts = append(*scripts, s)
		}
	}
}

// Addresses.

func (c *Context) topLevelAddress(suggestDeclared bool, ln ast.LeadingNameAccess) Address {
	if ln.IsAnonymous() {
		return AnonymousAddress(ln.Loc, *ln.Anon)
	}
	name := source.Name{Value: ln.Name, Span: ln.Loc}
	if v, ok := c.currentMap[ln.Name]; ok {
		return NamedAddress(name, v, c.addressConflicts[ln.Name])
	}
	msg := fmt.Sprintf("address '%s' is not assigned a value", ln.Name)
	if suggestDeclared {
		msg += ". Try assigning it a value when calling the compiler"
	}
	c.env.AddDiag(diag.New(diag.NameResolutionAddressWithoutValue, ln.Loc, msg))
	return UnassignedAddress(name)
}

// Modules.

func (c *Context) module(moduleMap *UniqueMap[*ModuleDefinition], blockAddr *Address, pm *ast.ModuleDefinition) {
	attrs := c.uniqueAttributes(AttrPosModule, false, pm.Attributes)
	wf := c.moduleWarningFilter(attrs)
	c.env.PushWarningFilterScope(wf)
	defer c.env.PopWarningFilterScope()

	var addr Address
	switch {
	case blockAddr != nil && pm.Address != nil:
		d := diag.New(diag.DeclarationsDuplicateItem, pm.Address.Loc,
			"redundant address specification. The module is already inside an address block")
		d = d.WithNote(blockAddr.Loc, "Address previously specified here")
		c.env.AddDiag(d)
		addr = *blockAddr
	case blockAddr != nil:
		addr = *blockAddr
	case pm.Address != nil:
		addr = c.topLevelAddress(true, *pm.Address)
	default:
		c.env.AddDiag(diag.New(diag.DeclarationsInvalidModule, pm.Loc,
			fmt.Sprintf("invalid module declaration. The module '%s' does not have an address. Declare it inside an address block or as 'module <address>::%s'",
				pm.Name.Value, pm.Name.Value)))
		addr = AnonymousAddress(pm.Loc, shared.DefaultErrorAddress)
	}

	checkRestrictedName(c.env, CaseModuleName, pm.Name)
	ident := ModuleIdent{Loc: pm.Name.Span, Address: addr, Module: pm.Name}
	c.currentModule = &ident
	defer func() { c.currentModule = nil }()

	var (
		uses       []*ast.UseDecl
		friendDecl []*ast.FriendDecl
		pstructs   []*ast.StructDefinition
		pfunctions []*ast.Function
		pconstants []*ast.Constant
		pspecs     []*ast.SpecBlock
	)
	for _, mem := range pm.Members {
		switch mem := mem.(type) {
		case *ast.UseDecl:
			uses = append(uses, mem)
		case *ast.FriendDecl:
			friendDecl = append(friendDecl, mem)
		case *ast.StructDefinition:
			pstructs = append(pstructs, mem)
		case *ast.Function:
			pfunctions = append(pfunctions, mem)
		case *ast.Constant:
			pconstants = append(pconstants, mem)
		case *ast.SpecBlock:
			pspecs = append(pspecs, mem)
		}
	}

	builder, ufb := c.aliasesFromUses(uses)
	builder.AddImplicitModuleAlias(source.Name{Value: selfName, Span: pm.Name.Span}, ident)
	outer := c.aliases.AddAndShadowAll(builder)
	uf := c.resolveUseFuns(ufb)
	c.useFunStack = append(c.useFunStack, &uf)

	structs := NewUniqueMap[*StructDefinition]()
	for i, ps := range pstructs {
		name, sd, ok := c.structDef(i, ps)
		if !ok {
			continue
		}
		addModuleMember(c, structs, name, sd, "struct")
	}

	functions := NewUniqueMap[*Function]()
	for i, pf := range pfunctions {
		name, fd, ok := c.function(i, pf)
		if !ok {
			continue
		}
		if !addModuleMember(c, functions, name, fd, "function") {
			continue
		}
		// every declared function is a method candidate for its own module
		uf.Implicit.Add(name.Value, name.Span, &ImplicitUseFunCandidate{
			Loc:      name.Span,
			Module:   ident,
			Function: name,
			Kind:     ImplicitFunctionDeclaration,
			Used:     true,
		})
	}

	constants := NewUniqueMap[*Constant]()
	for i, pc := range pconstants {
		name, cd, ok := c.constant(i, pc)
		if !ok {
			continue
		}
		addModuleMember(c, constants, name, cd, "constant")
	}

	friends := NewUniqueMap[Friend]()
	for _, pf := range friendDecl {
		c.friend(friends, ident, pf)
	}

	c.checkVisibilityModifiers(functions, friends)

	var specs []SpecBlock
	for _, psp := range pspecs {
		specs = append(specs, c.specBlock(psp))
	}

	c.setToOuterScope(outer)
	c.useFunStack = c.useFunStack[:len(c.useFunStack)-1]
	c.finishUseFuns(&uf)

	md := &ModuleDefinition{
		Ident:          ident,
		PackageName:    c.currentPackage,
		Attributes:     attrs,
		Loc:            pm.Loc,
		UseFuns:        uf,
		IsSourceModule: c.isSourceDefinition,
		Friends:        friends,
		Structs:        structs,
		Constants:      constants,
		Functions:      functions,
		Specs:          specs,
		WarningFilter:  wf,
	}
	c.setModule(moduleMap, ident, md)
}

func addModuleMember[T any](c *Context, m *UniqueMap[T], name source.Name, v T, kind string) bool {
	if prev, ok := m.Add(name.Value, name.Span, v); !ok {
		d := diag.New(diag.DeclarationsDuplicateItem, name.Span,
			fmt.Sprintf("duplicate definition for %s '%s'", kind, name.Value))
		d = d.WithNote(prev, fmt.Sprintf("%s previously defined here", titleCaser.String(kind)))
		c.env.AddDiag(d)
		return false
	}
	return true
}

// checkVisibilityModifiers rejects mixing the package-visibility model with
// the friend-visibility model inside one module.
func (c *Context) checkVisibilityModifiers(functions *UniqueMap[*Function], friends *UniqueMap[Friend]) {
	var friendLoc *source.Span
	friends.Each(func(_ string, loc source.Span, _ Friend) {
		if friendLoc == nil {
			friendLoc = &loc
		}
	})
	var packageLoc *source.Span
	functions.Each(func(_ string, _ source.Span, f *Function) {
		switch f.Visibility.Kind {
		case VisibilityPackage:
			if packageLoc == nil {
				loc := f.Visibility.Loc
				packageLoc = &loc
			}
		case VisibilityFriend:
			if friendLoc == nil {
				loc := f.Visibility.Loc
				friendLoc = &loc
			}
		}
	})
	if packageLoc != nil && friendLoc != nil {
		d := diag.New(diag.DeclarationsInvalidVisibility, *packageLoc,
			"invalid visibility. 'public(package)' and friend visibility cannot be used in the same module")
		d = d.WithNote(*friendLoc, "Friend visibility used here")
		c.env.AddDiag(d)
	}
}

func (c *Context) setModule(moduleMap *UniqueMap[*ModuleDefinition], ident ModuleIdent, md *ModuleDefinition) {
	key := ident.Key()
	if existing, ok := moduleMap.Get(key); ok {
		if c.env.Flags().SourcesShadowDeps && existing.IsSourceModule && !md.IsSourceModule {
			return
		}
		prevLoc, _ := moduleMap.GetLoc(key)
		d := diag.New(diag.DeclarationsDuplicateItem, md.Loc,
			fmt.Sprintf("duplicate definition for module '%s'", ident))
		d = d.WithNote(prevLoc, "Module previously defined here")
		c.env.AddDiag(d)
		return
	}
	moduleMap.Add(key, md.Loc, md)
}

// Scripts.

func (c *Context) script(ps *ast.Script) *Script {
	attrs := c.uniqueAttributes(AttrPosScript, false, ps.Attributes)
	wf := c.moduleWarningFilter(attrs)
	c.env.PushWarningFilterScope(wf)
	defer c.env.PopWarningFilterScope()

	builder, ufb := c.aliasesFromUses(ps.Uses)
	outer := c.aliases.AddAndShadowAll(builder)
	uf := c.resolveUseFuns(ufb)
	c.useFunStack = append(c.useFunStack, &uf)

	constants := NewUniqueMap[*Constant]()
	for i, pc := range ps.Constants {
		name, cd, ok := c.constant(i, pc)
		if !ok {
			continue
		}
		addModuleMember(c, constants, name, cd, "constant")
	}

	pf := ps.Function
	if pf == nil {
		c.env.AddDiag(diag.New(diag.DeclarationsInvalidScript, ps.Loc,
			"invalid script. A script must declare exactly one function"))
		c.setToOuterScope(outer)
		c.useFunStack = c.useFunStack[:len(c.useFunStack)-1]
		return nil
	}
	if pf.Visibility.Kind != ast.VisibilityInternal {
		c.env.AddDiag(diag.New(diag.DeclarationsInvalidScript, pf.Visibility.Loc,
			"invalid script function. Script functions cannot have visibility modifiers; they are implicitly callable"))
	}
	if pf.Body.Native {
		c.env.AddDiag(diag.New(diag.DeclarationsInvalidScript, pf.Body.Loc,
			"invalid script function. Script functions cannot be native"))
	}
	name, fd, fok := c.function(0, pf)

	var specs []SpecBlock
	for _, psp := range ps.Specs {
		specs = append(specs, c.specBlock(psp))
	}

	c.setToOuterScope(outer)
	c.useFunStack = c.useFunStack[:len(c.useFunStack)-1]
	c.finishUseFuns(&uf)

	if !fok {
		return nil
	}
	return &Script{
		WarningFilter: wf,
		PackageName:   c.currentPackage,
		Attributes:    attrs,
		Loc:           ps.Loc,
		UseFuns:       uf,
		Constants:     constants,
		FunctionName:  name,
		Function:      fd,
		Specs:         specs,
	}
}

// Use declarations and aliases.

// pendingExplicitUseFun holds a parsed use fun until the alias scope it
// belongs to is live and its name chains can resolve.
type pendingExplicitUseFun struct {
	loc        source.Span
	attributes *Attributes
	isPublic   *source.Span
	function   ast.NameAccessChain
	typ        ast.NameAccessChain
	method     source.Name
}

type useFunsBuilder struct {
	explicit []pendingExplicitUseFun
	implicit *UniqueMap[*ImplicitUseFunCandidate]
}

// aliasesFromUses folds every use declaration into an alias builder plus a
// use-fun builder. Unbound modules and members are reported here; the
// resulting builders only carry resolved targets.
func (c *Context) aliasesFromUses(uses []*ast.UseDecl) (*AliasMapBuilder, *useFunsBuilder) {
	builder := NewAliasMapBuilder()
	ufb := &useFunsBuilder{implicit: NewUniqueMap[*ImplicitUseFunCandidate]()}
	for _, u := range uses {
		attrs := c.uniqueAttributes(AttrPosUse, false, u.Attributes)
		switch use := u.Use.(type) {
		case *ast.ModuleUse:
			c.moduleUse(builder, ufb, attrs, u.Loc, use)
		case *ast.UseFun:
			c.env.CheckFeature(shared.FeatureDotCall, c.currentPackage, u.Loc)
			var isPublic *source.Span
			switch use.Visibility.Kind {
			case ast.VisibilityInternal:
			case ast.VisibilityPublic:
				loc := use.Visibility.Loc
				isPublic = &loc
			default:
				c.env.AddDiag(diag.New(diag.DeclarationsInvalidUseFun, use.Visibility.Loc,
					"invalid visibility for 'use fun' declaration. Only 'public' is supported"))
			}
			ufb.explicit = append(ufb.explicit, pendingExplicitUseFun{
				loc:        u.Loc,
				attributes: attrs,
				isPublic:   isPublic,
				function:   use.Function,
				typ:        use.Type,
				method:     use.Method,
			})
		}
	}
	return builder, ufb
}

func (c *Context) moduleUse(builder *AliasMapBuilder, ufb *useFunsBuilder, attrs *Attributes, loc source.Span, use *ast.ModuleUse) {
	ident, ok := c.moduleIdent(use.Module)
	if !ok {
		return
	}
	if use.Members == nil {
		alias := use.Module.Module
		if use.Alias != nil {
			alias = *use.Alias
		}
		if !checkRestrictedName(c.env, CaseModuleAlias, alias) {
			return
		}
		if prev, added := builder.AddModuleAlias(alias, ident); !added {
			c.duplicateAliasDiag(CaseModuleAlias, alias, prev)
		}
		return
	}
	members, _ := c.moduleMembers.Module(ident)
	for _, um := range use.Members {
		if um.Name.Value == selfName {
			alias := use.Module.Module
			if um.Alias != nil {
				alias = *um.Alias
			}
			if prev, added := builder.AddModuleAlias(alias, ident); !added {
				c.duplicateAliasDiag(CaseModuleAlias, alias, prev)
			}
			continue
		}
		info, bound := members[um.Name.Value]
		if !bound {
			c.env.AddDiag(diag.New(diag.NameResolutionUnboundModuleMember, um.Name.Span,
				fmt.Sprintf("invalid 'use'. Unbound member '%s' in module '%s'", um.Name.Value, ident)))
			continue
		}
		alias := um.Name
		if um.Alias != nil {
			alias = *um.Alias
		}
		if !checkRestrictedName(c.env, CaseModuleMemberAlias, alias) {
			continue
		}
		if prev, added := builder.AddMemberAlias(alias, ident, um.Name); !added {
			c.duplicateAliasDiag(CaseModuleMemberAlias, alias, prev)
			continue
		}
		if info.Kind == ModuleMemberFunction {
			// method candidate; usage decided when the alias scope closes
			ufb.implicit.Add(alias.Value, alias.Span, &ImplicitUseFunCandidate{
				Loc:        alias.Span,
				Attributes: attrs,
				Module:     ident,
				Function:   um.Name,
				Kind:       ImplicitUseAlias,
				Used:       true,
			})
		}
	}
}

func (c *Context) duplicateAliasDiag(kind NameCase, alias source.Name, prev source.Span) {
	d := diag.New(diag.DeclarationsDuplicateItem, alias.Span,
		fmt.Sprintf("duplicate %s '%s'. Aliases must be unique within a given scope", kind, alias.Value))
	d = d.WithNote(prev, "Alias previously defined here")
	c.env.AddDiag(d)
}

func (c *Context) moduleIdent(p ast.ModuleIdent) (ModuleIdent, bool) {
	addr := c.topLevelAddress(false, p.Address)
	ident := ModuleIdent{Loc: p.Loc, Address: addr, Module: p.Module}
	if _, bound := c.moduleMembers.Module(ident); !bound {
		c.env.AddDiag(diag.New(diag.NameResolutionUnboundModule, p.Loc,
			fmt.Sprintf("invalid 'use'. Unbound module '%s'", ident)))
		return ident, false
	}
	return ident, true
}

// resolveUseFuns resolves the pending explicit use funs against the now-live
// alias scope and seals the builder.
func (c *Context) resolveUseFuns(ufb *useFunsBuilder) UseFuns {
	uf := UseFuns{Implicit: ufb.implicit}
	for _, p := range ufb.explicit {
		fn, ok := c.nameAccessChain(accessTerm, p.function)
		if !ok {
			continue
		}
		if !fn.IsQualified() {
			c.env.AddDiag(diag.New(diag.DeclarationsInvalidUseFun, fn.Loc,
				"invalid 'use fun'. Expected a module function, e.g. 'a::m::f'"))
			continue
		}
		ty, ok := c.nameAccessChain(accessType, p.typ)
		if !ok {
			continue
		}
		uf.Explicit = append(uf.Explicit, ExplicitUseFun{
			Loc:        p.loc,
			Attributes: p.attributes,
			IsPublic:   p.isPublic,
			Function:   fn,
			Type:       ty,
			Method:     p.method,
		})
	}
	return uf
}

// finishUseFuns reports use-alias method candidates that went out of scope
// unused. Method resolution never ran for them, so the alias had no effect.
func (c *Context) finishUseFuns(uf *UseFuns) {
	if !c.isSourceDefinition || c.env.Flags().Test {
		return
	}
	uf.Implicit.Each(func(name string, _ source.Span, cand *ImplicitUseFunCandidate) {
		if cand.Kind == ImplicitUseAlias && !cand.Used {
			c.env.AddDiag(diag.New(diag.UnusedItemUseFun, cand.Loc,
				fmt.Sprintf("unused 'use' of alias '%s' as a method call target. Consider removing it", name)))
		}
	})
}

func (c *Context) useFunsTop() *UseFuns {
	if len(c.useFunStack) == 0 {
		return nil
	}
	return c.useFunStack[len(c.useFunStack)-1]
}

// setToOuterScope pops the alias scope and reconciles unused aliases: member
// aliases backing a method-call candidate are marked unused in the use-fun
// table; everything else is reported directly. Dependency definitions and
// test mode skip the reports.
func (c *Context) setToOuterScope(outer OuterScope) {
	unused := c.aliases.SetToOuterScope(outer)
	if !c.isSourceDefinition || c.env.Flags().Test {
		return
	}
	uf := c.useFunsTop()
	for _, u := range unused {
		if u.Kind == AliasEntryMember && uf != nil {
			if cand, ok := uf.Implicit.Get(u.Name.Value); ok &&
				cand.Kind == ImplicitUseAlias &&
				cand.Module.Key() == u.Module.Key() &&
				cand.Function.Value == u.Member.Value {
				cand.Used = false
				continue
			}
		}
		c.env.AddDiag(diag.New(diag.UnusedItemAlias, u.Name.Span,
			fmt.Sprintf("unused 'use' of alias '%s'. Consider removing it", u.Name.Value)))
	}
}

// Name access chains.

type accessKind uint8

const (
	accessType accessKind = iota
	accessApplyNamed
	accessApplyPositional
	accessTerm
)

func (k accessKind) describe() string {
	switch k {
	case accessType:
		return "type"
	case accessApplyNamed, accessApplyPositional:
		return "construct"
	default:
		return "expression"
	}
}

func (c *Context) nameAccessChain(kind accessKind, chain ast.NameAccessChain) (ModuleAccess, bool) {
	loc := chain.Loc
	switch {
	case chain.IsOne():
		n := chain.Member
		if mident, member, ok := c.aliases.GetMember(n.Value); ok {
			return ModuleAccess{Loc: loc, Module: &mident, Name: member}, true
		}
		return ModuleAccess{Loc: loc, Name: n}, true
	case chain.IsTwo():
		ln := *chain.Leading
		if ln.IsAnonymous() {
			c.env.AddDiag(diag.New(diag.NameResolutionNamePositionMismatch, loc,
				fmt.Sprintf("unexpected module identifier. A module identifier is not a valid %s", kind.describe())))
			return ModuleAccess{}, false
		}
		mident, ok := c.aliases.GetModule(ln.Name)
		if !ok {
			c.env.AddDiag(diag.New(diag.NameResolutionUnboundModule, ln.Loc,
				fmt.Sprintf("unbound module alias '%s'", ln.Name)))
			return ModuleAccess{}, false
		}
		c.checkModuleMember(mident, chain.Member)
		return ModuleAccess{Loc: loc, Module: &mident, Name: chain.Member}, true
	default:
		addr := c.topLevelAddress(false, *chain.Leading)
		mident := ModuleIdent{Loc: chain.Loc, Address: addr, Module: *chain.Module}
		if _, bound := c.moduleMembers.Module(mident); !bound {
			c.env.AddDiag(diag.New(diag.NameResolutionUnboundModule, chain.Loc,
				fmt.Sprintf("unbound module '%s'", mident)))
			return ModuleAccess{}, false
		}
		c.checkModuleMember(mident, chain.Member)
		return ModuleAccess{Loc: loc, Module: &mident, Name: chain.Member}, true
	}
}

func (c *Context) checkModuleMember(mident ModuleIdent, member source.Name) {
	members, bound := c.moduleMembers.Module(mident)
	if !bound {
		return
	}
	if _, ok := members[member.Value]; !ok {
		c.env.AddDiag(diag.New(diag.NameResolutionUnboundModuleMember, member.Span,
			fmt.Sprintf("unbound member '%s' in module '%s'", member.Value, mident)))
	}
}

// Values.

func (c *Context) value(pv ast.Value) (Value, bool) {
	switch pv.Kind {
	case ast.ValueAddress:
		addr := c.topLevelAddress(false, *pv.Address)
		return Value{Loc: pv.Loc, Kind: ValueAddress, Address: addr}, true
	case ast.ValueNum:
		return parseNumber(c.env, pv.Loc, pv.Num)
	case ast.ValueBool:
		return Value{Loc: pv.Loc, Kind: ValueBool, Bool: pv.Bool}, true
	case ast.ValueHexString:
		b, ok := decodeHexString(c.env, pv.Loc, pv.Str)
		if !ok {
			return Value{}, false
		}
		return Value{Loc: pv.Loc, Kind: ValueBytearray, Bytes: b}, true
	case ast.ValueByteString:
		b, ok := decodeByteString(c.env, pv.Loc, pv.Str)
		if !ok {
			return Value{}, false
		}
		return Value{Loc: pv.Loc, Kind: ValueBytearray, Bytes: b}, true
	default:
		panic("ICE unexpected value kind")
	}
}

// Structs.

var validAbilities = map[string]bool{"copy": true, "drop": true, "store": true, "key": true}

func (c *Context) abilitySet(abilities []ast.Ability, caseDesc string) AbilitySet {
	set := NewAbilitySet()
	for _, a := range abilities {
		if !validAbilities[a.Value] {
			c.env.AddDiag(diag.New(diag.DeclarationsInvalidName, a.Loc,
				fmt.Sprintf("unknown ability '%s'. Expected one of: copy, drop, store, key", a.Value)))
			continue
		}
		if prev, ok := set.Add(a.Value, a.Loc); !ok {
			d := diag.New(diag.DeclarationsDuplicateItem, a.Loc,
				fmt.Sprintf("duplicate ability '%s' in %s", a.Value, caseDesc))
			d = d.WithNote(prev, "Ability previously given here")
			c.env.AddDiag(d)
		}
	}
	return set
}

func (c *Context) structDef(index int, ps *ast.StructDefinition) (source.Name, *StructDefinition, bool) {
	attrs := c.uniqueAttributes(AttrPosStruct, false, ps.Attributes)
	wf := c.warningFilter(attrs)
	c.env.PushWarningFilterScope(wf)
	defer c.env.PopWarningFilterScope()

	if !checkValidModuleMemberName(c.env, CaseStruct, ps.Name) {
		return source.Name{}, nil, false
	}
	abilities := c.abilitySet(ps.Abilities, fmt.Sprintf("struct '%s'", ps.Name.Value))

	tparams := make([]StructTypeParameter, 0, len(ps.TypeParameters))
	tparamNames := make([]source.Name, 0, len(ps.TypeParameters))
	for _, tp := range ps.TypeParameters {
		checkRestrictedName(c.env, CaseTypeParameter, tp.Name)
		tparams = append(tparams, StructTypeParameter{
			IsPhantom:   tp.IsPhantom,
			Name:        tp.Name,
			Constraints: c.abilitySet(tp.Constraints, fmt.Sprintf("type parameter '%s'", tp.Name.Value)),
		})
		tparamNames = append(tparamNames, tp.Name)
	}
	outer := c.aliases.ShadowForTypeParameters(tparamNames)
	fields := c.structFields(ps.Name, ps.Fields)
	c.setToOuterScope(outer)

	sd := &StructDefinition{
		WarningFilter:  wf,
		Index:          index,
		Attributes:     attrs,
		Loc:            ps.Loc,
		Abilities:      abilities,
		TypeParameters: tparams,
		Fields:         fields,
	}
	return ps.Name, sd, true
}

func (c *Context) structFields(structName source.Name, pf ast.StructFields) StructFields {
	switch pf.Kind {
	case ast.StructFieldsNative:
		return StructFields{Kind: StructFieldsNative, NativeLoc: pf.NativeLoc}
	case ast.StructFieldsPositional:
		c.env.CheckFeature(shared.FeaturePositionalFields, c.currentPackage, structName.Span)
		types := make([]Type, 0, len(pf.Positional))
		for _, t := range pf.Positional {
			types = append(types, c.typ(t))
		}
		return StructFields{Kind: StructFieldsPositional, Positional: types}
	default:
		named := NewUniqueMap[FieldType]()
		for i, f := range pf.Named {
			if prev, ok := named.Add(f.Name.Value, f.Name.Span, FieldType{Index: i, Type: c.typ(f.Type)}); !ok {
				d := diag.New(diag.DeclarationsDuplicateItem, f.Name.Span,
					fmt.Sprintf("duplicate definition for field '%s' in struct '%s'", f.Name.Value, structName.Value))
				d = d.WithNote(prev, "Field previously defined here")
				c.env.AddDiag(d)
			}
		}
		return StructFields{Kind: StructFieldsNamed, Named: named}
	}
}

// Constants.

func (c *Context) constant(index int, pc *ast.Constant) (source.Name, *Constant, bool) {
	attrs := c.uniqueAttributes(AttrPosConstant, false, pc.Attributes)
	wf := c.warningFilter(attrs)
	c.env.PushWarningFilterScope(wf)
	defer c.env.PopWarningFilterScope()

	if !checkValidModuleMemberName(c.env, CaseConstant, pc.Name) {
		return source.Name{}, nil, false
	}
	cd := &Constant{
		WarningFilter: wf,
		Index:         index,
		Attributes:    attrs,
		Loc:           pc.Loc,
		Signature:     c.typ(pc.Signature),
		Value:         c.exp(pc.Value),
	}
	return pc.Name, cd, true
}

// Functions.

func (c *Context) function(index int, pf *ast.Function) (source.Name, *Function, bool) {
	attrs := c.uniqueAttributes(AttrPosFunction, false, pf.Attributes)
	wf := c.warningFilter(attrs)
	c.env.PushWarningFilterScope(wf)
	defer c.env.PopWarningFilterScope()

	if !checkValidModuleMemberName(c.env, CaseFunction, pf.Name) {
		return source.Name{}, nil, false
	}
	visibility, entry := c.visibility(pf.Visibility, pf.Entry)

	tparams := make([]TypeParameter, 0, len(pf.Signature.TypeParameters))
	tparamNames := make([]source.Name, 0, len(pf.Signature.TypeParameters))
	for _, tp := range pf.Signature.TypeParameters {
		checkRestrictedName(c.env, CaseTypeParameter, tp.Name)
		tparams = append(tparams, TypeParameter{
			Name:        tp.Name,
			Constraints: c.abilitySet(tp.Constraints, fmt.Sprintf("type parameter '%s'", tp.Name.Value)),
		})
		tparamNames = append(tparamNames, tp.Name)
	}
	outer := c.aliases.ShadowForTypeParameters(tparamNames)

	seen := NewUniqueMap[struct{}]()
	params := make([]FunctionParameter, 0, len(pf.Signature.Parameters))
	for _, p := range pf.Signature.Parameters {
		if p.Var.Value != "_" {
			checkValidLocalName(c.env, p.Var)
		}
		if p.Mut != nil {
			c.env.CheckFeature(shared.FeatureLetMut, c.currentPackage, *p.Mut)
		}
		if prev, ok := seen.Add(p.Var.Value, p.Var.Span, struct{}{}); !ok && p.Var.Value != "_" {
			d := diag.New(diag.DeclarationsDuplicateItem, p.Var.Span,
				fmt.Sprintf("duplicate parameter '%s' in function '%s'", p.Var.Value, pf.Name.Value))
			d = d.WithNote(prev, "Parameter previously given here")
			c.env.AddDiag(d)
		}
		params = append(params, FunctionParameter{Mut: p.Mut, Var: p.Var, Type: c.typ(p.Type)})
	}
	signature := FunctionSignature{
		TypeParameters: tparams,
		Parameters:     params,
		ReturnType:     c.typ(pf.Signature.ReturnType),
	}

	oldSpecs := c.expSpecs
	c.expSpecs = nil
	var body FunctionBody
	if pf.Body.Native {
		body = FunctionBody{Loc: pf.Body.Loc, Native: true}
	} else {
		seq := c.sequence(pf.Body.Loc, *pf.Body.Seq)
		body = FunctionBody{Loc: pf.Body.Loc, Seq: &seq}
	}
	specs := make(map[SpecID]SpecBlock, len(c.expSpecs))
	for i, sp := range c.expSpecs {
		specs[SpecID(i)] = sp
	}
	c.expSpecs = oldSpecs

	c.setToOuterScope(outer)

	fd := &Function{
		WarningFilter: wf,
		Index:         index,
		Attributes:    attrs,
		Loc:           pf.Loc,
		Visibility:    visibility,
		Entry:         entry,
		Signature:     signature,
		Body:          body,
		Specs:         specs,
	}
	return pf.Name, fd, true
}

// visibility lowers the parsed modifier. The script form is deprecated
// syntax for a public entry function.
func (c *Context) visibility(pv ast.Visibility, entry *source.Span) (Visibility, *source.Span) {
	switch pv.Kind {
	case ast.VisibilityPublic:
		return Visibility{Kind: VisibilityPublic, Loc: pv.Loc}, entry
	case ast.VisibilityScript:
		c.env.AddDiag(diag.New(diag.DeclarationsInvalidVisibility, pv.Loc,
			"'public(script)' is deprecated. Declare the function as 'public' with the 'entry' modifier"))
		if entry == nil {
			loc := pv.Loc
			entry = &loc
		}
		return Visibility{Kind: VisibilityPublic, Loc: pv.Loc}, entry
	case ast.VisibilityFriend:
		return Visibility{Kind: VisibilityFriend, Loc: pv.Loc}, entry
	case ast.VisibilityPackage:
		c.env.CheckFeature(shared.FeaturePublicPackage, c.currentPackage, pv.Loc)
		return Visibility{Kind: VisibilityPackage, Loc: pv.Loc}, entry
	default:
		return Visibility{Kind: VisibilityInternal, Loc: pv.Loc}, entry
	}
}

// Friends.

func (c *Context) friend(friends *UniqueMap[Friend], current ModuleIdent, pf *ast.FriendDecl) {
	attrs := c.uniqueAttributes(AttrPosFriend, false, pf.Attributes)
	chain := pf.Friend
	var ident ModuleIdent
	switch {
	case chain.IsOne():
		m, ok := c.aliases.GetModule(chain.Member.Value)
		if !ok {
			c.env.AddDiag(diag.New(diag.NameResolutionUnboundModule, chain.Loc,
				fmt.Sprintf("invalid friend declaration. Unbound module alias '%s'", chain.Member.Value)))
			return
		}
		ident = m
	case chain.IsTwo():
		addr := c.topLevelAddress(false, *chain.Leading)
		ident = ModuleIdent{Loc: chain.Loc, Address: addr, Module: chain.Member}
		if _, bound := c.moduleMembers.Module(ident); !bound {
			c.env.AddDiag(diag.New(diag.NameResolutionUnboundModule, chain.Loc,
				fmt.Sprintf("invalid friend declaration. Unbound module '%s'", ident)))
			return
		}
	default:
		c.env.AddDiag(diag.New(diag.DeclarationsInvalidModule, chain.Loc,
			"invalid friend declaration. Expected a module identifier, e.g. 'a::m'"))
		return
	}
	if ident.Key() == current.Key() {
		c.env.AddDiag(diag.New(diag.DeclarationsUnnecessaryItem, pf.Loc,
			"invalid friend declaration. A module cannot be a friend of itself"))
		return
	}
	if prev, ok := friends.Add(ident.Key(), pf.Loc, Friend{Attributes: attrs, Loc: pf.Loc}); !ok {
		d := diag.New(diag.DeclarationsDuplicateItem, pf.Loc,
			fmt.Sprintf("duplicate friend declaration for '%s'", ident))
		d = d.WithNote(prev, "Friend previously declared here")
		c.env.AddDiag(d)
	}
}

// Types.

func (c *Context) typ(pt ast.Type) Type {
	switch pt.Kind {
	case ast.TypeUnit:
		return Type{Loc: pt.Loc, Kind: TypeUnit}
	case ast.TypeMultiple:
		out := make([]Type, 0, len(pt.Multiple))
		for _, t := range pt.Multiple {
			out = append(out, c.typ(t))
		}
		return Type{Loc: pt.Loc, Kind: TypeMultiple, Multiple: out}
	case ast.TypeApply:
		ma, ok := c.nameAccessChain(accessType, *pt.Apply)
		if !ok {
			return UnresolvedType(pt.Loc)
		}
		args := make([]Type, 0, len(pt.TypeArgs))
		for _, t := range pt.TypeArgs {
			args = append(args, c.typ(t))
		}
		return Type{Loc: pt.Loc, Kind: TypeApply, Apply: &ma, TypeArgs: args}
	case ast.TypeRef:
		inner := c.typ(*pt.Inner)
		return Type{Loc: pt.Loc, Kind: TypeRef, Mut: pt.Mut, Inner: &inner}
	case ast.TypeFun:
		if !c.requireSpecContext(pt.Loc, "function types are") {
			return UnresolvedType(pt.Loc)
		}
		args := make([]Type, 0, len(pt.FunArgs))
		for _, t := range pt.FunArgs {
			args = append(args, c.typ(t))
		}
		ret := c.typ(*pt.FunRet)
		return Type{Loc: pt.Loc, Kind: TypeFun, FunArgs: args, FunRet: &ret}
	default:
		panic("ICE unexpected type kind")
	}
}

func (c *Context) optTypeArgs(pts []ast.Type) []Type {
	if pts == nil {
		return nil
	}
	out := make([]Type, 0, len(pts))
	for _, t := range pts {
		out = append(out, c.typ(t))
	}
	return out
}

func (c *Context) requireSpecContext(loc source.Span, what string) bool {
	if c.inSpecContext {
		return true
	}
	c.env.AddDiag(diag.New(diag.SyntaxSpecContextRestricted, loc,
		fmt.Sprintf("%s only allowed in specifications", what)))
	return false
}
