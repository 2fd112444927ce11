package expansion

import (
	"fmt"

	"mica/internal/source"
)

// moduleAlias binds a short name to a module identity.
type moduleAlias struct {
	Ident    ModuleIdent
	Implicit bool
}

// memberAlias binds a short name to a module member.
type memberAlias struct {
	Module   ModuleIdent
	Member   source.Name
	Implicit bool
}

// AliasMapBuilder accumulates the aliases introduced by one declaration's
// use declarations before they become a scope.
type AliasMapBuilder struct {
	modules *UniqueMap[moduleAlias]
	members *UniqueMap[memberAlias]
}

func NewAliasMapBuilder() *AliasMapBuilder {
	return &AliasMapBuilder{
		modules: NewUniqueMap[moduleAlias](),
		members: NewUniqueMap[memberAlias](),
	}
}

// AddImplicitModuleAlias registers a module's self-reference. A duplicate
// implicit alias cannot arise from user input.
func (b *AliasMapBuilder) AddImplicitModuleAlias(name source.Name, ident ModuleIdent) {
	if _, ok := b.modules.Add(name.Value, name.Span, moduleAlias{Ident: ident, Implicit: true}); !ok {
		panic(fmt.Sprintf("ICE duplicate implicit module alias %q", name.Value))
	}
}

// AddImplicitMemberAlias registers a member alias not written by the user,
// such as prelude members.
func (b *AliasMapBuilder) AddImplicitMemberAlias(name source.Name, module ModuleIdent, member source.Name) {
	if _, ok := b.members.Add(name.Value, name.Span, memberAlias{Module: module, Member: member, Implicit: true}); !ok {
		panic(fmt.Sprintf("ICE duplicate implicit member alias %q", name.Value))
	}
}

// AddModuleAlias registers an explicit alias from a use declaration. On a
// conflict the previous binding's location is returned with ok=false and the
// new binding does not take effect.
func (b *AliasMapBuilder) AddModuleAlias(name source.Name, ident ModuleIdent) (source.Span, bool) {
	return b.modules.Add(name.Value, name.Span, moduleAlias{Ident: ident})
}

// AddMemberAlias registers an explicit member alias. Same conflict contract
// as AddModuleAlias.
func (b *AliasMapBuilder) AddMemberAlias(name source.Name, module ModuleIdent, member source.Name) (source.Span, bool) {
	return b.members.Add(name.Value, name.Span, memberAlias{Module: module, Member: member})
}

// AliasEntryKind tags entries in the unused report.
type AliasEntryKind uint8

const (
	AliasEntryModule AliasEntryKind = iota
	AliasEntryMember
)

// UnusedAlias is one explicit alias that went out of scope without a use.
type UnusedAlias struct {
	Kind AliasEntryKind
	Name source.Name
	// Member alias target, for use-fun reconciliation.
	Module ModuleIdent
	Member source.Name
}

// OuterScope captures what a scope push displaced so the pop can restore it.
type OuterScope struct {
	introModules []string
	introMembers []string
	// shadowed outer bindings, restored on pop
	shadModules map[string]moduleAlias
	shadMembers map[string]memberAlias
	// shadowed unused-tracking state for restored bindings
	shadUnusedModules map[string]source.Span
	shadUnusedMembers map[string]source.Span
}

// AliasMap is the live lexical alias table. Scopes push via AddAndShadowAll
// or ShadowForTypeParameters and pop via SetToOuterScope; lookups mark
// aliases used.
type AliasMap struct {
	modules map[string]moduleAlias
	members map[string]memberAlias
	// explicit aliases not yet looked up, keyed by name, value is the
	// alias definition site
	unusedModules map[string]source.Span
	unusedMembers map[string]source.Span
}

func NewAliasMap() *AliasMap {
	return &AliasMap{
		modules:       make(map[string]moduleAlias),
		members:       make(map[string]memberAlias),
		unusedModules: make(map[string]source.Span),
		unusedMembers: make(map[string]source.Span),
	}
}

// GetModule resolves a module alias and marks it used.
func (m *AliasMap) GetModule(name string) (ModuleIdent, bool) {
	a, ok := m.modules[name]
	if !ok {
		return ModuleIdent{}, false
	}
	delete(m.unusedModules, name)
	return a.Ident, true
}

// GetMember resolves a member alias and marks it used.
func (m *AliasMap) GetMember(name string) (ModuleIdent, source.Name, bool) {
	a, ok := m.members[name]
	if !ok {
		return ModuleIdent{}, source.Name{}, false
	}
	delete(m.unusedMembers, name)
	return a.Module, a.Member, true
}

func (m *AliasMap) newOuterScope() OuterScope {
	return OuterScope{
		shadModules:       make(map[string]moduleAlias),
		shadMembers:       make(map[string]memberAlias),
		shadUnusedModules: make(map[string]source.Span),
		shadUnusedMembers: make(map[string]source.Span),
	}
}

func (m *AliasMap) shadowModule(name string, loc source.Span, a moduleAlias, outer *OuterScope) {
	if prev, ok := m.modules[name]; ok {
		outer.shadModules[name] = prev
		if sp, un := m.unusedModules[name]; un {
			outer.shadUnusedModules[name] = sp
		}
	}
	outer.introModules = append(outer.introModules, name)
	m.modules[name] = a
	if a.Implicit {
		delete(m.unusedModules, name)
	} else {
		m.unusedModules[name] = loc
	}
}

func (m *AliasMap) shadowMember(name string, loc source.Span, a memberAlias, outer *OuterScope) {
	if prev, ok := m.members[name]; ok {
		outer.shadMembers[name] = prev
		if sp, un := m.unusedMembers[name]; un {
			outer.shadUnusedMembers[name] = sp
		}
	}
	outer.introMembers = append(outer.introMembers, name)
	m.members[name] = a
	if a.Implicit {
		delete(m.unusedMembers, name)
	} else {
		m.unusedMembers[name] = loc
	}
}

// AddAndShadowAll pushes the builder's aliases as a new scope, shadowing
// same-named outer bindings. The returned OuterScope must be handed back to
// SetToOuterScope exactly once.
func (m *AliasMap) AddAndShadowAll(b *AliasMapBuilder) OuterScope {
	outer := m.newOuterScope()
	b.modules.Each(func(name string, loc source.Span, a moduleAlias) {
		m.shadowModule(name, loc, a, &outer)
	})
	b.members.Each(func(name string, loc source.Span, a memberAlias) {
		m.shadowMember(name, loc, a, &outer)
	})
	return outer
}

// ShadowForTypeParameters hides aliases that collide with type parameter
// names so bare uses resolve to the parameter. The shadow entries are
// implicit and never reported unused.
func (m *AliasMap) ShadowForTypeParameters(names []source.Name) OuterScope {
	outer := m.newOuterScope()
	for _, n := range names {
		if prev, ok := m.modules[n.Value]; ok {
			outer.shadModules[n.Value] = prev
			if sp, un := m.unusedModules[n.Value]; un {
				outer.shadUnusedModules[n.Value] = sp
			}
			outer.introModules = append(outer.introModules, n.Value)
			delete(m.modules, n.Value)
			delete(m.unusedModules, n.Value)
		}
		if prev, ok := m.members[n.Value]; ok {
			outer.shadMembers[n.Value] = prev
			if sp, un := m.unusedMembers[n.Value]; un {
				outer.shadUnusedMembers[n.Value] = sp
			}
			outer.introMembers = append(outer.introMembers, n.Value)
			delete(m.members, n.Value)
			delete(m.unusedMembers, n.Value)
		}
	}
	return outer
}

// SetToOuterScope pops back to the captured outer scope and reports every
// explicit alias the scope introduced that was never looked up. The caller
// reconciles the report against its use-fun table before emitting
// diagnostics.
func (m *AliasMap) SetToOuterScope(outer OuterScope) []UnusedAlias {
	var unused []UnusedAlias
	for _, name := range outer.introModules {
		if sp, un := m.unusedModules[name]; un {
			a := m.modules[name]
			unused = append(unused, UnusedAlias{
				Kind:   AliasEntryModule,
				Name:   source.Name{Value: name, Span: sp},
				Module: a.Ident,
			})
		}
		delete(m.modules, name)
		delete(m.unusedModules, name)
		if prev, ok := outer.shadModules[name]; ok {
			m.modules[name] = prev
			if sp, ok := outer.shadUnusedModules[name]; ok {
				m.unusedModules[name] = sp
			}
		}
	}
	for _, name := range outer.introMembers {
		if sp, un := m.unusedMembers[name]; un {
			a := m.members[name]
			unused = append(unused, UnusedAlias{
				Kind:   AliasEntryMember,
				Name:   source.Name{Value: name, Span: sp},
				Module: a.Module,
				Member: a.Member,
			})
		}
		delete(m.members, name)
		delete(m.unusedMembers, name)
		if prev, ok := outer.shadMembers[name]; ok {
			m.members[name] = prev
			if sp, ok := outer.shadUnusedMembers[name]; ok {
				m.unusedMembers[name] = sp
			}
		}
	}
	return unused
}
