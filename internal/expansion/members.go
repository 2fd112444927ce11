package expansion

import (
	"mica/internal/ast"
	"mica/internal/shared"
	"mica/internal/source"
)

// ModuleMemberKind classifies entries in the pre-translation member index.
type ModuleMemberKind uint8

const (
	ModuleMemberFunction ModuleMemberKind = iota
	ModuleMemberConstant
	ModuleMemberStruct
	ModuleMemberSchema
)

func (k ModuleMemberKind) String() string {
	switch k {
	case ModuleMemberFunction:
		return "function"
	case ModuleMemberConstant:
		return "constant"
	case ModuleMemberStruct:
		return "struct"
	case ModuleMemberSchema:
		return "schema"
	default:
		return "member"
	}
}

type ModuleMemberInfo struct {
	Kind ModuleMemberKind
	Loc  source.Span
}

// ModuleMembers indexes every module visible to the compilation by
// ModuleIdent key, mapping member name to its kind. Built in full before
// translation starts since members may be referenced before their textual
// declaration.
type ModuleMembers map[string]map[string]ModuleMemberInfo

func (mm ModuleMembers) Module(ident ModuleIdent) (map[string]ModuleMemberInfo, bool) {
	m, ok := mm[ident.Key()]
	return m, ok
}

// AllModuleMembers indexes every module in defs. With alwaysAdd set an
// existing entry is rebuilt (source definitions); without it a module
// already indexed is skipped (library definitions defer to source).
func AllModuleMembers(members ModuleMembers, maps *shared.NamedAddressMaps, alwaysAdd bool, defs []ast.PackageDefinition) {
	for _, pd := range defs {
		addrMap := maps.Get(pd.NamedAddressMap)
		switch d := pd.Def.(type) {
		case *ast.ModuleDefinition:
			var addr Address
			if d.Address != nil {
				addr = resolveAddressQuiet(addrMap, *d.Address)
			} else {
				addr = AnonymousAddress(d.Loc, shared.DefaultErrorAddress)
			}
			moduleMembers(members, alwaysAdd, addr, d)
		case *ast.AddressDefinition:
			addr := resolveAddressQuiet(addrMap, d.Addr)
			for _, m := range d.Modules {
				moduleMembers(members, alwaysAdd, addr, m)
			}
		case *ast.Script:
			// scripts do not define reusable members
		}
	}
}

// resolveAddressQuiet resolves a leading name against one address map
// without emitting diagnostics or conflict marks; the translator re-resolves
// with full reporting later.
func resolveAddressQuiet(addrMap shared.NamedAddressMap, ln ast.LeadingNameAccess) Address {
	if ln.IsAnonymous() {
		return AnonymousAddress(ln.Loc, *ln.Anon)
	}
	name := source.Name{Value: ln.Name, Span: ln.Loc}
	if v, ok := addrMap[ln.Name]; ok {
		return NamedAddress(name, v, false)
	}
	return UnassignedAddress(name)
}

func moduleMembers(members ModuleMembers, alwaysAdd bool, addr Address, m *ast.ModuleDefinition) {
	ident := ModuleIdent{Loc: m.Name.Span, Address: addr, Module: m.Name}
	key := ident.Key()
	if _, present := members[key]; present && !alwaysAdd {
		return
	}
	cur := make(map[string]ModuleMemberInfo)
	add := func(n source.Name, kind ModuleMemberKind) {
		cur[n.Value] = ModuleMemberInfo{Kind: kind, Loc: n.Span}
	}
	for _, mem := range m.Members {
		switch mem := mem.(type) {
		case *ast.Function:
			add(mem.Name, ModuleMemberFunction)
		case *ast.Constant:
			add(mem.Name, ModuleMemberConstant)
		case *ast.StructDefinition:
			add(mem.Name, ModuleMemberStruct)
		case *ast.SpecBlock:
			switch mem.Target.Kind {
			case ast.SpecTargetSchema:
				add(mem.Target.Name, ModuleMemberSchema)
			case ast.SpecTargetModule:
				for _, sm := range mem.Members {
					if sm.Kind == ast.SpecMemberFunction {
						add(sm.Name, ModuleMemberFunction)
					}
				}
			}
		}
	}
	members[key] = cur
}
