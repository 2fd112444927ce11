package expansion

import (
	"fmt"
	"sort"
	"strings"

	"mica/internal/ast"
	"mica/internal/diag"
	"mica/internal/shared"
	"mica/internal/source"
)

// AttributePosition is a syntactic position an attribute may be attached to.
type AttributePosition uint8

const (
	AttrPosAddressBlock AttributePosition = iota
	AttrPosModule
	AttrPosScript
	AttrPosUse
	AttrPosFriend
	AttrPosConstant
	AttrPosStruct
	AttrPosFunction
	AttrPosSpec
)

func (p AttributePosition) String() string {
	switch p {
	case AttrPosAddressBlock:
		return "address block"
	case AttrPosModule:
		return "module"
	case AttrPosScript:
		return "script"
	case AttrPosUse:
		return "use"
	case AttrPosFriend:
		return "friend"
	case AttrPosConstant:
		return "constant"
	case AttrPosStruct:
		return "struct"
	case AttrPosFunction:
		return "function"
	case AttrPosSpec:
		return "spec"
	default:
		return "declaration"
	}
}

// knownAttributes is the registry of compiler-recognized attribute names and
// the positions each may appear at. Unknown names pass through for external
// tooling.
var knownAttributes = map[string]map[AttributePosition]bool{
	"test": {
		AttrPosFunction: true,
	},
	"expected_failure": {
		AttrPosFunction: true,
	},
	"test_only": {
		AttrPosAddressBlock: true, AttrPosModule: true, AttrPosUse: true,
		AttrPosFriend: true, AttrPosConstant: true, AttrPosStruct: true,
		AttrPosFunction: true,
	},
	"verify_only": {
		AttrPosAddressBlock: true, AttrPosModule: true, AttrPosUse: true,
		AttrPosFriend: true, AttrPosConstant: true, AttrPosStruct: true,
		AttrPosFunction: true,
	},
	shared.AllowAttribute: {
		AttrPosModule: true, AttrPosScript: true, AttrPosConstant: true,
		AttrPosStruct: true, AttrPosFunction: true,
	},
}

// uniqueAttributes flattens the declaration's attribute lists into one
// validated, duplicate-free map.
func (c *Context) uniqueAttributes(pos AttributePosition, isNested bool, lists []ast.Attributes) *Attributes {
	out := NewUniqueMap[Attribute]()
	for _, list := range lists {
		for _, pa := range list.Attrs {
			attr, ok := c.attribute(pos, isNested, pa)
			if !ok {
				continue
			}
			c.addAttribute(out, attr)
		}
	}
	return out
}

func (c *Context) addAttribute(m *Attributes, attr Attribute) {
	if prev, added := m.Add(attr.Name.Value, attr.Loc, attr); !added {
		d := diag.New(diag.DeclarationsDuplicateAttribute, attr.Loc,
			fmt.Sprintf("duplicate attribute '%s' attached to the same item", attr.Name.Value))
		d = d.WithNote(prev, "Attribute previously given here")
		c.env.AddDiag(d)
	}
}

func (c *Context) attribute(pos AttributePosition, isNested bool, pa ast.Attribute) (Attribute, bool) {
	positions, known := knownAttributes[pa.Name.Value]
	if known {
		if isNested {
			c.env.AddDiag(diag.New(diag.DeclarationsInvalidAttribute, pa.Loc,
				fmt.Sprintf("known attribute '%s' is not expected in a nested attribute position", pa.Name.Value)))
			return Attribute{}, false
		}
		if !positions[pos] {
			d := diag.New(diag.DeclarationsInvalidAttribute, pa.Loc,
				fmt.Sprintf("invalid attribute. Attribute '%s' is not expected for a %s", pa.Name.Value, pos))
			d = d.WithNote(pa.Loc, fmt.Sprintf("Expected to be used with one of the following: %s", positionList(positions)))
			c.env.AddDiag(d)
			return Attribute{}, false
		}
	}
	attr := Attribute{Loc: pa.Loc, Known: known, Name: pa.Name}
	switch pa.Kind {
	case ast.AttrAssigned:
		v, ok := c.attributeValue(*pa.Value)
		if !ok {
			return Attribute{}, false
		}
		attr.Value = v
	case ast.AttrParameterized:
		params := NewUniqueMap[Attribute]()
		for _, inner := range pa.Params {
			ia, ok := c.attribute(pos, true, inner)
			if !ok {
				continue
			}
			c.addAttribute(params, ia)
		}
		attr.Params = params
	}
	return attr, true
}

func positionList(positions map[AttributePosition]bool) string {
	names := make([]string, 0, len(positions))
	for p := range positions {
		names = append(names, p.String())
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func (c *Context) attributeValue(pv ast.AttributeValue) (*AttributeValue, bool) {
	if pv.Value != nil {
		v, ok := c.value(*pv.Value)
		if !ok {
			return nil, false
		}
		return &AttributeValue{Loc: pv.Loc, Value: &v}, true
	}
	chain := pv.ModuleAccess
	// A two-part path naming a bound module refers to the module itself.
	if chain.IsTwo() {
		addr := c.topLevelAddress(false, *chain.Leading)
		ident := ModuleIdent{Loc: chain.Loc, Address: addr, Module: chain.Member}
		if _, bound := c.moduleMembers.Module(ident); bound {
			return &AttributeValue{Loc: pv.Loc, Module: &ident}, true
		}
	}
	ma, ok := c.nameAccessChain(accessType, *chain)
	if !ok {
		return nil, false
	}
	return &AttributeValue{Loc: pv.Loc, ModuleAccess: &ma}, true
}

// warningFilter parses the declaration's filter attributes into a
// suppression set.
func (c *Context) warningFilter(attrs *Attributes) *diag.WarningFilters {
	wf := diag.NewWarningFiltersSource()
	for _, attrName := range c.env.FilterAttributes() {
		attr, ok := attrs.Get(attrName)
		if !ok {
			continue
		}
		if attr.Params == nil || attr.Params.Len() == 0 {
			c.env.AddDiag(diag.New(diag.AttributesInvalidValue, attr.Loc,
				fmt.Sprintf("invalid '%s' attribute. Expected a non-empty parameter list of warning filters", attrName)))
			continue
		}
		attr.Params.Each(func(name string, loc source.Span, p Attribute) {
			if p.Value != nil || (p.Params != nil && p.Params.Len() > 0) {
				c.env.AddDiag(diag.New(diag.AttributesInvalidValue, loc,
					fmt.Sprintf("invalid '%s' parameter. Expected a warning filter identifier, e.g. '%s(%s)'",
						attrName, attrName, diag.FilterAll)))
				return
			}
			entries := c.env.FilterFromName(attrName, name)
			if len(entries) == 0 {
				c.env.AddDiag(diag.New(diag.AttributesInvalidValue, loc,
					fmt.Sprintf("unknown warning filter '%s'", name)))
				return
			}
			for _, f := range entries {
				wf.Add(f)
			}
		})
	}
	return wf
}

// moduleWarningFilter computes the effective filter set for a module or
// script: its own filters unioned with the package defaults. Dependency
// declarations get a suppress-everything set after validation, since their
// warnings are never emitted.
func (c *Context) moduleWarningFilter(attrs *Attributes) *diag.WarningFilters {
	wf := c.warningFilter(attrs)
	cfg := c.env.PackageConfig(c.currentPackage)
	wf.Union(cfg.WarningFilter)
	if cfg.IsDependency || !c.isSourceDefinition {
		return diag.NewWarningFiltersDependency()
	}
	return wf
}
