// Package ast holds the parser-stage AST consumed by the expansion pass.
// The parser itself lives outside this repository; tests and tooling build
// these nodes directly.
package ast

import (
	"mica/internal/shared"
	"mica/internal/source"
)

// Program is the root of the first intermediate representation: one entry
// per target ("source") definition and one per dependency ("lib")
// definition, each bound to a named-address map by index.
type Program struct {
	NamedAddressMaps  *shared.NamedAddressMaps
	SourceDefinitions []PackageDefinition
	LibDefinitions    []PackageDefinition
}

// PackageDefinition binds one definition to its package name ("" if
// anonymous) and named-address map.
type PackageDefinition struct {
	Package         string
	NamedAddressMap int
	Def             Definition
}

// Definition is a top-level unit in a file: a module, an address block, or
// a script.
type Definition interface {
	definitionNode()
	Span() source.Span
}

// LeadingNameAccess is the first segment of a qualified name: either an
// anonymous numeric address or an address name to be resolved.
type LeadingNameAccess struct {
	Loc  source.Span
	Anon *shared.NumericalAddress // nil when Name is set
	Name string
}

func (l LeadingNameAccess) IsAnonymous() bool { return l.Anon != nil }

func (l LeadingNameAccess) String() string {
	if l.Anon != nil {
		return l.Anon.String()
	}
	return l.Name
}

// ModuleIdent is an unresolved (address, module name) pair.
type ModuleIdent struct {
	Loc     source.Span
	Address LeadingNameAccess
	Module  source.Name
}

// ModuleDefinition is a module, possibly carrying its own address
// qualifier (module 0x2::coin { ... }).
type ModuleDefinition struct {
	Attributes []Attributes
	Loc        source.Span
	Address    *LeadingNameAccess
	Name       source.Name
	Members    []ModuleMember
}

func (*ModuleDefinition) definitionNode()   {}
func (m *ModuleDefinition) Span() source.Span { return m.Loc }

// AddressDefinition is an address block wrapping several modules.
type AddressDefinition struct {
	Loc     source.Span
	Addr    LeadingNameAccess
	Modules []*ModuleDefinition
}

func (*AddressDefinition) definitionNode()   {}
func (a *AddressDefinition) Span() source.Span { return a.Loc }

// Script is a transaction entry point: uses, constants, exactly one
// function, and trailing spec blocks.
type Script struct {
	Attributes []Attributes
	Loc        source.Span
	Uses       []*UseDecl
	Constants  []*Constant
	Function   *Function
	Specs      []*SpecBlock
}

func (*Script) definitionNode()   {}
func (s *Script) Span() source.Span { return s.Loc }

// ModuleMember is any declaration inside a module body.
type ModuleMember interface {
	moduleMemberNode()
}

func (*Function) moduleMemberNode()         {}
func (*Constant) moduleMemberNode()         {}
func (*StructDefinition) moduleMemberNode() {}
func (*UseDecl) moduleMemberNode()          {}
func (*FriendDecl) moduleMemberNode()       {}
func (*SpecBlock) moduleMemberNode()        {}

// Use declarations.

// UseDecl is one `use` item with its attributes.
type UseDecl struct {
	Loc        source.Span
	Attributes []Attributes
	Use        Use
}

// Use is a module use, a member-list use, or a use fun.
type Use interface{ useNode() }

// ModuleUse imports a whole module, optionally aliased, or a list of its
// members.
type ModuleUse struct {
	Module ModuleIdent
	Alias  *source.Name           // `use a::m as n;` (nil keeps the module name)
	// Members, when non-nil, selects individual members: `use a::m::{f as g, T};`
	Members []UseMember
}

func (*ModuleUse) useNode() {}

// UseMember is one entry of a member-list use. Name "Self" aliases the
// module itself.
type UseMember struct {
	Name  source.Name
	Alias *source.Name
}

// UseFun binds a function to receiver-style method syntax:
// `use fun path::f as Type.method;`
type UseFun struct {
	Visibility Visibility
	Function   NameAccessChain
	Type       NameAccessChain
	Method     source.Name
}

func (*UseFun) useNode() {}

// FriendDecl grants package-internal visibility to another module.
type FriendDecl struct {
	Attributes []Attributes
	Loc        source.Span
	Friend     NameAccessChain
}

// Functions.

// VisibilityKind enumerates declared function visibilities.
type VisibilityKind uint8

const (
	VisibilityInternal VisibilityKind = iota
	VisibilityPublic
	VisibilityScript
	VisibilityFriend
	VisibilityPackage
)

// Visibility pairs a kind with the span of the modifier (zero span for
// internal).
type Visibility struct {
	Kind VisibilityKind
	Loc  source.Span
}

// Function is a function declaration with optional `entry` modifier.
type Function struct {
	Attributes []Attributes
	Loc        source.Span
	Name       source.Name
	Visibility Visibility
	Entry      *source.Span
	Signature  FunctionSignature
	Body       FunctionBody
}

// TypeParameter is a generic parameter with ability constraints.
type TypeParameter struct {
	Name        source.Name
	Constraints []Ability
}

// Parameter is one value parameter; Mut is the optional `mut` span.
type Parameter struct {
	Mut  *source.Span
	Var  source.Name
	Type Type
}

type FunctionSignature struct {
	TypeParameters []TypeParameter
	Parameters     []Parameter
	ReturnType     Type
}

// FunctionBody is either `native;` or a defined block.
type FunctionBody struct {
	Loc    source.Span
	Native bool
	Seq    *Sequence // nil when Native
}

// Structs.

// Ability is one of copy, drop, store, key.
type Ability struct {
	Loc   source.Span
	Value string
}

type StructTypeParameter struct {
	IsPhantom   bool
	Name        source.Name
	Constraints []Ability
}

// StructFieldsKind discriminates struct field forms.
type StructFieldsKind uint8

const (
	StructFieldsNamed StructFieldsKind = iota
	StructFieldsPositional
	StructFieldsNative
)

type StructField struct {
	Name source.Name
	Type Type
}

type StructFields struct {
	Kind       StructFieldsKind
	Named      []StructField
	Positional []Type
	NativeLoc  source.Span
}

type StructDefinition struct {
	Attributes     []Attributes
	Loc            source.Span
	Name           source.Name
	Abilities      []Ability
	TypeParameters []StructTypeParameter
	Fields         StructFields
}

// Constants.

type Constant struct {
	Attributes []Attributes
	Loc        source.Span
	Name       source.Name
	Signature  Type
	Value      Exp
}
