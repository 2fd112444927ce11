// Package expansion implements the first nontrivial pass of the pipeline:
// name and alias resolution. It consumes the parser-stage AST and produces
// an alias-free, attribute-validated program ready for naming and typing.
package expansion

import (
	"fmt"
	"math/big"

	"mica/internal/diag"
	"mica/internal/shared"
	"mica/internal/source"
)

// Address is a resolved leading name: an anonymous or named-and-resolved
// numeric address, or a named address with no assigned value (an error
// deferred until use).
type Address struct {
	Loc  source.Span
	Name *source.Name // nil for anonymous addresses
	// HasValue is false only for named-but-unresolved addresses.
	HasValue bool
	Value    shared.NumericalAddress
	// NameConflict marks names whose name<->value mapping is not
	// bijective across all active named-address maps.
	NameConflict bool
}

func AnonymousAddress(loc source.Span, value shared.NumericalAddress) Address {
	return Address{Loc: loc, HasValue: true, Value: value}
}

func NamedAddress(n source.Name, value shared.NumericalAddress, conflict bool) Address {
	name := n
	return Address{Loc: n.Span, Name: &name, HasValue: true, Value: value, NameConflict: conflict}
}

func UnassignedAddress(n source.Name) Address {
	name := n
	return Address{Loc: n.Span, Name: &name}
}

// Key canonicalizes the address for module-identity comparison: resolved
// addresses compare by value, unassigned ones by name.
func (a Address) Key() string {
	if a.HasValue {
		return a.Value.String()
	}
	return "?" + a.Name.Value
}

func (a Address) String() string {
	if a.Name != nil {
		return a.Name.Value
	}
	return a.Value.String()
}

// Equal compares by canonical key.
func (a Address) Equal(other Address) bool { return a.Key() == other.Key() }

// ModuleIdent is the canonical (address, module name) identity of a module,
// unique within a program.
type ModuleIdent struct {
	Loc     source.Span
	Address Address
	Module  source.Name
}

func (m ModuleIdent) Key() string {
	return m.Address.Key() + "::" + m.Module.Value
}

func (m ModuleIdent) String() string {
	return fmt.Sprintf("%s::%s", m.Address, m.Module.Value)
}

// ModuleAccess is a resolved name use: either a bare name (left for later
// passes to bind against locals and type parameters) or a fully qualified
// module member.
type ModuleAccess struct {
	Loc    source.Span
	Module *ModuleIdent // nil for bare names
	Name   source.Name
}

func (a ModuleAccess) IsQualified() bool { return a.Module != nil }

func (a ModuleAccess) String() string {
	if a.Module != nil {
		return fmt.Sprintf("%s::%s", a.Module, a.Name.Value)
	}
	return a.Name.Value
}

// Attributes.

// Attribute is a validated attribute; Known is true when the name matches
// the compiler's registry.
type Attribute struct {
	Loc    source.Span
	Known  bool
	Name   source.Name
	Value  *AttributeValue
	Params *UniqueMap[Attribute]
}

// AttributeValue is a literal value, a resolved module, or a name path.
type AttributeValue struct {
	Loc          source.Span
	Value        *Value
	Module       *ModuleIdent
	ModuleAccess *ModuleAccess
}

// Attributes maps attribute name to the attribute, rejecting duplicates.
type Attributes = UniqueMap[Attribute]

// Program is the expansion-stage AST.
type Program struct {
	// Modules is keyed by ModuleIdent.Key().
	Modules *UniqueMap[*ModuleDefinition]
	// Scripts is keyed by derived script name (suffix-disambiguated).
	Scripts map[string]*Script
}

// ModuleDefinition is the alias-free form of a module.
type ModuleDefinition struct {
	Ident          ModuleIdent
	PackageName    string
	Attributes     *Attributes
	Loc            source.Span
	UseFuns        UseFuns
	IsSourceModule bool
	Friends        *UniqueMap[Friend]
	Structs        *UniqueMap[*StructDefinition]
	Constants      *UniqueMap[*Constant]
	Functions      *UniqueMap[*Function]
	Specs          []SpecBlock
	WarningFilter  *diag.WarningFilters
}

type Friend struct {
	Attributes *Attributes
	Loc        source.Span
}

// Script is the expanded form of a script definition.
type Script struct {
	WarningFilter *diag.WarningFilters
	PackageName   string
	Attributes    *Attributes
	Loc           source.Span
	UseFuns       UseFuns
	Constants     *UniqueMap[*Constant]
	FunctionName  source.Name
	Function      *Function
	Specs         []SpecBlock
}

// Use funs.

// ImplicitUseFunKind distinguishes method candidates arising from function
// declarations from those arising from use aliases.
type ImplicitUseFunKind uint8

const (
	// ImplicitFunctionDeclaration: declared in this module; usage not
	// tracked.
	ImplicitFunctionDeclaration ImplicitUseFunKind = iota
	// ImplicitUseAlias: from `use a::m::f`; Used starts true and is reset
	// when the alias scope closes without a recorded use, letting method
	// resolution decide later.
	ImplicitUseAlias
)

type ImplicitUseFunCandidate struct {
	Loc        source.Span
	Attributes *Attributes
	IsPublic   *source.Span
	Module     ModuleIdent
	Function   source.Name
	Kind       ImplicitUseFunKind
	Used       bool
}

type ExplicitUseFun struct {
	Loc        source.Span
	Attributes *Attributes
	IsPublic   *source.Span
	Function   ModuleAccess
	Type       ModuleAccess
	Method     source.Name
}

type UseFuns struct {
	Explicit []ExplicitUseFun
	Implicit *UniqueMap[*ImplicitUseFunCandidate]
}

func NewUseFuns() UseFuns {
	return UseFuns{Implicit: NewUniqueMap[*ImplicitUseFunCandidate]()}
}

// Structs, constants, functions.

type AbilitySet struct {
	abilities *UniqueMap[struct{}]
}

func NewAbilitySet() AbilitySet {
	return AbilitySet{abilities: NewUniqueMap[struct{}]()}
}

// Add returns the previous span and false on a duplicate.
func (s AbilitySet) Add(name string, loc source.Span) (source.Span, bool) {
	return s.abilities.Add(name, loc, struct{}{})
}

func (s AbilitySet) Has(name string) bool { return s.abilities.Contains(name) }
func (s AbilitySet) Names() []string      { return s.abilities.Keys() }

type TypeParameter struct {
	Name        source.Name
	Constraints AbilitySet
}

type StructTypeParameter struct {
	IsPhantom   bool
	Name        source.Name
	Constraints AbilitySet
}

type StructFieldsKind uint8

const (
	StructFieldsNamed StructFieldsKind = iota
	StructFieldsPositional
	StructFieldsNative
)

type FieldType struct {
	Index int
	Type  Type
}

type StructFields struct {
	Kind       StructFieldsKind
	Named      *UniqueMap[FieldType]
	Positional []Type
	NativeLoc  source.Span
}

type StructDefinition struct {
	WarningFilter  *diag.WarningFilters
	Index          int
	Attributes     *Attributes
	Loc            source.Span
	Abilities      AbilitySet
	TypeParameters []StructTypeParameter
	Fields         StructFields
}

type Constant struct {
	WarningFilter *diag.WarningFilters
	Index         int
	Attributes    *Attributes
	Loc           source.Span
	Signature     Type
	Value         Exp
}

type VisibilityKind uint8

const (
	VisibilityInternal VisibilityKind = iota
	VisibilityPublic
	VisibilityFriend
	VisibilityPackage
)

type Visibility struct {
	Kind VisibilityKind
	Loc  source.Span
}

func (v Visibility) String() string {
	switch v.Kind {
	case VisibilityPublic:
		return "public"
	case VisibilityFriend:
		return "public(friend)"
	case VisibilityPackage:
		return "public(package)"
	default:
		return "internal"
	}
}

type FunctionSignature struct {
	TypeParameters []TypeParameter
	Parameters     []FunctionParameter
	ReturnType     Type
}

type FunctionParameter struct {
	Mut  *source.Span
	Var  source.Name
	Type Type
}

type FunctionBody struct {
	Loc    source.Span
	Native bool
	Seq    *Sequence
}

type Function struct {
	WarningFilter *diag.WarningFilters
	Index         int
	Attributes    *Attributes
	Loc           source.Span
	Visibility    Visibility
	Entry         *source.Span
	Signature     FunctionSignature
	Body          FunctionBody
	Specs         map[SpecID]SpecBlock
}

// Types.

type TypeKind uint8

const (
	TypeUnit TypeKind = iota
	TypeMultiple
	TypeApply
	TypeRef
	TypeFun
	TypeUnresolvedError
)

type Type struct {
	Loc      source.Span
	Kind     TypeKind
	Multiple []Type
	Apply    *ModuleAccess
	TypeArgs []Type
	Mut      bool
	Inner    *Type
	FunArgs  []Type
	FunRet   *Type
}

func UnresolvedType(loc source.Span) Type {
	return Type{Loc: loc, Kind: TypeUnresolvedError}
}

// Values. Numeric literals are parsed into width-checked values.

type ValueKind uint8

const (
	ValueAddress ValueKind = iota
	ValueU8
	ValueU16
	ValueU32
	ValueU64
	ValueU128
	ValueU256
	ValueInferredNum
	ValueBool
	ValueBytearray
)

type Value struct {
	Loc     source.Span
	Kind    ValueKind
	Address Address
	U8      uint8
	U16     uint16
	U32     uint32
	U64     uint64
	Big     *big.Int // U128, U256, InferredNum
	Bool    bool
	Bytes   []byte
}

// SpecID identifies an inline specification block bound inside an
// expression.
type SpecID int
