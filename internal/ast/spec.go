package ast

import (
	"mica/internal/source"
)

// SpecBlock is a formal-specification block attached to a module, a member,
// a schema, or inline code.
type SpecBlock struct {
	Loc        source.Span
	Attributes []Attributes
	Target     SpecTarget
	Uses       []*UseDecl
	Members    []SpecMember
}

type SpecTargetKind uint8

const (
	SpecTargetCode SpecTargetKind = iota
	SpecTargetModule
	SpecTargetSchema
	SpecTargetMember
)

type SpecTarget struct {
	Loc            source.Span
	Kind           SpecTargetKind
	Name           source.Name          // schema or member name
	TypeParameters []TypeParameter      // schema
	Signature      *FunctionSignature   // member, optional
}

// SpecConditionKind enumerates condition statements inside spec blocks.
type SpecConditionKind uint8

const (
	SpecAssert SpecConditionKind = iota
	SpecAssume
	SpecAbortsIf
	SpecAbortsWith
	SpecEnsures
	SpecRequires
	SpecDecreases
	SpecModifies
	SpecEmits
	SpecSucceedsIf
	SpecInvariant
	SpecInvariantUpdate
	SpecAxiom
)

// HasTypeParameters reports whether the condition kind introduces its own
// type-parameter scope.
func (k SpecConditionKind) HasTypeParameters() bool {
	switch k {
	case SpecInvariant, SpecInvariantUpdate, SpecAxiom:
		return true
	default:
		return false
	}
}

type SpecMemberKind uint8

const (
	SpecMemberCondition SpecMemberKind = iota
	SpecMemberFunction
	SpecMemberVariable
	SpecMemberLet
	SpecMemberInclude
	SpecMemberApply
	SpecMemberPragma
	SpecMemberUpdate
)

type PragmaProperty struct {
	Loc   source.Span
	Name  source.Name
	Value *AttributeValue // optional
}

type SpecMember struct {
	Loc  source.Span
	Kind SpecMemberKind

	// Condition
	ConditionKind  SpecConditionKind
	TypeParameters []TypeParameter
	Properties     []PragmaProperty
	Exp            Exp
	AdditionalExps []Exp

	// Function
	Name          source.Name
	Uninterpreted bool
	Signature     *FunctionSignature
	Body          *FunctionBody

	// Variable
	IsGlobal bool
	Type     *Type
	Init     Exp

	// Let
	PostState bool
	Def       Exp

	// Update
	LHS Exp
	RHS Exp

	// Apply
	Patterns          []source.Name
	ExclusionPatterns []source.Name
}
