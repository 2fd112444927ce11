package expansion

import (
	"mica/internal/source"
)

// SpecBlock is a translated formal-specification block. Uses have been
// folded into the alias scope and all expressions are alias-free.
type SpecBlock struct {
	Loc        source.Span
	Attributes *Attributes
	Target     SpecTarget
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
	Name           source.Name
	TypeParameters []TypeParameter
	Signature      *FunctionSignature
}

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
	Value *AttributeValue
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
