package ast

import (
	"mica/internal/source"
)

// Attributes is one bracketed attribute list: #[a, b(c), d = 1].
type Attributes struct {
	Loc   source.Span
	Attrs []Attribute
}

// AttributeKind discriminates the three attribute shapes.
type AttributeKind uint8

const (
	// AttrName is a bare name: #[test]
	AttrName AttributeKind = iota
	// AttrAssigned is a name with a value: #[expected_failure = 4]
	AttrAssigned
	// AttrParameterized is a name with nested attributes: #[allow(unused)]
	AttrParameterized
)

type Attribute struct {
	Loc    source.Span
	Kind   AttributeKind
	Name   source.Name
	Value  *AttributeValue // AttrAssigned
	Params []Attribute     // AttrParameterized
}

// AttributeValue is a literal or a name path.
type AttributeValue struct {
	Loc          source.Span
	Value        *Value          // nil when ModuleAccess is set
	ModuleAccess *NameAccessChain
}
