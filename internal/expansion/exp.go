package expansion

import (
	"mica/internal/source"
)

// Exp is an alias-free expression. One struct per node kind.
type Exp interface {
	expNode()
	Span() source.Span
}

type exp struct{ Loc source.Span }

func (e exp) Span() source.Span { return e.Loc }
func (exp) expNode()            {}

// UnresolvedErrorExp stands in where translation failed; a diagnostic has
// already been recorded.
type UnresolvedErrorExp struct{ exp }

type UnitExp struct {
	exp
	// Trailing marks a unit produced by a trailing semicolon rather than
	// written literally.
	Trailing bool
}

type ValueExp struct {
	exp
	Value Value
}

type MoveExp struct {
	exp
	Var source.Name
}

type CopyExp struct {
	exp
	Var source.Name
}

type NameExp struct {
	exp
	Name     ModuleAccess
	TypeArgs []Type
}

type CallExp struct {
	exp
	Name     ModuleAccess
	IsMacro  bool
	TypeArgs []Type
	ArgsLoc  source.Span
	Args     []Exp
}

type MethodCallExp struct {
	exp
	Target   *ExpDotted
	Method   source.Name
	TypeArgs []Type
	ArgsLoc  source.Span
	Args     []Exp
}

type PackField struct {
	Name source.Name
	Exp  Exp
}

type PackExp struct {
	exp
	Name     ModuleAccess
	TypeArgs []Type
	Fields   []PackField
}

type VectorExp struct {
	exp
	VecLoc   source.Span
	TypeArgs []Type
	ArgsLoc  source.Span
	Args     []Exp
}

type IfElseExp struct {
	exp
	Cond  Exp
	True  Exp
	False Exp
}

type WhileExp struct {
	exp
	Cond Exp
	Body Exp
}

type LoopExp struct {
	exp
	Body Exp
}

type BlockExp struct {
	exp
	Seq Sequence
}

type LambdaExp struct {
	exp
	Binds LValueList
	Body  Exp
}

type QuantKind uint8

const (
	QuantForall QuantKind = iota
	QuantExists
)

type QuantBind struct {
	Loc   source.Span
	Bind  LValue
	Range Exp
}

type QuantExp struct {
	exp
	Kind     QuantKind
	Binds    []QuantBind
	Triggers [][]Exp
	Cond     Exp
	Body     Exp
}

type ExpListExp struct {
	exp
	Exps []Exp
}

// AssignExp rebinds declared locals; targets are lvalues.
type AssignExp struct {
	exp
	LHS LValueList
	RHS Exp
}

// MutateExp writes through a reference: *lhs = rhs.
type MutateExp struct {
	exp
	LHS Exp
	RHS Exp
}

// FieldMutateExp writes a field path: x.f.g = rhs.
type FieldMutateExp struct {
	exp
	LHS *ExpDotted
	RHS Exp
}

type ReturnExp struct {
	exp
	Value Exp
}

type AbortExp struct {
	exp
	Value Exp
}

type BreakExp struct{ exp }

type ContinueExp struct{ exp }

type DereferenceExp struct {
	exp
	Inner Exp
}

type UnaryExp struct {
	exp
	Op    source.Name
	Inner Exp
}

type BinopExp struct {
	exp
	LHS Exp
	Op  source.Name
	RHS Exp
}

// BorrowExp borrows the end of a dotted path.
type BorrowExp struct {
	exp
	Mut   bool
	Inner *ExpDotted
}

// DottedExp is a bare dotted access kept for later copy/borrow inference.
type DottedExp struct {
	exp
	Dotted *ExpDotted
}

// IndexExp is specification-only indexing.
type IndexExp struct {
	exp
	Target *ExpDotted
	Index  Exp
}

type CastExp struct {
	exp
	Inner Exp
	Type  Type
}

type AnnotateExp struct {
	exp
	Inner Exp
	Type  Type
}

// SpecExp anchors an inline specification block by id; the block itself
// lives on the enclosing function. Unbound carries the names the block uses
// from its surrounding scope.
type SpecExp struct {
	exp
	ID      SpecID
	Unbound map[string]source.Name
}

// ExpDotted is a base expression followed by field accesses: e.f.g.
type ExpDotted struct {
	Loc    source.Span
	Base   Exp
	Fields []source.Name
}

// Sequences and lvalues.

type Sequence struct {
	Items []SequenceItem
}

type SequenceItemKind uint8

const (
	SeqExp SequenceItemKind = iota
	SeqDeclare
	SeqBind
)

type SequenceItem struct {
	Loc  source.Span
	Kind SequenceItemKind
	Exp  Exp
	LHS  LValueList
	Type *Type
}

type LValueList struct {
	Loc     source.Span
	LValues []LValue
}

type LValueKind uint8

const (
	LValueVar LValueKind = iota
	LValueUnpack
	// LValueIgnore is the wildcard `_`.
	LValueIgnore
)

type FieldLValue struct {
	Field source.Name
	Bind  *LValue
}

type LValue struct {
	Loc  source.Span
	Kind LValueKind
	// LValueVar
	Mut *source.Span
	Var source.Name
	// LValueUnpack
	Unpack     ModuleAccess
	TypeArgs   []Type
	Named      []FieldLValue
	Positional []*LValue
}
