package ast

import (
	"mica/internal/source"
)

// NameAccessChain is a possibly-qualified name: `n`, `a::n`, or `a::m::n`.
type NameAccessChain struct {
	Loc source.Span
	// One: only Member set. Two: Leading + Member. Three: all set.
	Leading *LeadingNameAccess
	Module  *source.Name
	Member  source.Name
}

func (c NameAccessChain) IsOne() bool   { return c.Leading == nil && c.Module == nil }
func (c NameAccessChain) IsTwo() bool   { return c.Leading != nil && c.Module == nil }
func (c NameAccessChain) IsThree() bool { return c.Leading != nil && c.Module != nil }

// Types.

type TypeKind uint8

const (
	TypeUnit TypeKind = iota
	TypeMultiple
	TypeApply
	TypeRef
	TypeFun
)

type Type struct {
	Loc      source.Span
	Kind     TypeKind
	Multiple []Type
	Apply    *NameAccessChain
	TypeArgs []Type
	Mut      bool  // TypeRef
	Inner    *Type // TypeRef
	FunArgs  []Type
	FunRet   *Type
}

// Values.

type ValueKind uint8

const (
	ValueAddress ValueKind = iota
	ValueNum
	ValueBool
	ValueHexString
	ValueByteString
)

type Value struct {
	Loc     source.Span
	Kind    ValueKind
	Address *LeadingNameAccess // ValueAddress
	Num     string             // ValueNum, verbatim literal including suffix
	Bool    bool
	Str     string // hex/byte string body
}

// Expressions. One struct per node kind, all implementing Exp.

type Exp interface {
	expNode()
	Span() source.Span
}

type exp struct{ Loc source.Span }

func (e exp) Span() source.Span { return e.Loc }
func (exp) expNode()            {}

type UnitExp struct{ exp }

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
	Name     NameAccessChain
	TypeArgs []Type // nil when no explicit instantiation
}

type CallExp struct {
	exp
	Name     NameAccessChain
	IsMacro  bool
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
	Name     NameAccessChain
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
	Cond Exp
	True Exp
	// False is nil when there is no else branch.
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
	Binds BindList
	Body  Exp
}

// QuantKind is forall or exists.
type QuantKind uint8

const (
	QuantForall QuantKind = iota
	QuantExists
)

type QuantBind struct {
	Loc   source.Span
	Bind  Bind
	Range Exp
}

type QuantExp struct {
	exp
	Kind     QuantKind
	Binds    []QuantBind
	Triggers [][]Exp
	Cond     Exp // nil when absent
	Body     Exp
}

type ExpListExp struct {
	exp
	Exps []Exp
}

type AssignExp struct {
	exp
	LHS Exp
	RHS Exp
}

type ReturnExp struct {
	exp
	Value Exp // nil for bare return
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

// SpecOnlyOps are binary operators only legal in specification contexts.
var SpecOnlyOps = map[string]bool{
	"==>":  true,
	"<==>": true,
}

type BorrowExp struct {
	exp
	Mut   bool
	Inner Exp
}

type DotExp struct {
	exp
	LHS   Exp
	Field source.Name
}

type DotCallExp struct {
	exp
	LHS      Exp
	Method   source.Name
	TypeArgs []Type
	ArgsLoc  source.Span
	Args     []Exp
}

type CastExp struct {
	exp
	Inner Exp
	Type  Type
}

type IndexExp struct {
	exp
	LHS   Exp
	Index Exp
}

type AnnotateExp struct {
	exp
	Inner Exp
	Type  Type
}

type SpecExp struct {
	exp
	Block *SpecBlock
}

// Constructors keep test fixtures terse.

func NewExpAt(loc source.Span) exp { return exp{Loc: loc} }

// Sequences and binds.

type Sequence struct {
	Uses []*UseDecl
	// Items excludes the final expression.
	Items []SequenceItem
	// FinalSemi is the span of a trailing semicolon when the block ends
	// without a final expression.
	FinalSemi *source.Span
	Final     Exp // nil when the block ends in a semicolon
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
	Exp  Exp      // SeqExp, SeqBind (the bound expression)
	Bind BindList // SeqDeclare, SeqBind
	Type *Type    // optional annotation for SeqDeclare/SeqBind
}

type BindList struct {
	Loc   source.Span
	Binds []Bind
}

type BindKind uint8

const (
	BindVar BindKind = iota
	BindUnpack
)

type FieldBind struct {
	Field source.Name
	Bind  *Bind
}

type Bind struct {
	Loc  source.Span
	Kind BindKind
	// BindVar
	Mut *source.Span
	Var source.Name
	// BindUnpack
	Unpack     *NameAccessChain
	TypeArgs   []Type
	Named      []FieldBind // named bindings; nil with Positional for the other form
	Positional []*Bind
}
