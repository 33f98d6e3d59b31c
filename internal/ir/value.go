package ir

// ValueKind classifies an rvalue.
type ValueKind uint8

const (
	ValueConst ValueKind = iota + 1
	ValueUnary
	ValueBinary
	ValueAddress // address of an lvalue
	ValueLoad    // current contents of an lvalue
)

// Value is an rvalue node. Which payload fields are meaningful depends on
// Kind and, for constants, on the kind of Type.
type Value struct {
	Kind     ValueKind
	Type     TypeID
	Int      int32
	Float    float64
	Bool     bool
	Str      string
	Op       OperatorKind
	Operands [2]ValueID
	LValue   LValueID
}

// LValueKind classifies an assignable location.
type LValueKind uint8

const (
	LValueLocal LValueKind = iota + 1
	LValueField
)

// LValue is a location inside a function: a local, or a field of another
// lvalue.
type LValue struct {
	Kind   LValueKind
	Type   TypeID
	Func   FuncID
	Name   string   // local name
	Parent LValueID // enclosing lvalue for LValueField
	Field  FieldID  // accessed field for LValueField
}

// StmtKind classifies a statement.
type StmtKind uint8

const (
	StmtAssign StmtKind = iota + 1
	StmtReturn
)

// Stmt is a single statement within a block.
type Stmt struct {
	Kind   StmtKind
	Target LValueID // StmtAssign only
	Value  ValueID
}

// Block is a straight-line statement list.
type Block struct {
	Func       FuncID
	Name       string
	Stmts      []Stmt
	Terminated bool
}

// Function is a no-argument function definition.
type Function struct {
	Name     string
	Return   TypeID
	Exported bool
	Locals   []LValueID
	Blocks   []BlockID
}
