package ir

// TypeID identifies a type within a Context.
type TypeID uint32

// FieldID identifies a struct field within a Context.
type FieldID uint32

// ValueID identifies an rvalue within a Context.
type ValueID uint32

// LValueID identifies an assignable location within a Context.
type LValueID uint32

// FuncID identifies a function within a Context.
type FuncID uint32

// BlockID identifies a basic block within a Context.
type BlockID uint32

// Invalid ID constants (zero is sentinel).
const (
	NoType   TypeID   = 0
	NoField  FieldID  = 0
	NoValue  ValueID  = 0
	NoLValue LValueID = 0
	NoFunc   FuncID   = 0
	NoBlock  BlockID  = 0
)

// IsValid returns true if the ID is valid (non-zero).
func (id TypeID) IsValid() bool   { return id != NoType }
func (id FieldID) IsValid() bool  { return id != NoField }
func (id ValueID) IsValid() bool  { return id != NoValue }
func (id LValueID) IsValid() bool { return id != NoLValue }
func (id FuncID) IsValid() bool   { return id != NoFunc }
func (id BlockID) IsValid() bool  { return id != NoBlock }
