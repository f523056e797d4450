package vi

// NodeType identifies the variant of a Vi AST node.
type NodeType int

const (
	// Expressions
	NodeLiteral NodeType = iota
	NodeVar
	NodeBinary
	NodeUnary
	NodeMember
	NodeIndex
	NodeCall
	NodeMethodCall
	NodeTernary
	NodeArray
	NodeObject
	NodePair

	// Statements
	NodeAssign
	NodeReturn
	NodeIf
	NodeFor
	NodeWhile
	NodeExprStmt
	NodeMutate
	NodeFuncDef
)

// Node represents a node in the Vi AST.
type Node interface {
	Type() NodeType
}

// Expr is an expression node. The set of implementations is closed.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a statement node. The set of implementations is closed.
type Stmt interface {
	Node
	stmtNode()
}

// LitKind is the value kind of a Literal.
type LitKind int

const (
	LitNumber LitKind = iota
	LitString
	LitBool
)

// Literal is a number, string or boolean constant. Numbers remember whether
// they were written as integers so emission and the JSON mirror are lossless.
type Literal struct {
	Kind  LitKind
	Num   float64
	IsInt bool
	Str   string
	Bool  bool
}

// Var references a name.
type Var struct {
	Name string
}

// Binary is `Left Op Right`. Op is the source spelling (+, ==, and, or, ...).
type Binary struct {
	Op          string
	Left, Right Expr
}

// Unary is `Op Operand` where Op is "not" or "-".
type Unary struct {
	Op      string
	Operand Expr
}

// Member is `Object.Field`.
type Member struct {
	Object Expr
	Field  string
}

// Index is `Object[Index]`.
type Index struct {
	Object Expr
	Index  Expr
}

// Call is `Callee(Args...)` where Callee is not a member access.
type Call struct {
	Callee Expr
	Args   []Expr
}

// MethodCall is `Object.Method(Args...)`.
type MethodCall struct {
	Object Expr
	Method string
	Args   []Expr
}

// Ternary selects Then or Else on Cond.
type Ternary struct {
	Cond, Then, Else Expr
}

// Array is a bracketed (or implicit comma) list. Elements may be Pairs.
type Array struct {
	Elems []Expr
}

// Object is a braced name to expression mapping in declaration order.
type Object struct {
	Props []Pair
}

// Pair is a `key: value` element.
type Pair struct {
	Key   string
	Value Expr
}

func (Literal) Type() NodeType    { return NodeLiteral }
func (Var) Type() NodeType        { return NodeVar }
func (Binary) Type() NodeType     { return NodeBinary }
func (Unary) Type() NodeType      { return NodeUnary }
func (Member) Type() NodeType     { return NodeMember }
func (Index) Type() NodeType      { return NodeIndex }
func (Call) Type() NodeType       { return NodeCall }
func (MethodCall) Type() NodeType { return NodeMethodCall }
func (Ternary) Type() NodeType    { return NodeTernary }
func (Array) Type() NodeType      { return NodeArray }
func (Object) Type() NodeType     { return NodeObject }
func (Pair) Type() NodeType       { return NodePair }

func (Literal) exprNode()    {}
func (Var) exprNode()        {}
func (Binary) exprNode()     {}
func (Unary) exprNode()      {}
func (Member) exprNode()     {}
func (Index) exprNode()      {}
func (Call) exprNode()       {}
func (MethodCall) exprNode() {}
func (Ternary) exprNode()    {}
func (Array) exprNode()      {}
func (Object) exprNode()     {}
func (Pair) exprNode()       {}

// Num returns an integer or float number literal.
func Num(v float64, isInt bool) Literal { return Literal{Kind: LitNumber, Num: v, IsInt: isInt} }

// Int returns an integer number literal.
func Int(v int) Literal { return Literal{Kind: LitNumber, Num: float64(v), IsInt: true} }

// Str returns a string literal.
func Str(s string) Literal { return Literal{Kind: LitString, Str: s} }

// Bool returns a boolean literal.
func Bool(b bool) Literal { return Literal{Kind: LitBool, Bool: b} }

// Assign is `Target = Value`.
type Assign struct {
	Target Expr
	Value  Expr
}

// Return is `return Value`. Value is nil for a bare return.
type Return struct {
	Value Expr
}

// If is a conditional. An else-if chain is an Else holding a single If.
type If struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
}

// For is `for Var in Iter:`.
type For struct {
	Var  string
	Iter Expr
	Body []Stmt
}

// While is `while (Cond):`.
type While struct {
	Cond Expr
	Body []Stmt
}

// ExprStmt is an expression evaluated for its effect.
type ExprStmt struct {
	X Expr
}

// Mutate sets attributes on the UI element identified by Target.
type Mutate struct {
	Target Expr
	Attrs  []Pair
}

// FuncDef is a function defined inside another function's body.
type FuncDef struct {
	Func *Function
}

func (Assign) Type() NodeType   { return NodeAssign }
func (Return) Type() NodeType   { return NodeReturn }
func (If) Type() NodeType       { return NodeIf }
func (For) Type() NodeType      { return NodeFor }
func (While) Type() NodeType    { return NodeWhile }
func (ExprStmt) Type() NodeType { return NodeExprStmt }
func (Mutate) Type() NodeType   { return NodeMutate }
func (FuncDef) Type() NodeType  { return NodeFuncDef }

func (Assign) stmtNode()   {}
func (Return) stmtNode()   {}
func (If) stmtNode()       {}
func (For) stmtNode()      {}
func (While) stmtNode()    {}
func (ExprStmt) stmtNode() {}
func (Mutate) stmtNode()   {}
func (FuncDef) stmtNode()  {}

// Function is a top-level or nested function declaration.
type Function struct {
	Name   string
	Params []string
	Body   []Stmt
	Line   int
}

// Container is a UI element declaration.
type Container struct {
	Name     string
	Attrs    Table[Expr]
	Children []*Container
	Line     int
}

// Attr returns the attribute expression for name, or nil.
func (c *Container) Attr(name string) Expr {
	v, _ := c.Attrs.Get(name)
	return v
}

// Import is a `from "p" import ...` or `import "p"` declaration.
type Import struct {
	Source string
	Names  []string // nil when All
	All    bool
	Line   int
}

// Program is a parsed Vi file.
type Program struct {
	File       string
	Imports    []Import
	Vars       Table[Expr]
	Funcs      Table[*Function]
	Containers Table[*Container]
	Main       string
	Config     *Container
}

// Table is an insertion-ordered name to value mapping. Replacing an existing
// name keeps its original position. The zero value is ready to use.
type Table[T any] struct {
	keys []string
	vals map[string]T
}

// Set binds name to v.
func (t *Table[T]) Set(name string, v T) {
	if t.vals == nil {
		t.vals = make(map[string]T)
	}
	if _, ok := t.vals[name]; !ok {
		t.keys = append(t.keys, name)
	}
	t.vals[name] = v
}

// Get returns the value bound to name.
func (t *Table[T]) Get(name string) (T, bool) {
	v, ok := t.vals[name]
	return v, ok
}

// Has reports whether name is bound.
func (t *Table[T]) Has(name string) bool {
	_, ok := t.vals[name]
	return ok
}

// Keys returns the bound names in insertion order.
func (t *Table[T]) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Len returns the number of bindings.
func (t *Table[T]) Len() int { return len(t.keys) }

// Merge copies every binding of other into t.
func (t *Table[T]) Merge(other *Table[T]) {
	for _, k := range other.keys {
		t.Set(k, other.vals[k])
	}
}

// baseName walks a member chain to its root variable name.
func baseName(e Expr) (string, bool) {
	for {
		switch x := e.(type) {
		case Member:
			e = x.Object
		case Var:
			return x.Name, true
		default:
			return "", false
		}
	}
}

// calleeName returns the function name of a plain call.
func calleeName(c Call) (string, bool) {
	v, ok := c.Callee.(Var)
	if !ok {
		return "", false
	}
	return v.Name, true
}
