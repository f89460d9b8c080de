// Package ast defines the node shapes the type checker, borrow checker,
// and compiler all consume. Every expression node carries its source
// line so a later pass can build the "<message>. Line <N>" errors
// spec.md requires.
package ast

import (
	"fmt"
	"strings"
)

// Node is the base interface for all AST nodes.
type Node interface {
	String() string
	Pos() Position
}

// ===== Types =====

// Type represents a type expression as written in source.
type Type interface {
	Node
	typeNode()
}

// PrimName is a primitive type name: i32, u32, bool, unit.
type PrimName struct {
	Position Position
	Name     string
}

func (p *PrimName) typeNode()      {}
func (p *PrimName) Pos() Position  { return p.Position }
func (p *PrimName) String() string { return p.Name }

// RefTypeExpr represents &T or &mut T.
type RefTypeExpr struct {
	Position Position
	Mut      bool
	Elem     Type
}

func (r *RefTypeExpr) typeNode()     {}
func (r *RefTypeExpr) Pos() Position { return r.Position }
func (r *RefTypeExpr) String() string {
	if r.Mut {
		return "&mut " + r.Elem.String()
	}

	return "&" + r.Elem.String()
}

// BoxTypeExpr represents Box<T>.
type BoxTypeExpr struct {
	Position Position
	Elem     Type
}

func (b *BoxTypeExpr) typeNode()     {}
func (b *BoxTypeExpr) Pos() Position { return b.Position }
func (b *BoxTypeExpr) String() string {
	return fmt.Sprintf("Box<%s>", b.Elem.String())
}

// ===== Expressions =====

// Expr represents an expression.
type Expr interface {
	Node
	exprNode()
}

// Ident represents a variable or function reference.
type Ident struct {
	Position Position
	Name     string
}

func (i *Ident) exprNode()      {}
func (i *Ident) Pos() Position  { return i.Position }
func (i *Ident) String() string { return i.Name }

// IntLit is an integer literal; the checker defaults it to i32.
type IntLit struct {
	Position Position
	Value    int64
}

func (i *IntLit) exprNode()      {}
func (i *IntLit) Pos() Position  { return i.Position }
func (i *IntLit) String() string { return fmt.Sprintf("%d", i.Value) }

// BoolLit is true/false.
type BoolLit struct {
	Position Position
	Value    bool
}

func (b *BoolLit) exprNode()     {}
func (b *BoolLit) Pos() Position { return b.Position }
func (b *BoolLit) String() string {
	if b.Value {
		return "true"
	}

	return "false"
}

// BinaryExpr represents arithmetic, comparison, and logical binary ops.
type BinaryExpr struct {
	Position Position
	Left     Expr
	Op       string
	Right    Expr
}

func (b *BinaryExpr) exprNode()     {}
func (b *BinaryExpr) Pos() Position { return b.Position }
func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left.String(), b.Op, b.Right.String())
}

// BorrowExpr represents &e or &mut e.
type BorrowExpr struct {
	Position Position
	Mut      bool
	Expr     Expr
}

func (b *BorrowExpr) exprNode()     {}
func (b *BorrowExpr) Pos() Position { return b.Position }
func (b *BorrowExpr) String() string {
	if b.Mut {
		return "(&mut " + b.Expr.String() + ")"
	}

	return "(&" + b.Expr.String() + ")"
}

// DerefExpr represents *e.
type DerefExpr struct {
	Position Position
	Expr     Expr
}

func (d *DerefExpr) exprNode()      {}
func (d *DerefExpr) Pos() Position  { return d.Position }
func (d *DerefExpr) String() string { return "(*" + d.Expr.String() + ")" }

// CallExpr represents a function call.
type CallExpr struct {
	Position Position
	Callee   Expr
	Args     []Expr
}

func (c *CallExpr) exprNode()     {}
func (c *CallExpr) Pos() Position { return c.Position }
func (c *CallExpr) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}

	return fmt.Sprintf("%s(%s)", c.Callee.String(), strings.Join(args, ", "))
}

// BoxNewExpr represents Box::new(e).
type BoxNewExpr struct {
	Position Position
	Value    Expr
}

func (b *BoxNewExpr) exprNode()     {}
func (b *BoxNewExpr) Pos() Position { return b.Position }
func (b *BoxNewExpr) String() string {
	return fmt.Sprintf("Box::new(%s)", b.Value.String())
}

// IfExpr represents if c { A } else { B }; it is both a statement and
// (when in trailing-expression position) an expression with a value.
type IfExpr struct {
	Position Position
	Cond     Expr
	Then     *Block
	Else     Node // nil, *Block, or *IfExpr
}

func (i *IfExpr) exprNode()     {}
func (i *IfExpr) Pos() Position { return i.Position }
func (i *IfExpr) String() string {
	s := fmt.Sprintf("if %s %s", i.Cond.String(), i.Then.String())
	if i.Else != nil {
		s += " else " + i.Else.String()
	}

	return s
}

// MatchArm is one arm of a match expression.
type MatchArm struct {
	IntPat      *int64 // non-nil for an integer literal pattern
	BoolPat     *bool  // non-nil for a boolean literal pattern
	BindingName string // non-empty for an identifier/wildcard catch-all arm ("_" allowed)
	Body        Expr
}

// MatchExpr represents match e { arm, ... }. Patterns are restricted to
// literals plus at least one binding/wildcard default arm, which may
// stand anywhere; arms are tried in textual order (see SPEC_FULL.md §9).
type MatchExpr struct {
	Position Position
	Scrutinee Expr
	Arms      []MatchArm
}

func (m *MatchExpr) exprNode()     {}
func (m *MatchExpr) Pos() Position { return m.Position }
func (m *MatchExpr) String() string {
	return fmt.Sprintf("match %s { ... }", m.Scrutinee.String())
}

// LoopExpr represents loop { ... }; it only produces a value via `break value`,
// which this subset does not support, so it always types as unit.
type LoopExpr struct {
	Position Position
	Body     *Block
}

func (l *LoopExpr) exprNode()      {}
func (l *LoopExpr) Pos() Position  { return l.Position }
func (l *LoopExpr) String() string { return "loop " + l.Body.String() }

// BreakExpr represents break.
type BreakExpr struct {
	Position Position
}

func (b *BreakExpr) exprNode()      {}
func (b *BreakExpr) Pos() Position  { return b.Position }
func (b *BreakExpr) String() string { return "break" }

// ContinueExpr represents continue.
type ContinueExpr struct {
	Position Position
}

func (c *ContinueExpr) exprNode()      {}
func (c *ContinueExpr) Pos() Position  { return c.Position }
func (c *ContinueExpr) String() string { return "continue" }

// ReturnExpr represents return e (or bare return).
type ReturnExpr struct {
	Position Position
	Value    Expr // nil for bare return
}

func (r *ReturnExpr) exprNode()     {}
func (r *ReturnExpr) Pos() Position { return r.Position }
func (r *ReturnExpr) String() string {
	if r.Value != nil {
		return "return " + r.Value.String()
	}

	return "return"
}

// AssignExpr represents target = value; target must be an l-value.
type AssignExpr struct {
	Position Position
	Target   Expr
	Value    Expr
}

func (a *AssignExpr) exprNode()     {}
func (a *AssignExpr) Pos() Position { return a.Position }
func (a *AssignExpr) String() string {
	return fmt.Sprintf("%s = %s", a.Target.String(), a.Value.String())
}

// BlockExpr wraps a Block used in expression position.
type BlockExpr struct {
	Position Position
	Block    *Block
}

func (b *BlockExpr) exprNode()     {}
func (b *BlockExpr) Pos() Position { return b.Position }
func (b *BlockExpr) String() string { return b.Block.String() }

// ===== Statements =====

// Stmt represents a statement within a block.
type Stmt interface {
	Node
	stmtNode()
}

// LetStmt represents let name: Type = value; the type annotation is
// mandatory (spec.md §4.1) — Type is never nil for a syntactically valid
// program; the parser itself rejects a missing annotation as a syntax
// error (see parser.go and spec.md scenario S4).
type LetStmt struct {
	Position Position
	Mut      bool
	Name     string
	Type     Type
	Value    Expr
}

func (l *LetStmt) stmtNode()     {}
func (l *LetStmt) Pos() Position { return l.Position }
func (l *LetStmt) String() string {
	mut := ""
	if l.Mut {
		mut = "mut "
	}

	return fmt.Sprintf("let %s%s: %s = %s", mut, l.Name, l.Type.String(), l.Value.String())
}

// ExprStmt represents an expression used as a statement, tracking
// whether it was terminated with `;` (discarding its value) or is the
// block's trailing expression.
type ExprStmt struct {
	Expr       Expr
	Semicolon  bool
}

func (e *ExprStmt) stmtNode()     {}
func (e *ExprStmt) Pos() Position { return e.Expr.Pos() }
func (e *ExprStmt) String() string {
	if e.Semicolon {
		return e.Expr.String() + ";"
	}

	return e.Expr.String()
}

// Block represents a sequence of statements with an optional trailing
// expression (the last ExprStmt with Semicolon == false).
type Block struct {
	Position Position
	Stmts    []Stmt
}

func (b *Block) stmtNode()     {}
func (b *Block) exprNode()     {}
func (b *Block) Pos() Position { return b.Position }
func (b *Block) String() string {
	stmts := make([]string, len(b.Stmts))
	for i, s := range b.Stmts {
		stmts[i] = s.String()
	}

	return "{ " + strings.Join(stmts, " ") + " }"
}

// Trailing returns the block's trailing expression statement, if any.
func (b *Block) Trailing() *ExprStmt {
	if len(b.Stmts) == 0 {
		return nil
	}

	last, ok := b.Stmts[len(b.Stmts)-1].(*ExprStmt)
	if !ok || last.Semicolon {
		return nil
	}

	return last
}

// ===== Declarations =====

// Param is one function parameter.
type Param struct {
	Position Position
	Mut      bool
	Name     string
	Type     Type
}

// FuncDecl represents a function declaration.
type FuncDecl struct {
	Position   Position
	Name       string
	Params     []Param
	ReturnType Type // nil means unit
	Body       *Block
}

func (f *FuncDecl) declNode()    {}
func (f *FuncDecl) Pos() Position { return f.Position }
func (f *FuncDecl) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		mut := ""
		if p.Mut {
			mut = "mut "
		}

		params[i] = fmt.Sprintf("%s%s: %s", mut, p.Name, p.Type.String())
	}

	ret := "unit"
	if f.ReturnType != nil {
		ret = f.ReturnType.String()
	}

	return fmt.Sprintf("fn %s(%s) -> %s %s", f.Name, strings.Join(params, ", "), ret, f.Body.String())
}

// Decl represents a top-level declaration. Only functions exist in this
// subset (no struct/enum/trait/impl/use — those belong to the teacher's
// richer language, out of scope here per spec.md's non-goals).
type Decl interface {
	Node
	declNode()
}

// Crate is the root node: the whole compilation unit.
type Crate struct {
	Position Position
	Funcs    []*FuncDecl
}

func (c *Crate) Pos() Position { return c.Position }
func (c *Crate) String() string {
	items := make([]string, len(c.Funcs))
	for i, f := range c.Funcs {
		items[i] = f.String()
	}

	return strings.Join(items, "\n")
}

// FuncByName returns the function declaration with the given name, if any.
func (c *Crate) FuncByName(name string) (*FuncDecl, bool) {
	for _, f := range c.Funcs {
		if f.Name == name {
			return f, true
		}
	}

	return nil, false
}

// IsLValue reports whether expr is an l-value: a path or a dereference
// of an l-value (spec.md §3).
func IsLValue(expr Expr) bool {
	switch e := expr.(type) {
	case *Ident:
		return true
	case *DerefExpr:
		return IsLValue(e.Expr)
	default:
		return false
	}
}
