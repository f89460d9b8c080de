// Package typecheck implements spec.md §4.1: it walks the AST top-down,
// resolves every expression's type into a side table (never mutating the
// AST — see spec.md §9's Design Notes), and rejects ill-typed programs
// on the first violation. Grounded on yarlson/yarlang's checker/checker.go,
// split into the type-only half of that pass.
package typecheck

import (
	"fmt"

	"github.com/ribbc/ribbon/internal/ast"
	"github.com/ribbc/ribbon/internal/types"
)

// Error is a typed compile-time error carrying the offending source line
// (spec.md §6: "<rule-specific text>. Line <N>").
type Error struct {
	Msg  string
	Line int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s. Line %d", e.Msg, e.Line)
}

// Result is what the borrow checker and compiler consume: the resolved
// type of every expression node, plus the crate's function signatures.
type Result struct {
	Types map[ast.Expr]types.Type
	Funcs map[string]*types.FuncType
}

// TypeOf looks up the resolved type of an already-checked expression.
func (r *Result) TypeOf(e ast.Expr) types.Type {
	return r.Types[e]
}

type checker struct {
	env      *types.Env
	result   *Result
	currFn   *types.FuncType
	loopDepth int
	err      error
}

// Check type-checks crate and returns the decorated Result, or the first
// TypeError encountered.
func Check(crate *ast.Crate) (*Result, error) {
	c := &checker{
		env:    types.NewEnv(),
		result: &Result{Types: make(map[ast.Expr]types.Type), Funcs: make(map[string]*types.FuncType)},
	}

	// Pre-scan: crate's immediate children are function declarations;
	// defining them all up front gives forward reference and recursion
	// (spec.md §3 Scope, §8 scenario S3).
	for _, fn := range crate.Funcs {
		ft, ferr := c.funcType(fn)
		if ferr != nil {
			return nil, ferr
		}

		c.env.Define(fn.Name, ft, false)
		c.result.Funcs[fn.Name] = ft
	}

	for _, fn := range crate.Funcs {
		if err := c.checkFunc(fn); err != nil {
			return nil, err
		}
	}

	if c.err != nil {
		return nil, c.err
	}

	return c.result, nil
}

func (c *checker) fail(pos ast.Position, format string, args ...any) error {
	e := &Error{Msg: fmt.Sprintf(format, args...), Line: pos.Line}
	if c.err == nil {
		c.err = e
	}

	return e
}

func (c *checker) funcType(fn *ast.FuncDecl) (*types.FuncType, error) {
	params := make([]types.Type, len(fn.Params))
	names := make([]string, len(fn.Params))

	for i, p := range fn.Params {
		t, err := c.resolveType(p.Type)
		if err != nil {
			return nil, err
		}

		params[i] = t
		names[i] = p.Name
	}

	ret := types.Type(types.UnitType())
	if fn.ReturnType != nil {
		t, err := c.resolveType(fn.ReturnType)
		if err != nil {
			return nil, err
		}

		ret = t
	}

	return &types.FuncType{ParamNames: names, Params: params, Return: ret}, nil
}

func (c *checker) resolveType(t ast.Type) (types.Type, error) {
	switch t := t.(type) {
	case *ast.PrimName:
		switch t.Name {
		case "i32":
			return types.I32Type(), nil
		case "u32":
			return types.U32Type(), nil
		case "bool":
			return types.BoolType(), nil
		case "unit":
			return types.UnitType(), nil
		default:
			return nil, c.fail(t.Position, "undefined type: %s", t.Name)
		}
	case *ast.RefTypeExpr:
		elem, err := c.resolveType(t.Elem)
		if err != nil {
			return nil, err
		}

		return &types.RefType{Mut: t.Mut, Elem: elem}, nil
	case *ast.BoxTypeExpr:
		elem, err := c.resolveType(t.Elem)
		if err != nil {
			return nil, err
		}

		return &types.BoxType{Elem: elem}, nil
	default:
		return nil, c.fail(t.Pos(), "unknown type expression")
	}
}

func (c *checker) checkFunc(fn *ast.FuncDecl) error {
	ft := c.result.Funcs[fn.Name]

	prevFn := c.currFn
	c.currFn = ft
	defer func() { c.currFn = prevFn }()

	c.env.PushScope()
	defer c.env.PopScope()

	for i, p := range fn.Params {
		c.env.Define(p.Name, ft.Params[i], p.Mut)
	}

	if err := c.preScanLocals(fn.Body); err != nil {
		return err
	}

	bodyTy, err := c.checkBlock(fn.Body)
	if err != nil {
		return err
	}

	if !types.TypesEqual(bodyTy, ft.Return) && !blockDiverges(fn.Body) {
		return c.fail(fn.Body.Pos(), "function %s: body type %s does not match declared return type %s",
			fn.Name, bodyTy.String(), ft.Return.String())
	}

	return nil
}

// blockDiverges reports whether a block's trailing statement always
// returns from the enclosing function, directly or through an if/else
// whose every arm diverges. A diverging block's own type is unit (from
// the discarded return statement), but that unit never actually reaches
// the block's caller — it should not be held against whatever type the
// surrounding context expects.
func blockDiverges(block *ast.Block) bool {
	if len(block.Stmts) == 0 {
		return false
	}

	return stmtDiverges(block.Stmts[len(block.Stmts)-1])
}

func stmtDiverges(stmt ast.Stmt) bool {
	exprStmt, ok := stmt.(*ast.ExprStmt)
	if !ok {
		return false
	}

	return exprDiverges(exprStmt.Expr)
}

func exprDiverges(expr ast.Expr) bool {
	switch e := expr.(type) {
	case *ast.ReturnExpr:
		return true
	case *ast.IfExpr:
		if e.Else == nil || !blockDiverges(e.Then) {
			return false
		}

		switch els := e.Else.(type) {
		case *ast.Block:
			return blockDiverges(els)
		case *ast.IfExpr:
			return exprDiverges(els)
		default:
			return false
		}
	default:
		return false
	}
}

// preScanLocals implements spec.md §3's Scope pre-pass: a single scan
// over the block's immediate statement children, defining every
// let-bound name by its declared type before any statement is checked.
// It does not descend into nested blocks or branch arms.
func (c *checker) preScanLocals(block *ast.Block) error {
	for _, stmt := range block.Stmts {
		let, ok := stmt.(*ast.LetStmt)
		if !ok {
			continue
		}

		if let.Type == nil {
			return c.fail(let.Position, "missing type annotation for let %s", let.Name)
		}

		t, err := c.resolveType(let.Type)
		if err != nil {
			return err
		}

		c.env.Define(let.Name, t, let.Mut)
	}

	return nil
}

func (c *checker) checkBlock(block *ast.Block) (types.Type, error) {
	var last types.Type = types.UnitType()

	for i, stmt := range block.Stmts {
		isTrailing := i == len(block.Stmts)-1

		ty, err := c.checkStmt(stmt)
		if err != nil {
			return nil, err
		}

		if isTrailing {
			last = ty
		}
	}

	return last, nil
}

func (c *checker) checkStmt(stmt ast.Stmt) (types.Type, error) {
	switch s := stmt.(type) {
	case *ast.LetStmt:
		return types.UnitType(), c.checkLetStmt(s)
	case *ast.ExprStmt:
		ty, err := c.checkExpr(s.Expr)
		if err != nil {
			return nil, err
		}

		if s.Semicolon {
			return types.UnitType(), nil
		}

		return ty, nil
	default:
		return nil, c.fail(stmt.Pos(), "unknown statement")
	}
}

func (c *checker) checkLetStmt(let *ast.LetStmt) error {
	valTy, err := c.checkExpr(let.Value)
	if err != nil {
		return err
	}

	declTy, err := c.resolveType(let.Type)
	if err != nil {
		return err
	}

	if !types.TypesEqual(valTy, declTy) {
		return c.fail(let.Position, "type mismatch: expected %s, got %s", declTy.String(), valTy.String())
	}

	return nil
}

func (c *checker) checkExpr(expr ast.Expr) (types.Type, error) {
	var (
		ty  types.Type
		err error
	)

	switch e := expr.(type) {
	case *ast.IntLit:
		ty = types.I32Type()
	case *ast.BoolLit:
		ty = types.BoolType()
	case *ast.Ident:
		ty, err = c.checkIdent(e)
	case *ast.BinaryExpr:
		ty, err = c.checkBinary(e)
	case *ast.BorrowExpr:
		ty, err = c.checkBorrow(e)
	case *ast.DerefExpr:
		ty, err = c.checkDeref(e)
	case *ast.CallExpr:
		ty, err = c.checkCall(e)
	case *ast.BoxNewExpr:
		ty, err = c.checkBoxNew(e)
	case *ast.AssignExpr:
		ty, err = c.checkAssign(e)
	case *ast.IfExpr:
		ty, err = c.checkIf(e)
	case *ast.MatchExpr:
		ty, err = c.checkMatch(e)
	case *ast.LoopExpr:
		ty, err = c.checkLoop(e)
	case *ast.BreakExpr:
		ty, err = c.checkBreakContinue(e.Position, "break")
	case *ast.ContinueExpr:
		ty, err = c.checkBreakContinue(e.Position, "continue")
	case *ast.ReturnExpr:
		ty, err = c.checkReturn(e)
	case *ast.BlockExpr:
		c.env.PushScope()
		if perr := c.preScanLocals(e.Block); perr != nil {
			c.env.PopScope()
			return nil, perr
		}
		ty, err = c.checkBlock(e.Block)
		c.env.PopScope()
	default:
		return nil, c.fail(expr.Pos(), "unknown expression")
	}

	if err != nil {
		return nil, err
	}

	c.result.Types[expr] = ty

	return ty, nil
}

func (c *checker) checkIdent(id *ast.Ident) (types.Type, error) {
	sym, ok := c.env.Lookup(id.Name)
	if !ok {
		return nil, c.fail(id.Position, "undefined variable: %s", id.Name)
	}

	return sym.Type, nil
}

func (c *checker) checkBinary(b *ast.BinaryExpr) (types.Type, error) {
	lt, err := c.checkExpr(b.Left)
	if err != nil {
		return nil, err
	}

	rt, err := c.checkExpr(b.Right)
	if err != nil {
		return nil, err
	}

	switch b.Op {
	case "+", "-", "*", "/", "%":
		if !types.TypesEqual(lt, rt) || !types.IsNumeric(lt) {
			return nil, c.fail(b.Position, "operator %s requires two operands of the same numeric type, got %s and %s",
				b.Op, lt.String(), rt.String())
		}

		return lt, nil
	case "==", "!=", "<", ">", "<=", ">=":
		if !types.TypesEqual(lt, rt) {
			return nil, c.fail(b.Position, "comparison %s requires operands of the same type, got %s and %s",
				b.Op, lt.String(), rt.String())
		}

		return types.BoolType(), nil
	case "&&", "||":
		boolTy := types.Type(types.BoolType())
		if !types.TypesEqual(lt, boolTy) || !types.TypesEqual(rt, boolTy) {
			return nil, c.fail(b.Position, "operator %s requires bool operands, got %s and %s", b.Op, lt.String(), rt.String())
		}

		return types.BoolType(), nil
	default:
		return nil, c.fail(b.Position, "unknown operator: %s", b.Op)
	}
}

func (c *checker) checkBorrow(b *ast.BorrowExpr) (types.Type, error) {
	if !ast.IsLValue(b.Expr) {
		return nil, c.fail(b.Position, "cannot borrow a non-l-value expression")
	}

	inner, err := c.checkExpr(b.Expr)
	if err != nil {
		return nil, err
	}

	return &types.RefType{Mut: b.Mut, Elem: inner}, nil
}

// checkDeref types *e for either a reference (&T/&mut T) or a Box<T> —
// both are addresses backed by the same heap, so both dereference to
// their element type (spec.md scenario S2: *box_val reads the boxed
// value the same way *ref_val reads a borrowed one).
func (c *checker) checkDeref(d *ast.DerefExpr) (types.Type, error) {
	inner, err := c.checkExpr(d.Expr)
	if err != nil {
		return nil, err
	}

	switch t := inner.(type) {
	case *types.RefType:
		return t.Elem, nil
	case *types.BoxType:
		return t.Elem, nil
	default:
		return nil, c.fail(d.Position, "cannot dereference non-reference, non-box type %s", inner.String())
	}
}

func (c *checker) checkCall(call *ast.CallExpr) (types.Type, error) {
	callee, ok := call.Callee.(*ast.Ident)
	if !ok {
		return nil, c.fail(call.Position, "call target must be a function name")
	}

	sym, ok := c.env.Lookup(callee.Name)
	if !ok {
		return nil, c.fail(call.Position, "undefined function: %s", callee.Name)
	}

	ft, ok := sym.Type.(*types.FuncType)
	if !ok {
		return nil, c.fail(call.Position, "%s is not a function", callee.Name)
	}

	if len(call.Args) != len(ft.Params) {
		return nil, c.fail(call.Position, "function %s expects %d arguments, got %d", callee.Name, len(ft.Params), len(call.Args))
	}

	for i, arg := range call.Args {
		at, err := c.checkExpr(arg)
		if err != nil {
			return nil, err
		}

		if !types.TypesEqual(at, ft.Params[i]) {
			return nil, c.fail(arg.Pos(), "argument %d to %s: expected %s, got %s", i+1, callee.Name, ft.Params[i].String(), at.String())
		}
	}

	return ft.Return, nil
}

func (c *checker) checkBoxNew(b *ast.BoxNewExpr) (types.Type, error) {
	t, err := c.checkExpr(b.Value)
	if err != nil {
		return nil, err
	}

	return &types.BoxType{Elem: t}, nil
}

func (c *checker) checkAssign(a *ast.AssignExpr) (types.Type, error) {
	if !ast.IsLValue(a.Target) {
		return nil, c.fail(a.Position, "assignment target must be an l-value")
	}

	tt, err := c.checkExpr(a.Target)
	if err != nil {
		return nil, err
	}

	vt, err := c.checkExpr(a.Value)
	if err != nil {
		return nil, err
	}

	if !types.TypesEqual(tt, vt) {
		return nil, c.fail(a.Position, "type mismatch in assignment: expected %s, got %s", tt.String(), vt.String())
	}

	return types.UnitType(), nil
}

func (c *checker) checkIf(i *ast.IfExpr) (types.Type, error) {
	condTy, err := c.checkExpr(i.Cond)
	if err != nil {
		return nil, err
	}

	if !types.TypesEqual(condTy, types.BoolType()) {
		return nil, c.fail(i.Position, "if condition must be bool, got %s", condTy.String())
	}

	thenTy, err := c.checkExprBlock(i.Then)
	if err != nil {
		return nil, err
	}

	thenDiverges := blockDiverges(i.Then)

	if i.Else == nil {
		if !thenDiverges && !types.TypesEqual(thenTy, types.UnitType()) {
			return nil, c.fail(i.Position, "if without else must have a unit-typed body, got %s", thenTy.String())
		}

		return types.UnitType(), nil
	}

	var (
		elseTy       types.Type
		elseDiverges bool
	)

	switch e := i.Else.(type) {
	case *ast.Block:
		elseTy, err = c.checkExprBlock(e)
		elseDiverges = blockDiverges(e)
	case *ast.IfExpr:
		elseTy, err = c.checkIf(e)
		elseDiverges = exprDiverges(e)
	default:
		return nil, c.fail(i.Position, "invalid else clause")
	}

	if err != nil {
		return nil, err
	}

	// An arm that always returns never actually produces its block's
	// unit type to the if/else's own result, so it imposes no
	// constraint on the other arm's type (mirrors how return itself
	// short-circuits the enclosing function's type, not the block's).
	switch {
	case thenDiverges:
		return elseTy, nil
	case elseDiverges:
		return thenTy, nil
	case !types.TypesEqual(thenTy, elseTy):
		return nil, c.fail(i.Position, "if/else arms have different types: %s and %s", thenTy.String(), elseTy.String())
	}

	return thenTy, nil
}

// checkExprBlock type-checks a *ast.Block used as a branch body (push
// scope, pre-scan its locals, check, pop scope) without going through
// ast.BlockExpr (which is for blocks used directly as expressions).
func (c *checker) checkExprBlock(b *ast.Block) (types.Type, error) {
	c.env.PushScope()
	defer c.env.PopScope()

	if err := c.preScanLocals(b); err != nil {
		return nil, err
	}

	return c.checkBlock(b)
}

func (c *checker) checkMatch(m *ast.MatchExpr) (types.Type, error) {
	scrTy, err := c.checkExpr(m.Scrutinee)
	if err != nil {
		return nil, err
	}

	var (
		resultTy   types.Type
		sawDefault bool
	)

	for idx, arm := range m.Arms {
		c.env.PushScope()

		switch {
		case arm.IntPat != nil:
			if !types.TypesEqual(scrTy, types.I32Type()) && !types.TypesEqual(scrTy, types.U32Type()) {
				c.env.PopScope()
				return nil, c.fail(m.Position, "integer pattern used against non-integer scrutinee %s", scrTy.String())
			}
		case arm.BoolPat != nil:
			if !types.TypesEqual(scrTy, types.BoolType()) {
				c.env.PopScope()
				return nil, c.fail(m.Position, "bool pattern used against non-bool scrutinee %s", scrTy.String())
			}
		case arm.BindingName != "":
			sawDefault = true
			if arm.BindingName != "_" {
				c.env.Define(arm.BindingName, scrTy, false)
			}
		}

		armTy, err := c.checkExpr(arm.Body)
		c.env.PopScope()

		if err != nil {
			return nil, err
		}

		if idx == 0 {
			resultTy = armTy
		} else if !types.TypesEqual(resultTy, armTy) {
			return nil, c.fail(m.Position, "match arms have different types: %s and %s", resultTy.String(), armTy.String())
		}
	}

	if !sawDefault {
		return nil, c.fail(m.Position, "match must end in a default arm")
	}

	return resultTy, nil
}

func (c *checker) checkLoop(l *ast.LoopExpr) (types.Type, error) {
	c.loopDepth++
	bodyTy, err := c.checkExprBlock(l.Body)
	c.loopDepth--

	if err != nil {
		return nil, err
	}

	if !types.TypesEqual(bodyTy, types.UnitType()) {
		return nil, c.fail(l.Position, "loop body must be unit-typed, got %s", bodyTy.String())
	}

	return types.UnitType(), nil
}

func (c *checker) checkBreakContinue(pos ast.Position, what string) (types.Type, error) {
	if c.loopDepth == 0 {
		return nil, c.fail(pos, "%s outside of loop", what)
	}

	return types.UnitType(), nil
}

func (c *checker) checkReturn(r *ast.ReturnExpr) (types.Type, error) {
	var valTy types.Type = types.UnitType()

	if r.Value != nil {
		t, err := c.checkExpr(r.Value)
		if err != nil {
			return nil, err
		}

		valTy = t
	}

	if c.currFn == nil {
		return nil, c.fail(r.Position, "return outside of function")
	}

	if !types.TypesEqual(valTy, c.currFn.Return) {
		return nil, c.fail(r.Position, "return type %s does not match function return type %s", valTy.String(), c.currFn.Return.String())
	}

	return types.UnitType(), nil
}
