package compiler

import (
	"fmt"

	"github.com/ribbc/ribbon/internal/ast"
	"github.com/ribbc/ribbon/internal/builtins"
	"github.com/ribbc/ribbon/internal/typecheck"
	"github.com/ribbc/ribbon/internal/types"
)

// Error is a compile-time failure — in practice only "no main function",
// since type checking and borrow checking have already rejected anything
// else wrong with the crate by the time Compile runs.
type Error struct{ Msg string }

func (e *Error) Error() string { return e.Msg }

// cscope mirrors typecheck/borrowck's scope shape but maps names
// straight to frame slot indices instead of types or ownership records
// — the compiler only needs to know where a name lives.
type cscope struct {
	names  []string
	parent *cscope
}

func (s *cscope) index(name string) (int, bool) {
	for i, n := range s.names {
		if n == name {
			return i, true
		}
	}

	return 0, false
}

type loopLabels struct {
	continueJumps []int
	breakJumps    []int

	// bodyScope is the cscope node the loop body's own ENTER_SCOPE
	// pushed. continue may fire from inside nested blocks (an if arm,
	// say); it unwinds with explicit EXIT_SCOPEs up to but not
	// including bodyScope, then jumps to the loop's own end-of-body
	// EXIT_SCOPE, so every intervening scope is freed exactly once.
	bodyScope *cscope
}

type compiler struct {
	scope  *cscope
	instrs []Instr
	loops  []*loopLabels
	types  *typecheck.Result
}

// Compile lowers an already type-checked and borrow-checked crate into a
// flat bytecode Program.
func Compile(crate *ast.Crate, typed *typecheck.Result) (*Program, error) {
	c := &compiler{types: typed}

	top := &cscope{}
	for _, fn := range crate.Funcs {
		top.names = append(top.names, fn.Name)
	}

	c.scope = top

	c.emit(Instr{Op: ENTER_SCOPE, N: int64(len(crate.Funcs))})

	entries := make([]int64, len(crate.Funcs))

	for i, fn := range crate.Funcs {
		skip := c.emitAt(Instr{Op: GOTOR})
		entries[i] = int64(len(c.instrs))

		if err := c.compileFunc(fn); err != nil {
			return nil, err
		}

		c.instrs[skip].N = int64(len(c.instrs))
	}

	for i := range crate.Funcs {
		c.emit(Instr{Op: LDCP, N: entries[i]})
		c.emit(Instr{Op: SET, Frame: 0, Local: i})
	}

	mainIdx, ok := top.index("main")
	if !ok {
		return nil, &Error{Msg: "no main function"}
	}

	mainEntry := len(c.instrs)
	c.emit(Instr{Op: GET, Frame: 0, Local: mainIdx})
	c.emit(Instr{Op: CALL})
	c.emit(Instr{Op: DONE})

	return &Program{Instrs: c.instrs, MainEntry: mainEntry}, nil
}

func (c *compiler) emit(i Instr) int {
	c.instrs = append(c.instrs, i)
	return len(c.instrs) - 1
}

// emitAt is emit with an obviously-placeholder name at call sites that
// patch the instruction's N field once its target is known.
func (c *compiler) emitAt(i Instr) int { return c.emit(i) }

// resolve finds name's (frame-hops, slot) pair by walking the compile
// scope chain outward, counting one hop per ENTER_SCOPE crossed — this
// must visit scopes in exactly the same shape typecheck.Check and
// borrowck.Check build, since all three passes share one pre-scan rule.
func (c *compiler) resolve(name string) (hops, idx int, ok bool) {
	for s := c.scope; s != nil; s = s.parent {
		if i, found := s.index(name); found {
			return hops, i, true
		}

		hops++
	}

	return 0, 0, false
}

// funcLocalNames replicates typecheck/borrowck's single pre-scan over a
// function's parameters plus its body's immediate LetStmt children.
func funcLocalNames(fn *ast.FuncDecl) []string {
	names := make([]string, 0, len(fn.Params))
	for _, p := range fn.Params {
		names = append(names, p.Name)
	}

	return append(names, blockLocalNames(fn.Body)...)
}

func blockLocalNames(block *ast.Block) []string {
	var names []string

	seen := make(map[string]bool)

	for _, stmt := range block.Stmts {
		let, ok := stmt.(*ast.LetStmt)
		if !ok || seen[let.Name] {
			continue
		}

		seen[let.Name] = true
		names = append(names, let.Name)
	}

	return names
}

func (c *compiler) compileFunc(fn *ast.FuncDecl) error {
	locals := funcLocalNames(fn)
	c.scope = &cscope{names: locals, parent: c.scope}
	defer func() { c.scope = c.scope.parent }()

	c.emit(Instr{Op: ENTER_SCOPE, N: int64(len(locals))})

	for i := len(fn.Params) - 1; i >= 0; i-- {
		c.emit(Instr{Op: SET, Frame: 0, Local: i})
	}

	if err := c.compileBlockBody(fn.Body.Stmts); err != nil {
		return err
	}

	c.emit(Instr{Op: RET})

	return nil
}

// compileBlockBody compiles stmts in the current scope, leaving exactly
// one value on the operand stack: the trailing expression's value, or
// unit if the block ends in a let or a semicolon-terminated expression.
func (c *compiler) compileBlockBody(stmts []ast.Stmt) error {
	producedValue := false

	for i, stmt := range stmts {
		last := i == len(stmts)-1
		producedValue = false

		switch s := stmt.(type) {
		case *ast.LetStmt:
			if err := c.compileLet(s); err != nil {
				return err
			}
		case *ast.ExprStmt:
			if err := c.compileExpr(s.Expr); err != nil {
				return err
			}

			if s.Semicolon || !last {
				c.emit(Instr{Op: POP})
			} else {
				producedValue = true
			}
		default:
			return &Error{Msg: "unknown statement"}
		}
	}

	if !producedValue {
		c.emit(Instr{Op: LDCP, N: 0})
	}

	return nil
}

func (c *compiler) compileLet(let *ast.LetStmt) error {
	if err := c.compileExpr(let.Value); err != nil {
		return err
	}

	hops, idx, ok := c.resolve(let.Name)
	if !ok {
		return &Error{Msg: fmt.Sprintf("internal: unresolved local %s", let.Name)}
	}

	c.emit(Instr{Op: SET, Frame: hops, Local: idx})

	return nil
}

// compileExprBlock compiles a nested block (if/else arm, loop body,
// match arm body, or a bare block expression) in its own child scope,
// leaving its result on the stack.
func (c *compiler) compileExprBlock(b *ast.Block) error {
	locals := blockLocalNames(b)
	c.scope = &cscope{names: locals, parent: c.scope}
	defer func() { c.scope = c.scope.parent }()

	c.emit(Instr{Op: ENTER_SCOPE, N: int64(len(locals))})

	if err := c.compileBlockBody(b.Stmts); err != nil {
		return err
	}

	c.emit(Instr{Op: EXIT_SCOPE})

	return nil
}

func (c *compiler) isUnsigned(e ast.Expr) bool {
	t := c.types.TypeOf(e)
	return types.IsNumeric(t) && !types.TypesEqual(t, types.Type(types.I32Type()))
}

func (c *compiler) compileExpr(expr ast.Expr) error {
	switch e := expr.(type) {
	case *ast.IntLit:
		c.emit(Instr{Op: LDCP, N: e.Value})
	case *ast.BoolLit:
		n := int64(0)
		if e.Value {
			n = 1
		}

		c.emit(Instr{Op: LDCP, N: n})
	case *ast.Ident:
		hops, idx, ok := c.resolve(e.Name)
		if !ok {
			return &Error{Msg: fmt.Sprintf("internal: unresolved identifier %s", e.Name)}
		}

		c.emit(Instr{Op: GET, Frame: hops, Local: idx})
	case *ast.BinaryExpr:
		return c.compileBinary(e)
	case *ast.BorrowExpr:
		return c.compileLValueAddr(e.Expr)
	case *ast.DerefExpr:
		if err := c.compileExpr(e.Expr); err != nil {
			return err
		}

		c.emit(Instr{Op: DEREF})
	case *ast.CallExpr:
		return c.compileCall(e)
	case *ast.BoxNewExpr:
		if err := c.compileExpr(e.Value); err != nil {
			return err
		}

		c.emit(Instr{Op: ALLOC, N: 1})
	case *ast.AssignExpr:
		return c.compileAssign(e)
	case *ast.IfExpr:
		return c.compileIf(e)
	case *ast.MatchExpr:
		return c.compileMatch(e)
	case *ast.LoopExpr:
		return c.compileLoop(e)
	case *ast.BreakExpr:
		return c.compileBreak()
	case *ast.ContinueExpr:
		return c.compileContinue()
	case *ast.ReturnExpr:
		return c.compileReturn(e)
	case *ast.BlockExpr:
		return c.compileExprBlock(e.Block)
	default:
		return &Error{Msg: "unknown expression"}
	}

	return nil
}

func (c *compiler) compileBinary(b *ast.BinaryExpr) error {
	if b.Op == "&&" || b.Op == "||" {
		return c.compileShortCircuit(b)
	}

	if err := c.compileExpr(b.Left); err != nil {
		return err
	}

	if err := c.compileExpr(b.Right); err != nil {
		return err
	}

	unsigned := c.isUnsigned(b.Left)

	op, ok := map[string]Op{
		"+": ADD, "-": SUB, "*": MUL, "/": DIV, "%": MOD,
		"==": EQ, "!=": NEQ, "<": LT, ">": GT, "<=": LE, ">=": GE,
	}[b.Op]
	if !ok {
		return &Error{Msg: fmt.Sprintf("unknown operator %s", b.Op)}
	}

	c.emit(Instr{Op: op, Unsigned: unsigned})

	return nil
}

// compileShortCircuit lowers && and || without a dedicated boolean
// opcode: JOFR already gives a conditional jump, so the right-hand side
// is only evaluated when it can change the result.
func (c *compiler) compileShortCircuit(b *ast.BinaryExpr) error {
	if err := c.compileExpr(b.Left); err != nil {
		return err
	}

	branch := c.emit(Instr{Op: JOFR})

	if b.Op == "&&" {
		if err := c.compileExpr(b.Right); err != nil {
			return err
		}

		done := c.emit(Instr{Op: GOTOR})
		c.instrs[branch].N = int64(len(c.instrs))
		c.emit(Instr{Op: LDCP, N: 0})
		c.instrs[done].N = int64(len(c.instrs))

		return nil
	}

	// ||: left was true, so short-circuit to true; JOFR only takes the
	// branch (to evaluate the right side) when left was false.
	c.emit(Instr{Op: LDCP, N: 1})
	done := c.emit(Instr{Op: GOTOR})
	c.instrs[branch].N = int64(len(c.instrs))

	if err := c.compileExpr(b.Right); err != nil {
		return err
	}

	c.instrs[done].N = int64(len(c.instrs))

	return nil
}

// lvalueBase strips DerefExpr layers down to the root identifier,
// reporting how many dereferences wrapped it — mirrors borrowck's
// helper of the same shape.
func lvalueBase(expr ast.Expr) (*ast.Ident, int) {
	depth := 0

	for {
		switch e := expr.(type) {
		case *ast.Ident:
			return e, depth
		case *ast.DerefExpr:
			expr = e.Expr
			depth++
		default:
			return nil, 0
		}
	}
}

// compileLValueAddr pushes the address of the storage location expr
// names: the slot itself for a bare identifier, or — for *^d(ident) —
// the place that many dereferences down, by reading ident's own value
// once and then following d-1 more address links.
func (c *compiler) compileLValueAddr(expr ast.Expr) error {
	ident, depth := lvalueBase(expr)
	if ident == nil {
		return &Error{Msg: "invalid l-value in borrow"}
	}

	hops, idx, ok := c.resolve(ident.Name)
	if !ok {
		return &Error{Msg: fmt.Sprintf("internal: unresolved identifier %s", ident.Name)}
	}

	if depth == 0 {
		c.emit(Instr{Op: GET, Frame: hops, Local: idx, Addr: true})
		return nil
	}

	c.emit(Instr{Op: GET, Frame: hops, Local: idx})
	for i := 0; i < depth-1; i++ {
		c.emit(Instr{Op: DEREF})
	}

	return nil
}

func (c *compiler) compileCall(call *ast.CallExpr) error {
	callee, ok := call.Callee.(*ast.Ident)
	if !ok {
		return &Error{Msg: "call target must be a function name"}
	}

	for _, arg := range call.Args {
		if err := c.compileExpr(arg); err != nil {
			return err
		}
	}

	if builtins.IsBuiltin(callee.Name) {
		c.emit(Instr{Op: CALL_BUILTIN, Name: callee.Name, N: int64(len(call.Args))})
		return nil
	}

	hops, idx, ok := c.resolve(callee.Name)
	if !ok {
		return &Error{Msg: fmt.Sprintf("internal: unresolved function %s", callee.Name)}
	}

	c.emit(Instr{Op: GET, Frame: hops, Local: idx})
	c.emit(Instr{Op: CALL})

	return nil
}

func (c *compiler) compileAssign(a *ast.AssignExpr) error {
	switch t := a.Target.(type) {
	case *ast.Ident:
		if err := c.compileExpr(a.Value); err != nil {
			return err
		}

		hops, idx, ok := c.resolve(t.Name)
		if !ok {
			return &Error{Msg: fmt.Sprintf("internal: unresolved identifier %s", t.Name)}
		}

		c.emit(Instr{Op: SET, Frame: hops, Local: idx})
	case *ast.DerefExpr:
		if err := c.compileLValueAddr(t); err != nil {
			return err
		}

		if err := c.compileExpr(a.Value); err != nil {
			return err
		}

		c.emit(Instr{Op: WRITE})
	default:
		return &Error{Msg: "invalid assignment target"}
	}

	c.emit(Instr{Op: LDCP, N: 0})

	return nil
}

func (c *compiler) compileIf(i *ast.IfExpr) error {
	if err := c.compileExpr(i.Cond); err != nil {
		return err
	}

	elseJump := c.emit(Instr{Op: JOFR})

	if err := c.compileExprBlock(i.Then); err != nil {
		return err
	}

	endJump := c.emit(Instr{Op: GOTOR})
	c.instrs[elseJump].N = int64(len(c.instrs))

	switch e := i.Else.(type) {
	case nil:
		c.emit(Instr{Op: LDCP, N: 0})
	case *ast.Block:
		if err := c.compileExprBlock(e); err != nil {
			return err
		}
	case *ast.IfExpr:
		if err := c.compileIf(e); err != nil {
			return err
		}
	default:
		return &Error{Msg: "invalid else clause"}
	}

	c.instrs[endJump].N = int64(len(c.instrs))

	return nil
}

// compileMatch binds the scrutinee into a single dedicated slot so every
// arm can re-read it, then lowers the arms in textual order as a cascade
// of equality checks; the first default arm reached always matches.
func (c *compiler) compileMatch(m *ast.MatchExpr) error {
	if err := c.compileExpr(m.Scrutinee); err != nil {
		return err
	}

	c.scope = &cscope{names: []string{"$scrutinee"}, parent: c.scope}
	defer func() { c.scope = c.scope.parent }()

	c.emit(Instr{Op: ENTER_SCOPE, N: 1})
	c.emit(Instr{Op: SET, Frame: 0, Local: 0})

	unsigned := c.isUnsigned(m.Scrutinee)

	var endJumps []int

	for _, arm := range m.Arms {
		switch {
		case arm.IntPat != nil:
			c.emit(Instr{Op: GET, Frame: 0, Local: 0})
			c.emit(Instr{Op: LDCP, N: *arm.IntPat})
			c.emit(Instr{Op: EQ, Unsigned: unsigned})

			next := c.emit(Instr{Op: JOFR})

			if err := c.compileExpr(arm.Body); err != nil {
				return err
			}

			endJumps = append(endJumps, c.emit(Instr{Op: GOTOR}))
			c.instrs[next].N = int64(len(c.instrs))
		case arm.BoolPat != nil:
			c.emit(Instr{Op: GET, Frame: 0, Local: 0})

			n := int64(0)
			if *arm.BoolPat {
				n = 1
			}

			c.emit(Instr{Op: LDCP, N: n})
			c.emit(Instr{Op: EQ})

			next := c.emit(Instr{Op: JOFR})

			if err := c.compileExpr(arm.Body); err != nil {
				return err
			}

			endJumps = append(endJumps, c.emit(Instr{Op: GOTOR}))
			c.instrs[next].N = int64(len(c.instrs))
		default:
			if arm.BindingName != "" && arm.BindingName != "_" {
				c.scope = &cscope{names: []string{arm.BindingName}, parent: c.scope}
				c.emit(Instr{Op: ENTER_SCOPE, N: 1})
				c.emit(Instr{Op: GET, Frame: 1, Local: 0})
				c.emit(Instr{Op: SET, Frame: 0, Local: 0})

				err := c.compileExpr(arm.Body)

				c.emit(Instr{Op: EXIT_SCOPE})
				c.scope = c.scope.parent

				if err != nil {
					return err
				}
			} else if err := c.compileExpr(arm.Body); err != nil {
				return err
			}

			// checkMatch only requires a default arm to exist somewhere,
			// not that it come last, so its body must skip over any
			// arms that follow it textually — same as every pattern
			// arm's own end-of-body jump, above.
			endJumps = append(endJumps, c.emit(Instr{Op: GOTOR}))
		}
	}

	for _, j := range endJumps {
		c.instrs[j].N = int64(len(c.instrs))
	}

	c.emit(Instr{Op: EXIT_SCOPE})

	return nil
}

func (c *compiler) compileLoop(l *ast.LoopExpr) error {
	c.emit(Instr{Op: ENTER_LOOP})
	loopStart := len(c.instrs)

	ll := &loopLabels{}
	c.loops = append(c.loops, ll)

	locals := blockLocalNames(l.Body)
	c.scope = &cscope{names: locals, parent: c.scope}
	ll.bodyScope = c.scope
	c.emit(Instr{Op: ENTER_SCOPE, N: int64(len(locals))})

	err := c.compileBlockBody(l.Body.Stmts)

	c.scope = c.scope.parent

	if err != nil {
		return err
	}

	c.emit(Instr{Op: POP})

	continueTarget := int64(len(c.instrs))
	for _, j := range ll.continueJumps {
		c.instrs[j].N = continueTarget
	}

	c.emit(Instr{Op: EXIT_SCOPE})
	c.emit(Instr{Op: GOTOR, N: int64(loopStart)})

	breakTarget := int64(len(c.instrs))
	for _, j := range ll.breakJumps {
		c.instrs[j].N = breakTarget
	}

	c.emit(Instr{Op: EXIT_LOOP})
	c.loops = c.loops[:len(c.loops)-1]
	c.emit(Instr{Op: LDCP, N: 0})

	return nil
}

func (c *compiler) compileBreak() error {
	if len(c.loops) == 0 {
		return &Error{Msg: "break outside of loop"}
	}

	ll := c.loops[len(c.loops)-1]
	idx := c.emit(Instr{Op: GOTOR, LoopJump: true})
	ll.breakJumps = append(ll.breakJumps, idx)
	c.emit(Instr{Op: LDCP, N: 0})

	return nil
}

// compileContinue jumps to the loop's own end-of-body EXIT_SCOPE rather
// than resetting env directly (as break does): unlike break's target,
// which sits past that EXIT_SCOPE, continue's target relies on it to
// free the current iteration's frame, so env must still be the loop
// body's own scope when it lands. Any scopes opened between the
// continue site and the loop body (an enclosing if arm, say) are closed
// explicitly first.
func (c *compiler) compileContinue() error {
	if len(c.loops) == 0 {
		return &Error{Msg: "continue outside of loop"}
	}

	ll := c.loops[len(c.loops)-1]

	for s := c.scope; s != ll.bodyScope; s = s.parent {
		if s == nil {
			return &Error{Msg: "internal: continue's scope chain does not reach its loop"}
		}

		c.emit(Instr{Op: EXIT_SCOPE})
	}

	idx := c.emit(Instr{Op: GOTOR})
	ll.continueJumps = append(ll.continueJumps, idx)
	c.emit(Instr{Op: LDCP, N: 0})

	return nil
}

func (c *compiler) compileReturn(r *ast.ReturnExpr) error {
	if r.Value != nil {
		if err := c.compileExpr(r.Value); err != nil {
			return err
		}
	} else {
		c.emit(Instr{Op: LDCP, N: 0})
	}

	c.emit(Instr{Op: RET})
	// Dead code follows (the RET above diverges), kept only so any
	// caller treating ReturnExpr as a value-producing expression sees a
	// balanced stack in static analysis.
	c.emit(Instr{Op: LDCP, N: 0})

	return nil
}
