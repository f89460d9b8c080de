// Package vm implements spec.md §4.4: a stack machine over the
// compiler's flat bytecode, with an operand stack, a call stack of
// {saved_pc, saved_env} frames, a chain of env nodes each backed by a
// heap-allocated frame, and a single growable heap with no garbage
// collector (an explicit non-goal — a scope's frame is freed only by its
// EXIT_SCOPE, and Box::new blocks are never freed). Grounded on
// yarlson/yarlang's runtime evaluation loop, restructured from a
// tree-walking Eval into a fetch-decode-execute loop over
// internal/compiler's Instr stream.
package vm

import (
	"fmt"

	"github.com/ribbc/ribbon/internal/builtins"
	"github.com/ribbc/ribbon/internal/compiler"
	"github.com/ribbc/ribbon/internal/value"
)

// RuntimeError is a failure the program itself caused at run time
// (division by zero, use of a freed heap block) — distinct from
// InternalError, which indicates a bug in the compiler/VM itself.
type RuntimeError struct{ Msg string }

func (e *RuntimeError) Error() string { return e.Msg }

// InternalError indicates the VM reached a state that well-formed
// bytecode should never produce (a malformed stack, a bad opcode).
type InternalError struct{ Msg string }

func (e *InternalError) Error() string { return "internal error: " + e.Msg }

type envNode struct {
	parent    *envNode
	frameAddr uint32
}

type callFrame struct {
	savedPC  int
	savedEnv *envNode
}

type loopCtx struct {
	savedEnv *envNode
}

// VM executes one compiled Program.
type VM struct {
	prog *compiler.Program
	heap *value.Heap

	stack     []value.Value
	callStack []callFrame
	loopStack []loopCtx
	env       *envNode
	pc        int

	// globalEnv is the env node for the outermost scope, captured the
	// first time ENTER_SCOPE runs. Every function in this subset is
	// global (no closures), so a function's definition env is always
	// globalEnv, not whatever env happened to be live at its call site;
	// CALL restores it before jumping so the callee's own ENTER_SCOPE
	// links onto its lexical parent instead of the caller's frame.
	globalEnv *envNode

	sink builtins.Sink
}

// New creates a VM ready to Run prog, sending builtin output to sink.
func New(prog *compiler.Program, sink builtins.Sink) *VM {
	return &VM{prog: prog, heap: value.NewHeap(), sink: sink}
}

// Run executes the program from its first instruction until DONE.
func (vm *VM) Run() error {
	for {
		if vm.pc < 0 || vm.pc >= len(vm.prog.Instrs) {
			return &InternalError{Msg: fmt.Sprintf("program counter %d out of bounds", vm.pc)}
		}

		instr := vm.prog.Instrs[vm.pc]
		vm.pc++

		done, err := vm.step(instr)
		if err != nil {
			return err
		}

		if done {
			return nil
		}
	}
}

func (vm *VM) step(instr compiler.Instr) (bool, error) {
	switch instr.Op {
	case compiler.POP:
		if _, err := vm.pop(); err != nil {
			return false, err
		}
	case compiler.LDCP:
		vm.push(value.Value{Tag: value.Primitive, Payload: uint32(instr.N)})
	case compiler.ENTER_SCOPE:
		addr := vm.heap.Allocate(uint32(instr.N))
		vm.env = &envNode{parent: vm.env, frameAddr: addr}

		if vm.globalEnv == nil {
			vm.globalEnv = vm.env
		}
	case compiler.EXIT_SCOPE:
		if vm.env == nil {
			return false, &InternalError{Msg: "EXIT_SCOPE with no open scope"}
		}

		if err := vm.heap.Free(vm.env.frameAddr); err != nil {
			return false, &InternalError{Msg: err.Error()}
		}

		vm.env = vm.env.parent
	case compiler.ENTER_LOOP:
		vm.loopStack = append(vm.loopStack, loopCtx{savedEnv: vm.env})
	case compiler.EXIT_LOOP:
		if len(vm.loopStack) == 0 {
			return false, &InternalError{Msg: "EXIT_LOOP with no open loop"}
		}

		vm.loopStack = vm.loopStack[:len(vm.loopStack)-1]
	case compiler.SET:
		v, err := vm.pop()
		if err != nil {
			return false, err
		}

		e, err := vm.envAt(instr.Frame)
		if err != nil {
			return false, err
		}

		if err := vm.heap.Set(e.frameAddr+uint32(instr.Local), v); err != nil {
			return false, &RuntimeError{Msg: err.Error()}
		}
	case compiler.GET:
		e, err := vm.envAt(instr.Frame)
		if err != nil {
			return false, err
		}

		addr := e.frameAddr + uint32(instr.Local)

		if instr.Addr {
			vm.push(value.FromAddress(addr))
			break
		}

		v, err := vm.heap.Get(addr)
		if err != nil {
			return false, &RuntimeError{Msg: err.Error()}
		}

		if v.IsInvalid() {
			return false, &InternalError{Msg: fmt.Sprintf("read of uninitialized slot %d", addr)}
		}

		vm.push(v)
	case compiler.DEREF:
		v, err := vm.pop()
		if err != nil {
			return false, err
		}

		if !v.IsAddress() {
			return false, &InternalError{Msg: "DEREF of a non-address value"}
		}

		out, err := vm.heap.Get(v.AsAddress())
		if err != nil {
			return false, &RuntimeError{Msg: err.Error()}
		}

		if out.IsInvalid() {
			return false, &InternalError{Msg: fmt.Sprintf("read of uninitialized slot %d", v.AsAddress())}
		}

		vm.push(out)
	case compiler.WRITE:
		val, err := vm.pop()
		if err != nil {
			return false, err
		}

		addr, err := vm.pop()
		if err != nil {
			return false, err
		}

		if !addr.IsAddress() {
			return false, &InternalError{Msg: "WRITE through a non-address value"}
		}

		if err := vm.heap.Set(addr.AsAddress(), val); err != nil {
			return false, &RuntimeError{Msg: err.Error()}
		}
	case compiler.ALLOC:
		val, err := vm.pop()
		if err != nil {
			return false, err
		}

		addr := vm.heap.Allocate(uint32(instr.N))
		if err := vm.heap.Set(addr, val); err != nil {
			return false, &InternalError{Msg: err.Error()}
		}

		vm.push(value.FromAddress(addr))
	case compiler.CALL:
		target, err := vm.pop()
		if err != nil {
			return false, err
		}

		vm.callStack = append(vm.callStack, callFrame{savedPC: vm.pc, savedEnv: vm.env})
		vm.env = vm.globalEnv
		vm.pc = int(target.Payload)
	case compiler.CALL_BUILTIN:
		entry, ok := builtins.Lookup(instr.Name)
		if !ok {
			return false, &InternalError{Msg: fmt.Sprintf("unknown builtin %s", instr.Name)}
		}

		args := make([]value.Value, entry.Arity)

		for i := entry.Arity - 1; i >= 0; i-- {
			v, err := vm.pop()
			if err != nil {
				return false, err
			}

			args[i] = v
		}

		vm.push(entry.Handler(vm.sink, args))
	case compiler.RET:
		v, err := vm.pop()
		if err != nil {
			return false, err
		}

		if len(vm.callStack) == 0 {
			return false, &InternalError{Msg: "RET with no open call frame"}
		}

		frame := vm.callStack[len(vm.callStack)-1]
		vm.callStack = vm.callStack[:len(vm.callStack)-1]
		vm.env = frame.savedEnv
		vm.pc = frame.savedPC
		vm.push(v)
	case compiler.ADD, compiler.SUB, compiler.MUL, compiler.DIV, compiler.MOD:
		return false, vm.arith(instr)
	case compiler.EQ, compiler.NEQ, compiler.LT, compiler.GT, compiler.LE, compiler.GE:
		return false, vm.compare(instr)
	case compiler.JOFR:
		v, err := vm.pop()
		if err != nil {
			return false, err
		}

		if v.Payload == 0 {
			vm.pc = int(instr.N)
		}
	case compiler.GOTOR:
		if instr.LoopJump {
			if len(vm.loopStack) == 0 {
				return false, &InternalError{Msg: "loop jump with no open loop"}
			}

			vm.env = vm.loopStack[len(vm.loopStack)-1].savedEnv
		}

		vm.pc = int(instr.N)
	case compiler.FREE:
		// This subset never frees an individual slot apart from its
		// enclosing scope's frame (EXIT_SCOPE releases them together),
		// so FREE is a no-op kept only for opcode-table completeness.
	case compiler.DONE:
		return true, nil
	default:
		return false, &InternalError{Msg: fmt.Sprintf("unknown opcode %d", instr.Op)}
	}

	return false, nil
}

func (vm *VM) push(v value.Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() (value.Value, error) {
	if len(vm.stack) == 0 {
		return value.Value{}, &InternalError{Msg: "pop from empty operand stack"}
	}

	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]

	return v, nil
}

func (vm *VM) envAt(hops int) (*envNode, error) {
	e := vm.env
	for i := 0; i < hops; i++ {
		if e == nil {
			return nil, &InternalError{Msg: "frame hop past the outermost scope"}
		}

		e = e.parent
	}

	if e == nil {
		return nil, &InternalError{Msg: "frame hop past the outermost scope"}
	}

	return e, nil
}

func (vm *VM) arith(instr compiler.Instr) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}

	a, err := vm.pop()
	if err != nil {
		return err
	}

	if instr.Unsigned {
		x, y := a.AsU32(), b.AsU32()

		var r uint32

		switch instr.Op {
		case compiler.ADD:
			r = x + y
		case compiler.SUB:
			r = x - y
		case compiler.MUL:
			r = x * y
		case compiler.DIV:
			if y == 0 {
				return &RuntimeError{Msg: "division by zero"}
			}

			r = x / y
		case compiler.MOD:
			if y == 0 {
				return &RuntimeError{Msg: "division by zero"}
			}

			r = x % y
		}

		vm.push(value.FromU32(r))

		return nil
	}

	x, y := a.AsI32(), b.AsI32()

	var r int32

	switch instr.Op {
	case compiler.ADD:
		r = x + y
	case compiler.SUB:
		r = x - y
	case compiler.MUL:
		r = x * y
	case compiler.DIV:
		if y == 0 {
			return &RuntimeError{Msg: "division by zero"}
		}

		r = floorDiv(x, y)
	case compiler.MOD:
		if y == 0 {
			return &RuntimeError{Msg: "division by zero"}
		}

		r = floorMod(x, y)
	}

	vm.push(value.FromI32(r))

	return nil
}

// floorDiv and floorMod give i32 DIV/MOD floor semantics (spec.md
// §4.4): Go's / and % truncate toward zero, which disagrees with floor
// division whenever the operands' signs differ and the division isn't
// exact.
func floorDiv(x, y int32) int32 {
	q := x / y
	if (x%y != 0) && ((x < 0) != (y < 0)) {
		q--
	}

	return q
}

func floorMod(x, y int32) int32 {
	r := x % y
	if r != 0 && (r < 0) != (y < 0) {
		r += y
	}

	return r
}

func (vm *VM) compare(instr compiler.Instr) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}

	a, err := vm.pop()
	if err != nil {
		return err
	}

	var result bool

	switch instr.Op {
	case compiler.EQ:
		result = a.Equal(b)
	case compiler.NEQ:
		result = !a.Equal(b)
	case compiler.LT, compiler.GT, compiler.LE, compiler.GE:
		if instr.Unsigned {
			x, y := a.AsU32(), b.AsU32()
			result = orderedU32(instr.Op, x, y)
		} else {
			x, y := a.AsI32(), b.AsI32()
			result = orderedI32(instr.Op, x, y)
		}
	}

	vm.push(value.FromBool(result))

	return nil
}

func orderedI32(op compiler.Op, x, y int32) bool {
	switch op {
	case compiler.LT:
		return x < y
	case compiler.GT:
		return x > y
	case compiler.LE:
		return x <= y
	default:
		return x >= y
	}
}

func orderedU32(op compiler.Op, x, y uint32) bool {
	switch op {
	case compiler.LT:
		return x < y
	case compiler.GT:
		return x > y
	case compiler.LE:
		return x <= y
	default:
		return x >= y
	}
}
