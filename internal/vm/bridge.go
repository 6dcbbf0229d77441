// Package vm models the minimal interpreter-side surface that calls into
// internal/jit: a value stack with bp (base pointer)/lp (locals pointer)
// style frames, and the two call/back-edge sites where the interpreter
// asks the Executor whether a region is hot enough to compile. The full
// bytecode interpreter loop (lexer, parser, AST, the rest of the opcode
// dispatch) is an external collaborator outside this module's scope —
// this package only models just enough of it to exercise and test the
// JIT subsystem end to end.
package vm

import (
	"github.com/kaelstrand/vellum/internal/bytecode"
	"github.com/kaelstrand/vellum/internal/jit"
)

// Frame is one interpreter call frame: bp is the base of this frame's
// argument slots within Stack, lp the base of its local slots.
type Frame struct {
	EntryPC int
	bp, lp  int
}

// VM is a deliberately small stand-in for the interpreter: it holds the
// buffer, constants, value stack and frames, and exposes the call and
// back-edge sites that drive the JIT's hotness policy and marshalling
// contract under test. It has no opcode dispatch of its own.
type VM struct {
	Buf      []byte
	Consts   *bytecode.ConstantTable
	Executor *jit.Executor

	Stack  []bytecode.Value
	Frames []*Frame
}

// NewVM constructs an interpreter bound to one bytecode buffer/constant
// table, with its own JIT Executor.
func NewVM(buf []byte, consts *bytecode.ConstantTable) *VM {
	return &VM{
		Buf:      buf,
		Consts:   consts,
		Executor: jit.NewExecutor(buf, consts),
	}
}

// CallFunction is the interpreter's call-site integration point (§6's
// "call site... notifies the hotness policy"): it asks the Executor
// whether entryPC is hot enough to run compiled, falling back to the
// (unmodeled, external) bytecode interpreter loop otherwise.
//
// compiledResult and ranCompiled distinguish "ran compiled code" from
// "caller must fall back to interpretation" — the VM always has a
// correct answer either way.
func (v *VM) CallFunction(entryPC int, args []bytecode.Value) (result bytecode.Value, ranCompiled bool) {
	callable, ok := v.Executor.MaybeCompileFunction(entryPC, len(args))
	if !ok {
		return bytecode.Value{}, false
	}
	res, err := v.Executor.RunCompiledFunction(callable, args)
	if err != nil {
		return bytecode.Value{}, false
	}
	return res, true
}

// ObserveInterpretedReturn is called by the (external) interpreter loop
// whenever it runs entryPC the slow way, feeding the JIT's return-type
// table the observed Kind (§6's observe_return).
func (v *VM) ObserveInterpretedReturn(entryPC int, ret bytecode.Value) {
	v.Executor.ObserveReturn(entryPC, ret)
}

// TakeBackEdge is the interpreter's loop back-edge integration point: each
// time control reaches a loop's header the interpreter calls this with a
// current snapshot of the loop's addressable slots (in the order
// jit.CompileLoop's Region Scanner assigned them, obtainable in advance
// from a LoopRecord once compiled, or reconstructed the first time from
// the interpreter's own slot table). On success the loop body has already
// executed to completion and the interpreter must resume at the returned
// PC; on failure it falls back to interpreting the loop body itself.
func (v *VM) TakeBackEdge(headerPC, bodyBegin, bodyEnd int, slots []float64) (resumePC int, ranCompiled bool) {
	return v.Executor.MaybeCompileLoop(headerPC, bodyBegin, bodyEnd, slots)
}
