package jit

import (
	"github.com/kaelstrand/vellum/internal/bytecode"
	"github.com/kaelstrand/vellum/internal/jit/types"
)

// CompileFunction implements §4.4: the function-JIT entry point. entryPC
// points at the function's CREATE_CONTEXT instruction; argc is the
// caller-observed argument count at the call site that tripped the
// hotness threshold.
//
// The leading CREATE_CONTEXT is consumed here (not by the Builder) so the
// Builder's lowering loop can treat [0,argc) purely as pre-bound argument
// slots and start emitting from the first real instruction.
func CompileFunction(buf []byte, consts *bytecode.ConstantTable, entryPC int, argc int, resolver CalleeResolver) (*types.Function, error) {
	if argc > MaxFunctionParams {
		return nil, ErrArityExceeded
	}

	r := bytecode.NewReader(buf, entryPC)
	opByte, err := r.ReadU8()
	if err != nil || bytecode.OpCode(opByte) != bytecode.OpCreateContext {
		return nil, ErrMalformedBytecode
	}
	if _, err := r.ReadU32(); err != nil { // num_local_var, unused: locals are lazily allocated
		return nil, ErrMalformedBytecode
	}
	bodyStart := r.Cursor

	labels, err := ScanLabels(buf, entryPC, len(buf), true)
	if err != nil {
		return nil, err
	}

	b := NewBuilder(buf, consts, true, entryPC, resolver, labels)
	for i := 0; i < argc; i++ {
		b.env.register(i, true)
		dest := b.newValue()
		b.emit(&types.Instr{Op: types.OpLoadSlot, Dest: dest, Type: types.KindNumber, Slot: i, IsArg: true})
		b.env.set(i, true, dest)
		b.fn.ArgSlots = append(b.fn.ArgSlots, i)
	}

	fn, err := b.Build(bodyStart)
	if err != nil {
		return nil, err
	}

	// Safety net: any block left unterminated (fell off the end of the
	// region without an explicit RETURN) returns 0 as a Number, matching
	// the interpreter's implicit "return undefined" coerced into the
	// JIT's narrower lattice.
	for _, blk := range fn.Blocks {
		if !blk.Terminated() && len(blk.Instrs) == 0 && blk != fn.Entry && !blk.Reached {
			continue // unreached synthetic block; Verify will reject if still dangling
		}
		if !blk.Terminated() {
			zero := types.Value(0)
			blk.Instrs = append(blk.Instrs, &types.Instr{Op: types.OpConst, Dest: b.newValue(), Type: types.KindNumber, Imm: 0})
			zero = blk.Instrs[len(blk.Instrs)-1].Dest
			blk.Instrs = append(blk.Instrs, &types.Instr{Op: types.OpRet, Type: types.KindNumber, Args: []types.Value{zero}})
		}
	}
	if fn.ReturnType == types.KindVoid {
		fn.ReturnType = types.KindNumber
	}

	for id := range b.env.registered {
		if !id.isArg {
			fn.LocalSlots = append(fn.LocalSlots, id.id)
		}
	}

	if err := Verify(fn); err != nil {
		return nil, err
	}
	Optimize(fn)
	return fn, nil
}
