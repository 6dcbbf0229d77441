package jit

import (
	"testing"

	"github.com/kaelstrand/vellum/internal/bytecode"
	"github.com/kaelstrand/vellum/internal/jit/types"
)

// buildSumLoop encodes a loop body over local slot 0 (accumulator) and
// local slot 1 (loop counter), equivalent to: while (i < n) { sum = sum +
// i; i = i + 1; }. begin/end bound just the body (the header test and
// back-edge jump are modeled by the caller in this minimal harness).
func buildSumLoop() (buf []byte, begin, end int) {
	var e emitter
	begin = 0
	e.getLocal(0) // sum
	e.getLocal(1) // i
	e.add()
	e.setLocal(0)
	e.getLocal(1)
	e.pushInt8(1)
	e.add()
	e.setLocal(1)
	end = len(e.buf)
	e.end()
	return e.buf, begin, end
}

func TestCompileLoopResumePCEqualsEnd(t *testing.T) {
	buf, begin, end := buildSumLoop()

	fn, slots, err := CompileLoop(buf, bytecode.NewConstantTable(nil), begin, end)
	if err != nil {
		t.Fatalf("CompileLoop: %v", err)
	}
	if fn.ReturnType != types.KindVoid {
		t.Fatalf("loop ReturnType = %v, want KindVoid", fn.ReturnType)
	}
	if len(slots.LocalSlots) != 2 {
		t.Fatalf("LocalSlots = %v, want 2 entries (sum, i)", slots.LocalSlots)
	}

	for _, blk := range fn.Blocks {
		last := blk.Instrs[len(blk.Instrs)-1]
		if last.Op != types.OpRetPC {
			t.Fatalf("block %d terminator = %v, want OpRetPC", blk.ID, last.Op)
		}
		if int(last.Imm) != end && int(last.Imm) != blk.PC {
			t.Fatalf("resume PC %v is neither the loop end %d nor the block's own PC", last.Imm, end)
		}
	}
}

func TestCompileLoopRejectsUnregisteredSlot(t *testing.T) {
	// A loop body referencing a slot ScanSlots never saw: the scanned
	// region [begin, end) covers only the PUSH_INT8, but emission runs on
	// to END and reaches a GET_LOCAL whose slot was never registered.
	var e emitter
	e.pushInt8(1)
	end := len(e.buf)
	e.getLocal(0)
	e.end()
	_, _, err := CompileLoop(e.buf, bytecode.NewConstantTable(nil), 0, end)
	if err != ErrUnsupportedSlot {
		t.Fatalf("err = %v, want ErrUnsupportedSlot", err)
	}
}
