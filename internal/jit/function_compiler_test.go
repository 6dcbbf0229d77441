package jit

import (
	"testing"

	"github.com/kaelstrand/vellum/internal/bytecode"
	"github.com/kaelstrand/vellum/internal/jit/types"
)

// buildIncrementFunction encodes: function(x) { return x + 1; }
func buildIncrementFunction() ([]byte, *bytecode.ConstantTable, int) {
	var e emitter
	entryPC := 0
	e.createContext(0)
	e.getArgLocal(0)
	e.pushInt8(1)
	e.add()
	e.ret()
	e.end()
	return e.buf, bytecode.NewConstantTable(nil), entryPC
}

func TestCompileFunctionIncrement(t *testing.T) {
	buf, consts, entryPC := buildIncrementFunction()

	fn, err := CompileFunction(buf, consts, entryPC, 1, nil)
	if err != nil {
		t.Fatalf("CompileFunction: %v", err)
	}
	if fn.ReturnType != types.KindNumber {
		t.Fatalf("ReturnType = %v, want KindNumber", fn.ReturnType)
	}
	if len(fn.ArgSlots) != 1 || fn.ArgSlots[0] != 0 {
		t.Fatalf("ArgSlots = %v, want [0]", fn.ArgSlots)
	}

	foundRet := false
	for _, blk := range fn.Blocks {
		for _, in := range blk.Instrs {
			if in.Op == types.OpRet {
				foundRet = true
			}
		}
	}
	if !foundRet {
		t.Fatalf("expected an OpRet in the compiled IR")
	}
}

func TestCompileFunctionRejectsTooManyArgs(t *testing.T) {
	buf, consts, entryPC := buildIncrementFunction()
	if _, err := CompileFunction(buf, consts, entryPC, MaxFunctionParams+1, nil); err != ErrArityExceeded {
		t.Fatalf("err = %v, want ErrArityExceeded", err)
	}
}

// TestCompileFunctionRejectsStringArithmetic encodes a function whose body would need
// string-valued ADD, which the JIT never supports (§1 Non-goals): a
// constant string pushed then added to a numeric argument.
func TestCompileFunctionRejectsStringArithmetic(t *testing.T) {
	consts := bytecode.NewConstantTable([]bytecode.Value{bytecode.StringValue("x")})
	var e emitter
	e.createContext(0)
	e.pushConst(0)
	e.getArgLocal(0)
	e.add()
	e.ret()
	e.end()

	if _, err := CompileFunction(e.buf, consts, 0, 1, nil); err == nil {
		t.Fatalf("expected string arithmetic to be rejected")
	}
}

func TestCompileFunctionComparisonReturnsBool(t *testing.T) {
	var e emitter
	e.createContext(0)
	e.getArgLocal(0)
	e.pushInt8(2)
	e.lt()
	e.ret()
	e.end()

	fn, err := CompileFunction(e.buf, bytecode.NewConstantTable(nil), 0, 1, nil)
	if err != nil {
		t.Fatalf("CompileFunction: %v", err)
	}
	if fn.ReturnType != types.KindBool {
		t.Fatalf("ReturnType = %v, want KindBool", fn.ReturnType)
	}
}
