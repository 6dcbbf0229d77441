//go:build amd64

package jit

import (
	"testing"

	"github.com/kaelstrand/vellum/internal/bytecode"
)

// TestFunctionCompilesOnThresholdCall exercises §8's first testable
// property end to end: f(x) = x + 1 compiles on exactly the call that
// crosses FunctionHotThreshold, and runs compiled thereafter.
func TestFunctionCompilesOnThresholdCall(t *testing.T) {
	buf, consts, entryPC := buildIncrementFunction()
	ex := NewExecutor(buf, consts)

	args := []bytecode.Value{bytecode.NumberValue(41)}

	for i := 0; i < FunctionHotThreshold; i++ {
		if callable, ok := ex.MaybeCompileFunction(entryPC, 1); ok {
			if i != FunctionHotThreshold-1 {
				t.Fatalf("call %d: compiled too early", i+1)
			}
			result, err := ex.RunCompiledFunction(callable, args)
			if err != nil {
				t.Fatalf("RunCompiledFunction: %v", err)
			}
			if result.Type != bytecode.ValNumber || result.Num != 42 {
				t.Fatalf("result = %+v, want Number(42)", result)
			}
			return
		}
	}
	t.Fatalf("function never compiled within %d calls", FunctionHotThreshold)
}

// TestComparisonFunctionReturnsBool exercises the second property: g(x) =
// x < 2 compiles to a Bool-returning native function.
func TestComparisonFunctionReturnsBool(t *testing.T) {
	var e emitter
	e.createContext(0)
	e.getArgLocal(0)
	e.pushInt8(2)
	e.lt()
	e.ret()
	e.end()

	ex := NewExecutor(e.buf, bytecode.NewConstantTable(nil))
	ex.ObserveReturn(0, bytecode.BoolValue(false)) // interpreter's first observation

	var callable *Callable
	var ok bool
	for i := 0; i < FunctionHotThreshold; i++ {
		callable, ok = ex.MaybeCompileFunction(0, 1)
		if ok {
			break
		}
	}
	if !ok {
		t.Fatalf("function never compiled")
	}
	result, err := ex.RunCompiledFunction(callable, []bytecode.Value{bytecode.NumberValue(5)})
	if err != nil {
		t.Fatalf("RunCompiledFunction: %v", err)
	}
	if result.Type != bytecode.ValBool {
		t.Fatalf("result.Type = %v, want ValBool", result.Type)
	}
}
