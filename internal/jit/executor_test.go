package jit

import (
	"testing"

	"github.com/kaelstrand/vellum/internal/bytecode"
)

func TestMaybeCompileFunctionColdBelowThreshold(t *testing.T) {
	buf, consts, entryPC := buildIncrementFunction()
	ex := NewExecutor(buf, consts)

	for i := 0; i < FunctionHotThreshold-1; i++ {
		if _, ok := ex.MaybeCompileFunction(entryPC, 1); ok {
			t.Fatalf("call %d: unexpectedly hot before threshold", i+1)
		}
	}
	rec := ex.funcs[entryPC]
	if rec.CallCount != FunctionHotThreshold-1 {
		t.Fatalf("CallCount = %d, want %d", rec.CallCount, FunctionHotThreshold-1)
	}
}

func TestObserveReturnInvalidatesCompiledEntryOnRefinement(t *testing.T) {
	ex := NewExecutor(nil, bytecode.NewConstantTable(nil))
	const pc = 7
	ex.funcs[pc] = &FunctionRecord{EntryPC: pc, CompiledEntry: 0xdead, Code: []byte{1}}

	ex.ObserveReturn(pc, bytecode.NumberValue(1))
	if ex.funcs[pc].CompiledEntry == 0 {
		t.Fatalf("observing the default Number kind should not invalidate an existing compile")
	}

	ex.ObserveReturn(pc, bytecode.BoolValue(true))
	rec := ex.funcs[pc]
	if rec.CompiledEntry != 0 || rec.Code != nil || rec.CannotJIT {
		t.Fatalf("refining return kind should clear the stale compile, got %+v", rec)
	}
}

func TestRunCompiledFunctionRejectsNonNumberArgs(t *testing.T) {
	ex := NewExecutor(nil, bytecode.NewConstantTable(nil))
	c := &Callable{entryPC: 1}
	if _, err := ex.RunCompiledFunction(c, []bytecode.Value{bytecode.BoolValue(true)}); err != ErrUnsupportedMarshalling {
		t.Fatalf("err = %v, want ErrUnsupportedMarshalling", err)
	}
}

func TestResolveCalleeRequiresPriorCompile(t *testing.T) {
	ex := NewExecutor(nil, bytecode.NewConstantTable(nil))
	if _, _, ok := ex.ResolveCallee(42); ok {
		t.Fatalf("ResolveCallee should fail for a function never compiled")
	}
	ex.funcs[42] = &FunctionRecord{EntryPC: 42, CompiledEntry: 0x1000}
	_, addr, ok := ex.ResolveCallee(42)
	if !ok || addr != 0x1000 {
		t.Fatalf("ResolveCallee(42) = (_, %v, %v), want (_, 0x1000, true)", addr, ok)
	}
}
