package vm

import (
	"testing"

	"github.com/kaelstrand/vellum/internal/bytecode"
)

func TestCallFunctionFallsBackBeforeHot(t *testing.T) {
	buf := []byte{byte(bytecode.OpEnd)}
	v := NewVM(buf, bytecode.NewConstantTable(nil))

	if _, ranCompiled := v.CallFunction(0, []bytecode.Value{bytecode.NumberValue(1)}); ranCompiled {
		t.Fatalf("should not run compiled before the hotness threshold")
	}
}

func TestObserveInterpretedReturnDoesNotPanicOnUnknownPC(t *testing.T) {
	v := NewVM(nil, bytecode.NewConstantTable(nil))
	v.ObserveInterpretedReturn(99, bytecode.NumberValue(1)) // no-op: no record for pc 99 yet
}

func TestTakeBackEdgeColdBeforeThreshold(t *testing.T) {
	v := NewVM(nil, bytecode.NewConstantTable(nil))
	if _, ranCompiled := v.TakeBackEdge(0, 0, 0, nil); ranCompiled {
		t.Fatalf("should not run compiled before the hotness threshold")
	}
}
