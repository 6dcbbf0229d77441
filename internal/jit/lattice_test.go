package jit

import (
	"testing"

	"github.com/kaelstrand/vellum/internal/bytecode"
	"github.com/kaelstrand/vellum/internal/jit/types"
)

func TestInferTypeLiteralStringWins(t *testing.T) {
	lit := bytecode.StringValue("hi")
	kind, err := InferType(types.KindNumber, &lit)
	if err != nil {
		t.Fatalf("InferType: %v", err)
	}
	if kind != types.KindString {
		t.Fatalf("kind = %v, want KindString", kind)
	}
}

func TestInferTypeVoidIsUntyped(t *testing.T) {
	if _, err := InferType(types.KindVoid, nil); err != ErrUntypedOperand {
		t.Fatalf("err = %v, want ErrUntypedOperand", err)
	}
}

func TestInferTypeNumberAndBool(t *testing.T) {
	for _, k := range []types.Kind{types.KindNumber, types.KindBool} {
		got, err := InferType(k, nil)
		if err != nil || got != k {
			t.Fatalf("InferType(%v) = (%v, %v)", k, got, err)
		}
	}
}
