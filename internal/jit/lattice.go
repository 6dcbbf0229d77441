package jit

import (
	"github.com/kaelstrand/vellum/internal/bytecode"
	"github.com/kaelstrand/vellum/internal/jit/types"
)

// Operand is what the IR Builder keeps on its simulated operand stack: the
// SSA value produced so far, plus an optional literal when the operand
// still carries a source-level constant that can't be fully represented as
// a Number/Bool/String IR value (an object/function descriptor, an
// embedded-function id, or a string whose pointer is *also* the IR value).
//
// This mirrors §4.3: literal is populated only for constant-pool pushes.
type Operand struct {
	IR      types.Value
	Literal *bytecode.Value
}

// InferType applies the lattice rules of §4.3 to decide an operand's
// ValueType, consulting both the IR type recorded for its value and any
// literal riding along with it.
func InferType(irType types.Kind, lit *bytecode.Value) (types.Kind, error) {
	if lit != nil && lit.IsString() {
		return types.KindString, nil
	}
	switch irType {
	case types.KindBool:
		return types.KindBool, nil
	case types.KindNumber:
		return types.KindNumber, nil
	case types.KindString:
		return types.KindString, nil
	default:
		return types.KindVoid, ErrUntypedOperand
	}
}
