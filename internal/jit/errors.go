package jit

import "errors"

// Error taxonomy, internal to the JIT and never surfaced to the script
// author (§7). Any of these returned during compilation sets the
// compiling record's cannot_jit sticky flag; the interpreter always has a
// correct fallback.
var (
	ErrMalformedBytecode    = errors.New("jit: malformed bytecode")
	ErrUnsupportedOpcode    = errors.New("jit: unsupported opcode in region")
	ErrUnsupportedSlot      = errors.New("jit: reference to an unregistered slot")
	ErrUnsupportedMarshalling = errors.New("jit: value cannot cross the native boundary")
	ErrUntypedOperand      = errors.New("jit: operand has no inferrable type")
	ErrArityExceeded       = errors.New("jit: argument count exceeds the marshalling shim's cap")
	ErrUncompiledCallee    = errors.New("jit: callee has not itself been compiled")
)

// MaxFunctionParams is the platform-dependent cap referenced by §4.4/§8:
// the marshalling shim only has call stubs for 0–3 double arguments.
const MaxFunctionParams = 3
