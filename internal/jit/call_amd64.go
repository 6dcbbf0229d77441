//go:build amd64

package jit

import "unsafe"

// callCompiledFunction is the single unified function-JIT calling
// convention trampoline (§4.4/§8): arguments always arrive in XMM0-2 as
// doubles (a compiled function with fewer than 3 params simply ignores
// the unused ones), and the result is always a raw 64-bit bit pattern in
// XMM0, decoded by the caller according to the callee's observed return
// Kind. Collapsing every arity into one stub avoids four separate
// assembly entry points for a cap as small as MaxFunctionParams.
//
// Declared here, implemented in call_amd64.s using the classic ABI0
// stack/FP-relative argument convention for hand-written assembly
// (grounded on wazero's jitcall(codeSegment, engine, memory uintptr)
// pattern — declared in Go, bodied in .s, bridging into raw native code).
func callCompiledFunction(entry uintptr, a0, a1, a2 float64) uint64

// callCompiledLoop invokes a compiled loop body. slots points at the
// contiguous []float64 the Executor marshalled from the interpreter's
// value stack (argSlots followed by localSlots, in Region Scanner order);
// the loop mutates it in place and returns the bytecode PC the
// interpreter should resume from (§4.5/§9's deopt-free loop-exit
// contract).
func callCompiledLoop(entry uintptr, slots unsafe.Pointer) int32
