//go:build !amd64

package jit

import "unsafe"

// On platforms without a code generator (codegen_unsupported.go) these are
// never actually invoked — CompileFunction/CompileLoop never produce a
// CompiledEntry/CompiledFn to call them with — but the Executor still
// references them unconditionally, so a stub keeps the package building.
func callCompiledFunction(entry uintptr, a0, a1, a2 float64) uint64 {
	panic("jit: callCompiledFunction invoked on an unsupported architecture")
}

func callCompiledLoop(entry uintptr, slots unsafe.Pointer) int32 {
	panic("jit: callCompiledLoop invoked on an unsupported architecture")
}
