// executor.go — the JIT's four external entry points (§6): maybe_compile_function,
// maybe_compile_loop, run_compiled_function and observe_return. The Executor
// owns the per-PC hotness records, the return-type table, the resolved
// helper address table, and every installed code region's lifetime.
package jit

import (
	"reflect"
	"unsafe"

	"github.com/kaelstrand/vellum/internal/bytecode"
	"github.com/kaelstrand/vellum/internal/jit/types"
)

// Executor is the JIT's runtime-facing front door; the interpreter holds
// exactly one per running script.
type Executor struct {
	buf    []byte
	consts *bytecode.ConstantTable

	funcs map[int]*FunctionRecord
	loops map[int]*LoopRecord

	returnTypes *ReturnTypeTable
	helperAddrs map[string]uintptr
	codegen     types.CodeGenerator

	pinned [][]byte // keeps mmap'd code regions reachable for as long as the Executor lives
}

// NewExecutor constructs an Executor over one function/loop's shared
// bytecode buffer and constant table.
func NewExecutor(buf []byte, consts *bytecode.ConstantTable) *Executor {
	return &Executor{
		buf:         buf,
		consts:      consts,
		funcs:       make(map[int]*FunctionRecord),
		loops:       make(map[int]*LoopRecord),
		returnTypes: NewReturnTypeTable(),
		helperAddrs: builtinHelperAddrs(),
		codegen:     ActiveCodeGenerator,
	}
}

func builtinHelperAddrs() map[string]uintptr {
	return map[string]uintptr{
		HelperConsoleLogF64:      funcAddr(ConsoleLogF64Helper),
		HelperConsoleLogString:   funcAddr(ConsoleLogStringHelper),
		HelperConsoleLogNewline:  funcAddr(ConsoleLogNewlineHelper),
		HelperProcessStdoutWrite: funcAddr(ProcessStdoutWriteHelper),
		HelperMathFloor:          funcAddr(MathFloorHelper),
		HelperMathPow:            funcAddr(MathPowHelper),
		HelperMathRandom:         funcAddr(MathRandomHelper),
	}
}

func funcAddr(fn interface{}) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// Callable identifies one successfully compiled function, opaque to the
// interpreter beyond passing it back into RunCompiledFunction.
type Callable struct {
	entryPC int
	entry   uintptr
}

// MaybeCompileFunction is the maybe_compile_function entry point (§6). It
// bumps the call counter, and once FunctionHotThreshold is crossed,
// attempts exactly one compile — success installs the code and returns a
// Callable; failure sets the record's sticky cannot_jit and the
// interpreter's normal path continues uninterrupted.
func (e *Executor) MaybeCompileFunction(entryPC, argc int) (*Callable, bool) {
	rec, ok := e.funcs[entryPC]
	if !ok {
		rec = &FunctionRecord{EntryPC: entryPC}
		e.funcs[entryPC] = rec
	}
	rec.CallCount++

	switch FunctionHotness(rec) {
	case StateCompiled:
		return &Callable{entryPC: entryPC, entry: rec.CompiledEntry}, true
	case StateBlocked, StateCold:
		return nil, false
	}

	fn, err := CompileFunction(e.buf, e.consts, entryPC, argc, e)
	if err != nil {
		trace.Debugf("function %d: cannot_jit: %v", entryPC, err)
		rec.CannotJIT = true
		return nil, false
	}

	code, _, selfOffsets, err := e.codegen.Generate(fn, e.helperAddrs)
	if err != nil {
		trace.Debugf("function %d: codegen failed: %v", entryPC, err)
		rec.CannotJIT = true
		return nil, false
	}

	addr, mem, err := installCode(code)
	if err != nil {
		trace.Debugf("function %d: install failed: %v", entryPC, err)
		rec.CannotJIT = true
		return nil, false
	}

	// Self-recursive call sites embedded a zero placeholder; now that the
	// function's own address is known, patch each one in place (§9).
	for _, off := range selfOffsets {
		patchAddr(mem, off, addr)
	}

	rec.IRHandle = fn
	rec.CompiledEntry = addr
	rec.Code = mem
	e.pinned = append(e.pinned, mem)

	return &Callable{entryPC: entryPC, entry: addr}, true
}

// patchAddr overwrites the 8-byte little-endian immediate at byte offset
// off within mem with addr. It is a best-effort patch: the exact encoding
// offset golang-asm assigns to a MOVQ $imm64 instruction's immediate field
// is implementation-specific, so callers treat self-recursive compiled
// functions as a best-effort optimization, never a correctness
// requirement the interpreter depends on.
func patchAddr(mem []byte, off int, addr uintptr) {
	if off < 0 || off+8 > len(mem) {
		return
	}
	v := uint64(addr)
	for i := 0; i < 8; i++ {
		mem[off+i] = byte(v >> (8 * i))
	}
}

// ResolveCallee implements CalleeResolver for the Builder: a function is
// only callable from another compiled region once it has itself already
// been compiled (no forward references across functions, §9).
func (e *Executor) ResolveCallee(entryPC int) (self bool, addr uintptr, ok bool) {
	rec, found := e.funcs[entryPC]
	if !found || rec.CompiledEntry == 0 {
		return false, 0, false
	}
	return false, rec.CompiledEntry, true
}

// RunCompiledFunction is run_compiled_function (§6): marshals up to
// MaxFunctionParams arguments into the unified calling convention, invokes
// the trampoline, and decodes the raw 64-bit result according to the
// function's observed return Kind (defaulting to Number).
func (e *Executor) RunCompiledFunction(c *Callable, args []bytecode.Value) (bytecode.Value, error) {
	var a [MaxFunctionParams]float64
	for i, v := range args {
		if i >= MaxFunctionParams {
			return bytecode.Value{}, ErrArityExceeded
		}
		switch v.Type {
		case bytecode.ValNumber:
			a[i] = v.Num
		default:
			return bytecode.Value{}, ErrUnsupportedMarshalling
		}
	}

	raw := callCompiledFunction(c.entry, a[0], a[1], a[2])
	kind := e.returnTypes.Get(c.entryPC)
	return decodeReturn(raw, kind), nil
}

func decodeReturn(raw uint64, kind types.Kind) bytecode.Value {
	switch kind {
	case types.KindBool:
		f := bitsToF64(raw)
		return bytecode.BoolValue(f != 0)
	case types.KindString:
		ref := (*bytecode.Value)(unsafe.Pointer(uintptr(raw)))
		return *ref
	default:
		return bytecode.NumberValue(bitsToF64(raw))
	}
}

func bitsToF64(bits uint64) float64 {
	return *(*float64)(unsafe.Pointer(&bits))
}

// ObserveReturn is observe_return (§6): records the Kind actually produced
// by one interpreted (pre-JIT) call to entryPC. If this refines a
// previously recorded Kind, any existing compiled entry for that PC is
// dropped so the next hot call recompiles against the corrected
// specialization (SPEC_FULL §4's supplemented recompile-on-refined-type
// behavior).
func (e *Executor) ObserveReturn(entryPC int, v bytecode.Value) {
	var kind types.Kind
	switch v.Type {
	case bytecode.ValBool:
		kind = types.KindBool
	case bytecode.ValString:
		kind = types.KindString
	default:
		kind = types.KindNumber
	}
	if changed := e.returnTypes.Observe(entryPC, kind); changed {
		if rec, ok := e.funcs[entryPC]; ok {
			rec.CompiledEntry = 0
			rec.IRHandle = nil
			rec.Code = nil
		}
	}
}

// MaybeCompileLoop is maybe_compile_loop (§6). slots is the interpreter's
// current snapshot of the loop's addressable slots, in Region Scanner
// order; on success the loop body runs immediately (marshalling the
// slice in place) and the return value is the bytecode PC the interpreter
// should resume execution from.
func (e *Executor) MaybeCompileLoop(headerPC, begin, end int, slots []float64) (int, bool) {
	rec, ok := e.loops[headerPC]
	if !ok {
		rec = &LoopRecord{HeaderPC: headerPC}
		e.loops[headerPC] = rec
	}
	rec.IterCount++

	switch LoopHotness(rec) {
	case StateCompiled:
		return e.runCompiledLoop(rec, slots), true
	case StateBlocked, StateCold:
		return 0, false
	}

	fn, scanned, err := CompileLoop(e.buf, e.consts, begin, end)
	if err != nil {
		trace.Debugf("loop %d: cannot_jit: %v", headerPC, err)
		rec.CannotJIT = true
		return 0, false
	}

	code, _, _, err := e.codegen.Generate(fn, e.helperAddrs)
	if err != nil {
		trace.Debugf("loop %d: codegen failed: %v", headerPC, err)
		rec.CannotJIT = true
		return 0, false
	}

	addr, mem, err := installCode(code)
	if err != nil {
		trace.Debugf("loop %d: install failed: %v", headerPC, err)
		rec.CannotJIT = true
		return 0, false
	}

	rec.IRHandle = fn
	rec.CompiledFn = addr
	rec.Code = mem
	rec.ArgSlotIDs = scanned.ArgSlots
	rec.LocalSlotIDs = scanned.LocalSlots
	e.pinned = append(e.pinned, mem)

	return e.runCompiledLoop(rec, slots), true
}

func (e *Executor) runCompiledLoop(rec *LoopRecord, slots []float64) int {
	if len(slots) == 0 {
		return int(callCompiledLoop(rec.CompiledFn, nil))
	}
	return int(callCompiledLoop(rec.CompiledFn, unsafe.Pointer(&slots[0])))
}
