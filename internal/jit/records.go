package jit

import "github.com/kaelstrand/vellum/internal/jit/types"

// FunctionRecord tracks one function entry PC's hotness and compiled state
// (§3/§4.8). cannot_jit is sticky: once set it is never cleared, preventing
// a retry storm against a region the compiler has already rejected.
type FunctionRecord struct {
	EntryPC       int
	CallCount     int
	CannotJIT     bool
	CompiledEntry uintptr // 0 until compiled
	IRHandle      *types.Function
	Code          []byte // keeps the generated machine code alive/pinned
}

// LoopRecord tracks one loop header PC's hotness and compiled state, plus
// the stable slot ordering the Region Scanner produced for it — needed by
// the Executor to marshal the interpreter's value stack into the loop's
// argument array in the same order the code generator assumed.
type LoopRecord struct {
	HeaderPC    int
	IterCount   int
	CannotJIT   bool
	CompiledFn  uintptr // 0 until compiled
	IRHandle    *types.Function
	Code        []byte
	ArgSlotIDs  []int
	LocalSlotIDs []int
}

// ReturnTypeTable remembers the most recently observed return Kind per
// function entry PC (§4/SPEC_FULL §4): absent entries default to Number.
// An observation that refines the recorded kind invalidates any existing
// compiled entry for that PC so the next hot call recompiles against the
// corrected type — this resolves the "stale specialization" case called
// out in SPEC_FULL.md's supplemented features.
type ReturnTypeTable struct {
	observed map[int]types.Kind
}

// NewReturnTypeTable constructs an empty table (Number is the implicit
// default for any PC not yet present).
func NewReturnTypeTable() *ReturnTypeTable {
	return &ReturnTypeTable{observed: make(map[int]types.Kind)}
}

// Get returns the recorded Kind for pc, defaulting to KindNumber.
func (t *ReturnTypeTable) Get(pc int) types.Kind {
	if k, ok := t.observed[pc]; ok {
		return k
	}
	return types.KindNumber
}

// Observe records kind for pc and reports whether this changes the
// previously recorded kind (the caller must then drop any existing
// compiled entry and force recompilation).
func (t *ReturnTypeTable) Observe(pc int, kind types.Kind) (changed bool) {
	prev, ok := t.observed[pc]
	t.observed[pc] = kind
	if !ok {
		return kind != types.KindNumber
	}
	return prev != kind
}
