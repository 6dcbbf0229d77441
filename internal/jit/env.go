package jit

import "github.com/kaelstrand/vellum/internal/jit/types"

// slotKey names one addressable slot by (id, is-argument), matching §3's
// Compilation Environment: "a per-compilation mapping (slot-id,
// is-argument) -> addressable slot in the emitted function".
type slotKey struct {
	id      int
	isArg   bool
}

// env binds bytecode slot ids to the SSA value currently holding that
// slot's content. Function JIT lazily allocates a local slot's initial
// value (undefined/zero) on first use; loop JIT requires every slot to
// already be registered (via ScanSlots) and fails otherwise (§4.6).
type env struct {
	values      map[slotKey]types.Value
	registered  map[slotKey]bool // loop JIT: slots ScanSlots found; function JIT: args plus locals seen so far
	lazyLocals  bool             // function JIT: allocate on first use
}

func newEnv(lazyLocals bool) *env {
	return &env{
		values:     make(map[slotKey]types.Value),
		registered: make(map[slotKey]bool),
		lazyLocals: lazyLocals,
	}
}

func (e *env) register(id int, isArg bool) {
	e.registered[slotKey{id, isArg}] = true
}

func (e *env) isRegistered(id int, isArg bool) bool {
	return e.registered[slotKey{id, isArg}]
}

func (e *env) get(id int, isArg bool) (types.Value, bool) {
	v, ok := e.values[slotKey{id, isArg}]
	return v, ok
}

func (e *env) set(id int, isArg bool, v types.Value) {
	e.values[slotKey{id, isArg}] = v
}
