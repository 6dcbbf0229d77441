package jit

import "github.com/kaelstrand/vellum/internal/bytecode"

// emitter is a tiny hand-rolled bytecode assembler used only by this
// package's tests, mirroring the little-endian encoding bytecode.Reader
// decodes.
type emitter struct {
	buf []byte
}

func (e *emitter) u8(v byte)   { e.buf = append(e.buf, v) }
func (e *emitter) i8(v int8)   { e.buf = append(e.buf, byte(v)) }
func (e *emitter) u32(v uint32) {
	e.buf = append(e.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
func (e *emitter) i32(v int32) { e.u32(uint32(v)) }

func (e *emitter) op(o bytecode.OpCode) { e.u8(byte(o)) }

// createContext encodes CREATE_CONTEXT's single num_local_var immediate.
// argc is never bytecode-encoded — it travels as a call-site parameter.
func (e *emitter) createContext(nLocals uint32) {
	e.op(bytecode.OpCreateContext)
	e.u32(nLocals)
}

func (e *emitter) pushInt8(v int8) {
	e.op(bytecode.OpPushInt8)
	e.i8(v)
}

func (e *emitter) pushConst(idx uint32) {
	e.op(bytecode.OpPushConst)
	e.u32(idx)
}

func (e *emitter) getArgLocal(slot uint32) {
	e.op(bytecode.OpGetArgLocal)
	e.u32(slot)
}

func (e *emitter) getLocal(slot uint32) {
	e.op(bytecode.OpGetLocal)
	e.u32(slot)
}

func (e *emitter) setLocal(slot uint32) {
	e.op(bytecode.OpSetLocal)
	e.u32(slot)
}

// jmp reserves a 4-byte relative offset and returns a patch function the
// caller invokes once the jump's target PC is known (target - pc-after-immediate).
func (e *emitter) jmp(op bytecode.OpCode) func(target int) {
	e.op(op)
	at := len(e.buf)
	e.i32(0)
	return func(target int) {
		rel := int32(target - (at + 4))
		e.buf[at] = byte(rel)
		e.buf[at+1] = byte(rel >> 8)
		e.buf[at+2] = byte(rel >> 16)
		e.buf[at+3] = byte(rel >> 24)
	}
}

func (e *emitter) ret()  { e.op(bytecode.OpReturn) }
func (e *emitter) end()  { e.op(bytecode.OpEnd) }
func (e *emitter) add()  { e.op(bytecode.OpAdd) }
func (e *emitter) sub()  { e.op(bytecode.OpSub) }
func (e *emitter) lt()   { e.op(bytecode.OpLt) }
func (e *emitter) call(argc uint32) {
	e.op(bytecode.OpCall)
	e.u32(argc)
}
