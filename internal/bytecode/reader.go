package bytecode

import "errors"

// ErrMalformedBytecode is returned whenever a read runs past the end of the
// buffer. It is never surfaced to the script author — callers convert it to
// a sticky cannot_jit on the record being compiled.
var ErrMalformedBytecode = errors.New("bytecode: malformed or truncated buffer")

// Reader provides sequential little-endian decoding over a shared byte
// buffer with a mutable cursor, mirroring the producer's own encoder.
type Reader struct {
	Buf    []byte
	Cursor int
}

// NewReader positions a Reader at the given offset.
func NewReader(buf []byte, at int) *Reader {
	return &Reader{Buf: buf, Cursor: at}
}

func (r *Reader) need(n int) error {
	if r.Cursor < 0 || r.Cursor+n > len(r.Buf) {
		return ErrMalformedBytecode
	}
	return nil
}

// ReadU8 reads one unsigned byte and advances the cursor.
func (r *Reader) ReadU8() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.Buf[r.Cursor]
	r.Cursor++
	return b, nil
}

// ReadI8 reads one signed byte and advances the cursor.
func (r *Reader) ReadI8() (int8, error) {
	b, err := r.ReadU8()
	return int8(b), err
}

// ReadU32 reads a little-endian 32-bit unsigned integer.
func (r *Reader) ReadU32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	b := r.Buf[r.Cursor : r.Cursor+4]
	v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	r.Cursor += 4
	return v, nil
}

// ReadI32 reads a little-endian 32-bit signed integer.
func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// ReadU64 reads a little-endian 64-bit unsigned integer (used only by
// ASG_FREST_PARAM's 8-byte immediate).
func (r *Reader) ReadU64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	b := r.Buf[r.Cursor : r.Cursor+8]
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	r.Cursor += 8
	return v, nil
}

// Peek returns the opcode at the cursor without advancing it. ok is false
// at end of buffer.
func (r *Reader) Peek() (OpCode, bool) {
	if r.Cursor < 0 || r.Cursor >= len(r.Buf) {
		return 0, false
	}
	return OpCode(r.Buf[r.Cursor]), true
}

// SkipImmediate advances the cursor past the immediate belonging to op
// (the opcode byte itself must already have been consumed).
func (r *Reader) SkipImmediate(op OpCode) error {
	w := op.ImmediateWidth()
	if err := r.need(w); err != nil {
		return err
	}
	r.Cursor += w
	return nil
}
