package bytecode

import "testing"

func TestReaderReadsLittleEndian(t *testing.T) {
	buf := []byte{0x05, 0x01, 0x00, 0x00, 0x00}
	r := NewReader(buf, 0)

	v, err := r.ReadU8()
	if err != nil || v != 0x05 {
		t.Fatalf("ReadU8 = (%v, %v), want (5, nil)", v, err)
	}
	u32, err := r.ReadU32()
	if err != nil || u32 != 1 {
		t.Fatalf("ReadU32 = (%v, %v), want (1, nil)", u32, err)
	}
}

func TestReaderPastEndIsMalformed(t *testing.T) {
	r := NewReader([]byte{0x01}, 0)
	if _, err := r.ReadU32(); err != ErrMalformedBytecode {
		t.Fatalf("err = %v, want ErrMalformedBytecode", err)
	}
}

func TestReaderSkipImmediate(t *testing.T) {
	buf := []byte{byte(OpPushInt32), 0xAA, 0xBB, 0xCC, 0xDD, byte(OpEnd)}
	r := NewReader(buf, 0)
	op, err := r.ReadU8()
	if err != nil {
		t.Fatal(err)
	}
	if err := r.SkipImmediate(OpCode(op)); err != nil {
		t.Fatalf("SkipImmediate: %v", err)
	}
	next, ok := r.Peek()
	if !ok || next != OpEnd {
		t.Fatalf("Peek after skip = (%v, %v), want (OpEnd, true)", next, ok)
	}
}
