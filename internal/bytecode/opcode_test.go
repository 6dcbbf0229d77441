package bytecode

import "testing"

func TestImmediateWidths(t *testing.T) {
	cases := []struct {
		op    OpCode
		width int
	}{
		{OpEnd, 0},
		{OpPushInt8, 1},
		{OpPushInt32, 4},
		{OpCreateContext, 4},
		{OpAsgFRestParam, 8},
		{OpJmp, 4},
		{OpAdd, 0},
	}
	for _, c := range cases {
		if got := c.op.ImmediateWidth(); got != c.width {
			t.Errorf("%v.ImmediateWidth() = %d, want %d", c.op, got, c.width)
		}
	}
}

func TestOpCodeStringKnownAndUnknown(t *testing.T) {
	if OpAdd.String() != "ADD" {
		t.Errorf("OpAdd.String() = %q, want ADD", OpAdd.String())
	}
	if s := OpCode(200).String(); s == "" {
		t.Errorf("unknown opcode String() should not be empty")
	}
}
