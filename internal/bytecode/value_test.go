package bytecode

import "testing"

func TestConstantTablePtrStableAcrossGets(t *testing.T) {
	tbl := NewConstantTable([]Value{StringValue("a"), NumberValue(3)})

	ref, ok := tbl.Ptr(0)
	if !ok {
		t.Fatalf("Ptr(0) not found")
	}
	if ref.Str != "a" {
		t.Fatalf("ref.Str = %q, want %q", ref.Str, "a")
	}

	v, ok := tbl.Get(1)
	if !ok || v.Num != 3 {
		t.Fatalf("Get(1) = (%+v, %v)", v, ok)
	}

	if _, ok := tbl.Get(2); ok {
		t.Fatalf("Get(2) should be out of range")
	}

	if again, _ := tbl.Ptr(0); again != ref {
		t.Fatalf("Ptr(0) changed across Get calls")
	}
}

func TestBoolValueRoundTrip(t *testing.T) {
	v := BoolValue(true)
	if !v.Bool() {
		t.Fatalf("BoolValue(true).Bool() = false")
	}
	if BoolValue(false).Bool() {
		t.Fatalf("BoolValue(false).Bool() = true")
	}
}
