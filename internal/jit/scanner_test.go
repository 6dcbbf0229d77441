package jit

import (
	"testing"

	"github.com/kaelstrand/vellum/internal/bytecode"
)

func TestScanSlotsOrderAndDedup(t *testing.T) {
	var e emitter
	e.getArgLocal(0)
	e.getLocal(2)
	e.getArgLocal(0) // repeated, must not duplicate
	e.getLocal(1)
	e.end()

	sets, err := ScanSlots(e.buf, 0, len(e.buf))
	if err != nil {
		t.Fatalf("ScanSlots: %v", err)
	}
	if len(sets.ArgSlots) != 1 || sets.ArgSlots[0] != 0 {
		t.Fatalf("ArgSlots = %v, want [0]", sets.ArgSlots)
	}
	if len(sets.LocalSlots) != 2 || sets.LocalSlots[0] != 2 || sets.LocalSlots[1] != 1 {
		t.Fatalf("LocalSlots = %v, want [2 1] (first-seen order)", sets.LocalSlots)
	}
}

func TestScanSlotsRejectsTrulyUnsupportedOpcode(t *testing.T) {
	var e emitter
	e.op(0xFF) // no opcode is assigned this byte
	_, err := ScanSlots(e.buf, 0, len(e.buf))
	if err != ErrUnsupportedOpcode {
		t.Fatalf("err = %v, want ErrUnsupportedOpcode", err)
	}
}

func TestScanLabelsComputesAbsoluteTargets(t *testing.T) {
	var p emitter
	patchJmp := p.jmp(bytecode.OpJmp)
	p.pushInt8(9) // skipped over by the jump
	target := len(p.buf)
	p.end()
	patchJmp(target)

	labels, err := ScanLabels(p.buf, 0, len(p.buf), false)
	if err != nil {
		t.Fatalf("ScanLabels: %v", err)
	}
	if !labels[target] {
		t.Fatalf("expected label at %d, got %v", target, labels)
	}
}

func TestScanLabelsStopsAtNestedFunctionInFuncJITMode(t *testing.T) {
	var p emitter
	p.createContext(0) // the enclosing function's own entry
	patchJmp := p.jmp(bytecode.OpJmp)
	target := 0 // filled below
	p.pushInt8(1)
	patchJmp(len(p.buf))
	target = len(p.buf)
	_ = target
	p.createContext(0) // nested function literal; scanning must stop here
	// A jump inside the nested body would add a second label if scanning went on.
	patchNested := p.jmp(bytecode.OpJmp)
	patchNested(len(p.buf))
	p.end()

	labels, err := ScanLabels(p.buf, 0, len(p.buf), true)
	if err != nil {
		t.Fatalf("ScanLabels: %v", err)
	}
	if len(labels) != 1 {
		t.Fatalf("expected exactly one label before the nested CREATE_CONTEXT, got %v", labels)
	}
}
