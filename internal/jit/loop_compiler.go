package jit

import (
	"github.com/kaelstrand/vellum/internal/bytecode"
	"github.com/kaelstrand/vellum/internal/jit/types"
)

// CompileLoop implements §4.5: the loop-JIT entry point. begin/end bound
// the loop body in the shared bytecode buffer (begin is the first
// instruction after the loop header test, end is the loop's exit PC —
// the resume PC returned whenever a block runs off the end of the
// compiled region; a scanned-but-unreached jump target instead resumes at
// its own PC, per §9's deopt-free contract).
func CompileLoop(buf []byte, consts *bytecode.ConstantTable, begin, end int) (*types.Function, SlotSets, error) {
	slots, err := ScanSlots(buf, begin, end)
	if err != nil {
		return nil, SlotSets{}, err
	}
	labels, err := ScanLabels(buf, begin, end, false)
	if err != nil {
		return nil, SlotSets{}, err
	}

	b := NewBuilder(buf, consts, false, -1, nil, labels)

	// Loop JIT addresses every scanned slot as pointer-indexed input from
	// the loop's single marshalled array (argument slots first, then
	// locals); each is pre-registered in its own namespace, argument or
	// local, so emission-time lookups find it.
	allSlots := append(append([]int{}, slots.ArgSlots...), slots.LocalSlots...)
	for i, id := range allSlots {
		isArg := i < len(slots.ArgSlots)
		realID := id
		b.env.register(realID, isArg)
		dest := b.newValue()
		b.emit(&types.Instr{Op: types.OpLoadSlot, Dest: dest, Type: types.KindNumber, Slot: realID, IsArg: isArg})
		b.env.set(realID, isArg, dest)
	}
	b.fn.ArgSlots = slots.ArgSlots
	b.fn.LocalSlots = slots.LocalSlots

	fn, err := b.Build(begin)
	if err != nil {
		return nil, SlotSets{}, err
	}

	// Any scanned jump target block the Builder never reached (a forward
	// jump past the compiled region, or the loop's own back-edge test)
	// becomes a stub that returns its PC as the resume point — the
	// deopt-free "resume PC" loop-exit contract of §9.
	for _, blk := range fn.Blocks {
		if blk.PC >= 0 && !blk.Reached {
			blk.Reached = true
			blk.Instrs = append(blk.Instrs, &types.Instr{Op: types.OpRetPC, Imm: float64(blk.PC)})
		}
	}
	for _, blk := range fn.Blocks {
		if !blk.Terminated() {
			blk.Instrs = append(blk.Instrs, &types.Instr{Op: types.OpRetPC, Imm: float64(end)})
		}
	}
	fn.ReturnType = types.KindVoid // loop JIT returns a raw PC, not a lattice value

	if err := Verify(fn); err != nil {
		return nil, SlotSets{}, err
	}
	Optimize(fn)
	return fn, slots, nil
}
