package jit

import "github.com/kaelstrand/vellum/internal/jit/types"

// Optimize runs a small set of cheap, always-safe passes over the verified
// IR. These stand in for the teacher's much larger optimizer package
// (deleted — see DESIGN.md); §4.4/§4.5 only ask for "a couple of simple,
// well-understood passes", not a general optimizing backend.
func Optimize(fn *types.Function) {
	foldConstArith(fn)
	pruneUnreachedBlocks(fn)
}

// foldConstArith rewrites an ADD/SUB/MUL whose two operands are both
// Number OpConsts into an OpConst in place, keeping its Dest so later uses
// stay valid. Other instructions, compares included, are left as they are.
// This is the one IR-level fold small enough to trust without a full
// value-numbering pass.
func foldConstArith(fn *types.Function) {
	constVal := make(map[types.Value]float64)
	constKind := make(map[types.Value]types.Kind)
	for _, blk := range fn.Blocks {
		for _, in := range blk.Instrs {
			if in.Op == types.OpConst {
				constVal[in.Dest] = in.Imm
				constKind[in.Dest] = in.Type
			}
		}
	}

	for _, blk := range fn.Blocks {
		for _, in := range blk.Instrs {
			if len(in.Args) != 2 {
				continue
			}
			lv, lok := constVal[in.Args[0]]
			rv, rok := constVal[in.Args[1]]
			if !lok || !rok {
				continue
			}
			if constKind[in.Args[0]] != types.KindNumber || constKind[in.Args[1]] != types.KindNumber {
				continue
			}
			switch in.Op {
			case types.OpAdd:
				in.Op, in.Imm, in.Args = types.OpConst, lv+rv, nil
			case types.OpSub:
				in.Op, in.Imm, in.Args = types.OpConst, lv-rv, nil
			case types.OpMul:
				in.Op, in.Imm, in.Args = types.OpConst, lv*rv, nil
			}
		}
	}
}

// pruneUnreachedBlocks drops blocks the Builder allocated (one per scanned
// label) but never positioned into and that no terminator references —
// dead stub blocks from labels inside an untaken branch of a conditional
// that the scanner still had to pre-create per §4.2.
func pruneUnreachedBlocks(fn *types.Function) {
	referenced := make(map[*types.Block]bool)
	referenced[fn.Entry] = true
	for _, blk := range fn.Blocks {
		for _, in := range blk.Instrs {
			if in.Target != nil {
				referenced[in.Target] = true
			}
			if in.Else != nil {
				referenced[in.Else] = true
			}
		}
	}
	kept := fn.Blocks[:0]
	for _, blk := range fn.Blocks {
		if blk.Reached || referenced[blk] {
			kept = append(kept, blk)
		}
	}
	fn.Blocks = kept
}
