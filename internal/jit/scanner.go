package jit

import "github.com/kaelstrand/vellum/internal/bytecode"

// SlotSets is the result of ScanSlots: the stable, deduplicated, ordered
// lists of argument and local slot ids a loop body touches.
type SlotSets struct {
	ArgSlots   []int
	LocalSlots []int
}

// ScanSlots walks [begin, end) skipping each instruction by its immediate
// width, recording every GET_ARG_LOCAL/SET_ARG_LOCAL slot id into the
// argument set and every GET_LOCAL/SET_LOCAL slot id into the local set.
// Order is the order slots are first seen; it only needs to be stable
// across the rest of one compilation, which iterating a byte buffer
// linearly already guarantees. Any opcode outside scanner's supported
// subset fails with ErrUnsupportedOpcode (§4.2).
func ScanSlots(buf []byte, begin, end int) (SlotSets, error) {
	var sets SlotSets
	seenArg := make(map[int]bool)
	seenLocal := make(map[int]bool)

	r := bytecode.NewReader(buf, begin)
	for r.Cursor < end {
		opByte, err := r.ReadU8()
		if err != nil {
			return SlotSets{}, ErrMalformedBytecode
		}
		op := bytecode.OpCode(opByte)
		if !scannerSupports(op) {
			return SlotSets{}, ErrUnsupportedOpcode
		}

		switch op {
		case bytecode.OpGetArgLocal, bytecode.OpSetArgLocal:
			slot, err := r.ReadU32()
			if err != nil {
				return SlotSets{}, ErrMalformedBytecode
			}
			id := int(slot)
			if !seenArg[id] {
				seenArg[id] = true
				sets.ArgSlots = append(sets.ArgSlots, id)
			}
		case bytecode.OpGetLocal, bytecode.OpSetLocal:
			slot, err := r.ReadU32()
			if err != nil {
				return SlotSets{}, ErrMalformedBytecode
			}
			id := int(slot)
			if !seenLocal[id] {
				seenLocal[id] = true
				sets.LocalSlots = append(sets.LocalSlots, id)
			}
		default:
			if err := r.SkipImmediate(op); err != nil {
				return SlotSets{}, ErrMalformedBytecode
			}
		}
	}
	return sets, nil
}

// scannerSupports is the subset of opcodes ScanSlots/ScanLabels are
// willing to walk past without understanding their semantics — everything
// the IR Builder might also need to skip or lower. CONSTRUCT, CREATE_OBJECT
// and friends are included here (scan-only no-ops, per §4.6's last bullet)
// even though emission will reject them outright.
func scannerSupports(op bytecode.OpCode) bool {
	switch op {
	case bytecode.OpEnd, bytecode.OpCreateContext, bytecode.OpConstruct,
		bytecode.OpCreateObject, bytecode.OpPushInt8, bytecode.OpPushInt32,
		bytecode.OpPushFalse, bytecode.OpPushTrue, bytecode.OpPushConst,
		bytecode.OpPushThis, bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul,
		bytecode.OpDiv, bytecode.OpRem, bytecode.OpLt, bytecode.OpGt,
		bytecode.OpLe, bytecode.OpGe, bytecode.OpEq, bytecode.OpNe,
		bytecode.OpSeq, bytecode.OpSne, bytecode.OpNeg, bytecode.OpGetMember,
		bytecode.OpSetMember, bytecode.OpGetGlobal, bytecode.OpSetGlobal,
		bytecode.OpGetLocal, bytecode.OpSetLocal, bytecode.OpGetArgLocal,
		bytecode.OpSetArgLocal, bytecode.OpJmpIfFalse, bytecode.OpJmp,
		bytecode.OpCall, bytecode.OpReturn, bytecode.OpPushArguments,
		bytecode.OpAsgFRestParam, bytecode.OpCreateArray:
		return true
	default:
		return false
	}
}

// ScanLabels walks [begin, end) and records the target PC of every
// JMP/JMP_IF_FALSE as computed by the producer's own convention: the
// offset immediately following the 4-byte immediate, plus the signed
// offset (§4.2). In function-JIT mode scanning stops at the first
// CREATE_CONTEXT after the initial one (a nested function literal); in
// loop-JIT mode it stops at END or at running past end.
func ScanLabels(buf []byte, begin, end int, isFuncJIT bool) (map[int]bool, error) {
	targets := make(map[int]bool)
	r := bytecode.NewReader(buf, begin)
	seenFirstContext := false

	for {
		if isFuncJIT {
			if r.Cursor >= len(buf) {
				break
			}
		} else if r.Cursor >= end {
			break
		}

		opByte, err := r.ReadU8()
		if err != nil {
			return nil, ErrMalformedBytecode
		}
		op := bytecode.OpCode(opByte)

		if op == bytecode.OpCreateContext {
			if isFuncJIT {
				if seenFirstContext {
					break
				}
				seenFirstContext = true
			}
		}
		if !isFuncJIT && op == bytecode.OpEnd {
			break
		}

		if op == bytecode.OpJmp || op == bytecode.OpJmpIfFalse {
			rel, err := r.ReadI32()
			if err != nil {
				return nil, ErrMalformedBytecode
			}
			targets[r.Cursor+int(rel)] = true
			continue
		}

		if err := r.SkipImmediate(op); err != nil {
			return nil, ErrMalformedBytecode
		}
	}
	return targets, nil
}
