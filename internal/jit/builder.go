// builder.go — 字节码到 SSA 的单遍降级（lowering）
//
// Builder 维护一个模拟操作数栈（每个元素是 Operand：IR 值 + 可选字面量）和
// 一张 PC -> 基本块 的标签表。基本块边界由 Region Scanner 预先扫描给出；
// Builder 本身只负责往已创建好的块里追加指令，并在遇到标签目标时做好
// 块之间的定位切换（§4.6 "Basic-block positioning"）。
package jit

import (
	"fmt"

	"github.com/kaelstrand/vellum/internal/bytecode"
	"github.com/kaelstrand/vellum/internal/jit/types"
)

// CalleeResolver lets the Builder resolve a PUSH_CONST function descriptor
// into either "that's me, still compiling" or "that function is already
// compiled, here is its address" or "not compiled yet, fail" (§4.6).
type CalleeResolver interface {
	// ResolveCallee reports whether entryPC names the function currently
	// being compiled (self), or, if not, whether it has a compiled_entry
	// already (addr, true), or neither (ok=false => UncompiledCallee).
	ResolveCallee(entryPC int) (self bool, addr uintptr, ok bool)
}

// Builder lowers one bytecode region (function body or loop body) to IR.
type Builder struct {
	buf        []byte
	consts     *bytecode.ConstantTable
	isFuncJIT  bool
	selfPC     int // entry PC of the function currently compiling (function JIT only)
	resolver   CalleeResolver

	fn      *types.Function
	env     *env
	stack   []Operand
	nextVal types.Value

	labelBlocks map[int]*types.Block
	cur         *types.Block
}

// NewBuilder constructs a Builder for one compilation. labelTargets comes
// from ScanLabels; one empty block is pre-created per target, per §4.2.
func NewBuilder(buf []byte, consts *bytecode.ConstantTable, isFuncJIT bool, selfPC int, resolver CalleeResolver, labelTargets map[int]bool) *Builder {
	b := &Builder{
		buf:         buf,
		consts:      consts,
		isFuncJIT:   isFuncJIT,
		selfPC:      selfPC,
		resolver:    resolver,
		fn:          &types.Function{},
		env:         newEnv(isFuncJIT),
		labelBlocks: make(map[int]*types.Block),
	}

	entry := b.newBlock(-1)
	b.fn.Entry = entry
	b.cur = entry

	ids := make([]int, 0, len(labelTargets))
	for pc := range labelTargets {
		ids = append(ids, pc)
	}
	for _, pc := range ids {
		blk := b.newBlock(pc)
		b.labelBlocks[pc] = blk
	}
	return b
}

func (b *Builder) newBlock(pc int) *types.Block {
	blk := &types.Block{ID: len(b.fn.Blocks), PC: pc}
	b.fn.Blocks = append(b.fn.Blocks, blk)
	return blk
}

func (b *Builder) newValue() types.Value {
	b.nextVal++
	return b.nextVal
}

func (b *Builder) emit(instr *types.Instr) types.Value {
	b.cur.Instrs = append(b.cur.Instrs, instr)
	return instr.Dest
}

func (b *Builder) push(op Operand) { b.stack = append(b.stack, op) }

func (b *Builder) pop() (Operand, error) {
	if len(b.stack) == 0 {
		return Operand{}, ErrMalformedBytecode
	}
	top := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	return top, nil
}

// positionIfLabel implements §4.6's "Basic-block positioning": on entering
// an opcode whose PC is a known label target, fall through into it (if the
// current block isn't already terminated) and continue emitting there.
func (b *Builder) positionIfLabel(pc int) {
	blk, ok := b.labelBlocks[pc]
	if !ok || blk.Reached {
		return
	}
	if !b.cur.Terminated() {
		b.emit(&types.Instr{Op: types.OpBr, Target: blk})
		blk.Preds = append(blk.Preds, b.cur)
	}
	blk.Reached = true
	b.cur = blk
}

func (b *Builder) blockAt(pc int) (*types.Block, error) {
	blk, ok := b.labelBlocks[pc]
	if !ok {
		return nil, fmt.Errorf("%w: jump target %d has no block", ErrMalformedBytecode, pc)
	}
	return blk, nil
}

// loadSlot emits a load of a local/argument slot, allocating the local
// lazily for function JIT or failing with ErrUnsupportedSlot for an
// unregistered loop-JIT slot (§4.6).
func (b *Builder) loadSlot(id int, isArg bool) (Operand, error) {
	if v, ok := b.env.get(id, isArg); ok {
		return Operand{IR: v}, nil
	}
	if !b.env.isRegistered(id, isArg) {
		if b.isFuncJIT && !isArg {
			// function JIT lazily allocates locals on first use
			b.env.register(id, false)
		} else {
			return Operand{}, ErrUnsupportedSlot
		}
	}
	dest := b.newValue()
	b.emit(&types.Instr{Op: types.OpLoadSlot, Dest: dest, Type: types.KindNumber, Slot: id, IsArg: isArg})
	b.env.set(id, isArg, dest)
	return Operand{IR: dest}, nil
}

func (b *Builder) storeSlot(id int, isArg bool, v Operand) error {
	if !b.env.isRegistered(id, isArg) {
		if b.isFuncJIT {
			b.env.register(id, isArg)
		} else {
			return ErrUnsupportedSlot
		}
	}
	b.emit(&types.Instr{Op: types.OpStoreSlot, Slot: id, IsArg: isArg, Args: []types.Value{v.IR}})
	b.env.set(id, isArg, v.IR)
	return nil
}

// Build performs the single-pass lowering described by §4.6 and returns
// the finished IR function (not yet verified/optimized — that happens in
// the Function/Loop Compiler, which also injects missing terminators).
func (b *Builder) Build(start int) (*types.Function, error) {
	r := bytecode.NewReader(b.buf, start)
	for {
		if r.Cursor >= len(b.buf) {
			break
		}
		pc := r.Cursor
		b.positionIfLabel(pc)

		opByte, err := r.ReadU8()
		if err != nil {
			return nil, ErrMalformedBytecode
		}
		op := bytecode.OpCode(opByte)

		switch op {
		case bytecode.OpEnd, bytecode.OpCreateContext:
			return b.fn, nil

		case bytecode.OpPushInt8:
			v, err := r.ReadI8()
			if err != nil {
				return nil, ErrMalformedBytecode
			}
			b.pushConstNumber(float64(v))

		case bytecode.OpPushInt32:
			v, err := r.ReadI32()
			if err != nil {
				return nil, ErrMalformedBytecode
			}
			b.pushConstNumber(float64(v))

		case bytecode.OpPushTrue:
			b.pushConstBool(true)
		case bytecode.OpPushFalse:
			b.pushConstBool(false)

		case bytecode.OpPushConst:
			idx, err := r.ReadU32()
			if err != nil {
				return nil, ErrMalformedBytecode
			}
			if err := b.lowerPushConst(int(idx)); err != nil {
				return nil, err
			}

		case bytecode.OpGetLocal:
			id, err := r.ReadU32()
			if err != nil {
				return nil, ErrMalformedBytecode
			}
			op, err := b.loadSlot(int(id), false)
			if err != nil {
				return nil, err
			}
			b.push(op)

		case bytecode.OpGetArgLocal:
			id, err := r.ReadU32()
			if err != nil {
				return nil, ErrMalformedBytecode
			}
			op, err := b.loadSlot(int(id), true)
			if err != nil {
				return nil, err
			}
			b.push(op)

		case bytecode.OpSetLocal, bytecode.OpSetArgLocal:
			id, err := r.ReadU32()
			if err != nil {
				return nil, ErrMalformedBytecode
			}
			v, err := b.pop()
			if err != nil {
				return nil, err
			}
			if err := b.storeSlot(int(id), op == bytecode.OpSetArgLocal, v); err != nil {
				return nil, err
			}
			b.push(v)

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpRem:
			if err := b.lowerArith(op); err != nil {
				return nil, err
			}

		case bytecode.OpNeg:
			v, err := b.pop()
			if err != nil {
				return nil, err
			}
			dest := b.newValue()
			b.emit(&types.Instr{Op: types.OpNeg, Dest: dest, Type: types.KindNumber, Args: []types.Value{v.IR}})
			b.push(Operand{IR: dest})

		case bytecode.OpLt, bytecode.OpGt, bytecode.OpLe, bytecode.OpGe,
			bytecode.OpEq, bytecode.OpNe, bytecode.OpSeq, bytecode.OpSne:
			if err := b.lowerCompare(op); err != nil {
				return nil, err
			}

		case bytecode.OpJmp:
			rel, err := r.ReadI32()
			if err != nil {
				return nil, ErrMalformedBytecode
			}
			target := r.Cursor + int(rel)
			blk, err := b.blockAt(target)
			if err != nil {
				return nil, err
			}
			b.emit(&types.Instr{Op: types.OpBr, Target: blk})
			blk.Preds = append(blk.Preds, b.cur)

		case bytecode.OpJmpIfFalse:
			rel, err := r.ReadI32()
			if err != nil {
				return nil, ErrMalformedBytecode
			}
			target := r.Cursor + int(rel)
			elseBlk, err := b.blockAt(target)
			if err != nil {
				return nil, err
			}
			cond, err := b.pop()
			if err != nil {
				return nil, err
			}
			thenBlk := b.newBlock(-1)
			b.emit(&types.Instr{Op: types.OpBrIf, Args: []types.Value{cond.IR}, Target: thenBlk, Else: elseBlk})
			elseBlk.Preds = append(elseBlk.Preds, b.cur)
			thenBlk.Preds = append(thenBlk.Preds, b.cur)
			thenBlk.Reached = true
			b.cur = thenBlk

		case bytecode.OpCall:
			argc, err := r.ReadU32()
			if err != nil {
				return nil, ErrMalformedBytecode
			}
			if err := b.lowerCall(int(argc)); err != nil {
				return nil, err
			}

		case bytecode.OpGetMember:
			if err := b.lowerGetMember(); err != nil {
				return nil, err
			}

		case bytecode.OpReturn:
			if !b.isFuncJIT {
				return nil, ErrUnsupportedOpcode
			}
			v, err := b.pop()
			if err != nil {
				return nil, err
			}
			kind, err := InferType(b.valueKind(v.IR), v.Literal)
			if err != nil {
				return nil, err
			}
			b.emit(&types.Instr{Op: types.OpRet, Type: kind, Args: []types.Value{v.IR}})
			if b.fn.ReturnType == types.KindVoid {
				b.fn.ReturnType = kind
			}

		default:
			return nil, ErrUnsupportedOpcode
		}
	}
	return b.fn, nil
}

func (b *Builder) pushConstNumber(n float64) {
	dest := b.newValue()
	b.emit(&types.Instr{Op: types.OpConst, Dest: dest, Type: types.KindNumber, Imm: n})
	b.push(Operand{IR: dest})
}

func (b *Builder) pushConstBool(v bool) {
	dest := b.newValue()
	imm := 0.0
	if v {
		imm = 1.0
	}
	b.emit(&types.Instr{Op: types.OpConst, Dest: dest, Type: types.KindBool, Imm: imm})
	b.push(Operand{IR: dest})
}

// lowerPushConst implements §4.6's PUSH_CONST table.
func (b *Builder) lowerPushConst(idx int) error {
	val, ok := b.consts.Get(idx)
	if !ok {
		return ErrMalformedBytecode
	}
	switch val.Type {
	case bytecode.ValNumber:
		b.pushConstNumber(val.Num)
		return nil
	case bytecode.ValBool:
		b.pushConstBool(val.Bool())
		return nil
	case bytecode.ValString:
		ref, ok := b.consts.Ptr(idx)
		if !ok {
			return ErrMalformedBytecode
		}
		dest := b.newValue()
		b.emit(&types.Instr{Op: types.OpConst, Dest: dest, Type: types.KindString, ImmStr: val.Str, ConstRef: ref})
		b.push(Operand{IR: dest, Literal: &val})
		return nil
	case bytecode.ValFunction:
		return b.lowerFunctionConst(val)
	case bytecode.ValEmbeddedFunction, bytecode.ValObject:
		b.push(Operand{Literal: &val})
		return nil
	default:
		return ErrUntypedOperand
	}
}

func (b *Builder) lowerFunctionConst(val bytecode.Value) error {
	entryPC := val.Func.EntryPC
	if b.isFuncJIT && entryPC == b.selfPC {
		b.push(Operand{Literal: &val}) // self-reference; resolved at call time
		return nil
	}
	if b.resolver == nil {
		return ErrUncompiledCallee
	}
	if self, _, ok := b.resolver.ResolveCallee(entryPC); ok {
		_ = self
		b.push(Operand{Literal: &val})
		return nil
	}
	return ErrUncompiledCallee
}

func (b *Builder) valueKind(v types.Value) types.Kind {
	for _, blk := range b.fn.Blocks {
		for _, in := range blk.Instrs {
			if in.Dest == v {
				return in.Type
			}
		}
	}
	return types.KindVoid
}

func (b *Builder) lowerArith(op bytecode.OpCode) error {
	rhs, err := b.pop()
	if err != nil {
		return err
	}
	lhs, err := b.pop()
	if err != nil {
		return err
	}
	if _, err := InferType(b.valueKind(lhs.IR), lhs.Literal); err != nil {
		return err
	}
	if _, err := InferType(b.valueKind(rhs.IR), rhs.Literal); err != nil {
		return err
	}
	if b.valueKind(lhs.IR) == types.KindString || b.valueKind(rhs.IR) == types.KindString {
		// ADD/SUB/MUL/DIV/REM are floating-point only; string concatenation
		// via ADD is out of scope (§1 Non-goals).
		return ErrUnsupportedOpcode
	}
	var irOp types.Op
	switch op {
	case bytecode.OpAdd:
		irOp = types.OpAdd
	case bytecode.OpSub:
		irOp = types.OpSub
	case bytecode.OpMul:
		irOp = types.OpMul
	case bytecode.OpDiv:
		irOp = types.OpDiv
	case bytecode.OpRem:
		irOp = types.OpRem
	}
	dest := b.newValue()
	b.emit(&types.Instr{Op: irOp, Dest: dest, Type: types.KindNumber, Args: []types.Value{lhs.IR, rhs.IR}})
	b.push(Operand{IR: dest})
	return nil
}

func (b *Builder) lowerCompare(op bytecode.OpCode) error {
	rhs, err := b.pop()
	if err != nil {
		return err
	}
	lhs, err := b.pop()
	if err != nil {
		return err
	}
	if _, err := InferType(b.valueKind(lhs.IR), lhs.Literal); err != nil {
		return err
	}
	if _, err := InferType(b.valueKind(rhs.IR), rhs.Literal); err != nil {
		return err
	}
	// SEQ/SNE map to the same IR as EQ/NE — the source draws no distinction
	// once lowered; see SPEC_FULL/DESIGN open question.
	var pred types.Pred
	switch op {
	case bytecode.OpLt:
		pred = types.PredLT
	case bytecode.OpGt:
		pred = types.PredGT
	case bytecode.OpLe:
		pred = types.PredLE
	case bytecode.OpGe:
		pred = types.PredGE
	case bytecode.OpEq, bytecode.OpSeq:
		pred = types.PredEQ
	case bytecode.OpNe, bytecode.OpSne:
		pred = types.PredNE
	}
	dest := b.newValue()
	b.emit(&types.Instr{Op: types.OpCmp, Dest: dest, Type: types.KindBool, Args: []types.Value{lhs.IR, rhs.IR}, Pred: pred})
	b.push(Operand{IR: dest})
	return nil
}

// lowerGetMember folds member access at compile time through an object
// literal's constant-table descriptor (§4.6); any other parent fails.
func (b *Builder) lowerGetMember() error {
	member, err := b.pop()
	if err != nil {
		return err
	}
	parent, err := b.pop()
	if err != nil {
		return err
	}
	if parent.Literal == nil || parent.Literal.Type != bytecode.ValObject || member.Literal == nil {
		return ErrUnsupportedOpcode
	}
	name := member.Literal.Str
	idx, ok := parent.Literal.Object.Members[name]
	if !ok {
		return ErrUnsupportedOpcode
	}
	return b.lowerPushConst(idx)
}

// lowerCall implements §4.6's CALL table: embedded-function specializations
// and direct calls to already-resolved IR function handles.
func (b *Builder) lowerCall(argc int) error {
	calleeOp, err := b.pop()
	if err != nil {
		return err
	}
	args := make([]Operand, argc)
	for i := argc - 1; i >= 0; i-- {
		a, err := b.pop()
		if err != nil {
			return err
		}
		args[i] = a
	}

	if calleeOp.Literal != nil && calleeOp.Literal.Type == bytecode.ValEmbeddedFunction {
		return b.lowerEmbeddedCall(calleeOp.Literal.Embedded, args)
	}
	if calleeOp.Literal != nil && calleeOp.Literal.Type == bytecode.ValFunction {
		return b.lowerDirectCall(calleeOp.Literal.Func, args)
	}
	return ErrUnsupportedOpcode
}

func (b *Builder) lowerDirectCall(fd *bytecode.FunctionDescriptor, args []Operand) error {
	for _, a := range args {
		if _, err := InferType(b.valueKind(a.IR), a.Literal); err != nil {
			return err
		}
		if b.valueKind(a.IR) != types.KindNumber {
			return ErrUnsupportedOpcode // only double-typed user-function calls supported
		}
	}
	instr := &types.Instr{Op: types.OpCallFunc, Type: types.KindNumber, CalleePC: fd.EntryPC}
	for _, a := range args {
		instr.Args = append(instr.Args, a.IR)
	}
	if b.isFuncJIT && fd.EntryPC == b.selfPC {
		instr.Self = true
	} else {
		_, addr, ok := b.resolver.ResolveCallee(fd.EntryPC)
		if !ok {
			return ErrUncompiledCallee
		}
		instr.CalleeAddr = addr
	}
	instr.Dest = b.newValue()
	b.emit(instr)
	b.push(Operand{IR: instr.Dest})
	return nil
}

func (b *Builder) lowerEmbeddedCall(id bytecode.EmbeddedFunctionID, args []Operand) error {
	switch id {
	case bytecode.ConsoleLog:
		for _, a := range args {
			kind, err := InferType(b.valueKind(a.IR), a.Literal)
			if err != nil {
				return err
			}
			var helper string
			switch kind {
			case types.KindNumber, types.KindBool:
				helper = HelperConsoleLogF64
			case types.KindString:
				helper = HelperConsoleLogString
			default:
				return ErrUnsupportedMarshalling
			}
			b.emit(&types.Instr{Op: types.OpCallHelper, Helper: helper, Args: []types.Value{a.IR}})
		}
		b.emit(&types.Instr{Op: types.OpCallHelper, Helper: HelperConsoleLogNewline})
		return nil

	case bytecode.ProcessStdoutWrite:
		for _, a := range args {
			kind, err := InferType(b.valueKind(a.IR), a.Literal)
			if err != nil {
				return err
			}
			if kind != types.KindString {
				return ErrUnsupportedOpcode
			}
			b.emit(&types.Instr{Op: types.OpCallHelper, Helper: HelperProcessStdoutWrite, Args: []types.Value{a.IR}})
		}
		return nil

	case bytecode.MathFloor, bytecode.MathPow, bytecode.MathRandom:
		var helper string
		switch id {
		case bytecode.MathFloor:
			helper = HelperMathFloor
		case bytecode.MathPow:
			helper = HelperMathPow
		case bytecode.MathRandom:
			helper = HelperMathRandom
		}
		instr := &types.Instr{Op: types.OpCallHelper, Dest: b.newValue(), Type: types.KindNumber, Helper: helper}
		for _, a := range args {
			if b.valueKind(a.IR) != types.KindNumber {
				return ErrUnsupportedOpcode
			}
			instr.Args = append(instr.Args, a.IR)
		}
		b.emit(instr)
		b.push(Operand{IR: instr.Dest})
		return nil

	default:
		return ErrUnsupportedOpcode
	}
}
