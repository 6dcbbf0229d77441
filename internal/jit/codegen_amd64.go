//go:build amd64

package jit

import (
	"fmt"
	"unsafe"

	asm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/kaelstrand/vellum/internal/bytecode"
	"github.com/kaelstrand/vellum/internal/jit/types"
)

func ptrOf(f *float64) unsafe.Pointer { return unsafe.Pointer(f) }

func ptrOfValue(v *bytecode.Value) unsafe.Pointer { return unsafe.Pointer(v) }

// amd64CodeGenerator lowers one verified IR Function to amd64 machine
// code, grounded on wazero's jit_amd64.go use of golang-asm (§3 domain
// stack): asm.NewBuilder, obj.Prog construction via builder.NewProg(),
// obj.Addr{Type,Reg,Offset} operands and prog.To.SetTarget for branch
// resolution.
//
// Register allocation is deliberately spill-everything: every SSA value
// gets its own 8-byte slot in a private stack frame (allocated below SP at
// entry) and every instruction reloads/stores through that frame. A real
// linear-scan allocator is exactly the piece the teacher's own (deleted,
// see DESIGN.md) regalloc.go provided for a much larger IR — out of
// proportion for functions this small, and never load-bearing since §1
// explicitly scopes out anything beyond straight-line arithmetic/control
// flow over three doubles.
type amd64CodeGenerator struct{}

func newPlatformCodeGenerator() types.CodeGenerator { return amd64CodeGenerator{} }

const frameSlotSize = 8

func (amd64CodeGenerator) Generate(fn *types.Function, helperAddrs map[string]uintptr) ([]byte, int, []int, error) {
	g := &amd64Gen{
		helperAddrs: helperAddrs,
		slots:       make(map[types.Value]int64),
		blockProgs:  make(map[*types.Block]*obj.Prog),
	}
	return g.generate(fn)
}

type amd64Gen struct {
	b           *asm.Builder
	helperAddrs map[string]uintptr
	slots       map[types.Value]int64 // SSA value -> frame byte offset
	nextSlot    int64
	blockProgs  map[*types.Block]*obj.Prog // first real Prog emitted for each block
	selfCallOffsets []int
	deferred    []deferredBranch
	pendingFirst *obj.Prog // captures the first Prog of the instruction currently being emitted
	restores    []*obj.Prog // ADDQ $nextSlot, SP progs emitted before every RET, patched once nextSlot is final
}

// emitFrameRestore balances the prologue's SUBQ before a RET: its Offset is
// patched to the final frame size once every slot has been assigned.
func (g *amd64Gen) emitFrameRestore() {
	p := g.newProg()
	p.As = x86.AADDQ
	p.From.Type = obj.TYPE_CONST
	p.To.Type = obj.TYPE_REG
	p.To.Reg = x86.REG_SP
	g.add(p)
	g.restores = append(g.restores, p)
}

func (g *amd64Gen) slotOf(v types.Value) int64 {
	if off, ok := g.slots[v]; ok {
		return off
	}
	off := g.nextSlot
	g.nextSlot += frameSlotSize
	g.slots[v] = off
	return off
}

func (g *amd64Gen) newProg() *obj.Prog {
	p := g.b.NewProg()
	if g.pendingFirst == nil {
		g.pendingFirst = p
	}
	return p
}

func (g *amd64Gen) add(p *obj.Prog) {
	g.b.AddInstruction(p)
}

// loadToXMM emits a MOVSD from a value's frame slot into the given XMM reg.
func (g *amd64Gen) loadToXMM(v types.Value, xmm int16) {
	p := g.newProg()
	p.As = x86.AMOVSD
	p.From.Type = obj.TYPE_MEM
	p.From.Reg = x86.REG_SP
	p.From.Offset = g.slotOf(v)
	p.To.Type = obj.TYPE_REG
	p.To.Reg = xmm
	g.add(p)
}

// storeFromXMM emits a MOVSD from the given XMM reg into a value's slot.
func (g *amd64Gen) storeFromXMM(xmm int16, v types.Value) {
	p := g.newProg()
	p.As = x86.AMOVSD
	p.From.Type = obj.TYPE_REG
	p.From.Reg = xmm
	p.To.Type = obj.TYPE_MEM
	p.To.Reg = x86.REG_SP
	p.To.Offset = g.slotOf(v)
	g.add(p)
}

func (g *amd64Gen) loadImmToXMM(imm float64, xmm int16, scratchGP int16) {
	bits := int64(f64bits(imm))
	mov := g.newProg()
	mov.As = x86.AMOVQ
	mov.From.Type = obj.TYPE_CONST
	mov.From.Offset = bits
	mov.To.Type = obj.TYPE_REG
	mov.To.Reg = scratchGP
	g.add(mov)

	cvt := g.newProg()
	cvt.As = x86.AMOVQ
	cvt.From.Type = obj.TYPE_REG
	cvt.From.Reg = scratchGP
	cvt.To.Type = obj.TYPE_REG
	cvt.To.Reg = xmm
	g.add(cvt)
}

func f64bits(f float64) uint64 {
	return (*(*uint64)(ptrOf(&f)))
}

// loadConstRefPtr embeds the address of in.ConstRef as an immediate load
// into a general-purpose register (string constants; see OpConst/KindString).
func (g *amd64Gen) loadConstRefPtr(in *types.Instr, gpr int16) {
	p := g.newProg()
	p.As = x86.AMOVQ
	p.From.Type = obj.TYPE_CONST
	p.From.Offset = int64(uintptr(ptrOfValue(in.ConstRef)))
	p.To.Type = obj.TYPE_REG
	p.To.Reg = gpr
	g.add(p)
}

func (g *amd64Gen) storeGPR(gpr int16, v types.Value) {
	p := g.newProg()
	p.As = x86.AMOVQ
	p.From.Type = obj.TYPE_REG
	p.From.Reg = gpr
	p.To.Type = obj.TYPE_MEM
	p.To.Reg = x86.REG_SP
	p.To.Offset = g.slotOf(v)
	g.add(p)
}

func (g *amd64Gen) loadGPR(v types.Value, gpr int16) {
	p := g.newProg()
	p.As = x86.AMOVQ
	p.From.Type = obj.TYPE_MEM
	p.From.Reg = x86.REG_SP
	p.From.Offset = g.slotOf(v)
	p.To.Type = obj.TYPE_REG
	p.To.Reg = gpr
	g.add(p)
}

func (g *amd64Gen) generate(fn *types.Function) ([]byte, int, []int, error) {
	b, err := asm.NewBuilder("amd64", 1024)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("jit: new assembler builder: %w", err)
	}
	g.b = b

	// Prologue: reserve the value frame. Args arrive per the unified
	// convention — function JIT: XMM0/XMM1/XMM2; loop JIT: one pointer in
	// RDI to the caller's marshalled slot array (argument slots, then locals).
	reserve := g.newProg()
	reserve.As = x86.ASUBQ
	reserve.From.Type = obj.TYPE_CONST
	reserve.To.Type = obj.TYPE_REG
	reserve.To.Reg = x86.REG_SP
	g.add(reserve) // From.Offset patched once slot count is known, below

	// The Function/Loop Compiler tells the two regimes apart unambiguously:
	// function JIT always assigns a ReturnType (§4.4's safety net defaults
	// it to Number); loop JIT always leaves it KindVoid (§4.5).
	isFuncJIT := fn.ReturnType != types.KindVoid

	if isFuncJIT {
		argXMMs := []int16{x86.REG_X0, x86.REG_X1, x86.REG_X2}
		for i, in := range fn.Entry.Instrs {
			if in.Op == types.OpLoadSlot && in.IsArg && i < len(argXMMs) {
				g.storeFromXMM(argXMMs[in.Slot], in.Dest)
			}
		}
	} else {
		// Loop JIT: RDI holds a *float64 array laid out [argSlots...,
		// localSlots...]; copy each element into its value's frame slot.
		idx := int64(0)
		for _, in := range fn.Entry.Instrs {
			if in.Op == types.OpLoadSlot {
				load := g.newProg()
				load.As = x86.AMOVSD
				load.From.Type = obj.TYPE_MEM
				load.From.Reg = x86.REG_DI
				load.From.Offset = idx * frameSlotSize
				load.To.Type = obj.TYPE_REG
				load.To.Reg = x86.REG_X0
				g.add(load)
				g.storeFromXMM(x86.REG_X0, in.Dest)
				idx++
			}
		}
	}

	for _, blk := range fn.Blocks {
		if err := g.genBlock(blk, fn); err != nil {
			return nil, 0, nil, err
		}
	}

	g.resolveBranches(fn)

	reserve.From.Offset = g.nextSlot
	for _, p := range g.restores {
		p.From.Offset = g.nextSlot
	}
	code := g.b.Assemble()
	return code, 0, g.selfCallOffsets, nil
}

func (g *amd64Gen) genBlock(blk *types.Block, fn *types.Function) error {
	g.pendingFirst = nil
	for _, in := range blk.Instrs {
		if err := g.genInstr(in, fn); err != nil {
			return err
		}
	}
	if g.pendingFirst != nil {
		g.blockProgs[blk] = g.pendingFirst
	}
	return nil
}

func (g *amd64Gen) genInstr(in *types.Instr, fn *types.Function) error {
	switch in.Op {
	case types.OpConst:
		if in.Type == types.KindString {
			g.loadConstRefPtr(in, x86.REG_AX)
			g.storeGPR(x86.REG_AX, in.Dest)
			break
		}
		g.loadImmToXMM(in.Imm, x86.REG_X0, x86.REG_AX)
		g.storeFromXMM(x86.REG_X0, in.Dest)

	case types.OpLoadSlot, types.OpStoreSlot:
		// Argument and loop-slot loads are materialized by the prologue and
		// stores only rebind the builder-level env; a function-JIT local read
		// before any store starts at zero.
		if in.Op == types.OpLoadSlot && !in.IsArg && fn.ReturnType != types.KindVoid {
			g.loadImmToXMM(0, x86.REG_X0, x86.REG_AX)
			g.storeFromXMM(x86.REG_X0, in.Dest)
		}

	case types.OpAdd, types.OpSub, types.OpMul, types.OpDiv, types.OpRem:
		if err := g.genArith(in); err != nil {
			return err
		}

	case types.OpNeg:
		g.loadToXMM(in.Args[0], x86.REG_X0)
		// XOR the sign bit: load -0.0 into X1, XORPD X0, X1.
		g.loadImmToXMM(negZeroBits(), x86.REG_X1, x86.REG_AX)
		p := g.newProg()
		p.As = x86.AXORPD
		p.From.Type = obj.TYPE_REG
		p.From.Reg = x86.REG_X1
		p.To.Type = obj.TYPE_REG
		p.To.Reg = x86.REG_X0
		g.add(p)
		g.storeFromXMM(x86.REG_X0, in.Dest)

	case types.OpCmp:
		g.genCmp(in)

	case types.OpCallHelper:
		g.genCallHelper(in)

	case types.OpCallFunc:
		g.genCallFunc(in)

	case types.OpBr:
		p := g.newProg()
		p.As = obj.AJMP
		p.To.Type = obj.TYPE_BRANCH
		g.add(p)
		g.pendingBranch(p, in.Target)

	case types.OpBrIf:
		g.loadToXMM(in.Args[0], x86.REG_X0)
		g.loadImmToXMM(0, x86.REG_X1, x86.REG_AX)
		cmp := g.newProg()
		cmp.As = x86.AUCOMISD
		cmp.From.Type = obj.TYPE_REG
		cmp.From.Reg = x86.REG_X1
		cmp.To.Type = obj.TYPE_REG
		cmp.To.Reg = x86.REG_X0
		g.add(cmp)
		jeq := g.newProg()
		jeq.As = x86.AJEQ
		jeq.To.Type = obj.TYPE_BRANCH
		g.add(jeq)
		g.pendingBranch(jeq, in.Else)
		jmp := g.newProg()
		jmp.As = obj.AJMP
		jmp.To.Type = obj.TYPE_BRANCH
		g.add(jmp)
		g.pendingBranch(jmp, in.Target)

	case types.OpRet:
		g.loadToXMM(in.Args[0], x86.REG_X0)
		g.emitFrameRestore()
		ret := g.newProg()
		ret.As = obj.ARET
		g.add(ret)

	case types.OpRetPC:
		// The resume PC is returned as an integer in AX, not as float bits.
		mov := g.newProg()
		mov.As = x86.AMOVQ
		mov.From.Type = obj.TYPE_CONST
		mov.From.Offset = int64(in.Imm)
		mov.To.Type = obj.TYPE_REG
		mov.To.Reg = x86.REG_AX
		g.add(mov)
		g.emitFrameRestore()
		ret := g.newProg()
		ret.As = obj.ARET
		g.add(ret)

	default:
		return ErrUnsupportedOpcode
	}
	return nil
}

func negZeroBits() float64 {
	var z float64
	bits := uint64(1) << 63
	*(*uint64)(ptrOf(&z)) = bits
	return z
}

func (g *amd64Gen) genArith(in *types.Instr) error {
	if in.Op == types.OpRem {
		return g.genRem(in)
	}
	g.loadToXMM(in.Args[0], x86.REG_X0)
	g.loadToXMM(in.Args[1], x86.REG_X1)
	p := g.newProg()
	switch in.Op {
	case types.OpAdd:
		p.As = x86.AADDSD
	case types.OpSub:
		p.As = x86.ASUBSD
	case types.OpMul:
		p.As = x86.AMULSD
	case types.OpDiv:
		p.As = x86.ADIVSD
	}
	p.From.Type = obj.TYPE_REG
	p.From.Reg = x86.REG_X1
	p.To.Type = obj.TYPE_REG
	p.To.Reg = x86.REG_X0
	g.add(p)
	g.storeFromXMM(x86.REG_X0, in.Dest)
	return nil
}

// genRem lowers REM via float->int64 truncation, int64 SREM, int64->float64
// conversion — exactly the sequence original_source/src/jit.rs builds with
// LLVMBuildSIToFP(LLVMBuildSRem(LLVMBuildFPToSI(lhs), LLVMBuildFPToSI(rhs))),
// never math.Mod's floating remainder.
func (g *amd64Gen) genRem(in *types.Instr) error {
	g.loadToXMM(in.Args[0], x86.REG_X0)
	cvtL := g.newProg()
	cvtL.As = x86.ACVTTSD2SQ
	cvtL.From.Type = obj.TYPE_REG
	cvtL.From.Reg = x86.REG_X0
	cvtL.To.Type = obj.TYPE_REG
	cvtL.To.Reg = x86.REG_AX
	g.add(cvtL)

	g.loadToXMM(in.Args[1], x86.REG_X0)
	cvtR := g.newProg()
	cvtR.As = x86.ACVTTSD2SQ
	cvtR.From.Type = obj.TYPE_REG
	cvtR.From.Reg = x86.REG_X0
	cvtR.To.Type = obj.TYPE_REG
	cvtR.To.Reg = x86.REG_CX
	g.add(cvtR)

	cqo := g.newProg()
	cqo.As = x86.ACQO
	g.add(cqo)

	idiv := g.newProg()
	idiv.As = x86.AIDIVQ
	idiv.From.Type = obj.TYPE_REG
	idiv.From.Reg = x86.REG_CX
	g.add(idiv)

	cvtBack := g.newProg()
	cvtBack.As = x86.ACVTSQ2SD
	cvtBack.From.Type = obj.TYPE_REG
	cvtBack.From.Reg = x86.REG_DX // remainder left in DX by IDIVQ
	cvtBack.To.Type = obj.TYPE_REG
	cvtBack.To.Reg = x86.REG_X0
	g.add(cvtBack)

	g.storeFromXMM(x86.REG_X0, in.Dest)
	return nil
}

func (g *amd64Gen) genCmp(in *types.Instr) {
	g.loadToXMM(in.Args[1], x86.REG_X0)
	g.loadToXMM(in.Args[0], x86.REG_X1)
	cmp := g.newProg()
	cmp.As = x86.AUCOMISD
	cmp.From.Type = obj.TYPE_REG
	cmp.From.Reg = x86.REG_X0
	cmp.To.Type = obj.TYPE_REG
	cmp.To.Reg = x86.REG_X1
	g.add(cmp)

	set := g.newProg()
	switch in.Pred {
	case types.PredLT:
		set.As = x86.ASETCS
	case types.PredLE:
		set.As = x86.ASETLS
	case types.PredGT:
		set.As = x86.ASETHI
	case types.PredGE:
		set.As = x86.ASETCC
	case types.PredEQ:
		set.As = x86.ASETEQ
	case types.PredNE:
		set.As = x86.ASETNE
	}
	set.To.Type = obj.TYPE_REG
	set.To.Reg = x86.REG_AX
	g.add(set)

	and := g.newProg()
	and.As = x86.AANDQ
	and.From.Type = obj.TYPE_CONST
	and.From.Offset = 0x1
	and.To.Type = obj.TYPE_REG
	and.To.Reg = x86.REG_AX
	g.add(and)

	cvt := g.newProg()
	cvt.As = x86.ACVTSQ2SD
	cvt.From.Type = obj.TYPE_REG
	cvt.From.Reg = x86.REG_AX
	cvt.To.Type = obj.TYPE_REG
	cvt.To.Reg = x86.REG_X0
	g.add(cvt)

	g.storeFromXMM(x86.REG_X0, in.Dest)
}

func (g *amd64Gen) genCallHelper(in *types.Instr) {
	switch in.Helper {
	case HelperConsoleLogString, HelperProcessStdoutWrite:
		// Single pointer argument delivered via the integer-class register
		// (AX), not XMM — these helpers take *bytecode.Value, not float64.
		if len(in.Args) > 0 {
			g.loadGPR(in.Args[0], x86.REG_AX)
		}
	default:
		argXMMs := []int16{x86.REG_X0, x86.REG_X1, x86.REG_X2}
		for i, a := range in.Args {
			if i < len(argXMMs) {
				g.loadToXMM(a, argXMMs[i])
			}
		}
	}
	addr := g.helperAddrs[in.Helper]
	mov := g.newProg()
	mov.As = x86.AMOVQ
	mov.From.Type = obj.TYPE_CONST
	mov.From.Offset = int64(addr)
	mov.To.Type = obj.TYPE_REG
	mov.To.Reg = x86.REG_BX
	g.add(mov)
	call := g.newProg()
	call.As = obj.ACALL
	call.To.Type = obj.TYPE_REG
	call.To.Reg = x86.REG_BX
	g.add(call)
	if in.Dest != 0 {
		g.storeFromXMM(x86.REG_X0, in.Dest)
	}
}

// genCallFunc emits the unified function call convention (args via
// XMM0-2, result via XMM0). Self-recursive calls embed a zero placeholder
// address whose byte offset is recorded in selfCallOffsets for the
// Executor to patch once the function's own entry address is known
// (§9 "Cyclic / self-referential codegen").
func (g *amd64Gen) genCallFunc(in *types.Instr) {
	argXMMs := []int16{x86.REG_X0, x86.REG_X1, x86.REG_X2}
	for i, a := range in.Args {
		if i < len(argXMMs) {
			g.loadToXMM(a, argXMMs[i])
		}
	}
	addr := in.CalleeAddr
	mov := g.newProg()
	mov.As = x86.AMOVQ
	mov.From.Type = obj.TYPE_CONST
	mov.From.Offset = int64(addr)
	mov.To.Type = obj.TYPE_REG
	mov.To.Reg = x86.REG_BX
	g.add(mov)
	if in.Self {
		g.selfCallOffsets = append(g.selfCallOffsets, int(mov.Pc))
	}
	call := g.newProg()
	call.As = obj.ACALL
	call.To.Type = obj.TYPE_REG
	call.To.Reg = x86.REG_BX
	g.add(call)
	g.storeFromXMM(x86.REG_X0, in.Dest)
}

// pendingBranch resolves p's target once blk has been emitted; if blk's
// first Prog is already known we resolve immediately, otherwise we defer
// via a second pass in resolveBranches.
func (g *amd64Gen) pendingBranch(p *obj.Prog, blk *types.Block) {
	if target, ok := g.blockProgs[blk]; ok {
		p.To.SetTarget(target)
		return
	}
	g.deferred = append(g.deferred, deferredBranch{p, blk})
}

type deferredBranch struct {
	prog *obj.Prog
	blk  *types.Block
}

func (g *amd64Gen) resolveBranches(fn *types.Function) {
	for _, d := range g.deferred {
		if target, ok := g.blockProgs[d.blk]; ok {
			d.prog.To.SetTarget(target)
		}
	}
}
