// Package bytecode 定义了解释器与 JIT 共用的字节码格式：操作码、立即数宽度、
// 常量表以及解释器的值类型。本包本身只做格式定义，不做任何执行——执行要么由
// 解释器完成，要么由 internal/jit 编译成原生代码后完成。
package bytecode

import "fmt"

// OpCode 是单字节操作码。
type OpCode byte

const (
	OpEnd            OpCode = iota // END：函数/循环体结束，终止扫描与词法降级
	OpCreateContext                // CREATE_CONTEXT(num_local_var:u32)：函数入口，分配局部变量区；argc 由调用方传入，不编码在字节码里
	OpConstruct                    // CONSTRUCT(argc:u32)：new 表达式
	OpCreateObject                 // CREATE_OBJECT(len:u32)：对象字面量
	OpPushInt8                     // PUSH_INT8(i8)
	OpPushInt32                    // PUSH_INT32(i32)
	OpPushFalse                    // PUSH_FALSE
	OpPushTrue                     // PUSH_TRUE
	OpPushConst                    // PUSH_CONST(index:u32)：从常量表压栈
	OpPushThis                     // PUSH_THIS
	OpAdd                          // ADD
	OpSub                          // SUB
	OpMul                          // MUL
	OpDiv                          // DIV
	OpRem                          // REM
	OpLt                           // LT
	OpGt                           // GT
	OpLe                           // LE
	OpGe                           // GE
	OpEq                           // EQ
	OpNe                           // NE
	OpSeq                          // SEQ（===）
	OpSne                          // SNE（!==）
	OpNeg                          // NEG
	OpGetMember                    // GET_MEMBER
	OpSetMember                    // SET_MEMBER
	OpGetGlobal                    // GET_GLOBAL(index:u32)
	OpSetGlobal                    // SET_GLOBAL(index:u32)
	OpGetLocal                     // GET_LOCAL(slot:u32)
	OpSetLocal                     // SET_LOCAL(slot:u32)
	OpGetArgLocal                  // GET_ARG_LOCAL(slot:u32)
	OpSetArgLocal                  // SET_ARG_LOCAL(slot:u32)
	OpJmpIfFalse                   // JMP_IF_FALSE(rel:i32)
	OpJmp                          // JMP(rel:i32)
	OpCall                         // CALL(argc:u32)
	OpReturn                       // RETURN
	OpPushArguments                // PUSH_ARGUMENTS
	OpAsgFRestParam                // ASG_FREST_PARAM(u64)
	OpCreateArray                  // CREATE_ARRAY(len:u32)
	opCount
)

// ImmediateWidth 返回操作码之后立即数的字节数。调用方用它跳过无需解码的指令。
func (op OpCode) ImmediateWidth() int {
	switch op {
	case OpPushInt8:
		return 1
	case OpAsgFRestParam:
		return 8
	case OpCreateContext:
		return 4 // num_local_var:u32; argc is a call-site parameter, never bytecode-encoded
	case OpConstruct, OpCreateObject, OpPushInt32, OpPushConst, OpGetGlobal, OpSetGlobal,
		OpGetLocal, OpSetLocal, OpGetArgLocal, OpSetArgLocal, OpJmpIfFalse, OpJmp,
		OpCall, OpCreateArray:
		return 4
	default:
		return 0
	}
}

func (op OpCode) String() string {
	names := [...]string{
		"END", "CREATE_CONTEXT", "CONSTRUCT", "CREATE_OBJECT", "PUSH_INT8", "PUSH_INT32",
		"PUSH_FALSE", "PUSH_TRUE", "PUSH_CONST", "PUSH_THIS", "ADD", "SUB", "MUL", "DIV",
		"REM", "LT", "GT", "LE", "GE", "EQ", "NE", "SEQ", "SNE", "NEG", "GET_MEMBER",
		"SET_MEMBER", "GET_GLOBAL", "SET_GLOBAL", "GET_LOCAL", "SET_LOCAL", "GET_ARG_LOCAL",
		"SET_ARG_LOCAL", "JMP_IF_FALSE", "JMP", "CALL", "RETURN", "PUSH_ARGUMENTS",
		"ASG_FREST_PARAM", "CREATE_ARRAY",
	}
	if int(op) < len(names) {
		return names[op]
	}
	return fmt.Sprintf("OpCode(%d)", byte(op))
}

// EmbeddedFunctionID 是宿主提供、脚本可见的内建函数的稳定整数 id。
type EmbeddedFunctionID uint32

const (
	ConsoleLog EmbeddedFunctionID = iota
	ProcessStdoutWrite
	MathFloor
	MathPow
	MathRandom
)
