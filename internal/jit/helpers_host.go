package jit

import (
	"fmt"
	"math"
	"os"

	"github.com/kaelstrand/vellum/internal/bytecode"
)

// Helper names are the symbolic IDs OpCallHelper instructions carry; the
// code generator resolves them to native addresses via the helperAddrs map
// passed to CodeGenerator.Generate. Keeping them as strings (rather than an
// enum shared with codegen) keeps the IR package generator-agnostic.
const (
	HelperConsoleLogF64      = "console_log_f64"
	HelperConsoleLogString   = "console_log_string"
	HelperConsoleLogNewline  = "console_log_newline"
	HelperProcessStdoutWrite = "process_stdout_write"
	HelperMathFloor          = "math_floor"
	HelperMathPow            = "math_pow"
	HelperMathRandom         = "math_random"
)

// rngState is the xorshift64 generator's mutable state, seeded once with
// the fixed constant below — matching original_source/src/jit.rs's
// math_random bit for bit, including its fixed (non-time-based) seed.
var rngState uint64 = 0xf6d582196d588cac

// xorshift64 advances the generator and returns the next raw 64-bit word.
func xorshift64() uint64 {
	x := rngState
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	rngState = x
	return x
}

// MathRandomHelper returns a float64 in [0, 1), mirroring jit.rs's
// conversion of the raw xorshift64 word into a double.
func MathRandomHelper() float64 {
	bits := xorshift64()
	return float64(bits>>11) / float64(uint64(1)<<53)
}

// MathFloorHelper and MathPowHelper back the two Math builtins the JIT
// resolves at compile time; both are pure functions of their double
// arguments, safe to call directly from generated code via the helper ABI.
func MathFloorHelper(x float64) float64     { return math.Floor(x) }
func MathPowHelper(base, exp float64) float64 { return math.Pow(base, exp) }

// ConsoleLogF64Helper, ConsoleLogStringHelper and ConsoleLogNewlineHelper
// implement console.log's per-argument dispatch (§6): each argument is
// printed space-free back to back by kind, terminated by one newline.
//
// ConsoleLogStringHelper and ProcessStdoutWriteHelper take a pointer into
// the owning ConstantTable (see types.Instr.ConstRef) rather than a Go
// string value directly: a compiled String operand is, by construction, a
// constant-table reference, and generated code only ever materializes a
// single 8-byte address for it — not a (ptr,len) pair.
func ConsoleLogF64Helper(v float64)   { fmt.Print(formatNumber(v)) }
func ConsoleLogStringHelper(v *bytecode.Value)   { fmt.Print(v.Str) }
func ConsoleLogNewlineHelper()        { fmt.Println() }
func ProcessStdoutWriteHelper(v *bytecode.Value) { os.Stdout.WriteString(v.Str) }

// formatNumber mirrors the script runtime's number-to-string conversion:
// integral values print without a trailing ".0".
func formatNumber(v float64) string {
	if v == math.Trunc(v) && !math.IsInf(v, 0) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
