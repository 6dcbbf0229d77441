//go:build !amd64

package jit

import "github.com/kaelstrand/vellum/internal/jit/types"

// On any architecture other than amd64 there is no code generator: every
// compilation attempt fails closed into cannot_jit, and the interpreter
// remains the only execution path (§4's platform-dependent cap applies
// transitively — zero platforms supported means zero compiled functions).
type unsupportedCodeGenerator struct{}

func newPlatformCodeGenerator() types.CodeGenerator { return unsupportedCodeGenerator{} }

func (unsupportedCodeGenerator) Generate(fn *types.Function, helperAddrs map[string]uintptr) ([]byte, int, []int, error) {
	return nil, 0, nil, ErrUnsupportedOpcode
}
