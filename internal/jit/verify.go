package jit

import (
	"fmt"

	"github.com/kaelstrand/vellum/internal/jit/types"
)

// Verify performs the structural sanity pass §4.4/§4.5 call for before a
// Function is handed to codegen: every block ends in exactly one
// terminator, every branch target belongs to this function, and every
// instruction's operands are values produced earlier in the same function
// (SSA def-before-use, checked per block in emission order since the
// Builder never backpatches an Args slice after emission).
func Verify(fn *types.Function) error {
	if fn.Entry == nil {
		return fmt.Errorf("%w: function has no entry block", ErrMalformedBytecode)
	}
	known := make(map[*types.Block]bool, len(fn.Blocks))
	for _, blk := range fn.Blocks {
		known[blk] = true
	}
	defined := make(map[types.Value]bool)
	for _, blk := range fn.Blocks {
		for i, in := range blk.Instrs {
			if i != len(blk.Instrs)-1 {
				switch in.Op {
				case types.OpBr, types.OpBrIf, types.OpRet, types.OpRetPC:
					return fmt.Errorf("%w: terminator not last in block %d", ErrMalformedBytecode, blk.ID)
				}
			}
			for _, arg := range in.Args {
				if arg != 0 && !defined[arg] {
					return fmt.Errorf("%w: use of undefined value %%%d in block %d", ErrMalformedBytecode, arg, blk.ID)
				}
			}
			if in.Target != nil && !known[in.Target] {
				return fmt.Errorf("%w: branch to foreign block", ErrMalformedBytecode)
			}
			if in.Else != nil && !known[in.Else] {
				return fmt.Errorf("%w: branch to foreign block", ErrMalformedBytecode)
			}
			if in.Dest != 0 {
				defined[in.Dest] = true
			}
		}
		if !blk.Terminated() {
			return fmt.Errorf("%w: block %d falls off the end unterminated", ErrMalformedBytecode, blk.ID)
		}
	}
	return nil
}
