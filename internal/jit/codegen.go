package jit

import "github.com/kaelstrand/vellum/internal/jit/types"

// CodeGenerator is implemented per architecture (codegen_amd64.go today;
// codegen_unsupported.go on anything else, always failing). §4's "platform
// dependent cap" and calling convention are owned by the active generator.
var ActiveCodeGenerator types.CodeGenerator = newPlatformCodeGenerator()
