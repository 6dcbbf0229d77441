package jit

import (
	"fmt"
	"os"
	"sync"
)

// tracer 是一个按环境变量 VELLUM_JIT_TRACE 开关的调试日志器，仿照
// internal/lsp2/logger.go 的 SOLA_LSP_DEBUG 模式：默认静默，不影响 JIT
// 的编译决策或产出，只在手动调试时打开。
type tracer struct {
	mu      sync.Mutex
	enabled bool
}

var trace = newTracer()

func newTracer() *tracer {
	v := os.Getenv("VELLUM_JIT_TRACE")
	return &tracer{enabled: v == "1" || v == "true" || v == "on"}
}

// Debugf writes one line to stderr when tracing is enabled. It never
// blocks compilation and never changes JIT outcomes.
func (t *tracer) Debugf(format string, args ...interface{}) {
	if !t.enabled {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(os.Stderr, "[jit] "+format+"\n", args...)
}
