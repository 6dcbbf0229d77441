package jit

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// StatsSnapshot is an offline diagnostic dump of the Executor's current
// compilation state — entry PCs, call/iteration counts and cannot_jit
// flags — written for manual inspection after a run. It owns no part of
// the JIT's decision making: §6 rules out a configuration surface for the
// subsystem, so this is write-only telemetry, modeled on internal/pkg's
// use of go-toml/v2 for sola.toml (here repurposed for stats, not config).
type StatsSnapshot struct {
	Functions []FunctionStat `toml:"functions"`
	Loops     []LoopStat     `toml:"loops"`
}

// FunctionStat mirrors one FunctionRecord.
type FunctionStat struct {
	EntryPC   int  `toml:"entry_pc"`
	CallCount int  `toml:"call_count"`
	Compiled  bool `toml:"compiled"`
	CannotJIT bool `toml:"cannot_jit"`
}

// LoopStat mirrors one LoopRecord.
type LoopStat struct {
	HeaderPC  int  `toml:"header_pc"`
	IterCount int  `toml:"iter_count"`
	Compiled  bool `toml:"compiled"`
	CannotJIT bool `toml:"cannot_jit"`
}

// DumpStats marshals a snapshot to TOML and writes it to path. It is never
// called from the hot path — only from diagnostic tooling or test
// harnesses wanting a human-readable record of what got compiled.
func DumpStats(path string, snap StatsSnapshot) error {
	data, err := toml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("jit: marshal stats: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("jit: write stats file: %w", err)
	}
	return nil
}

// LoadStats reads back a snapshot previously written by DumpStats.
func LoadStats(path string) (StatsSnapshot, error) {
	var snap StatsSnapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, fmt.Errorf("jit: read stats file: %w", err)
	}
	if err := toml.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("jit: unmarshal stats: %w", err)
	}
	return snap, nil
}
