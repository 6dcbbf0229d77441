// Command vellum-jitstat reads a previously dumped JIT stats snapshot
// (internal/jit.DumpStats) and prints a human-readable summary. It is a
// diagnostic tool, not part of the JIT's functional surface (§6).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kaelstrand/vellum/internal/jit"
)

var path = flag.String("stats", "", "path to a jit.DumpStats TOML snapshot")

func main() {
	flag.Parse()

	if *path == "" {
		fmt.Println("vellum-jitstat: dump a JIT stats snapshot")
		fmt.Println()
		fmt.Println("Usage: vellum-jitstat -stats <snapshot.toml>")
		os.Exit(0)
	}

	snap, err := jit.LoadStats(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading stats: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("functions: %d\n", len(snap.Functions))
	for _, f := range snap.Functions {
		fmt.Printf("  pc=%d calls=%d compiled=%v cannot_jit=%v\n", f.EntryPC, f.CallCount, f.Compiled, f.CannotJIT)
	}
	fmt.Printf("loops: %d\n", len(snap.Loops))
	for _, l := range snap.Loops {
		fmt.Printf("  pc=%d iters=%d compiled=%v cannot_jit=%v\n", l.HeaderPC, l.IterCount, l.Compiled, l.CannotJIT)
	}
}
