//go:build !windows

package jit

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// allocExecutable maps a page-aligned, read/write/exec region for one
// compiled function or loop's machine code. Grounded on the teacher's
// internal/jit/mmap_unix.go, rewritten against golang.org/x/sys/unix
// instead of raw syscall.Syscall6 — the library already in go.mod for
// exactly this purpose.
func allocExecutable(size int) ([]byte, error) {
	pageSize := unix.Getpagesize()
	alignedSize := (size + pageSize - 1) &^ (pageSize - 1)

	mem, err := unix.Mmap(-1, 0, alignedSize,
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}
	return mem, nil
}

// freeExecutable releases memory obtained from allocExecutable.
func freeExecutable(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	return unix.Munmap(mem)
}

// installCode copies assembled machine code into a freshly mapped
// executable region and returns its entry address.
func installCode(code []byte) (uintptr, []byte, error) {
	mem, err := allocExecutable(len(code))
	if err != nil {
		return 0, nil, err
	}
	copy(mem, code)
	return uintptr(unsafe.Pointer(&mem[0])), mem, nil
}
