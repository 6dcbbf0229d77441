//go:build windows

package jit

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	memCommit            = 0x1000
	memReserve           = 0x2000
	memRelease           = 0x8000
	pageExecuteReadWrite = 0x40
)

// allocExecutable mirrors the teacher's internal/jit/mmap_windows.go,
// reusing golang.org/x/sys/windows instead of manually resolving
// kernel32.dll procedures.
func allocExecutable(size int) ([]byte, error) {
	pageSize := 4096
	alignedSize := (size + pageSize - 1) &^ (pageSize - 1)

	addr, err := windows.VirtualAlloc(0, uintptr(alignedSize), memCommit|memReserve, pageExecuteReadWrite)
	if addr == 0 {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), alignedSize), nil
}

// freeExecutable releases memory obtained from allocExecutable.
func freeExecutable(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&mem[0]))
	return windows.VirtualFree(addr, 0, memRelease)
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
