//go:build wasip1

package abi

import (
	"fmt"
	"sync"
	"unsafe"
)

// DefaultMaxTotalAllocations bounds the memory the host can make the guest pin.
const DefaultMaxTotalAllocations = 100 * 1024 * 1024 // 100 MB

// memoryManager keeps a reference to every buffer handed to the host so the Go GC
// does not collect it before the host is done with it.
var memoryManager = struct {
	ptrs           map[uint32][]byte // ptr -> slice reference
	totalAllocated int               // Total bytes currently allocated
	maxTotal       int
	sync.Mutex
}{
	ptrs:     make(map[uint32][]byte),
	maxTotal: DefaultMaxTotalAllocations,
}

// Option configures the memory manager.
type Option func(*memoryConfig)

type memoryConfig struct {
	maxTotal int
}

// WithMaxTotalAllocations changes the allocation limit. Non-positive values are ignored.
func WithMaxTotalAllocations(limit int) Option {
	return func(c *memoryConfig) {
		if limit > 0 {
			c.maxTotal = limit
		}
	}
}

// Configure applies options to the memory manager.
func Configure(opts ...Option) {
	memoryManager.Lock()
	defer memoryManager.Unlock()

	cfg := memoryConfig{maxTotal: memoryManager.maxTotal}
	for _, opt := range opts {
		opt(&cfg)
	}
	memoryManager.maxTotal = cfg.maxTotal
}

// allocate reserves a buffer the host writes request bytes or host-call replies into.
// Panics if allocation would exceed the configured limit.
//
//go:wasmexport allocate
func allocate(size uint32) uint32 {
	if size == 0 {
		return 0
	}

	memoryManager.Lock()
	defer memoryManager.Unlock()

	if memoryManager.totalAllocated+int(size) > memoryManager.maxTotal {
		panic(fmt.Sprintf("abi: memory allocation limit exceeded (requested: %d bytes, current: %d bytes, limit: %d bytes)",
			size, memoryManager.totalAllocated, memoryManager.maxTotal))
	}

	buf := make([]byte, size)
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0])))

	memoryManager.ptrs[ptr] = buf
	memoryManager.totalAllocated += int(size)

	return ptr
}

// deallocate releases a buffer. Untracked pointers are ignored, and the stored
// length is used for accounting rather than the caller's size.
//
//go:wasmexport deallocate
func deallocate(ptr uint32, _ uint32) {
	memoryManager.Lock()
	defer memoryManager.Unlock()

	storedSlice, exists := memoryManager.ptrs[ptr]
	if !exists {
		return
	}

	delete(memoryManager.ptrs, ptr)
	memoryManager.totalAllocated -= len(storedSlice)
	if memoryManager.totalAllocated < 0 {
		memoryManager.totalAllocated = 0
	}
}

// FreeAllTracked frees all memory currently tracked by the SDK.
// Called during panic recovery to prevent leaks.
func FreeAllTracked() {
	memoryManager.Lock()
	defer memoryManager.Unlock()

	for ptr := range memoryManager.ptrs {
		delete(memoryManager.ptrs, ptr)
	}
	memoryManager.totalAllocated = 0
}

// Stats returns the number of tracked buffers and their total size.
func Stats() (allocations, totalBytes int) {
	memoryManager.Lock()
	defer memoryManager.Unlock()
	return len(memoryManager.ptrs), memoryManager.totalAllocated
}

// PtrFromBytes copies data into a tracked buffer and returns it packed.
// Used for everything the guest hands to the host.
func PtrFromBytes(data []byte) uint64 {
	if len(data) == 0 {
		return 0
	}
	size := uint32(len(data))
	ptr := allocate(size)
	copyToMemory(ptr, data)
	return PackPtrLen(ptr, size)
}

// BytesFromPtr returns a copy of the buffer a packed value points to.
func BytesFromPtr(packed uint64) []byte {
	ptr, length := UnpackPtrLen(packed)
	if ptr == 0 || length == 0 {
		return nil
	}
	return readFromMemory(ptr, length)
}

// TakeBytes copies a buffer the host wrote into guest memory and releases it.
func TakeBytes(packed uint64) []byte {
	data := BytesFromPtr(packed)
	DeallocatePacked(packed)
	return data
}

// DeallocatePacked releases the buffer a packed value points to.
func DeallocatePacked(packed uint64) {
	ptr, length := UnpackPtrLen(packed)
	if ptr != 0 && length > 0 {
		deallocate(ptr, length)
	}
}

// copyToMemory copies data to WASM linear memory at the given pointer.
func copyToMemory(ptr uint32, data []byte) {
	// WASM linear memory: uint32 offset -> pointer conversion is safe and necessary
	//nolint:gosec // G103: Valid unsafe.Pointer use for WASM linear memory access
	dest := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), len(data))
	copy(dest, data)
}

// readFromMemory reads data from WASM linear memory.
func readFromMemory(ptr uint32, length uint32) []byte {
	// WASM linear memory: uint32 offset -> pointer conversion is safe and necessary
	//nolint:gosec // G103: Valid unsafe.Pointer use for WASM linear memory access
	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), length)
	data := make([]byte, length)
	copy(data, src)
	return data
}
