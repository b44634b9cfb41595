//go:build wasip1

// Package abi manages the guest's linear memory on behalf of the host.
//
// Buffers crossing the boundary are addressed by a packed uint64 holding the
// pointer in the high 32 bits and the length in the low 32 bits. Buffers
// handed out through the exported allocate function stay pinned until
// deallocate is called, so the Go GC cannot reclaim memory the host is still
// writing into.
package abi

import (
	"fmt"
	"sync"
	"unsafe"
)

// PtrHighBits is the shift of the pointer half of a packed value.
const PtrHighBits = 32

// DefaultMaxTotalAllocations bounds the bytes pinned at once. It covers one
// default-sized file chunk plus envelopes in flight.
const DefaultMaxTotalAllocations = 512 * 1024 * 1024

var memoryManager = struct {
	ptrs  map[uint32][]byte
	total int
	limit int
	sync.Mutex
}{
	ptrs:  make(map[uint32][]byte),
	limit: DefaultMaxTotalAllocations,
}

// Option configures the memory manager.
type Option func(*settings)

type settings struct {
	maxTotal int
}

// WithMaxTotalAllocations caps pinned memory. Non-positive values are ignored.
func WithMaxTotalAllocations(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxTotal = n
		}
	}
}

// Configure applies opts to the memory manager.
func Configure(opts ...Option) {
	memoryManager.Lock()
	defer memoryManager.Unlock()

	s := settings{maxTotal: memoryManager.limit}
	for _, opt := range opts {
		opt(&s)
	}
	memoryManager.limit = s.maxTotal
}

//go:wasmexport allocate
func allocate(size uint32) uint32 {
	if size == 0 {
		return 0
	}

	memoryManager.Lock()
	defer memoryManager.Unlock()

	if memoryManager.total+int(size) > memoryManager.limit {
		panic(fmt.Sprintf("abi: allocation of %d bytes exceeds limit (pinned %d of %d)",
			size, memoryManager.total, memoryManager.limit))
	}

	buf := make([]byte, size)
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0])))
	memoryManager.ptrs[ptr] = buf
	memoryManager.total += int(size)
	return ptr
}

// deallocate unpins ptr. The recorded length is used for accounting, so a
// wrong size argument cannot corrupt the total. Unknown pointers are ignored.
//
//go:wasmexport deallocate
func deallocate(ptr uint32, _ uint32) {
	memoryManager.Lock()
	defer memoryManager.Unlock()

	buf, ok := memoryManager.ptrs[ptr]
	if !ok {
		return
	}
	delete(memoryManager.ptrs, ptr)
	memoryManager.total -= len(buf)
	if memoryManager.total < 0 {
		memoryManager.total = 0
	}
}

// FreeAllTracked unpins every allocation. Used after a trapped export, when
// the host will never release what it was handed.
func FreeAllTracked() {
	memoryManager.Lock()
	defer memoryManager.Unlock()

	clear(memoryManager.ptrs)
	memoryManager.total = 0
}

// Stats returns the number of pinned allocations and their total size.
func Stats() (count, total int) {
	memoryManager.Lock()
	defer memoryManager.Unlock()
	return len(memoryManager.ptrs), memoryManager.total
}

// PtrFromBytes copies data into a pinned buffer and returns it packed.
// Empty data packs to 0.
func PtrFromBytes(data []byte) uint64 {
	if len(data) == 0 {
		return 0
	}
	size := uint32(len(data))
	ptr := allocate(size)
	copyToMemory(ptr, data)
	return PackPtrLen(ptr, size)
}

// BytesFromPtr copies the buffer addressed by packed. 0 yields nil.
func BytesFromPtr(packed uint64) []byte {
	ptr, length := UnpackPtrLen(packed)
	if ptr == 0 || length == 0 {
		return nil
	}
	return readFromMemory(ptr, length)
}

// Take returns the contents of a buffer the host filled through allocate and
// unpins it.
func Take(packed uint64) []byte {
	data := BytesFromPtr(packed)
	DeallocatePacked(packed)
	return data
}

// DeallocatePacked unpins the buffer addressed by packed.
func DeallocatePacked(packed uint64) {
	ptr, length := UnpackPtrLen(packed)
	if ptr != 0 && length > 0 {
		deallocate(ptr, length)
	}
}

// PackPtrLen packs ptr and length. A null pointer with a length panics.
func PackPtrLen(ptr, length uint32) uint64 {
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("abi: invalid pack - null pointer with length %d", length))
	}
	return (uint64(ptr) << PtrHighBits) | uint64(length)
}

// UnpackPtrLen splits packed into pointer and length.
func UnpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> PtrHighBits)
	length = uint32(packed)
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("abi: invalid unpack - null pointer with length %d", length))
	}
	return ptr, length
}

func copyToMemory(ptr uint32, data []byte) {
	//nolint:gosec // G103: linear memory offset to pointer
	dest := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), len(data))
	copy(dest, data)
}

func readFromMemory(ptr uint32, length uint32) []byte {
	//nolint:gosec // G103: linear memory offset to pointer
	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), length)
	data := make([]byte, length)
	copy(data, src)
	return data
}
