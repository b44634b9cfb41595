package host

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/hpp2334/hol-runtime/domain/errors"
)

func packPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << 32) | uint64(length)
}

func unpackPtrLen(packed uint64) (ptr, length uint32) {
	return uint32(packed >> 32), uint32(packed) //nolint:gosec // G115: packed halves are 32-bit
}

// readGuest copies the buffer addressed by packed out of guest memory.
func readGuest(mod api.Module, packed uint64, limit uint32) ([]byte, error) {
	ptr, length := unpackPtrLen(packed)
	if length == 0 {
		return nil, nil
	}
	if length > limit {
		return nil, &errors.MemoryError{Requested: int(length), Limit: int(limit)}
	}
	view, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("guest buffer %#x+%d is out of range", ptr, length)
	}
	out := make([]byte, length)
	copy(out, view)
	return out, nil
}

// writeGuest allocates a guest buffer through the "allocate" export, copies
// data into it and returns it packed. The guest owns the buffer afterwards.
func writeGuest(ctx context.Context, mod api.Module, data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, nil
	}
	allocate := mod.ExportedFunction("allocate")
	if allocate == nil {
		return 0, fmt.Errorf("%w: missing export %q", ErrInvalidGuest, "allocate")
	}
	results, err := allocate.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("guest allocate(%d): %w", len(data), err)
	}
	if len(results) == 0 || results[0] == 0 {
		return 0, fmt.Errorf("guest allocate(%d) returned no buffer", len(data))
	}
	ptr := uint32(results[0]) //nolint:gosec // G115: wasm32 pointer
	if !mod.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("guest buffer %#x+%d is out of range", ptr, len(data))
	}
	return packPtrLen(ptr, uint32(len(data))), nil //nolint:gosec // G115: bounded by allocate
}

// freeGuest releases a buffer the guest handed to the host.
func freeGuest(ctx context.Context, mod api.Module, packed uint64) error {
	ptr, length := unpackPtrLen(packed)
	if ptr == 0 {
		return nil
	}
	deallocate := mod.ExportedFunction("deallocate")
	if deallocate == nil {
		return fmt.Errorf("%w: missing export %q", ErrInvalidGuest, "deallocate")
	}
	_, err := deallocate.Call(ctx, uint64(ptr), uint64(length))
	return err
}
