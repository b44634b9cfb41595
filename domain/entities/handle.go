package entities

import "fmt"

// ResourceHandle references a native value stored in the resource table.
// Ids come from a non-wrapping uint64 counter and are never reused within
// the lifetime of a table.
type ResourceHandle struct {
	ID uint64 `json:"id"`
}

// String implements fmt.Stringer.
func (h ResourceHandle) String() string {
	return fmt.Sprintf("Resource(%d)", h.ID)
}

// BlobHandle references a raw byte sequence stored in the resource table.
// It shares the id space of ResourceHandle.
type BlobHandle struct {
	ID uint64 `json:"id"`
}

// String implements fmt.Stringer.
func (h BlobHandle) String() string {
	return fmt.Sprintf("Blob(%d)", h.ID)
}

// Resource returns the generic form of the blob handle.
func (h BlobHandle) Resource() ResourceHandle {
	return ResourceHandle{ID: h.ID}
}
