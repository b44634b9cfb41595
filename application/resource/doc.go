// Package resource provides the type-erased resource table.
//
// Handlers stash native values (an opened archive, a byte buffer) behind
// small integer handles instead of serialising them across the host
// boundary. Handles are allocated from a non-wrapping uint64 counter and are
// never reused while the table lives; a handle stays valid until it is
// explicitly removed.
//
// Lookups are typed through generics. A lookup of an absent handle and a
// lookup with the wrong type both report "not found":
//
//	h := table.Allocate(reader)
//	r, ok := resource.Get[*zip.Reader](table, h)
//
// Exclusive access is scoped to a Lease. Taking a second exclusive lease, or
// reading a value while an exclusive lease is live, panics with *BorrowError.
// That is a programming error, not a recoverable condition.
package resource
