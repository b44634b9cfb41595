package resource

import "github.com/hpp2334/hol-runtime/domain/entities"

// Get returns the value behind h if it exists and has type T.
//
// The borrow check comes before the type check: while h is under an
// exclusive lease, Get panics with *BorrowError even when T would not
// match the stored value.
func Get[T any](t *Table, h entities.ResourceHandle) (T, bool) {
	var zero T
	_, v, ok := t.acquire(h.ID, false, isA[T])
	if !ok {
		return zero, false
	}
	return v.(T), true
}

// With calls fn with the value behind h while holding a shared borrow.
// It reports false without calling fn when the handle is absent or the
// value is not a T. Like Get, it panics with *BorrowError while h is under
// an exclusive lease, whatever T is.
func With[T any](t *Table, h entities.ResourceHandle, fn func(T) error) (bool, error) {
	e, v, ok := t.acquire(h.ID, true, isA[T])
	if !ok {
		return false, nil
	}
	defer t.unshare(e)
	return true, fn(v.(T))
}

func isA[T any](v any) bool {
	_, ok := v.(T)
	return ok
}

// Lease is an exclusive borrow of one entry. The value is written back to
// the table on Release.
type Lease[T any] struct {
	table    *Table
	entry    *entry
	value    T
	released bool
}

// BorrowMut takes an exclusive lease on the value behind h.
// It reports false when the handle is absent or the value is not a T.
func BorrowMut[T any](t *Table, h entities.ResourceHandle) (*Lease[T], bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[h.ID]
	if !ok {
		return nil, false
	}
	if e.exclusive {
		panic(&BorrowError{Handle: h.ID, Reason: "already mutably borrowed"})
	}
	if e.shared > 0 {
		panic(&BorrowError{Handle: h.ID, Reason: "already borrowed"})
	}
	v, ok := e.value.(T)
	if !ok {
		return nil, false
	}
	e.exclusive = true
	return &Lease[T]{table: t, entry: e, value: v}, true
}

// Value returns a pointer to the leased value. It is only valid until Release.
func (l *Lease[T]) Value() *T {
	return &l.value
}

// Release stores the value back and ends the lease. It is idempotent.
func (l *Lease[T]) Release() {
	l.table.mu.Lock()
	defer l.table.mu.Unlock()
	if l.released {
		return
	}
	l.released = true
	l.entry.value = l.value
	l.entry.exclusive = false
}

// WithMut calls fn with exclusive access to the value behind h.
// Changes made through the pointer are stored when fn returns.
func WithMut[T any](t *Table, h entities.ResourceHandle, fn func(*T) error) (bool, error) {
	lease, ok := BorrowMut[T](t, h)
	if !ok {
		return false, nil
	}
	defer lease.Release()
	return true, fn(lease.Value())
}
