package resource

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/hpp2334/hol-runtime/domain/entities"
)

// BorrowError is the panic value raised when the borrow discipline is violated.
type BorrowError struct {
	Handle uint64
	Reason string
}

func (e *BorrowError) Error() string {
	return fmt.Sprintf("resource %d: %s", e.Handle, e.Reason)
}

// Table stores native values behind handles.
type Table struct {
	entries map[uint64]*entry
	logger  *slog.Logger
	nextID  uint64
	mu      sync.Mutex
}

type entry struct {
	value     any
	shared    int
	exclusive bool
}

// Option configures a Table.
type Option func(*Table)

// WithLogger sets the logger used to report close failures of removed values.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Table) {
		t.logger = logger
	}
}

// NewTable creates an empty table.
func NewTable(opts ...Option) *Table {
	t := &Table{
		entries: make(map[uint64]*entry),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Allocate stores value and returns a fresh handle. It never fails.
func (t *Table) Allocate(value any) entities.ResourceHandle {
	return entities.ResourceHandle{ID: t.insert(value)}
}

// AllocateBlob stores a byte sequence and returns a fresh blob handle.
// The table takes ownership of data.
func (t *Table) AllocateBlob(data []byte) entities.BlobHandle {
	if data == nil {
		data = []byte{}
	}
	return entities.BlobHandle{ID: t.insert(data)}
}

func (t *Table) insert(value any) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.entries[id] = &entry{value: value}
	return id
}

// GetBlob returns the bytes behind a blob handle. The returned slice is
// owned by the table and must not be modified.
func (t *Table) GetBlob(h entities.BlobHandle) ([]byte, bool) {
	return Get[[]byte](t, h.Resource())
}

// Remove deletes the entry for h. Removing an absent handle is a no-op.
// Values implementing io.Closer are closed.
func (t *Table) Remove(h entities.ResourceHandle) {
	t.mu.Lock()
	e, ok := t.entries[h.ID]
	if !ok {
		t.mu.Unlock()
		return
	}
	if e.exclusive || e.shared > 0 {
		t.mu.Unlock()
		panic(&BorrowError{Handle: h.ID, Reason: "removed while borrowed"})
	}
	delete(t.entries, h.ID)
	t.mu.Unlock()

	t.release(h.ID, e.value)
}

// RemoveBlob deletes the entry for a blob handle.
func (t *Table) RemoveBlob(h entities.BlobHandle) {
	t.Remove(h.Resource())
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Close removes every entry and closes values implementing io.Closer.
// The id counter is kept, so handles issued afterwards never collide with
// earlier ones.
func (t *Table) Close() error {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[uint64]*entry)
	t.mu.Unlock()

	var errs []error
	for id, e := range entries {
		if err := t.release(id, e.value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Table) release(id uint64, value any) error {
	c, ok := value.(io.Closer)
	if !ok {
		return nil
	}
	if err := c.Close(); err != nil {
		t.logger.Warn("resource: close failed", "handle", id, "error", err)
		return fmt.Errorf("close resource %d: %w", id, err)
	}
	return nil
}

// acquire looks up an entry under the lock, checks the borrow state and,
// when shared is set and the value is accepted by match, records a shared
// borrow before the lock is dropped.
func (t *Table) acquire(id uint64, shared bool, match func(any) bool) (*entry, any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return nil, nil, false
	}
	if e.exclusive {
		panic(&BorrowError{Handle: id, Reason: "already mutably borrowed"})
	}
	if !match(e.value) {
		return nil, nil, false
	}
	if shared {
		e.shared++
	}
	return e, e.value, true
}

func (t *Table) unshare(e *entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e.shared--
}
