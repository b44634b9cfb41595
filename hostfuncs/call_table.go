package hostfuncs

import (
	"context"
	"fmt"
	"sync"
)

// Reply is the payload a guest sends back for a bridge call.
type Reply struct {
	Payload []byte
	Code    int32
}

// CallTable tracks bridge calls awaiting a send_ret from the guest.
type CallTable struct {
	pending map[int32]chan Reply
	nextID  int32
	mu      sync.Mutex
}

// NewCallTable creates an empty table.
func NewCallTable() *CallTable {
	return &CallTable{pending: make(map[int32]chan Reply)}
}

// Begin allocates a call id and the channel its reply arrives on.
func (t *CallTable) Begin() (int32, <-chan Reply) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	ch := make(chan Reply, 1)
	t.pending[id] = ch
	return id, ch
}

// Deliver routes a reply to the waiting call. It reports false for an
// unknown or already answered call id.
func (t *CallTable) Deliver(code int32, payload []byte, callID int32) bool {
	t.mu.Lock()
	ch, ok := t.pending[callID]
	delete(t.pending, callID)
	t.mu.Unlock()

	if !ok {
		return false
	}
	ch <- Reply{Code: code, Payload: payload}
	return true
}

// Cancel forgets a call whose reply is no longer wanted.
func (t *CallTable) Cancel(callID int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, callID)
}

// Pending returns the number of calls awaiting a reply.
func (t *CallTable) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Await waits for the reply of callID on ch, cancelling the call if ctx
// ends first.
func (t *CallTable) Await(ctx context.Context, callID int32, ch <-chan Reply) (Reply, error) {
	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		t.Cancel(callID)
		return Reply{}, fmt.Errorf("call %d: %w", callID, ctx.Err())
	}
}
