// Package wasmcontext carries the context of the invocation currently running
// in the guest and converts contexts to and from the wire form shipped with
// log records.
package wasmcontext

import (
	stdcontext "context"
	"sync"
	"time"

	"github.com/hpp2334/hol-runtime/application/command"
	"github.com/hpp2334/hol-runtime/domain/entities"
)

// The guest is single-threaded; the store only guards against host-side tests
// that drive it from several goroutines.
var contextStore = struct {
	ctx stdcontext.Context
	sync.RWMutex
}{
	ctx: stdcontext.Background(),
}

// SetCurrentContext records the context of the export being served.
// Log records emitted without a request-scoped context borrow its request id.
func SetCurrentContext(ctx stdcontext.Context) {
	contextStore.Lock()
	defer contextStore.Unlock()
	contextStore.ctx = ctx
}

// GetCurrentContext returns the context set by SetCurrentContext, or
// context.Background().
func GetCurrentContext() stdcontext.Context {
	contextStore.RLock()
	defer contextStore.RUnlock()
	if contextStore.ctx == nil {
		return stdcontext.Background()
	}
	return contextStore.ctx
}

// ResetContext resets the current context to background.
func ResetContext() {
	SetCurrentContext(stdcontext.Background())
}

// Resolve returns ctx when it carries a request id and the current context
// otherwise.
func Resolve(ctx stdcontext.Context) stdcontext.Context {
	if ctx != nil {
		if _, ok := command.RequestIDFrom(ctx); ok {
			return ctx
		}
	}
	return GetCurrentContext()
}

// ContextToWire extracts deadline, cancellation and request id from ctx.
func ContextToWire(ctx stdcontext.Context) entities.ContextWire {
	wire := entities.ContextWire{}
	if ctx == nil {
		return wire
	}

	if deadline, ok := ctx.Deadline(); ok {
		wire.Deadline = &deadline
		if timeout := time.Until(deadline); timeout > 0 {
			wire.TimeoutMs = timeout.Milliseconds()
		}
	}

	select {
	case <-ctx.Done():
		wire.Canceled = true
	default:
	}

	if id, ok := command.RequestIDFrom(ctx); ok {
		wire.RequestID = id
	}
	return wire
}

// WireToContext rebuilds a context from its wire form. The returned
// CancelFunc must be called once the context is no longer needed.
func WireToContext(parent stdcontext.Context, wire entities.ContextWire) (stdcontext.Context, stdcontext.CancelFunc) {
	if parent == nil {
		parent = stdcontext.Background()
	}

	var (
		ctx    stdcontext.Context
		cancel stdcontext.CancelFunc
	)
	switch {
	case wire.Deadline != nil:
		ctx, cancel = stdcontext.WithDeadline(parent, *wire.Deadline)
	case wire.TimeoutMs > 0:
		ctx, cancel = stdcontext.WithTimeout(parent, time.Duration(wire.TimeoutMs)*time.Millisecond)
	default:
		ctx, cancel = stdcontext.WithCancel(parent)
	}

	if wire.RequestID != "" {
		ctx = command.WithRequestID(ctx, wire.RequestID)
	}
	if wire.Canceled {
		cancel()
	}
	return ctx, cancel
}
