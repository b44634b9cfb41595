// Package guest adapts a hol.Runtime to the raw guest ABI: byte buffers in,
// byte buffers out, replies through a callback. The wasip1 build wires the
// adapter to the exported and imported functions of the module.
package guest

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	hol "github.com/hpp2334/hol-runtime"
	"github.com/hpp2334/hol-runtime/application/command"
	"github.com/hpp2334/hol-runtime/domain/entities"
	"github.com/hpp2334/hol-runtime/domain/errors"
	"github.com/hpp2334/hol-runtime/internal/wasmcontext"
	"github.com/hpp2334/hol-runtime/wireformat"
)

// SendFunc hands a bridge reply to the host.
type SendFunc func(code int32, payload []byte, callID int32)

// Bridge serves the guest exports from a Runtime.
type Bridge struct {
	rt     *hol.Runtime
	logger *slog.Logger
}

// NewBridge creates a Bridge over rt.
func NewBridge(rt *hol.Runtime, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{rt: rt, logger: logger}
}

// Runtime returns the runtime the bridge serves.
func (b *Bridge) Runtime() *hol.Runtime { return b.rt }

func (b *Bridge) begin() (context.Context, func()) {
	ctx := command.WithRequestID(context.Background(), uuid.NewString())
	wasmcontext.SetCurrentContext(ctx)
	return ctx, wasmcontext.ResetContext
}

// InvokeCommand always answers with a response envelope. Requests the
// runtime rejects outright become failed responses.
func (b *Bridge) InvokeCommand(req []byte) []byte {
	ctx, done := b.begin()
	defer done()

	out, err := b.rt.InvokeCommand(ctx, req)
	if err != nil {
		b.logger.WarnContext(ctx, "rejected request envelope", "bytes", len(req), "error", err)
		return wireformat.EncodeInvocationResponse(entities.InvocationFailure(err.Error()))
	}
	return out
}

// Call runs a bridge call and makes sure exactly one reply reaches the host
// before it returns, including for calls the runtime refuses to start.
func (b *Bridge) Call(code int32, arg []byte, callID int32, send SendFunc) {
	ctx, done := b.begin()
	defer done()

	replied := false
	reply := func(c entities.BridgeCode, ret []byte, id int32) {
		replied = true
		send(int32(c), ret, id)
	}

	err := b.rt.Call(ctx, entities.BridgeCode(code), arg, callID, reply)
	if err == nil {
		err = b.rt.Wait()
	}
	if err != nil && !replied {
		b.logger.ErrorContext(ctx, "bridge call refused", "code", code, "call_id", callID, "error", err)
		payload, merr := json.Marshal(entities.BridgeError{Error: errors.ToErrorDetail(err)})
		if merr != nil {
			payload = []byte(`{"error":{"type":"internal","message":"bridge call refused"}}`)
		}
		send(code, payload, callID)
	}
}
