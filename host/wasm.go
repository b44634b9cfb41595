package host

import (
	"context"
	"log/slog"

	"github.com/tetratelabs/wazero/api"

	"github.com/hpp2334/hol-runtime/hostfuncs"
)

// HostModuleName is the import module the guest links against.
const HostModuleName = "hol_host"

type hostModule struct {
	blobs          *hostfuncs.BlobStore
	calls          *hostfuncs.CallTable
	sink           *hostfuncs.LogSink
	logger         *slog.Logger
	maxMessageSize uint32
}

func (e *Executor) hostModule() *hostModule {
	return &hostModule{
		blobs:          e.blobs,
		calls:          e.calls,
		sink:           hostfuncs.NewLogSink(e.logger),
		logger:         e.logger,
		maxMessageSize: e.maxMessageSize,
	}
}

func (e *Executor) registerHostFunctions(ctx context.Context) error {
	h := e.hostModule()
	builder := e.runtime.NewHostModuleBuilder(HostModuleName)

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.nextFileChunk),
			[]api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI64}).
		WithParameterNames("blob_id").
		Export("next_file_chunk")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.sendRet),
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeI32}, nil).
		WithParameterNames("code", "ret", "call_id").
		Export("send_ret")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.logMessage),
			[]api.ValueType{api.ValueTypeI64}, nil).
		WithParameterNames("record").
		Export("log_message")

	_, err := builder.Instantiate(ctx)
	return err
}

// nextFileChunk returns the next chunk of a blob in a guest buffer, or 0 at
// end of stream. Read failures also end the stream; the caller that
// registered the reader observes the error itself.
func (h *hostModule) nextFileChunk(ctx context.Context, mod api.Module, stack []uint64) {
	id := api.DecodeI32(stack[0])
	chunk, err := h.blobs.NextChunk(id)
	if err != nil {
		h.logger.ErrorContext(ctx, "host: next_file_chunk failed", "blob_id", id, "error", err)
		stack[0] = 0
		return
	}
	packed, err := writeGuest(ctx, mod, chunk)
	if err != nil {
		h.logger.ErrorContext(ctx, "host: failed to hand chunk to guest", "blob_id", id, "error", err)
		h.blobs.Release(id)
		packed = 0
	}
	stack[0] = packed
}

// sendRet delivers the reply of a bridge call. The guest frees the buffer
// once the import returns.
func (h *hostModule) sendRet(ctx context.Context, mod api.Module, stack []uint64) {
	code := api.DecodeI32(stack[0])
	callID := api.DecodeI32(stack[2])
	payload, err := readGuest(mod, stack[1], h.maxMessageSize)
	if err != nil {
		h.logger.ErrorContext(ctx, "host: unreadable send_ret payload", "call_id", callID, "error", err)
		payload = nil
	}
	if !h.calls.Deliver(code, payload, callID) {
		h.logger.WarnContext(ctx, "host: reply for unknown call", "call_id", callID, "code", code)
	}
}

func (h *hostModule) logMessage(ctx context.Context, mod api.Module, stack []uint64) {
	payload, err := readGuest(mod, stack[0], h.maxMessageSize)
	if err != nil {
		h.logger.WarnContext(ctx, "host: unreadable guest log record", "error", err)
		return
	}
	h.sink.Handle(ctx, payload)
}
