package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/hpp2334/hol-runtime/domain/entities"
	"github.com/hpp2334/hol-runtime/hostfuncs"
	"github.com/hpp2334/hol-runtime/wireformat"
)

// Guest is an instantiated runtime module. Calls into it are serialized.
type Guest struct {
	exec   *Executor
	module api.Module
	mu     sync.Mutex
}

func newGuest(e *Executor, mod api.Module) *Guest {
	return &Guest{exec: e, module: mod}
}

// Close releases the module instance.
func (g *Guest) Close(ctx context.Context) error {
	return g.module.Close(ctx)
}

// InvokeCommand sends an encoded request envelope and returns the encoded
// response envelope.
func (g *Guest) InvokeCommand(ctx context.Context, req []byte) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ptr, length := uint32(0), uint32(0)
	if len(req) > 0 {
		packed, err := writeGuest(ctx, g.module, req)
		if err != nil {
			return nil, err
		}
		ptr, length = unpackPtrLen(packed)
	}

	results, err := g.module.ExportedFunction("invoke_command").Call(ctx, uint64(ptr), uint64(length))
	if err != nil {
		return nil, fmt.Errorf("invoke_command: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("invoke_command returned no result")
	}

	resp, err := readGuest(g.module, results[0], g.exec.maxMessageSize)
	if ferr := freeGuest(ctx, g.module, results[0]); ferr != nil {
		g.exec.logger.WarnContext(ctx, "host: failed to free response buffer", "error", ferr)
	}
	if err != nil {
		return nil, fmt.Errorf("invoke_command response: %w", err)
	}
	return resp, nil
}

// Invoke is InvokeCommand over decoded envelopes.
func (g *Guest) Invoke(ctx context.Context, req entities.InvocationRequest) (entities.InvocationResponse, error) {
	out, err := g.InvokeCommand(ctx, wireformat.EncodeInvocationRequest(req))
	if err != nil {
		return entities.InvocationResponse{}, err
	}
	return wireformat.DecodeInvocationResponse(out)
}

// Call performs a bridge call and returns the JSON reply. The guest replies
// through send_ret before the export returns.
func (g *Guest) Call(ctx context.Context, code entities.BridgeCode, arg []byte) (hostfuncs.Reply, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	calls := g.exec.calls
	callID, replies := calls.Begin()

	packed, err := writeGuest(ctx, g.module, arg)
	if err != nil {
		calls.Cancel(callID)
		return hostfuncs.Reply{}, err
	}
	ptr, length := unpackPtrLen(packed)

	_, err = g.module.ExportedFunction("call").Call(ctx,
		api.EncodeI32(int32(code)), uint64(ptr), uint64(length), api.EncodeI32(callID))
	if err != nil {
		calls.Cancel(callID)
		return hostfuncs.Reply{}, fmt.Errorf("call %d: %w", code, err)
	}

	select {
	case reply := <-replies:
		return reply, nil
	default:
		calls.Cancel(callID)
		return hostfuncs.Reply{}, fmt.Errorf("call %d: guest returned without replying to call %d", code, callID)
	}
}

type recordingReader struct {
	r   io.Reader
	err error
}

func (r *recordingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil && err != io.EOF {
		r.err = err
	}
	return n, err
}

// BatchDigest streams r into the guest and computes every algorithm over it
// in one bridge call.
func (g *Guest) BatchDigest(ctx context.Context, algs []entities.DigestAlgorithm, r io.Reader) ([]entities.DigestResult, error) {
	rec := &recordingReader{r: r}
	blobID := g.exec.blobs.RegisterSized(rec, hostfuncs.SizeHint(r))
	defer g.exec.blobs.Release(blobID)

	arg, err := json.Marshal(entities.BatchDigestArg{Algorithms: algs, BlobID: blobID})
	if err != nil {
		return nil, err
	}
	reply, err := g.Call(ctx, entities.BridgeBatchDigest, arg)
	if err != nil {
		return nil, err
	}
	if rec.err != nil {
		return nil, fmt.Errorf("read blob %d: %w", blobID, rec.err)
	}
	return decodeDigestReply(reply.Payload)
}

func decodeDigestReply(payload []byte) ([]entities.DigestResult, error) {
	if trimmed := bytes.TrimSpace(payload); len(trimmed) > 0 && trimmed[0] == '{' {
		var failure entities.BridgeError
		if err := json.Unmarshal(trimmed, &failure); err != nil {
			return nil, fmt.Errorf("decode bridge error: %w", err)
		}
		if failure.Error == nil {
			return nil, fmt.Errorf("bridge call failed without detail")
		}
		return nil, failure.Error
	}

	var results []entities.DigestResult
	if err := json.Unmarshal(payload, &results); err != nil {
		return nil, fmt.Errorf("decode digest results: %w", err)
	}
	return results, nil
}
