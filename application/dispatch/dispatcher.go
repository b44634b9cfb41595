// Package dispatch is the boundary between the host and the runtime. It
// decodes command envelopes, routes numeric-code bridge calls and runs the
// work on the configured scheduler.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hpp2334/hol-runtime/application/command"
	"github.com/hpp2334/hol-runtime/application/digest"
	"github.com/hpp2334/hol-runtime/application/scheduler"
	"github.com/hpp2334/hol-runtime/application/validation"
	"github.com/hpp2334/hol-runtime/domain/entities"
	"github.com/hpp2334/hol-runtime/domain/errors"
	"github.com/hpp2334/hol-runtime/domain/ports"
	"github.com/hpp2334/hol-runtime/wireformat"
)

// ReplyFunc delivers the JSON result of a bridge call back to the host.
type ReplyFunc func(code entities.BridgeCode, ret []byte, callID int32)

// Dispatcher routes host requests to the command registry and the digest
// engine.
type Dispatcher struct {
	registry       *command.Registry
	engine         *digest.Engine
	sources        ports.ChunkSourceProvider
	scheduler      ports.Scheduler
	logger         *slog.Logger
	maxRequestSize int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithScheduler sets the backend tasks run on. The default is cooperative.
func WithScheduler(s ports.Scheduler) Option {
	return func(d *Dispatcher) {
		d.scheduler = s
	}
}

// WithEngine sets the digest engine.
func WithEngine(e *digest.Engine) Option {
	return func(d *Dispatcher) {
		d.engine = e
	}
}

// WithSources sets the provider that resolves bridge blob ids.
func WithSources(p ports.ChunkSourceProvider) Option {
	return func(d *Dispatcher) {
		d.sources = p
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMaxRequestSize rejects encoded requests larger than n bytes.
// Zero disables the limit.
func WithMaxRequestSize(n int) Option {
	return func(d *Dispatcher) {
		d.maxRequestSize = n
	}
}

// New creates a Dispatcher over reg.
func New(reg *command.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.scheduler == nil {
		d.scheduler = scheduler.NewCooperative()
	}
	if d.engine == nil {
		d.engine = digest.NewEngine(digest.WithLogger(d.logger))
	}
	return d
}

// InvokeCommand decodes an encoded request envelope, runs the command and
// returns the encoded response envelope. Only undecodable input is
// reported as an error; every command failure is inside the response.
func (d *Dispatcher) InvokeCommand(ctx context.Context, reqBytes []byte) ([]byte, error) {
	if d.maxRequestSize > 0 && len(reqBytes) > d.maxRequestSize {
		return nil, &errors.InvalidValueError{
			Message: fmt.Sprintf("request of %d bytes exceeds limit of %d", len(reqBytes), d.maxRequestSize),
		}
	}
	req, err := wireformat.DecodeInvocationRequest(reqBytes)
	if err != nil {
		return nil, &errors.DecodeError{Type: "InvokeCommandRequest", Err: err}
	}

	ctx = ensureRequestID(ctx)
	done := make(chan entities.InvocationResponse, 1)
	d.scheduler.Go(ctx, func(ctx context.Context) error {
		done <- d.registry.Invoke(ctx, req)
		return nil
	})

	select {
	case resp := <-done:
		return wireformat.EncodeInvocationResponse(resp), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Call starts the bridge operation selected by code. The result is
// delivered through reply, possibly after Call has returned. Failures of a
// started operation are replied as a BridgeError payload; an unknown code
// is returned directly and reply is never called.
func (d *Dispatcher) Call(ctx context.Context, code entities.BridgeCode, arg []byte, callID int32, reply ReplyFunc) error {
	var run func(ctx context.Context, arg []byte) (any, error)
	switch code {
	case entities.BridgeBatchDigest:
		run = d.batchDigestJSON
	default:
		return &errors.UnsupportedCallError{Code: code}
	}

	ctx = ensureRequestID(ctx)
	payload := append([]byte(nil), arg...)
	d.scheduler.Go(ctx, func(ctx context.Context) error {
		ret, err := run(ctx, payload)
		if err != nil {
			id, _ := command.RequestIDFrom(ctx)
			d.logger.ErrorContext(ctx, "bridge call failed",
				"code", int32(code), "call_id", callID, "request_id", id, "error", err)
			ret = entities.BridgeError{Error: errors.ToErrorDetail(err)}
		}

		out, err := json.Marshal(ret)
		if err != nil {
			d.logger.ErrorContext(ctx, "bridge reply not encodable", "call_id", callID, "error", err)
			out = []byte(`{"error":{"type":"codec","code":"encode","message":"reply not encodable"}}`)
		}
		reply(code, out, callID)
		return nil
	})
	return nil
}

// ensureRequestID tags ctx with a fresh request id unless the caller
// already supplied one.
func ensureRequestID(ctx context.Context) context.Context {
	if _, ok := command.RequestIDFrom(ctx); ok {
		return ctx
	}
	return command.WithRequestID(ctx, uuid.NewString())
}

func (d *Dispatcher) batchDigestJSON(ctx context.Context, payload []byte) (any, error) {
	var arg entities.BatchDigestArg
	if err := json.Unmarshal(payload, &arg); err != nil {
		return nil, &errors.DecodeError{Type: "BatchDigestArg", Err: err}
	}
	return d.BatchDigest(ctx, arg)
}

// BatchDigest computes the requested digests over the source named by
// arg.BlobID and waits for the result.
func (d *Dispatcher) BatchDigest(ctx context.Context, arg entities.BatchDigestArg) ([]entities.DigestResult, error) {
	if err := validation.Struct(&arg); err != nil {
		return nil, err
	}
	// Reject unknown codes before the source is opened.
	for _, alg := range arg.Algorithms {
		if !digest.IsSupported(alg) {
			return nil, &errors.UnsupportedAlgorithmError{Algorithm: alg}
		}
	}
	if d.sources == nil {
		return nil, fmt.Errorf("batch digest: no chunk source provider configured")
	}

	src, err := d.sources.Open(ctx, arg.BlobID)
	if err != nil {
		return nil, fmt.Errorf("open blob %d: %w", arg.BlobID, err)
	}
	if d.engine.Strategy() == digest.Sequential {
		if src, err = digest.AsRewindable(ctx, src); err != nil {
			return nil, err
		}
	}
	return d.engine.Compute(ctx, arg.Algorithms, src)
}

// Registry returns the command registry.
func (d *Dispatcher) Registry() *command.Registry {
	return d.registry
}

// Wait blocks until every spawned task has finished.
func (d *Dispatcher) Wait() error {
	return d.scheduler.Wait()
}
