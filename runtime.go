package hol

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"

	"github.com/hpp2334/hol-runtime/application/command"
	"github.com/hpp2334/hol-runtime/application/digest"
	"github.com/hpp2334/hol-runtime/application/dispatch"
	"github.com/hpp2334/hol-runtime/application/presets/archive"
	"github.com/hpp2334/hol-runtime/application/presets/blob"
	"github.com/hpp2334/hol-runtime/application/resource"
	"github.com/hpp2334/hol-runtime/application/scheduler"
	"github.com/hpp2334/hol-runtime/domain/entities"
	"github.com/hpp2334/hol-runtime/domain/ports"
)

// Version is the runtime version reported in manifests.
const Version = "0.1.0"

// Runtime wires the runtime components together. It is created once per
// guest instance and owns every resource allocated through it.
type Runtime struct {
	table      *resource.Table
	registry   *command.Registry
	engine     *digest.Engine
	scheduler  ports.Scheduler
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

// New builds a Runtime with the preset command sets registered.
func New(opts ...Option) (*Runtime, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.scheduler == nil {
		o.scheduler = scheduler.NewCooperative()
	}

	middleware := []command.Middleware{command.LoggingMiddleware(o.logger)}
	if o.metrics != nil {
		m, err := command.NewMetrics(o.metrics)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		middleware = append(middleware, command.MetricsMiddleware(m))
	}
	middleware = append(middleware, o.middleware...)

	table := resource.NewTable(resource.WithLogger(o.logger))
	regOpts := []command.Option{
		command.WithTable(table),
		command.WithLogger(o.logger),
		command.WithMiddleware(middleware...),
		command.WithSetup(archive.Setup),
		command.WithSetup(blob.Setup),
	}
	for _, setup := range o.setups {
		regOpts = append(regOpts, command.WithSetup(setup))
	}
	registry, err := command.NewRegistry(regOpts...)
	if err != nil {
		return nil, fmt.Errorf("register commands: %w", err)
	}

	engine := digest.NewEngine(append([]digest.Option{digest.WithLogger(o.logger)}, o.digestOpts...)...)
	dispatcher := dispatch.New(registry,
		dispatch.WithScheduler(o.scheduler),
		dispatch.WithEngine(engine),
		dispatch.WithSources(o.sources),
		dispatch.WithLogger(o.logger),
		dispatch.WithMaxRequestSize(o.maxRequestSize),
	)

	return &Runtime{
		table:      table,
		registry:   registry,
		engine:     engine,
		scheduler:  o.scheduler,
		dispatcher: dispatcher,
		logger:     o.logger,
	}, nil
}

// Table returns the resource table.
func (r *Runtime) Table() *resource.Table { return r.table }

// Registry returns the command registry.
func (r *Runtime) Registry() *command.Registry { return r.registry }

// Engine returns the digest engine.
func (r *Runtime) Engine() *digest.Engine { return r.engine }

// Scheduler returns the task backend.
func (r *Runtime) Scheduler() ports.Scheduler { return r.scheduler }

// Dispatcher returns the host boundary.
func (r *Runtime) Dispatcher() *dispatch.Dispatcher { return r.dispatcher }

// InvokeCommand answers an encoded request envelope with an encoded
// response envelope. The error is non-nil only for undecodable or oversized
// requests.
func (r *Runtime) InvokeCommand(ctx context.Context, req []byte) ([]byte, error) {
	return r.dispatcher.InvokeCommand(ctx, req)
}

// Invoke runs a decoded request on the calling goroutine.
func (r *Runtime) Invoke(ctx context.Context, req entities.InvocationRequest) entities.InvocationResponse {
	return r.registry.Invoke(ctx, req)
}

// Call starts a bridge call; see dispatch.Dispatcher.Call.
func (r *Runtime) Call(ctx context.Context, code entities.BridgeCode, arg []byte, callID int32, reply dispatch.ReplyFunc) error {
	return r.dispatcher.Call(ctx, code, arg, callID, reply)
}

// BatchDigest computes digests over a provider blob and waits for them.
func (r *Runtime) BatchDigest(ctx context.Context, arg entities.BatchDigestArg) ([]entities.DigestResult, error) {
	return r.dispatcher.BatchDigest(ctx, arg)
}

// Digest computes digests over src directly.
func (r *Runtime) Digest(ctx context.Context, algs []entities.DigestAlgorithm, src ports.ChunkSource) ([]entities.DigestResult, error) {
	return r.engine.Compute(ctx, algs, src)
}

// Manifest describes the registered commands and supported algorithms.
func (r *Runtime) Manifest() (entities.RuntimeManifest, error) {
	commands, err := r.registry.Manifest()
	if err != nil {
		return entities.RuntimeManifest{}, err
	}
	supported := digest.Supported()
	algs := make([]string, len(supported))
	for i, a := range supported {
		algs[i] = a.String()
	}
	return entities.RuntimeManifest{
		Version:    Version,
		Commands:   commands,
		Algorithms: algs,
	}, nil
}

// Wait blocks until every spawned task has finished.
func (r *Runtime) Wait() error {
	return r.dispatcher.Wait()
}

// Close waits for outstanding tasks and releases every resource.
func (r *Runtime) Close() error {
	return stdErrors.Join(r.dispatcher.Wait(), r.table.Close())
}
