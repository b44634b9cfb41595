package host

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/hpp2334/hol-runtime/hostfuncs"
)

// Executor owns a wazero runtime with the host module instantiated.
type Executor struct {
	runtime          wazero.Runtime
	blobs            *hostfuncs.BlobStore
	calls            *hostfuncs.CallTable
	logger           *slog.Logger
	maxMessageSize   uint32
	memoryLimitPages uint32
}

// NewExecutor creates a runtime, instantiates WASI and the host module.
func NewExecutor(ctx context.Context, opts ...Option) (*Executor, error) {
	e := &Executor{maxMessageSize: DefaultMaxMessageSize}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.blobs == nil {
		e.blobs = hostfuncs.NewBlobStore()
	}
	if e.calls == nil {
		e.calls = hostfuncs.NewCallTable()
	}

	cfg := wazero.NewRuntimeConfig()
	if e.memoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(e.memoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate wasi: %w", err)
	}
	e.runtime = rt

	if err := e.registerHostFunctions(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}
	return e, nil
}

// Close releases the runtime and every guest loaded into it.
func (e *Executor) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Blobs returns the store file chunks are served from.
func (e *Executor) Blobs() *hostfuncs.BlobStore { return e.blobs }

// Calls returns the table of bridge calls awaiting a reply.
func (e *Executor) Calls() *hostfuncs.CallTable { return e.calls }

// LoadGuest compiles, checks and instantiates a guest module.
func (e *Executor) LoadGuest(ctx context.Context, wasmBytes []byte) (*Guest, error) {
	compiled, err := Compile(ctx, e.runtime, wasmBytes)
	if err != nil {
		return nil, err
	}

	cfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions("_initialize").
		WithStdout(os.Stderr).
		WithStderr(os.Stderr).
		WithSysWalltime().
		WithSysNanotime().
		WithRandSource(rand.Reader)
	mod, err := e.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate guest: %w", err)
	}
	return newGuest(e, mod), nil
}
