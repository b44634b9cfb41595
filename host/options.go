package host

import (
	"log/slog"

	"github.com/hpp2334/hol-runtime/hostfuncs"
)

// DefaultMaxMessageSize caps envelopes, replies and log records read out of
// guest memory.
const DefaultMaxMessageSize = 64 * 1024 * 1024

// Option configures an Executor.
type Option func(*Executor)

// WithBlobStore serves file chunks from store instead of a private one.
func WithBlobStore(store *hostfuncs.BlobStore) Option {
	return func(e *Executor) {
		e.blobs = store
	}
}

// WithCallTable routes send_ret replies through calls.
func WithCallTable(calls *hostfuncs.CallTable) Option {
	return func(e *Executor) {
		e.calls = calls
	}
}

// WithLogger sets the logger for host diagnostics and guest records.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithMaxMessageSize bounds buffers read from guest memory. Zero keeps the
// default.
func WithMaxMessageSize(n uint32) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxMessageSize = n
		}
	}
}

// WithMemoryLimitPages caps guest linear memory in 64KiB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(e *Executor) {
		e.memoryLimitPages = pages
	}
}
