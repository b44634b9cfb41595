// Package log provides structured logging (slog) for the runtime guest.
// Records are serialized and shipped to the host, which re-emits them on
// its own logger.
package log

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/hpp2334/hol-runtime/internal/wasmcontext"
)

// WasmLogHandler implements slog.Handler and routes records to the host.
type WasmLogHandler struct {
	out    func([]byte)
	attrs  []LogAttrWire
	groups string
	opts   handlerConfig
}

// HandlerOption configures the WasmLogHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	writer    io.Writer
	level     slog.Leveler
	addSource bool
}

func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		level: slog.LevelInfo,
	}
}

// WithLevel sets the minimum level. Records below it are dropped in the
// guest without a host round-trip.
func WithLevel(level slog.Leveler) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithSource adds the caller's file and line as a "source" attribute.
func WithSource(enabled bool) HandlerOption {
	return func(c *handlerConfig) {
		c.addSource = enabled
	}
}

// WithWriter writes encoded records to w, one JSON document per line,
// instead of sending them to the host.
func WithWriter(w io.Writer) HandlerOption {
	return func(c *handlerConfig) {
		c.writer = w
	}
}

// NewHandler creates a WasmLogHandler.
func NewHandler(opts ...HandlerOption) *WasmLogHandler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	h := &WasmLogHandler{opts: cfg, out: send}
	if cfg.writer != nil {
		w := cfg.writer
		h.out = func(b []byte) {
			_, _ = w.Write(append(b, '\n'))
		}
	}
	return h
}

// Install makes a WasmLogHandler the process-wide default logger.
func Install(opts ...HandlerOption) *slog.Logger {
	logger := slog.New(NewHandler(opts...))
	slog.SetDefault(logger)
	return logger
}

// Enabled reports whether the handler handles records at the given level.
func (h *WasmLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level.Level()
}

// Handle encodes the record and ships it.
func (h *WasmLogHandler) Handle(ctx context.Context, record slog.Record) error {
	msg := LogMessageWire{
		Context:   wasmcontext.ContextToWire(wasmcontext.Resolve(ctx)),
		Level:     record.Level.String(),
		Message:   record.Message,
		Timestamp: record.Time,
	}
	msg.Attrs = append(msg.Attrs, h.attrs...)
	if h.opts.addSource && record.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{record.PC}).Next()
		msg.Attrs = append(msg.Attrs, LogAttrWire{
			Key:   "source",
			Type:  "string",
			Value: fmt.Sprintf("%s:%d", frame.File, frame.Line),
		})
	}
	record.Attrs(func(attr slog.Attr) bool {
		msg.Attrs = appendAttr(msg.Attrs, h.groups, attr)
		return true
	})

	data, err := json.Marshal(msg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log: failed to encode record %q: %v\n", record.Message, err)
		return nil
	}
	h.out(data)
	return nil
}

// WithAttrs returns a handler that adds attrs to every record.
func (h *WasmLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = append([]LogAttrWire(nil), h.attrs...)
	for _, a := range attrs {
		clone.attrs = appendAttr(clone.attrs, h.groups, a)
	}
	return &clone
}

// WithGroup returns a handler that prefixes later attribute keys with name.
func (h *WasmLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = joinKey(h.groups, name)
	return &clone
}
