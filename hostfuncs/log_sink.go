package hostfuncs

import (
	"context"
	"encoding/json"
	"log/slog"

	hollog "github.com/hpp2334/hol-runtime/log"
)

// LogSink re-emits guest log records on a host logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink writing to logger, or slog.Default when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("source", "guest")}
}

// Handle decodes one encoded record and logs it. Undecodable payloads are
// logged raw.
func (s *LogSink) Handle(ctx context.Context, payload []byte) {
	var msg hollog.LogMessageWire
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.WarnContext(ctx, "undecodable guest log record", "payload", string(payload), "error", err)
		return
	}
	msg.Emit(ctx, s.logger)
}
