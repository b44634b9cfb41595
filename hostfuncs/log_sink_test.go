package hostfuncs

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpp2334/hol-runtime/domain/entities"
	hollog "github.com/hpp2334/hol-runtime/log"
)

func TestLogSink_Handle(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))

	payload, err := json.Marshal(hollog.LogMessageWire{
		Level:   "INFO",
		Message: "zip opened",
		Context: entities.ContextWire{RequestID: "r-1"},
		Attrs:   []hollog.LogAttrWire{{Key: "entries", Type: "int64", Value: "3"}},
	})
	require.NoError(t, err)

	sink.Handle(context.Background(), payload)

	out := buf.String()
	assert.Contains(t, out, `msg="zip opened"`)
	assert.Contains(t, out, "source=guest")
	assert.Contains(t, out, "request_id=r-1")
	assert.Contains(t, out, "entries=3")
}

func TestLogSink_Undecodable(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))

	sink.Handle(context.Background(), []byte("not json"))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, `msg="undecodable guest log record"`)
	assert.Contains(t, out, `payload="not json"`)
}

func TestNewLogSink_DefaultLogger(t *testing.T) {
	assert.NotNil(t, NewLogSink(nil))
}
