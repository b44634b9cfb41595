package command

import (
	"bytes"
	"context"
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/hpp2334/hol-runtime/application/resource"
	"github.com/hpp2334/hol-runtime/domain/entities"
	"github.com/hpp2334/hol-runtime/domain/errors"
	"github.com/hpp2334/hol-runtime/wireformat"
)

type echoArg struct {
	Text string `json:"text" validate:"max=8"`
}

func (a *echoArg) UnmarshalWire(b []byte) error {
	return wireformat.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return wireformat.ConsumeString(typ, b, &a.Text)
		}
		return wireformat.Skip, nil
	})
}

type echoRet struct {
	Text string `json:"text"`
}

func (r *echoRet) MarshalWire() ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	return wireformat.AppendString(nil, 1, r.Text), nil
}

func encodeText(s string) []byte {
	return wireformat.AppendString(nil, 1, s)
}

func echo(_ InvocationContext, arg *echoArg) (*echoRet, error) {
	return &echoRet{Text: "echo:" + arg.Text}, nil
}

func newTestRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	reg, err := NewRegistry(opts...)
	require.NoError(t, err)
	return reg
}

func invoke(reg *Registry, pkg, cmd string, args []byte) entities.InvocationResponse {
	return reg.Invoke(context.Background(), entities.InvocationRequest{
		PackageID: pkg,
		CommandID: cmd,
		Arguments: args,
	})
}

func TestNewRegistry_Empty(t *testing.T) {
	reg := newTestRegistry(t)
	assert.Empty(t, reg.Keys())
	assert.NotNil(t, reg.Table())
}

func TestRegistry_InvokeTyped(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, Register(reg, "test", "echo", echo))

	resp := invoke(reg, "test", "echo", encodeText("hi"))
	require.True(t, resp.Success, resp.Error())
	assert.Nil(t, resp.ErrorMessage)

	var ret echoArg
	require.NoError(t, ret.UnmarshalWire(resp.Returns))
	assert.Equal(t, "echo:hi", ret.Text)
}

func TestRegistry_EmptyResultIsSuccess(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, Register(reg, "test", "noop",
		func(InvocationContext, *wireformat.Empty) (*wireformat.Empty, error) {
			return &wireformat.Empty{}, nil
		}))

	resp := invoke(reg, "test", "noop", nil)
	require.True(t, resp.Success)
	assert.NotNil(t, resp.Returns)
	assert.Empty(t, resp.Returns)
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, Register(reg, "test", "echo", echo))

	err := Register(reg, "test", "echo", echo)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDuplicateCommand)

	assert.Panics(t, func() {
		MustRegister(reg, "test", "echo", echo)
	})

	// Same command id under another package is a distinct key.
	require.NoError(t, Register(reg, "other", "echo", echo))
}

func TestRegistry_HandleRejectsEmptyIDs(t *testing.T) {
	reg := newTestRegistry(t)
	raw := func(InvocationContext, []byte) ([]byte, error) { return nil, nil }

	assert.ErrorIs(t, reg.Handle("", "cmd", raw), errors.ErrMissingField)
	assert.ErrorIs(t, reg.Handle("pkg", "", raw), errors.ErrMissingField)
	assert.Error(t, reg.Handle("pkg", "cmd", nil))
}

func TestRegistry_InvokeFailures(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, Register(reg, "test", "echo", echo))
	require.NoError(t, Register(reg, "test", "fail",
		func(InvocationContext, *echoArg) (*echoRet, error) {
			return nil, &errors.MissingResourceError{Kind: "blob", Handle: 3}
		}))

	tests := []struct {
		name    string
		pkg     string
		cmd     string
		args    []byte
		message string
	}{
		{name: "missing package id", cmd: "echo", message: "missing required field: pkg_id"},
		{name: "missing command id", pkg: "test", message: "missing required field: cmd_id"},
		{name: "unknown command", pkg: "test", cmd: "nope", message: "command not found: test/nope"},
		{name: "unknown package", pkg: "hol.nope", cmd: "echo", message: "command not found: hol.nope/echo"},
		{name: "malformed arguments", pkg: "test", cmd: "echo", args: []byte{0x0a, 0x05, 'x'}, message: "failed to decode echoArg"},
		{name: "validation failure", pkg: "test", cmd: "echo", args: encodeText("much too long"), message: "text failed max=8"},
		{name: "handler error", pkg: "test", cmd: "fail", message: "missing blob resource: 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := invoke(reg, tt.pkg, tt.cmd, tt.args)
			assert.False(t, resp.Success)
			assert.Empty(t, resp.Returns)
			require.NotNil(t, resp.ErrorMessage)
			assert.Contains(t, *resp.ErrorMessage, tt.message)
		})
	}
}

func TestRegistry_PanicBecomesFailure(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, Register(reg, "test", "boom",
		func(InvocationContext, *echoArg) (*echoRet, error) {
			panic("kaboom")
		}))

	resp := invoke(reg, "test", "boom", nil)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error(), "command test/boom panicked: kaboom")

	// The registry keeps serving after a panic.
	require.NoError(t, Register(reg, "test", "echo", echo))
	assert.True(t, invoke(reg, "test", "echo", nil).Success)
}

func TestRegistry_BorrowViolationIsReraised(t *testing.T) {
	reg := newTestRegistry(t)
	h := reg.Table().Allocate(1)
	require.NoError(t, Register(reg, "test", "double_borrow",
		func(ic InvocationContext, _ *echoArg) (*echoRet, error) {
			lease, _ := resource.BorrowMut[int](ic.Table(), h)
			defer lease.Release()
			resource.BorrowMut[int](ic.Table(), h)
			return &echoRet{}, nil
		}))

	assert.Panics(t, func() {
		invoke(reg, "test", "double_borrow", nil)
	})
}

func TestRegistry_InvocationContext(t *testing.T) {
	reg := newTestRegistry(t)

	var (
		gotKey   entities.CommandKey
		gotID    string
		gotValue any
	)
	require.NoError(t, Register(reg, "test", "ctx",
		func(ic InvocationContext, _ *echoArg) (*echoRet, error) {
			gotKey = ic.Key()
			gotID = ic.RequestID()
			ic.SetValue("k", "v")
			gotValue, _ = ic.GetValue("k")

			_, ok := FromContext(ic)
			assert.True(t, ok)
			return &echoRet{}, nil
		}))

	ctx := WithRequestID(context.Background(), "req-1")
	resp := reg.Invoke(ctx, entities.InvocationRequest{PackageID: "test", CommandID: "ctx"})
	require.True(t, resp.Success)

	assert.Equal(t, entities.NewCommandKey("test", "ctx"), gotKey)
	assert.Equal(t, "req-1", gotID)
	assert.Equal(t, "v", gotValue)

	invoke(reg, "test", "ctx", nil)
	assert.NotEmpty(t, gotID, "a request id is generated when none is attached")
	assert.NotEqual(t, "req-1", gotID)
}

func TestRegistry_SharedTable(t *testing.T) {
	table := resource.NewTable()
	reg := newTestRegistry(t, WithTable(table))

	require.NoError(t, Register(reg, "test", "store",
		func(ic InvocationContext, arg *echoArg) (*wireformat.Resource, error) {
			return wireformat.FromResource(ic.Table().Allocate(arg.Text)), nil
		}))

	resp := invoke(reg, "test", "store", encodeText("kept"))
	require.True(t, resp.Success)

	var h wireformat.Resource
	require.NoError(t, h.UnmarshalWire(resp.Returns))
	v, ok := resource.Get[string](table, h.Handle())
	require.True(t, ok)
	assert.Equal(t, "kept", v)
}

func TestRegistry_KeysAndHas(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, Register(reg, "b", "two", echo))
	require.NoError(t, Register(reg, "a", "two", echo))
	require.NoError(t, Register(reg, "a", "one", echo))

	assert.Equal(t, []entities.CommandKey{
		entities.NewCommandKey("a", "one"),
		entities.NewCommandKey("a", "two"),
		entities.NewCommandKey("b", "two"),
	}, reg.Keys())
	assert.True(t, reg.Has(entities.NewCommandKey("a", "one")))
	assert.False(t, reg.Has(entities.NewCommandKey("b", "one")))
}

func TestRegistry_WithSetup(t *testing.T) {
	setup := func(r *Registry) error {
		return Register(r, "preset", "echo", echo)
	}

	reg := newTestRegistry(t, WithSetup(setup))
	assert.True(t, reg.Has(entities.NewCommandKey("preset", "echo")))

	_, err := NewRegistry(WithSetup(setup), WithSetup(setup))
	assert.ErrorIs(t, err, errors.ErrDuplicateCommand)
}

func TestRegistry_Manifest(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, Register(reg, "test", "echo", echo, Describe("echo text back")))
	require.NoError(t, reg.Handle("test", "raw", func(InvocationContext, []byte) ([]byte, error) {
		return nil, nil
	}))

	manifest, err := reg.Manifest()
	require.NoError(t, err)
	require.Len(t, manifest, 2)

	assert.Equal(t, "echo", manifest[0].CommandID)
	assert.Equal(t, "echo text back", manifest[0].Description)
	var argSchema map[string]any
	require.NoError(t, json.Unmarshal(manifest[0].ArgSchema, &argSchema))
	assert.Contains(t, argSchema["properties"], "text")
	assert.NotEmpty(t, manifest[0].ResultSchema)

	assert.Equal(t, "raw", manifest[1].CommandID)
	assert.Empty(t, manifest[1].ArgSchema)
}

func TestMiddleware_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next ByteHandler) ByteHandler {
			return func(ic InvocationContext, payload []byte) ([]byte, error) {
				order = append(order, name+":before")
				out, err := next(ic, payload)
				order = append(order, name+":after")
				return out, err
			}
		}
	}

	reg := newTestRegistry(t, WithMiddleware(mark("first"), mark("second")))
	require.NoError(t, Register(reg, "test", "echo", echo))
	invoke(reg, "test", "echo", nil)

	assert.Equal(t, []string{"first:before", "second:before", "second:after", "first:after"}, order)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reg := newTestRegistry(t, WithMiddleware(LoggingMiddleware(logger)))
	require.NoError(t, Register(reg, "test", "echo", echo))
	require.NoError(t, Register(reg, "test", "fail",
		func(InvocationContext, *echoArg) (*echoRet, error) {
			return nil, stdErrors.New("nope")
		}))

	invoke(reg, "test", "echo", nil)
	invoke(reg, "test", "fail", nil)

	out := buf.String()
	assert.Contains(t, out, "command completed")
	assert.Contains(t, out, "command=test/echo")
	assert.Contains(t, out, "command failed")
	assert.Contains(t, out, "error=nope")
}

func TestMetricsMiddleware(t *testing.T) {
	promReg := prometheus.NewRegistry()
	metrics, err := NewMetrics(promReg)
	require.NoError(t, err)

	reg := newTestRegistry(t, WithMiddleware(MetricsMiddleware(metrics)))
	require.NoError(t, Register(reg, "test", "echo", echo))

	invoke(reg, "test", "echo", nil)
	invoke(reg, "test", "echo", encodeText("far too long"))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Invocations.WithLabelValues("test", "echo", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Invocations.WithLabelValues("test", "echo", "failure")))

	again, err := NewMetrics(promReg)
	require.NoError(t, err)
	assert.Same(t, metrics.Invocations, again.Invocations, "existing collectors are reused")
}

func TestRegistry_ConcurrentInvoke(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, Register(reg, "test", "echo", echo))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, invoke(reg, "test", "echo", encodeText("x")).Success)
		}()
	}
	wg.Wait()
}
