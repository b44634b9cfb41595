package dispatch

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpp2334/hol-runtime/application/command"
	"github.com/hpp2334/hol-runtime/application/digest"
	"github.com/hpp2334/hol-runtime/application/presets/blob"
	"github.com/hpp2334/hol-runtime/application/scheduler"
	"github.com/hpp2334/hol-runtime/domain/entities"
	"github.com/hpp2334/hol-runtime/domain/errors"
	"github.com/hpp2334/hol-runtime/domain/ports"
	"github.com/hpp2334/hol-runtime/wireformat"
)

const md5Of123456 = "6AC1E56BC78F031059BE7BE854522C4C"

type reply struct {
	code   entities.BridgeCode
	ret    []byte
	callID int32
}

type recorder struct {
	mu      sync.Mutex
	replies []reply
}

func (r *recorder) reply(code entities.BridgeCode, ret []byte, callID int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, reply{code: code, ret: ret, callID: callID})
}

func (r *recorder) all() []reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]reply(nil), r.replies...)
}

// blobs serves fixed chunk lists by id.
type blobs map[int32][][]byte

func (b blobs) Open(_ context.Context, id int32) (ports.ChunkSource, error) {
	chunks, ok := b[id]
	if !ok {
		return nil, stdErrors.New("no such blob")
	}
	return digest.NewSliceSource(chunks...), nil
}

func newDispatcher(t *testing.T, opts ...Option) *Dispatcher {
	t.Helper()
	reg, err := command.NewRegistry(command.WithSetup(blob.Setup))
	require.NoError(t, err)
	opts = append([]Option{WithSources(blobs{
		1: {{1, 2, 3}, {4, 5, 6}},
		2: {},
	})}, opts...)
	return New(reg, opts...)
}

func TestInvokeCommand_RoundTrip(t *testing.T) {
	d := newDispatcher(t)
	h := d.Registry().Table().AllocateBlob([]byte("payload"))

	args, err := (&blob.LoadBlobArg{Data: wireformat.FromBlob(h)}).MarshalWire()
	require.NoError(t, err)
	reqBytes := wireformat.EncodeInvocationRequest(entities.InvocationRequest{
		PackageID: blob.PackageID,
		CommandID: blob.LoadBlobData,
		Arguments: args,
	})

	respBytes, err := d.InvokeCommand(context.Background(), reqBytes)
	require.NoError(t, err)

	resp, err := wireformat.DecodeInvocationResponse(respBytes)
	require.NoError(t, err)
	require.True(t, resp.Success, resp.Error())

	var ret blob.LoadBlobRet
	require.NoError(t, ret.UnmarshalWire(resp.Returns))
	assert.Equal(t, []byte("payload"), ret.Data)
}

func TestInvokeCommand_MissingCommandID(t *testing.T) {
	d := newDispatcher(t)
	reqBytes := wireformat.EncodeInvocationRequest(entities.InvocationRequest{PackageID: blob.PackageID})

	respBytes, err := d.InvokeCommand(context.Background(), reqBytes)
	require.NoError(t, err)

	resp, err := wireformat.DecodeInvocationResponse(respBytes)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Empty(t, resp.Returns)
	assert.Equal(t, "missing required field: cmd_id", resp.Error())
}

func TestInvokeCommand_Malformed(t *testing.T) {
	d := newDispatcher(t)

	_, err := d.InvokeCommand(context.Background(), []byte{0x0a, 0x09, 0x01})
	assert.ErrorIs(t, err, errors.ErrDecode)
}

func TestInvokeCommand_SizeLimit(t *testing.T) {
	d := newDispatcher(t, WithMaxRequestSize(4))

	_, err := d.InvokeCommand(context.Background(), make([]byte, 5))
	assert.ErrorIs(t, err, errors.ErrInvalidValue)
}

func TestInvokeCommand_OnPool(t *testing.T) {
	d := newDispatcher(t, WithScheduler(scheduler.NewPool(4)))
	reqBytes := wireformat.EncodeInvocationRequest(entities.InvocationRequest{
		PackageID: "hol.nope",
		CommandID: "nope",
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			respBytes, err := d.InvokeCommand(context.Background(), reqBytes)
			if !assert.NoError(t, err) {
				return
			}
			resp, err := wireformat.DecodeInvocationResponse(respBytes)
			assert.NoError(t, err)
			assert.Equal(t, "command not found: hol.nope/nope", resp.Error())
		}()
	}
	wg.Wait()
	require.NoError(t, d.Wait())
}

func TestCall_BatchDigest(t *testing.T) {
	for _, sched := range []ports.Scheduler{scheduler.NewCooperative(), scheduler.NewPool(2)} {
		d := newDispatcher(t, WithScheduler(sched))
		rec := &recorder{}

		err := d.Call(context.Background(), entities.BridgeBatchDigest,
			[]byte(`{"typs":[0,2,0],"blob_id":1}`), 7, rec.reply)
		require.NoError(t, err)
		require.NoError(t, d.Wait())

		replies := rec.all()
		require.Len(t, replies, 1)
		assert.Equal(t, entities.BridgeBatchDigest, replies[0].code)
		assert.Equal(t, int32(7), replies[0].callID)

		var results []entities.DigestResult
		require.NoError(t, json.Unmarshal(replies[0].ret, &results))
		require.Len(t, results, 2)
		assert.Equal(t, entities.DigestMD5, results[0].Algorithm)
		assert.Equal(t, md5Of123456, results[0].Value)
		assert.Equal(t, entities.DigestSHA256, results[1].Algorithm)
	}
}

func TestCall_ReplyShape(t *testing.T) {
	d := newDispatcher(t)
	rec := &recorder{}

	require.NoError(t, d.Call(context.Background(), entities.BridgeBatchDigest,
		[]byte(`{"typs":[0],"blob_id":1}`), 1, rec.reply))

	assert.JSONEq(t, `[{"typ":0,"val":"`+md5Of123456+`"}]`, string(rec.all()[0].ret))
}

func TestCall_Failures(t *testing.T) {
	tests := []struct {
		name string
		arg  string
		code string
	}{
		{name: "malformed json", arg: `{"typs":`, code: "decode"},
		{name: "no algorithms", arg: `{"typs":[],"blob_id":1}`, code: "invalid_value"},
		{name: "unknown algorithm", arg: `{"typs":[0,99],"blob_id":1}`, code: "unsupported_algorithm"},
		{name: "unknown blob", arg: `{"typs":[0],"blob_id":42}`, code: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDispatcher(t)
			rec := &recorder{}

			require.NoError(t, d.Call(context.Background(), entities.BridgeBatchDigest, []byte(tt.arg), 3, rec.reply))
			replies := rec.all()
			require.Len(t, replies, 1)

			var payload entities.BridgeError
			require.NoError(t, json.Unmarshal(replies[0].ret, &payload))
			require.NotNil(t, payload.Error)
			assert.Equal(t, tt.code, payload.Error.Code)
			assert.NotEmpty(t, payload.Error.Message)
		})
	}
}

func TestCall_UnknownCode(t *testing.T) {
	d := newDispatcher(t)
	rec := &recorder{}

	err := d.Call(context.Background(), 9, []byte(`{}`), 1, rec.reply)
	assert.ErrorIs(t, err, errors.ErrUnsupportedCall)
	assert.Empty(t, rec.all())
}

func TestBatchDigest_EmptyBlob(t *testing.T) {
	d := newDispatcher(t)

	got, err := d.BatchDigest(context.Background(), entities.BatchDigestArg{
		Algorithms: []entities.DigestAlgorithm{entities.DigestSHA1},
		BlobID:     2,
	})
	require.NoError(t, err)
	assert.Equal(t, "DA39A3EE5E6B4B0D3255BFEF95601890AFD80709", got[0].Value)
}

func TestBatchDigest_SequentialOverOneShotSource(t *testing.T) {
	oneShot := ports.ChunkSourceProviderFunc(func(context.Context, int32) (ports.ChunkSource, error) {
		return &drain{chunks: [][]byte{{1, 2, 3, 4, 5, 6}}}, nil
	})
	d := newDispatcher(t,
		WithSources(oneShot),
		WithEngine(digest.NewEngine(digest.WithStrategy(digest.Sequential))),
	)

	got, err := d.BatchDigest(context.Background(), entities.BatchDigestArg{
		Algorithms: []entities.DigestAlgorithm{entities.DigestSHA1, entities.DigestMD5},
	})
	require.NoError(t, err)
	assert.Equal(t, md5Of123456, got[1].Value)
}

func TestBatchDigest_NoProvider(t *testing.T) {
	reg, err := command.NewRegistry()
	require.NoError(t, err)
	d := New(reg)

	_, err = d.BatchDigest(context.Background(), entities.BatchDigestArg{
		Algorithms: []entities.DigestAlgorithm{entities.DigestMD5},
	})
	assert.Error(t, err)
}

// drain is a source that cannot rewind.
type drain struct {
	chunks [][]byte
}

func (d *drain) Next(context.Context) ([]byte, error) {
	if len(d.chunks) == 0 {
		return nil, nil
	}
	c := d.chunks[0]
	d.chunks = d.chunks[1:]
	return c, nil
}
