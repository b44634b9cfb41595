package guest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpp2334/hol-runtime/domain/entities"
	"github.com/hpp2334/hol-runtime/internal/testutil"
	"github.com/hpp2334/hol-runtime/wireformat"
)

type sent struct {
	payload []byte
	code    int32
	callID  int32
}

// chunkHost serves fixed blobs the way the host's next_file_chunk does.
type chunkHost struct {
	blobs map[int32][][]byte
	pulls int
}

func (h *chunkHost) pull(id int32) []byte {
	h.pulls++
	chunks := h.blobs[id]
	if len(chunks) == 0 {
		return nil
	}
	h.blobs[id] = chunks[1:]
	return chunks[0]
}

func newBridge(t *testing.T, host *chunkHost) *Bridge {
	t.Helper()
	b, err := Install(host.pull, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Runtime().Close() })
	return b
}

func TestBridge_InvokeCommand(t *testing.T) {
	b := newBridge(t, &chunkHost{})

	out := b.InvokeCommand(wireformat.EncodeInvocationRequest(entities.InvocationRequest{
		PackageID: "hol.archiver",
	}))
	resp, err := wireformat.DecodeInvocationResponse(out)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "missing required field: cmd_id", resp.Error())
}

func TestBridge_InvokeCommandUndecodable(t *testing.T) {
	b := newBridge(t, &chunkHost{})

	resp, err := wireformat.DecodeInvocationResponse(b.InvokeCommand([]byte{0xff}))
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error(), "InvokeCommandRequest")
}

func TestBridge_CallDigest(t *testing.T) {
	host := &chunkHost{blobs: map[int32][][]byte{
		3: testutil.Chunks([]byte{1, 2, 3, 4, 5, 6}, 4),
	}}
	b := newBridge(t, host)

	arg, err := json.Marshal(entities.BatchDigestArg{
		Algorithms: []entities.DigestAlgorithm{entities.DigestMD5, entities.DigestMD5},
		BlobID:     3,
	})
	require.NoError(t, err)

	var replies []sent
	b.Call(0, arg, 9, func(code int32, payload []byte, callID int32) {
		replies = append(replies, sent{payload: payload, code: code, callID: callID})
	})

	require.Len(t, replies, 1)
	assert.Equal(t, int32(0), replies[0].code)
	assert.Equal(t, int32(9), replies[0].callID)
	testutil.AssertJSONEqual(t, `[{"typ":0,"val":"6AC1E56BC78F031059BE7BE854522C4C"}]`, string(replies[0].payload))
	assert.Equal(t, 3, host.pulls, "two chunks and the end marker")
}

func TestBridge_CallUnsupportedCodeStillReplies(t *testing.T) {
	b := newBridge(t, &chunkHost{})

	var replies []sent
	b.Call(5, []byte(`{}`), 1, func(code int32, payload []byte, callID int32) {
		replies = append(replies, sent{payload: payload, code: code, callID: callID})
	})

	require.Len(t, replies, 1)
	assert.Equal(t, int32(5), replies[0].code)
	var failure entities.BridgeError
	require.NoError(t, json.Unmarshal(replies[0].payload, &failure))
	require.NotNil(t, failure.Error)
	assert.Equal(t, "bridge", failure.Error.Type)
}

func TestBridge_CallBadArgumentReplies(t *testing.T) {
	b := newBridge(t, &chunkHost{})

	var replies []sent
	b.Call(0, []byte(`{"typs":[42],"blob_id":0}`), 2, func(code int32, payload []byte, callID int32) {
		replies = append(replies, sent{payload: payload, code: code, callID: callID})
	})

	require.Len(t, replies, 1)
	var failure entities.BridgeError
	require.NoError(t, json.Unmarshal(replies[0].payload, &failure))
	require.NotNil(t, failure.Error)
	assert.Equal(t, "digest", failure.Error.Type)
}

func TestInstall_Replaces(t *testing.T) {
	first := newBridge(t, &chunkHost{})
	assert.Same(t, first, current())

	second := newBridge(t, &chunkHost{})
	assert.Same(t, second, current())
	assert.NotSame(t, first.Runtime(), second.Runtime())
}

func TestHostSource(t *testing.T) {
	host := &chunkHost{blobs: map[int32][][]byte{1: {[]byte("ab")}}}
	src, err := HostChunks(host.pull).Open(t.Context(), 1)
	require.NoError(t, err)

	chunk, err := src.Next(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "ab", string(chunk))

	for range 2 {
		chunk, err = src.Next(t.Context())
		require.NoError(t, err)
		assert.Nil(t, chunk)
	}
	assert.Equal(t, 2, host.pulls, "no pulls after the end marker")
}
