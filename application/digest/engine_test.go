package digest

import (
	"bytes"
	"context"
	"encoding/hex"
	stdErrors "errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"

	"github.com/hpp2334/hol-runtime/domain/entities"
	"github.com/hpp2334/hol-runtime/domain/errors"
	"github.com/hpp2334/hol-runtime/domain/ports"
)

// countingSource records how many chunks were pulled.
type countingSource struct {
	inner *SliceSource
	pulls int
}

func (c *countingSource) Next(ctx context.Context) ([]byte, error) {
	c.pulls++
	return c.inner.Next(ctx)
}

// onceSource cannot be rewound.
type onceSource struct {
	chunks [][]byte
}

func (o *onceSource) Next(context.Context) ([]byte, error) {
	if len(o.chunks) == 0 {
		return nil, nil
	}
	c := o.chunks[0]
	o.chunks = o.chunks[1:]
	return c, nil
}

type failingSource struct{}

func (failingSource) Next(context.Context) ([]byte, error) {
	return nil, stdErrors.New("host went away")
}

func upperHex(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

func TestCompute_KnownVectors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		alg    entities.DigestAlgorithm
		chunks [][]byte
		want   string
	}{
		{"md5 of 1..6", entities.DigestMD5, [][]byte{{1, 2, 3, 4, 5, 6}}, "6AC1E56BC78F031059BE7BE854522C4C"},
		{"md5 of 1..6 split", entities.DigestMD5, [][]byte{{1, 2}, {3}, {4, 5, 6}}, "6AC1E56BC78F031059BE7BE854522C4C"},
		{"sha1 of empty", entities.DigestSHA1, nil, "DA39A3EE5E6B4B0D3255BFEF95601890AFD80709"},
		{"md5 of empty", entities.DigestMD5, nil, "D41D8CD98F00B204E9800998ECF8427E"},
		{"sha256 of abc", entities.DigestSHA256, [][]byte{[]byte("ab"), []byte("c")}, "BA7816BF8F01CFEA414140DE5DAE2223B00361A396177A9CB410FF61F20015AD"},
	}

	for _, strategy := range []Strategy{Interleaved, Sequential} {
		engine := NewEngine(WithStrategy(strategy))
		for _, tt := range tests {
			t.Run(strategy.String()+"/"+tt.name, func(t *testing.T) {
				got, err := engine.Compute(ctx, []entities.DigestAlgorithm{tt.alg}, NewSliceSource(tt.chunks...))
				require.NoError(t, err)
				require.Len(t, got, 1)
				assert.Equal(t, tt.alg, got[0].Algorithm)
				assert.Equal(t, tt.want, got[0].Value)
			})
		}
	}
}

func TestCompute_ExtendedAlgorithms(t *testing.T) {
	data := []byte("the quick brown fox")

	b2 := blake2b.Sum256(data)
	s3 := sha3.Sum256(data)
	b3 := blake3.Sum256(data)

	got, err := NewEngine().Compute(context.Background(),
		[]entities.DigestAlgorithm{entities.DigestBLAKE2b256, entities.DigestSHA3_256, entities.DigestBLAKE3, entities.DigestSHA512},
		NewSliceSource(data[:5], data[5:]))
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, upperHex(b2[:]), got[0].Value)
	assert.Equal(t, upperHex(s3[:]), got[1].Value)
	assert.Equal(t, upperHex(b3[:]), got[2].Value)
	assert.Len(t, got[3].Value, 128)
}

func TestCompute_StrategiesAgree(t *testing.T) {
	ctx := context.Background()
	data := bytes.Repeat([]byte("0123456789abcdef"), 4096)
	algs := Supported()

	interleaved, err := NewEngine().Compute(ctx, algs, NewReaderSource(bytes.NewReader(data), 1000))
	require.NoError(t, err)

	sequential, err := NewEngine(WithStrategy(Sequential)).Compute(ctx, algs, NewReaderSource(bytes.NewReader(data), 777))
	require.NoError(t, err)

	parallel, err := NewEngine(WithParallelFeed(4)).Compute(ctx, algs, NewReaderSource(bytes.NewReader(data), 4096))
	require.NoError(t, err)

	assert.Equal(t, interleaved, sequential)
	assert.Equal(t, interleaved, parallel)

	again, err := NewEngine().Compute(ctx, algs, NewReaderSource(bytes.NewReader(data), 1000))
	require.NoError(t, err)
	assert.Equal(t, interleaved, again, "repeated runs are identical")
}

func TestCompute_StrategiesAgreeOnPartlyReadSources(t *testing.T) {
	ctx := context.Background()
	algs := []entities.DigestAlgorithm{entities.DigestMD5, entities.DigestSHA1, entities.DigestSHA256}

	tests := []struct {
		name string
		open func(t *testing.T) ports.ChunkSource
		want string
	}{
		{
			name: "slice source after one chunk",
			open: func(t *testing.T) ports.ChunkSource {
				src := NewSliceSource([]byte("aaa"), []byte("bbb"))
				_, err := src.Next(ctx)
				require.NoError(t, err)
				return src
			},
			want: "bbb",
		},
		{
			name: "reader seeked past its start",
			open: func(t *testing.T) ports.ChunkSource {
				r := bytes.NewReader([]byte("skip-HELLO"))
				_, err := r.Seek(5, io.SeekStart)
				require.NoError(t, err)
				return NewReaderSource(r, 2)
			},
			want: "HELLO",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expected, err := NewEngine().Compute(ctx, algs, NewSliceSource([]byte(tt.want)))
			require.NoError(t, err)

			interleaved, err := NewEngine().Compute(ctx, algs, tt.open(t))
			require.NoError(t, err)
			sequential, err := NewEngine(WithStrategy(Sequential)).Compute(ctx, algs, tt.open(t))
			require.NoError(t, err)

			assert.Equal(t, expected, interleaved)
			assert.Equal(t, expected, sequential)
		})
	}
}

func TestCompute_DuplicatesCollapseInFirstOccurrenceOrder(t *testing.T) {
	algs := []entities.DigestAlgorithm{
		entities.DigestSHA256, entities.DigestMD5, entities.DigestSHA256, entities.DigestMD5, entities.DigestSHA1,
	}

	got, err := NewEngine().Compute(context.Background(), algs, NewSliceSource([]byte{1, 2, 3, 4, 5, 6}))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, entities.DigestSHA256, got[0].Algorithm)
	assert.Equal(t, entities.DigestMD5, got[1].Algorithm)
	assert.Equal(t, entities.DigestSHA1, got[2].Algorithm)
	assert.Equal(t, "6AC1E56BC78F031059BE7BE854522C4C", got[1].Value)
}

func TestCompute_InterleavedTraversesOnce(t *testing.T) {
	src := &countingSource{inner: NewSliceSource([]byte("a"), []byte("b"), []byte("c"))}

	_, err := NewEngine().Compute(context.Background(),
		[]entities.DigestAlgorithm{entities.DigestMD5, entities.DigestSHA1, entities.DigestSHA256}, src)
	require.NoError(t, err)
	assert.Equal(t, 4, src.pulls, "three chunks and one end-of-stream pull")
}

func TestCompute_UnsupportedFailsBeforePulling(t *testing.T) {
	src := &countingSource{inner: NewSliceSource([]byte("data"))}

	_, err := NewEngine().Compute(context.Background(),
		[]entities.DigestAlgorithm{entities.DigestMD5, 42}, src)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnsupportedAlgorithm)
	assert.Equal(t, "unsupported digest algorithm code 42", err.Error())
	assert.Zero(t, src.pulls)
}

func TestCompute_EmptyRequest(t *testing.T) {
	src := &countingSource{inner: NewSliceSource([]byte("data"))}

	got, err := NewEngine().Compute(context.Background(), nil, src)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, src.pulls)
}

func TestCompute_SequentialNeedsRewind(t *testing.T) {
	engine := NewEngine(WithStrategy(Sequential))
	algs := []entities.DigestAlgorithm{entities.DigestMD5, entities.DigestSHA1}

	_, err := engine.Compute(context.Background(), algs, &onceSource{chunks: [][]byte{{1}}})
	assert.ErrorIs(t, err, ErrSourceNotRewindable)

	// A reader that cannot seek fails on the first rewind.
	_, err = engine.Compute(context.Background(), algs, NewReaderSource(strings.NewReader("x"), 0))
	require.NoError(t, err, "strings.Reader is seekable")

	_, err = engine.Compute(context.Background(), algs, NewReaderSource(bytes.NewBufferString("x"), 0))
	assert.ErrorIs(t, err, ErrSourceNotRewindable)

	// A single algorithm needs only one traversal.
	got, err := engine.Compute(context.Background(), algs[:1], &onceSource{chunks: [][]byte{{1, 2, 3, 4, 5, 6}}})
	require.NoError(t, err)
	assert.Equal(t, "6AC1E56BC78F031059BE7BE854522C4C", got[0].Value)
}

func TestAsRewindable(t *testing.T) {
	ctx := context.Background()

	src, err := AsRewindable(ctx, &onceSource{chunks: [][]byte{{1, 2}, {3, 4, 5, 6}}})
	require.NoError(t, err)

	got, err := NewEngine(WithStrategy(Sequential)).Compute(ctx,
		[]entities.DigestAlgorithm{entities.DigestSHA1, entities.DigestMD5}, src)
	require.NoError(t, err)
	assert.Equal(t, "6AC1E56BC78F031059BE7BE854522C4C", got[1].Value)

	slice := NewSliceSource([]byte("x"))
	same, err := AsRewindable(ctx, slice)
	require.NoError(t, err)
	assert.Same(t, slice, same)
}

func TestCompute_SourceErrors(t *testing.T) {
	_, err := NewEngine().Compute(context.Background(),
		[]entities.DigestAlgorithm{entities.DigestMD5}, failingSource{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host went away")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewEngine().Compute(ctx, []entities.DigestAlgorithm{entities.DigestMD5}, NewSliceSource([]byte("x")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompute_Progress(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[entities.DigestAlgorithm][]int64{}
	)
	progress := func(alg entities.DigestAlgorithm, consumed int64) {
		mu.Lock()
		defer mu.Unlock()
		seen[alg] = append(seen[alg], consumed)
	}

	chunks := [][]byte{[]byte("abc"), []byte("de")}
	algs := []entities.DigestAlgorithm{entities.DigestMD5, entities.DigestSHA1}

	_, err := NewEngine(WithProgress(progress)).Compute(context.Background(), algs, NewSliceSource(chunks...))
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 5}, seen[entities.DigestMD5])
	assert.Equal(t, []int64{3, 5}, seen[entities.DigestSHA1])

	seen = map[entities.DigestAlgorithm][]int64{}
	_, err = NewEngine(WithProgress(progress), WithStrategy(Sequential)).Compute(context.Background(), algs, NewSliceSource(chunks...))
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 5}, seen[entities.DigestMD5])
	assert.Equal(t, []int64{3, 5}, seen[entities.DigestSHA1])
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("Sequential")
	require.NoError(t, err)
	assert.Equal(t, Sequential, s)

	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, Interleaved, s)

	_, err = ParseStrategy("zigzag")
	assert.Error(t, err)
}

func TestSupported(t *testing.T) {
	assert.Equal(t, []entities.DigestAlgorithm{0, 1, 2, 3, 4, 5, 6}, Supported())
	assert.True(t, IsSupported(entities.DigestBLAKE3))
	assert.False(t, IsSupported(7))
}
