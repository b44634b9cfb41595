package guest

import (
	"context"

	"github.com/hpp2334/hol-runtime/domain/ports"
)

// PullFunc fetches the next chunk of a host blob. An empty chunk ends the
// stream.
type PullFunc func(blobID int32) []byte

// HostChunks resolves bridge blob ids into sources that pull from the host.
func HostChunks(pull PullFunc) ports.ChunkSourceProvider {
	return ports.ChunkSourceProviderFunc(func(_ context.Context, blobID int32) (ports.ChunkSource, error) {
		return &hostSource{pull: pull, id: blobID}, nil
	})
}

type hostSource struct {
	pull PullFunc
	id   int32
	done bool
}

func (s *hostSource) Next(ctx context.Context) ([]byte, error) {
	if s.done {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	chunk := s.pull(s.id)
	if len(chunk) == 0 {
		s.done = true
		return nil, nil
	}
	return chunk, nil
}
