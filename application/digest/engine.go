package digest

import (
	"context"
	"encoding/hex"
	stdErrors "errors"
	"fmt"
	"hash"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hpp2334/hol-runtime/domain/entities"
	"github.com/hpp2334/hol-runtime/domain/errors"
	"github.com/hpp2334/hol-runtime/domain/ports"
)

// ErrSourceNotRewindable is returned by the sequential strategy when the
// source cannot be restarted.
var ErrSourceNotRewindable = stdErrors.New("digest: sequential strategy needs a rewindable source")

// Strategy selects how the source is traversed.
type Strategy int

const (
	// Interleaved traverses the source once.
	Interleaved Strategy = iota
	// Sequential traverses the source once per algorithm.
	Sequential
)

func (s Strategy) String() string {
	switch s {
	case Interleaved:
		return "interleaved"
	case Sequential:
		return "sequential"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy resolves a strategy name.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "interleaved":
		return Interleaved, nil
	case "sequential":
		return Sequential, nil
	}
	return 0, fmt.Errorf("unknown digest strategy %q", name)
}

// ProgressFunc receives the number of source bytes consumed so far.
// Under the sequential strategy the count restarts for every algorithm.
type ProgressFunc func(alg entities.DigestAlgorithm, consumed int64)

// Engine computes digests. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	logger   *slog.Logger
	progress ProgressFunc
	strategy Strategy
	parallel int
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrategy sets the traversal strategy. The default is Interleaved.
func WithStrategy(s Strategy) Option {
	return func(e *Engine) {
		e.strategy = s
	}
}

// WithProgress installs a progress callback, invoked after every chunk.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// WithParallelFeed feeds each chunk to the accumulators concurrently, with
// at most workers goroutines. It only affects the interleaved strategy;
// workers <= 1 feeds serially.
func WithParallelFeed(workers int) Option {
	return func(e *Engine) {
		e.parallel = workers
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:   slog.Default(),
		strategy: Interleaved,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Strategy returns the configured strategy.
func (e *Engine) Strategy() Strategy {
	return e.strategy
}

// Compute digests src with every distinct algorithm in algs.
// An unsupported code fails the call before any chunk is pulled.
func (e *Engine) Compute(ctx context.Context, algs []entities.DigestAlgorithm, src ports.ChunkSource) ([]entities.DigestResult, error) {
	ordered, err := distinct(algs)
	if err != nil {
		return nil, err
	}
	if len(ordered) == 0 {
		return []entities.DigestResult{}, nil
	}

	e.logger.DebugContext(ctx, "digest started",
		"algorithms", len(ordered), "strategy", e.strategy.String())

	switch e.strategy {
	case Sequential:
		return e.sequential(ctx, ordered, src)
	default:
		return e.interleaved(ctx, ordered, src)
	}
}

// distinct drops repeated codes, keeping first occurrences in order.
func distinct(algs []entities.DigestAlgorithm) ([]entities.DigestAlgorithm, error) {
	seen := make(map[entities.DigestAlgorithm]struct{}, len(algs))
	out := make([]entities.DigestAlgorithm, 0, len(algs))
	for _, alg := range algs {
		if !IsSupported(alg) {
			return nil, &errors.UnsupportedAlgorithmError{Algorithm: alg}
		}
		if _, dup := seen[alg]; dup {
			continue
		}
		seen[alg] = struct{}{}
		out = append(out, alg)
	}
	return out, nil
}

func (e *Engine) interleaved(ctx context.Context, algs []entities.DigestAlgorithm, src ports.ChunkSource) ([]entities.DigestResult, error) {
	hashes := make([]hash.Hash, len(algs))
	for i, alg := range algs {
		hashes[i], _ = newHash(alg)
	}

	var consumed int64
	for {
		chunk, err := next(ctx, src)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			break
		}
		if err := e.feed(ctx, hashes, chunk); err != nil {
			return nil, err
		}
		consumed += int64(len(chunk))
		if e.progress != nil {
			for _, alg := range algs {
				e.progress(alg, consumed)
			}
		}
	}

	results := make([]entities.DigestResult, len(algs))
	for i, alg := range algs {
		results[i] = finalize(alg, hashes[i])
	}
	return results, nil
}

func (e *Engine) feed(ctx context.Context, hashes []hash.Hash, chunk []byte) error {
	if e.parallel <= 1 || len(hashes) == 1 {
		for _, h := range hashes {
			h.Write(chunk)
		}
		return nil
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(e.parallel)
	for _, h := range hashes {
		g.Go(func() error {
			_, err := h.Write(chunk)
			return err
		})
	}
	return g.Wait()
}

func (e *Engine) sequential(ctx context.Context, algs []entities.DigestAlgorithm, src ports.ChunkSource) ([]entities.DigestResult, error) {
	rw, ok := src.(ports.Rewinder)
	if !ok && len(algs) > 1 {
		return nil, ErrSourceNotRewindable
	}

	results := make([]entities.DigestResult, len(algs))
	for i, alg := range algs {
		if i > 0 {
			if err := rw.Rewind(ctx); err != nil {
				return nil, fmt.Errorf("rewind source: %w", err)
			}
		}

		h, _ := newHash(alg)
		var consumed int64
		for {
			chunk, err := next(ctx, src)
			if err != nil {
				return nil, err
			}
			if len(chunk) == 0 {
				break
			}
			h.Write(chunk)
			consumed += int64(len(chunk))
			if e.progress != nil {
				e.progress(alg, consumed)
			}
		}
		results[i] = finalize(alg, h)
	}
	return results, nil
}

func next(ctx context.Context, src ports.ChunkSource) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	chunk, err := src.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chunk: %w", err)
	}
	return chunk, nil
}

func finalize(alg entities.DigestAlgorithm, h hash.Hash) entities.DigestResult {
	return entities.DigestResult{
		Algorithm: alg,
		Value:     strings.ToUpper(hex.EncodeToString(h.Sum(nil))),
	}
}
