package hol

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hpp2334/hol-runtime/application/command"
	"github.com/hpp2334/hol-runtime/application/digest"
	"github.com/hpp2334/hol-runtime/domain/ports"
)

// Option configures a Runtime.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	scheduler      ports.Scheduler
	sources        ports.ChunkSourceProvider
	metrics        prometheus.Registerer
	digestOpts     []digest.Option
	middleware     []command.Middleware
	setups         []func(*command.Registry) error
	maxRequestSize int
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithScheduler sets the task backend. The default runs tasks inline.
func WithScheduler(s ports.Scheduler) Option {
	return func(o *options) {
		o.scheduler = s
	}
}

// WithStrategy selects how the digest engine walks the source.
func WithStrategy(s digest.Strategy) Option {
	return WithDigestOptions(digest.WithStrategy(s))
}

// WithDigestOptions passes options through to the digest engine.
func WithDigestOptions(opts ...digest.Option) Option {
	return func(o *options) {
		o.digestOpts = append(o.digestOpts, opts...)
	}
}

// WithSources resolves the blob ids of bridge digest calls.
func WithSources(p ports.ChunkSourceProvider) Option {
	return func(o *options) {
		o.sources = p
	}
}

// WithMiddleware wraps every command handler. Middleware runs inside the
// runtime's logging middleware, in registration order.
func WithMiddleware(mw ...command.Middleware) Option {
	return func(o *options) {
		o.middleware = append(o.middleware, mw...)
	}
}

// WithMetrics records invocation counts and latencies on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.metrics = reg
	}
}

// WithMaxRequestSize rejects request envelopes larger than n bytes.
func WithMaxRequestSize(n int) Option {
	return func(o *options) {
		o.maxRequestSize = n
	}
}

// WithCommands registers additional command sets next to the presets.
func WithCommands(setup ...func(*command.Registry) error) Option {
	return func(o *options) {
		o.setups = append(o.setups, setup...)
	}
}
