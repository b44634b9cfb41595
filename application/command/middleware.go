package command

import (
	stdErrors "errors"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hpp2334/hol-runtime/application/resource"
)

// Middleware wraps a ByteHandler to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps outermost).
type Middleware func(next ByteHandler) ByteHandler

// RecoveryMiddleware converts handler panics into *PanicError results.
// A *resource.BorrowError is a programming fault in the handler and is
// re-raised. The registry installs this middleware outermost on every
// command.
func RecoveryMiddleware() Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ic InvocationContext, payload []byte) (out []byte, err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if be, ok := r.(*resource.BorrowError); ok {
					panic(be)
				}
				out = nil
				err = &PanicError{Value: r, Key: ic.Key(), Stack: debug.Stack()}
			}()
			return next(ic, payload)
		}
	}
}

// LoggingMiddleware logs every invocation with its outcome and duration.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ByteHandler) ByteHandler {
		return func(ic InvocationContext, payload []byte) ([]byte, error) {
			start := time.Now()
			attrs := []any{
				slog.String("command", ic.Key().String()),
				slog.String("request_id", ic.RequestID()),
			}
			logger.DebugContext(ic, "invoking command", append(attrs, slog.Int("arg_bytes", len(payload)))...)

			out, err := next(ic, payload)

			attrs = append(attrs, slog.Duration("duration", time.Since(start)))
			if err != nil {
				var pe *PanicError
				if stdErrors.As(err, &pe) {
					logger.ErrorContext(ic, "command panicked", append(attrs, slog.Any("panic", pe.Value))...)
				} else {
					logger.WarnContext(ic, "command failed", append(attrs, slog.String("error", err.Error()))...)
				}
				return out, err
			}
			logger.DebugContext(ic, "command completed", append(attrs, slog.Int("ret_bytes", len(out)))...)
			return out, nil
		}
	}
}

// Metrics holds the collectors updated by MetricsMiddleware.
type Metrics struct {
	Invocations *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
}

// NewMetrics creates the invocation collectors and registers them with reg.
// Collectors already registered under the same names are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hol",
			Name:      "command_invocations_total",
			Help:      "number of command invocations by outcome",
		}, []string{"package", "command", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hol",
			Name:      "command_duration_seconds",
			Help:      "command handler latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"package", "command"}),
	}
	if reg == nil {
		return m, nil
	}

	if err := reg.Register(m.Invocations); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !stdErrors.As(err, &are) {
			return nil, err
		}
		m.Invocations = are.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := reg.Register(m.Duration); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !stdErrors.As(err, &are) {
			return nil, err
		}
		m.Duration = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	return m, nil
}

// MetricsMiddleware counts invocations and observes their latency.
func MetricsMiddleware(m *Metrics) Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ic InvocationContext, payload []byte) ([]byte, error) {
			key := ic.Key()
			start := time.Now()
			out, err := next(ic, payload)
			m.Duration.WithLabelValues(key.PackageID, key.CommandID).Observe(time.Since(start).Seconds())

			outcome := "success"
			if err != nil {
				outcome = "failure"
			}
			m.Invocations.WithLabelValues(key.PackageID, key.CommandID, outcome).Inc()
			return out, err
		}
	}
}
