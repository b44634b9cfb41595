package guest

import (
	"log/slog"
	"sync"

	hol "github.com/hpp2334/hol-runtime"
	"github.com/hpp2334/hol-runtime/application/scheduler"
)

var (
	installed *Bridge
	mu        sync.Mutex
)

// Install builds the runtime served by the module exports. Bridge calls must
// reply before the export returns, so the scheduler is always cooperative.
// Calling Install again replaces the runtime.
func Install(pull PullFunc, logger *slog.Logger, opts ...hol.Option) (*Bridge, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]hol.Option{hol.WithLogger(logger), hol.WithSources(HostChunks(pull))}, opts...)
	opts = append(opts, hol.WithScheduler(scheduler.NewCooperative()))

	rt, err := hol.New(opts...)
	if err != nil {
		return nil, err
	}
	b := NewBridge(rt, logger)

	mu.Lock()
	defer mu.Unlock()
	if installed != nil {
		_ = installed.rt.Close()
	}
	installed = b
	return b, nil
}

// current returns the installed bridge.
func current() *Bridge {
	mu.Lock()
	defer mu.Unlock()
	return installed
}
