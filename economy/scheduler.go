package economy

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// scheduler runs the director's background loops with lifecycle
// control: named processes, per-process cancel, panic recovery and a
// WaitGroup for shutdown.
type scheduler struct {
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	processes map[string]context.CancelFunc
}

func newScheduler() *scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &scheduler{
		ctx:       ctx,
		cancel:    cancel,
		processes: make(map[string]context.CancelFunc),
	}
}

// startProcess registers and launches a named background process.
func (s *scheduler) startProcess(name string, fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, exists := s.processes[name]; exists {
		slog.Warn("process already running, replacing", slog.String("name", name))
		cancel()
	}

	processCtx, processCancel := context.WithCancel(s.ctx)
	s.processes[name] = processCancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("background process panic",
					slog.String("process", name),
					slog.Any("panic", r))
			}
		}()

		slog.Info("starting background process", slog.String("process", name))
		fn(processCtx)
		slog.Info("background process ended", slog.String("process", name))
	}()
}

// runEvery drives a tick function on a fixed interval. Ticks execute
// sequentially on this goroutine, so there is never a second writer. A
// failed tick is logged and never stops the loop.
func (s *scheduler) runEvery(name string, interval time.Duration, tick func(ctx context.Context) error) {
	s.startProcess(name, func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := tick(ctx); err != nil {
					slog.Error("tick failed",
						slog.String("process", name),
						slog.Any("error", err))
				}
			}
		}
	})
}

// stop cancels every process and waits for them to drain.
func (s *scheduler) stop() {
	s.cancel()
	s.wg.Wait()
}
