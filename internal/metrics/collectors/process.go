// Package collectors feeds process lifecycle events into metrics.
package collectors

import (
	"context"
	"log/slog"
	"sync"

	"github.com/smazurov/proclaunch/internal/events"
	"github.com/smazurov/proclaunch/internal/metrics"
)

// ProcessCollector records metrics for every event published on a bus.
type ProcessCollector struct {
	logger   *slog.Logger
	bus      *events.Bus
	unsubs   []func()
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewProcessCollector creates a collector for bus.
func NewProcessCollector(bus *events.Bus) *ProcessCollector {
	return &ProcessCollector{
		logger: slog.With("component", "process_collector"),
		bus:    bus,
	}
}

// Start subscribes to the bus. The collector stops when ctx is done.
func (p *ProcessCollector) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.unsubs = append(p.unsubs,
		p.bus.Subscribe(func(e events.ProcessStartedEvent) {
			metrics.RecordStart(e.Path)
		}),
		p.bus.Subscribe(func(e events.ProcessExitedEvent) {
			metrics.RecordExit(e.Path, e.ExitCode, e.Duration)
		}),
		p.bus.Subscribe(func(e events.ProcessFinalizedEvent) {
			metrics.RecordFinalized(e.Path, e.Outcome())
		}),
		p.bus.Subscribe(func(e events.OutputLineEvent) {
			metrics.RecordLine(e.Stream)
		}),
	)
	go func() {
		<-p.ctx.Done()
		_ = p.Stop()
	}()
	p.logger.Debug("Process collector started")
	return nil
}

// Stop unsubscribes from the bus.
func (p *ProcessCollector) Stop() error {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		for _, unsub := range p.unsubs {
			unsub()
		}
		p.logger.Debug("Process collector stopped")
	})
	return nil
}
