// internal/monitor/monitor.go

// Package monitor runs a background health sampler against the automation
// backend. It is strictly read-only: it probes and counts, it never
// remediates.
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Prober answers whether the backend is responsive right now.
type Prober interface {
	Healthy(ctx context.Context) bool
}

// Snapshot is a point-in-time view of the monitor's counters.
type Snapshot struct {
	Samples     uint64
	Failures    uint64
	LastLatency time.Duration
}

// Monitor periodically probes the backend on its own goroutine. Pause stops
// sampling without stopping the goroutine; sessions pause the monitor while
// recovery is remediating so probe traffic does not race dialog dismissal.
type Monitor struct {
	prober   Prober
	interval time.Duration
	logger   *zap.Logger

	paused  atomic.Bool
	samples atomic.Uint64
	fails   atomic.Uint64
	latency atomic.Int64

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New builds a monitor. Call Start to begin sampling.
func New(prober Prober, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		logger:   logger.Named("monitor"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sampling goroutine. The context bounds each individual
// probe, not the monitor's lifetime; use Stop for that.
func (m *Monitor) Start(ctx context.Context) {
	go m.run(ctx)
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.paused.Load() {
				continue
			}
			m.sample(ctx)
		}
	}
}

func (m *Monitor) sample(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	start := time.Now()
	healthy := m.prober.Healthy(probeCtx)
	elapsed := time.Since(start)

	m.samples.Add(1)
	m.latency.Store(int64(elapsed))
	if !healthy {
		m.fails.Add(1)
		m.logger.Warn("Backend health probe failed.", zap.Duration("elapsed", elapsed))
		return
	}
	m.logger.Debug("Backend health probe ok.", zap.Duration("elapsed", elapsed))
}

// Pause suspends sampling; the goroutine keeps ticking but skips probes.
func (m *Monitor) Pause() { m.paused.Store(true) }

// Resume re-enables sampling after Pause.
func (m *Monitor) Resume() { m.paused.Store(false) }

// Stop terminates the sampling goroutine and waits for it to exit. Safe to
// call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

// Snapshot returns the current counters.
func (m *Monitor) Snapshot() Snapshot {
	return Snapshot{
		Samples:     m.samples.Load(),
		Failures:    m.fails.Load(),
		LastLatency: time.Duration(m.latency.Load()),
	}
}
