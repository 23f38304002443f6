// internal/recovery/manager.go

// Package recovery holds the priority-ordered catalogue of interruption
// handlers (permission dialogs, ANR dialogs, crashes, stuck webviews) and
// the bounded scan/remediate loop that clears them.
package recovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/halcyonqa/halcyon/internal/driver"
)

// DetectFunc inspects the device for a specific blocking condition. It must
// not mutate UI state.
type DetectFunc func(ctx context.Context, drv driver.Driver) bool

// RemediateFunc attempts to clear a detected condition. A true return means
// the condition was cleared.
type RemediateFunc func(ctx context.Context, drv driver.Driver) bool

// Strategy pairs a detector with its remediation, ordered by priority
// (lower values are tried first).
type Strategy struct {
	Name      string
	Priority  int
	Detect    DetectFunc
	Remediate RemediateFunc
}

// Attempt records one strategy touch during a recovery run, in the order
// the manager made it.
type Attempt struct {
	Pass       int
	Strategy   string
	Detected   bool
	Remediated bool
}

func (a Attempt) String() string {
	switch {
	case a.Remediated:
		return fmt.Sprintf("%s: remediated (pass %d)", a.Strategy, a.Pass)
	case a.Detected:
		return fmt.Sprintf("%s: detected, remediation failed (pass %d)", a.Strategy, a.Pass)
	default:
		return fmt.Sprintf("%s: not detected (pass %d)", a.Strategy, a.Pass)
	}
}

// ExhaustedError is the fatal outcome of a recovery run: every strategy was
// tried across the pass ceiling without clearing the blockage. It carries
// the failure that triggered recovery and the full ordered attempt log so a
// human can tell "flaky but recoverable" from "genuinely broken".
type ExhaustedError struct {
	Original error
	Attempts []Attempt
	Passes   int
	// ActionAttempts is how many times the original action ran, including
	// the recovery-triggered retry when there was one.
	ActionAttempts int
}

func (e *ExhaustedError) Error() string {
	names := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		names = append(names, a.String())
	}
	return fmt.Sprintf("recovery exhausted after %d pass(es) [%s]: %v",
		e.Passes, strings.Join(names, "; "), e.Original)
}

func (e *ExhaustedError) Unwrap() error { return e.Original }

// Stats aggregates recovery outcomes for one session. Only the manager
// mutates it; callers get copies.
type Stats struct {
	TotalAttempts int
	SuccessCount  int
	FailureCount  int
	PerStrategy   map[string]int
}

// Manager runs the recovery state machine: Idle -> Scanning ->
// (Remediating -> Scanning)* -> Recovered | Exhausted.
type Manager struct {
	drv        driver.Driver
	strategies []Strategy
	logger     *zap.Logger

	maxPasses int
	settle    time.Duration
	sleep     func(ctx context.Context, d time.Duration) error

	stats Stats
}

// NewManager builds a manager with no strategies registered. MaxPasses
// bounds the number of full scan passes; settle is the fixed delay after a
// successful remediation before the action retry.
func NewManager(drv driver.Driver, maxPasses int, settle time.Duration, logger *zap.Logger) *Manager {
	if maxPasses <= 0 {
		maxPasses = 3
	}
	return &Manager{
		drv:       drv,
		logger:    logger.Named("recovery"),
		maxPasses: maxPasses,
		settle:    settle,
		sleep:     sleepCtx,
		stats:     Stats{PerStrategy: make(map[string]int)},
	}
}

// Register adds a strategy, keeping the catalogue sorted by ascending
// priority. Registration order breaks priority ties.
func (m *Manager) Register(s Strategy) {
	m.strategies = append(m.strategies, s)
	sort.SliceStable(m.strategies, func(i, j int) bool {
		return m.strategies[i].Priority < m.strategies[j].Priority
	})
	m.logger.Debug("Recovery strategy registered.",
		zap.String("strategy", s.Name), zap.Int("priority", s.Priority))
}

// MaxPasses returns the configured scan pass ceiling.
func (m *Manager) MaxPasses() int { return m.maxPasses }

// Strategies returns the registered strategy names in scan order.
func (m *Manager) Strategies() []string {
	names := make([]string, len(m.strategies))
	for i, s := range m.strategies {
		names[i] = s.Name
	}
	return names
}

// Recover scans the strategies in priority order, remediating the first one
// whose detector fires. A successful remediation waits the settle delay and
// reports recovered; a failed remediation resumes the scan at the next
// strategy. The full scan repeats up to the pass ceiling.
//
// The attempt log covers every strategy touch in order, whatever the
// outcome.
func (m *Manager) Recover(ctx context.Context) ([]Attempt, bool) {
	var attempts []Attempt

	for pass := 1; pass <= m.maxPasses; pass++ {
		if ctx.Err() != nil {
			return attempts, false
		}
		for _, s := range m.strategies {
			detected := s.Detect(ctx, m.drv)
			attempt := Attempt{Pass: pass, Strategy: s.Name, Detected: detected}

			if detected {
				attempt.Remediated = s.Remediate(ctx, m.drv)
			}
			attempts = append(attempts, attempt)
			m.record(attempt)

			if attempt.Remediated {
				m.logger.Info("Recovered from interruption.",
					zap.String("strategy", s.Name), zap.Int("pass", pass))
				if err := m.sleep(ctx, m.settle); err != nil {
					return attempts, false
				}
				return attempts, true
			}
			if detected {
				m.logger.Debug("Remediation failed, resuming scan.",
					zap.String("strategy", s.Name))
			}
		}
	}

	m.logger.Warn("All recovery strategies exhausted.",
		zap.Int("passes", m.maxPasses), zap.Int("attempts", len(attempts)))
	return attempts, false
}

// Stats returns a copy of the session's recovery counters.
func (m *Manager) Stats() Stats {
	out := m.stats
	out.PerStrategy = make(map[string]int, len(m.stats.PerStrategy))
	for k, v := range m.stats.PerStrategy {
		out.PerStrategy[k] = v
	}
	return out
}

func (m *Manager) record(a Attempt) {
	m.stats.TotalAttempts++
	m.stats.PerStrategy[a.Strategy]++
	if a.Remediated {
		m.stats.SuccessCount++
	} else {
		m.stats.FailureCount++
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
