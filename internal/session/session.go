// internal/session/session.go

// Package session owns the per-session wiring: one driver connection, one
// element cache, one recovery manager, one healing resolver, one pipeline
// executor. Parallel sessions are fully independent; nothing here is a
// process-wide singleton.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/halcyonqa/halcyon/internal/cache"
	"github.com/halcyonqa/halcyon/internal/config"
	"github.com/halcyonqa/halcyon/internal/driver"
	"github.com/halcyonqa/halcyon/internal/driver/uia"
	"github.com/halcyonqa/halcyon/internal/healing"
	"github.com/halcyonqa/halcyon/internal/locator"
	"github.com/halcyonqa/halcyon/internal/page"
	"github.com/halcyonqa/halcyon/internal/pipeline"
	"github.com/halcyonqa/halcyon/internal/recovery"
)

// Session binds a driver connection to its resilience pipeline.
type Session struct {
	id     string
	drv    driver.Driver
	exec   *pipeline.Executor
	logger *zap.Logger

	closeFn func(ctx context.Context) error
}

// New wires a session around an existing driver. The observer may be nil.
func New(cfg *config.Config, drv driver.Driver, obs pipeline.Observer, logger *zap.Logger) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if drv == nil {
		return nil, errors.New("driver cannot be nil")
	}

	sessionID := uuid.New().String()
	sessionLogger := logger.With(zap.String("session_id", sessionID))

	elementCache, err := cache.New(cfg.Cache.TTL, cfg.Cache.Capacity, drv.IsAttached, sessionLogger)
	if err != nil {
		return nil, fmt.Errorf("session: build cache: %w", err)
	}
	elementCache.SetEnabled(cfg.Cache.Enabled)

	rec := recovery.NewManager(drv, cfg.Recovery.MaxPasses, cfg.Recovery.SettleDelay, sessionLogger)
	for _, s := range recovery.BuiltinStrategies() {
		rec.Register(s)
	}

	var healer *healing.Resolver
	if cfg.Healing.Enabled {
		healer = healing.NewResolver(healing.NewReport(), sessionLogger)
	}

	exec, err := pipeline.NewExecutor(drv, elementCache, rec, healer, obs, sessionLogger)
	if err != nil {
		return nil, fmt.Errorf("session: build executor: %w", err)
	}

	exec.Use(pipeline.Logging(sessionLogger))
	exec.Use(pipeline.Timing())
	if cfg.Pipeline.ActionsPerSecond > 0 {
		limiter := rate.NewLimiter(rate.Limit(cfg.Pipeline.ActionsPerSecond), 1)
		exec.Use(pipeline.Pacing(limiter))
	}

	return &Session{
		id:     sessionID,
		drv:    drv,
		exec:   exec,
		logger: sessionLogger,
	}, nil
}

// Connect dials the automation backend described by the config, creates a
// device session, and wires the pipeline around it.
func Connect(ctx context.Context, cfg *config.Config, obs pipeline.Observer, logger *zap.Logger) (*Session, error) {
	caps, err := LoadCapabilities(cfg.Driver.Capabilities)
	if err != nil {
		return nil, err
	}

	client := uia.NewClient(uia.Options{
		BaseURL:        cfg.Driver.BaseURL,
		RequestTimeout: cfg.Driver.RequestTimeout,
		ConnectRetries: cfg.Driver.ConnectRetries,
		FindTimeout:    cfg.Pipeline.ActionTimeout,
	}, logger)

	if err := client.Connect(ctx, caps.ToMap()); err != nil {
		return nil, err
	}

	s, err := New(cfg, uia.NewDriver(client, caps.AppID), obs, logger)
	if err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	s.closeFn = client.Close
	s.logger.Info("Session connected.",
		zap.String("base_url", cfg.Driver.BaseURL),
		zap.String("app_id", caps.AppID))
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Driver returns the underlying driver.
func (s *Session) Driver() driver.Driver { return s.drv }

// Executor returns the session's pipeline executor.
func (s *Session) Executor() *pipeline.Executor { return s.exec }

// Page builds a page object bound to this session's pipeline.
func (s *Session) Page(name string) *page.Page {
	return page.New(name, s.exec, s.drv, s.logger)
}

// Execute runs a single page operation through the resilience pipeline.
func (s *Session) Execute(ctx context.Context, action driver.Action, loc locator.Locator, args driver.Args) (driver.Result, error) {
	return s.exec.Execute(ctx, action, loc, args)
}

// RegisterMiddleware appends a handler to the action chain; a non-nil
// predicate makes it conditional.
func (s *Session) RegisterMiddleware(h pipeline.Handler, p pipeline.Predicate) {
	if p != nil {
		s.exec.UseIf(p, h)
		return
	}
	s.exec.Use(h)
}

// RegisterRecoveryStrategy adds a custom interruption handler, interleaved
// with the built-ins by priority.
func (s *Session) RegisterRecoveryStrategy(name string, priority int, detect recovery.DetectFunc, remediate recovery.RemediateFunc) {
	s.exec.RegisterStrategy(recovery.Strategy{
		Name:      name,
		Priority:  priority,
		Detect:    detect,
		Remediate: remediate,
	})
}

// CacheStats returns the element cache counters.
func (s *Session) CacheStats() cache.Stats { return s.exec.Cache().Stats() }

// ClearCache drops every cached element handle.
func (s *Session) ClearCache() { s.exec.Cache().Clear() }

// SetCacheEnabled toggles cache bypass mode.
func (s *Session) SetCacheEnabled(enabled bool) { s.exec.Cache().SetEnabled(enabled) }

// RecoveryStats returns the recovery counters.
func (s *Session) RecoveryStats() recovery.Stats { return s.exec.Recovery().Stats() }

// HealingReport returns the healing record, or nil when healing is
// disabled.
func (s *Session) HealingReport() *healing.Report { return s.exec.HealingReport() }

// Close clears the cache and tears down the device session.
func (s *Session) Close(ctx context.Context) error {
	s.exec.Cache().Clear()
	if s.closeFn == nil {
		return nil
	}
	if err := s.closeFn(ctx); err != nil {
		return fmt.Errorf("session: close: %w", err)
	}
	s.logger.Info("Session closed.")
	return nil
}
