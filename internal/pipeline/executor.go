// internal/pipeline/executor.go

// Package pipeline binds a single page operation to the middleware chain,
// the element cache, the driver call, and the on-failure escalation to
// self-healing and then recovery. One executor serves exactly one driver
// session and runs synchronously; there is no internal parallelism.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/halcyonqa/halcyon/internal/cache"
	"github.com/halcyonqa/halcyon/internal/driver"
	"github.com/halcyonqa/halcyon/internal/healing"
	"github.com/halcyonqa/halcyon/internal/hierarchy"
	"github.com/halcyonqa/halcyon/internal/locator"
	"github.com/halcyonqa/halcyon/internal/recovery"
)

// Executor is the composition root of the resilience pipeline. All state is
// per session; parallel sessions build independent executors.
type Executor struct {
	drv      driver.Driver
	cache    *cache.Cache
	chain    *Chain
	recovery *recovery.Manager
	healer   *healing.Resolver
	obs      Observer
	logger   *zap.Logger
}

// NewExecutor wires the pipeline together. Healer and observer may be nil;
// a nil healer skips straight from a transient failure to recovery.
func NewExecutor(
	drv driver.Driver,
	elementCache *cache.Cache,
	rec *recovery.Manager,
	healer *healing.Resolver,
	obs Observer,
	logger *zap.Logger,
) (*Executor, error) {
	if drv == nil {
		return nil, errors.New("driver cannot be nil")
	}
	if elementCache == nil {
		return nil, errors.New("element cache cannot be nil")
	}
	if rec == nil {
		return nil, errors.New("recovery manager cannot be nil")
	}
	if obs == nil {
		obs = NopObserver{}
	}
	return &Executor{
		drv:      drv,
		cache:    elementCache,
		chain:    NewChain(),
		recovery: rec,
		healer:   healer,
		obs:      obs,
		logger:   logger.Named("pipeline"),
	}, nil
}

// Use registers an unconditional middleware handler.
func (e *Executor) Use(h Handler) { e.chain.Use(h) }

// UseIf registers a middleware handler gated by a predicate.
func (e *Executor) UseIf(p Predicate, h Handler) { e.chain.UseIf(p, h) }

// RegisterStrategy adds a custom recovery strategy, interleaved with the
// built-ins by priority.
func (e *Executor) RegisterStrategy(s recovery.Strategy) { e.recovery.Register(s) }

// Cache exposes the session's element cache (stats, clear, enable toggle).
func (e *Executor) Cache() *cache.Cache { return e.cache }

// Recovery exposes the session's recovery manager (stats).
func (e *Executor) Recovery() *recovery.Manager { return e.recovery }

// HealingReport exposes the session's healing record, or nil when healing
// is disabled.
func (e *Executor) HealingReport() *healing.Report {
	if e.healer == nil {
		return nil
	}
	return e.healer.Report()
}

// InvalidateScreen clears the element cache. Page objects call it after
// gestures that restructure the screen (swipes, explicit transitions).
func (e *Executor) InvalidateScreen() { e.cache.Clear() }

// Execute runs one page operation through the full pipeline.
//
// Failure handling, in order: a transient driver failure first goes to the
// self-healing resolver (cheap, no side effects; substitutes the locator
// within the same attempt), then to the recovery manager (side-effecting
// dialog dismissal; success earns exactly one retry with the attempt count
// incremented). Exhaustion surfaces a *recovery.ExhaustedError carrying the
// original failure and the ordered strategy log. Non-transient errors
// propagate immediately.
func (e *Executor) Execute(ctx context.Context, action driver.Action, loc locator.Locator, args driver.Args) (driver.Result, error) {
	ac := NewActionContext(action, loc, args)
	e.obs.BeforeAction(ac)

	res, err := e.run(ctx, ac)
	if err == nil {
		e.obs.AfterAction(ac, res, nil)
		return res, nil
	}
	if !driver.IsTransient(err) {
		e.obs.AfterAction(ac, driver.Result{}, err)
		return driver.Result{}, fmt.Errorf("pipeline: %s on %s: %w", action, loc, err)
	}

	original := err

	// Self-healing first: a healed locator is cheaper than UI remediation
	// and has no side effects.
	if cand, ok := e.tryHeal(ctx, ac); ok {
		ac.Locator = cand.Locator
		if res, err = e.run(ctx, ac); err == nil {
			e.obs.Healed(ac, cand)
			e.obs.AfterAction(ac, res, nil)
			return res, nil
		}
		e.logger.Debug("Healed locator did not complete the action.",
			zap.Stringer("healed", cand.Locator), zap.Error(err))
	}

	// Recovery: clear whatever is blocking the screen, then retry the
	// original action exactly once.
	attempts, recovered := e.recovery.Recover(ctx)
	if recovered {
		ac.Attempt++
		ac.Locator = loc
		if res, err = e.run(ctx, ac); err == nil {
			e.obs.Recovered(ac, attempts)
			e.obs.AfterAction(ac, res, nil)
			return res, nil
		}
		original = err
	}

	exhausted := &recovery.ExhaustedError{
		Original:       original,
		Attempts:       attempts,
		Passes:         e.recovery.MaxPasses(),
		ActionAttempts: ac.Attempt,
	}
	e.obs.AfterAction(ac, driver.Result{}, exhausted)
	return driver.Result{}, exhausted
}

// run sends the context through the middleware chain into the terminal
// driver call.
func (e *Executor) run(ctx context.Context, ac *ActionContext) (driver.Result, error) {
	return e.chain.Run(ctx, ac, func(ctx context.Context) (driver.Result, error) {
		return e.perform(ctx, ac)
	})
}

// perform is the innermost handler: consult the cache, resolve on miss,
// execute the driver call, and keep the cache honest afterwards.
func (e *Executor) perform(ctx context.Context, ac *ActionContext) (driver.Result, error) {
	h, hit := e.cache.Get(ctx, ac.Locator)
	if !hit {
		var err error
		h, err = e.drv.FindElement(ctx, ac.Locator)
		if err != nil {
			return driver.Result{}, err
		}
		e.cache.Put(ac.Locator, h)
	}

	res, err := e.drv.PerformAction(ctx, h, ac.Action, ac.Args)
	if err != nil {
		// A handle can go stale between the liveness probe and the action.
		// Staleness is never the caller's problem: resolve fresh and try
		// the call once more.
		if driver.KindOf(err) == driver.KindStale {
			e.cache.Invalidate(ac.Locator)
			h, err = e.drv.FindElement(ctx, ac.Locator)
			if err != nil {
				return driver.Result{}, err
			}
			e.cache.Put(ac.Locator, h)
			res, err = e.drv.PerformAction(ctx, h, ac.Action, ac.Args)
			if driver.KindOf(err) == driver.KindStale {
				// Still stale after a fresh resolution: the element is
				// churning faster than we can act on it.
				err = driver.NewElementError(driver.KindNotFound, ac.Locator, err)
			}
		}
		if err != nil {
			return driver.Result{}, err
		}
	}

	if ac.Navigates() {
		e.cache.Clear()
	}
	return res, nil
}

// tryHeal snapshots the hierarchy and asks the resolver for a unique
// replacement locator. Any snapshot failure just means no healing.
func (e *Executor) tryHeal(ctx context.Context, ac *ActionContext) (healing.Candidate, bool) {
	if e.healer == nil {
		return healing.Candidate{}, false
	}
	source, err := e.drv.PageSource(ctx)
	if err != nil {
		e.logger.Debug("Could not capture hierarchy for healing.", zap.Error(err))
		return healing.Candidate{}, false
	}
	snap, err := hierarchy.Parse(source)
	if err != nil {
		e.logger.Debug("Could not parse hierarchy for healing.", zap.Error(err))
		return healing.Candidate{}, false
	}
	return e.healer.Resolve(ac.Locator, snap)
}
