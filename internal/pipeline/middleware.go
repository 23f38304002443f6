// internal/pipeline/middleware.go
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/halcyonqa/halcyon/internal/driver"
)

// Next continues the chain. A handler that never calls next short-circuits
// the action.
type Next func(ctx context.Context) (driver.Result, error)

// Handler intercepts an action. It may run logic before and after calling
// next, mutate the context's scratch values, or short-circuit.
type Handler func(ctx context.Context, ac *ActionContext, next Next) (driver.Result, error)

// Predicate decides whether a conditional handler applies to a context.
type Predicate func(ac *ActionContext) bool

type link struct {
	handler   Handler
	predicate Predicate
}

// Chain is the ordered middleware pipeline every page action passes
// through. Handlers run in strict registration order: the first registered
// handler is the outermost, first to see the context and last to see the
// result.
type Chain struct {
	links []link
}

// NewChain returns an empty chain.
func NewChain() *Chain { return &Chain{} }

// Use appends a handler to the chain.
func (c *Chain) Use(h Handler) {
	c.links = append(c.links, link{handler: h})
}

// UseIf appends a handler that only runs when the predicate holds for the
// context. When it does not, the link is a transparent passthrough; its
// position in the chain is preserved either way.
func (c *Chain) UseIf(p Predicate, h Handler) {
	c.links = append(c.links, link{handler: h, predicate: p})
}

// Len returns the number of registered links.
func (c *Chain) Len() int { return len(c.links) }

// Run composes handler_1(handler_2(...(terminal)...)) and invokes it.
// Errors from any handler propagate unchanged; the chain never catches or
// reinterprets them.
func (c *Chain) Run(ctx context.Context, ac *ActionContext, terminal Next) (driver.Result, error) {
	next := terminal
	for i := len(c.links) - 1; i >= 0; i-- {
		l := c.links[i]
		inner := next
		next = func(ctx context.Context) (driver.Result, error) {
			if l.predicate != nil && !l.predicate(ac) {
				return inner(ctx)
			}
			return l.handler(ctx, ac, inner)
		}
	}
	return next(ctx)
}

// -- Built-in handlers --

// Logging logs every action with its outcome and duration.
func Logging(logger *zap.Logger) Handler {
	log := logger.Named("action")
	return func(ctx context.Context, ac *ActionContext, next Next) (driver.Result, error) {
		start := time.Now()
		res, err := next(ctx)
		fields := []zap.Field{
			zap.String("action", string(ac.Action)),
			zap.Stringer("locator", ac.Locator),
			zap.Int("attempt", ac.Attempt),
			zap.Duration("elapsed", time.Since(start)),
		}
		if err != nil {
			log.Warn("Action failed.", append(fields, zap.Error(err))...)
		} else {
			log.Debug("Action completed.", fields...)
		}
		return res, err
	}
}

// Timing records the elapsed duration of the inner chain into the context
// scratch values under the "elapsed" key.
func Timing() Handler {
	return func(ctx context.Context, ac *ActionContext, next Next) (driver.Result, error) {
		start := time.Now()
		res, err := next(ctx)
		ac.Values["elapsed"] = time.Since(start)
		return res, err
	}
}

// Pacing throttles actions through a shared rate limiter, waiting before
// delegating. Useful against backends that fall over under rapid-fire
// commands.
func Pacing(limiter *rate.Limiter) Handler {
	return func(ctx context.Context, ac *ActionContext, next Next) (driver.Result, error) {
		if err := limiter.Wait(ctx); err != nil {
			return driver.Result{}, err
		}
		return next(ctx)
	}
}
