// internal/page/page.go

// Package page provides the base type that concrete page objects embed.
// Every interaction goes through the session's resilience pipeline; page
// objects never touch the driver directly except for screen-level gestures.
package page

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/halcyonqa/halcyon/internal/driver"
	"github.com/halcyonqa/halcyon/internal/locator"
	"github.com/halcyonqa/halcyon/internal/pipeline"
)

// swipeDuration is the press-move-release gesture length.
const swipeDuration = 800 * time.Millisecond

// Page is the embeddable base for page objects. Name shows up in logs to
// attribute actions to screens.
type Page struct {
	name   string
	exec   *pipeline.Executor
	drv    driver.Driver
	logger *zap.Logger
}

// New builds a page bound to a session's executor.
func New(name string, exec *pipeline.Executor, drv driver.Driver, logger *zap.Logger) *Page {
	return &Page{
		name:   name,
		exec:   exec,
		drv:    drv,
		logger: logger.Named("page").With(zap.String("page", name)),
	}
}

// Name returns the page's display name.
func (p *Page) Name() string { return p.name }

// Click taps the element.
func (p *Page) Click(ctx context.Context, loc locator.Locator) error {
	_, err := p.exec.Execute(ctx, driver.ActionClick, loc, driver.Args{pipeline.ArgPage: p.name})
	return err
}

// ClickNavigates taps an element that transitions to another screen. The
// whole element cache is dropped afterwards since every cached handle
// belongs to the old screen.
func (p *Page) ClickNavigates(ctx context.Context, loc locator.Locator) error {
	_, err := p.exec.Execute(ctx, driver.ActionClick, loc, driver.Args{
		pipeline.ArgPage:      p.name,
		pipeline.ArgNavigates: "true",
	})
	return err
}

// TypeText clears the element and types text into it.
func (p *Page) TypeText(ctx context.Context, loc locator.Locator, text string) error {
	_, err := p.exec.Execute(ctx, driver.ActionTypeText, loc, driver.Args{
		pipeline.ArgPage: p.name,
		pipeline.ArgText: text,
	})
	return err
}

// Text reads the element's visible text.
func (p *Page) Text(ctx context.Context, loc locator.Locator) (string, error) {
	res, err := p.exec.Execute(ctx, driver.ActionGetText, loc, driver.Args{pipeline.ArgPage: p.name})
	if err != nil {
		return "", err
	}
	return res.Value, nil
}

// IsPresent reports whether the element currently resolves. It runs the
// full pipeline, so healing and recovery apply before the answer is no.
func (p *Page) IsPresent(ctx context.Context, loc locator.Locator) bool {
	_, err := p.exec.Execute(ctx, driver.ActionAssertPresent, loc, driver.Args{pipeline.ArgPage: p.name})
	return err == nil
}

// SwipeUp scrolls content upward (finger moves from lower to upper).
func (p *Page) SwipeUp(ctx context.Context) error {
	return p.swipe(ctx, func(w, h int) (int, int, int, int) {
		return w / 2, h * 3 / 4, w / 2, h / 4
	})
}

// SwipeDown scrolls content downward.
func (p *Page) SwipeDown(ctx context.Context) error {
	return p.swipe(ctx, func(w, h int) (int, int, int, int) {
		return w / 2, h / 4, w / 2, h * 3 / 4
	})
}

// SwipeLeft swipes from the right edge toward the left.
func (p *Page) SwipeLeft(ctx context.Context) error {
	return p.swipe(ctx, func(w, h int) (int, int, int, int) {
		return w * 3 / 4, h / 2, w / 4, h / 2
	})
}

// SwipeRight swipes from the left edge toward the right.
func (p *Page) SwipeRight(ctx context.Context) error {
	return p.swipe(ctx, func(w, h int) (int, int, int, int) {
		return w / 4, h / 2, w * 3 / 4, h / 2
	})
}

// swipe computes gesture coordinates from the window size, performs the
// gesture, and invalidates the cache: a scroll moves or detaches every
// element on screen.
func (p *Page) swipe(ctx context.Context, coords func(w, h int) (fx, fy, tx, ty int)) error {
	w, h, err := p.drv.WindowSize(ctx)
	if err != nil {
		return fmt.Errorf("page %s: window size: %w", p.name, err)
	}
	fx, fy, tx, ty := coords(w, h)
	if err := p.drv.Swipe(ctx, fx, fy, tx, ty, swipeDuration); err != nil {
		return fmt.Errorf("page %s: swipe: %w", p.name, err)
	}
	p.exec.InvalidateScreen()
	p.logger.Debug("Swiped.", zap.Int("from_x", fx), zap.Int("from_y", fy),
		zap.Int("to_x", tx), zap.Int("to_y", ty))
	return nil
}
