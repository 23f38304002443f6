// internal/driver/drivertest/fake.go

// Package drivertest provides a scriptable in-memory driver for exercising
// the pipeline without a device.
package drivertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/halcyonqa/halcyon/internal/driver"
	"github.com/halcyonqa/halcyon/internal/locator"
)

// ActionCall records one PerformAction invocation.
type ActionCall struct {
	Handle driver.Handle
	Action driver.Action
	Args   driver.Args
}

// Fake is a configurable driver double. The zero value is not usable; build
// one with New.
type Fake struct {
	mu sync.Mutex

	elements map[locator.Locator]string // locator -> element id
	texts    map[string]string          // element id -> visible text
	detached map[string]bool
	source   []byte
	width    int
	height   int
	context  string

	actionErrs map[string][]error // element id -> queued action failures
	backErr    error
	restartErr error

	// OnDismiss runs after a successful Dismiss, letting tests mutate the
	// fake's screen state (e.g. reveal the element a dialog was covering).
	OnDismiss func(f *Fake, loc locator.Locator)

	finds     []locator.Locator
	actions   []ActionCall
	dismissed []locator.Locator
	restarts  int
	backs     int
}

var _ driver.Driver = (*Fake)(nil)

// New returns an empty fake with a 1080x1920 screen in the native context.
func New() *Fake {
	return &Fake{
		elements:   make(map[locator.Locator]string),
		texts:      make(map[string]string),
		detached:   make(map[string]bool),
		actionErrs: make(map[string][]error),
		width:      1080,
		height:     1920,
		context:    "NATIVE_APP",
	}
}

// AddElement makes a locator resolvable to the given element id.
func (f *Fake) AddElement(loc locator.Locator, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elements[loc] = id
	delete(f.detached, id)
}

// RemoveElement makes a locator unresolvable again.
func (f *Fake) RemoveElement(loc locator.Locator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.elements, loc)
}

// Detach marks an element id as detached: liveness probes fail and actions
// against it return a stale error.
func (f *Fake) Detach(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detached[id] = true
}

// SetText sets the visible text returned for get-text actions.
func (f *Fake) SetText(id, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts[id] = text
}

// FailActionOnce queues one action failure for an element id.
func (f *Fake) FailActionOnce(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actionErrs[id] = append(f.actionErrs[id], err)
}

// SetSource sets the XML returned by PageSource.
func (f *Fake) SetSource(xml string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.source = []byte(xml)
}

// SetContext sets the current automation context name.
func (f *Fake) SetContext(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.context = name
}

// FailBack makes PressBack return the given error.
func (f *Fake) FailBack(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backErr = err
}

// FailRestart makes RestartApp return the given error.
func (f *Fake) FailRestart(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restartErr = err
}

// FindCount returns how many times a locator was looked up.
func (f *Fake) FindCount(loc locator.Locator) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.finds {
		if l == loc {
			n++
		}
	}
	return n
}

// Actions returns the recorded action calls.
func (f *Fake) Actions() []ActionCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ActionCall, len(f.actions))
	copy(out, f.actions)
	return out
}

// Dismissed returns the locators cleared through Dismiss.
func (f *Fake) Dismissed() []locator.Locator {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]locator.Locator, len(f.dismissed))
	copy(out, f.dismissed)
	return out
}

// Restarts returns how many times the app was restarted.
func (f *Fake) Restarts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.restarts
}

// Backs returns how many times the back button was pressed.
func (f *Fake) Backs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.backs
}

// -- driver.Driver --

func (f *Fake) FindElement(ctx context.Context, loc locator.Locator) (driver.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds = append(f.finds, loc)
	id, ok := f.elements[loc]
	if !ok {
		return driver.Handle{}, driver.NewElementError(driver.KindNotFound, loc,
			errors.New("no such element"))
	}
	return driver.Handle{ID: id}, nil
}

func (f *Fake) IsAttached(ctx context.Context, h driver.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !h.IsZero() && !f.detached[h.ID]
}

func (f *Fake) PerformAction(ctx context.Context, h driver.Handle, action driver.Action, args driver.Args) (driver.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, ActionCall{Handle: h, Action: action, Args: args})

	if f.detached[h.ID] {
		return driver.Result{}, driver.NewElementError(driver.KindStale, locator.Locator{},
			fmt.Errorf("element %s is detached", h.ID))
	}
	if queue := f.actionErrs[h.ID]; len(queue) > 0 {
		err := queue[0]
		f.actionErrs[h.ID] = queue[1:]
		return driver.Result{}, err
	}
	if action == driver.ActionGetText {
		return driver.Result{Value: f.texts[h.ID]}, nil
	}
	return driver.Result{}, nil
}

func (f *Fake) PageSource(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.source == nil {
		return nil, errors.New("no page source configured")
	}
	return f.source, nil
}

func (f *Fake) WindowSize(ctx context.Context) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.width, f.height, nil
}

func (f *Fake) Swipe(ctx context.Context, fromX, fromY, toX, toY int, duration time.Duration) error {
	return nil
}

func (f *Fake) PressBack(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backs++
	return f.backErr
}

func (f *Fake) Dismiss(ctx context.Context, loc locator.Locator) error {
	f.mu.Lock()
	if _, ok := f.elements[loc]; !ok {
		f.mu.Unlock()
		return driver.NewElementError(driver.KindNotFound, loc, errors.New("no such element"))
	}
	f.dismissed = append(f.dismissed, loc)
	delete(f.elements, loc)
	hook := f.OnDismiss
	f.mu.Unlock()

	if hook != nil {
		hook(f, loc)
	}
	return nil
}

func (f *Fake) RestartApp(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restarts++
	return f.restartErr
}

func (f *Fake) CurrentContext(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.context, nil
}

func (f *Fake) SwitchContext(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.context = name
	return nil
}
