// internal/driver/driver.go

// Package driver defines the boundary to the remote device-automation
// backend. The resilience pipeline only ever talks to a device through the
// Driver interface; concrete wire clients live in subpackages.
package driver

import (
	"context"
	"time"

	"github.com/halcyonqa/halcyon/internal/locator"
)

// Handle is an opaque reference to a resolved element. A handle may become
// stale at any time if the underlying UI tree re-renders; callers must be
// prepared for IsAttached to report false for a handle they hold.
type Handle struct {
	ID string
}

// IsZero reports whether the handle is empty.
func (h Handle) IsZero() bool { return h.ID == "" }

// Action names a single page operation performed against an element.
type Action string

const (
	ActionClick         Action = "click"
	ActionTypeText      Action = "type_text"
	ActionGetText       Action = "get_text"
	ActionAssertPresent Action = "assert_present"
)

// Args carries action-specific arguments, e.g. the text for a type action.
type Args map[string]string

// Result is the outcome of a successfully performed action. Value holds the
// extracted text for read actions and is empty otherwise.
type Result struct {
	Value string
}

// Driver is the session-scoped surface of the automation backend consumed
// by the pipeline. Implementations are expected to be synchronous; every
// call runs to its own protocol-level timeout.
type Driver interface {
	// FindElement resolves a locator to a handle, or returns an element
	// error of kind NotFound.
	FindElement(ctx context.Context, loc locator.Locator) (Handle, error)

	// IsAttached probes whether a handle still refers to an element that is
	// present in the current UI tree. It never returns an error; any probe
	// failure is reported as not attached.
	IsAttached(ctx context.Context, h Handle) bool

	// PerformAction executes an action against a resolved handle.
	PerformAction(ctx context.Context, h Handle, action Action, args Args) (Result, error)

	// PageSource returns the current UI hierarchy as XML.
	PageSource(ctx context.Context) ([]byte, error)

	// WindowSize returns the device screen dimensions in pixels.
	WindowSize(ctx context.Context) (width, height int, err error)

	// Swipe performs a pointer gesture between two screen coordinates.
	Swipe(ctx context.Context, fromX, fromY, toX, toY int, duration time.Duration) error

	// PressBack presses the hardware/system back button.
	PressBack(ctx context.Context) error

	// Dismiss resolves a locator and taps it, used to clear blocking
	// dialogs without going through the action pipeline.
	Dismiss(ctx context.Context, loc locator.Locator) error

	// RestartApp force-stops and relaunches the application under test.
	RestartApp(ctx context.Context) error

	// CurrentContext returns the active automation context name, e.g.
	// "NATIVE_APP" or "WEBVIEW_com.example".
	CurrentContext(ctx context.Context) (string, error)

	// SwitchContext switches the active automation context.
	SwitchContext(ctx context.Context, name string) error
}
