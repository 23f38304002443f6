// internal/driver/errors.go
package driver

import (
	"errors"
	"fmt"

	"github.com/halcyonqa/halcyon/internal/locator"
)

// Kind classifies an element error. The set is closed; callers switch on
// the kind rather than on concrete error types.
type Kind string

const (
	// KindNotFound means the locator resolved to zero elements.
	KindNotFound Kind = "not_found"
	// KindNotInteractable means the element resolved but cannot receive the
	// requested action (hidden, disabled, obscured).
	KindNotInteractable Kind = "not_interactable"
	// KindStale means a previously resolved handle no longer refers to an
	// attached element. Stale errors are absorbed by the element cache and
	// never surface to callers.
	KindStale Kind = "stale"
	// KindTimeout means the driver call hit its protocol-level timeout.
	KindTimeout Kind = "timeout"
	// KindProtocol covers connection and wire-format failures. These are
	// non-transient: no healing or recovery is attempted for them.
	KindProtocol Kind = "protocol"
)

// ElementError is the structured error produced at the driver boundary.
type ElementError struct {
	Kind    Kind
	Locator locator.Locator
	Action  Action
	Err     error
}

func (e *ElementError) Error() string {
	msg := fmt.Sprintf("driver: %s", e.Kind)
	if !e.Locator.IsZero() {
		msg += fmt.Sprintf(" (%s)", e.Locator)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ElementError) Unwrap() error { return e.Err }

// NewElementError builds an ElementError for the given kind and locator.
func NewElementError(kind Kind, loc locator.Locator, cause error) *ElementError {
	return &ElementError{Kind: kind, Locator: loc, Err: cause}
}

// KindOf extracts the error kind, or KindProtocol for errors that did not
// originate at the driver boundary.
func KindOf(err error) Kind {
	var ee *ElementError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return KindProtocol
}

// IsTransient reports whether the error belongs to the failure classes the
// pipeline is allowed to heal or recover from. Assertion failures and
// protocol errors are not transient.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindNotInteractable, KindTimeout:
		return true
	default:
		return false
	}
}
