// internal/pipeline/context.go
package pipeline

import (
	"github.com/halcyonqa/halcyon/internal/driver"
	"github.com/halcyonqa/halcyon/internal/locator"
)

// ActionContext describes one page operation as it travels through the
// middleware chain. It is created once per Execute call and threaded
// through every handler.
//
// Attempt starts at 1 and increments only on a recovery-triggered retry.
// A self-healing substitution swaps the locator within the same attempt.
type ActionContext struct {
	Action  driver.Action
	Locator locator.Locator
	Page    string
	Attempt int
	Args    driver.Args

	// Values is scratch space for middleware to pass data down the chain,
	// e.g. a timing handler recording when it saw the context.
	Values map[string]any
}

// NewActionContext builds a context for a first attempt.
func NewActionContext(action driver.Action, loc locator.Locator, args driver.Args) *ActionContext {
	ac := &ActionContext{
		Action:  action,
		Locator: loc,
		Attempt: 1,
		Args:    args,
		Values:  make(map[string]any),
	}
	ac.Page = ac.Arg(ArgPage)
	return ac
}

// Arg returns a named action argument, or "" when absent.
func (ac *ActionContext) Arg(key string) string {
	if ac.Args == nil {
		return ""
	}
	return ac.Args[key]
}

// Navigates reports whether the caller flagged this action as a page
// transition. Such actions clear the whole element cache on success.
func (ac *ActionContext) Navigates() bool {
	return ac.Arg(ArgNavigates) == "true"
}

// ArgNavigates marks an action as screen-changing. Set it to "true" on
// clicks that are expected to navigate.
const ArgNavigates = "navigates"

// ArgText carries the text payload for type actions.
const ArgText = "text"

// ArgPage names the page object issuing the action, for log attribution.
const ArgPage = "page"
