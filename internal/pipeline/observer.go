// internal/pipeline/observer.go
package pipeline

import (
	"github.com/halcyonqa/halcyon/internal/driver"
	"github.com/halcyonqa/halcyon/internal/healing"
	"github.com/halcyonqa/halcyon/internal/recovery"
)

// Observer receives pipeline lifecycle callbacks. It replaces an event-bus:
// peripheral collaborators (reporting, notifications) are handed in
// explicitly at construction, so the core has no hidden fan-out.
//
// Callbacks run synchronously on the pipeline goroutine; implementations
// must be fast and must not call back into the executor.
type Observer interface {
	// BeforeAction fires once per Execute call, before the chain runs.
	BeforeAction(ac *ActionContext)
	// AfterAction fires when the action finally succeeds or fails, after
	// any healing or recovery.
	AfterAction(ac *ActionContext, res driver.Result, err error)
	// Healed fires when a self-healing substitution made the action pass.
	Healed(ac *ActionContext, cand healing.Candidate)
	// Recovered fires when a recovery remediation cleared a blockage and
	// the retried action passed.
	Recovered(ac *ActionContext, attempts []recovery.Attempt)
}

// NopObserver ignores every callback.
type NopObserver struct{}

func (NopObserver) BeforeAction(*ActionContext)                      {}
func (NopObserver) AfterAction(*ActionContext, driver.Result, error) {}
func (NopObserver) Healed(*ActionContext, healing.Candidate)         {}
func (NopObserver) Recovered(*ActionContext, []recovery.Attempt)     {}

var _ Observer = NopObserver{}
