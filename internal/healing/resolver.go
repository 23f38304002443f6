// internal/healing/resolver.go

// Package healing implements the self-healing locator resolver. When a
// locator stops resolving (renamed id, restyled widget), the resolver
// inspects a snapshot of the UI hierarchy and proposes an alternative
// locator, without any side-effecting device interaction.
package healing

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/halcyonqa/halcyon/internal/hierarchy"
	"github.com/halcyonqa/halcyon/internal/locator"
)

// Candidate is a proposed replacement for a failed locator. Confidence is a
// fixed per-heuristic score; the heuristic name doubles as its provenance
// tag.
type Candidate struct {
	Locator    locator.Locator
	Heuristic  string
	Confidence float64
}

// heuristic generates candidate locators from nodes matching the extracted
// keywords. Heuristics run in declaration order; the first one with exactly
// one matching node wins. Zero or multiple matches reject the heuristic
// outright, ambiguity is never resolved by picking the first hit.
type heuristic struct {
	name       string
	confidence float64
	// match returns the locator this node would heal to, or false when the
	// node's relevant attribute does not match the keywords.
	match func(n hierarchy.Node, keywords []string) (locator.Locator, bool)
}

var heuristics = []heuristic{
	{
		name:       "text_match",
		confidence: 0.9,
		match: func(n hierarchy.Node, kws []string) (locator.Locator, bool) {
			if containsAny(n.Text(), kws) {
				return locator.ByText(n.Text()), true
			}
			return locator.Locator{}, false
		},
	},
	{
		name:       "accessibility_label",
		confidence: 0.85,
		match: func(n hierarchy.Node, kws []string) (locator.Locator, bool) {
			if containsAny(n.ContentDesc(), kws) {
				return locator.ByAccessibilityID(n.ContentDesc()), true
			}
			return locator.Locator{}, false
		},
	},
	{
		name:       "partial_id",
		confidence: 0.7,
		match: func(n hierarchy.Node, kws []string) (locator.Locator, bool) {
			if containsAny(n.ResourceID(), kws) {
				return locator.ByID(n.ResourceID()), true
			}
			return locator.Locator{}, false
		},
	},
	{
		name:       "class_text",
		confidence: 0.6,
		match: func(n hierarchy.Node, kws []string) (locator.Locator, bool) {
			if n.Class() != "" && containsAny(n.Text(), kws) {
				return locator.ByXPath(fmt.Sprintf(`//%s[@text=%q]`, n.Class(), n.Text())), true
			}
			return locator.Locator{}, false
		},
	},
	{
		name:       "hint_match",
		confidence: 0.5,
		match: func(n hierarchy.Node, kws []string) (locator.Locator, bool) {
			if containsAny(n.Hint(), kws) {
				return locator.ByXPath(fmt.Sprintf(`//*[@hint=%q]`, n.Hint())), true
			}
			return locator.Locator{}, false
		},
	},
}

// Resolver proposes and validates alternative locators against hierarchy
// snapshots. Successful resolutions are recorded in the report; nothing is
// ever written back to page-object definitions.
type Resolver struct {
	logger *zap.Logger
	report *Report
}

// NewResolver builds a resolver writing to the given report.
func NewResolver(report *Report, logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger.Named("healing"), report: report}
}

// Report exposes the append-only healing record for diagnostics.
func (r *Resolver) Report() *Report { return r.report }

// Resolve proposes a replacement for a failed locator. Each heuristic is
// tried in fixed priority order; the first to match exactly one node in the
// snapshot returns immediately. Resolve has no device side effects.
func (r *Resolver) Resolve(failed locator.Locator, snap *hierarchy.Snapshot) (Candidate, bool) {
	keywords := extractKeywords(failed.Value)
	if len(keywords) == 0 {
		return Candidate{}, false
	}

	for _, h := range heuristics {
		healed, matches := r.applyHeuristic(h, keywords, snap)
		switch matches {
		case 0:
			continue
		case 1:
			// Skip self-referential proposals: healing a locator to itself
			// would just fail again.
			if healed == failed {
				continue
			}
			cand := Candidate{Locator: healed, Heuristic: h.name, Confidence: h.confidence}
			r.report.append(Record{Original: failed, Healed: healed, Heuristic: h.name, Confidence: h.confidence})
			r.logger.Warn("Locator healed.",
				zap.Stringer("original", failed),
				zap.Stringer("healed", healed),
				zap.String("heuristic", h.name))
			return cand, true
		default:
			r.logger.Debug("Heuristic ambiguous, rejected.",
				zap.String("heuristic", h.name), zap.Int("matches", matches))
		}
	}

	r.logger.Info("No unique healing candidate found.", zap.Stringer("locator", failed))
	return Candidate{}, false
}

// applyHeuristic counts distinct matching nodes. It returns the healed
// locator of the sole match when the count is exactly one.
func (r *Resolver) applyHeuristic(h heuristic, keywords []string, snap *hierarchy.Snapshot) (locator.Locator, int) {
	var (
		healed  locator.Locator
		seen    = map[locator.Locator]struct{}{}
		matches int
	)
	snap.Walk(func(n hierarchy.Node) {
		loc, ok := h.match(n, keywords)
		if !ok {
			return
		}
		// Distinct targets only: two nodes healing to the same locator are
		// still ambiguous for that locator, count them separately.
		if _, dup := seen[loc]; dup {
			matches++
			return
		}
		seen[loc] = struct{}{}
		matches++
		healed = loc
	})
	if matches == 1 {
		return healed, 1
	}
	return locator.Locator{}, matches
}
