// internal/healing/report.go
package healing

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/halcyonqa/halcyon/internal/locator"
)

// defaultHistoryCap bounds the report so a long session cannot grow it
// without limit; the oldest records are dropped first.
const defaultHistoryCap = 500

// Record is one successful healing, kept for diagnostics. Healed locators
// are never persisted back into page-object source; updating the page
// object stays a human follow-up.
type Record struct {
	Original   locator.Locator
	Healed     locator.Locator
	Heuristic  string
	Confidence float64
	Timestamp  time.Time
}

// Suggestion renders the follow-up a page-object author should apply.
func (r Record) Suggestion() string {
	return fmt.Sprintf("update locator %s -> %s (heuristic: %s)", r.Original, r.Healed, r.Heuristic)
}

// Report is the append-only log of healings for one session.
type Report struct {
	mu      sync.Mutex
	records []Record
	cap     int
	now     func() time.Time
}

// NewReport builds an empty report with the default history cap.
func NewReport() *Report {
	return &Report{cap: defaultHistoryCap, now: time.Now}
}

func (r *Report) append(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.Timestamp = r.now()
	r.records = append(r.records, rec)
	if len(r.records) > r.cap {
		r.records = r.records[len(r.records)-r.cap:]
	}
}

// Records returns a copy of the recorded healings, oldest first.
func (r *Report) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Len returns the number of recorded healings.
func (r *Report) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Clear drops all records.
func (r *Report) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}

// String renders a human-readable healing report.
func (r *Report) String() string {
	records := r.Records()
	if len(records) == 0 {
		return "no locator healings recorded"
	}
	var sb strings.Builder
	sb.WriteString("locator healing report\n")
	for i, rec := range records {
		fmt.Fprintf(&sb, "  [%d] %s\n      original: %s\n      healed:   %s\n",
			i+1, rec.Heuristic, rec.Original, rec.Healed)
		fmt.Fprintf(&sb, "      %s\n", rec.Suggestion())
	}
	return sb.String()
}
