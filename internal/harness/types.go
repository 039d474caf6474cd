package harness

import (
	"github.com/roach88/idsync/internal/doc"
	"github.com/roach88/idsync/internal/engine"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation held.
	Pass bool `json:"pass"`

	// Errors contains failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Report is set for reconcile; Sync for sync; Propagate for propagate.
	Report    *engine.Report          `json:"report,omitempty"`
	Sync      *engine.SyncReport      `json:"sync,omitempty"`
	Propagate *engine.PropagateReport `json:"propagate,omitempty"`

	// Documents and Mirror hold the final store contents.
	Documents []doc.Object `json:"-"`
	Mirror    []doc.Object `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// LiveReport returns the report for the live store, or nil for propagate.
func (r *Result) LiveReport() *engine.Report {
	if r.Sync != nil {
		return r.Sync.Live
	}
	return r.Report
}
