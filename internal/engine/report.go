package engine

import (
	"time"

	"github.com/roach88/idsync/internal/match"
	"github.com/roach88/idsync/internal/rewrite"
)

// Report is the result of reconciling one target collection.
//
// Every scanned record lands in exactly one of Updated, AlreadyCorrect,
// NotFound, Skipped or Failed.
type Report struct {
	RunID      string    `json:"run_id"`
	Target     string    `json:"target"`
	DryRun     bool      `json:"dry_run,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Scanned        int `json:"scanned"`
	Updated        int `json:"updated"`
	AlreadyCorrect int `json:"already_correct"`
	NotFound       int `json:"not_found"`
	Skipped        int `json:"skipped"`
	Failed         int `json:"failed"`

	// ByTier counts matched records per match key tier.
	ByTier map[string]int `json:"by_tier,omitempty"`

	// Unmatched lists NotFound records with their raw identity fields.
	Unmatched []Unmatched `json:"unmatched,omitempty"`

	// SkippedKeys lists the keys of records with no identity information.
	SkippedKeys []string `json:"skipped_keys,omitempty"`

	// Changes lists the updates written (or, on a dry run, planned).
	Changes []Change `json:"changes,omitempty"`

	Failures []*Error         `json:"failures,omitempty"`
	Index    match.IndexStats `json:"index"`
}

// Unmatched is a record that had identity information but no match.
type Unmatched struct {
	Key      string `json:"key"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email,omitempty"`
}

// Change describes one record update.
type Change struct {
	Key      string `json:"key"`
	StableID string `json:"stable_id"`
	Tier     string `json:"tier"`

	// Previous holds the replaced text of each changed tracked field.
	// A field that did not exist maps to "".
	Previous map[string]string `json:"previous"`
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SyncReport is the result of reconciling a live store and its mirror.
type SyncReport struct {
	Live   *Report `json:"live"`
	Mirror *Report `json:"mirror"`
}

// PropagateReport is the result of pushing an old->new id mapping into a store.
type PropagateReport struct {
	RunID    string           `json:"run_id"`
	DryRun   bool             `json:"dry_run,omitempty"`
	Pairs    []PairResult     `json:"pairs"`
	Matched  int64            `json:"matched"`
	Modified int64            `json:"modified"`
	Failures []*Error         `json:"failures,omitempty"`
	Changes  []rewrite.Change `json:"changes,omitempty"`
}

// PairResult is the outcome of one UpdateMany call.
type PairResult struct {
	Field    string `json:"field"`
	Old      string `json:"old"`
	New      string `json:"new"`
	Matched  int64  `json:"matched"`
	Modified int64  `json:"modified"`
}
