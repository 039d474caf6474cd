package engine

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/idsync/internal/doc"
	"github.com/roach88/idsync/internal/match"
	"github.com/roach88/idsync/internal/store"
)

// errRecordGone is the cause recorded when an update matched no document,
// typically because the record was deleted after it was read.
var errRecordGone = errors.New("no document matched the record key")

// Reconcile resolves every record of targets against identities and writes
// the resolved stable id into each record's stale tracked fields.
//
// A failure to read targets is returned as ErrCodeStoreUnavailable before
// anything is written. Individual write failures are collected in the
// report and do not stop the batch.
func (e *Engine) Reconcile(ctx context.Context, identities []match.IdentityRecord, targets store.Collection, spec TargetSpec) (*Report, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	start := e.now()
	ix := match.Build(identities)

	records, err := targets.FindAll(ctx)
	if err != nil {
		return nil, newUnavailableError(spec.Name, err)
	}

	report := e.run(ctx, e.runIDs.Generate(), start, ix, records, targets, spec)
	e.metrics.ObserveRun("reconcile", start)
	return report, nil
}

// Sync reconciles a live collection and its mirror (usually a snapshot file)
// against the same index. Both are read before either is written, so an
// unreachable mirror leaves the live store untouched.
func (e *Engine) Sync(ctx context.Context, identities []match.IdentityRecord, live, mirror store.Collection, spec TargetSpec) (*SyncReport, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	start := e.now()
	ix := match.Build(identities)

	liveDocs, err := live.FindAll(ctx)
	if err != nil {
		return nil, newUnavailableError(spec.Name, err)
	}
	mirrorDocs, err := mirror.FindAll(ctx)
	if err != nil {
		return nil, newUnavailableError(spec.Name+" mirror", err)
	}

	runID := e.runIDs.Generate()
	out := &SyncReport{
		Live:   e.run(ctx, runID, start, ix, liveDocs, live, spec),
		Mirror: e.run(ctx, runID, e.now(), ix, mirrorDocs, mirror, spec),
	}
	e.metrics.ObserveRun("sync", start)
	return out, nil
}

// run plans records, applies the plan to coll and folds the results into a report.
func (e *Engine) run(ctx context.Context, runID string, start time.Time, ix *match.Index, records []doc.Object, coll store.Collection, spec TargetSpec) *Report {
	e.metrics.ObserveScanned(len(records))
	plan := e.Plan(ix, records, spec)

	report := &Report{
		RunID:          runID,
		Target:         spec.Name,
		DryRun:         e.dryRun,
		StartedAt:      start,
		Scanned:        len(records),
		AlreadyCorrect: plan.AlreadyCorrect,
		NotFound:       len(plan.NotFound),
		Skipped:        len(plan.Skipped),
		ByTier:         plan.ByTier,
		Unmatched:      plan.NotFound,
		SkippedKeys:    plan.Skipped,
		Index:          ix.Stats(),
	}
	for tier, n := range plan.ByTier {
		e.metrics.ObserveTier(spec.Name, tier, n)
	}
	e.metrics.ObserveOutcome(spec.Name, "already_correct", plan.AlreadyCorrect)
	e.metrics.ObserveOutcome(spec.Name, "not_found", len(plan.NotFound))
	e.metrics.ObserveOutcome(spec.Name, "skipped", len(plan.Skipped))

	for _, failure := range plan.Invalid {
		e.fail(report, failure)
	}

	if e.dryRun {
		for _, u := range plan.Updates {
			report.Updated++
			report.Changes = append(report.Changes, changeOf(u))
		}
		e.metrics.ObserveOutcome(spec.Name, "updated", report.Updated)
		report.FinishedAt = e.now()
		e.logFinished(report)
		return report
	}

	results := e.apply(ctx, coll, plan.Updates)
	for i, u := range plan.Updates {
		r := results[i]
		switch {
		case r.err != nil:
			e.metrics.ObserveWrite(spec.Name, "failed")
			e.fail(report, newWriteError(u.Key, r.err))
		case r.res.Matched == 0:
			e.metrics.ObserveWrite(spec.Name, "failed")
			e.fail(report, newWriteError(u.Key, errRecordGone))
		case r.res.Modified == 0:
			e.metrics.ObserveWrite(spec.Name, "unchanged")
			e.metrics.ObserveOutcome(spec.Name, "already_correct", 1)
			report.AlreadyCorrect++
		default:
			e.metrics.ObserveWrite(spec.Name, "ok")
			e.metrics.ObserveOutcome(spec.Name, "updated", 1)
			report.Updated++
			report.Changes = append(report.Changes, changeOf(u))
		}
	}

	report.FinishedAt = e.now()
	e.logFinished(report)
	return report
}

type writeResult struct {
	res store.UpdateResult
	err error
}

// apply issues one UpdateOne per staged update on up to e.workers
// goroutines. Each goroutine writes only its own slot, so results line up
// with updates regardless of completion order. Once ctx is done no further
// writes are started and the remaining slots carry ctx.Err().
func (e *Engine) apply(ctx context.Context, coll store.Collection, updates []Update) []writeResult {
	results := make([]writeResult, len(updates))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, u := range updates {
		if err := ctx.Err(); err != nil {
			results[i].err = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].err = err
				return nil
			}
			res, err := coll.UpdateOne(ctx, u.Filter, u.Patch)
			results[i] = writeResult{res: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *Engine) fail(report *Report, err *Error) {
	report.Failed++
	report.Failures = append(report.Failures, err)
	e.metrics.ObserveOutcome(report.Target, "failed", 1)
	e.logger.Warn("record failed",
		"target", report.Target,
		"key", err.Key,
		"code", string(err.Code),
		"error", err.Message,
	)
}

func (e *Engine) logFinished(r *Report) {
	e.logger.Info("reconcile finished",
		"run_id", r.RunID,
		"target", r.Target,
		"dry_run", r.DryRun,
		"scanned", r.Scanned,
		"updated", r.Updated,
		"already_correct", r.AlreadyCorrect,
		"not_found", r.NotFound,
		"skipped", r.Skipped,
		"failed", r.Failed,
	)
}

func changeOf(u Update) Change {
	return Change{
		Key:      u.Key,
		StableID: u.StableID,
		Tier:     u.Tier.String(),
		Previous: u.Previous,
	}
}
