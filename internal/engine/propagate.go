package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/idsync/internal/doc"
	"github.com/roach88/idsync/internal/rewrite"
	"github.com/roach88/idsync/internal/snapshot"
	"github.com/roach88/idsync/internal/store"
)

// Propagate pushes an old->new id mapping into a live collection: for each
// field and each pair it issues UpdateMany({field: old}, $set{field: new}).
// Fields are dot paths; only string values match.
//
// Mappings where a new id is also an old id (chains, swaps) are rejected
// with ErrCodeInvalidSpec: pairs are applied one after another, so a later
// pair would see ids written by an earlier one.
//
// The collection is read once first, so an unreachable store fails before
// any write. On a dry run the read is also used to count what would match.
func (e *Engine) Propagate(ctx context.Context, coll store.Collection, mapping map[string]string, fields []string) (*PropagateReport, error) {
	if len(fields) == 0 {
		return nil, newSpecError("propagate: at least one field is required")
	}
	if err := validateMapping(mapping); err != nil {
		return nil, err
	}
	start := e.now()

	docs, err := coll.FindAll(ctx)
	if err != nil {
		return nil, newUnavailableError("propagate target", err)
	}

	report := &PropagateReport{RunID: e.runIDs.Generate(), DryRun: e.dryRun}
	olds := slices.Sorted(maps.Keys(mapping))

	for _, field := range fields {
		for _, old := range olds {
			next := mapping[old]
			if old == next {
				continue
			}
			pair := PairResult{Field: field, Old: old, New: next}
			key := fmt.Sprintf("%s=%s", field, old)

			if e.dryRun {
				pair.Matched = countMatches(docs, store.Eq(field, doc.String(old)))
				pair.Modified = pair.Matched
			} else {
				if err := ctx.Err(); err != nil {
					report.Failures = append(report.Failures, newWriteError(key, err))
					continue
				}
				res, err := coll.UpdateMany(ctx, store.Eq(field, doc.String(old)), store.SetField(field, doc.String(next)))
				if err != nil {
					e.metrics.ObserveWrite("propagate", "failed")
					e.logger.Warn("propagate failed", "field", field, "old", old, "error", err)
					report.Failures = append(report.Failures, newWriteError(key, err))
					continue
				}
				e.metrics.ObserveWrite("propagate", "ok")
				pair.Matched, pair.Modified = res.Matched, res.Modified
			}

			report.Matched += pair.Matched
			report.Modified += pair.Modified
			report.Pairs = append(report.Pairs, pair)
		}
	}

	e.metrics.ObserveRun("propagate", start)
	e.logger.Info("propagate finished",
		"run_id", report.RunID,
		"dry_run", report.DryRun,
		"pairs", len(report.Pairs),
		"modified", report.Modified,
		"failed", len(report.Failures),
	)
	return report, nil
}

// validateMapping rejects mappings whose new ids are themselves remapped.
// Identity pairs are ignored.
func validateMapping(mapping map[string]string) error {
	for _, old := range slices.Sorted(maps.Keys(mapping)) {
		next := mapping[old]
		if next == old {
			continue
		}
		if again, ok := mapping[next]; ok && again != next {
			return newSpecError("propagate: %s maps to %s, which is itself mapped to %s", old, next, again)
		}
	}
	return nil
}

func countMatches(docs []doc.Object, f store.Filter) int64 {
	var n int64
	for _, d := range docs {
		if f.Matches(d) {
			n++
		}
	}
	return n
}

// PropagateSnapshot rewrites every tracked field, at any depth, whose value
// appears in mapping. The input records are not modified. Change paths are
// rooted at the record list ("$[3].items[0].CustomerID").
func PropagateSnapshot(records []doc.Object, mapping map[string]string, fields []string) ([]doc.Object, []rewrite.Change) {
	arr := make(doc.Array, len(records))
	for i, r := range records {
		arr[i] = r
	}

	out, changes := rewrite.Trace(arr, rewrite.NewFieldSet(fields...), mapping)

	rewritten := out.(doc.Array)
	result := make([]doc.Object, len(rewritten))
	for i, v := range rewritten {
		result[i] = v.(doc.Object)
	}
	return result, changes
}

// PropagateFile applies PropagateSnapshot to the snapshot file at path and,
// unless this is a dry run, writes the file back when anything changed.
// It accepts the same mappings as Propagate.
func (e *Engine) PropagateFile(path string, mapping map[string]string, fields []string) (*PropagateReport, error) {
	if len(fields) == 0 {
		return nil, newSpecError("propagate: at least one field is required")
	}
	if err := validateMapping(mapping); err != nil {
		return nil, err
	}

	f, err := snapshot.Load(path)
	if err != nil {
		if errors.Is(err, snapshot.ErrFileUnavailable) {
			return nil, newFileError(path, err)
		}
		return nil, fmt.Errorf("propagate %s: %w", path, err)
	}

	docs, changes := PropagateSnapshot(f.Docs(), mapping, fields)
	report := &PropagateReport{
		RunID:    e.runIDs.Generate(),
		DryRun:   e.dryRun,
		Modified: int64(len(changes)),
		Changes:  changes,
	}

	if len(changes) > 0 && !e.dryRun {
		if err := snapshot.Write(path, docs); err != nil {
			return nil, newFileError(path, err)
		}
	}

	e.logger.Info("propagate finished",
		"run_id", report.RunID,
		"file", path,
		"dry_run", report.DryRun,
		"changes", len(changes),
	)
	return report, nil
}
