package harness

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/idsync/internal/doc"
	"github.com/roach88/idsync/internal/engine"
	"github.com/roach88/idsync/internal/extjson"
	"github.com/roach88/idsync/internal/store"
)

// AssertionError is returned when an expectation fails.
type AssertionError struct {
	Check    string // e.g. "report.updated", "document OrderID=O1"
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Check)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateExpectations checks every expectation and returns one message per
// failure.
func EvaluateExpectations(ctx context.Context, result *Result, expect Expectations, live, mirror store.Collection) []string {
	var errs []error

	if expect.Report != nil {
		errs = append(errs, checkReport("report", result.LiveReport(), expect.Report)...)
	}
	if expect.MirrorReport != nil {
		var mirrorReport *engine.Report
		if result.Sync != nil {
			mirrorReport = result.Sync.Mirror
		}
		errs = append(errs, checkReport("mirror_report", mirrorReport, expect.MirrorReport)...)
	}
	if expect.Propagate != nil {
		errs = append(errs, checkPropagate(result.Propagate, expect.Propagate)...)
	}
	for _, c := range expect.Documents {
		if err := checkDocument(ctx, "document", live, c); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range expect.MirrorDocuments {
		if err := checkDocument(ctx, "mirror document", mirror, c); err != nil {
			errs = append(errs, err)
		}
	}

	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return msgs
}

func checkReport(name string, r *engine.Report, want *ReportExpect) []error {
	if r == nil {
		return []error{&AssertionError{Check: name, Expected: "a report", Actual: "none"}}
	}

	var errs []error
	checkInt := func(field string, want *int, got int) {
		if want != nil && *want != got {
			errs = append(errs, &AssertionError{
				Check:    name + "." + field,
				Expected: fmt.Sprint(*want),
				Actual:   fmt.Sprint(got),
			})
		}
	}
	checkKeys := func(field string, want, got []string) {
		if want != nil && !slices.Equal(want, got) {
			errs = append(errs, &AssertionError{
				Check:    name + "." + field,
				Expected: fmt.Sprint(want),
				Actual:   fmt.Sprint(got),
			})
		}
	}

	checkInt("updated", want.Updated, r.Updated)
	checkInt("already_correct", want.AlreadyCorrect, r.AlreadyCorrect)
	checkInt("not_found", want.NotFound, r.NotFound)
	checkInt("skipped", want.Skipped, r.Skipped)
	checkInt("failed", want.Failed, r.Failed)

	for _, tier := range slices.Sorted(maps.Keys(want.ByTier)) {
		checkInt("by_tier."+tier, ptr(want.ByTier[tier]), r.ByTier[tier])
	}

	unmatched := make([]string, len(r.Unmatched))
	for i, u := range r.Unmatched {
		unmatched[i] = u.Key
	}
	failed := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		failed[i] = f.Key
	}
	checkKeys("unmatched_keys", want.UnmatchedKeys, unmatched)
	checkKeys("skipped_keys", want.SkippedKeys, r.SkippedKeys)
	checkKeys("failed_keys", want.FailedKeys, failed)

	return errs
}

func checkPropagate(r *engine.PropagateReport, want *PropagateExpect) []error {
	if r == nil {
		return []error{&AssertionError{Check: "propagate", Expected: "a report", Actual: "none"}}
	}

	var errs []error
	if want.Matched != nil && *want.Matched != r.Matched {
		errs = append(errs, &AssertionError{Check: "propagate.matched", Expected: fmt.Sprint(*want.Matched), Actual: fmt.Sprint(r.Matched)})
	}
	if want.Modified != nil && *want.Modified != r.Modified {
		errs = append(errs, &AssertionError{Check: "propagate.modified", Expected: fmt.Sprint(*want.Modified), Actual: fmt.Sprint(r.Modified)})
	}
	if want.Failed != nil && *want.Failed != len(r.Failures) {
		errs = append(errs, &AssertionError{Check: "propagate.failed", Expected: fmt.Sprint(*want.Failed), Actual: fmt.Sprint(len(r.Failures))})
	}
	return errs
}

// checkDocument finds the document selected by c.Where and compares each
// expected field. Values are compared variant and all, so !oid "x" does not
// match "x".
func checkDocument(ctx context.Context, name string, coll store.Collection, c DocumentCheck) error {
	where := c.Where.Object[0]
	filter := store.Eq(where.Key, where.Value)
	check := name + " " + filter.String()

	got, err := coll.FindOne(ctx, filter)
	if errors.Is(err, store.ErrNoDocument) {
		return &AssertionError{Check: check, Expected: "document exists", Actual: "no document"}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", check, err)
	}

	var diffs []string
	for _, f := range c.Fields.Object {
		actual, ok := got.Lookup(f.Key)
		if !ok {
			diffs = append(diffs, fmt.Sprintf("%s = %s, got missing", f.Key, render(f.Value)))
			continue
		}
		if !doc.Equal(actual, f.Value) {
			diffs = append(diffs, fmt.Sprintf("%s = %s, got %s", f.Key, render(f.Value), render(actual)))
		}
	}
	if len(diffs) > 0 {
		return &AssertionError{
			Check:    check,
			Expected: "fields to match",
			Actual:   strings.Join(diffs, "; "),
		}
	}
	return nil
}

// render shows a value in extended JSON so variants are visible.
func render(v doc.Value) string {
	data, err := extjson.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%s>", doc.Kind(v))
	}
	return string(data)
}

func ptr[T any](v T) *T {
	return &v
}
