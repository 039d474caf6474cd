package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/idsync/internal/engine"
	"github.com/roach88/idsync/internal/store"
	"github.com/roach88/idsync/internal/testutil"
)

// Run executes a scenario and returns the result.
//
// Each scenario runs against fresh in-memory stores with a fixed run id and
// a deterministic clock, so repeated runs give identical results. A returned
// error means the scenario could not run at all; failed expectations are
// reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	live := store.NewMemory(Objects(scenario.Documents)...)
	target := testutil.NewFaultyCollection(live).FailOn(scenario.FailKeys...)
	mirror := store.NewMemory(Objects(scenario.Mirror)...)

	eng := engine.New(
		engine.WithRunIDs(testutil.NewFixedRunID(scenario.RunID)),
		engine.WithClock(testutil.NewDeterministicClock().Now),
		engine.WithWorkers(scenario.Workers),
		engine.WithDryRun(scenario.DryRun),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // suppress logs in tests
	)
	identities := engine.ExtractIdentities(Objects(scenario.Customers), engine.DefaultIdentitySpec)

	result := NewResult()
	var err error
	switch scenario.Operation {
	case OpReconcile:
		result.Report, err = eng.Reconcile(ctx, identities, target, *scenario.Target)
	case OpSync:
		result.Sync, err = eng.Sync(ctx, identities, target, mirror, *scenario.Target)
	case OpPropagate:
		result.Propagate, err = eng.Propagate(ctx, target, scenario.Mapping, scenario.Fields)
	default:
		err = fmt.Errorf("unknown operation %q", scenario.Operation)
	}
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result.Documents = live.Docs()
	result.Mirror = mirror.Docs()

	for _, msg := range EvaluateExpectations(ctx, result, scenario.Expect, live, mirror) {
		result.AddError(msg)
	}
	return result, nil
}
