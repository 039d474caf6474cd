package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/idsync/internal/snapshot"
)

// RunWithGolden executes a scenario and compares the final live documents,
// in snapshot file form, against testdata/golden/{scenario.Name}.golden.
// Sync scenarios also compare the mirror against {scenario.Name}_mirror.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	if scenario.Operation == OpSync {
		data, err := snapshot.Encode(result.Mirror)
		if err != nil {
			return nil, err
		}
		newGoldie(t).Assert(t, scenario.Name+"_mirror", data)
	}
	return result, nil
}

// AssertGolden compares a result's final live documents against a golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := snapshot.Encode(result.Documents)
	if err != nil {
		return err
	}
	newGoldie(t).Assert(t, name, data)
	return nil
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}
