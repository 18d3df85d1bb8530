package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/coldfetch/internal/ir"
)

// Snapshot returns the canonical JSON of a scenario's observed steps.
// Error messages are left out; kinds are stable, wording is not.
func Snapshot(name string, result *Result) ([]byte, error) {
	steps := make(ir.Array, len(result.Steps))
	for i, sr := range result.Steps {
		step := ir.Object{
			"step":         ir.String(sr.Step),
			"subscription": ir.String(sr.Subscription),
			"outcome":      ir.String(sr.Outcome),
			"calls":        ir.Int(sr.Calls),
		}
		if sr.Outcome == OutcomeCompleted {
			ids := make(ir.Array, len(sr.IDs))
			for j, id := range sr.IDs {
				ids[j] = ir.String(id)
			}
			step["ids"] = ids
		}
		if sr.Error != "" {
			step["error"] = ir.String(sr.Error)
		}
		steps[i] = step
	}

	return ir.MarshalCanonical(ir.Object{
		"scenario": ir.String(name),
		"steps":    steps,
	})
}

// AssertGolden compares the result snapshot with
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		t.Fatalf("snapshot %s: %v", name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
