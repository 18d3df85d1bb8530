package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/coldfetch/internal/fixture"
)

func intPtr(n int) *int { return &n }

func TestRunFile_Lifecycle(t *testing.T) {
	scenario, result, err := RunFile(context.Background(), "testdata/scenarios/lifecycle.yaml")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Steps, len(scenario.Steps))

	AssertGolden(t, scenario.Name, result)
}

func TestRun_ReportsMismatches(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "Expectations that do not hold",
		Records: []fixture.Entry{
			{Entity: "Task", ID: "a", Fields: map[string]any{"n": 1}},
			{Entity: "Task", ID: "b", Fields: map[string]any{"n": 2}},
		},
		Steps: []Step{
			{
				Name:    "wrong_ids",
				Request: `request: entity: "Task"`,
				Expect:  Expect{Outcome: OutcomeCompleted, IDs: []string{"b", "a"}},
			},
			{
				Name:    "wrong_outcome",
				Request: `request: entity: "9bad"`,
				Expect:  Expect{Outcome: OutcomeCompleted, Calls: intPtr(1)},
			},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "expected ids [b a], got [a b]")
	assert.Contains(t, result.Errors[1], "expected outcome completed, got failed")
	assert.Contains(t, result.Errors[2], "expected 1 executor calls, got 0")

	assert.Equal(t, "ValidationError", result.Steps[1].Error)
	assert.NotEmpty(t, result.Steps[1].Message)
}

func TestRun_CompileErrorIsInfrastructure(t *testing.T) {
	scenario := &Scenario{
		Name:        "broken",
		Description: "Request that is not CUE",
		Steps: []Step{{
			Name:    "bad",
			Request: `request: {`,
			Expect:  Expect{Outcome: OutcomeCompleted},
		}},
	}

	_, err := Run(context.Background(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile request")
}

func TestRun_BadInlineRecords(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_records",
		Description: "Inline records that do not convert",
		Records:     []fixture.Entry{{Entity: "Task", ID: "a", Fields: map[string]any{"x": 1.5}}},
		Steps:       []Step{{Name: "s", Request: `request: entity: "Task"`, Expect: Expect{Outcome: OutcomeCompleted}}},
	}

	_, err := Run(context.Background(), scenario)
	assert.ErrorContains(t, err, "inline records")
}

func TestSnapshot_OmitsMessages(t *testing.T) {
	data, err := Snapshot("s", &Result{Steps: []StepResult{{
		Step: "x", Subscription: "sub-0001", Outcome: OutcomeFailed,
		Error: "StoreAccessError", Message: "disk full", Calls: 1,
	}}})
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario":"s","steps":[{"calls":1,"error":"StoreAccessError","outcome":"failed","step":"x","subscription":"sub-0001"}]}`,
		string(data))
}
