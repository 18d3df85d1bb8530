package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/coldfetch/internal/fetch"
	"github.com/roach88/coldfetch/internal/fixture"
)

// Scenario defines a conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario; it names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Fixture is an optional fixture file path, relative to the scenario.
	Fixture string `yaml:"fixture,omitempty"`

	// Records are seeded after the fixture file.
	Records []fixture.Entry `yaml:"records,omitempty"`

	// Steps run in order against the seeded store.
	Steps []Step `yaml:"steps"`
}

// Step runs one request.
type Step struct {
	Name string `yaml:"name"`

	// Request is CUE source declaring a top-level `request`.
	Request string `yaml:"request"`

	// Cancel is empty, "before_run" or "during_run".
	Cancel string `yaml:"cancel,omitempty"`

	Expect Expect `yaml:"expect"`
}

// Expect is the expected outcome of a step.
type Expect struct {
	// Outcome is "completed", "failed" or "cancelled".
	Outcome string `yaml:"outcome"`

	// IDs are the expected record IDs, in order (completed only).
	IDs []string `yaml:"ids,omitempty"`

	// Error is the expected error kind (failed only).
	Error string `yaml:"error,omitempty"`

	// Calls is the expected number of executor calls, when set.
	Calls *int `yaml:"calls,omitempty"`
}

// Step cancellation modes and outcomes.
const (
	CancelBeforeRun = "before_run"
	CancelDuringRun = "during_run"

	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

var (
	cancelModes = []string{"", CancelBeforeRun, CancelDuringRun}
	outcomes    = []string{OutcomeCompleted, OutcomeFailed, OutcomeCancelled}
	errorKinds  = []string{string(fetch.KindValidation), string(fetch.KindStoreAccess)}
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative Fixture path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "step:" vs "steps:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Fixture != "" && !filepath.IsAbs(scenario.Fixture) {
		scenario.Fixture = filepath.Join(filepath.Dir(path), scenario.Fixture)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if s.Fixture != "" {
		if _, err := os.Stat(s.Fixture); os.IsNotExist(err) {
			return fmt.Errorf("fixture file not found: %s", s.Fixture)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	return nil
}

// validateStep validates a single step and its expectation.
func validateStep(index int, st *Step) error {
	if st.Name == "" {
		return fmt.Errorf("steps[%d]: name is required", index)
	}
	if st.Request == "" {
		return fmt.Errorf("steps[%d]: request is required", index)
	}
	if !slices.Contains(cancelModes, st.Cancel) {
		return fmt.Errorf("steps[%d]: invalid cancel %q: must be before_run or during_run", index, st.Cancel)
	}

	e := st.Expect
	if !slices.Contains(outcomes, e.Outcome) {
		return fmt.Errorf("steps[%d].expect: invalid outcome %q: must be one of %v", index, e.Outcome, outcomes)
	}
	if st.Cancel != "" && e.Outcome != OutcomeCancelled {
		return fmt.Errorf("steps[%d].expect: a cancelled step must expect outcome cancelled", index)
	}

	switch e.Outcome {
	case OutcomeFailed:
		if !slices.Contains(errorKinds, e.Error) {
			return fmt.Errorf("steps[%d].expect: error must be one of %v for outcome failed", index, errorKinds)
		}
		if len(e.IDs) > 0 {
			return fmt.Errorf("steps[%d].expect: ids are not allowed for outcome failed", index)
		}
	default:
		if e.Error != "" {
			return fmt.Errorf("steps[%d].expect: error is only allowed for outcome failed", index)
		}
	}
	if e.Outcome == OutcomeCancelled && len(e.IDs) > 0 {
		return fmt.Errorf("steps[%d].expect: ids are not allowed for outcome cancelled", index)
	}

	return nil
}
