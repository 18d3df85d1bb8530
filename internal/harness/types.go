package harness

// StepResult is the observed outcome of one step.
type StepResult struct {
	Step         string   `json:"step"`
	Subscription string   `json:"subscription"`
	Outcome      string   `json:"outcome"`
	IDs          []string `json:"ids,omitempty"`
	Error        string   `json:"error,omitempty"`   // error kind
	Message      string   `json:"message,omitempty"` // error text
	Calls        int      `json:"calls"`             // executor calls during the step
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step matched its expectation.
	Pass bool `json:"pass"`

	// Steps holds one entry per executed step, in order.
	Steps []StepResult `json:"steps"`

	// Errors contains expectation mismatches. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds a mismatch and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
