package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/coldfetch/internal/compiler"
	"github.com/roach88/coldfetch/internal/fetch"
	"github.com/roach88/coldfetch/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Fetch failed, scenario failed, or timed out
	ExitCommandError = 2 // Command error (bad arguments, unreadable files, bad config)
)

// Error codes reported in JSON output.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeConfig      = "E002" // Configuration could not be loaded
	ErrCodeNotFound    = "E005" // Path not found or unreadable
	ErrCodeCompile     = "E101" // CUE request did not compile
	ErrCodeFixture     = "E102" // Fixture file invalid
	ErrCodeValidation  = "E201" // Request failed validation
	ErrCodeStoreAccess = "E202" // Store call failed
	ErrCodeTimeout     = "E203" // Fetch did not deliver in time
	ErrCodeScenario    = "E301" // One or more scenarios failed
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E201", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// JSON reports whether output is JSON.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success writes data as a JSON response. Text output is written by each
// command itself.
func (f *OutputFormatter) Success(data any) error {
	return json.NewEncoder(f.Writer).Encode(CLIResponse{
		Status: "ok",
		Data:   data,
	})
}

// Fail reports err in the configured format and returns it as an ExitError.
// In text mode nothing is written here; main prints the returned error.
func (f *OutputFormatter) Fail(exitCode int, code, message string, err error) error {
	if f.JSON() {
		var details any
		if err != nil {
			details = err.Error()
		}
		_ = json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	return WrapExitError(exitCode, message, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// errorCode maps a failure to its JSON error code.
func errorCode(err error) string {
	var compileErr *compiler.CompileError
	switch {
	case errors.As(err, &compileErr):
		return ErrCodeCompile
	case fetch.IsValidation(err):
		return ErrCodeValidation
	case fetch.IsStoreAccess(err):
		return ErrCodeStoreAccess
	default:
		return ErrCodeGeneric
	}
}

// RecordView is the JSON shape of a record.
type RecordView struct {
	ID     string         `json:"id"`
	Entity string         `json:"entity"`
	Fields map[string]any `json:"fields"`
}

func recordViews(records []ir.Record) []RecordView {
	views := make([]RecordView, len(records))
	for i, r := range records {
		fields, _ := ir.ToAny(r.Fields).(map[string]any)
		if fields == nil {
			fields = map[string]any{}
		}
		views[i] = RecordView{ID: r.ID, Entity: r.Entity, Fields: fields}
	}
	return views
}

// writeRecordsText prints one line per record: id, then canonical fields.
func writeRecordsText(w io.Writer, records []ir.Record) error {
	for _, r := range records {
		fields := r.Fields
		if fields == nil {
			fields = ir.Object{}
		}
		data, err := ir.MarshalCanonical(fields)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", r.ID, err)
		}
		fmt.Fprintf(w, "%s\t%s\n", r.ID, data)
	}
	fmt.Fprintf(w, "%d record(s)\n", len(records))
	return nil
}
