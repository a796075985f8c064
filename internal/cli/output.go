package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/roach88/liftsync/internal/fleet"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rejected request, failed scenario, lost connection
	ExitCommandError = 2 // Bad arguments, unreadable config, database not opened
)

// Error codes reported in JSON output.
const (
	CodeArgs       = "E_ARGS"
	CodeConfig     = "E_CONFIG"
	CodeStorage    = "E_STORAGE"
	CodeValidation = "E_VALIDATION"
	CodeConnection = "E_CONNECTION"
	CodeTestFailed = "E_TEST_FAILED"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code     int    // Exit code (use ExitFailure or ExitCommandError)
	Kind     string // JSON error code, e.g. CodeValidation
	Message  string // Error message
	Err      error  // Underlying error (optional)
	Reported bool   // Already written to the command output
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

// rejected converts a synchronous store rejection into an ExitError.
func rejected(err error) error {
	if fleet.IsValidation(err) {
		return &ExitError{
			Code:    ExitFailure,
			Kind:    CodeValidation,
			Message: "request rejected",
			Err:     err,
		}
	}
	return err
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
	Code    string `json:"code"`              // CodeValidation, CodeConfig, ...
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs data: as JSON, or with fmt.Println in text mode.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Result outputs text in text mode and data as a JSON response otherwise.
func (f *OutputFormatter) Result(text string, data any) error {
	if f.Format == "json" {
		return f.Success(data)
	}
	_, err := io.WriteString(f.Writer, text)
	return err
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
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

// formatFleet renders f as a short header and one table row per elevator.
func formatFleet(f fleet.Fleet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Building: %d floors, %d elevators\n", f.TotalFloors, len(f.Elevators))

	calls := make([]string, len(f.ExternalStops))
	for i, s := range f.ExternalStops {
		calls[i] = s.String()
	}
	if len(calls) == 0 {
		b.WriteString("Hall calls: none\n")
	} else {
		fmt.Fprintf(&b, "Hall calls: %s\n", strings.Join(calls, " "))
	}

	if len(f.Elevators) == 0 {
		return b.String()
	}
	b.WriteByte('\n')
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ELEVATOR\tFLOOR\tDIR\tDOOR\tUP\tDOWN")
	for _, e := range f.Elevators {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%v\t%v\n",
			e.ID, e.Position, e.Direction, fleet.DoorState(e.DoorOpen), e.UpStops, e.DownStops)
	}
	tw.Flush()
	return b.String()
}
