package ageing

import "fmt"

// ParseError represents a malformed or unreadable input file. It is fatal
// for that file only, other files in the batch keep being parsed.
type ParseError struct {
	Filename string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("error parsing file %q: %s: %v", e.Filename, e.Reason, e.Err)
	}
	return fmt.Sprintf("error parsing file %q: %s", e.Filename, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// InsufficientDataError represents an empty or degenerate histogram that
// cannot be fitted.
type InsufficientDataError struct {
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for fit: %s", e.Reason)
}

// FitConvergenceError represents a fit that did not converge within the
// configured iteration cap or timeout.
type FitConvergenceError struct {
	Iterations int
	Reason     string
}

func (e *FitConvergenceError) Error() string {
	return fmt.Sprintf("fit did not converge after %d iterations: %s", e.Iterations, e.Reason)
}

// ReferenceUnavailableError represents a missing or failed reference channel
// fit. It degrades normalization for that module and dataset, it is not fatal.
type ReferenceUnavailableError struct {
	Module string
	Reason string
}

func (e *ReferenceUnavailableError) Error() string {
	return fmt.Sprintf("reference channel unavailable for module %q: %s", e.Module, e.Reason)
}

// ErrOpenFile represents an error when opening a file.
type ErrOpenFile struct {
	Filename string
	Err      error
}

func (e *ErrOpenFile) Error() string {
	return fmt.Sprintf("error opening file %q: %v", e.Filename, e.Err)
}

// ErrCreateGroup represents an error when creating a group.
type ErrCreateGroup struct {
	GroupName string
	Err       error
}

func (e *ErrCreateGroup) Error() string {
	return fmt.Sprintf("error creating group %q: %v", e.GroupName, e.Err)
}

// ErrCreateTable represents an error when creating a table.
type ErrCreateTable struct {
	TableName string
	Err       error
}

func (e *ErrCreateTable) Error() string {
	return fmt.Sprintf("error creating table %q: %v", e.TableName, e.Err)
}

// ConfigValidationError represents an invalid configuration value. It is
// fatal for the whole run and raised before any processing starts.
type ConfigValidationError struct {
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid configuration field %q: %s", e.Field, e.Reason)
}
