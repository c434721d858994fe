// Package errs defines the error taxonomy for correction runs.
//
// ConfigError is fatal and aborts a run before any file is touched.
// DataError is scoped to one file or annotation; it is recorded in the run
// report and processing continues. AgentError is scoped to one annotation
// and only surfaces after the single retry is exhausted.
package errs

import "fmt"

// ConfigError reports an invalid or inconsistent configuration.
type ConfigError struct {
	Field  string // offending config key, may be empty
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Configf constructs a ConfigError for the given field.
func Configf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DataError reports a problem with a COCO file or one of its annotations.
type DataError struct {
	Path string // file the error is scoped to
	Err  error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data: %s: %v", e.Path, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// AgentError reports a failed classification call after retries.
type AgentError struct {
	CallID string // uuid of the final attempt
	Err    error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent: call %s: %v", e.CallID, e.Err)
}

func (e *AgentError) Unwrap() error { return e.Err }
