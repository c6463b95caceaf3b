package sandbox

import (
	"time"
)

// ErrorType categorizes how an execution failed.
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeCompilation ErrorType = "compilation"
	ErrorTypeLoad        ErrorType = "load"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeMemoryLimit ErrorType = "memory_limit"
	ErrorTypeRuntime     ErrorType = "runtime"
	ErrorTypePermission  ErrorType = "permission_denied"
)

// SandboxError represents an execution failure with context.
type SandboxError struct {
	Type      ErrorType
	ScriptID  string
	Message   string
	Cause     error
	Timestamp time.Time
}

func (e *SandboxError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *SandboxError) Unwrap() error {
	return e.Cause
}

// NewError creates a SandboxError with the given parameters.
func NewError(errorType ErrorType, scriptID, message string, cause error) *SandboxError {
	return &SandboxError{
		Type:      errorType,
		ScriptID:  scriptID,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}
