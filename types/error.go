package types

import "fmt"

// ErrorCode represents a unified error code across the framework.
type ErrorCode string

// Validation errors — malformed input, fail fast, never retried.
const (
	ErrInvalidCommand ErrorCode = "INVALID_COMMAND"
	ErrUnknownRoute   ErrorCode = "UNKNOWN_ROUTE"
	ErrInvalidConfig  ErrorCode = "INVALID_CONFIG"
)

// Worker errors — a role's external worker failed. These are recoverable
// business conditions absorbed into coordination state, not system faults.
const (
	ErrWorkerFailed    ErrorCode = "WORKER_FAILED"
	ErrWorkerUnhealthy ErrorCode = "WORKER_UNHEALTHY"
)

// Execution faults — handled by the durable wrapper's retry policy.
const (
	ErrStageTimeout   ErrorCode = "STAGE_TIMEOUT"
	ErrStagePanic     ErrorCode = "STAGE_PANIC"
	ErrRetryExhausted ErrorCode = "RETRY_EXHAUSTED"
	ErrRunAborted     ErrorCode = "RUN_ABORTED"
	ErrMaxSteps       ErrorCode = "MAX_STEPS_EXCEEDED"
)

// Invariant violations — programmer errors, fail loudly.
const (
	ErrInvariantViolation ErrorCode = "INVARIANT_VIOLATION"
	ErrInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	ErrCommandReplayed    ErrorCode = "COMMAND_REPLAYED"
)

// Lookup / lifecycle errors.
const (
	ErrRunNotFound    ErrorCode = "RUN_NOT_FOUND"
	ErrRunNotTerminal ErrorCode = "RUN_NOT_TERMINAL"
	ErrRunClosed      ErrorCode = "RUN_CLOSED"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Stage     string    `json:"stage,omitempty"`
	Role      string    `json:"role,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithStage annotates the error with the workflow stage it occurred in.
func (e *Error) WithStage(stage string) *Error {
	e.Stage = stage
	return e
}

// WithRole annotates the error with the role it occurred for.
func (e *Error) WithRole(role string) *Error {
	e.Role = role
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
