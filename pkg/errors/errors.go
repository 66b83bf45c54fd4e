package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DomainErrorType represents the category of domain error
type DomainErrorType string

const (
	// DomainValidationError indicates input validation failure
	DomainValidationError DomainErrorType = "VALIDATION_ERROR"

	// DomainBusinessRuleError indicates a governance rule violation
	DomainBusinessRuleError DomainErrorType = "BUSINESS_RULE_ERROR"

	// DomainNotFoundError indicates a resource was not found
	DomainNotFoundError DomainErrorType = "NOT_FOUND"

	// DomainConflictError indicates a conflict with existing state
	DomainConflictError DomainErrorType = "CONFLICT"

	// DomainInfrastructureError indicates an infrastructure-level failure
	DomainInfrastructureError DomainErrorType = "INFRASTRUCTURE_ERROR"

	// DomainAuthorizationError indicates insufficient permissions
	DomainAuthorizationError DomainErrorType = "AUTHORIZATION_ERROR"

	// DomainAuthenticationError indicates authentication failure
	DomainAuthenticationError DomainErrorType = "AUTHENTICATION_ERROR"

	// DomainRateLimitError indicates rate limit exceeded
	DomainRateLimitError DomainErrorType = "RATE_LIMIT_ERROR"
)

// DomainError represents a domain-specific error with rich context
type DomainError struct {
	Type       DomainErrorType        `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

// NewDomainError creates a new domain error
func NewDomainError(errorType DomainErrorType, code string, message string) *DomainError {
	return &DomainError{
		Type:       errorType,
		Code:       code,
		Message:    message,
		Details:    make(map[string]interface{}),
		Retryable:  false,
		StatusCode: domainErrorTypeToStatusCode(errorType),
	}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// WithCause adds a cause to the error
func (e *DomainError) WithCause(cause error) *DomainError {
	c := e.clone()
	c.Cause = cause
	return c
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	c := e.clone()
	c.Details[key] = value
	return c
}

// WithDetails adds multiple details to the error
func (e *DomainError) WithDetails(details map[string]interface{}) *DomainError {
	c := e.clone()
	for k, v := range details {
		c.Details[k] = v
	}
	return c
}

// WithRetryable sets whether the error is retryable
func (e *DomainError) WithRetryable(retryable bool) *DomainError {
	c := e.clone()
	c.Retryable = retryable
	return c
}

// WithStatusCode sets a custom HTTP status code
func (e *DomainError) WithStatusCode(code int) *DomainError {
	c := e.clone()
	c.StatusCode = code
	return c
}

// clone copies the error so the package-level sentinels stay immutable when
// callers attach per-request details.
func (e *DomainError) clone() *DomainError {
	details := make(map[string]interface{}, len(e.Details))
	for k, v := range e.Details {
		details[k] = v
	}
	return &DomainError{
		Type:       e.Type,
		Code:       e.Code,
		Message:    e.Message,
		Details:    details,
		Cause:      e.Cause,
		Retryable:  e.Retryable,
		StatusCode: e.StatusCode,
	}
}

// Is checks if the error is of a specific type; two domain errors match when
// their Type and Code agree, regardless of attached details.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// Unwrap returns the underlying cause
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// GetDomainError extracts a DomainError from an error chain
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// IsCode reports whether err carries the given domain error code
func IsCode(err error, code string) bool {
	de := GetDomainError(err)
	return de != nil && de.Code == code
}

// domainErrorTypeToStatusCode maps error types to HTTP status codes
func domainErrorTypeToStatusCode(errorType DomainErrorType) int {
	switch errorType {
	case DomainValidationError:
		return 400 // Bad Request
	case DomainBusinessRuleError:
		return 422 // Unprocessable Entity
	case DomainNotFoundError:
		return 404 // Not Found
	case DomainConflictError:
		return 409 // Conflict
	case DomainAuthenticationError:
		return 401 // Unauthorized
	case DomainAuthorizationError:
		return 403 // Forbidden
	case DomainRateLimitError:
		return 429 // Too Many Requests
	case DomainInfrastructureError:
		return 500 // Internal Server Error
	default:
		return 500 // Internal Server Error
	}
}

// Common domain errors - these are pre-defined errors that can be reused

var (
	// Lifecycle errors
	ErrInvalidTransition = NewDomainError(
		DomainValidationError,
		"INVALID_TRANSITION",
		"The requested lifecycle transition is not allowed from the current state",
	)

	ErrUnsupportedDeathCause = NewDomainError(
		DomainValidationError,
		"UNSUPPORTED_DEATH_CAUSE",
		"Death cause must be one of: bankruptcy, vote_majority, manual",
	)

	ErrLifeNotFound = NewDomainError(
		DomainNotFoundError,
		"LIFE_NOT_FOUND",
		"No life record exists yet",
	)

	ErrDeathRecordExists = NewDomainError(
		DomainConflictError,
		"DEATH_RECORD_EXISTS",
		"A death record for this life was already written",
	)

	// Voting errors
	ErrNoOpenRound = NewDomainError(
		DomainConflictError,
		"NO_OPEN_ROUND",
		"There is no open voting round; voting is closed",
	)

	ErrDuplicateVote = NewDomainError(
		DomainConflictError,
		"DUPLICATE_VOTE",
		"This voter has already cast a vote in the current round",
	)

	ErrRoundNotFound = NewDomainError(
		DomainNotFoundError,
		"ROUND_NOT_FOUND",
		"The requested voting round does not exist",
	)

	// Notification errors
	ErrNotificationFailure = NewDomainError(
		DomainInfrastructureError,
		"NOTIFICATION_FAILURE",
		"Failed to notify the entity runtime",
	).WithRetryable(true)

	// Concurrency errors
	ErrConcurrentModification = NewDomainError(
		DomainConflictError,
		"CONCURRENT_MODIFICATION",
		"The resource was modified by another process",
	).WithRetryable(true)

	// Rate limiting errors
	ErrRateLimitExceeded = NewDomainError(
		DomainRateLimitError,
		"RATE_LIMIT_EXCEEDED",
		"Too many requests, please try again later",
	).WithRetryable(true)

	// Infrastructure errors
	ErrEventPublishFailed = NewDomainError(
		DomainInfrastructureError,
		"EVENT_PUBLISH_FAILED",
		"Failed to publish domain event",
	).WithRetryable(true)
)

// NewInvalidTransitionError builds an invalid-transition error annotated with
// the attempted move.
func NewInvalidTransitionError(from, to string) *DomainError {
	return ErrInvalidTransition.
		WithDetail("from", from).
		WithDetail("to", to)
}

// NewDuplicateVoteError builds a duplicate-vote error carrying the unchanged
// tally and, when known, how long until the next round opens.
func NewDuplicateVoteError(live, die int, nextRoundIn time.Duration) *DomainError {
	err := ErrDuplicateVote.
		WithDetail("live", live).
		WithDetail("die", die)
	if nextRoundIn > 0 {
		err = err.WithDetail("next_round_in", nextRoundIn.Round(time.Second).String())
	}
	return err
}

// ValidationErrors aggregates multiple validation errors
type ValidationErrors struct {
	Errors []*DomainError `json:"errors"`
}

// NewValidationErrors creates a new validation errors collection
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make([]*DomainError, 0),
	}
}

// Add adds a validation error
func (v *ValidationErrors) Add(field string, message string) {
	err := NewDomainError(DomainValidationError, "FIELD_VALIDATION_ERROR", message).
		WithDetail("field", field)
	v.Errors = append(v.Errors, err)
}

// HasErrors returns true if there are validation errors
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}

	messages := make([]string, len(v.Errors))
	for i, err := range v.Errors {
		messages[i] = err.Message
	}
	return fmt.Sprintf("Validation failed: %s", strings.Join(messages, "; "))
}
