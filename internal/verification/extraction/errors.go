package extraction

import (
	"errors"
	"fmt"
)

// ErrorCategory is the normalised failure taxonomy for the extraction service.
type ErrorCategory string

const (
	ErrorTimeout          ErrorCategory = "timeout"
	ErrorBadData          ErrorCategory = "bad_data"
	ErrorAuthentication   ErrorCategory = "authentication"
	ErrorOutage           ErrorCategory = "outage"
	ErrorContractMismatch ErrorCategory = "contract_mismatch"
	ErrorRateLimited      ErrorCategory = "rate_limited"
	ErrorCircuitOpen      ErrorCategory = "circuit_open"
	ErrorInternal         ErrorCategory = "internal"
)

// Error wraps an extraction failure with its category.
type Error struct {
	Category   ErrorCategory
	Message    string
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("extraction [%s]: %s: %v", e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("extraction [%s]: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

func newError(category ErrorCategory, message string, underlying error) *Error {
	return &Error{Category: category, Message: message, Underlying: underlying}
}

// CategoryOf extracts the category from an error chain.
func CategoryOf(err error) ErrorCategory {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ErrorInternal
}

// countsAsFailure reports whether the error says something about upstream health.
// Bad documents and contract errors are the caller's problem, not an outage.
func countsAsFailure(category ErrorCategory) bool {
	switch category {
	case ErrorTimeout, ErrorOutage, ErrorRateLimited:
		return true
	}
	return false
}
