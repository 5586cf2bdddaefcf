// Package errors defines the error taxonomy shared by the aggregation and
// risk layers. Configuration and reference-resolution errors abort the
// current aggregation cycle; upstream errors are isolated per source.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryConfiguration represents invalid configuration (unsupported
	// fiat/crypto, unknown source name, malformed source tuple)
	CategoryConfiguration ErrorCategory = "configuration"
	// CategoryCredential represents a missing or unreadable credential file
	CategoryCredential ErrorCategory = "credential"
	// CategoryAuthentication represents a private call attempted without
	// valid credentials
	CategoryAuthentication ErrorCategory = "authentication"
	// CategoryUpstream represents a failed call against an external source
	CategoryUpstream ErrorCategory = "upstream"
	// CategoryUnresolvedReference represents an address-type holding whose
	// price cannot be borrowed from the reference source
	CategoryUnresolvedReference ErrorCategory = "unresolved_reference"
	// CategoryInsufficientHistory represents a price history too short for
	// return or volatility computation
	CategoryInsufficientHistory ErrorCategory = "insufficient_history"
)

// CategorizedError represents an error with category and machine-readable code
type CategorizedError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// Fatal reports whether the error must abort the whole aggregation cycle
// rather than being isolated to one source.
func (e *CategorizedError) Fatal() bool {
	return e.Category == CategoryConfiguration || e.Category == CategoryUnresolvedReference
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(message string) *CategorizedError {
	return &CategorizedError{
		Category: CategoryConfiguration,
		Code:     "CONFIGURATION_ERROR",
		Message:  message,
	}
}

// NewCredentialError creates a credential file error
func NewCredentialError(path string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryCredential,
		Code:     "CREDENTIAL_ERROR",
		Message:  fmt.Sprintf("cannot read credential file: %s", path),
		Cause:    cause,
		Details: map[string]interface{}{
			"path": path,
		},
	}
}

// NewAuthenticationError creates an authentication error
func NewAuthenticationError(source string) *CategorizedError {
	return &CategorizedError{
		Category: CategoryAuthentication,
		Code:     "AUTHENTICATION_ERROR",
		Message:  fmt.Sprintf("private call on %s without key or secret", source),
		Details: map[string]interface{}{
			"source": source,
		},
	}
}

// NewUpstreamError creates an upstream source error
func NewUpstreamError(source string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryUpstream,
		Code:     "UPSTREAM_ERROR",
		Message:  fmt.Sprintf("upstream error from %s", source),
		Cause:    cause,
		Details: map[string]interface{}{
			"source": source,
		},
	}
}

// NewUnresolvedReferenceError creates a reference resolution error
func NewUnresolvedReferenceError(source, asset, reason string) *CategorizedError {
	return &CategorizedError{
		Category: CategoryUnresolvedReference,
		Code:     "UNRESOLVED_REFERENCE",
		Message:  fmt.Sprintf("cannot resolve price for %s/%s: %s", source, asset, reason),
		Details: map[string]interface{}{
			"source": source,
			"asset":  asset,
			"reason": reason,
		},
	}
}

// NewInsufficientHistoryError creates a history length error
func NewInsufficientHistoryError(needed, have int) *CategorizedError {
	return &CategorizedError{
		Category: CategoryInsufficientHistory,
		Code:     "INSUFFICIENT_HISTORY",
		Message:  fmt.Sprintf("aligned price history too short: need %d dates, have %d", needed, have),
		Details: map[string]interface{}{
			"needed": needed,
			"have":   have,
		},
	}
}

// categoryOf extracts the category of an error, walking the wrap chain.
func categoryOf(err error) (ErrorCategory, bool) {
	var ce *CategorizedError
	if errors.As(err, &ce) {
		return ce.Category, true
	}
	return "", false
}

// IsConfiguration reports whether err is a configuration error
func IsConfiguration(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == CategoryConfiguration
}

// IsCredential reports whether err is a credential error
func IsCredential(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == CategoryCredential
}

// IsAuthentication reports whether err is an authentication error
func IsAuthentication(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == CategoryAuthentication
}

// IsUpstream reports whether err is an upstream source error
func IsUpstream(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == CategoryUpstream
}

// IsUnresolvedReference reports whether err is a reference resolution error
func IsUnresolvedReference(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == CategoryUnresolvedReference
}

// IsInsufficientHistory reports whether err is a history length error
func IsInsufficientHistory(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == CategoryInsufficientHistory
}
