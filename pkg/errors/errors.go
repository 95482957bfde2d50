// Package errors provides structured error handling for Junction with a
// closed error taxonomy and message-based classification.
//
// # Overview
//
// Every error that crosses the framework boundary is a *ConnectorError
// carrying exactly one Category and an explicit Retryable decision. Raw
// transport errors are classified by Classify, never passed through as-is.
//
// # Basic Usage
//
//	// Create a new error
//	err := errors.New(errors.CategoryConfig, "missing api key")
//
//	// Classify an arbitrary transport failure
//	cerr := errors.Classify(err, "github")
//	if cerr.Retryable {
//	    // schedule a retry
//	}
//
// # Categories
//
// The taxonomy is closed: auth, rate_limit, network, data, config, unknown.
// Retry policy follows the category: rate_limit and network are retryable,
// everything else is surfaced immediately.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Category represents the classification of a connector error.
type Category string

const (
	// CategoryAuth represents authentication and authorization failures
	CategoryAuth Category = "auth"
	// CategoryRateLimit represents rate limiting by the remote service
	CategoryRateLimit Category = "rate_limit"
	// CategoryNetwork represents transport-level failures
	CategoryNetwork Category = "network"
	// CategoryData represents malformed or rejected payloads
	CategoryData Category = "data"
	// CategoryConfig represents invalid or missing configuration
	CategoryConfig Category = "config"
	// CategoryUnknown represents unclassifiable failures
	CategoryUnknown Category = "unknown"
)

// ConnectorError is the structured error shape crossing the framework
// boundary. Category is always one of the closed set and Retryable is
// decided at classification time.
type ConnectorError struct {
	Message    string
	Category   Category
	ProviderID string
	Retryable  bool
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *ConnectorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Unwrap returns the underlying error, enabling errors.Is and errors.As
// over the cause chain.
func (e *ConnectorError) Unwrap() error {
	return e.Cause
}

// WithStatusCode attaches an HTTP status code to the error.
func (e *ConnectorError) WithStatusCode(code int) *ConnectorError {
	e.StatusCode = code
	return e
}

// New creates a ConnectorError with the given category and message.
// Retryability is derived from the category.
func New(category Category, message string) *ConnectorError {
	return &ConnectorError{
		Message:   message,
		Category:  category,
		Retryable: categoryRetryable(category),
	}
}

// Newf creates a ConnectorError with a formatted message.
func Newf(category Category, format string, args ...interface{}) *ConnectorError {
	return New(category, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with a category and message, preserving the
// original as the cause. Returns nil if err is nil.
func Wrap(err error, category Category, message string) *ConnectorError {
	if err == nil {
		return nil
	}
	return &ConnectorError{
		Message:   message,
		Category:  category,
		Cause:     err,
		Retryable: categoryRetryable(category),
	}
}

// IsCategory reports whether err is a ConnectorError of the given category.
func IsCategory(err error, category Category) bool {
	var e *ConnectorError
	if !errors.As(err, &e) {
		return false
	}
	return e.Category == category
}

// IsRetryable reports whether err carries a retryable classification.
// Unclassified errors are not retryable; classify first.
func IsRetryable(err error) bool {
	var e *ConnectorError
	if !errors.As(err, &e) {
		return false
	}
	return e.Retryable
}

// categoryRetryable maps a category to the retry policy: only rate limit
// and network failures are worth another attempt.
func categoryRetryable(category Category) bool {
	switch category {
	case CategoryRateLimit, CategoryNetwork:
		return true
	default:
		return false
	}
}

// classificationRule pairs a set of message patterns with a category
// verdict. Rules are evaluated in priority order; the first match wins.
type classificationRule struct {
	category  Category
	retryable bool
	patterns  []string
}

// classificationRules is the prioritized table used by Classify. Auth wins
// over rate limit wins over network wins over data; anything unmatched is
// unknown. Matching is heuristic because upstream transports return
// unstructured messages.
var classificationRules = []classificationRule{
	{
		category:  CategoryAuth,
		retryable: false,
		patterns:  []string{"401", "403", "unauthorized", "forbidden", "token expired"},
	},
	{
		category:  CategoryRateLimit,
		retryable: true,
		patterns:  []string{"429", "rate limit", "too many requests"},
	},
	{
		category:  CategoryNetwork,
		retryable: true,
		patterns: []string{
			"connection refused", "econnrefused", "dns", "no such host",
			"timeout", "timed out", "502", "503", "504",
		},
	},
	{
		category:  CategoryData,
		retryable: false,
		patterns:  []string{"400", "422", "validation", "invalid"},
	},
}

// Classify maps an arbitrary failure into the closed taxonomy. An error
// that is already a ConnectorError passes through unchanged, so
// classification is idempotent. Returns nil if err is nil.
func Classify(err error, providerID string) *ConnectorError {
	if err == nil {
		return nil
	}

	var existing *ConnectorError
	if errors.As(err, &existing) {
		return existing
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range classificationRules {
		for _, pattern := range rule.patterns {
			if strings.Contains(msg, pattern) {
				return &ConnectorError{
					Message:    err.Error(),
					Category:   rule.category,
					ProviderID: providerID,
					Retryable:  rule.retryable,
					Cause:      err,
				}
			}
		}
	}

	return &ConnectorError{
		Message:    err.Error(),
		Category:   CategoryUnknown,
		ProviderID: providerID,
		Retryable:  false,
		Cause:      err,
	}
}
