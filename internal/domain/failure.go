package domain

import (
	"context"
	"errors"
	"fmt"
)

// FailureClass buckets an analysis failure for retry policy decisions.
// The queue consumes the class; it never inspects the underlying error.
type FailureClass string

const (
	FailureRateLimited FailureClass = "rate_limited"    // upstream 429
	FailureServer      FailureClass = "server_error"    // upstream 5xx
	FailureTimeout     FailureClass = "timeout"         // call exceeded its bound
	FailureClient      FailureClass = "client_error"    // upstream 4xx or invalid input
	FailureMalformed   FailureClass = "malformed_reply" // unparseable model output
)

// Retryable reports whether the server-side queue may schedule an automatic
// retry for this class. Client errors are terminal: re-sending the same
// request cannot change the outcome.
func (c FailureClass) Retryable() bool {
	switch c {
	case FailureRateLimited, FailureServer, FailureTimeout, FailureMalformed:
		return true
	}
	return false
}

// AnalysisError carries a classified failure from the analysis adapter.
type AnalysisError struct {
	Class FailureClass
	Err   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis %s: %v", e.Class, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// NewAnalysisError wraps err with a failure class.
func NewAnalysisError(class FailureClass, err error) *AnalysisError {
	return &AnalysisError{Class: class, Err: err}
}

// ClassifyHTTPStatus maps an upstream HTTP status code to a failure class.
func ClassifyHTTPStatus(code int) FailureClass {
	switch {
	case code == 429:
		return FailureRateLimited
	case code >= 500:
		return FailureServer
	default:
		return FailureClient
	}
}

// Classify extracts the failure class from err. Context deadline errors are
// timeouts; unclassified errors default to server_error so a transient
// upstream hiccup still gets its one automatic retry.
func Classify(err error) FailureClass {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	return FailureServer
}
