package fragment

import (
	"context"
	"errors"
	"strings"
)

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

// Error category constants used as metric labels (fragmentLoadsTotal, fragmentFallbacksTotal).
const (
	ErrorCategoryTimeout           ErrorCategory = "timeout"
	ErrorCategoryNetwork           ErrorCategory = "network"
	ErrorCategoryUnknownFragment   ErrorCategory = "unknown_fragment"
	ErrorCategoryViewNotFound      ErrorCategory = "view_not_found"
	ErrorCategoryRemoteUnavailable ErrorCategory = "remote_unavailable"
	ErrorCategoryBadResponse       ErrorCategory = "bad_response"
	ErrorCategoryClientError       ErrorCategory = "client_error"
	ErrorCategoryPanic             ErrorCategory = "panic"
	ErrorCategoryUnknown           ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory for metrics.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}

	if errors.Is(err, ErrPanic) {
		return ErrorCategoryPanic
	}

	if errors.Is(err, ErrUnknownFragment) {
		return ErrorCategoryUnknownFragment
	}

	if errors.Is(err, ErrViewNotFound) {
		return ErrorCategoryViewNotFound
	}

	if errors.Is(err, ErrBadResponse) {
		return ErrorCategoryBadResponse
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return ErrorCategoryClientError
	}

	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "connection reset") {
		return ErrorCategoryNetwork
	}

	if strings.Contains(errStr, "timeout") {
		return ErrorCategoryTimeout
	}

	if errors.Is(err, ErrRemoteUnavailable) {
		return ErrorCategoryRemoteUnavailable
	}

	return ErrorCategoryUnknown
}
