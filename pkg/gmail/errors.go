package gmail

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// APIError wraps a Gmail API failure with its HTTP status so callers can
// decide between retrying and giving up.
type APIError struct {
	StatusCode int
	Op         string
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gmail %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// wrapAPIError converts a raw client error into an APIError, extracting the
// HTTP status when the underlying error is a googleapi.Error.
func wrapAPIError(op string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{StatusCode: gerr.Code, Op: op, Err: err}
	}
	return &APIError{Op: op, Err: err}
}

// IsRateLimit reports whether the error is a quota or rate-limit rejection.
// Gmail signals these as 429, or 403 with a rate-related reason.
func IsRateLimit(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if apiErr.StatusCode == http.StatusForbidden {
		msg := strings.ToLower(apiErr.Err.Error())
		return strings.Contains(msg, "rate") || strings.Contains(msg, "quota")
	}
	return false
}

// IsRetryable reports whether the call may succeed on a later attempt:
// rate limits, server errors, and transport failures without a status.
func IsRetryable(err error) bool {
	if IsRateLimit(err) {
		return true
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == 0 || apiErr.StatusCode >= http.StatusInternalServerError
}
