package reliability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Error codes attached to upstream HTTP failures. They are also the metrics label values.
const (
	CodeUnauthorized        = "unauthorized"
	CodeRateLimited         = "rate_limited"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeBadRequest          = "bad_request"
	CodeUpstreamError       = "upstream_error"
	CodeTransport           = "transport"
	CodeCanceled            = "canceled"
)

// bodySnippetLimit caps how much of an error body is kept for logs.
const bodySnippetLimit = 4 << 10

// StatusError is a non-2xx reply from an external service.
type StatusError struct {
	Provider   string
	StatusCode int
	Code       string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s http status %d (%s)", e.Provider, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("%s http status %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Body)
}

// ClassifyHTTPStatus maps an HTTP status code to an error code.
func ClassifyHTTPStatus(code int) string {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return CodeUnauthorized
	case code == http.StatusTooManyRequests:
		return CodeRateLimited
	case code == http.StatusBadGateway || code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout:
		return CodeUpstreamUnavailable
	case code >= 400 && code < 500:
		return CodeBadRequest
	default:
		return CodeUpstreamError
	}
}

// IsTransientHTTPStatus reports statuses a user could reasonably retry by pressing again.
func IsTransientHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// Retryable reports whether err came from a transient upstream failure, so the
// same request may succeed if the user tries again.
func Retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return IsTransientHTTPStatus(se.StatusCode)
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// CheckResponse returns a *StatusError for non-2xx responses and nil otherwise.
// The body is read (bounded) but not closed.
func CheckResponse(provider string, res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(res.Body, bodySnippetLimit))
	return &StatusError{
		Provider:   provider,
		StatusCode: res.StatusCode,
		Code:       ClassifyHTTPStatus(res.StatusCode),
		Body:       strings.TrimSpace(string(body)),
	}
}

// CodeOf extracts an error code for metrics. Unknown errors are transport failures.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCanceled
	}
	return CodeTransport
}
