package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/geekwala/security-scan-action/pkg/retry"
)

// ErrorType tags every failure raised at the API boundary.
type ErrorType string

const (
	FileSizeError   ErrorType = "file_size_error"
	NetworkError    ErrorType = "network_error"
	TimeoutError    ErrorType = "timeout_error"
	AuthError       ErrorType = "auth_error"
	ValidationError ErrorType = "validation_error"
	RateLimitError  ErrorType = "rate_limit_error"
	ServerError     ErrorType = "server_error"
	UnknownError    ErrorType = "unknown_error"
	ParseError      ErrorType = "parse_error"
)

// APIError is the typed error returned by Client and Validate.
type APIError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	// Code is the transport error code, e.g. ECONNRESET.
	Code string
	// RetryAfter is the delay mandated by the server, zero when absent.
	RetryAfter time.Duration
	Err        error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

func (e *APIError) ErrorCode() string {
	return e.Code
}

// RetryDelay reports the server's Retry-After. A zero delay is not a hint, so the
// caller falls back to its own backoff.
func (e *APIError) RetryDelay() (time.Duration, bool) {
	return e.RetryAfter, e.RetryAfter > 0
}

// Tip returns a hint for the user on how to resolve the error.
func (e *APIError) Tip() string {
	switch e.Type {
	case FileSizeError:
		return "The file size limit is 500KB. For large lockfiles, consider scanning the manifest instead."
	case AuthError:
		return "Verify your API token at https://geekwala.com/developers/api-tokens"
	case RateLimitError:
		return "Consider spacing out your scans or upgrading your plan"
	case ValidationError:
		return "Check that your dependency file has exact package versions"
	case TimeoutError:
		return "Try increasing timeout-seconds or reducing the dependency file size"
	}
	return ""
}

var _ retry.StatusCoder = (*APIError)(nil)
var _ retry.ErrorCoder = (*APIError)(nil)
var _ retry.Delayer = (*APIError)(nil)

// ClassifyTransport converts a failure without HTTP response into an APIError.
func ClassifyTransport(err error) *APIError {
	if isTimeout(err) {
		return &APIError{
			Type:    TimeoutError,
			Message: fmt.Sprintf("Request timed out: %s. The scan took longer than the configured timeout.", err),
			Code:    retry.CodeConnAborted,
			Err:     err,
		}
	}
	return &APIError{
		Type:    NetworkError,
		Message: fmt.Sprintf("Network error: %s. Check your internet connection and verify GeekWala API is accessible.", err),
		Code:    transportCode(err),
		Err:     err,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func transportCode(err error) string {
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr):
		return retry.CodeNotFound
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return retry.CodeConnReset
	case errors.Is(err, syscall.ETIMEDOUT):
		return retry.CodeTimedOut
	case errors.Is(err, syscall.ECONNABORTED):
		return retry.CodeConnAborted
	case errors.Is(err, syscall.ECONNREFUSED):
		return "ECONNREFUSED"
	}
	return ""
}

type errorBody struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

// ClassifyStatus converts a non-2xx HTTP response into an APIError.
func ClassifyStatus(status int, header http.Header, body []byte) *APIError {
	var payload errorBody
	_ = decodeLenient(body, &payload)

	switch status {
	case http.StatusUnauthorized:
		return &APIError{
			Type:       AuthError,
			Message:    "Authentication failed. Verify your API token has 'scan:write' ability. Create a token at https://geekwala.com/dashboard/tokens",
			StatusCode: status,
		}
	case http.StatusUnprocessableEntity:
		msg := payload.Error
		if msg == "" {
			msg = "Validation error"
		}
		errType := ValidationError
		if payload.Type != "" {
			errType = ErrorType(payload.Type)
		}
		return &APIError{
			Type:       errType,
			Message:    "Validation error: " + msg,
			StatusCode: status,
		}
	case http.StatusTooManyRequests:
		retryAfter, ok := ParseRetryAfter(header.Get("Retry-After"))
		wait := "Wait a few minutes"
		if ok {
			wait = fmt.Sprintf("Wait %d seconds", int(retryAfter.Seconds()))
		}
		return &APIError{
			Type:       RateLimitError,
			Message:    fmt.Sprintf("Rate limit exceeded. %s and try again.", wait),
			StatusCode: status,
			RetryAfter: retryAfter,
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return &APIError{
			Type:       ServerError,
			Message:    fmt.Sprintf("GeekWala API is temporarily unavailable (%d). This is usually transient, retrying automatically.", status),
			StatusCode: status,
		}
	default:
		msg := payload.Error
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &APIError{
			Type:       UnknownError,
			Message:    fmt.Sprintf("API error (%d): %s", status, msg),
			StatusCode: status,
		}
	}
}

// maxRetryAfter caps the server hint so the seconds never overflow a time.Duration.
const maxRetryAfter = 24 * time.Hour

// ParseRetryAfter parses a Retry-After header holding a number of seconds.
// Values above a day are clamped to a day.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0, false
	}
	if seconds > int(maxRetryAfter/time.Second) {
		return maxRetryAfter, true
	}
	return time.Duration(seconds) * time.Second, true
}
