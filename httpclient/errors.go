package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"

	apperrors "github.com/kbukum/netmanager/errors"
)

// ErrorCode classifies HTTP client errors.
type ErrorCode int

const (
	// ErrCodePrecondition indicates invalid caller input, caught before any I/O.
	ErrCodePrecondition ErrorCode = iota
	// ErrCodeTransport indicates the request could not be carried out (refused, DNS, reset).
	ErrCodeTransport
	// ErrCodeTimeout indicates the configured timeout or the context deadline expired.
	ErrCodeTimeout
	// ErrCodeNoResponse indicates the transport returned neither a response nor an error.
	ErrCodeNoResponse
	// ErrCodeMalformedResponse indicates the body was empty, not JSON, or not a JSON object.
	ErrCodeMalformedResponse
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodePrecondition:
		return "precondition"
	case ErrCodeTransport:
		return "transport"
	case ErrCodeTimeout:
		return "timeout"
	case ErrCodeNoResponse:
		return "no_response"
	case ErrCodeMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// Error is a structured HTTP client error with classification.
type Error struct {
	// StatusCode is the HTTP status code (0 when no response was read).
	StatusCode int
	// Code classifies the error.
	Code ErrorCode
	// Message describes the error.
	Message string
	// Err is the underlying *errors.AppError.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("httpclient: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("httpclient: %s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// newPreconditionError wraps a validation failure.
func newPreconditionError(cause *apperrors.AppError) *Error {
	return &Error{
		Code:    ErrCodePrecondition,
		Message: cause.Message,
		Err:     cause,
	}
}

// preconditionFrom converts an error returned by the validation package.
func preconditionFrom(err error) *Error {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Validation(err.Error()).WithCause(err)
	}
	return newPreconditionError(appErr)
}

// newTransportError classifies an error returned by the transport.
func newTransportError(host string, statusCode int, err error) *Error {
	if isTimeout(err) {
		return &Error{
			StatusCode: statusCode,
			Code:       ErrCodeTimeout,
			Message:    err.Error(),
			Err:        apperrors.Timeout(host, err),
		}
	}
	return &Error{
		StatusCode: statusCode,
		Code:       ErrCodeTransport,
		Message:    err.Error(),
		Err:        apperrors.ConnectionFailed(host, err),
	}
}

func newNoResponseError() *Error {
	const msg = "transport returned no response"
	return &Error{
		Code:    ErrCodeNoResponse,
		Message: msg,
		Err:     apperrors.BadResponse(msg, nil),
	}
}

func newMalformedResponseError(statusCode int, reason string, cause error) *Error {
	return &Error{
		StatusCode: statusCode,
		Code:       ErrCodeMalformedResponse,
		Message:    reason,
		Err:        apperrors.BadResponse(reason, cause),
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// IsPrecondition checks if an error is a caller input error.
func IsPrecondition(err error) bool {
	return hasCode(err, ErrCodePrecondition)
}

// IsTransport checks if an error is a transport failure, timeouts included.
func IsTransport(err error) bool {
	return hasCode(err, ErrCodeTransport) || hasCode(err, ErrCodeTimeout)
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	return hasCode(err, ErrCodeTimeout)
}

// IsNoResponse checks if the transport produced no response.
func IsNoResponse(err error) bool {
	return hasCode(err, ErrCodeNoResponse)
}

// IsMalformedResponse checks if the response body could not be used.
func IsMalformedResponse(err error) bool {
	return hasCode(err, ErrCodeMalformedResponse)
}
