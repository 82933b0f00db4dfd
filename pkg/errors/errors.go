package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound           = NewError("NOT_FOUND", "resource not found", http.StatusNotFound)
	ErrValidation         = NewError("VALIDATION_ERROR", "validation failed", http.StatusBadRequest)
	ErrInternal           = NewError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
	ErrConflict           = NewError("CONFLICT", "resource conflict", http.StatusConflict)
	ErrTimeout            = NewError("TIMEOUT", "operation timed out", http.StatusRequestTimeout)
	ErrServiceUnavailable = NewError("SERVICE_UNAVAILABLE", "service unavailable", http.StatusServiceUnavailable)
	ErrTooManyRequests    = NewError("RATE_LIMIT_EXCEEDED", "rate limit exceeded", http.StatusTooManyRequests)
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

// ErrorResponse is the JSON body written for every failed HTTP request.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	ErrorCode string                 `json:"error_code"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

type Error struct {
	Code      string
	Message   string
	Status    int
	Details   map[string]interface{}
	Cause     error
	retryable *bool
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Code so copies produced by the With* helpers still compare
// equal to their sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func (e *Error) IsRetryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	if e.Cause != nil {
		var retryableErr RetryableError
		if errors.As(e.Cause, &retryableErr) {
			return retryableErr.IsRetryable()
		}
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return !fatalErr.IsFatal()
		}
	}
	switch e.Code {
	case ErrValidation.Code, ErrNotFound.Code, ErrConflict.Code:
		return false
	}
	return true
}

func (e *Error) IsFatal() bool {
	return !e.IsRetryable()
}

func (e *Error) clone() *Error {
	err := *e
	err.Details = make(map[string]interface{}, len(e.Details))
	for k, v := range e.Details {
		err.Details[k] = v
	}
	return &err
}

func (e *Error) WithCause(cause error) *Error {
	err := e.clone()
	err.Cause = cause
	return err
}

// WithMessage replaces the client-facing message while keeping the code and status.
func (e *Error) WithMessage(message string) *Error {
	err := e.clone()
	err.Message = message
	return err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := e.clone()
	err.Details[key] = value
	return err
}

func (e *Error) AsRetryable() *Error {
	err := e.clone()
	retryable := true
	err.retryable = &retryable
	return err
}

func (e *Error) AsFatal() *Error {
	err := e.clone()
	retryable := false
	err.retryable = &retryable
	return err
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

func hasCode(err error, code string) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func IsNotFound(err error) bool {
	return hasCode(err, ErrNotFound.Code)
}

func IsValidation(err error) bool {
	return hasCode(err, ErrValidation.Code)
}

func IsConflict(err error) bool {
	return hasCode(err, ErrConflict.Code)
}

func IsServiceUnavailable(err error) bool {
	return hasCode(err, ErrServiceUnavailable.Code)
}

// IsRetryable reports whether err, or anything it wraps, asks to be retried.
// Plain errors with no classification are treated as retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var retryableErr RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.IsRetryable()
	}
	var fatalErr FatalError
	if errors.As(err, &fatalErr) {
		return !fatalErr.IsFatal()
	}
	return true
}

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

func ToErrorResponse(err error) ErrorResponse {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal.WithCause(err)
	}

	response := ErrorResponse{
		Error:     appErr.Message,
		ErrorCode: appErr.Code,
	}
	if len(appErr.Details) > 0 {
		response.Details = appErr.Details
	}
	return response
}
