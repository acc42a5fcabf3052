package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across imageflow.
type ErrorCode string

// 前置条件错误：整个调用失败，未发起任何生成
const (
	ErrAuthRequired        ErrorCode = "AUTH_REQUIRED"
	ErrModelUnavailable    ErrorCode = "MODEL_UNAVAILABLE"
	ErrUnsupportedProvider ErrorCode = "UNSUPPORTED_PROVIDER"
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"
)

// 凭证与上游错误：转换为单条失败结果
const (
	ErrMissingCredentials ErrorCode = "MISSING_CREDENTIALS"
	ErrUpstreamError      ErrorCode = "UPSTREAM_ERROR"
	ErrUpstreamTimeout    ErrorCode = "UPSTREAM_TIMEOUT"
	ErrInvalidResponse    ErrorCode = "INVALID_RESPONSE"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
)

// 其他错误
const (
	ErrRehostFailed  ErrorCode = "REHOST_FAILED"
	ErrConfiguration ErrorCode = "CONFIGURATION"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// AsError 从错误链中提取 *Error。
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsErrorCode 判断错误链中是否包含指定错误码。
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// IsPrecondition 判断错误是否属于前置条件错误（整个调用失败）。
func IsPrecondition(err error) bool {
	switch GetErrorCode(err) {
	case ErrAuthRequired, ErrModelUnavailable, ErrUnsupportedProvider, ErrInvalidRequest:
		return true
	default:
		return false
	}
}
