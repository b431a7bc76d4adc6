package common

import (
	"errors"
	"net/http"
)

// Common error types
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
	ErrConflict       = errors.New("resource conflict")
	ErrValidation     = errors.New("validation error")
	ErrRateLimited    = errors.New("rate limited")
)

// AppError is an error reported by the API with its HTTP status code
type AppError struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Code)
}

// Unwrap exposes the sentinel for the status code
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status code carried by the error
func (e *AppError) HTTPStatus() int {
	return e.Code
}

// NewAppError creates a new AppError
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ErrorFromInfo builds an AppError from an error envelope
func ErrorFromInfo(info *ErrorInfo) *AppError {
	if info == nil {
		return NewAppError(http.StatusInternalServerError, "request failed", ErrInternalServer)
	}
	return &AppError{
		Code:      info.Code,
		ErrorCode: info.ErrorCode,
		Message:   info.Message,
		Err:       SentinelForStatus(info.Code),
	}
}

// SentinelForStatus maps an HTTP status code to one of the common errors
func SentinelForStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusUnprocessableEntity:
		return ErrValidation
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		if code >= 500 {
			return ErrInternalServer
		}
		return nil
	}
}
