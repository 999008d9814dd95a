package apperrors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies an error class across the API surface.
type ErrorCode string

// AppError is the error shape surfaced by synchronous operations. Details
// carries structured data for the caller (e.g. quota usage on rejection).
type AppError struct {
	Code     ErrorCode   `json:"code"`
	Message  string      `json:"message"`
	Details  interface{} `json:"details,omitempty"`
	Err      error       `json:"-"`
	HTTPCode int         `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code ErrorCode, message string, httpCode int) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		HTTPCode: httpCode,
	}
}

func Wrap(err error, code ErrorCode, message string, httpCode int) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Err:      err,
		HTTPCode: httpCode,
	}
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	type alias struct {
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}
	return json.Marshal(&alias{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// Convenience constructors for the common classes.

func Validation(message string) *AppError {
	return New(CodeValidationFailed, message, http.StatusBadRequest)
}

func NotFound(code ErrorCode, message string) *AppError {
	return New(code, message, http.StatusNotFound)
}

func Provider(err error, message string) *AppError {
	return Wrap(err, CodeProviderError, message, http.StatusBadGateway)
}

// ProviderRetry signals that a stale cached provider reference was cleared
// and the operation is safe to retry.
func ProviderRetry(message string) *AppError {
	return New(CodeProviderRetry, message, http.StatusConflict)
}

func Consistency(message string) *AppError {
	return New(CodeConsistencyError, message, http.StatusConflict)
}

func QuotaExceeded(details interface{}) *AppError {
	return New(CodeQuotaExceeded, "storage quota exceeded", http.StatusForbidden).WithDetails(details)
}
