package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target carries the same error code, so callers can
// match on the sentinels below with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// StatusCode maps the error code to an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeInvalidSlot, CodeDoctorUnverified, CodeRoomUnsuitable:
		return http.StatusUnprocessableEntity
	case CodeRoomConflict, CodeDoctorConflict, CodeInvalidState:
		return http.StatusConflict
	case CodePersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	CodeNotFound ErrorCode = iota + 1000
	CodeBadRequest
	CodeInternal
	CodeInvalidSlot
	CodeRoomConflict
	CodeDoctorConflict
	CodeInvalidState
	CodeDoctorUnverified
	CodeRoomUnsuitable
	CodePersistence
)

// Sentinels for errors.Is matching.
var (
	ErrNotFound         = &AppError{Code: CodeNotFound, Message: "not found"}
	ErrBadRequest       = &AppError{Code: CodeBadRequest, Message: "bad request"}
	ErrInternal         = &AppError{Code: CodeInternal, Message: "internal server error"}
	ErrInvalidSlot      = &AppError{Code: CodeInvalidSlot, Message: "slot is not bookable"}
	ErrRoomConflict     = &AppError{Code: CodeRoomConflict, Message: "room is already booked for this slot"}
	ErrDoctorConflict   = &AppError{Code: CodeDoctorConflict, Message: "doctor is already booked for this slot"}
	ErrInvalidState     = &AppError{Code: CodeInvalidState, Message: "invalid appointment state transition"}
	ErrDoctorUnverified = &AppError{Code: CodeDoctorUnverified, Message: "doctor is not verified"}
	ErrRoomUnsuitable   = &AppError{Code: CodeRoomUnsuitable, Message: "room lacks a device required by the service"}
	ErrPersistence      = &AppError{Code: CodePersistence, Message: "persistence failure"}
)

// Error constructors
func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func InvalidSlot(message string) *AppError {
	return &AppError{Code: CodeInvalidSlot, Message: message}
}

func InvalidState(message string) *AppError {
	return &AppError{Code: CodeInvalidState, Message: message}
}

func Persistence(op string, err error) *AppError {
	return &AppError{
		Code:    CodePersistence,
		Message: fmt.Sprintf("failed to %s", op),
		Err:     err,
	}
}

// Wrap returns a copy of base carrying err as its cause, so the result
// still matches base with errors.Is.
func Wrap(base *AppError, err error) *AppError {
	return &AppError{Code: base.Code, Message: base.Message, Err: err}
}
