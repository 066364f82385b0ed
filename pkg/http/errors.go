package http

import (
	"fmt"
	"net/http"
)

// AppError is an error that knows which HTTP status it maps to.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// WithError attaches the cause. It is logged but never serialized.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

var statusCodes = map[int]string{
	http.StatusBadRequest:          "ERR_BAD_REQUEST",
	http.StatusUnauthorized:        "ERR_UNAUTHORIZED",
	http.StatusForbidden:           "ERR_FORBIDDEN",
	http.StatusNotFound:            "ERR_NOT_FOUND",
	http.StatusConflict:            "ERR_CONFLICT",
	http.StatusInternalServerError: "ERR_INTERNAL",
}

// NewAppError builds an error for status; the code is derived from it.
func NewAppError(status int, message string) *AppError {
	code, ok := statusCodes[status]
	if !ok {
		code = "ERR_INTERNAL"
	}
	return &AppError{Code: code, Message: message, Status: status}
}

func BadRequestError(message string) *AppError {
	return NewAppError(http.StatusBadRequest, message)
}

func UnauthorizedError(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, message)
}

func ForbiddenError(message string) *AppError {
	return NewAppError(http.StatusForbidden, message)
}

func NotFoundError(message string) *AppError {
	return NewAppError(http.StatusNotFound, message)
}

func ConflictError(message string) *AppError {
	return NewAppError(http.StatusConflict, message)
}

func InternalError(message string) *AppError {
	return NewAppError(http.StatusInternalServerError, message)
}
