package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AppError is the base type for all domain errors. It carries a stable
// machine-readable code and optional structured params for the client.
type AppError struct {
	Code       string
	Message    string
	StatusCode int
	Params     map[string]interface{}
}

func (e *AppError) Error() string {
	return e.Message
}

// NewValidationError reports client input that fails domain rules.
func NewValidationError(message string, params map[string]interface{}) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: message, StatusCode: http.StatusBadRequest, Params: params}
}

// NewConflictError reports an operation that conflicts with current
// system state (duplicates, rag-config mismatch).
func NewConflictError(message string, params map[string]interface{}) *AppError {
	return &AppError{Code: "CONFLICT_ERROR", Message: message, StatusCode: http.StatusConflict, Params: params}
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(message string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: message, StatusCode: http.StatusNotFound, Params: nil}
}

func IsValidation(err error) bool { return hasCode(err, "VALIDATION_ERROR") }
func IsConflict(err error) bool   { return hasCode(err, "CONFLICT_ERROR") }
func IsNotFound(err error) bool   { return hasCode(err, "NOT_FOUND") }

func hasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// ErrorCodeOf extracts the stable code from a domain error, falling
// back to INTERNAL_ERROR for everything else.
func ErrorCodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "INTERNAL_ERROR"
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithDomainError maps a domain error onto the HTTP envelope.
// Unknown errors become a generic 500 without leaking internals.
func RespondWithDomainError(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		RespondWithError(c, appErr.StatusCode, appErr.Code, appErr.Message, appErr.Params)
		return
	}
	RespondWithError(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}
