package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// API error codes, reported as the error_code problem extension.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeNoFiles          = "NO_FILES"
	CodeValidationFailed = "VALIDATION_FAILED"
)

// APIError is a transport-level error with a fixed status and code.
// Errors raised by the analysis itself are AppErrors instead.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// WithDetails returns a copy of e carrying details.
func (e *APIError) WithDetails(details interface{}) *APIError {
	cp := *e
	cp.Details = details
	return &cp
}

// ValidationError is one rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates an APIError.
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message}
}

// ErrNoFiles is returned when a request carries no workbook.
var ErrNoFiles = New(http.StatusBadRequest, CodeNoFiles, "At least one workbook must be uploaded")

// InvalidRequestWithError reports a request that could not be decoded.
func InvalidRequestWithError(err error) *APIError {
	return New(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format").WithDetails(err.Error())
}

// NewValidationErrors reports every field that failed validation.
func NewValidationErrors(fields []ValidationError) *APIError {
	return New(http.StatusBadRequest, CodeValidationFailed, "Request validation failed").WithDetails(fields)
}
