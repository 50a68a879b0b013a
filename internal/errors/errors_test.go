package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kpianalyzer/internal/infrastructure"
)

func newTestHandler() *ErrorHandler {
	return NewErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), false)
}

func TestAppError_Wrapping(t *testing.T) {
	cause := fmt.Errorf("sheet BBH: missing column")
	err := NewSchemaError("workbook rejected", cause).WithContext("file", "north.xlsx")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[SCHEMA] workbook rejected: sheet BBH: missing column", err.Error())
	assert.Equal(t, "north.xlsx", err.Context["file"])
	assert.Equal(t, http.StatusUnprocessableEntity, err.HTTPStatus())
}

func TestAppError_HTTPStatus(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{NewInputError("empty", nil), http.StatusBadRequest},
		{NewParsingError("bad xlsx", nil), http.StatusBadRequest},
		{NewAppValidationError("bad operator", nil), http.StatusBadRequest},
		{NewConfigError("no rna kpi", nil), http.StatusUnprocessableEntity},
		{NewStorageError("disk full", nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Type), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.HTTPStatus())
		})
	}
}

func TestErrorToProblem(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil)

	tests := []struct {
		name   string
		err    error
		status int
		ptype  string
	}{
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, TypeTimeout},
		{"wrapped canceled", fmt.Errorf("run: %w", context.Canceled), http.StatusGatewayTimeout, TypeTimeout},
		{"max bytes", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge, TypePayloadTooLarge},
		{"api error", ErrNoFiles, http.StatusBadRequest, TypeBadInput},
		{"app schema", NewSchemaError("missing", nil), http.StatusUnprocessableEntity, TypeSchemaMismatch},
		{"wrapped app config", fmt.Errorf("analyze: %w", NewConfigError("bad", nil)), http.StatusUnprocessableEntity, TypeConfig},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, TypeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := h.ErrorToProblem(tt.err, r)
			assert.Equal(t, tt.status, p.Status)
			assert.Equal(t, tt.ptype, p.Type)
			assert.Equal(t, "/api/v1/analyze", p.Instance)
		})
	}
}

func TestHandleError_WritesProblemJSON(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil)
	r = r.WithContext(infrastructure.WithTraceID(r.Context(), "trace-1"))
	w := httptest.NewRecorder()

	h.HandleError(w, r, NewConfigError("RNA KPI is not among the configured KPIs", nil).WithContext("kpi", "RNA"))

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, TypeConfig, body["type"])
	assert.Equal(t, "CONFIG", body["error_code"])
	assert.Equal(t, "RNA", body["kpi"])
	assert.Equal(t, "trace-1", body["trace_id"])
	assert.Equal(t, "RNA KPI is not among the configured KPIs", body["detail"])
}

func TestHandleError_NilIsNoop(t *testing.T) {
	w := httptest.NewRecorder()
	newTestHandler().HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, 0, w.Body.Len())
}

func TestValidationErrors_Details(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil)
	err := NewValidationErrors([]ValidationError{{Field: "format", Message: "must be one of xlsx csv json"}})

	p := h.ErrorToProblem(err, r)
	assert.Equal(t, TypeValidation, p.Type)
	assert.Equal(t, "VALIDATION_FAILED", p.Extensions["error_code"])
	assert.Len(t, p.Extensions["details"], 1)
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	h := newTestHandler()

	w := httptest.NewRecorder()
	h.NotFound(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.MethodNotAllowed(w, httptest.NewRequest(http.MethodDelete, "/api/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, w.Body.String(), "Method DELETE is not allowed")
}

func TestProblemDetails_MarshalOmitsEmpty(t *testing.T) {
	p := NewProblemDetails(http.StatusBadRequest, TypeBadInput, "Bad Request", "", "")
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"/errors/bad-input","title":"Bad Request","status":400}`, string(data))
}
