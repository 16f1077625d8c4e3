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
)

func newTestHandler() *ErrorHandler {
	return NewErrorHandler(slog.New(slog.NewJSONHandler(io.Discard, nil)), false)
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"input not found", NewInputNotFoundError("table preprocessed_inventory", nil), http.StatusNotFound, TypeInputNotFound},
		{"data error", fmt.Errorf("load: %w", NewDataError("bad month", nil)), http.StatusUnprocessableEntity, TypeDataInvalid},
		{"skipped analysis", NewComputationSkipped("Gloves", "trend", "no usage data"), http.StatusUnprocessableEntity, TypeComputationSkipped},
		{"validation", NewAppValidationError("window must be >= 1"), http.StatusBadRequest, TypeValidation},
		{"storage", NewStorageError("query failed", nil), http.StatusInternalServerError, TypeStorage},
		{"api conflict", ErrRunInProgress, http.StatusConflict, TypePipelineRunning},
		{"api validation", ErrValidation("window", "must be a positive integer"), http.StatusBadRequest, TypeValidation},
		{"api not found", NotFoundError("item Masks"), http.StatusNotFound, TypeNotFound},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, TypeTimeout},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, TypeInternal},
	}

	h := newTestHandler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
			rec := httptest.NewRecorder()

			h.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/v1/items", body["instance"])
			assert.Contains(t, body, "trace_id")
		})
	}
}

func TestErrorHandler_HandleErrorNil(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler().HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, 0, rec.Body.Len())
}

func TestErrorHandler_APIErrorDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/Gloves/trend", nil)
	problem := newTestHandler().ErrorToProblem(ErrValidation("window", "must be >= 1"), req)

	assert.Equal(t, "VALIDATION_FAILED", problem.Extensions["error_code"])
	assert.Equal(t, []ValidationError{{Field: "window", Message: "must be >= 1"}}, problem.Extensions["details"])
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(newTestHandler())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("unexpected")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, TypeInternal, body["type"])
	assert.NotContains(t, body, "stack")
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	h := newTestHandler()

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/api/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "DELETE")
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	pd := NewProblemDetails(http.StatusConflict, TypeConflict, "Conflict", "", "").
		WithExtension("run_id", "abc")

	b, err := json.Marshal(pd)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"/errors/conflict","title":"Conflict","status":409,"run_id":"abc"}`, string(b))
}
