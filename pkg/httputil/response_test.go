package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusAccepted, map[string]int{"count": 3}))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"count": 3}`, rec.Body.String())
}

func TestWriteHelpers(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
		wantBody   string
	}{
		{"success", func(w http.ResponseWriter) { WriteSuccess(w, []string{"a"}) }, http.StatusOK, `["a"]`},
		{"created", func(w http.ResponseWriter) { WriteCreated(w, map[string]int{"id": 1}) }, http.StatusCreated, `{"id": 1}`},
		{"bad request", func(w http.ResponseWriter) { WriteBadRequest(w, "code is required") }, http.StatusBadRequest, `{"error": "code is required"}`},
		{"error message", func(w http.ResponseWriter) { WriteErrorMessage(w, http.StatusConflict, "exists") }, http.StatusConflict, `{"error": "exists"}`},
		{"internal", func(w http.ResponseWriter) { WriteInternalError(w) }, http.StatusInternalServerError, `{"error": "internal server error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestWriteNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteNoContent(rec)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestErrorResponseShape(t *testing.T) {
	data, err := json.Marshal(ErrorResponse{Error: "nope"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"error": "nope"}`, string(data))
}
