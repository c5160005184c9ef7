package httputil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestWriteMessageHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		msg    string
	}{
		{"bad request", func(w http.ResponseWriter) { WriteBadRequest(w, "nope") }, http.StatusBadRequest, "nope"},
		{"unauthorized", func(w http.ResponseWriter) { WriteUnauthorized(w, "Not authenticated") }, http.StatusUnauthorized, "Not authenticated"},
		{"not found", func(w http.ResponseWriter) { WriteNotFound(w, "gone") }, http.StatusNotFound, "gone"},
		{"internal default", func(w http.ResponseWriter) { WriteInternalError(w, "") }, http.StatusInternalServerError, "Internal server error"},
		{"internal custom", func(w http.ResponseWriter) { WriteInternalError(w, "Failed to log out") }, http.StatusInternalServerError, "Failed to log out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, tt.msg, decodeError(t, w).Message)
		})
	}
}

func TestWriteValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteValidationError(w, "Invalid signup data", map[string]string{
		"step1Data.email": "Email is required",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "Invalid signup data", resp.Message)
	assert.Equal(t, "Email is required", resp.Details["step1Data.email"])
}

func TestWriteSuccessAndCreated(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteSuccess(w, map[string]bool{"exists": true}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"exists":true}`, w.Body.String())

	w = httptest.NewRecorder()
	require.NoError(t, WriteCreated(w, map[string]string{"id": "u1"}))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestParseJSONOrError(t *testing.T) {
	var dest struct {
		Email string `json:"email"`
	}

	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"email":"a@b.com"}`))
	w := httptest.NewRecorder()
	assert.True(t, ParseJSONOrError(w, req, &dest))
	assert.Equal(t, "a@b.com", dest.Email)

	req = httptest.NewRequest("POST", "/", bytes.NewBufferString(`{not json`))
	w = httptest.NewRecorder()
	assert.False(t, ParseJSONOrError(w, req, &dest))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", decodeError(t, w).Message)
}
