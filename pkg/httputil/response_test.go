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
	w := httptest.NewRecorder()
	data := map[string]string{"message": "success"}

	err := WriteJSON(w, http.StatusOK, data)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "success")
}

func TestWriteFailBodyShape(t *testing.T) {
	w := httptest.NewRecorder()

	WriteFail(w, http.StatusBadRequest, "something was off")

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "fail", body.Status)
	assert.Equal(t, "something was off", body.Message)
}

func TestWriteBadRequest(t *testing.T) {
	w := httptest.NewRecorder()

	WriteBadRequest(w, "invalid input")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid input")
}

func TestWriteUnauthorized(t *testing.T) {
	w := httptest.NewRecorder()

	WriteUnauthorized(w, "Token is invalid or expired")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Token is invalid or expired")
}

func TestWriteForbidden(t *testing.T) {
	w := httptest.NewRecorder()

	WriteForbidden(w, "You are not allowed to perform this action")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "You are not allowed to perform this action")
}

func TestWriteNotFound(t *testing.T) {
	w := httptest.NewRecorder()

	WriteNotFound(w, "Post not found")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Post not found")
}

func TestWriteConflict(t *testing.T) {
	w := httptest.NewRecorder()

	WriteConflict(w, "Email already exists")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Email already exists")
}

func TestWriteServerErrorHidesDetail(t *testing.T) {
	w := httptest.NewRecorder()

	WriteServerError(w)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "fail", body.Status)
	assert.Equal(t, ServerErrorMessage, body.Message)
}

func TestWriteNoContent(t *testing.T) {
	w := httptest.NewRecorder()

	WriteNoContent(w)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}
