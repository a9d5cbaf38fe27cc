package httputil

import (
	"encoding/json"
	"net/http"
)

// StatusFail marks every error body. Success bodies carry their own
// per-endpoint status strings.
const StatusFail = "fail"

// ServerErrorMessage is the only detail clients receive for unexpected
// failures. The underlying error is logged server-side.
const ServerErrorMessage = "Server Error. Please try again later"

// ErrorResponse is the error body shared by every endpoint.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteFail writes the standard error body with the given status code
func WriteFail(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Status: StatusFail, Message: message})
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteFail(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteFail(w, http.StatusUnauthorized, message)
}

// WriteForbidden writes a forbidden error (403)
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteFail(w, http.StatusForbidden, message)
}

// WriteNotFound writes a not found error (404)
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteFail(w, http.StatusNotFound, message)
}

// WriteConflict writes a conflict error (409)
func WriteConflict(w http.ResponseWriter, message string) {
	WriteFail(w, http.StatusConflict, message)
}

// WriteServerError writes a 500 with the generic message. Callers log
// the real cause before calling this.
func WriteServerError(w http.ResponseWriter) {
	WriteFail(w, http.StatusInternalServerError, ServerErrorMessage)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
