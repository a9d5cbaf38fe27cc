package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/quillhq/quill/pkg/httputil"
	"github.com/quillhq/quill/pkg/observability"
	"github.com/quillhq/quill/pkg/storage"
)

// NewsletterHandlers handles newsletter subscriptions. Both endpoints
// are public; the email itself is the only credential.
type NewsletterHandlers struct {
	newsletter storage.NewsletterStore
}

// NewNewsletterHandlers creates the newsletter handler group.
func NewNewsletterHandlers(newsletter storage.NewsletterStore) *NewsletterHandlers {
	return &NewsletterHandlers{newsletter: newsletter}
}

// RegisterRoutes registers the newsletter routes.
func (h *NewsletterHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/newsletter", h.subscribe).Methods("POST")
	router.HandleFunc("/newsletter", h.unsubscribe).Methods("DELETE")
}

// subscribe handles POST /api/newsletter
func (h *NewsletterHandlers) subscribe(w http.ResponseWriter, r *http.Request) {
	email, ok := h.parseEmail(w, r)
	if !ok {
		return
	}

	_, err := h.newsletter.Subscribe(r.Context(), email)
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		httputil.WriteConflict(w, "Email already exists.")
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("failed to subscribe to newsletter")
		httputil.WriteServerError(w)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, MessageResponse{
		Status:  StatusSuccess,
		Message: "Successfully subscribed to the newsletter.",
	})
}

// unsubscribe handles DELETE /api/newsletter
func (h *NewsletterHandlers) unsubscribe(w http.ResponseWriter, r *http.Request) {
	email, ok := h.parseEmail(w, r)
	if !ok {
		return
	}

	err := h.newsletter.Unsubscribe(r.Context(), email)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httputil.WriteNotFound(w, "Email not found.")
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("failed to unsubscribe from newsletter")
		httputil.WriteServerError(w)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, MessageResponse{
		Status:  StatusSuccess,
		Message: "Successfully unsubscribed from the newsletter.",
	})
}

// parseEmail reads and validates the {email} body shared by both
// endpoints, writing the error response itself on failure.
func (h *NewsletterHandlers) parseEmail(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		Email string `json:"email"`
	}
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return "", false
	}
	if req.Email == "" {
		httputil.WriteBadRequest(w, "Email is required")
		return "", false
	}
	if !validEmail(req.Email) {
		httputil.WriteBadRequest(w, "Email is invalid")
		return "", false
	}
	return req.Email, true
}
