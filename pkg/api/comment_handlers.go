package api

import (
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/gorilla/mux"

	"github.com/quillhq/quill/pkg/httputil"
	"github.com/quillhq/quill/pkg/middleware"
	"github.com/quillhq/quill/pkg/observability"
	"github.com/quillhq/quill/pkg/storage"
)

// maxCommentsLimit caps the comment listing page size.
const maxCommentsLimit = 100

// maxCommentRunes caps comment length.
const maxCommentRunes = 1000

// Accepted values for the comment listing sort parameter.
const (
	sortCreatedDesc = "created_at_desc"
	sortCreatedAsc  = "created_at_asc"
)

// CommentHandlers handles the comment CRUD surface. The listing is
// public; writes require any authenticated user.
type CommentHandlers struct {
	comments storage.CommentStore
	authMW   *middleware.Auth
}

// NewCommentHandlers creates the comment handler group.
func NewCommentHandlers(comments storage.CommentStore, authMW *middleware.Auth) *CommentHandlers {
	return &CommentHandlers{comments: comments, authMW: authMW}
}

// RegisterRoutes registers the comment routes.
func (h *CommentHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/comments", h.listComments).Methods("GET")
	router.Handle("/comments", protect(h.authMW, h.createComment)).Methods("POST")
	router.Handle("/comments/{comment_id}", protect(h.authMW, h.updateComment)).Methods("PUT")
	router.Handle("/comments/{comment_id}", protect(h.authMW, h.deleteComment)).Methods("DELETE")
}

// validCommentContent reports whether content fits the 1..=1000 rune
// window.
func validCommentContent(content string) bool {
	n := utf8.RuneCountInString(content)
	return n >= 1 && n <= maxCommentRunes
}

// listComments handles GET /api/comments?post_id=
func (h *CommentHandlers) listComments(w http.ResponseWriter, r *http.Request) {
	postID, err := httputil.ParseQueryInt64(r, "post_id", 0)
	if err != nil || postID < 1 {
		httputil.WriteBadRequest(w, "post_id is required")
		return
	}

	page, limit, err := httputil.ParsePagination(r, maxCommentsLimit)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	sort := httputil.ParseQueryString(r, "sort", sortCreatedDesc)
	if sort != sortCreatedDesc && sort != sortCreatedAsc {
		httputil.WriteBadRequest(w, "Sort must be created_at_desc or created_at_asc")
		return
	}

	comments, err := h.comments.ListByPost(r.Context(), postID, limit, (page-1)*limit, sort == sortCreatedAsc)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to list comments")
		httputil.WriteServerError(w)
		return
	}
	total, err := h.comments.CountByPost(r.Context(), postID)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to count comments")
		httputil.WriteServerError(w)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, CommentsResponse{
		Status:     StatusSuccess,
		Data:       comments,
		Pagination: *newPagination(page, limit, total),
	})
}

// createComment handles POST /api/comments
func (h *CommentHandlers) createComment(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, middleware.MsgNotAuthenticated)
		return
	}

	var req struct {
		PostID  int64  `json:"post_id"`
		Content string `json:"content"`
	}
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.PostID < 1 {
		httputil.WriteBadRequest(w, "post_id is required")
		return
	}
	if !validCommentContent(req.Content) {
		httputil.WriteBadRequest(w, "Content must be between 1 and 1000 characters")
		return
	}

	comment, err := h.comments.Create(r.Context(), req.PostID, user.ID, req.Content)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httputil.WriteNotFound(w, "Post not found")
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("failed to create comment")
		httputil.WriteServerError(w)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, CommentResponse{Status: StatusSuccess, Data: comment})
}

// updateComment handles PUT /api/comments/{comment_id}
//
// Ownership is enforced in the store: editing someone else's comment
// reports not found.
func (h *CommentHandlers) updateComment(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, middleware.MsgNotAuthenticated)
		return
	}

	id, err := httputil.ParsePathInt64(r, "comment_id")
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid comment id")
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if !validCommentContent(req.Content) {
		httputil.WriteBadRequest(w, "Content must be between 1 and 1000 characters")
		return
	}

	comment, err := h.comments.Update(r.Context(), id, user.ID, req.Content)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httputil.WriteNotFound(w, "Comment not found")
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("failed to update comment")
		httputil.WriteServerError(w)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, CommentResponse{Status: StatusSuccess, Data: comment})
}

// deleteComment handles DELETE /api/comments/{comment_id}
func (h *CommentHandlers) deleteComment(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, middleware.MsgNotAuthenticated)
		return
	}

	id, err := httputil.ParsePathInt64(r, "comment_id")
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid comment id")
		return
	}

	err = h.comments.Delete(r.Context(), id, user.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httputil.WriteNotFound(w, "Comment not found")
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("failed to delete comment")
		httputil.WriteServerError(w)
		return
	}

	httputil.WriteNoContent(w)
}
