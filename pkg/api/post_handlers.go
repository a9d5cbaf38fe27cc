package api

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"golang.org/x/net/html"

	"github.com/quillhq/quill/pkg/httputil"
	"github.com/quillhq/quill/pkg/middleware"
	"github.com/quillhq/quill/pkg/observability"
	"github.com/quillhq/quill/pkg/storage"
)

// maxPostsLimit caps the post listing page size.
const maxPostsLimit = 25

// summaryRunes caps derived post summaries.
const summaryRunes = 200

// PostHandlers handles the post CRUD surface. Reads are public; writes
// require an admin access token.
type PostHandlers struct {
	posts  storage.PostStore
	authMW *middleware.Auth
}

// NewPostHandlers creates the post handler group.
func NewPostHandlers(posts storage.PostStore, authMW *middleware.Auth) *PostHandlers {
	return &PostHandlers{posts: posts, authMW: authMW}
}

// RegisterRoutes registers the post routes.
func (h *PostHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/posts", h.listPosts).Methods("GET")
	router.Handle("/posts", protect(h.authMW, h.createPost, storage.RoleAdmin)).Methods("POST")
	router.HandleFunc("/posts/{post_id}", h.getPost).Methods("GET")
	router.Handle("/posts/{post_id}", protect(h.authMW, h.updatePost, storage.RoleAdmin)).Methods("PUT")
	router.Handle("/posts/{post_id}", protect(h.authMW, h.deletePost, storage.RoleAdmin)).Methods("DELETE")
}

// listPosts handles GET /api/posts
//
// Without user_username the listing spans all authors.
func (h *PostHandlers) listPosts(w http.ResponseWriter, r *http.Request) {
	page, limit, err := httputil.ParsePagination(r, maxPostsLimit)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	offset := (page - 1) * limit
	username := r.URL.Query().Get("user_username")

	var (
		posts []*storage.Post
		total int64
	)
	if username == "" {
		posts, err = h.posts.List(r.Context(), limit, offset)
		if err == nil {
			total, err = h.posts.Count(r.Context())
		}
	} else {
		posts, err = h.posts.ListByAuthor(r.Context(), username, limit, offset)
		if err == nil {
			total, err = h.posts.CountByUsername(r.Context(), username)
		}
	}
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to list posts")
		httputil.WriteServerError(w)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, PostsResponse{
		Status:     StatusSuccess,
		Data:       newPostListItems(posts),
		Pagination: newPagination(page, limit, total),
	})
}

// getPost handles GET /api/posts/{post_id}
//
// The body is the bare post record, not an envelope; the frontend
// consumes it that way.
func (h *PostHandlers) getPost(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParsePathInt64(r, "post_id")
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid post id")
		return
	}

	post, err := h.posts.GetByID(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httputil.WriteNotFound(w, "Post not found")
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("failed to load post")
		httputil.WriteServerError(w)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, post)
}

// createPost handles POST /api/posts (admin only)
func (h *PostHandlers) createPost(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, middleware.MsgNotAuthenticated)
		return
	}

	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Content == "" {
		httputil.WriteBadRequest(w, "Content is required.")
		return
	}
	if req.Title == "" {
		httputil.WriteBadRequest(w, "Title is required.")
		return
	}

	post, err := h.posts.Create(r.Context(), user.ID, req.Title, req.Content, summarize(req.Content))
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to create post")
		httputil.WriteServerError(w)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, PostResponse{Status: StatusSuccess, Data: post})
}

// updatePost handles PUT /api/posts/{post_id} (admin only)
//
// Ownership is enforced in the store: updating someone else's post
// reports not found.
func (h *PostHandlers) updatePost(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, middleware.MsgNotAuthenticated)
		return
	}

	id, err := httputil.ParsePathInt64(r, "post_id")
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid post id")
		return
	}

	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Content == "" {
		httputil.WriteBadRequest(w, "Content is required.")
		return
	}
	if req.Title == "" {
		httputil.WriteBadRequest(w, "Title is required.")
		return
	}

	post, err := h.posts.Update(r.Context(), id, user.ID, req.Title, req.Content, summarize(req.Content))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httputil.WriteNotFound(w, "Post not found")
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("failed to update post")
		httputil.WriteServerError(w)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, PostResponse{Status: StatusSuccess, Data: post})
}

// deletePost handles DELETE /api/posts/{post_id} (admin only)
func (h *PostHandlers) deletePost(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, middleware.MsgNotAuthenticated)
		return
	}

	id, err := httputil.ParsePathInt64(r, "post_id")
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid post id")
		return
	}

	err = h.posts.Delete(r.Context(), id, user.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httputil.WriteNotFound(w, "Post not found")
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("failed to delete post")
		httputil.WriteServerError(w)
		return
	}

	httputil.WriteNoContent(w)
}

// summarize derives the plain-text summary stored alongside a post by
// dropping markup and truncating on a word boundary.
func summarize(content string) string {
	tz := html.NewTokenizer(strings.NewReader(content))
	var b strings.Builder
	for {
		tt := tz.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.Write(tz.Text())
		}
	}

	text := strings.Join(strings.Fields(b.String()), " ")
	if utf8.RuneCountInString(text) <= summaryRunes {
		return text
	}
	truncated := string([]rune(text)[:summaryRunes])
	if i := strings.LastIndexByte(truncated, ' '); i > 0 {
		truncated = truncated[:i]
	}
	return truncated + "..."
}
