package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/quillhq/quill/pkg/httputil"
	"github.com/quillhq/quill/pkg/observability"
	"github.com/quillhq/quill/pkg/storage"
)

// SearchHandlers handles full-text post search. Ranking lives in the
// store SQL; the handler only pages the results.
type SearchHandlers struct {
	posts storage.PostStore
}

// NewSearchHandlers creates the search handler group.
func NewSearchHandlers(posts storage.PostStore) *SearchHandlers {
	return &SearchHandlers{posts: posts}
}

// RegisterRoutes registers the search route.
func (h *SearchHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/search", h.search).Methods("GET")
}

// search handles GET /api/search?q=
//
// The body reuses the post listing shape with a null pagination block;
// ranked results have no stable total.
func (h *SearchHandlers) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		httputil.WriteBadRequest(w, "Search query is required")
		return
	}

	page, limit, err := httputil.ParsePagination(r, maxPostsLimit)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	posts, err := h.posts.Search(r.Context(), q, limit, (page-1)*limit)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("search failed")
		httputil.WriteServerError(w)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, PostsResponse{
		Status:     StatusSuccess,
		Data:       newPostListItems(posts),
		Pagination: nil,
	})
}
