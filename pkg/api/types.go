package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/quillhq/quill/pkg/storage"
)

// StatusSuccess marks every success body. Error bodies use
// httputil.StatusFail.
const StatusSuccess = "success"

// MessageResponse is the generic {status,message} success body.
type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// UserDTO is the public projection of a user record. The username is
// exposed as "name".
type UserDTO struct {
	ID        uuid.UUID    `json:"id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	Role      storage.Role `json:"role"`
	Verified  bool         `json:"verified"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func newUserDTO(u *storage.User) UserDTO {
	return UserDTO{
		ID:        u.ID,
		Name:      u.Username,
		Email:     u.Email,
		Role:      u.Role,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// UserResponse wraps a single user record.
type UserResponse struct {
	Status string       `json:"status"`
	Data   UserEnvelope `json:"data"`
}

// UserEnvelope nests the user one level below data.
type UserEnvelope struct {
	User UserDTO `json:"user"`
}

// MeResponse is the /users/me body: the caller's record plus how much
// they have written.
type MeResponse struct {
	Status string     `json:"status"`
	Data   MeEnvelope `json:"data"`
}

// MeEnvelope carries the profile payload of MeResponse.
type MeEnvelope struct {
	User         UserDTO `json:"user"`
	PostCount    int64   `json:"post_count"`
	CommentCount int64   `json:"comment_count"`
}

// UserListResponse is the admin user listing. Results is the total
// account count, not the page size.
type UserListResponse struct {
	Status  string    `json:"status"`
	Users   []UserDTO `json:"users"`
	Results int64     `json:"results"`
}

// LoginResponse is the login success body. The tokens also travel as
// cookies; access_token is duplicated here for non-browser clients.
type LoginResponse struct {
	Status      string `json:"status"`
	AccessToken string `json:"access_token"`
	Username    string `json:"username"`
}

// RefreshResponse is the refresh success body.
type RefreshResponse struct {
	Status      string `json:"status"`
	AccessToken string `json:"access_token"`
}

// Pagination describes one page of a larger collection.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

func newPagination(page, limit int, total int64) *Pagination {
	totalPages := total / int64(limit)
	if total%int64(limit) != 0 {
		totalPages++
	}
	return &Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

// PostListItem is the content-less post projection used by list and
// search responses.
type PostListItem struct {
	ID             int64     `json:"id"`
	AuthorUsername string    `json:"userUsername"`
	Title          string    `json:"title"`
	Summary        string    `json:"summary"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func newPostListItems(posts []*storage.Post) []PostListItem {
	items := make([]PostListItem, 0, len(posts))
	for _, p := range posts {
		items = append(items, PostListItem{
			ID:             p.ID,
			AuthorUsername: p.AuthorUsername,
			Title:          p.Title,
			Summary:        p.Summary,
			CreatedAt:      p.CreatedAt,
			UpdatedAt:      p.UpdatedAt,
		})
	}
	return items
}

// PostsResponse is the paginated post listing. Search reuses it with a
// null pagination block.
type PostsResponse struct {
	Status     string         `json:"status"`
	Data       []PostListItem `json:"data"`
	Pagination *Pagination    `json:"pagination"`
}

// PostResponse wraps a full post, content included.
type PostResponse struct {
	Status string        `json:"status"`
	Data   *storage.Post `json:"data"`
}

// CommentsResponse is the paginated comment listing for one post.
type CommentsResponse struct {
	Status     string             `json:"status"`
	Data       []*storage.Comment `json:"data"`
	Pagination Pagination         `json:"pagination"`
}

// CommentResponse wraps a single comment.
type CommentResponse struct {
	Status string           `json:"status"`
	Data   *storage.Comment `json:"data"`
}
