package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/quillhq/quill/pkg/auth"
	"github.com/quillhq/quill/pkg/httputil"
	"github.com/quillhq/quill/pkg/middleware"
	"github.com/quillhq/quill/pkg/observability"
	"github.com/quillhq/quill/pkg/storage"
)

// maxUsersLimit caps the admin user listing page size.
const maxUsersLimit = 50

// UserHandlers handles the authenticated profile surface: the caller's
// own record, credential updates, logout, and the admin user listing.
type UserHandlers struct {
	auth     *auth.Service
	users    storage.UserStore
	posts    storage.PostStore
	comments storage.CommentStore
	authMW   *middleware.Auth
}

// NewUserHandlers creates the user handler group.
func NewUserHandlers(svc *auth.Service, users storage.UserStore, posts storage.PostStore, comments storage.CommentStore, authMW *middleware.Auth) *UserHandlers {
	return &UserHandlers{
		auth:     svc,
		users:    users,
		posts:    posts,
		comments: comments,
		authMW:   authMW,
	}
}

// RegisterRoutes registers the user routes. The whole subtree requires
// a valid access token; the listing additionally requires admin.
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	users := router.PathPrefix("/users").Subrouter()
	users.Use(h.authMW.Handler)

	users.Handle("/me", middleware.RequireRole(storage.RoleAdmin, storage.RoleUser)(http.HandlerFunc(h.me))).Methods("GET")
	users.Handle("/users", middleware.RequireRole(storage.RoleAdmin)(http.HandlerFunc(h.listUsers))).Methods("GET")
	users.HandleFunc("/username", h.updateUsername).Methods("PUT")
	users.HandleFunc("/password", h.updatePassword).Methods("PUT")
	users.HandleFunc("/email", h.updateEmail).Methods("PUT")
	users.HandleFunc("/logout", h.logout).Methods("POST")
	users.HandleFunc("/delete-me", h.deleteMe).Methods("DELETE")
}

// me handles GET /api/users/me
func (h *UserHandlers) me(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, middleware.MsgNotAuthenticated)
		return
	}

	postCount, err := h.posts.CountByUsername(r.Context(), user.Username)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to count posts")
		httputil.WriteServerError(w)
		return
	}
	commentCount, err := h.comments.CountByAuthor(r.Context(), user.ID)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to count comments")
		httputil.WriteServerError(w)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, MeResponse{
		Status: StatusSuccess,
		Data: MeEnvelope{
			User:         newUserDTO(user),
			PostCount:    postCount,
			CommentCount: commentCount,
		},
	})
}

// listUsers handles GET /api/users/users (admin only)
func (h *UserHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, err := httputil.ParsePagination(r, maxUsersLimit)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	users, err := h.users.List(r.Context(), limit, (page-1)*limit)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to list users")
		httputil.WriteServerError(w)
		return
	}
	total, err := h.users.Count(r.Context())
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to count users")
		httputil.WriteServerError(w)
		return
	}

	dtos := make([]UserDTO, 0, len(users))
	for _, u := range users {
		dtos = append(dtos, newUserDTO(u))
	}
	httputil.WriteJSON(w, http.StatusOK, UserListResponse{
		Status:  StatusSuccess,
		Users:   dtos,
		Results: total,
	})
}

// updateUsername handles PUT /api/users/username
func (h *UserHandlers) updateUsername(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, middleware.MsgNotAuthenticated)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "Name is required")
		return
	}

	updated, err := h.users.UpdateUsername(r.Context(), user.ID, req.Name)
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		httputil.WriteConflict(w, "Username already exists")
		return
	case errors.Is(err, storage.ErrNotFound):
		httputil.WriteNotFound(w, "User not found")
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("failed to update username")
		httputil.WriteServerError(w)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, UserResponse{
		Status: StatusSuccess,
		Data:   UserEnvelope{User: newUserDTO(updated)},
	})
}

// updatePassword handles PUT /api/users/password
func (h *UserHandlers) updatePassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, middleware.MsgNotAuthenticated)
		return
	}

	var req struct {
		OldPassword        string `json:"old_password"`
		NewPassword        string `json:"new_password"`
		NewPasswordConfirm string `json:"new_password_confirm"`
	}
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if len(req.NewPassword) < 6 {
		httputil.WriteBadRequest(w, "new password must be at least 6 characters")
		return
	}
	if len(req.NewPasswordConfirm) < 6 {
		httputil.WriteBadRequest(w, "new password confirm must be at least 6 characters")
		return
	}
	if req.NewPassword != req.NewPasswordConfirm {
		httputil.WriteBadRequest(w, "new passwords do not match")
		return
	}
	if len(req.OldPassword) < 6 {
		httputil.WriteBadRequest(w, "Old password must be at least 6 characters")
		return
	}

	err := h.auth.ChangePassword(r.Context(), user, req.OldPassword, req.NewPassword)
	switch {
	case errors.Is(err, auth.ErrPasswordMismatch):
		httputil.WriteBadRequest(w, "Old password is incorrect")
		return
	case errors.Is(err, auth.ErrPasswordTooLong):
		httputil.WriteBadRequest(w, fmt.Sprintf("Password must not be more than %d characters", auth.MaxPasswordLength))
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("failed to change password")
		httputil.WriteServerError(w)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, MessageResponse{
		Status:  StatusSuccess,
		Message: "Password updated Successfully",
	})
}

// updateEmail handles PUT /api/users/email
//
// The address does not change yet; the user gets a verification mail at
// the new address and the swap happens when its token is consumed.
func (h *UserHandlers) updateEmail(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, middleware.MsgNotAuthenticated)
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Email == "" {
		httputil.WriteBadRequest(w, "Email is required")
		return
	}
	if !validEmail(req.Email) {
		httputil.WriteBadRequest(w, "Email is invalid")
		return
	}

	err := h.auth.RequestEmailChange(r.Context(), user, req.Email)
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		httputil.WriteConflict(w, "Email already exists")
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("failed to request email change")
		httputil.WriteServerError(w)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, MessageResponse{
		Status:  StatusSuccess,
		Message: "Please verify your email",
	})
}

// logout handles POST /api/users/logout
func (h *UserHandlers) logout(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, middleware.MsgNotAuthenticated)
		return
	}

	if err := h.auth.Logout(r.Context(), user.ID.String()); err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to log out")
		httputil.WriteServerError(w)
		return
	}

	clearAuthCookie(w, middleware.AccessTokenCookie)
	clearAuthCookie(w, RefreshTokenCookie)
	httputil.WriteJSON(w, http.StatusOK, MessageResponse{
		Status:  StatusSuccess,
		Message: "Logout successful",
	})
}

// deleteMe handles DELETE /api/users/delete-me
func (h *UserHandlers) deleteMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, middleware.MsgNotAuthenticated)
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if len(req.Password) < 6 {
		httputil.WriteBadRequest(w, "Password must be at least 6 characters")
		return
	}

	err := h.auth.DeleteAccount(r.Context(), user, req.Password)
	switch {
	case errors.Is(err, auth.ErrPasswordMismatch):
		httputil.WriteUnauthorized(w, "Invalid password")
		return
	case errors.Is(err, storage.ErrNotFound):
		httputil.WriteNotFound(w, "User not found")
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("failed to delete account")
		httputil.WriteServerError(w)
		return
	}

	httputil.WriteNoContent(w)
}
