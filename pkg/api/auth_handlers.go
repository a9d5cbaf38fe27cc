package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/quillhq/quill/pkg/auth"
	"github.com/quillhq/quill/pkg/httputil"
	"github.com/quillhq/quill/pkg/middleware"
	"github.com/quillhq/quill/pkg/observability"
	"github.com/quillhq/quill/pkg/storage"
)

// RefreshTokenCookie carries the long-lived refresh token. The access
// token cookie name lives in pkg/middleware because the auth middleware
// reads it.
const RefreshTokenCookie = "refresh_token"

// AuthHandlers handles registration, login, and the token flows.
type AuthHandlers struct {
	auth        *auth.Service
	frontendURL string
}

// NewAuthHandlers creates the auth handler group.
func NewAuthHandlers(svc *auth.Service, frontendURL string) *AuthHandlers {
	return &AuthHandlers{
		auth:        svc,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// RegisterRoutes registers the auth routes. All of them are public.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/register", h.register).Methods("POST")
	router.HandleFunc("/auth/login", h.login).Methods("POST")
	router.HandleFunc("/auth/verify", h.verify).Methods("GET")
	router.HandleFunc("/auth/forgot-password", h.forgotPassword).Methods("POST")
	router.HandleFunc("/auth/reset-password", h.resetPassword).Methods("POST")
	router.HandleFunc("/auth/refresh", h.refresh).Methods("POST")
}

// setAuthCookie writes a site-wide session cookie.
func setAuthCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
	})
}

// clearAuthCookie expires a cookie immediately.
func clearAuthCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// register handles POST /api/auth/register
func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username        string `json:"username"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.Username == "" {
		httputil.WriteBadRequest(w, "Name is required")
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
	if len(req.Password) < 6 {
		httputil.WriteBadRequest(w, "Password must be at least 6 characters")
		return
	}
	if req.ConfirmPassword == "" {
		httputil.WriteBadRequest(w, "Confirm Password is required")
		return
	}
	if req.Password != req.ConfirmPassword {
		httputil.WriteBadRequest(w, "passwords do not match")
		return
	}

	_, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		httputil.WriteConflict(w, "Email already exists")
		return
	case errors.Is(err, auth.ErrPasswordTooLong):
		httputil.WriteBadRequest(w, fmt.Sprintf("Password must not be more than %d characters", auth.MaxPasswordLength))
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("registration failed")
		httputil.WriteServerError(w)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, MessageResponse{
		Status:  StatusSuccess,
		Message: "Registration successful! Please check your email to verify your account.",
	})
}

// login handles POST /api/auth/login
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.Identifier == "" {
		httputil.WriteBadRequest(w, "Email or username is required")
		return
	}
	if len(req.Password) < 6 {
		httputil.WriteBadRequest(w, "Password must be at least 6 characters")
		return
	}

	result, err := h.auth.Login(r.Context(), req.Identifier, req.Password, clientIP(r))
	switch {
	case errors.Is(err, auth.ErrWrongCredentials):
		httputil.WriteBadRequest(w, "Email or password is wrong")
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("login failed")
		httputil.WriteServerError(w)
		return
	}

	setAuthCookie(w, middleware.AccessTokenCookie, result.AccessToken)
	setAuthCookie(w, RefreshTokenCookie, result.RefreshToken)
	httputil.WriteJSON(w, http.StatusOK, LoginResponse{
		Status:      StatusSuccess,
		AccessToken: result.AccessToken,
		Username:    result.User.Username,
	})
}

// verify handles GET /api/auth/verify?token=
//
// On success the browser lands on the frontend settings page already
// holding a fresh access cookie.
func (h *AuthHandlers) verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httputil.WriteBadRequest(w, "Token is required.")
		return
	}

	_, accessToken, err := h.auth.VerifyEmail(r.Context(), token)
	switch {
	case errors.Is(err, auth.ErrTokenNotFound):
		httputil.WriteUnauthorized(w, middleware.MsgInvalidToken)
		return
	case errors.Is(err, auth.ErrTokenExpired):
		httputil.WriteBadRequest(w, "Verification token has expired")
		return
	case errors.Is(err, auth.ErrTokenMissingExpiry):
		httputil.WriteBadRequest(w, "Invalid verification token")
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("email verification failed")
		httputil.WriteServerError(w)
		return
	}

	setAuthCookie(w, middleware.AccessTokenCookie, accessToken)
	http.Redirect(w, r, h.frontendURL+"/settings", http.StatusSeeOther)
}

// forgotPassword handles POST /api/auth/forgot-password
//
// Unknown emails get a 404, which discloses account existence. The
// behavior is kept on purpose; the frontend relies on it.
func (h *AuthHandlers) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
	}
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Identifier == "" {
		httputil.WriteBadRequest(w, "Identifier is required")
		return
	}

	err := h.auth.ForgotPassword(r.Context(), req.Identifier)
	switch {
	case errors.Is(err, auth.ErrAccountNotFound):
		httputil.WriteNotFound(w, "Email not found!")
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("forgot password failed")
		httputil.WriteServerError(w)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, MessageResponse{
		Status:  StatusSuccess,
		Message: "Password reset link has been sent to your email.",
	})
}

// resetPassword handles POST /api/auth/reset-password
func (h *AuthHandlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token              string `json:"token"`
		NewPassword        string `json:"new_password"`
		NewPasswordConfirm string `json:"new_password_confirm"`
	}
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.Token == "" {
		httputil.WriteBadRequest(w, "Token is required.")
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

	err := h.auth.ResetPassword(r.Context(), req.Token, req.NewPassword)
	switch {
	case errors.Is(err, auth.ErrTokenNotFound):
		httputil.WriteBadRequest(w, "Invalid or expired token")
		return
	case errors.Is(err, auth.ErrTokenExpired):
		httputil.WriteBadRequest(w, "Verification token has expired")
		return
	case errors.Is(err, auth.ErrTokenMissingExpiry):
		httputil.WriteBadRequest(w, "Invalid verification token")
		return
	case errors.Is(err, auth.ErrPasswordTooLong):
		httputil.WriteBadRequest(w, fmt.Sprintf("Password must not be more than %d characters", auth.MaxPasswordLength))
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("password reset failed")
		httputil.WriteServerError(w)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, MessageResponse{
		Status:  StatusSuccess,
		Message: "Password has been successfully reset.",
	})
}

// refresh handles POST /api/auth/refresh
//
// The refresh token travels only as a cookie. A new access token is
// issued when the token verifies and matches the stored session entry.
func (h *AuthHandlers) refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshTokenCookie)
	if err != nil || cookie.Value == "" {
		httputil.WriteUnauthorized(w, middleware.MsgTokenNotProvided)
		return
	}

	accessToken, err := h.auth.Refresh(r.Context(), cookie.Value)
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		httputil.WriteUnauthorized(w, middleware.MsgInvalidToken)
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("token refresh failed")
		httputil.WriteServerError(w)
		return
	}

	setAuthCookie(w, middleware.AccessTokenCookie, accessToken)
	httputil.WriteJSON(w, http.StatusOK, RefreshResponse{
		Status:      "access_token recreated",
		AccessToken: accessToken,
	})
}
