package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/quillhq/quill/pkg/auth"
	"github.com/quillhq/quill/pkg/contextkeys"
	"github.com/quillhq/quill/pkg/httputil"
	"github.com/quillhq/quill/pkg/observability"
	"github.com/quillhq/quill/pkg/storage"
)

// Messages returned on authentication and authorization failures. These
// are part of the wire contract, so their wording is fixed.
const (
	MsgTokenNotProvided  = "You are not logged in, please provide a token"
	MsgInvalidToken      = "Token is invalid or expired"
	MsgUserNoLongerExist = "User belonging to this token no longer exists"
	MsgNotAuthenticated  = "Authentication required. Please log in."
	MsgPermissionDenied  = "You are not allowed to perform this action"
)

// AccessTokenCookie is the cookie checked before the Authorization header.
const AccessTokenCookie = "access_token"

// UserLoader is the slice of storage.UserStore the middleware needs.
type UserLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*storage.User, error)
}

// Auth validates the access token and loads the account it belongs to.
type Auth struct {
	codec *auth.TokenCodec
	users UserLoader
}

// NewAuth creates authentication middleware
func NewAuth(codec *auth.TokenCodec, users UserLoader) *Auth {
	return &Auth{
		codec: codec,
		users: users,
	}
}

// Handler wraps an HTTP handler with authentication. The token is taken
// from the access_token cookie first (browser clients), then from the
// Authorization header (API clients).
func (m *Auth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractToken(r)
		if token == "" {
			httputil.WriteUnauthorized(w, MsgTokenNotProvided)
			return
		}

		subject, err := m.codec.Verify(token)
		if err != nil {
			httputil.WriteUnauthorized(w, MsgInvalidToken)
			return
		}

		userID, err := uuid.Parse(subject)
		if err != nil {
			httputil.WriteUnauthorized(w, MsgInvalidToken)
			return
		}

		// A valid token whose account has since been deleted gets the
		// same 401 as a load failure.
		user, err := m.users.GetByID(r.Context(), userID)
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteUnauthorized(w, MsgUserNoLongerExist)
			return
		} else if err != nil {
			observability.FromContext(r.Context()).WithError(err).Error("failed to load user for access token")
			httputil.WriteUnauthorized(w, MsgUserNoLongerExist)
			return
		}

		ctx := contextkeys.WithUser(r.Context(), user)
		ctx = observability.WithUserID(ctx, user.ID.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ExtractToken pulls the access token out of the request, preferring the
// cookie over the Authorization header.
func ExtractToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// CurrentUser extracts the authenticated user from the request, or nil if
// the auth middleware did not run.
func CurrentUser(r *http.Request) *storage.User {
	user, ok := r.Context().Value(contextkeys.UserKey).(*storage.User)
	if !ok {
		return nil
	}
	return user
}

// RequireRole creates middleware that allows only the listed roles. It
// must run after Auth.
func RequireRole(roles ...storage.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := CurrentUser(r)
			if user == nil {
				httputil.WriteUnauthorized(w, MsgNotAuthenticated)
				return
			}

			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			httputil.WriteForbidden(w, MsgPermissionDenied)
		})
	}
}
