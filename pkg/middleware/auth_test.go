package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/quillhq/quill/pkg/auth"
	"github.com/quillhq/quill/pkg/contextkeys"
	"github.com/quillhq/quill/pkg/storage"
)

type fakeUserLoader struct {
	users map[uuid.UUID]*storage.User
	err   error
}

func (f *fakeUserLoader) GetByID(_ context.Context, id uuid.UUID) (*storage.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	user, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return user, nil
}

func setupAuthTest(t *testing.T) (*Auth, *auth.TokenCodec, *storage.User, *fakeUserLoader) {
	t.Helper()

	codec := auth.NewTokenCodec([]byte("middleware-test-secret"))
	user := &storage.User{
		ID:       uuid.New(),
		Username: "margot",
		Email:    "margot@example.com",
		Role:     storage.RoleUser,
	}
	loader := &fakeUserLoader{users: map[uuid.UUID]*storage.User{user.ID: user}}
	return NewAuth(codec, loader), codec, user, loader
}

func mustIssue(t *testing.T, codec *auth.TokenCodec, subject string, ttl time.Duration) string {
	t.Helper()
	token, err := codec.Issue(subject, ttl)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

func TestAuthMiddlewareHandler(t *testing.T) {
	t.Run("accepts token from cookie", func(t *testing.T) {
		mw, codec, user, _ := setupAuthTest(t)
		token := mustIssue(t, codec, user.ID.String(), time.Minute)

		var got *storage.User
		handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = CurrentUser(r)
		}))

		req := httptest.NewRequest("GET", "/api/users/me", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
		if got == nil || got.ID != user.ID {
			t.Errorf("expected current user %s, got %+v", user.ID, got)
		}
	})

	t.Run("accepts token from Authorization header", func(t *testing.T) {
		mw, codec, user, _ := setupAuthTest(t)
		token := mustIssue(t, codec, user.ID.String(), time.Minute)

		var got *storage.User
		handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = CurrentUser(r)
		}))

		req := httptest.NewRequest("GET", "/api/users/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
		if got == nil || got.ID != user.ID {
			t.Errorf("expected current user %s, got %+v", user.ID, got)
		}
	})

	t.Run("cookie wins over header", func(t *testing.T) {
		mw, codec, user, loader := setupAuthTest(t)
		other := &storage.User{ID: uuid.New(), Username: "second", Role: storage.RoleUser}
		loader.users[other.ID] = other

		var got *storage.User
		handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = CurrentUser(r)
		}))

		req := httptest.NewRequest("GET", "/api/users/me", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: mustIssue(t, codec, user.ID.String(), time.Minute)})
		req.Header.Set("Authorization", "Bearer "+mustIssue(t, codec, other.ID.String(), time.Minute))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if got == nil || got.ID != user.ID {
			t.Errorf("expected cookie user %s, got %+v", user.ID, got)
		}
	})

	t.Run("rejects request without token", func(t *testing.T) {
		mw, _, _, _ := setupAuthTest(t)
		handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/users/me", nil))

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), MsgTokenNotProvided) {
			t.Errorf("unexpected body: %s", w.Body.String())
		}
	})

	t.Run("rejects garbage token", func(t *testing.T) {
		mw, _, _, _ := setupAuthTest(t)
		handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("GET", "/api/users/me", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), MsgInvalidToken) {
			t.Errorf("unexpected body: %s", w.Body.String())
		}
	})

	t.Run("rejects expired token", func(t *testing.T) {
		mw, codec, user, _ := setupAuthTest(t)
		token := mustIssue(t, codec, user.ID.String(), 0)
		time.Sleep(1100 * time.Millisecond)

		handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("GET", "/api/users/me", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), MsgInvalidToken) {
			t.Errorf("unexpected body: %s", w.Body.String())
		}
	})

	t.Run("rejects token with non-UUID subject", func(t *testing.T) {
		mw, codec, _, _ := setupAuthTest(t)
		token := mustIssue(t, codec, "not-a-uuid", time.Minute)

		handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("GET", "/api/users/me", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), MsgInvalidToken) {
			t.Errorf("unexpected body: %s", w.Body.String())
		}
	})

	t.Run("rejects token for deleted user", func(t *testing.T) {
		mw, codec, _, _ := setupAuthTest(t)
		token := mustIssue(t, codec, uuid.NewString(), time.Minute)

		handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("GET", "/api/users/me", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), MsgUserNoLongerExist) {
			t.Errorf("unexpected body: %s", w.Body.String())
		}
	})

	t.Run("store failure maps to same 401", func(t *testing.T) {
		mw, codec, user, loader := setupAuthTest(t)
		loader.err = errors.New("connection refused")
		token := mustIssue(t, codec, user.ID.String(), time.Minute)

		handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("GET", "/api/users/me", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), MsgUserNoLongerExist) {
			t.Errorf("unexpected body: %s", w.Body.String())
		}
	})
}

func TestExtractToken(t *testing.T) {
	t.Run("empty request", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		if got := ExtractToken(req); got != "" {
			t.Errorf("expected empty token, got %q", got)
		}
	})

	t.Run("ignores malformed Authorization header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		if got := ExtractToken(req); got != "" {
			t.Errorf("expected empty token, got %q", got)
		}
	})

	t.Run("reads Bearer token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer abc123")
		if got := ExtractToken(req); got != "abc123" {
			t.Errorf("expected abc123, got %q", got)
		}
	})
}

func TestRequireRole(t *testing.T) {
	withUser := func(req *http.Request, user *storage.User) *http.Request {
		return req.WithContext(contextkeys.WithUser(req.Context(), user))
	}

	t.Run("allows listed role", func(t *testing.T) {
		admin := &storage.User{ID: uuid.New(), Username: "root", Role: storage.RoleAdmin}

		called := false
		handler := RequireRole(storage.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, withUser(httptest.NewRequest("POST", "/api/posts", nil), admin))

		if !called {
			t.Error("expected handler to be called")
		}
	})

	t.Run("allows any of several roles", func(t *testing.T) {
		reader := &storage.User{ID: uuid.New(), Username: "margot", Role: storage.RoleUser}

		called := false
		handler := RequireRole(storage.RoleAdmin, storage.RoleUser)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, withUser(httptest.NewRequest("POST", "/api/comments", nil), reader))

		if !called {
			t.Error("expected handler to be called")
		}
	})

	t.Run("rejects unlisted role", func(t *testing.T) {
		reader := &storage.User{ID: uuid.New(), Username: "margot", Role: storage.RoleUser}

		handler := RequireRole(storage.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, withUser(httptest.NewRequest("POST", "/api/posts", nil), reader))

		if w.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), MsgPermissionDenied) {
			t.Errorf("unexpected body: %s", w.Body.String())
		}
	})

	t.Run("rejects unauthenticated request", func(t *testing.T) {
		handler := RequireRole(storage.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("POST", "/api/posts", nil))

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), MsgNotAuthenticated) {
			t.Errorf("unexpected body: %s", w.Body.String())
		}
	})
}
