// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
// Logging-related keys (request ID, logger) live in pkg/observability.
//
// USAGE PATTERN:
//
//	import "github.com/quillhq/quill/pkg/contextkeys"
//	ctx = contextkeys.WithUser(ctx, user)
//	user, ok := ctx.Value(contextkeys.UserKey).(*storage.User)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// UserKey contains the authenticated *storage.User
	// Set by: middleware.Auth (pkg/middleware/auth.go)
	// Required by: All protected API endpoints, role checks
	// Type: *storage.User
	UserKey Key = "current_user"
)

// WithUser adds the authenticated user to the context. The value is kept
// untyped here so this package stays dependency-free.
func WithUser(ctx context.Context, user interface{}) context.Context {
	return context.WithValue(ctx, UserKey, user)
}
