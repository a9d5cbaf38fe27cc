// Package middleware provides HTTP middleware for authentication and authorization.
//
// # Overview
//
// This package implements request processing middleware: access-token
// authentication backed by the user store, and role checks layered on top
// of it. Request-scoped concerns such as logging and request IDs live in
// pkg/httputil.
//
// # Middleware Components
//
// Auth: access-token authentication
//
//	authMW := middleware.NewAuth(codec, userStore)
//	protected.Use(authMW.Handler)
//	// Reads the access_token cookie, then Authorization: Bearer.
//	// Verifies the token, loads the user, stores it in the context.
//
// RequireRole: role-based access control, must run after Auth
//
//	adminOnly.Use(middleware.RequireRole(storage.RoleAdmin))
//
// Handlers reach the authenticated user through CurrentUser:
//
//	user := middleware.CurrentUser(r)
//	if user == nil {
//		httputil.WriteUnauthorized(w, middleware.MsgNotAuthenticated)
//		return
//	}
//
// # Failure Modes
//
// Authentication failures return 401 with one of the fixed messages
// (missing token, invalid or expired token, deleted account). Role check
// failures return 403. The bodies use the shared error shape from
// pkg/httputil.
package middleware
