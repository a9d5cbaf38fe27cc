// Package api implements quill's HTTP surface. All routes live under
// /api and serve JSON.
//
// The Server wires six handler groups onto a gorilla/mux router:
//
//   - AuthHandlers: register, login, verify, forgot/reset password, refresh
//   - UserHandlers: profile, admin listing, credential updates, logout
//   - PostHandlers: post CRUD with pagination
//   - CommentHandlers: comment CRUD keyed by post
//   - NewsletterHandlers: subscribe/unsubscribe
//   - SearchHandlers: full-text post search
//
// Reads on posts, comments, search, and the newsletter endpoints are
// public. Everything else runs behind the access-token middleware from
// pkg/middleware; post writes additionally require the admin role.
//
// Every error body has the shape {"status":"fail","message":...}. The
// success bodies vary per endpoint and are defined in types.go.
package api
