// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, the shared
// error body, parameter parsing, and common HTTP middleware.
//
// # Response Helpers
//
// Every error leaving the API has the same shape:
//
//	{"status": "fail", "message": "..."}
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteNoContent(w)
//
// Error responses:
//
//	httputil.WriteBadRequest(w, "Invalid input")
//	httputil.WriteUnauthorized(w, "Token is invalid or expired")
//	httputil.WriteForbidden(w, "You are not allowed to perform this action")
//	httputil.WriteServerError(w) // generic body, cause logged server-side
//
// # Request Parsing
//
// JSON parsing:
//
//	var req loginRequest
//	if err := httputil.ParseJSON(r, &req); err != nil {
//		httputil.WriteBadRequest(w, err.Error())
//		return
//	}
//
// Path and query parameters:
//
//	id, err := httputil.ParsePathInt64(r, "post_id")
//	page, limit, err := httputil.ParsePagination(r, 50)
//	sort := httputil.ParseQueryString(r, "sort", "created_at_desc")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Related Packages
//
//   - pkg/middleware: Authentication and authorization middleware
package httputil
