package httputil

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/quillhq/quill/pkg/observability"
)

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RequestIDMiddleware assigns each request an ID, honoring one supplied
// by a proxy in X-Request-ID.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set("X-Request-ID", requestID)

		ctx := observability.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware attaches the logger to the request context and logs
// each request on completion. When tracing is active the completion line
// carries the trace and span IDs.
func LoggingMiddleware(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			ctx := observability.WithLogger(r.Context(), logger)
			next.ServeHTTP(rw, r.WithContext(ctx))

			reqLogger := observability.UpdateLoggerWithTraceContext(ctx, observability.FromContext(ctx))
			reqLogger.WithFields(map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rw.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote_addr": r.RemoteAddr,
			}).Info("request completed")
		})
	}
}

// RecoveryMiddleware recovers from handler panics and returns a 500
func RecoveryMiddleware(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithFields(map[string]interface{}{
						"panic": rec,
						"stack": string(debug.Stack()),
						"path":  r.URL.Path,
					}).Error("handler panicked")
					WriteServerError(w)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// ContentTypeMiddleware enforces JSON content type for mutating requests
func ContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			contentType := r.Header.Get("Content-Type")
			if contentType != "" && !hasJSONContentType(contentType) {
				WriteBadRequest(w, "Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func hasJSONContentType(contentType string) bool {
	// Allow parameters such as "application/json; charset=utf-8".
	const jsonType = "application/json"
	if len(contentType) < len(jsonType) {
		return false
	}
	return contentType[:len(jsonType)] == jsonType
}

// MaxBytesMiddleware limits the size of request bodies
func MaxBytesMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// Chain chains multiple middleware together
func Chain(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
