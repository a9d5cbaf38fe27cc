package api

import (
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/quillhq/quill/pkg/auth"
	"github.com/quillhq/quill/pkg/httputil"
	"github.com/quillhq/quill/pkg/middleware"
	"github.com/quillhq/quill/pkg/observability"
	"github.com/quillhq/quill/pkg/storage"
)

// maxBodyBytes caps request bodies; every payload is a small JSON
// document.
const maxBodyBytes = 1 << 20

// Config carries the dependencies for a Server.
type Config struct {
	Auth       *auth.Service
	Codec      *auth.TokenCodec
	Users      storage.UserStore
	Posts      storage.PostStore
	Comments   storage.CommentStore
	Newsletter storage.NewsletterStore

	Logger  *observability.Logger
	Metrics *observability.Metrics

	// FrontendURL is where the verify endpoint redirects after
	// consuming a token.
	FrontendURL string
}

// Server is quill's HTTP API. It owns the router, the handler groups,
// and the ambient middleware chain; callers mount it as an http.Handler.
type Server struct {
	router  *mux.Router
	handler http.Handler
	logger  *observability.Logger

	authMW             *middleware.Auth
	authHandlers       *AuthHandlers
	userHandlers       *UserHandlers
	postHandlers       *PostHandlers
	commentHandlers    *CommentHandlers
	newsletterHandlers *NewsletterHandlers
	searchHandlers     *SearchHandlers
}

// NewServer wires the handler groups and the /api route table.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNopMetrics()
	}

	authMW := middleware.NewAuth(cfg.Codec, cfg.Users)
	s := &Server{
		router:             mux.NewRouter(),
		logger:             cfg.Logger,
		authMW:             authMW,
		authHandlers:       NewAuthHandlers(cfg.Auth, cfg.FrontendURL),
		userHandlers:       NewUserHandlers(cfg.Auth, cfg.Users, cfg.Posts, cfg.Comments, authMW),
		postHandlers:       NewPostHandlers(cfg.Posts, authMW),
		commentHandlers:    NewCommentHandlers(cfg.Comments, authMW),
		newsletterHandlers: NewNewsletterHandlers(cfg.Newsletter),
		searchHandlers:     NewSearchHandlers(cfg.Posts),
	}
	s.setupRoutes(cfg.Metrics)

	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(cfg.Logger),
		httputil.RecoveryMiddleware(cfg.Logger),
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(maxBodyBytes),
	)(s.router)

	return s
}

// RouteRegistrar is implemented by handler groups that attach routes to
// a router.
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// setupRoutes configures the /api route table. Request metrics are
// labeled with the matched route template, so the middleware runs
// inside the subrouter.
func (s *Server) setupRoutes(metrics *observability.Metrics) {
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(observability.HTTPMetricsMiddleware(metrics))

	for _, h := range []RouteRegistrar{
		s.authHandlers,
		s.userHandlers,
		s.postHandlers,
		s.commentHandlers,
		s.newsletterHandlers,
		s.searchHandlers,
	} {
		h.RegisterRoutes(api)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the underlying mux so callers can attach extra routes
// before serving.
func (s *Server) Router() *mux.Router {
	return s.router
}

// protect wraps a handler with authentication and, when roles are
// given, a role gate.
func protect(authMW *middleware.Auth, fn http.HandlerFunc, roles ...storage.Role) http.Handler {
	var h http.Handler = fn
	if len(roles) > 0 {
		h = middleware.RequireRole(roles...)(h)
	}
	return authMW.Handler(h)
}

// clientIP picks the originating address for the login limiter,
// trusting proxy headers before the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
