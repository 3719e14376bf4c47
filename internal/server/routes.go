package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"folios/internal/handlers"
	"folios/internal/middlewares"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	r.Use(middlewares.CorsMiddleware(s.cfg.AllowedOrigins))
	r.Use(s.metrics.Instrument)

	ch := handlers.NewCommonHandler(s.db)
	r.Handle("/", s.limiter.Limit(http.HandlerFunc(ch.HelloWorldHandler)))
	r.Handle("/health", s.limiter.Limit(http.HandlerFunc(ch.HealthHandler)))
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	s.registerBookmarkRoutes(r)
	s.registerAuthRoutes(r)

	return r
}

func (s *Server) registerBookmarkRoutes(r *mux.Router) {
	bh := handlers.NewBookmarksHandler(s.bookmarkService)
	fh := handlers.NewFeedHandler(s.bookmarkService, s.cfg.FeedHeartbeat)

	r.Handle("/api/bookmarks", s.authenticated(http.HandlerFunc(bh.GetBookmarks))).Methods("GET", "OPTIONS")
	r.Handle("/api/bookmarks", s.authenticated(http.HandlerFunc(bh.AddBookmark))).Methods("POST", "OPTIONS")
	r.Handle("/api/bookmarks/events", s.authenticated(http.HandlerFunc(fh.StreamChanges))).Methods("GET", "OPTIONS")
	r.Handle("/api/bookmarks/{id}", s.authenticated(http.HandlerFunc(bh.DeleteBookmark))).Methods("DELETE", "OPTIONS")
}

func (s *Server) registerAuthRoutes(r *mux.Router) {
	uh := handlers.NewUserHandler(s.userService)
	ah := handlers.NewAuthHandler(s.authService, s.cfg)
	public := s.limiter.Limit

	r.Handle("/api/me", s.authenticated(http.HandlerFunc(uh.GetMyProfile))).Methods("GET", "OPTIONS")

	r.Handle("/api/auth/logout", public(http.HandlerFunc(ah.Logout))).Methods("POST", "OPTIONS")
	r.Handle("/api/auth/success", public(http.HandlerFunc(ah.AuthSuccess))).Methods("GET", "OPTIONS")
	r.Handle("/api/auth/error", public(http.HandlerFunc(ah.AuthError))).Methods("GET", "OPTIONS")
	r.Handle("/api/auth/{provider}", public(http.HandlerFunc(ah.ProviderAuth))).Methods("GET", "OPTIONS")
	r.Handle("/api/auth/{provider}/callback", public(http.HandlerFunc(ah.ProviderCallback))).Methods("GET", "OPTIONS")
}

// authenticated resolves the session before rate limiting so that signed-in
// users get their own bucket instead of sharing one per IP.
func (s *Server) authenticated(h http.Handler) http.Handler {
	return middlewares.AuthMiddleware(s.auth)(s.limiter.Limit(h))
}
