// Package api provides the HTTP API server and handlers for the Gatherly server.
//
// The surface splits in two: a public, unauthenticated guest surface
// (resolve a link by slug, register, check registration, update RSVP) and an
// admin surface protected by a static API key (link lifecycle, grants,
// guest lists, live events).
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/gatherlyapp/gatherly-server/internal/config"
	"github.com/gatherlyapp/gatherly-server/internal/notify"
	"github.com/gatherlyapp/gatherly-server/internal/ratelimit"
	"github.com/gatherlyapp/gatherly-server/internal/service"
	"github.com/gatherlyapp/gatherly-server/internal/store"
)

// Services groups the service dependencies of the API server.
type Services struct {
	Link      *service.LinkService
	Admission *service.AdmissionService
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store         store.Store
	services      *Services
	eventsManager *notify.Manager
	eventsHandler *notify.Handler
	router        *chi.Mux
	api           huma.API
	logger        *slog.Logger
	rateLimiter   *ratelimit.KeyedRateLimiter
	adminKey      string
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(cfg *config.Config, st store.Store, services *Services, eventsManager *notify.Manager, logger *slog.Logger) *Server {
	s := &Server{
		store:         st,
		services:      services,
		eventsManager: eventsManager,
		router:        chi.NewRouter(),
		logger:        logger,
		rateLimiter:   ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		adminKey:      cfg.Admin.APIKey,
	}

	if eventsManager != nil {
		s.eventsHandler = notify.NewHandler(eventsManager, logger)
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Gatherly API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"adminKey": {
			Type: "apiKey",
			In:   "header",
			Name: "X-Admin-Key",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerAdmissionRoutes()
	s.registerLinkRoutes()
	s.registerEventRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases server-owned resources.
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

// setupMiddleware configures the middleware stack. Order matters: client
// info must be captured before rate limiting so both see the real IP.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// The guest surface is hit straight from browsers on shared links.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Admin-Key"},
		MaxAge:         300,
	}))

	s.router.Use(clientInfoMiddleware)
	s.router.Use(RateLimitMiddleware(s.rateLimiter, s.logger))
}

// registerEventRoutes wires the SSE stream. It stays outside huma because
// the response is a long-lived event stream, not a JSON body.
func (s *Server) registerEventRoutes() {
	if s.eventsHandler == nil {
		return
	}
	s.router.Get("/api/v1/admin/links/{id}/events", s.handleLinkEvents)
}

// handleLinkEvents streams link events to an admin dashboard. EventSource
// cannot set headers, so the key is also accepted as a query parameter.
func (s *Server) handleLinkEvents(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("X-Admin-Key")
	if key == "" {
		key = r.URL.Query().Get("key")
	}
	if err := s.requireAdmin(key); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	linkID := chi.URLParam(r, "id")
	if _, err := s.services.Link.GetLink(r.Context(), linkID); err != nil {
		http.Error(w, "link not found", http.StatusNotFound)
		return
	}

	s.eventsHandler.Serve(w, r, linkID)
}
