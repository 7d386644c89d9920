package server

import (
	"context"
	"net"
	"net/http"
	"path"

	"github.com/gorilla/mux"
	"github.com/membergate/discourse-on-ghost/pkg/config"
	"github.com/membergate/discourse-on-ghost/pkg/httputil"
	"github.com/membergate/discourse-on-ghost/pkg/observability"
)

// Handlers carries the endpoint handlers the server mounts. MemberDeleted is
// optional; it is left unmounted when the delete action is "none".
type Handlers struct {
	SSO           http.HandlerFunc
	MemberUpdated http.HandlerFunc
	MemberDeleted http.HandlerFunc
	SyncTiers     http.HandlerFunc
	ClearCaches   http.HandlerFunc
}

// Server is the application's HTTP server.
type Server struct {
	cfg        config.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	logger     *observability.Logger
}

// New assembles the router and HTTP server. metrics may be nil, which also
// disables the /metrics endpoint.
func New(cfg *config.Config, handlers Handlers, logger *observability.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		cfg:    cfg.Server,
		router: mux.NewRouter(),
		logger: logger,
	}

	s.router.Use(requestLogging(logger, metrics))
	s.router.NotFoundHandler = requestLogging(logger, metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "Not Found")
	}))

	s.setupRoutes(cfg, handlers, metrics)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

func (s *Server) setupRoutes(cfg *config.Config, handlers Handlers, metrics *observability.Metrics) {
	base := s.router.PathPrefix(s.cfg.BasePath).Subrouter()

	base.HandleFunc("/sso", handlers.SSO).Methods(http.MethodGet)
	base.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteMessage(w, http.StatusOK, "Howdy!")
	}).Methods(http.MethodGet)

	base.HandleFunc("/admin/sync-tiers", handlers.SyncTiers).Methods(http.MethodGet)
	base.HandleFunc("/admin/clear-caches", handlers.ClearCaches).Methods(http.MethodGet)

	if cfg.Webhooks.Enabled {
		updatedRoute := path.Join("/hook", cfg.Webhooks.MemberUpdatedRoute)
		base.HandleFunc(updatedRoute, handlers.MemberUpdated).Methods(http.MethodPost)
		s.logger.WithField("route", path.Join(s.cfg.BasePath, updatedRoute)).Info("Mounted member updated webhook")

		if handlers.MemberDeleted != nil {
			deletedRoute := path.Join("/hook", cfg.Webhooks.MemberDeletedRoute)
			base.HandleFunc(deletedRoute, handlers.MemberDeleted).Methods(http.MethodPost)
			s.logger.WithField("route", path.Join(s.cfg.BasePath, deletedRoute)).Info("Mounted member deleted webhook")
		}
	}

	if metrics != nil {
		s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}
}

// Router exposes the assembled router, primarily for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
