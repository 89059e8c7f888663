package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the ambient HTTP server scaffolding: middleware stack,
// health/readiness/metrics endpoints, and an APIRouter domain handlers
// mount onto. Unlike the teacher's multi-tenant Server, there is no
// tenant/OIDC middleware here — spec §1 places authentication primitives
// out of scope, so request handlers receive an already-built
// model.Session (see internal/httpapi) rather than resolving one here.
type Server struct {
	Router    *chi.Mux
	APIRouter chi.Router // /api/v1 sub-router domain handlers mount onto
	Logger    *slog.Logger
	DB        *pgxpool.Pool
	Metrics   *prometheus.Registry
	startedAt time.Time
}

// NewServer creates an HTTP server with the ambient middleware stack and
// health/metrics endpoints mounted. corsOrigins configures the CORS
// middleware's allowed origins.
func NewServer(logger *slog.Logger, db *pgxpool.Pool, metricsReg *prometheus.Registry, corsOrigins []string) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		Logger:    logger,
		DB:        db,
		Metrics:   metricsReg,
		startedAt: time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.Router.Get("/healthz", s.handleHealthz)
	s.Router.Get("/readyz", s.handleReadyz)
	s.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	s.Router.Route("/api/v1", func(r chi.Router) {
		s.APIRouter = r
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.DB.Ping(ctx); err != nil {
		s.Logger.Error("readiness check: database ping failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "database not ready")
		return
	}

	Respond(w, http.StatusOK, map[string]string{"status": "ready"})
}
