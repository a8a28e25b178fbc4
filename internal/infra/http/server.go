package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"wallet-billing/internal/infra/redis"
)

// Server exposes the ops surface: liveness, readiness and Prometheus
// metrics. The billing engine itself is driven by the scheduler and by
// callers of the use-case layer, not by this listener.
type Server struct {
	pool   *pgxpool.Pool
	cache  redis.RedisClient
	log    *zerolog.Logger
	server *http.Server
}

func NewServer(port int, pool *pgxpool.Pool, cache redis.RedisClient, logger *zerolog.Logger) *Server {
	srvLog := logger.With().Str("component", "OpsServer").Logger()
	s := &Server{pool: pool, cache: cache, log: &srvLog}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("ops server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady answers 200 only when both backing stores respond.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.pool.Ping(ctx); err != nil {
		s.log.Warn().Err(err).Msg("readiness: postgres unreachable")
		http.Error(w, "postgres unreachable", http.StatusServiceUnavailable)
		return
	}
	if err := s.cache.Ping(ctx); err != nil {
		s.log.Warn().Err(err).Msg("readiness: redis unreachable")
		http.Error(w, "redis unreachable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
