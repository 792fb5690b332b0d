package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wisbric/bridge/internal/config"
	"github.com/wisbric/bridge/internal/queue"
)

// StorageHealth reports the per-tier health map from the unified storage
// engine (C4's healthCheck()).
type StorageHealth func(r *http.Request) map[string]bool

// ConsumerHealth reports the degraded-health surface from the queue
// consumer (C7), when one is running in this process.
type ConsumerHealth func() queue.Health

// Server holds the ambient HTTP surface: health/readiness/metrics. Domain
// handlers, if any are ever added, mount on Router directly.
type Server struct {
	Router         *chi.Mux
	Logger         *slog.Logger
	Metrics        *prometheus.Registry
	storageHealth  StorageHealth
	consumerHealth ConsumerHealth
	startedAt      time.Time
}

// NewServer creates the ambient HTTP server. consumerHealth may be nil in
// API mode, where no queue consumer runs in this process.
func NewServer(cfg *config.Config, logger *slog.Logger, metricsReg *prometheus.Registry, storageHealth StorageHealth, consumerHealth ConsumerHealth) *Server {
	s := &Server{
		Router:         chi.NewRouter(),
		Logger:         logger,
		Metrics:        metricsReg,
		storageHealth:  storageHealth,
		consumerHealth: consumerHealth,
		startedAt:      time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET"},
		AllowedHeaders:   []string{"Accept", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.Router.Get("/healthz", s.handleHealthz)
	s.Router.Get("/readyz", s.handleReadyz)
	s.Router.Handle(cfg.MetricsPath, promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// handleHealthz reports liveness only: the process is up and serving.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyzResponse is the JSON shape returned by handleReadyz.
type readyzResponse struct {
	Status   string          `json:"status"`
	Uptime   string          `json:"uptime"`
	Storage  map[string]bool `json:"storage"`
	Consumer *consumerStatus `json:"consumer,omitempty"`
}

type consumerStatus struct {
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
}

// handleReadyz aggregates C4 tier health and, in worker mode, C7 consumer
// health. Only the durable tier (source of truth) failing is fatal to
// readiness; L1/L2 are best-effort per spec §4.2/§4.4.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	resp := readyzResponse{
		Status: "ready",
		Uptime: time.Since(s.startedAt).Truncate(time.Second).String(),
	}

	if s.storageHealth != nil {
		resp.Storage = s.storageHealth(r)
		for tier, healthy := range resp.Storage {
			if !healthy {
				s.Logger.Warn("readiness check: storage tier unhealthy", "tier", tier)
				resp.Status = "degraded"
			}
		}
	}

	if s.consumerHealth != nil {
		h := s.consumerHealth()
		resp.Consumer = &consumerStatus{State: string(h.State), ConsecutiveFailures: h.ConsecutiveFailures}
		if h.ConsecutiveFailures > 0 {
			resp.Status = "degraded"
		}
	}

	if !resp.Storage["postgres"] {
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "durable tier not ready")
		return
	}

	Respond(w, http.StatusOK, resp)
}
