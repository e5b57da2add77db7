package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	ballotaudit "agora/contexts/governance/ballot-audit-service"
	ballotengine "agora/contexts/governance/ballot-engine"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "agora/internal/platform/httpserver/docs"
)

type Server struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	addr     string
	ballots  ballotengine.Module
	audit    ballotaudit.Module
	registry *prometheus.Registry
	metrics  *serverMetrics
}

func New(
	ballots ballotengine.Module,
	auditModule ballotaudit.Module,
	registry *prometheus.Registry,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger,
		addr:     addr,
		ballots:  ballots,
		audit:    auditModule,
		registry: registry,
		metrics:  initServerMetrics(registry),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	if s.registry != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	s.route("POST /v1/ballots", s.handleCreateBallot)
	s.route("GET /v1/ballots", s.handleListBallots)
	s.route("GET /v1/ballots/{ballot_id}", s.handleGetBallot)
	s.route("GET /v1/ballots/{ballot_id}/results", s.handleBallotResults)
	s.route("GET /v1/ballots/{ballot_id}/voters/{address}", s.handleGetVoter)
	s.route("POST /v1/ballots/{ballot_id}/rights", s.handleGrantRight)
	s.route("POST /v1/ballots/{ballot_id}/delegate", s.handleDelegateVote)
	s.route("POST /v1/ballots/{ballot_id}/votes", s.handleCastVote)
	s.route("POST /v1/ballots/{ballot_id}/close", s.handleCloseBallot)

	s.route("GET /v1/audit/ballots/{ballot_id}", s.handleAuditBallotActivity)
	s.route("GET /v1/audit/summary", s.handleAuditSummary)
}

// route registers a handler and, when metrics are enabled, counts every
// response under the registered pattern.
func (s *Server) route(pattern string, handler http.HandlerFunc) {
	if s.metrics == nil {
		s.mux.HandleFunc(pattern, handler)
		return
	}
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(recorder, r)
		s.metrics.requestsTotal.WithLabelValues(pattern, strconv.Itoa(recorder.status)).Inc()
	})
}

type serverMetrics struct {
	requestsTotal *prometheus.CounterVec
}

func initServerMetrics(registry *prometheus.Registry) *serverMetrics {
	if registry == nil {
		return nil
	}
	factory := promauto.With(registry)
	return &serverMetrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agora_http_requests_total",
			Help: "HTTP responses served, labelled by route pattern and status code.",
		}, []string{"route", "status"}),
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
