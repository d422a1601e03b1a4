// Package service exposes the support workflow over HTTP: POST /chat
// runs a request through the pipeline, /health and /metrics serve
// operations, and a small session cache keeps recent results.
package service

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowline-dev/flowline"
	"github.com/flowline-dev/flowline/genai"
	"github.com/flowline-dev/flowline/store"
	"github.com/flowline-dev/flowline/support"
	"github.com/flowline-dev/flowline/tickets"
)

// Version is reported by /health and the root document.
const Version = "1.0.0"

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the reply to POST /chat.
type ChatResponse struct {
	Response         string `json:"response"`
	RequestID        string `json:"request_id"`
	SessionID        string `json:"session_id"`
	Escalated        bool   `json:"escalated"`
	Category         string `json:"category,omitempty"`
	Priority         string `json:"priority,omitempty"`
	ProcessingTimeMS int64  `json:"processing_time_ms"`
}

// HealthResponse is the reply to GET /health.
type HealthResponse struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Version       string    `json:"version"`
}

type serviceMetrics struct {
	requests    prometheus.Counter
	escalations prometheus.Counter
	errors      prometheus.Counter
}

func newServiceMetrics(reg prometheus.Registerer) serviceMetrics {
	m := serviceMetrics{
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "support", Name: "requests_total",
			Help: "Chat requests received.",
		}),
		escalations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "support", Name: "escalations_total",
			Help: "Chat requests escalated to a human agent.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "support", Name: "errors_total",
			Help: "Chat requests that failed with an internal error.",
		}),
	}
	reg.MustRegister(m.requests, m.escalations, m.errors)
	return m
}

// Server wires the workflow, its collaborators, and the HTTP surface.
type Server struct {
	workflow   *support.Workflow
	sessions   *store.Cache
	sessionTTL time.Duration
	registry   *prometheus.Registry
	metrics    serviceMetrics
	ticketSink tickets.Sink
	logger     *slog.Logger
	start      time.Time
}

// New builds a Server from configuration.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	engineMetrics := flowline.NewMetrics(registry)

	var client genai.Client
	if cfg.Generation.Enabled {
		opts := []genai.HTTPOption{}
		if cfg.Generation.Model != "" {
			opts = append(opts, genai.WithModel(cfg.Generation.Model))
		}
		if cfg.Generation.BaseURL != "" {
			opts = append(opts, genai.WithBaseURL(cfg.Generation.BaseURL))
		}
		if cfg.Generation.Timeout > 0 {
			opts = append(opts, genai.WithTimeout(cfg.Generation.Timeout.Std()))
		}
		client = genai.NewHTTPClient(cfg.resolveAPIKey(), opts...)
		logger.Info("generation collaborator enabled", "model", cfg.Generation.Model)
	}

	var sink tickets.Sink
	if cfg.Tickets.Path != "" {
		sqlSink, err := tickets.OpenSQLite(cfg.Tickets.Path)
		if err != nil {
			return nil, err
		}
		sink = sqlSink
		logger.Info("ticket sink opened", "path", cfg.Tickets.Path)
	} else {
		sink = tickets.NewMemorySink()
	}

	wfLogger := NewSlogLogger(logger)
	workflow, err := support.NewWorkflow(
		support.WithGenerationClient(client),
		support.WithTicketSink(sink),
		support.WithLogger(wfLogger),
		support.WithExecutorOptions(
			flowline.WithMiddleware(flowline.MetricsMiddleware[*support.State](engineMetrics)),
			flowline.WithStageMiddleware(flowline.StageMetricsMiddleware[*support.State](engineMetrics)),
		),
	)
	if err != nil {
		return nil, err
	}

	return &Server{
		workflow:   workflow,
		sessions:   store.NewCache(),
		sessionTTL: cfg.Sessions.TTL.Std(),
		registry:   registry,
		metrics:    newServiceMetrics(registry),
		ticketSink: sink,
		logger:     logger,
		start:      time.Now(),
	}, nil
}

// Close releases resources held by the server's collaborators.
func (s *Server) Close() error {
	if closer, ok := s.ticketSink.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Router assembles the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Post("/chat", s.handleChat)
	r.Get("/health", s.handleHealth)
	r.Get("/sessions/{id}", s.handleSession)
	r.Get("/schema", s.handleSchema)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Get("/", s.handleRoot)
	return r
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.metrics.requests.Inc()

	requestID := uuid.NewString()
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	s.logger.Info("chat request", "request_id", requestID, "user_id", req.UserID, "session_id", sessionID)

	start := time.Now()
	result, err := s.workflow.Process(r.Context(), requestID, req.Message)
	if err != nil {
		// Overruns and other engine faults are internal; the caller
		// gets no workflow-generated text for them.
		s.metrics.errors.Inc()
		var overrun *flowline.OverrunError
		if errors.As(err, &overrun) {
			s.logger.Error("workflow overrun", "request_id", requestID, "err", err)
		} else {
			s.logger.Error("workflow failed", "request_id", requestID, "err", err)
		}
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if result.Escalated {
		s.metrics.escalations.Inc()
	}

	resp := ChatResponse{
		Response:         result.Response,
		RequestID:        requestID,
		SessionID:        sessionID,
		Escalated:        result.Escalated,
		Category:         string(result.Category),
		Priority:         string(result.Priority),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}

	if s.sessionTTL > 0 {
		if err := s.sessions.PutWithTTL("session:"+sessionID, resp, s.sessionTTL); err != nil {
			s.logger.Warn("session cache write failed", "session_id", sessionID, "err", err)
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	resp, err := store.Get[ChatResponse](s.sessions, "session:"+id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "healthy",
		Timestamp:     time.Now().UTC(),
		UptimeSeconds: time.Since(s.start).Seconds(),
		Version:       Version,
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"chat_request":  store.SchemaOf(ChatRequest{}),
		"chat_response": store.SchemaOf(ChatResponse{}),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"service": "Support Workflow API",
		"version": Version,
		"status":  "running",
		"endpoints": map[string]string{
			"chat":    "/chat",
			"health":  "/health",
			"metrics": "/metrics",
			"schema":  "/schema",
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
