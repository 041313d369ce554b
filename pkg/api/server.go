package api

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/testsabirweb/chatsim/pkg/chat"
	"github.com/testsabirweb/chatsim/pkg/metrics"
)

// Pinger reports whether the text-generation service is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options holds the server's dependencies
type Options struct {
	Session   *chat.Session
	Hub       *chat.Hub
	Generator Pinger
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	RateRPS   float64
	RateBurst int
}

// Server represents the API server
type Server struct {
	session   *chat.Session
	hub       *chat.Hub
	generator Pinger
	metrics   *metrics.Metrics
	logger    *zap.Logger
	limiter   *limiterPool
}

// NewServer creates a new API server instance
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		session:   opts.Session,
		hub:       opts.Hub,
		generator: opts.Generator,
		metrics:   opts.Metrics,
		logger:    logger,
		limiter:   newLimiterPool(opts.RateRPS, opts.RateBurst),
	}
}

// Router returns the HTTP handler for the server
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	if s.hub != nil {
		r.HandleFunc("/ws", s.hub.ServeWS)
	}

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(s.rateLimit)
	s.registerSession(v1)
	s.registerConversations(v1)
	s.registerMessages(v1)
	s.registerExtras(v1)

	return s.withMiddleware(r)
}

// withMiddleware wraps the handler with common middleware
func (s *Server) withMiddleware(h http.Handler) http.Handler {
	return s.logRequests(cors(h))
}

func cors(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Client-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes the websocket upgrade through to the underlying writer
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)
		s.logger.Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

// handleHealth returns the health status of the server
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"status":  "healthy",
		"service": "chatsim",
		"ollama":  "unknown",
	}

	if s.generator != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.generator.Ping(ctx); err != nil {
			response["status"] = "degraded"
			response["ollama"] = "unreachable"
		} else {
			response["ollama"] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, response)
}
