package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seolens/audit-relay/internal/config"
	"github.com/seolens/audit-relay/internal/dispatch"
	"github.com/seolens/audit-relay/internal/pagespeed"
	"github.com/seolens/audit-relay/internal/relay"
	"github.com/seolens/audit-relay/internal/telemetry"
)

// Analyzer relays a PageSpeed analysis request.
type Analyzer interface {
	Analyze(ctx context.Context, rawURL, strategy string) (*pagespeed.Result, error)
}

// ReportDispatcher fans a report out to recipients for a quota key.
type ReportDispatcher interface {
	Dispatch(ctx context.Context, key string, req dispatch.Request) (*dispatch.Response, error)
	MaxRecipients() int
}

// Server wires HTTP handlers to the relay services.
type Server struct {
	router     chi.Router
	analyzer   Analyzer
	dispatcher ReportDispatcher
	cfg        config.Config
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(analyzer Analyzer, dispatcher ReportDispatcher, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		analyzer:   analyzer,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(routeTimeout(cfg)))
	r.Use(telemetry.Middleware)
	r.Use(cors.Handler(corsOptions(cfg.Server.CORSOrigins)))
	r.Use(newIPLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst).middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/pagespeed/run", s.runPageSpeed)
		r.Post("/send-whatsapp-report", s.sendReport)
		r.Get("/audit-status", s.auditStatus)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// All state is in-memory; if the process answers, it is ready.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type pageSpeedRequest struct {
	URL      string `json:"url"`
	Strategy string `json:"strategy"`
}

func (s *Server) runPageSpeed(w http.ResponseWriter, r *http.Request) {
	var req pageSpeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), req.URL, req.Strategy)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"data":     json.RawMessage(result.Data),
		"strategy": result.Strategy,
		"url":      result.URL,
	})
}

type sendReportRequest struct {
	PhoneNumbers []string       `json:"phoneNumbers"`
	PhoneNumber  string         `json:"phoneNumber"`
	ReportData   map[string]any `json:"reportData"`
}

func (s *Server) sendReport(w http.ResponseWriter, r *http.Request) {
	var req sendReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	resp, err := s.dispatcher.Dispatch(r.Context(), clientIP(r), dispatch.Request{
		PhoneNumbers: req.PhoneNumbers,
		PhoneNumber:  req.PhoneNumber,
		Report:       req.ReportData,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"results":         resp.Results,
		"limit":           resp.Limit,
		"auditsRemaining": resp.Remaining,
	})
}

func (s *Server) auditStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"limits": map[string]int{
			"maxAuditsPerDay":           s.cfg.Quota.MaxAuditsPerDay,
			"maxPhoneNumbersPerRequest": s.dispatcher.MaxRecipients(),
		},
	})
}

// writeServiceError maps a service failure to its HTTP response. Internal
// detail is only echoed in development mode.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var relErr *relay.Error
	if errors.As(err, &relErr) {
		body := map[string]any{"success": false, "message": relErr.Message}
		if s.cfg.Logging.Development && relErr.Err != nil {
			body["detail"] = relErr.Err.Error()
		}
		writeJSON(w, relErr.Status, body)
		return
	}
	s.logger.Error("unclassified service error", zap.Error(err))
	msg := "internal server error"
	if s.cfg.Logging.Development {
		msg = err.Error()
	}
	writeError(w, http.StatusInternalServerError, msg)
}

// clientIP is the quota and rate-limit key: first X-Forwarded-For hop when
// present, else the connection's remote host.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// routeTimeout bounds a whole request. The PageSpeed relay is synchronous,
// so it must exceed the full upstream retry budget (every attempt plus the
// backoff between them) or a slow-but-valid relay would be cut off mid-retry
// before its proper success or 503 response.
func routeTimeout(cfg config.Config) time.Duration {
	attempts := cfg.PageSpeed.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	budget := time.Duration(attempts) * cfg.PageSpeedTimeout()
	backoff := cfg.PageSpeedBackoffBase()
	for i := 1; i < attempts; i++ {
		budget += backoff
		backoff *= 2
	}
	return budget + 5*time.Second
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"success":false,"message":"request timed out"}`)
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}
