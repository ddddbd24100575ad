package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/loan-assistant/agent/agents/orchestrator"
	"github.com/tanpawarit/loan-assistant/agent/underwriting"
)

const (
	maxRequestBytes = 64 << 10
	msgUnavailable  = "Sorry, I'm having trouble right now. Please try again in a moment."
)

// Chatter runs one dialogue turn.
type Chatter interface {
	HandleTurn(ctx context.Context, sessionID string, message string) (orchestrator.TurnResult, error)
}

type Option func(*Server)

// WithDocumentDir enables GET /documents/{name} from dir.
func WithDocumentDir(dir string) Option {
	return func(s *Server) {
		s.documentDir = strings.TrimSpace(dir)
	}
}

// WithGatherer enables GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithHealthCheck makes GET /healthz report 503 when check fails.
func WithHealthCheck(check func(ctx context.Context) error) Option {
	return func(s *Server) {
		s.healthCheck = check
	}
}

type Server struct {
	chat        Chatter
	documentDir string
	gatherer    prometheus.Gatherer
	healthCheck func(ctx context.Context) error
}

func New(chat Chatter, opts ...Option) *Server {
	s := &Server{chat: chat}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/chat", s.handleChat)
	if s.documentDir != "" {
		r.Get("/documents/{name}", s.handleDocument)
	}
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Reply       string                `json:"reply"`
	SessionID   string                `json:"session_id"`
	File        string                `json:"file,omitempty"`
	LastReason  string                `json:"last_reason,omitempty"`
	LastDetails *underwriting.Details `json:"last_details,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Reply string `json:"reply,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req chatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	res, err := s.chat.HandleTurn(ctx, req.SessionID, req.Message)
	if errors.Is(err, orchestrator.ErrInvalidMessage) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		log.Error().Err(err).
			Str("session_id", req.SessionID).
			Str("request_id", middleware.GetReqID(ctx)).
			Msg("chat turn failed")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service unavailable", Reply: msgUnavailable})
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Reply:       res.Reply,
		SessionID:   res.SessionID,
		File:        res.File,
		LastReason:  res.LastReason,
		LastDetails: res.LastDetails,
	})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	name, ok := documentName(chi.URLParam(r, "name"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(s.documentDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeFile(w, r, path)
}

// documentName accepts a bare PDF file name and nothing that could leave the
// document directory.
func documentName(raw string) (string, bool) {
	name := strings.TrimSpace(raw)
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", false
	}
	if strings.ContainsAny(name, `/\`) || !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return "", false
	}
	return name, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.healthCheck != nil {
		if err := s.healthCheck(r.Context()); err != nil {
			log.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
