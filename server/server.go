// Package server is the HTTP boundary: one endpoint to post a message
// into a session, plus health and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	orchestratorx "github.com/bancoagil/agent/agent/agents/orchestrator"
	contractx "github.com/bancoagil/agent/agent/contract"
	ratelimitx "github.com/bancoagil/agent/pkg/ratelimit"
)

type Config struct {
	Addr            string        `envconfig:"ADDR" split_words:"true" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" split_words:"true" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" split_words:"true" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" split_words:"true" default:"15s"`

	RateLimit ratelimitx.Config `envconfig:"RATE_LIMIT"`
}

// TurnHandler handles one user message for a session.
type TurnHandler interface {
	HandleMessage(ctx context.Context, sessionID string, text string) (orchestratorx.TurnResult, error)
}

// HealthChecker reports backend reachability for /healthz.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	cfg     Config
	turns   TurnHandler
	health  HealthChecker
	limiter *ratelimitx.KeyedLimiter

	httpServer *http.Server
}

func New(cfg Config, turns TurnHandler, health HealthChecker) (*Server, error) {
	if turns == nil {
		return nil, errors.New("turn handler is required")
	}

	s := &Server{
		cfg:     cfg,
		turns:   turns,
		health:  health,
		limiter: ratelimitx.New(cfg.RateLimit),
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/v1/sessions/{sessionID}/messages", s.handleMessage)

	return r
}

// Run serves until the context is cancelled, then drains within the
// shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

type messageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Reply         string `json:"reply"`
	Handler       string `json:"handler"`
	Authenticated bool   `json:"authenticated"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "session id is required"})
		return
	}

	if !s.limiter.Allow(sessionID) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many messages, slow down"})
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}

	result, err := s.turns.HandleMessage(r.Context(), sessionID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, orchestratorx.ErrInvalidMessage), errors.Is(err, orchestratorx.ErrInvalidSession),
			errors.Is(err, contractx.ErrValidation):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		default:
			log.Error().Err(err).Str("session", sessionID).Msg("turn failed")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Reply:         result.Reply,
		Handler:       string(result.Handler),
		Authenticated: result.Authenticated,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "database unreachable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}
