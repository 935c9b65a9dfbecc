// Package httpapi exposes the run intake over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"quizsolver/application/dispatch"
	"quizsolver/domain/entities"
	"quizsolver/infrastructure/metrics"

	"github.com/sirupsen/logrus"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second

	detailBadRequest    = "Invalid JSON or missing fields"
	detailInvalidSecret = "Invalid secret"
	detailUnavailable   = "Server is shutting down"
)

// Dispatcher starts a run in the background
type Dispatcher interface {
	Dispatch(req entities.RunRequest) (string, error)
}

// Server serves the intake endpoint, health and metrics
type Server struct {
	dispatcher Dispatcher
	logger     *logrus.Logger
	http       *http.Server
}

// NewServer - creates server listening on addr
func NewServer(addr string, dispatcher Dispatcher, logger *logrus.Logger) *Server {
	s := &Server{dispatcher: dispatcher, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /{$}", s.handleRun)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.logRequests(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run - serves until ctx is canceled, then shuts the listener down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.http.Addr).Info("HTTP intake listening")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Stopping HTTP intake")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type runRequest struct {
	Email  *string `json:"email"`
	Secret *string `json:"secret"`
	URL    *string `json:"url"`
}

type runResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var body runRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.WithError(err).Debug("Rejected malformed run request")
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: detailBadRequest})
		return
	}

	req, ok := body.validate()
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: detailBadRequest})
		return
	}

	id, err := s.dispatcher.Dispatch(req)
	switch {
	case errors.Is(err, entities.ErrInvalidSecret):
		s.logger.WithField("email", req.Email).Warn("Rejected run request with invalid secret")
		writeJSON(w, http.StatusForbidden, errorResponse{Detail: detailInvalidSecret})
	case errors.Is(err, dispatch.ErrShuttingDown):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Detail: detailUnavailable})
	case err != nil:
		s.logger.WithError(err).Error("Failed to dispatch run")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
	default:
		writeJSON(w, http.StatusOK, runResponse{
			Status:    "received",
			Message:   "Solver running",
			SessionID: id,
		})
	}
}

// validate - every field present, a bare email address and an absolute http(s) URL
func (b runRequest) validate() (entities.RunRequest, bool) {
	if b.Email == nil || b.Secret == nil || b.URL == nil {
		return entities.RunRequest{}, false
	}

	email := strings.TrimSpace(*b.Email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return entities.RunRequest{}, false
	}

	u, err := url.Parse(strings.TrimSpace(*b.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return entities.RunRequest{}, false
	}

	return entities.RunRequest{
		Email:    email,
		Secret:   *b.Secret,
		StartURL: u.String(),
	}, true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"remote":   r.RemoteAddr,
			"duration": time.Since(started),
		}).Debug("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
