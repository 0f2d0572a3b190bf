// Package httpapi exposes the spawner's job operations to the external hub.
package httpapi

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/chris-x86-64/rootlessspawner/internal/api"
	"github.com/chris-x86-64/rootlessspawner/internal/metrics"
)

const (
	defaultAddr            = "127.0.0.1:8777"
	defaultReadHeader      = 5 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	jobsPrefix = "/api/v1/jobs/"
)

// Config controls construction of the API server.
type Config struct {
	Addr              string
	Manager           api.Manager
	Listener          net.Listener
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server wraps an http.Server exposing job controls.
type Server struct {
	mgr             api.Manager
	srv             *http.Server
	listener        net.Listener
	shutdownTimeout time.Duration
}

// NewServer constructs a Server with sane defaults.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Manager == nil {
		return nil, fmt.Errorf("manager is required")
	}
	addr := normalizeAddr(cfg.Addr)
	mux := http.NewServeMux()
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	if srv.ReadHeaderTimeout == 0 {
		srv.ReadHeaderTimeout = defaultReadHeader
	}
	server := &Server{
		mgr:             cfg.Manager,
		srv:             srv,
		listener:        cfg.Listener,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	if server.shutdownTimeout == 0 {
		server.shutdownTimeout = defaultShutdownTimeout
	}
	server.registerRoutes(mux)
	return server, nil
}

// Run starts serving until the provided context is cancelled.
func (s *Server) Run(ctx stdcontext.Context) error {
	if ctx == nil {
		ctx = stdcontext.Background()
	}
	errCh := make(chan error, 1)
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := stdcontext.WithTimeout(stdcontext.Background(), s.shutdownTimeout)
			defer cancel()
			_ = s.srv.Shutdown(shutdownCtx)
		case <-stop:
		}
	}()

	go func() {
		var err error
		if s.listener != nil {
			err = s.srv.Serve(s.listener)
		} else {
			err = s.srv.ListenAndServe()
		}
		errCh <- err
	}()

	err := <-errCh
	close(stop)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.srv.Addr
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc(jobsPrefix, s.handleJob)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", metrics.Handler())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	result, err := s.mgr.Status(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleJob dispatches /api/v1/jobs/{name}[/start|/stop]. A DELETE on the
// bare job path forgets its persisted state.
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, jobsPrefix)
	name, action, _ := strings.Cut(rest, "/")
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(action, "/") {
		s.writeErrorWithDetails(w, fmt.Errorf("%w: invalid job path", api.ErrInvalidJobName), map[string]any{"job": name})
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			report, err := s.mgr.JobStatus(r.Context(), name)
			if err != nil {
				s.writeErrorWithDetails(w, err, map[string]any{"job": name})
				return
			}
			s.writeJSON(w, http.StatusOK, report)
		case http.MethodDelete:
			if err := s.mgr.ClearJob(r.Context(), name); err != nil {
				s.writeErrorWithDetails(w, err, map[string]any{"job": name})
				return
			}
			s.writeJSON(w, http.StatusOK, map[string]any{"cleared": name})
		default:
			s.methodNotAllowed(w, http.MethodGet)
		}

	case "start":
		if r.Method != http.MethodPost {
			s.methodNotAllowed(w, http.MethodPost)
			return
		}
		var req api.StartRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorBody{Code: "invalid_body", Message: err.Error()})
			return
		}
		endpoint, err := s.mgr.StartJob(r.Context(), name, req)
		if err != nil {
			s.writeErrorWithDetails(w, err, map[string]any{"job": name})
			return
		}
		s.writeJSON(w, http.StatusOK, endpoint)

	case "stop":
		if r.Method != http.MethodPost {
			s.methodNotAllowed(w, http.MethodPost)
			return
		}
		var req api.StopRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorBody{Code: "invalid_body", Message: err.Error()})
			return
		}
		if err := s.mgr.StopJob(r.Context(), name, req); err != nil {
			s.writeErrorWithDetails(w, err, map[string]any{"job": name})
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"stopped": name})

	default:
		s.writeJSON(w, http.StatusNotFound, errorBody{
			Code:    "unknown_action",
			Message: fmt.Sprintf("unknown job action %q", action),
		})
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody tolerates an empty body so callers can POST without one.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, method string) {
	w.Header().Set("Allow", method)
	s.writeJSON(w, http.StatusMethodNotAllowed, errorBody{
		Code:    "method_not_allowed",
		Message: fmt.Sprintf("method %s not allowed", method),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeErrorWithDetails(w, err, nil)
}

func (s *Server) writeErrorWithDetails(w http.ResponseWriter, err error, extra map[string]any) {
	status, code := classifyError(err)
	details := map[string]any{
		"timestamp": time.Now().UTC(),
	}
	for k, v := range extra {
		details[k] = v
	}
	body := errorBody{
		Code:    code,
		Message: err.Error(),
		Details: details,
	}
	s.writeJSON(w, status, body)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, stdcontext.Canceled):
		return 499, "context_canceled"
	case errors.Is(err, api.ErrUnknownJob):
		return http.StatusNotFound, "unknown_job"
	case errors.Is(err, api.ErrInvalidJobName):
		return http.StatusBadRequest, "invalid_job_name"
	case errors.Is(err, api.ErrAlreadyRunning):
		return http.StatusConflict, "already_running"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func normalizeAddr(addr string) string {
	if strings.TrimSpace(addr) == "" {
		return defaultAddr
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		// If parsing failed, trust caller.
		return addr
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
