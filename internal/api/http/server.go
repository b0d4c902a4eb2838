package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"placefinder/discoveryservice/internal/discover"
	"placefinder/discoveryservice/internal/domain"
	"placefinder/discoveryservice/internal/engine"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DiscoverService is the search lifecycle the API exposes.
type DiscoverService interface {
	Create(ctx context.Context, raw domain.RawQuery) (domain.SearchResponse, error)
	Continue(ctx context.Context, req discover.ContinueRequest) (domain.SearchResponse, error)
}

type Server struct {
	discover      DiscoverService
	providerCheck func() map[string]bool
	logger        *slog.Logger
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithProviderCheck adds per-stream-kind provider availability to the
// health payload.
func WithProviderCheck(check func() map[string]bool) ServerOption {
	return func(s *Server) {
		s.providerCheck = check
	}
}

func NewServer(discoverService DiscoverService, options ...ServerOption) *Server {
	server := &Server{
		discover: discoverService,
		logger:   slog.Default(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/discover/search/next", s.handleSearchNext)
	mux.HandleFunc("/discover/search", s.handleSearch)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "places-discovery",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(50, 100, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	}
	if s.providerCheck != nil {
		payload["provider"] = s.providerCheck()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/discover/search" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.discover == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "discover service is not configured")
		return
	}

	var raw domain.RawQuery
	if err := decodeJSONBody(r, &raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	response, err := s.discover.Create(r.Context(), raw)
	if err != nil {
		s.writeDiscoverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleSearchNext(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/discover/search/next" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.discover == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "discover service is not configured")
		return
	}

	var req discover.ContinueRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Cursor == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "cursor is required")
		return
	}

	response, err := s.discover.Continue(r.Context(), req)
	if err != nil {
		s.writeDiscoverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) writeDiscoverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Warn("discover request failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	switch {
	case errors.Is(err, engine.ErrInvalidLocation),
		errors.Is(err, engine.ErrInvalidRadius),
		errors.Is(err, engine.ErrNoSelector),
		errors.Is(err, engine.ErrNoStreams):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, discover.ErrCursorMismatch):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, discover.ErrCursorNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, discover.ErrCursorBusy):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", "request cancelled or timed out")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "search failed")
	}
}

func decodeJSONBody(r *http.Request, dest any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
