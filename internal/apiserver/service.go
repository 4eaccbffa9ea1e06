package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/config"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/metrics"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/tools"
	"golang.org/x/sync/errgroup"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// ToolRunner executes tools by name. Call never fails; failures are carried
// in the result.
type ToolRunner interface {
	Call(ctx context.Context, name string, arguments json.RawMessage) tools.Result
	Tools() []tools.Tool
}

type Service struct {
	cfg              config.ServerConfig
	logger           *slog.Logger
	runner           ToolRunner
	metrics          *metrics.Metrics
	allowAllOrigins  bool
	allowedOriginSet map[string]struct{}
}

func New(cfg config.ServerConfig, runner ToolRunner, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	allowAllOrigins := false
	allowedOriginSet := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			allowAllOrigins = true
			continue
		}
		allowedOriginSet[trimmed] = struct{}{}
	}
	return &Service{
		cfg:              cfg,
		logger:           logger,
		runner:           runner,
		metrics:          m,
		allowAllOrigins:  allowAllOrigins,
		allowedOriginSet: allowedOriginSet,
	}
}

func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/healthz", s.instrument("/healthz", http.HandlerFunc(s.handleHealth)))
	mux.Handle("/v1/tools", s.instrument("/v1/tools", http.HandlerFunc(s.handleListTools)))
	mux.Handle("/v1/tools/", s.instrument("/v1/tools/{name}", http.HandlerFunc(s.handleToolCall)))
	mux.Handle("/ws", http.HandlerFunc(s.handleWebsocket))
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return s.withCORS(mux)
}

func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("tools-server started",
			"listen_addr", s.cfg.ListenAddr,
			"allowed_origins", strings.Join(s.cfg.AllowedOrigins, ","),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("tools-server stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown tools-server: %w", err)
		}
		return nil
	})
	return g.Wait()
}

type healthResponse struct {
	OK bool `json:"ok"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type toolListResponse struct {
	Tools []tools.Tool `json:"tools"`
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	s.respondJSON(w, http.StatusOK, healthResponse{OK: true})
}

func (s *Service) handleListTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	s.respondJSON(w, http.StatusOK, toolListResponse{Tools: s.runner.Tools()})
}

func (s *Service) handleToolCall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondMethodNotAllowed(w)
		return
	}
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/tools/"), "/")
	if name == "" || strings.Contains(name, "/") {
		s.respondError(w, http.StatusNotFound, "tool name is required")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > maxBodyBytes {
		s.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	result := s.runner.Call(r.Context(), name, json.RawMessage(body))
	s.respondJSON(w, statusForResult(result), result)
}

func statusForResult(result tools.Result) int {
	if result.Error == nil {
		return http.StatusOK
	}
	switch result.Error.Code {
	case tools.CodeValidation:
		return http.StatusBadRequest
	case tools.CodeNotFound:
		return http.StatusNotFound
	case tools.CodePositionNotFound:
		return http.StatusConflict
	case tools.CodeSubmission:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if !s.isOriginAllowed(r) {
			s.respondError(w, http.StatusForbidden, "origin not allowed")
			return
		}
		if origin != "" {
			if s.allowAllOrigins {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "300")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// isOriginAllowed admits requests without an Origin header (non-browser
// clients), same-origin requests, and the configured origins. "*" admits all.
func (s *Service) isOriginAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" || s.allowAllOrigins {
		return true
	}
	if _, ok := s.allowedOriginSet[origin]; ok {
		return true
	}
	parsed, err := url.Parse(origin)
	return err == nil && parsed.Host != "" && strings.EqualFold(parsed.Host, r.Host)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Service) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.ObserveHTTPRequest(route, rec.status)
	})
}

func (s *Service) respondMethodNotAllowed(w http.ResponseWriter) {
	s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (s *Service) respondError(w http.ResponseWriter, code int, message string) {
	s.respondJSON(w, code, errorResponse{Error: message})
}

func (s *Service) respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to write JSON response", "err", err)
	}
}
