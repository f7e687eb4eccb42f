package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"cartographer/internal/api"
	"cartographer/internal/config"
	"cartographer/internal/logging"
	"cartographer/internal/services"
)

const apiPrefix = "/api/v1"

type apiServer struct {
	bind   string
	token  string
	cfg    *config.Config
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	return &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+apiPrefix+"/health", s.handleHealth)
	s.handle(mux, "POST "+apiPrefix+"/files/parse", s.handleParseFiles)
	s.handle(mux, "GET "+apiPrefix+"/files", s.handleListFiles)
	s.handle(mux, "DELETE "+apiPrefix+"/files/{id}", s.handleDeleteFile)
	s.handle(mux, "POST "+apiPrefix+"/analysis/pairs", s.handlePairs)
	s.handle(mux, "POST "+apiPrefix+"/estimate", s.handleEstimate)
	s.handle(mux, "POST "+apiPrefix+"/extraction/stream", s.handleExtractionStream)
	s.handle(mux, "GET "+apiPrefix+"/jobs", s.handleJobs)
	s.handle(mux, "GET "+apiPrefix+"/jobs/{id}", s.handleJob)
	return mux
}

func (s *apiServer) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, authMiddleware(s.token, h))
}

// start listens on the configured address. Request contexts derive from ctx,
// so cancelling it cancels every running extraction.
func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api bind address is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No read or write timeout: uploads can be large and a stream lasts
		// as long as its job.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api server shutdown incomplete", logging.Error(err))
		_ = server.Close()
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

// writeError reports err with the status and kind its marker maps to.
func (s *apiServer) writeError(w http.ResponseWriter, err error) {
	status := services.HTTPStatus(err)
	kind := services.Classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", logging.Error(err), logging.String(logging.FieldErrorKind, string(kind)))
	}
	s.writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Kind: string(kind)})
}

// decodeJSON reads a bounded JSON body into target. Malformed bodies are
// validation errors.
func (s *apiServer) decodeJSON(w http.ResponseWriter, r *http.Request, op string, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return services.Wrap(services.ErrValidation, "api", op, "invalid request body", err)
	}
	return nil
}
