package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/monitoring"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/storage"
)

// maxBodyBytes bounds a request body; candle series are the bulk of it
const maxBodyBytes = 64 << 20

type contextKey string

const requestIDKey contextKey = "request_id"

// RunReader lists and fetches stored runs
type RunReader interface {
	GetRun(ctx context.Context, id string) (*storage.Run, bool, error)
	ListRuns(ctx context.Context, filter storage.RunFilter) ([]storage.Run, error)
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns settings for addr with generous write timeouts,
// since optimize and walk_forward requests run the whole search inline
func DefaultServerConfig(addr string) ServerConfig {
	return ServerConfig{
		Addr:         addr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}

// Server exposes the dispatcher over HTTP
type Server struct {
	router     *mux.Router
	server     *http.Server
	dispatcher *Dispatcher
	runs       RunReader
	health     *monitoring.HealthChecker
	config     ServerConfig
}

// NewServer wires routes. runs may be nil when persistence is disabled.
func NewServer(config ServerConfig, dispatcher *Dispatcher, runs RunReader, health *monitoring.HealthChecker) *Server {
	if health == nil {
		health = monitoring.NewHealthChecker()
	}
	s := &Server{
		router:     mux.NewRouter(),
		dispatcher: dispatcher,
		runs:       runs,
		health:     health,
		config:     config,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)

	s.router.Handle("/healthz", s.health).Methods(http.MethodGet)
	s.router.Handle("/metrics", monitoring.NewMetricsHandler()).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/runs", s.listRuns).Methods(http.MethodGet)
	v1.HandleFunc("/runs/{id}", s.getRun).Methods(http.MethodGet)
	v1.HandleFunc("/engine", s.engine).Methods(http.MethodPost)
	v1.HandleFunc("/{command}", s.command).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, failure(http.StatusNotFound, "Not found: %s", r.URL.Path))
	})
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.config.Addr).Msg("HTTP server listening")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("shutting down HTTP server")
		return s.server.Shutdown(shutdownCtx)
	}
}

// command handles POST /v1/{command} with the command data as the body
func (s *Server) command(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeResponse(w, failure(http.StatusBadRequest, "Invalid JSON input: %v", err))
		return
	}
	if !json.Valid(body) {
		writeResponse(w, failure(http.StatusBadRequest, "Invalid JSON input: malformed body"))
		return
	}
	req := Request{Command: mux.Vars(r)["command"], Data: body}
	writeResponse(w, s.dispatcher.Dispatch(r.Context(), req))
}

// engine handles POST /v1/engine with a full command envelope as the body
func (s *Server) engine(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeResponse(w, failure(http.StatusBadRequest, "Invalid JSON input: %v", err))
		return
	}
	writeResponse(w, s.dispatcher.Handle(r.Context(), body))
}

// runView is a stored run with its payload inlined
type runView struct {
	storage.Run
	Payload json.RawMessage `json:"payload"`
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeResponse(w, failure(http.StatusNotFound, "run storage is disabled"))
		return
	}

	query := r.URL.Query()
	filter := storage.RunFilter{
		Kind:   query.Get("kind"),
		Symbol: query.Get("symbol"),
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeResponse(w, failure(http.StatusBadRequest, "invalid limit: %q", raw))
			return
		}
		filter.Limit = limit
	}

	runs, err := s.runs.ListRuns(r.Context(), filter)
	if err != nil {
		writeResponse(w, failure(http.StatusInternalServerError, "%v", err))
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	writeResponse(w, Response{Success: true, Data: runs})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeResponse(w, failure(http.StatusNotFound, "run storage is disabled"))
		return
	}

	id := mux.Vars(r)["id"]
	run, ok, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		writeResponse(w, failure(http.StatusInternalServerError, "%v", err))
		return
	}
	if !ok {
		writeResponse(w, failure(http.StatusNotFound, "run not found: %s", id))
		return
	}
	writeResponse(w, Response{Success: true, Data: runView{Run: *run, Payload: json.RawMessage(run.Payload)}})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

func writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode())
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

// requestIDMiddleware tags each request with an ID, reusing the caller's
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		s.health.RecordRequest()
		requestID, _ := r.Context().Value(requestIDKey).(string)
		log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
