package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/derafu/github/internal/apperror"
	"github.com/derafu/github/internal/notification"
	"github.com/derafu/github/internal/response"
)

// Server is the HTTP entry point: it reads the raw request, builds the
// notification, runs the processor and writes the JSON response.
type Server struct {
	config    ServerConfig
	processor Processor
	logger    *slog.Logger
	server    *http.Server
}

// NewServer creates a webhook server instance.
func NewServer(config ServerConfig, processor Processor, logger *slog.Logger) *Server {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if config.MaxBodySize == 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:    config,
		processor: processor,
		logger:    logger,
	}
}

// Start starts the webhook HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server starting", "listen", s.config.Listen, "path", s.config.Path)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// Routes configures the HTTP router.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Every method reaches the handler so a wrong method gets the
	// dispatcher's own validation response.
	r.HandleFunc(s.config.Path, s.handleWebhook)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, response.New("ok"))
	})

	return r
}

// loggingMiddleware logs HTTP requests (excludes payloads).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodySize+1))
	if err != nil {
		s.respond(w, response.Error("Failed to read request body.", http.StatusBadRequest))
		return
	}
	if int64(len(body)) > s.config.MaxBodySize {
		s.respond(w, response.Error("Payload too large.", http.StatusRequestEntityTooLarge).
			WithHTTPCode(http.StatusRequestEntityTooLarge))
		return
	}

	n := notification.New(body, notification.ContextFromRequest(r), nil)
	resp, err := s.processor.Handle(r.Context(), n)
	if err != nil {
		if apperror.IsInternal(err) {
			s.logger.Error("notification failed", "error", err, "request_id", middleware.GetReqID(r.Context()))
		}
		resp = response.FromError(err)
	}
	s.respond(w, resp)
}

func (s *Server) respond(w http.ResponseWriter, resp response.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.HTTPCode())
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}
