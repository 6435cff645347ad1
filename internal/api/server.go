package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"hermes/internal/metrics"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// ServerConfig contains configuration for HTTP server
type ServerConfig struct {
	Addr         string
	ServiceName  string
	Version      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration // zero keeps SSE and WebSocket responses open
	IdleTimeout  time.Duration
}

// Server wraps HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer creates and configures HTTP server with all routes
func NewServer(cfg ServerConfig, h *Handler, healthHandler *HealthHandler, log *logger.Logger) *Server {
	mux := http.NewServeMux()

	// Generation endpoints
	mux.HandleFunc("POST /v1/generate", instrument("/v1/generate", h.HandleGenerate))
	mux.HandleFunc("POST /v1/generate/stream", instrument("/v1/generate/stream", h.HandleGenerateStream))
	mux.HandleFunc("GET /v1/generate/ws", instrument("/v1/generate/ws", h.HandleGenerateWS))

	// Vision endpoints
	mux.HandleFunc("POST /v1/vision/describe", instrument("/v1/vision/describe", h.HandleVisionDescribe))
	mux.HandleFunc("POST /v1/vision/ocr", instrument("/v1/vision/ocr", h.HandleVisionOCR))

	// Introspection endpoints
	mux.HandleFunc("GET /v1/models", instrument("/v1/models", h.HandleModels))
	mux.HandleFunc("GET /v1/providers", instrument("/v1/providers", h.HandleProviders))
	mux.HandleFunc("GET /v1/usage", instrument("/v1/usage", h.HandleUsage))

	// Health check endpoints (Kubernetes probes)
	mux.HandleFunc("/health", healthHandler.HandleHealth)
	mux.HandleFunc("/ready", healthHandler.HandleReadiness)
	mux.HandleFunc("/live", healthHandler.HandleLiveness)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", metrics.Handler())

	// Root endpoint (service info). The {$} pattern keeps the mux free to
	// answer 404 and 405 for everything unmatched.
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"service":"%s","version":"%s","status":"running"}`,
			cfg.ServiceName, cfg.Version)
	})

	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	log.Infof("HTTP server configured on %s", addr)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &Server{
		httpServer: httpServer,
		log:        log,
	}
}

// Start begins listening for HTTP requests
// Blocks until server is stopped or encounters an error
func (s *Server) Start() error {
	s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
// Waits for active connections to complete within timeout
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	s.log.Info("✓ HTTP server stopped")
	return nil
}
