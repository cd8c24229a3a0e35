// Package gateway exposes the conversational orchestrator over HTTP: a
// single SSE chat endpoint plus health and metrics, composed on a plain
// http.ServeMux the way the teacher's internal/gateway/http_server.go does
// (spec.md §4.5, §6).
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/armindomatias/housing-agent/internal/httpauth"
	"github.com/armindomatias/housing-agent/internal/orchestrator"
)

// Orchestrator is the seam the gateway drives; satisfied by
// *orchestrator.Orchestrator, narrowed for testability.
type Orchestrator interface {
	Run(ctx context.Context, userID, conversationID, message string) (*orchestrator.Result, error)
}

// Config configures a Server.
type Config struct {
	Addr         string
	Orchestrator Orchestrator
	Auth         *httpauth.Service
	Logger       *slog.Logger
}

// Server is the gateway's HTTP server: POST /chat (SSE), GET /healthz,
// GET /metrics.
type Server struct {
	addr         string
	orchestrator Orchestrator
	logger       *slog.Logger
	startTime    time.Time

	httpServer *http.Server
	listener   net.Listener
}

// NewServer builds a Server and wires its routes; it does not start
// listening until Start is called.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		addr:         cfg.Addr,
		orchestrator: cfg.Orchestrator,
		logger:       cfg.Logger,
		startTime:    time.Now(),
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)

	var chatHandler http.Handler = http.HandlerFunc(s.handleChat)
	chatHandler = httpauth.Middleware(cfg.Auth, cfg.Logger)(chatHandler)
	mux.Handle("/chat", chatHandler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving in the background. It returns once the listener is
// bound; Serve errors after that point are logged, not returned.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("gateway: listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway server error", "error", err)
		}
	}()

	s.logger.Info("gateway listening", "addr", s.addr)
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
