// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the progress of a running download over HTTP: a
// JSON stats endpoint, a WebSocket stream, Prometheus metrics and a small
// embedded dashboard.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mfget/mfget/internal/assets"
	"github.com/mfget/mfget/internal/logging"
	"github.com/mfget/mfget/internal/metrics"
	"github.com/mfget/mfget/pkg/mediafire"
)

// StatsSource is polled for counters. *mediafire.Stats implements it.
type StatsSource interface {
	Snapshot() mediafire.Snapshot
}

// Config holds server configuration.
type Config struct {
	Addr     string        // host:port to listen on
	Version  string        // reported by /api/health
	Interval time.Duration // stats broadcast period, default 500ms

	Logger         *zap.Logger
	Metrics        *metrics.Metrics // nil disables /metrics
	AllowedOrigins []string         // CORS origins; empty allows any
}

// Server serves the progress of one run.
type Server struct {
	config     Config
	log        *zap.Logger
	httpServer *http.Server
	wsHub      *WSHub

	start sync.Once

	mu     sync.RWMutex
	source StatsSource
	runID  string
	link   string
}

// New creates a server. Attach a stats source before the run starts.
func New(cfg Config) *Server {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("server")
	return &Server{
		config: cfg,
		log:    log,
		wsHub:  NewWSHub(log),
	}
}

// Attach sets the run whose counters are served.
func (s *Server) Attach(src StatsSource, runID, link string) {
	s.mu.Lock()
	s.source, s.runID, s.link = src, runID, link
	s.mu.Unlock()
}

func (s *Server) snapshot() (mediafire.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.source == nil {
		return mediafire.Snapshot{}, false
	}
	return s.source.Snapshot(), true
}

// Progress returns a ProgressFunc that forwards file events to WebSocket
// clients and feeds the metrics.
func (s *Server) Progress() mediafire.ProgressFunc {
	return func(ev mediafire.ProgressEvent) {
		if s.config.Metrics != nil {
			s.config.Metrics.Observe(ev)
		}
		// Per-chunk events are covered by the periodic stats message.
		if ev.Event == "file_progress" || ev.Event == "plan_item" {
			return
		}
		s.wsHub.BroadcastEvent(ev)
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerAPIRoutes(mux)
	return s.corsMiddleware(logging.Middleware(s.log, mux))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.config.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range s.config.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// ListenAndServe serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Start runs the WebSocket hub and the stats broadcaster until ctx is done.
// Serve calls it; tests driving Handler directly call it themselves.
func (s *Server) Start(ctx context.Context) {
	s.start.Do(func() {
		go s.wsHub.Run(ctx)
		go s.broadcastStats(ctx)
	})
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.Start(ctx)

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	s.log.Info("stats server listening", zap.String("addr", ln.Addr().String()))
	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// broadcastStats pushes a stats message to WebSocket clients every interval.
func (s *Server) broadcastStats(ctx context.Context) {
	t := time.NewTicker(s.config.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if s.wsHub.ClientCount() == 0 {
				continue
			}
			if snap, ok := s.snapshot(); ok {
				s.wsHub.Broadcast("stats", newStatsResponse(snap))
			}
		}
	}
}

// registerAPIRoutes sets up all endpoints.
func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/ws", s.handleWebSocket)
	if s.config.Metrics != nil {
		mux.Handle("GET /metrics", s.config.Metrics.Handler())
	}

	// Embedded dashboard
	mux.Handle("GET /", http.FileServer(http.FS(assets.StaticFS())))
}
