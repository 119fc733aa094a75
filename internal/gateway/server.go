// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package gateway serves the client-facing websocket stream.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/holomush/eventhub/internal/hub"
	"github.com/holomush/eventhub/internal/upstream"
	"github.com/holomush/eventhub/pkg/errutil"
)

// Endpoint paths.
const (
	StreamingPath = "/streaming"
	VersionPath   = "/version"
)

// Connection defaults.
const (
	DefaultIdleTimeout = 90 * time.Second
	DefaultPingPeriod  = 30 * time.Second
	DefaultWriteWait   = 10 * time.Second

	// MaxFrameSize is the largest inbound command frame accepted.
	MaxFrameSize = 64 << 10

	shutdownTimeout = 5 * time.Second
)

// VersionSource supplies the metadata served on /version.
type VersionSource interface {
	Version(ctx context.Context) (upstream.Version, error)
}

// Config configures the gateway.
type Config struct {
	Addr           string
	IdleTimeout    time.Duration
	PingPeriod     time.Duration
	WriteWait      time.Duration
	AllowedOrigins []string
	CommandBurst   int
	CommandRate    float64
}

// Server accepts websocket clients and attaches them to the hub.
type Server struct {
	cfg      Config
	hub      *hub.Hub
	version  VersionSource
	limiter  *RateLimiter
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	listener net.Listener
	closing  bool
	ready    atomic.Bool
	sessions sync.WaitGroup
}

// NewServer creates a gateway. version may be nil, in which case /version
// responds 404. reg, when non-nil, receives the rate limiter gauge.
func NewServer(cfg Config, h *hub.Hub, version VersionSource, reg prometheus.Registerer) (*Server, error) {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = DefaultPingPeriod
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = DefaultWriteWait
	}

	origins, err := NewOriginPolicy(cfg.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:     cfg,
		hub:     h,
		version: version,
		limiter: NewRateLimiter(RateLimiterConfig{Burst: cfg.CommandBurst, Rate: cfg.CommandRate}, reg),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     origins.CheckOrigin,
		},
	}, nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Ready reports whether the server is accepting connections.
func (s *Server) Ready() bool {
	return s.ready.Load()
}

// Handler returns the HTTP routes of the gateway.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+StreamingPath, s.handleStreaming)
	mux.HandleFunc("GET "+VersionPath, s.handleVersion)
	return mux
}

// Run listens and serves until ctx is cancelled, then closes every client
// connection and waits for their tasks to finish.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return oops.With("addr", s.cfg.Addr).Wrapf(err, "failed to listen")
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	s.ready.Store(true)
	slog.Info("gateway started", "addr", listener.Addr().String())

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	s.ready.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Debug("gateway shutdown", "error", err)
	}

	s.Close()

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return oops.Wrapf(serveErr, "gateway serve")
	}
	return nil
}

// Close disconnects every client and waits for their sessions to end.
func (s *Server) Close() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	s.hub.Close()
	s.sessions.Wait()
	s.limiter.Close()
}

func (s *Server) handleStreaming(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied
		slog.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	if !s.track() {
		s.refuse(conn)
		return
	}
	defer s.sessions.Done()

	c, err := s.hub.Connect()
	if err != nil {
		s.refuse(conn)
		return
	}

	newSession(s, conn, c).run(context.WithoutCancel(r.Context()))
}

// track registers a session unless the server is closing.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.sessions.Add(1)
	return true
}

func (s *Server) refuse(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "hub is shutting down")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteWait))
	_ = conn.Close()
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if s.version == nil {
		http.NotFound(w, r)
		return
	}

	v, err := s.version.Version(r.Context())
	if err != nil {
		errutil.Log(r.Context(), slog.Default(), slog.LevelWarn, "version metadata unavailable", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "version metadata unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("write response", "error", err)
	}
}
