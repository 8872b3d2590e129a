// Package gateway exposes the session engine over HTTP and WebSocket.
// All state mutation goes through the session manager; the gateway maps
// domain errors to HTTP status codes and broadcasts session events to
// watchers.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coursewright/coursewright/internal/artifact"
	"github.com/coursewright/coursewright/internal/config"
	"github.com/coursewright/coursewright/internal/generate"
	"github.com/coursewright/coursewright/internal/hooks"
	"github.com/coursewright/coursewright/internal/logging"
	"github.com/coursewright/coursewright/internal/session"
	"github.com/coursewright/coursewright/internal/version"
)

// Server is the Coursewright HTTP + WebSocket API server.
type Server struct {
	cfg     config.Config
	auth    ResolvedAuth
	log     *logging.Logger
	manager *session.Manager
	version string

	// Optional collaborators. Nil disables the corresponding endpoints.
	generator    generate.Generator
	materializer artifact.Materializer
	hooks        *hooks.Manager

	hub         *Hub
	startedAt   time.Time
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// authRateLimiter tracks failed auth attempts per IP to prevent brute-force attacks.
type authRateLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
}

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxIPs   = 10000 // max tracked IPs to prevent memory exhaustion
)

func newAuthRateLimiter() *authRateLimiter {
	return &authRateLimiter{failures: make(map[string][]time.Time)}
}

func (l *authRateLimiter) allow(remoteAddr string) bool {
	host, _, _ := net.SplitHostPort(remoteAddr)
	if host == "" {
		host = remoteAddr
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-authRateWindow)
	recent := l.failures[host]
	filtered := recent[:0]
	for _, t := range recent {
		if t.After(cutoff) {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		delete(l.failures, host)
		return true
	}
	l.failures[host] = filtered
	return len(filtered) < authRateMaxFails
}

func (l *authRateLimiter) recordFailure(remoteAddr string) {
	host, _, _ := net.SplitHostPort(remoteAddr)
	if host == "" {
		host = remoteAddr
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Enforce max entries cap to prevent memory exhaustion from floods
	if _, exists := l.failures[host]; !exists && len(l.failures) >= authRateMaxIPs {
		var oldestIP string
		var oldestTime time.Time
		for ip, times := range l.failures {
			if len(times) > 0 && (oldestIP == "" || times[0].Before(oldestTime)) {
				oldestIP = ip
				oldestTime = times[0]
			}
		}
		if oldestIP != "" {
			delete(l.failures, oldestIP)
		}
	}

	l.failures[host] = append(l.failures[host], time.Now())
}

// ServerOption configures the API server.
type ServerOption func(*Server)

// WithGenerator sets the content generation provider.
func WithGenerator(g generate.Generator) ServerOption {
	return func(s *Server) {
		s.generator = g
	}
}

// WithMaterializer sets the artifact materializer used on completion.
func WithMaterializer(m artifact.Materializer) ServerOption {
	return func(s *Server) {
		s.materializer = m
	}
}

// WithHooks sets the hook manager for lifecycle events.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// New creates a new API server around the session manager.
func New(cfg config.Config, mgr *session.Manager, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		auth:        ResolveAuth(cfg.Server.Auth),
		log:         log.Sub("gateway"),
		manager:     mgr,
		version:     version.Version,
		hub:         NewHub(log.Sub("watch")),
		authLimiter: newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Same-origin or non-browser clients only
				return r.Header.Get("Origin") == ""
			},
		},
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.ServerConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Server)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if s.cfg.Server.Bind != "loopback" && s.auth.Mode == "none" {
		s.log.Warn().Msg("serving beyond loopback without authentication")
	}

	s.startedAt = time.Now()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Server.Bind).
		Str("auth", s.auth.Mode).
		Msg("api server ready")

	if s.hooks != nil {
		s.hooks.Emit(ctx, hooks.Payload{
			Event: hooks.EventServerStart,
			Data:  map[string]any{"addr": ln.Addr().String()},
		})
	}

	// Shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down api server")
		if s.hooks != nil {
			s.hooks.Emit(context.Background(), hooks.Payload{Event: hooks.EventServerStop})
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.hub.CloseAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}
