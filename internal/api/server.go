// Package api serves the task engine over HTTP and websockets.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/randalmurphal/hrdesk/internal/engine"
	"github.com/randalmurphal/hrdesk/internal/events"
	"github.com/randalmurphal/hrdesk/internal/metrics"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Config holds server configuration.
type Config struct {
	Addr      string
	RateLimit float64 // requests per second per client, 0 disables
	RateBurst int

	// UpcomingDays is the default window for /api/upcoming.
	UpcomingDays int

	Logger *slog.Logger

	// Publisher must be the publisher the engine was built with, so the
	// websocket stream sees engine events.
	Publisher events.Publisher
	Inbox     *events.Inbox
	Metrics   *metrics.Recorder
}

// Server is the hrdesk HTTP server.
type Server struct {
	engine       *engine.Engine
	addr         string
	upcomingDays int
	logger       *slog.Logger
	inbox        *events.Inbox
	metrics      *metrics.Recorder
	ws           *WSHandler
	router       *gin.Engine
}

// New builds a server for eng.
func New(eng *engine.Engine, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = events.NewNopPublisher()
	}
	inbox := cfg.Inbox
	if inbox == nil {
		inbox = events.NewInbox(0)
	}
	days := cfg.UpcomingDays
	if days <= 0 {
		days = 7
	}

	s := &Server{
		engine:       eng,
		addr:         cfg.Addr,
		upcomingDays: days,
		logger:       logger,
		inbox:        inbox,
		metrics:      cfg.Metrics,
		ws:           NewWSHandler(pub, logger),
	}
	s.router = s.routes(cfg.RateLimit, cfg.RateBurst)
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Inbox returns the notification inbox served under /api/notifications.
func (s *Server) Inbox() *events.Inbox {
	return s.inbox
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.ws.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("api stopped")
	return nil
}
