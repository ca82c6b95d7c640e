// Package server exposes chat sessions over HTTP and websockets.
//
// Each session owns a provider, a page and an ingestion engine. Producers
// post data parts (JSONL bodies or websocket "part" messages); clients
// receive a full session view after every change. Routes:
//
//	GET    /healthz
//	GET    /metrics
//	GET    /api/sessions
//	POST   /api/sessions
//	GET    /api/sessions/:id
//	DELETE /api/sessions/:id
//	POST   /api/sessions/:id/parts
//	POST   /api/sessions/:id/navigate
//	POST   /api/sessions/:id/select
//	POST   /api/sessions/:id/reset
//	POST   /api/sessions/:id/dismiss
//	POST   /api/sessions/:id/open
//	GET    /api/sessions/:id/render
//	GET    /api/sessions/:id/archive
//	GET    /ws/sessions/:id
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pithecene-io/vantage/canvas"
	"github.com/pithecene-io/vantage/log"
	"github.com/pithecene-io/vantage/metrics"
	"github.com/pithecene-io/vantage/policy"
	"github.com/pithecene-io/vantage/runtime"
	"github.com/pithecene-io/vantage/session"
	"github.com/pithecene-io/vantage/types"
)

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// HistoryStore reads archived artifact snapshots.
type HistoryStore interface {
	QueryHistory(ctx context.Context, sessionID string) ([]types.ArtifactSnapshot, error)
}

// Config configures the server.
type Config struct {
	// Addr is the listen address (e.g. ":8080").
	Addr string
	// MaxSessions bounds the session registry.
	MaxSessions int
	// Policy archives parts and snapshots of every session. Nil uses NoopPolicy.
	Policy policy.Policy
	// Notifier publishes terminal snapshots. Optional; the caller starts
	// and closes it.
	Notifier *runtime.Notifier
	// Archive serves /archive. Optional.
	Archive HistoryStore
	// Selector renders artifacts. Nil uses the built-in renderers.
	Selector *canvas.Selector
	// Logger defaults to a stderr logger.
	Logger *log.Logger
	// Collector is nil-safe.
	Collector *metrics.Collector
	// Exporter serves /metrics and records HTTP and websocket instruments.
	// Optional.
	Exporter *metrics.Exporter
	// ShutdownTimeout defaults to DefaultShutdownTimeout.
	ShutdownTimeout time.Duration
}

// Server hosts chat sessions.
type Server struct {
	config   Config
	registry *session.Registry
	router   *gin.Engine

	mu   sync.Mutex
	hubs map[string]*hub
}

// New creates a server and its routes.
func New(cfg Config) (*Server, error) {
	if cfg.Policy == nil {
		cfg.Policy = policy.NewNoopPolicy()
	}
	if cfg.Selector == nil {
		cfg.Selector = canvas.NewSelector()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewLogger(nil)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	s := &Server{
		config: cfg,
		hubs:   make(map[string]*hub),
	}

	registry, err := session.NewRegistry(cfg.MaxSessions,
		session.WithOnOpen(func(*session.Session) { cfg.Collector.IncSessionOpened() }),
		session.WithOnEvict(s.evict),
	)
	if err != nil {
		return nil, err
	}
	s.registry = registry
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the session registry.
func (s *Server) Registry() *session.Registry {
	return s.registry
}

// Run serves until ctx ends, then shuts down gracefully and closes every
// session's connections.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.config.Logger.Info("server listening", map[string]any{"addr": s.config.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen %s: %w", s.config.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()

	s.closeHubs()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := s.config.Policy.Flush(shutdownCtx); err != nil {
		s.config.Logger.Warn("policy flush on shutdown failed", map[string]any{"error": err.Error()})
	}
	s.config.Logger.Info("server stopped", nil)
	return nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.observe())

	r.GET("/healthz", s.health)
	if s.config.Exporter != nil {
		r.GET("/metrics", gin.WrapH(s.config.Exporter.Handler()))
	}

	api := r.Group("/api/sessions")
	api.GET("", s.listSessions)
	api.POST("", s.createSession)
	api.GET("/:id", s.getSession)
	api.DELETE("/:id", s.deleteSession)
	api.POST("/:id/parts", s.postParts)
	api.POST("/:id/navigate", s.navigate)
	api.POST("/:id/select", s.selectArtifact)
	api.POST("/:id/reset", s.reset)
	api.POST("/:id/dismiss", s.dismiss)
	api.POST("/:id/open", s.open)
	api.GET("/:id/render", s.render)
	api.GET("/:id/archive", s.archive)

	r.GET("/ws/sessions/:id", s.serveWS)
	return r
}

// observe records request metrics and logs each request at debug.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		if e := s.config.Exporter; e != nil {
			e.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		}
		s.config.Logger.Debug("http request", map[string]any{
			"method":   c.Request.Method,
			"route":    route,
			"status":   status,
			"duration": time.Since(start).String(),
		})
	}
}

// hubFor returns the hub of session id, opening the session when create
// is set.
func (s *Server) hubFor(id string, create bool) (*hub, bool) {
	for {
		var sess *session.Session
		if create {
			sess, _ = s.registry.Open(id)
		} else {
			var ok bool
			if sess, ok = s.registry.Get(id); !ok {
				return nil, false
			}
		}

		if h, ok := s.bindHub(sess); ok {
			return h, true
		}
		if !create {
			return nil, false
		}
		// Evicted before the hub was bound; open a fresh session.
	}
}

// bindHub returns the hub serving sess, creating it if needed. It fails
// when sess is no longer the live session for its id. A hub left behind by
// an earlier session with the same id is closed.
func (s *Server) bindHub(sess *session.Session) (*hub, bool) {
	s.mu.Lock()
	if live, ok := s.registry.Peek(sess.ID); !ok || live != sess {
		s.mu.Unlock()
		return nil, false
	}
	old, ok := s.hubs[sess.ID]
	if ok && old.sess == sess {
		s.mu.Unlock()
		return old, true
	}
	h := newHub(sess, s.config)
	s.hubs[sess.ID] = h
	s.mu.Unlock()

	if ok {
		old.close()
	}
	return h, true
}

// evict tears down the hub of a session leaving the registry.
func (s *Server) evict(sess *session.Session) {
	s.config.Collector.IncSessionEvicted()

	s.mu.Lock()
	h, ok := s.hubs[sess.ID]
	if ok && h.sess == sess {
		delete(s.hubs, sess.ID)
	}
	s.mu.Unlock()

	if ok && h.sess == sess {
		h.close()
		s.config.Logger.Info("session evicted", map[string]any{"session_id": sess.ID})
	}
}

func (s *Server) closeHubs() {
	s.mu.Lock()
	hubs := make([]*hub, 0, len(s.hubs))
	for _, h := range s.hubs {
		hubs = append(hubs, h)
	}
	s.mu.Unlock()

	for _, h := range hubs {
		h.close()
	}
}
