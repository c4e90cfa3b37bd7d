package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"quote-broadcaster/src/config"
	"quote-broadcaster/src/interfaces"
	"quote-broadcaster/src/logger"
	"quote-broadcaster/src/models"
	"quote-broadcaster/src/registry"
	"quote-broadcaster/src/symbols"

	"github.com/gin-gonic/gin"
)

// SnapshotResolver builds one round of snapshots for the polling stream.
type SnapshotResolver interface {
	Resolve(ctx context.Context, aliases []string, now time.Time) map[string]models.MOutboundSnapshot
}

// -----------------------------------------------------------------------------
// FastAPIServer
// -----------------------------------------------------------------------------

type FastAPIServer struct {
	Config     *config.Config
	Logger     *logger.Logger
	Registry   *registry.Registry
	Normalizer *symbols.Normalizer

	// Optional collaborators
	Resolver SnapshotResolver
	Session  interfaces.IFeedSession
	Recorder interfaces.ISessionRecorder
	Sessions interfaces.ISessionLog

	engine     *gin.Engine
	httpServer *http.Server

	// WebSocket clients, owned by the hub goroutine
	clients     map[string]*Client
	deliver     chan outbound
	register    chan *Client
	unregister  chan *Client
	quit        chan struct{}
	stopOnce    sync.Once
	connections atomic.Int64
}

var _ interfaces.IDataExchanger = (*FastAPIServer)(nil)

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewFastAPIServer(cfg *config.Config, logger *logger.Logger, reg *registry.Registry, norm *symbols.Normalizer) *FastAPIServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &FastAPIServer{
		Config:     cfg,
		Logger:     logger,
		Registry:   reg,
		Normalizer: norm,
		engine:     gin.New(),
		clients:    make(map[string]*Client),
		// Buffered so a tick can queue its deliveries without waiting on the hub
		deliver:    make(chan outbound, 1024),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}

	if cfg.LogLevel == "DEBUG" {
		s.engine.Use(gin.Logger())
	}
	s.engine.Use(gin.CustomRecovery(s.recoverPanic))

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *FastAPIServer) setupRoutes() {
	s.engine.HandleMethodNotAllowed = true
	s.engine.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, "The requested URL was not found on the server.")
	})
	s.engine.NoMethod(func(c *gin.Context) {
		abortWithError(c, http.StatusMethodNotAllowed, "The method is not allowed for the requested URL.")
	})

	s.engine.GET("/", s.getIndex)
	s.engine.GET("/favicon.ico", s.getFavicon)
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/sessions", s.getSessions)

	// Real-time endpoints
	s.engine.GET("/ws", s.handleWebSocket)
	s.engine.GET("/stream", s.handleStream)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start runs the hub and blocks serving HTTP until Stop is called.
func (s *FastAPIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	go s.handleWebsockets()

	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop closes every client and shuts the HTTP listener down.
func (s *FastAPIServer) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.quit)
		if s.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = s.httpServer.Shutdown(ctx)
		}
	})
	return err
}

// -----------------------------------------------------------------------------

// Handler exposes the gin engine, mainly for httptest.
func (s *FastAPIServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *FastAPIServer) getIndex(c *gin.Context) {
	c.String(http.StatusOK, s.Config.Greeting)
}

func (s *FastAPIServer) getFavicon(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getHealth(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	loggedIn := false
	if s.Session != nil {
		loggedIn = s.Session.LoggedIn()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"connections":    s.connections.Load(),
		"subscriptions":  s.Registry.Subscriptions(),
		"feed_logged_in": loggedIn,
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) secretMatches(candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(s.Config.Secret)) == 1
}

func (s *FastAPIServer) record(connID, kind, remoteAddr string, syms []models.MCanonicalSymbol) {
	if s.Recorder == nil {
		return
	}
	names := make([]string, len(syms))
	for i, sym := range syms {
		names[i] = string(sym)
	}
	s.Recorder.Record(models.MSessionEvent{
		ConnectionID: connID,
		Kind:         kind,
		Symbols:      names,
		RemoteAddr:   remoteAddr,
		CreatedAt:    time.Now().UTC(),
	})
}
