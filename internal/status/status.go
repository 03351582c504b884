// Package status serves a read-only HTTP view of the running simulators.
package status

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/motorsim/motorsim/internal/registry"
	"github.com/motorsim/motorsim/pkg/core"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Dependencies holds everything the status routes read from.
type Dependencies struct {
	Registry *registry.Registry
	// Simulators describes how each controller is exposed.
	Simulators []core.SimulatorInfo
	// Metrics serves /metrics; nil leaves the route unregistered.
	Metrics     http.Handler
	Logger      zerolog.Logger
	Version     string
	CORSOrigins []string
}

// Server is the status HTTP server.
type Server struct {
	deps     Dependencies
	router   *gin.Engine
	appeared time.Time

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// New builds the router.
func New(deps Dependencies) *Server {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(deps.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:    deps.CORSOrigins,
		AllowAllOrigins: len(deps.CORSOrigins) == 0,
		AllowMethods:    []string{"GET"},
		AllowHeaders:    []string{"Origin", "Content-Type"},
		MaxAge:          12 * time.Hour,
	}))

	s := &Server{
		deps:     deps,
		router:   r,
		appeared: time.Now(),
	}
	s.registerRoutes()
	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"uptime":      time.Since(s.appeared).String(),
			"version":     s.deps.Version,
			"controllers": s.deps.Registry.Len(),
		})
	})

	s.router.GET("/simulators", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"simulators": s.simulators()})
	})

	s.router.GET("/simulators/:name/axes", func(c *gin.Context) {
		ctrl, ok := s.deps.Registry.Get(c.Param("name"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "simulator not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"simulator": ctrl.Name(),
			"vendor":    ctrl.Vendor(),
			"axes":      ctrl.Axes(),
		})
	})

	s.router.GET("/simulators/:name/keywords", func(c *gin.Context) {
		ctrl, ok := s.deps.Registry.Get(c.Param("name"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "simulator not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"keywords": ctrl.Keywords()})
	})

	if s.deps.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}
}

// simulators lists configured simulators, falling back to the registry for
// controllers with no transport description.
func (s *Server) simulators() []core.SimulatorInfo {
	known := make(map[string]bool, len(s.deps.Simulators))
	out := make([]core.SimulatorInfo, 0, s.deps.Registry.Len())
	for _, info := range s.deps.Simulators {
		known[info.Name] = true
		out = append(out, info)
	}
	for _, c := range s.deps.Registry.Controllers() {
		if known[c.Name()] {
			continue
		}
		out = append(out, core.SimulatorInfo{
			Name:      c.Name(),
			Vendor:    c.Vendor(),
			AxisCount: len(c.Axes()),
		})
	}
	return out
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.srv = &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	s.done = make(chan struct{})
	srv, done := s.srv, s.done
	s.mu.Unlock()

	s.deps.Logger.Info().Str("address", ln.Addr().String()).Msg("status server listening")
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.deps.Logger.Error().Err(err).Msg("status server stopped")
		}
	}()
	return nil
}

// Addr returns the bound address, or nil when not started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.srv = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	<-done
	return err
}
