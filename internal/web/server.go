package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"devtrack/internal/platform/metrics"
)

const RequestIDHeader = "X-Request-ID"

//go:embed static
var staticFiles embed.FS

// Routes mounts a module's JSON API under /api.
type Routes interface {
	Register(api gin.IRouter)
}

type Config struct {
	Addr     string
	DataFile string
	Routes   Routes
	Logger   zerolog.Logger
}

// Server is the local web UI: JSON API, change notifications, metrics and
// the embedded timer page.
type Server struct {
	addr     string
	dataFile string
	router   *gin.Engine
	hub      *Hub
	log      zerolog.Logger
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Routes == nil {
		return nil, errors.New("web server needs routes")
	}
	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("static assets: %w", err)
	}
	index, err := fs.ReadFile(static, "index.html")
	if err != nil {
		return nil, fmt.Errorf("static index: %w", err)
	}

	router := gin.New()
	s := &Server{
		addr:     cfg.Addr,
		dataFile: cfg.DataFile,
		router:   router,
		hub:      NewHub(cfg.Logger),
		log:      cfg.Logger,
	}
	router.Use(gin.Recovery(), requestID(), s.accessLog())

	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", index)
	})
	router.StaticFS("/assets", http.FS(static))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	{
		cfg.Routes.Register(api)
		api.GET("/events", func(c *gin.Context) {
			s.hub.Serve(c.Writer, c.Request)
		})
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.dataFile != "" {
		watcher, err := NewFileWatcher(s.dataFile, 150*time.Millisecond, func() {
			s.hub.Broadcast(Event{Type: EventSessionsChanged, At: time.Now().UTC().Format(time.RFC3339)})
		}, s.log)
		if err != nil {
			return err
		}
		if err := watcher.Start(); err != nil {
			return err
		}
		defer func() { _ = watcher.Stop() }()
	}

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("web server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// requestID keeps a caller-supplied X-Request-ID or assigns a new uuid.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		event := s.log.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = s.log.Error()
		}
		event.
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}
