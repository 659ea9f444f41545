// Package httpapi exposes ingestion and question answering over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ragqa/internal/service"
)

// SessionHeader carries the caller's session id in both directions.
const SessionHeader = "X-Session-ID"

// Backend is the subset of the service used by the handlers.
type Backend interface {
	Ingest(ctx context.Context, sess *service.Session, data []byte, filename string) (service.IngestResult, error)
	Answer(ctx context.Context, question string) service.Answer
}

// Options configure the HTTP surface.
type Options struct {
	MaxUploadBytes int64
	SessionTTL     time.Duration
	MaxSessions    int
}

// Server holds the gin engine and per-session state.
type Server struct {
	backend  Backend
	sessions *sessionTable
	maxBytes int64
	logger   *zap.Logger
	engine   *gin.Engine
}

// NewServer builds the router. logger may be nil.
func NewServer(backend Backend, opts Options, logger *zap.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		backend:  backend,
		sessions: newSessionTable(opts.MaxSessions, opts.SessionTTL),
		maxBytes: opts.MaxUploadBytes,
		logger:   logger,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))
	engine.GET("/health", s.health)
	api := engine.Group("/api")
	api.Use(s.withSession)
	api.POST("/documents", s.ingest)
	api.POST("/answer", s.answer)
	s.engine = engine
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	s.logger.Info("server stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}
