// Package server implements the sync transport: an authenticated
// encrypted-blob store speaking JSON over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/uledev/taskchain/internal/limiter"
	"github.com/uledev/taskchain/internal/repository"
)

// Server serves the blob-store API for sync clients.
type Server struct {
	echo  *echo.Echo
	blobs repository.BlobRepository
	lim   limiter.Limiter
	log   *zap.Logger
}

// New constructs the server and registers routes under basePath
// (usually /api/sync).
func New(blobs repository.BlobRepository, lim limiter.Limiter, basePath string, log *zap.Logger) *Server {
	if lim == nil {
		lim = limiter.Unlimited{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if basePath == "" {
		basePath = "/api/sync"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger(log))

	s := &Server{echo: e, blobs: blobs, lim: lim, log: log}

	g := e.Group(basePath, s.authChain)
	g.GET("", s.getBlob)
	g.POST("", s.putBlob)

	return s
}

// Start listens on addr until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.echo.Start(addr) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// requestLogger logs request metadata only, never payloads.
func requestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			log.Info("http",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("dur", time.Since(start)),
				zap.String("remote", c.RealIP()),
			)
			return err
		}
	}
}
