// Package server assembles the HTTP surface and background runners.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/notectx/notectx/internal/profile"
	"github.com/notectx/notectx/plugin/ai"
	apiv1 "github.com/notectx/notectx/server/router/api/v1"
	"github.com/notectx/notectx/server/router/rss"
	embeddingrunner "github.com/notectx/notectx/server/runner/embedding"
	"github.com/notectx/notectx/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer      *echo.Echo
	embeddingRunner *embeddingrunner.Runner
}

func NewServer(ctx context.Context, p *profile.Profile, st *store.Store) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			slog.Info("http request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
			)
			return nil
		},
	}))

	s := &Server{
		Profile:    p,
		Store:      st,
		echoServer: e,
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	apiService := apiv1.NewAPIV1Service(p, st)
	apiService.Register(e)

	rssService := rss.NewRSSService(p, st)
	rssService.RegisterRoutes(e)

	if p.IsAIEnabled() {
		aiConfig := ai.NewConfigFromProfile(p)
		embeddingService, err := ai.NewEmbeddingService(&aiConfig.Embedding)
		if err != nil {
			slog.Warn("embedding runner disabled", "error", err)
		} else {
			s.embeddingRunner = embeddingrunner.NewRunner(st, embeddingService, aiConfig.Embedding.Model)
		}
	}

	return s, nil
}

// Start runs the HTTP listener and background runners until ctx is
// cancelled, then shuts both down.
func (s *Server) Start(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	if s.embeddingRunner != nil {
		group.Go(func() error {
			s.embeddingRunner.Run(groupCtx)
			return nil
		})
	}

	group.Go(func() error {
		address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
		slog.Info("server listening", "address", address, "mode", s.Profile.Mode)
		if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "failed to start echo server")
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.echoServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shut down echo server", "error", err)
		}
		return nil
	})

	return group.Wait()
}

// Shutdown closes the store after the HTTP side has stopped.
func (s *Server) Shutdown() {
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	slog.Info("server shut down")
}
