// Package httpcontroller exposes the recording session over a small JSON
// control API and serves Prometheus metrics.
package httpcontroller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/seamless-recorder/internal/conf"
	"github.com/tphakala/seamless-recorder/internal/logger"
	"github.com/tphakala/seamless-recorder/internal/recorder"
)

const shutdownTimeout = 5 * time.Second

// Controller is the part of the session the API drives
type Controller interface {
	Record() error
	Pause(cause recorder.Cause) error
	Stop(ctx context.Context) error
	HandleSignal(sig recorder.Signal)
	Status() recorder.Status
}

// Server encapsulates the Echo instance and its collaborators
type Server struct {
	Echo *echo.Echo

	settings    conf.HTTPSettings
	session     Controller
	metrics     http.Handler
	stopTimeout time.Duration
	log         logger.Logger
}

// New builds the server and registers its routes. metricsHandler may be nil.
func New(settings conf.HTTPSettings, session Controller, metricsHandler http.Handler, stopTimeout time.Duration) *Server {
	s := &Server{
		Echo:        echo.New(),
		settings:    settings,
		session:     session,
		metrics:     metricsHandler,
		stopTimeout: stopTimeout,
		log:         logger.Global().Module("http"),
	}
	if s.stopTimeout <= 0 {
		s.stopTimeout = 5 * time.Minute
	}

	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.Use(middleware.Recover())
	s.setupRequestLogger()
	s.initRoutes()
	return s
}

func (s *Server) initRoutes() {
	api := s.Echo.Group("/api/v1")
	api.GET("/status", s.GetStatus)
	api.POST("/record", s.PostRecord)
	api.POST("/pause", s.PostPause)
	api.POST("/stop", s.PostStop)
	api.POST("/signals/:signal", s.PostSignal)

	if s.metrics != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(s.metrics))
	}
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP control server listening", logger.String("listen", s.settings.Listen))
		errCh <- s.Echo.Start(s.settings.Listen)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Echo.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("HTTP server shutdown failed", logger.Error(err))
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
