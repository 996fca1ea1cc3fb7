// Package server hosts the dashboard: the guarded HTML pages, the JSON
// API the pages talk to, the notification stream and the metrics
// endpoint.
package server

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/renalscan/renalscan-go/internal/conf"
	"github.com/renalscan/renalscan-go/internal/errors"
	"github.com/renalscan/renalscan-go/internal/guard"
	"github.com/renalscan/renalscan-go/internal/history"
	"github.com/renalscan/renalscan-go/internal/logging"
	"github.com/renalscan/renalscan-go/internal/notification"
	"github.com/renalscan/renalscan-go/internal/observability"
	"github.com/renalscan/renalscan-go/internal/session"
	"github.com/renalscan/renalscan-go/internal/workflow"
)

//go:embed assets
var assetFiles embed.FS

// Server wires the echo instance to the application services.
type Server struct {
	Echo     *echo.Echo
	settings *conf.Settings
	store    *session.Store
	guard    *guard.Middleware
	history  *history.Service
	task     *workflow.UploadTask
	notifier *notification.Service
	metrics  *observability.Metrics
	log      *slog.Logger
}

// New builds the server and registers all routes. notifier and metrics
// may be nil.
func New(settings *conf.Settings, store *session.Store, hist *history.Service, task *workflow.UploadTask, notifier *notification.Service, metrics *observability.Metrics) (*Server, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	e.IPExtractor = echo.ExtractIPFromXFFHeader()

	s := &Server{
		Echo:     e,
		settings: settings,
		store:    store,
		history:  hist,
		task:     task,
		notifier: notifier,
		metrics:  metrics,
		log:      logging.ForService("server"),
	}
	s.guard = guard.NewMiddleware(store, s.renderLoading)

	e.Use(middleware.Recover())
	e.Use(s.requestLogger())
	e.HTTPErrorHandler = s.errorHandler

	assets, err := fs.Sub(assetFiles, "assets")
	if err != nil {
		return nil, errors.New(err).
			Component("server").
			Category(errors.CategoryConfiguration).
			Build()
	}
	e.StaticFS("/assets", assets)

	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(
			metrics.Registry(), promhttp.HandlerOpts{})))
	}

	s.registerPages()
	s.registerAPI()
	return s, nil
}

// Start resolves the initial session state and begins serving. It blocks
// until the listener fails or ctx is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.store.Initialize(ctx)

	addr := net.JoinHostPort(s.settings.WebServer.Host, s.settings.WebServer.Port)
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("web server listening", "addr", addr)
		errCh <- s.Echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.New(err).
				Component("server").
				Category(errors.CategoryNetwork).
				Context("addr", addr).
				Build()
		}
		return nil
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops the server, allowing in-flight requests to finish.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down web server")
	return s.Echo.Shutdown(ctx)
}

// requestLogger logs one line per request the way the rest of the app
// logs: slog with structured fields, warnings for error statuses.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			attrs := []any{
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", status,
				"elapsed", time.Since(start),
				"ip", c.RealIP(),
			}
			switch {
			case status >= http.StatusInternalServerError:
				s.log.Error("request", attrs...)
			case status >= http.StatusBadRequest:
				s.log.Warn("request", attrs...)
			case s.settings.WebServer.Debug:
				s.log.Debug("request", attrs...)
			}
			return nil
		}
	}
}

// errorHandler renders the not-found page for stray browser navigation
// and falls back to echo's default for everything else.
func (s *Server) errorHandler(err error, c echo.Context) {
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code == http.StatusNotFound && wantsHTML(c) {
		if renderErr := c.Render(http.StatusNotFound, "not-found", s.pageData(c, "Not found")); renderErr == nil {
			return
		}
	}
	s.Echo.DefaultHTTPErrorHandler(err, c)
}

func wantsHTML(c echo.Context) bool {
	accept := c.Request().Header.Get("Accept")
	return accept == "" || strings.Contains(accept, "text/html")
}
