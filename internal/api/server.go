// Package api exposes the collector over HTTP.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/campusguard/edge-collector/internal/auth"
	"github.com/campusguard/edge-collector/internal/conf"
	"github.com/campusguard/edge-collector/internal/errors"
	"github.com/campusguard/edge-collector/internal/ingest"
	"github.com/campusguard/edge-collector/internal/logger"
	"github.com/campusguard/edge-collector/internal/observability"
)

// Dependencies are the components the HTTP layer serves.
type Dependencies struct {
	Ingest  *ingest.Coordinator
	Auth    *auth.TokenAuthenticator
	Images  ImageReader
	Metrics *observability.Metrics

	// Rules is optional; without it the rule routes are not registered.
	Rules RuleEngine
}

// Server owns the echo instance and its lifecycle.
type Server struct {
	echo       *echo.Echo
	settings   *conf.Settings
	controller *Controller
	log        logger.Logger
}

// NewServer builds the echo instance, installs middleware and registers
// every route.
func NewServer(settings *conf.Settings, deps Dependencies, log logger.Logger) (*Server, error) {
	if deps.Ingest == nil || deps.Auth == nil || deps.Images == nil {
		return nil, errors.Newf("api server requires ingest, auth and image dependencies").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		settings: settings,
		log:      log.Module("api"),
	}
	e.HTTPErrorHandler = s.errorHandler

	s.setupMiddleware()

	s.controller = NewController(deps, ImageCacheConfig{
		TTL:          settings.Storage.ImageCacheTTL.Std(),
		MaxBytes:     settings.Storage.ImageCacheMaxBytes,
		MaxItemBytes: settings.Storage.ImageCacheMaxItemBytes,
	}, s.log)
	s.controller.RegisterRoutes(e)
	if settings.Metrics.Enabled && deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	}

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURIPath:  true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("path", v.URIPath),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency),
				logger.String("ip", v.RemoteIP),
			}
			if v.Status >= http.StatusInternalServerError {
				s.log.Warn("request failed", fields...)
				return nil
			}
			s.log.Debug("request", fields...)
			return nil
		},
	}))
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.settings.Server.CORSOrigins,
	}))
	if limit := s.settings.Server.BodyLimit; limit != "" {
		s.echo.Use(middleware.BodyLimit(limit))
	}

	rl := s.settings.Server.RateLimit
	if !rl.Enabled {
		return
	}
	s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health"
		},
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(rl.RequestsPerSecond),
				Burst:     rl.Burst,
				ExpiresIn: rl.ExpiresIn.Std(),
			},
		),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, _ error) error {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Unable to identify client"})
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Too many requests"})
		},
	}))
}

// errorHandler renders every unhandled error as {"error": "..."}.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	} else {
		s.log.Error("unhandled request error",
			logger.String("path", c.Request().URL.Path),
			logger.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, map[string]string{"error": msg})
	}
	if err != nil {
		s.log.Debug("failed to write error response", logger.Error(err))
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.settings.Server.Host, strconv.Itoa(s.settings.Server.Port))
}

// ServeHTTP lets the server be driven directly by httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on Addr until Shutdown is called. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.echo.Server.ReadHeaderTimeout = 10 * time.Second
	err := s.echo.Start(s.Addr())
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.New(fmt.Errorf("http server: %w", err)).
		Component("api").
		Category(errors.CategoryNetwork).
		Context("addr", s.Addr()).
		Build()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
