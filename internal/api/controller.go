package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/campusguard/edge-collector/internal/alerting"
	"github.com/campusguard/edge-collector/internal/auth"
	"github.com/campusguard/edge-collector/internal/conf"
	"github.com/campusguard/edge-collector/internal/errors"
	"github.com/campusguard/edge-collector/internal/ingest"
	"github.com/campusguard/edge-collector/internal/logger"
	"github.com/campusguard/edge-collector/internal/observability"
)

// RootBanner is the plain-text body served at "/".
const RootBanner = "CampusGuard Alert Server running. Try /health"

// ImageReader returns stored image bytes by bare filename.
type ImageReader interface {
	Open(name string) ([]byte, error)
}

// RuleEngine lists notification rules and test-fires them.
type RuleEngine interface {
	Rules() []alerting.NotifyRule
	TestFireRule(name string, event *alerting.AlertEvent) bool
}

// Controller holds the handlers and the state they share.
type Controller struct {
	ingest  *ingest.Coordinator
	auth    *auth.TokenAuthenticator
	images  ImageReader
	rules   RuleEngine
	metrics *observability.Metrics
	log     logger.Logger

	// imageCache holds image bytes by filename; nil disables caching.
	imageCache *imageCache
}

// ImageCacheConfig bounds the in-memory image cache.
type ImageCacheConfig struct {
	TTL          time.Duration
	MaxBytes     int64
	MaxItemBytes int64
}

// NewController creates a controller. The image cache is enabled when both
// the TTL and the byte budget are positive.
func NewController(deps Dependencies, cacheCfg ImageCacheConfig, log logger.Logger) *Controller {
	return &Controller{
		ingest:     deps.Ingest,
		auth:       deps.Auth,
		images:     deps.Images,
		rules:      deps.Rules,
		metrics:    deps.Metrics,
		log:        log,
		imageCache: newImageCache(cacheCfg.TTL, cacheCfg.MaxBytes, cacheCfg.MaxItemBytes),
	}
}

// RegisterRoutes installs the collector routes on e.
func (c *Controller) RegisterRoutes(e *echo.Echo) {
	e.GET("/", c.GetRoot)
	e.GET("/health", c.GetHealth)
	e.GET("/images/:filename", c.GetImage)
	e.HEAD("/images/:filename", c.GetImage)

	e.POST("/alert", c.PostAlert, c.requireToken(observability.ReasonUnauthenticated))
	e.GET("/alerts", c.ListAlerts, c.requireToken(""))

	if c.rules != nil {
		e.GET("/alerts/rules", c.ListRules, c.requireToken(""))
		e.POST("/alerts/rules/:name/test", c.TestRule, c.requireToken(""))
	}
}

// requireToken rejects requests without the shared secret before the handler
// runs. A non-empty rejectReason also counts the request as a rejected alert.
func (c *Controller) requireToken(rejectReason string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if c.auth.Authenticate(ctx.Request().Header.Get(conf.TokenHeader)) {
				return next(ctx)
			}

			c.metrics.AuthFailure()
			if rejectReason != "" {
				c.metrics.AlertRejected(rejectReason)
			}
			c.log.Warn("unauthorized request",
				logger.String("path", ctx.Path()),
				logger.String("ip", ctx.RealIP()))
			return ctx.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
	}
}

// HandleError maps a categorized error to a status code and JSON body.
// serverMsg replaces the error text for 5xx responses.
func (c *Controller) HandleError(ctx echo.Context, err error, serverMsg string) error {
	switch errors.CategoryOf(err) {
	case errors.CategoryValidation:
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.CategoryAuthorization:
		return ctx.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	case errors.CategoryNotFound:
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	case errors.CategoryCancelled:
		return ctx.JSON(http.StatusRequestTimeout, map[string]string{"error": "Request cancelled"})
	default:
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": serverMsg})
	}
}
