package api

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/campusguard/edge-collector/internal/alerting"
	"github.com/campusguard/edge-collector/internal/datastore/entities"
	"github.com/campusguard/edge-collector/internal/errors"
	"github.com/campusguard/edge-collector/internal/ingest"
	"github.com/campusguard/edge-collector/internal/logger"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// IngestResponse is returned by a successful POST /alert.
type IngestResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

// AlertsResponse is returned by GET /alerts.
type AlertsResponse struct {
	Alerts []entities.Alert `json:"alerts"`
}

// GetRoot handles GET /
func (c *Controller) GetRoot(ctx echo.Context) error {
	return ctx.String(http.StatusOK, RootBanner)
}

// GetHealth handles GET /health
func (c *Controller) GetHealth(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, HealthResponse{OK: true})
}

// PostAlert handles POST /alert. The raw body is handed to the coordinator so
// dynamic JSON types survive validation.
func (c *Controller) PostAlert(ctx echo.Context) error {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": ingest.MsgInvalidBody})
	}

	id, err := c.ingest.Ingest(ctx.Request().Context(), body)
	if err != nil {
		return c.HandleError(ctx, err, ingest.MsgImageNotStored)
	}
	return ctx.JSON(http.StatusOK, IngestResponse{OK: true, ID: id})
}

// ListAlerts handles GET /alerts?limit=N
func (c *Controller) ListAlerts(ctx echo.Context) error {
	limit := ingest.ParseLimit(ctx.QueryParam("limit"), c.ingest.Capacity())
	return ctx.JSON(http.StatusOK, AlertsResponse{Alerts: c.ingest.Recent(limit)})
}

// GetImage handles GET and HEAD /images/:filename
func (c *Controller) GetImage(ctx echo.Context) error {
	name := ctx.Param("filename")

	data, err := c.readImage(name)
	if err != nil {
		if !errors.IsCategory(err, errors.CategoryNotFound) {
			c.log.Error("failed to read image", logger.String("file", name), logger.Error(err))
		}
		return c.HandleError(ctx, err, "Failed to read image")
	}

	ctx.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	return ctx.Blob(http.StatusOK, contentType(name), data)
}

func (c *Controller) readImage(name string) ([]byte, error) {
	if data, ok := c.imageCache.get(name); ok {
		return data, nil
	}
	data, err := c.images.Open(name)
	if err != nil {
		return nil, err
	}
	c.imageCache.put(name, data)
	return data, nil
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return echo.MIMEOctetStream
}

// RuleResponse describes a notification rule.
type RuleResponse struct {
	Name       string               `json:"name"`
	Conditions []alerting.Condition `json:"conditions"`
	Cooldown   string               `json:"cooldown,omitempty"`
	MinCount   int                  `json:"minCount,omitempty"`
	Window     string               `json:"window,omitempty"`
}

// RulesResponse is returned by GET /alerts/rules.
type RulesResponse struct {
	Rules []RuleResponse `json:"rules"`
}

// TestRuleResponse is returned by POST /alerts/rules/:name/test.
type TestRuleResponse struct {
	OK      bool   `json:"ok"`
	Rule    string `json:"rule"`
	AlertID string `json:"alertId"`
}

// testRuleEventType is the event type of the synthetic alert used when no
// eventType query parameter is given.
const testRuleEventType = "test"

// ListRules handles GET /alerts/rules
func (c *Controller) ListRules(ctx echo.Context) error {
	rules := c.rules.Rules()
	resp := RulesResponse{Rules: make([]RuleResponse, 0, len(rules))}
	for i := range rules {
		r := &rules[i]
		item := RuleResponse{
			Name:       r.Name,
			Conditions: r.Conditions,
			MinCount:   r.MinCount,
		}
		if item.Conditions == nil {
			item.Conditions = []alerting.Condition{}
		}
		if r.Cooldown > 0 {
			item.Cooldown = r.Cooldown.String()
		}
		if r.Window > 0 {
			item.Window = r.Window.String()
		}
		resp.Rules = append(resp.Rules, item)
	}
	return ctx.JSON(http.StatusOK, resp)
}

// TestRule handles POST /alerts/rules/:name/test. The rule's action runs for
// a synthetic alert that is never stored; conditions and cooldowns are
// skipped.
func (c *Controller) TestRule(ctx echo.Context) error {
	name := ctx.Param("name")

	eventType := ctx.QueryParam("eventType")
	if eventType == "" {
		eventType = testRuleEventType
	}
	now := time.Now()
	event := &alerting.AlertEvent{
		Alert: entities.Alert{
			ID:              "test-" + uuid.NewString(),
			Timestamp:       now.UnixMilli(),
			EventType:       eventType,
			OperatorVerdict: entities.VerdictYes,
		},
		Timestamp: now,
	}

	if !c.rules.TestFireRule(name, event) {
		return c.HandleError(ctx, errors.Newf("notification rule %q not found", name).
			Component("api").
			Category(errors.CategoryNotFound).
			Build(), "")
	}
	return ctx.JSON(http.StatusOK, TestRuleResponse{OK: true, Rule: name, AlertID: event.Alert.ID})
}
