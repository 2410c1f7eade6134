// Package ingest validates alert submissions, persists attached images and
// records the resulting alerts.
package ingest

import (
	"bytes"
	"context"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/google/uuid"

	"github.com/campusguard/edge-collector/internal/datastore"
	"github.com/campusguard/edge-collector/internal/datastore/entities"
	"github.com/campusguard/edge-collector/internal/errors"
	"github.com/campusguard/edge-collector/internal/logger"
	"github.com/campusguard/edge-collector/internal/observability"
)

const componentName = "ingest"

// Validation messages returned to clients verbatim.
const (
	MsgInvalidBody    = "Invalid request body"
	MsgRequiredFields = "eventType and operatorVerdict are required"
	MsgInvalidVerdict = "operatorVerdict must be YES or MAYBE"
	MsgImageNotStored = "Failed to store image"
)

// DefaultListLimit is used when a list request has no usable limit.
const DefaultListLimit = 50

// ImageStore persists an encoded image for an alert id.
type ImageStore interface {
	Persist(id, encoded string) (string, error)
}

// Publisher receives every stored alert. Implementations must not block.
type Publisher interface {
	PublishAlert(alert entities.Alert) bool
}

// Coordinator owns the ingestion pipeline. It is safe for concurrent use.
type Coordinator struct {
	alerts    *datastore.RingBuffer
	images    ImageStore
	publisher Publisher
	metrics   *observability.Metrics
	log       logger.Logger

	now   func() time.Time
	newID func() string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPublisher forwards stored alerts to p.
func WithPublisher(p Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithMetrics records ingestion metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithIDGenerator overrides alert id generation.
func WithIDGenerator(fn func() string) Option {
	return func(c *Coordinator) { c.newID = fn }
}

// NewCoordinator wires the pipeline around an alert buffer and image store.
func NewCoordinator(alerts *datastore.RingBuffer, images ImageStore, log logger.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		alerts: alerts,
		images: images,
		log:    log.Module(componentName),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ingest validates a raw JSON body and stores the alert it describes,
// returning the new alert id. Validation failures carry CategoryValidation
// and a client-facing message; image write failures carry CategoryFileIO.
// Nothing is recorded unless every step succeeds.
func (c *Coordinator) Ingest(ctx context.Context, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.New(err).
			Component(componentName).
			Category(errors.CategoryCancelled).
			Context("operation", "ingest").
			Build()
	}

	sub, reason, err := parseSubmission(body)
	if err != nil {
		c.metrics.AlertRejected(reason)
		return "", err
	}

	id := c.newID()
	alert := entities.Alert{
		ID:              id,
		Timestamp:       c.now().UnixMilli(),
		DeviceID:        sub.deviceID,
		EventType:       sub.eventType,
		ModelConfidence: sub.modelConfidence,
		OperatorVerdict: sub.operatorVerdict,
		Notes:           sub.notes,
	}

	if sub.imageBase64 != "" {
		name, err := c.images.Persist(id, sub.imageBase64)
		if err != nil {
			c.metrics.ImagePersistFailed()
			c.metrics.AlertRejected(observability.ReasonImagePersist)
			c.log.Error("failed to persist alert image",
				logger.String("alert_id", id),
				logger.String("event_type", sub.eventType),
				logger.Error(err))
			return "", err
		}
		if name != "" {
			alert.ImageFile = &name
		}
	}

	if evicted := c.alerts.InsertFront(alert); evicted {
		c.metrics.AlertEvicted()
	}
	c.metrics.AlertIngested(alert.OperatorVerdict)
	c.metrics.SetAlertsRetained(c.alerts.Len())

	if c.publisher != nil && !c.publisher.PublishAlert(alert) {
		c.log.Warn("alert event dropped", logger.String("alert_id", id))
	}

	c.log.Info("alert ingested",
		logger.String("alert_id", id),
		logger.String("event_type", alert.EventType),
		logger.String("verdict", alert.OperatorVerdict),
		logger.Bool("has_image", alert.HasImage()))
	return id, nil
}

// Recent returns up to limit alerts, newest first.
func (c *Coordinator) Recent(limit int) []entities.Alert {
	return c.alerts.Recent(limit)
}

// Capacity is the number of alerts retained before eviction.
func (c *Coordinator) Capacity() int {
	return c.alerts.Capacity()
}

// submission is a validated alert payload.
type submission struct {
	eventType       string
	operatorVerdict string
	deviceID        *string
	notes           *string
	modelConfidence *float64
	imageBase64     string
}

func parseSubmission(body []byte) (*submission, string, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		body = []byte("{}")
	}

	obj, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return nil, observability.ReasonInvalidBody, validationError(MsgInvalidBody, err)
	}

	eventType, err := obj.GetString("eventType")
	if err != nil || eventType == "" || !present(obj, "operatorVerdict") {
		return nil, observability.ReasonMissingFields, validationError(MsgRequiredFields, nil)
	}

	verdict, err := obj.GetString("operatorVerdict")
	if err != nil || !entities.IsValidVerdict(verdict) {
		return nil, observability.ReasonInvalidVerdict, validationError(MsgInvalidVerdict, nil)
	}

	sub := &submission{
		eventType:       eventType,
		operatorVerdict: verdict,
		deviceID:        optionalString(obj, "deviceId"),
		notes:           optionalString(obj, "notes"),
	}
	if v, err := obj.GetFloat64("modelConfidence"); err == nil {
		sub.modelConfidence = &v
	}
	if img, err := obj.GetString("imageBase64"); err == nil {
		sub.imageBase64 = img
	}
	return sub, "", nil
}

// present reports whether key holds a truthy value: not missing, null,
// false, zero or the empty string.
func present(obj *jason.Object, key string) bool {
	v, err := obj.GetValue(key)
	if err != nil || v.Null() == nil {
		return false
	}
	if s, err := v.String(); err == nil {
		return s != ""
	}
	if b, err := v.Boolean(); err == nil {
		return b
	}
	if f, err := v.Float64(); err == nil {
		return f != 0
	}
	return true
}

func optionalString(obj *jason.Object, key string) *string {
	s, err := obj.GetString(key)
	if err != nil {
		return nil
	}
	return &s
}

// validationError carries msg as its text so handlers can return it as is.
func validationError(msg string, cause error) error {
	b := errors.New(errors.NewStd(msg)).
		Component(componentName).
		Category(errors.CategoryValidation)
	if cause != nil {
		b = b.Context("cause", cause.Error())
	}
	return b.Build()
}
