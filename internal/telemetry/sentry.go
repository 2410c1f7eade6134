// Package telemetry forwards reportable errors to Sentry.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/campusguard/edge-collector/internal/errors"
)

const flushTimeout = 2 * time.Second

// Reporter implements errors.TelemetryReporter on top of a private Sentry hub.
type Reporter struct {
	hub *sentry.Hub
}

// New builds a reporter for dsn. An empty dsn is rejected; callers decide
// whether telemetry is enabled at all.
func New(dsn, environment, release string, sampleRate float64) (*Reporter, error) {
	if dsn == "" {
		return nil, errors.Newf("sentry dsn is empty").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return newWithOptions(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
		SampleRate:  sampleRate,
	})
}

func newWithOptions(opts sentry.ClientOptions) (*Reporter, error) {
	next := opts.BeforeSend
	opts.BeforeSend = func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
		scrub(event)
		if next != nil {
			return next(event, hint)
		}
		return event
	}

	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, errors.New(fmt.Errorf("sentry client: %w", err)).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &Reporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// scrub strips user identity and the shared device token from outgoing events.
func scrub(event *sentry.Event) {
	event.User = sentry.User{}
	if event.Request != nil {
		delete(event.Request.Headers, "X-Campusguard-Token")
		delete(event.Request.Headers, "x-campusguard-token")
		event.Request.Cookies = ""
	}
}

// ReportError sends err with its component and category as tags and its
// context map as the "error" context.
func (r *Reporter) ReportError(err *errors.EnhancedError) {
	if r == nil || err == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", err.GetComponent())
		scope.SetTag("category", string(err.GetCategory()))
		if ctx := err.GetContext(); len(ctx) > 0 {
			scope.SetContext("error", sentry.Context(ctx))
		}
		r.hub.CaptureException(err)
	})
}

// Flush waits briefly for queued events to be delivered.
func (r *Reporter) Flush() bool {
	if r == nil {
		return true
	}
	return r.hub.Flush(flushTimeout)
}
