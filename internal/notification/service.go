// Package notification pushes rendered alert notifications to external
// services through shoutrrr service URLs (ntfy, Telegram, Discord, SMTP...).
package notification

import (
	"context"
	"strings"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/campusguard/edge-collector/internal/errors"
	"github.com/campusguard/edge-collector/internal/logger"
	"github.com/campusguard/edge-collector/internal/observability"
)

const componentName = "notification"

// Sender is the subset of the shoutrrr router used by Service.
type Sender interface {
	Send(message string, params *types.Params) []error
}

// Service delivers notifications to every configured service URL.
type Service struct {
	sender   Sender
	services int
	metrics  *observability.Metrics
	log      logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics counts every delivery attempt.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService builds a shoutrrr router for urls. Blank entries are ignored;
// an empty list or an unparseable URL is a configuration error.
func NewService(urls []string, log logger.Logger, opts ...Option) (*Service, error) {
	clean := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			clean = append(clean, u)
		}
	}
	if len(clean) == 0 {
		return nil, errors.Newf("no notification urls configured").
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Build()
	}

	router, err := shoutrrr.CreateSender(clean...)
	if err != nil {
		// URLs may embed credentials and are kept out of the context.
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Context("services", len(clean)).
			Build()
	}
	return newService(router, len(clean), log, opts...), nil
}

// NewServiceWithSender wraps an existing sender, mainly for tests.
func NewServiceWithSender(sender Sender, log logger.Logger, opts ...Option) *Service {
	return newService(sender, 1, log, opts...)
}

func newService(sender Sender, services int, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		sender:   sender,
		services: services,
		log:      log.Module(componentName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify sends title and message to every service. It returns when all
// services answered or ctx is done, whichever comes first. A sender that
// outlives ctx finishes in the background and its result is only logged.
func (s *Service) Notify(ctx context.Context, title, message string) (err error) {
	defer func() { s.metrics.NotificationSent(err) }()

	params := types.Params{}
	if title != "" {
		params["title"] = title
	}

	done := make(chan error, 1)
	go func() {
		done <- joinSendErrors(s.sender.Send(message, &params))
	}()

	select {
	case sendErr := <-done:
		if sendErr != nil {
			return errors.New(sendErr).
				Component(componentName).
				Category(errors.CategoryNetwork).
				Context("services", s.services).
				Build()
		}
		s.log.Debug("notification sent", logger.Int("services", s.services))
		return nil
	case <-ctx.Done():
		go func() {
			if err := <-done; err != nil {
				s.log.Warn("late notification failure", logger.Error(err))
			}
		}()
		return errors.New(ctx.Err()).
			Component(componentName).
			Category(errors.CategoryNetwork).
			Context("services", s.services).
			Build()
	}
}

// joinSendErrors collapses the per-service results of a router send.
func joinSendErrors(errs []error) error {
	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	return errors.Join(failed...)
}
