// Package serve implements "campusguard serve": it wires every component and
// runs the HTTP server until the context is cancelled.
package serve

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/campusguard/edge-collector/internal/alerting"
	"github.com/campusguard/edge-collector/internal/api"
	"github.com/campusguard/edge-collector/internal/auth"
	"github.com/campusguard/edge-collector/internal/conf"
	"github.com/campusguard/edge-collector/internal/datastore"
	"github.com/campusguard/edge-collector/internal/errors"
	"github.com/campusguard/edge-collector/internal/imagestore"
	"github.com/campusguard/edge-collector/internal/ingest"
	"github.com/campusguard/edge-collector/internal/logger"
	"github.com/campusguard/edge-collector/internal/mqtt"
	"github.com/campusguard/edge-collector/internal/notification"
	"github.com/campusguard/edge-collector/internal/observability"
	"github.com/campusguard/edge-collector/internal/telemetry"
)

const (
	mqttRetryInterval      = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// Command returns the serve subcommand.
func Command(load func() (*conf.Settings, logger.Logger, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the alert collector",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, log, err := load()
			if err != nil {
				return err
			}
			return Run(cmd.Context(), settings, log)
		},
	}
}

// Run starts the collector and blocks until ctx is cancelled or the HTTP
// server fails. Shutdown drains in order: HTTP, event bus, MQTT, telemetry.
func Run(ctx context.Context, settings *conf.Settings, log logger.Logger) error {
	serveLog := log.Module("serve")

	reporter := initTelemetry(settings, serveLog)
	defer reporter.Flush()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return errors.New(err).
			Component("serve").
			Category(errors.CategoryGeneric).
			Context("operation", "init_metrics").
			Build()
	}
	if settings.Metrics.Enabled {
		metrics.Registry().MustRegister(observability.NewDiskCollector(
			settings.Storage.DataDir, settings.Metrics.DiskSampleInterval.Std(), nil, log))
	}

	images := imagestore.New(settings.ImageDir(), imagestore.WithMetrics(metrics))
	if err := images.EnsureDir(); err != nil {
		return err
	}

	coordOpts := []ingest.Option{ingest.WithMetrics(metrics)}

	var bus *alerting.AlertEventBus
	if settings.Alerting.Enabled || settings.MQTT.Enabled {
		bus = alerting.NewAlertEventBus(alerting.WithDropHook(metrics.EventDropped))
		coordOpts = append(coordOpts, ingest.WithPublisher(bus))
	}

	var engine *alerting.Engine
	if settings.Alerting.Enabled {
		if engine, err = initAlerting(settings, bus, metrics, log); err != nil {
			bus.Stop()
			return err
		}
	}

	var forwarder *mqtt.Forwarder
	if settings.MQTT.Enabled {
		forwarder = mqtt.NewForwarder(&settings.MQTT, metrics, log)
		bus.Subscribe(forwarder.HandleEvent)
	}

	coordinator := ingest.NewCoordinator(
		datastore.NewRingBuffer(datastore.DefaultCapacity), images, log, coordOpts...)

	deps := api.Dependencies{
		Ingest:  coordinator,
		Auth:    auth.NewTokenAuthenticator(settings.Auth.Token),
		Images:  images,
		Metrics: metrics,
	}
	if engine != nil {
		deps.Rules = engine
	}
	server, err := api.NewServer(settings, deps, log)
	if err != nil {
		if bus != nil {
			bus.Stop()
		}
		return err
	}

	serveLog.Info("CampusGuard Alert Server listening",
		logger.String("addr", server.Addr()),
		logger.String("token_header", conf.TokenHeader),
		logger.String("image_dir", images.Dir()))
	if settings.UsingDefaultToken() {
		serveLog.Warn("using the default shared token; set CAMPUSGUARD_TOKEN before deploying")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		timeout := settings.Server.ShutdownTimeout.Std()
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		serveLog.Info("shutting down http server")
		return server.Shutdown(shutdownCtx)
	})
	if forwarder != nil {
		g.Go(func() error {
			if err := forwarder.ConnectWithRetry(gctx, mqttRetryInterval); err != nil && gctx.Err() == nil {
				serveLog.Warn("mqtt forwarding unavailable", logger.Error(err))
			}
			return nil
		})
	}

	err = g.Wait()

	if bus != nil {
		bus.Stop()
		if dropped := bus.Dropped(); dropped > 0 {
			serveLog.Warn("alert events dropped during run", logger.Uint64("dropped", dropped))
		}
	}
	if forwarder != nil {
		forwarder.Disconnect()
	}
	serveLog.Info("collector stopped")
	return err
}

// initAlerting returns a nil engine when no notification URLs are set.
func initAlerting(settings *conf.Settings, bus *alerting.AlertEventBus, metrics *observability.Metrics, log logger.Logger) (*alerting.Engine, error) {
	if len(settings.Notification.URLs) == 0 {
		log.Module("serve").Info("no notification urls configured; alert rules are not evaluated")
		return nil, nil
	}

	svc, err := notification.NewService(settings.Notification.URLs, log, notification.WithMetrics(metrics))
	if err != nil {
		return nil, err
	}
	dispatcher := alerting.NewActionDispatcher(svc, settings.Notification.SendTimeout.Std(), log.Module("alerting"))
	return alerting.Initialize(settings, bus, dispatcher.Dispatch, log.Module("alerting")), nil
}

// initTelemetry installs the Sentry reporter when enabled. The returned
// reporter may be nil; its methods are nil-safe.
func initTelemetry(settings *conf.Settings, log logger.Logger) *telemetry.Reporter {
	if !settings.Sentry.Enabled {
		return nil
	}
	reporter, err := telemetry.New(settings.Sentry.DSN, settings.Sentry.Environment, settings.Main.Name, settings.Sentry.SampleRate)
	if err != nil {
		log.Warn("error telemetry disabled", logger.Error(err))
		return nil
	}
	errors.SetTelemetryReporter(reporter)
	log.Info("error telemetry enabled", logger.String("environment", settings.Sentry.Environment))
	return reporter
}
