// Package mqtt forwards stored alerts to an MQTT broker so downstream
// systems (dashboards, SIEM bridges, home automation) can react to them.
package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/campusguard/edge-collector/internal/alerting"
	"github.com/campusguard/edge-collector/internal/conf"
	"github.com/campusguard/edge-collector/internal/datastore/entities"
	"github.com/campusguard/edge-collector/internal/errors"
	"github.com/campusguard/edge-collector/internal/logger"
	"github.com/campusguard/edge-collector/internal/observability"
)

const (
	componentName = "mqtt"
	// disconnectQuiesce is how long paho may spend finishing in-flight work.
	disconnectQuiesce = 250 // milliseconds
	// connectCooldown rejects connect storms from repeated Connect calls.
	connectCooldown = 5 * time.Second
)

// brokerClient is the part of paho.Client the forwarder needs.
type brokerClient interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload any) paho.Token
}

// Forwarder publishes every alert it receives as JSON to one topic.
type Forwarder struct {
	client         brokerClient
	broker         string
	topic          string
	qos            byte
	connectTimeout time.Duration
	publishTimeout time.Duration
	metrics        *observability.Metrics
	log            logger.Logger

	mu          sync.Mutex
	lastConnect time.Time
	now         func() time.Time
}

// NewForwarder creates a paho-backed forwarder. The client reconnects on its
// own after the first successful Connect.
func NewForwarder(settings *conf.MQTTSettings, metrics *observability.Metrics, log logger.Logger) *Forwarder {
	f := newForwarder(nil, settings, metrics, log)

	opts := paho.NewClientOptions()
	opts.AddBroker(settings.Broker)
	opts.SetClientID(settings.ClientID)
	if settings.Username != "" {
		opts.SetUsername(settings.Username)
		opts.SetPassword(settings.Password)
	}
	opts.SetConnectTimeout(settings.ConnectTimeout.Std())
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetCleanSession(true)
	opts.SetOnConnectHandler(func(paho.Client) {
		f.metrics.SetMQTTConnected(true)
		f.log.Info("connected to mqtt broker", logger.String("broker", f.broker))
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		f.metrics.SetMQTTConnected(false)
		f.log.Warn("mqtt connection lost", logger.String("broker", f.broker), logger.Error(err))
	})
	f.client = paho.NewClient(opts)
	return f
}

func newForwarder(client brokerClient, settings *conf.MQTTSettings, metrics *observability.Metrics, log logger.Logger) *Forwarder {
	return &Forwarder{
		client:         client,
		broker:         settings.Broker,
		topic:          settings.Topic,
		qos:            byte(settings.QoS), //nolint:gosec // validated to 0-2
		connectTimeout: settings.ConnectTimeout.Std(),
		publishTimeout: settings.PublishTimeout.Std(),
		metrics:        metrics,
		log:            log.Module(componentName),
		now:            time.Now,
	}
}

// Connect dials the broker and waits until the connection is up, the
// connect timeout passes or ctx is done.
func (f *Forwarder) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	if !f.lastConnect.IsZero() && f.now().Sub(f.lastConnect) < connectCooldown {
		f.mu.Unlock()
		// Not a broker failure; kept out of telemetry.
		return errors.Newf("connection attempt too recent").
			Component(componentName).
			Category(errors.CategoryValidation).
			Context("operation", "connect").
			Build()
	}
	f.lastConnect = f.now()
	f.mu.Unlock()

	token := f.client.Connect()

	var timeout <-chan time.Time
	if f.connectTimeout > 0 {
		timer := time.NewTimer(f.connectTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return f.networkError(err, "connect")
		}
		return nil
	case <-timeout:
		return f.networkError(errors.NewStd("connect timed out"), "connect")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConnectWithRetry keeps calling Connect every interval until it succeeds
// or ctx is done. paho only auto-reconnects after a first successful
// connection, so a broker that is down at startup needs this loop.
func (f *Forwarder) ConnectWithRetry(ctx context.Context, interval time.Duration) error {
	interval = max(interval, connectCooldown)
	for {
		err := f.Connect(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.log.Warn("mqtt connect failed, retrying",
			logger.String("broker", f.broker),
			logger.Duration("retry_in", interval),
			logger.Error(err))

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Disconnect closes the connection and stops reconnect attempts.
func (f *Forwarder) Disconnect() {
	f.client.Disconnect(disconnectQuiesce)
	f.metrics.SetMQTTConnected(false)
}

// IsConnected reports whether the broker connection is up.
func (f *Forwarder) IsConnected() bool {
	return f.client.IsConnected()
}

// HandleEvent is an alerting.AlertEventHandler. Alerts that arrive while
// the broker is unreachable are skipped; the in-memory history remains the
// source of truth.
func (f *Forwarder) HandleEvent(event *alerting.AlertEvent) {
	if !f.client.IsConnected() {
		f.log.Debug("mqtt not connected, alert not forwarded",
			logger.String("alert_id", event.Alert.ID))
		return
	}
	err := f.Publish(&event.Alert)
	f.metrics.MQTTPublished(err)
	if err != nil {
		f.log.Error("failed to forward alert",
			logger.String("alert_id", event.Alert.ID),
			logger.String("topic", f.topic),
			logger.Error(err))
	}
}

// Publish sends one alert and waits for the broker acknowledgement
// according to the configured QoS.
func (f *Forwarder) Publish(alert *entities.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryGeneric).
			Context("operation", "marshal_alert").
			Build()
	}

	token := f.client.Publish(f.topic, f.qos, false, payload)
	if f.publishTimeout <= 0 {
		token.Wait()
	} else if !token.WaitTimeout(f.publishTimeout) {
		return f.networkError(errors.NewStd("publish timed out"), "publish")
	}
	if err := token.Error(); err != nil {
		return f.networkError(err, "publish")
	}
	return nil
}

func (f *Forwarder) networkError(err error, op string) error {
	return errors.New(err).
		Component(componentName).
		Category(errors.CategoryNetwork).
		Context("operation", op).
		Context("broker", f.broker).
		Context("topic", f.topic).
		Build()
}
