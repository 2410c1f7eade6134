// Package observability exposes collector metrics in Prometheus format.
//
// Every method on *Metrics is safe to call on a nil receiver so components
// can run without metrics wired in.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "campusguard"

// Rejection reasons used as the "reason" label.
const (
	ReasonInvalidBody     = "invalid_body"
	ReasonMissingFields   = "missing_fields"
	ReasonInvalidVerdict  = "invalid_verdict"
	ReasonImagePersist    = "image_persist"
	ReasonUnauthenticated = "unauthenticated"
)

// Metrics holds the collector's Prometheus instruments on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	alertsIngested       *prometheus.CounterVec
	alertsRejected       *prometheus.CounterVec
	authFailures         prometheus.Counter
	imageBytesWritten    prometheus.Counter
	imagePersistFailures prometheus.Counter
	alertsRetained       prometheus.Gauge
	alertsEvicted        prometheus.Counter
	eventBusDropped      prometheus.Counter
	notifications        *prometheus.CounterVec
	mqttPublishes        *prometheus.CounterVec
	mqttConnected        prometheus.Gauge
}

// NewMetrics creates and registers all instruments, including the Go runtime
// and process collectors.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		alertsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_ingested_total",
			Help:      "Alerts accepted and stored, by operator verdict.",
		}, []string{"verdict"}),
		alertsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_rejected_total",
			Help:      "Alert submissions that were refused, by reason.",
		}, []string{"reason"}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Requests rejected for a missing or wrong token.",
		}),
		imageBytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_bytes_written_total",
			Help:      "Decoded image bytes written to the data directory.",
		}),
		imagePersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_persist_failures_total",
			Help:      "Image writes that failed and aborted ingestion.",
		}),
		alertsRetained: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alerts_retained",
			Help:      "Alerts currently held in memory.",
		}),
		alertsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_evicted_total",
			Help:      "Oldest alerts dropped to stay within capacity.",
		}),
		eventBusDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_bus_dropped_total",
			Help:      "Alert events dropped because the bus buffer was full.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries, by result.",
		}, []string{"result"}),
		mqttPublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_publishes_total",
			Help:      "Alerts forwarded to the MQTT broker, by result.",
		}, []string{"result"}),
		mqttConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connected",
			Help:      "1 while the MQTT forwarder is connected.",
		}),
	}

	cs := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.alertsIngested,
		m.alertsRejected,
		m.authFailures,
		m.imageBytesWritten,
		m.imagePersistFailures,
		m.alertsRetained,
		m.alertsEvicted,
		m.eventBusDropped,
		m.notifications,
		m.mqttPublishes,
		m.mqttConnected,
	}
	for _, c := range cs {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Registry returns the private registry, e.g. to add a DiskCollector.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) AlertIngested(verdict string) {
	if m == nil {
		return
	}
	m.alertsIngested.WithLabelValues(verdict).Inc()
}

func (m *Metrics) AlertRejected(reason string) {
	if m == nil {
		return
	}
	m.alertsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) AuthFailure() {
	if m == nil {
		return
	}
	m.authFailures.Inc()
}

func (m *Metrics) ImageWritten(bytes int) {
	if m == nil {
		return
	}
	m.imageBytesWritten.Add(float64(bytes))
}

func (m *Metrics) ImagePersistFailed() {
	if m == nil {
		return
	}
	m.imagePersistFailures.Inc()
}

// SetAlertsRetained records the current ring buffer size.
func (m *Metrics) SetAlertsRetained(n int) {
	if m == nil {
		return
	}
	m.alertsRetained.Set(float64(n))
}

func (m *Metrics) AlertEvicted() {
	if m == nil {
		return
	}
	m.alertsEvicted.Inc()
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.eventBusDropped.Inc()
}

// NotificationSent counts a delivery attempt; err == nil counts as success.
func (m *Metrics) NotificationSent(err error) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result(err)).Inc()
}

// MQTTPublished counts a forward attempt; err == nil counts as success.
func (m *Metrics) MQTTPublished(err error) {
	if m == nil {
		return
	}
	m.mqttPublishes.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) SetMQTTConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.mqttConnected.Set(1)
		return
	}
	m.mqttConnected.Set(0)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
