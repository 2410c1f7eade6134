package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusguard/edge-collector/internal/logger"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.AlertIngested("YES")
	m.AlertIngested("YES")
	m.AlertIngested("MAYBE")
	m.AlertRejected(ReasonInvalidVerdict)
	m.AuthFailure()
	m.ImageWritten(1024)
	m.ImagePersistFailed()
	m.SetAlertsRetained(200)
	m.AlertEvicted()
	m.EventDropped()
	m.NotificationSent(nil)
	m.NotificationSent(errors.New("down"))
	m.MQTTPublished(nil)
	m.SetMQTTConnected(true)

	assert.InDelta(t, 2, testutil.ToFloat64(m.alertsIngested.WithLabelValues("YES")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.alertsIngested.WithLabelValues("MAYBE")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.alertsRejected.WithLabelValues(ReasonInvalidVerdict)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.authFailures), 0)
	assert.InDelta(t, 1024, testutil.ToFloat64(m.imageBytesWritten), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.imagePersistFailures), 0)
	assert.InDelta(t, 200, testutil.ToFloat64(m.alertsRetained), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.alertsEvicted), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.eventBusDropped), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.notifications.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.notifications.WithLabelValues("error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.mqttPublishes.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.mqttConnected), 0)

	m.SetMQTTConnected(false)
	assert.InDelta(t, 0, testutil.ToFloat64(m.mqttConnected), 0)
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.AlertIngested("YES")
		m.AlertRejected(ReasonMissingFields)
		m.AuthFailure()
		m.ImageWritten(1)
		m.ImagePersistFailed()
		m.SetAlertsRetained(1)
		m.AlertEvicted()
		m.EventDropped()
		m.NotificationSent(nil)
		m.MQTTPublished(nil)
		m.SetMQTTConnected(true)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_HandlerExposesNames(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	m.AlertIngested("YES")
	m.AuthFailure()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `campusguard_alerts_ingested_total{verdict="YES"} 1`)
	assert.Contains(t, body, "campusguard_auth_failures_total 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestDiskCollector(t *testing.T) {
	t.Parallel()

	calls := 0
	usage := func(path string) (*disk.UsageStat, error) {
		calls++
		return &disk.UsageStat{Path: path, Total: 1000, Free: 400, Used: 600}, nil
	}
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	c := NewDiskCollector("/data", time.Minute, usage, log)
	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }

	expected := `
# HELP campusguard_data_dir_free_bytes Free space on the filesystem holding the data directory.
# TYPE campusguard_data_dir_free_bytes gauge
campusguard_data_dir_free_bytes{path="/data"} 400
# HELP campusguard_data_dir_total_bytes Size of the filesystem holding the data directory.
# TYPE campusguard_data_dir_total_bytes gauge
campusguard_data_dir_total_bytes{path="/data"} 1000
# HELP campusguard_data_dir_used_bytes Used space on the filesystem holding the data directory.
# TYPE campusguard_data_dir_used_bytes gauge
campusguard_data_dir_used_bytes{path="/data"} 600
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
	assert.Equal(t, 3, testutil.CollectAndCount(c))
	assert.Equal(t, 1, calls, "second scrape within the interval reuses the sample")

	now = now.Add(2 * time.Minute)
	testutil.CollectAndCount(c)
	assert.Equal(t, 2, calls)
}

func TestDiskCollector_ErrorEmitsNothing(t *testing.T) {
	t.Parallel()

	usage := func(string) (*disk.UsageStat, error) { return nil, errors.New("statfs failed") }
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	c := NewDiskCollector("/missing", time.Minute, usage, log)

	assert.Equal(t, 0, testutil.CollectAndCount(c))
}

func TestDiskCollector_RealFilesystem(t *testing.T) {
	t.Parallel()

	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	c := NewDiskCollector(t.TempDir(), time.Minute, nil, log)
	assert.Equal(t, 3, testutil.CollectAndCount(c))
}

func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestMetrics_RegistryGather(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	m.AlertRejected(ReasonMissingFields)
	m.AlertRejected(ReasonMissingFields)
	m.SetAlertsRetained(7)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	rejected := findFamily(families, "campusguard_alerts_rejected_total")
	require.NotNil(t, rejected)
	assert.Equal(t, dto.MetricType_COUNTER, rejected.GetType())
	require.Len(t, rejected.GetMetric(), 1)
	metric := rejected.GetMetric()[0]
	require.Len(t, metric.GetLabel(), 1)
	assert.Equal(t, "reason", metric.GetLabel()[0].GetName())
	assert.Equal(t, ReasonMissingFields, metric.GetLabel()[0].GetValue())
	assert.InDelta(t, 2, metric.GetCounter().GetValue(), 0)

	retained := findFamily(families, "campusguard_alerts_retained")
	require.NotNil(t, retained)
	assert.InDelta(t, 7, retained.GetMetric()[0].GetGauge().GetValue(), 0)
}
