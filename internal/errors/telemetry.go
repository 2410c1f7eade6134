package errors

import (
	"sync"
	"sync/atomic"
	"time"
)

// reportInterval is the minimum time between two reports of the same
// component, category and message. Retry loops would otherwise report every
// attempt.
const reportInterval = 5 * time.Minute

// maxTrackedReports bounds the throttle map; expired keys are pruned first.
const maxTrackedReports = 1000

// TelemetryReporter receives errors worth reporting to an external tracker.
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
}

type reporterHolder struct {
	reporter TelemetryReporter
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// allow reports whether ee may be forwarded now and records the attempt.
func (h *reporterHolder) allow(ee *EnhancedError) bool {
	key := ee.component + "|" + string(ee.category) + "|" + ee.Error()
	now := h.now()

	h.mu.Lock()
	defer h.mu.Unlock()

	if at, ok := h.last[key]; ok && now.Sub(at) < reportInterval {
		return false
	}
	if len(h.last) >= maxTrackedReports {
		for k, at := range h.last {
			if now.Sub(at) >= reportInterval {
				delete(h.last, k)
			}
		}
		if len(h.last) >= maxTrackedReports {
			return false
		}
	}
	h.last[key] = now
	return true
}

var telemetryReporter atomic.Pointer[reporterHolder]

// SetTelemetryReporter installs the process-wide reporter. Passing nil
// disables reporting. Identical errors are reported at most once per
// reportInterval.
func SetTelemetryReporter(r TelemetryReporter) {
	setTelemetryReporter(r, time.Now)
}

func setTelemetryReporter(r TelemetryReporter, now func() time.Time) {
	if r == nil {
		telemetryReporter.Store(nil)
		return
	}
	telemetryReporter.Store(&reporterHolder{
		reporter: r,
		now:      now,
		last:     make(map[string]time.Time),
	})
}

// Validation, authorization and not-found errors are caller mistakes and
// cancellations are caller decisions; none of them are reported.
var reportableCategories = map[ErrorCategory]bool{
	CategoryFileIO:        true,
	CategoryConfiguration: true,
	CategoryNetwork:       true,
	CategoryGeneric:       true,
}

func report(ee *EnhancedError) {
	h := telemetryReporter.Load()
	if h == nil || !reportableCategories[ee.category] || !h.allow(ee) {
		return
	}
	h.reporter.ReportError(ee)
}
