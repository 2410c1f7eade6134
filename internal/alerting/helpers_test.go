package alerting

import (
	"io"
	"time"

	"github.com/campusguard/edge-collector/internal/datastore/entities"
	"github.com/campusguard/edge-collector/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

func ptr[T any](v T) *T { return &v }

func testEvent(eventType, verdict string) *AlertEvent {
	return &AlertEvent{
		Alert: entities.Alert{
			ID:              "alert-1",
			Timestamp:       1700000000000,
			EventType:       eventType,
			OperatorVerdict: verdict,
		},
		Timestamp: time.Unix(1700000000, 0),
	}
}
