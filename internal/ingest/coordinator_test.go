package ingest

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusguard/edge-collector/internal/datastore"
	"github.com/campusguard/edge-collector/internal/datastore/entities"
	"github.com/campusguard/edge-collector/internal/errors"
	"github.com/campusguard/edge-collector/internal/imagestore"
	"github.com/campusguard/edge-collector/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

type recordingPublisher struct {
	mu     sync.Mutex
	alerts []entities.Alert
}

func (p *recordingPublisher) PublishAlert(alert entities.Alert) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, alert)
	return true
}

type failingStore struct{}

func (failingStore) Persist(id, _ string) (string, error) {
	return "", errors.Newf("disk full").
		Component("imagestore").
		Category(errors.CategoryFileIO).
		Context("file", id+".jpg").
		Build()
}

func newTestCoordinator(t *testing.T, opts ...Option) (*Coordinator, *datastore.RingBuffer, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "images")
	rb := datastore.NewRingBuffer(datastore.DefaultCapacity)
	fixed := time.UnixMilli(1700000000123)
	opts = append([]Option{WithClock(func() time.Time { return fixed })}, opts...)
	return NewCoordinator(rb, imagestore.New(dir), testLogger(), opts...), rb, dir
}

func TestIngest_TailgatingScenario(t *testing.T) {
	t.Parallel()

	c, rb, _ := newTestCoordinator(t)

	id, err := c.Ingest(t.Context(), []byte(`{"eventType":"tailgating","operatorVerdict":"YES","modelConfidence":0.91}`))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got := rb.Recent(1)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, "tailgating", got[0].EventType)
	assert.Equal(t, entities.VerdictYes, got[0].OperatorVerdict)
	require.NotNil(t, got[0].ModelConfidence)
	assert.InDelta(t, 0.91, *got[0].ModelConfidence, 1e-9)
	assert.Nil(t, got[0].ImageFile)
	assert.Nil(t, got[0].DeviceID)
	assert.Equal(t, int64(1700000000123), got[0].Timestamp)
}

func TestIngest_GeneratesUniqueIDs(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestCoordinator(t)
	seen := make(map[string]bool)
	for range 50 {
		id, err := c.Ingest(t.Context(), []byte(`{"eventType":"motion","operatorVerdict":"MAYBE"}`))
		require.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestIngest_ImageRoundTrip(t *testing.T) {
	t.Parallel()

	c, rb, dir := newTestCoordinator(t, WithIDGenerator(func() string { return "fixed-id" }))
	raw := []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x43, 0x00}
	body := fmt.Sprintf(`{"eventType":"intrusion","operatorVerdict":"YES","imageBase64":"data:image/jpeg;base64,%s"}`,
		base64.StdEncoding.EncodeToString(raw))

	id, err := c.Ingest(t.Context(), []byte(body))
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", id)

	alert := rb.Recent(1)[0]
	require.NotNil(t, alert.ImageFile)
	assert.Equal(t, "fixed-id.jpg", *alert.ImageFile)

	stored, err := os.ReadFile(filepath.Join(dir, "fixed-id.jpg"))
	require.NoError(t, err)
	assert.Equal(t, raw, stored)
}

func TestIngest_ValidationFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"missing eventType", `{"operatorVerdict":"YES"}`, MsgRequiredFields},
		{"missing verdict", `{"eventType":"tailgating"}`, MsgRequiredFields},
		{"empty body", ``, MsgRequiredFields},
		{"empty object", `{}`, MsgRequiredFields},
		{"empty eventType", `{"eventType":"","operatorVerdict":"YES"}`, MsgRequiredFields},
		{"null verdict", `{"eventType":"x","operatorVerdict":null}`, MsgRequiredFields},
		{"empty verdict", `{"eventType":"x","operatorVerdict":""}`, MsgRequiredFields},
		{"false verdict", `{"eventType":"x","operatorVerdict":false}`, MsgRequiredFields},
		{"numeric eventType", `{"eventType":5,"operatorVerdict":"YES"}`, MsgRequiredFields},
		{"lowercase verdict", `{"eventType":"x","operatorVerdict":"maybe"}`, MsgInvalidVerdict},
		{"unknown verdict", `{"eventType":"x","operatorVerdict":"NO"}`, MsgInvalidVerdict},
		{"numeric verdict", `{"eventType":"x","operatorVerdict":1}`, MsgInvalidVerdict},
		{"malformed json", `{"eventType":`, MsgInvalidBody},
		{"array body", `[1,2]`, MsgInvalidBody},
		{"scalar body", `"YES"`, MsgInvalidBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, rb, dir := newTestCoordinator(t)

			id, err := c.Ingest(t.Context(), []byte(tt.body))
			require.Error(t, err)
			assert.Empty(t, id)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
			assert.Equal(t, 0, rb.Len(), "rejected alerts must not be recorded")

			_, statErr := os.Stat(dir)
			assert.True(t, os.IsNotExist(statErr), "no image written")
		})
	}
}

func TestIngest_OptionalFieldTypes(t *testing.T) {
	t.Parallel()

	c, rb, _ := newTestCoordinator(t)
	body := `{"eventType":"loitering","operatorVerdict":"MAYBE",
		"deviceId":42,"notes":["a"],"modelConfidence":"0.9","imageBase64":7}`

	_, err := c.Ingest(t.Context(), []byte(body))
	require.NoError(t, err)

	alert := rb.Recent(1)[0]
	assert.Nil(t, alert.DeviceID, "non-string deviceId dropped")
	assert.Nil(t, alert.Notes, "non-string notes dropped")
	assert.Nil(t, alert.ModelConfidence, "non-numeric confidence dropped")
	assert.Nil(t, alert.ImageFile, "non-string image ignored")
}

func TestIngest_KeepsStringOptionals(t *testing.T) {
	t.Parallel()

	c, rb, _ := newTestCoordinator(t)
	_, err := c.Ingest(t.Context(), []byte(`{"eventType":"e","operatorVerdict":"YES","deviceId":"cam-3","notes":"","modelConfidence":0,"imageBase64":""}`))
	require.NoError(t, err)

	alert := rb.Recent(1)[0]
	require.NotNil(t, alert.DeviceID)
	assert.Equal(t, "cam-3", *alert.DeviceID)
	require.NotNil(t, alert.Notes)
	assert.Empty(t, *alert.Notes)
	require.NotNil(t, alert.ModelConfidence)
	assert.Zero(t, *alert.ModelConfidence)
	assert.Nil(t, alert.ImageFile, "empty image string is not stored")
}

func TestIngest_PersistFailureRecordsNothing(t *testing.T) {
	t.Parallel()

	rb := datastore.NewRingBuffer(10)
	pub := &recordingPublisher{}
	c := NewCoordinator(rb, failingStore{}, testLogger(), WithPublisher(pub))

	_, err := c.Ingest(t.Context(), []byte(`{"eventType":"e","operatorVerdict":"YES","imageBase64":"aGk="}`))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
	assert.Equal(t, 0, rb.Len())
	assert.Empty(t, pub.alerts)
}

func TestIngest_PublishesStoredAlert(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	c, _, _ := newTestCoordinator(t, WithPublisher(pub))

	id, err := c.Ingest(t.Context(), []byte(`{"eventType":"tailgating","operatorVerdict":"YES"}`))
	require.NoError(t, err)

	require.Len(t, pub.alerts, 1)
	assert.Equal(t, id, pub.alerts[0].ID)
}

func TestIngest_CancelledContext(t *testing.T) {
	t.Parallel()

	c, rb, _ := newTestCoordinator(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := c.Ingest(ctx, []byte(`{"eventType":"e","operatorVerdict":"YES"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancelled))
	assert.Equal(t, 0, rb.Len())
}

func TestIngest_OverCapacityKeepsNewest(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestCoordinator(t)
	var ids []string
	for i := range datastore.DefaultCapacity + 1 {
		id, err := c.Ingest(t.Context(), fmt.Appendf(nil, `{"eventType":"e%d","operatorVerdict":"MAYBE"}`, i))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	got := c.Recent(datastore.DefaultCapacity)
	require.Len(t, got, datastore.DefaultCapacity)
	assert.Equal(t, ids[len(ids)-1], got[0].ID)
	assert.Equal(t, ids[1], got[len(got)-1].ID)
	for _, a := range got {
		assert.NotEqual(t, ids[0], a.ID, "first alert must be evicted")
	}
}
