package alerting

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/campusguard/edge-collector/internal/datastore/entities"
)

// AlertEvent carries a stored alert to bus subscribers.
type AlertEvent struct {
	Alert     entities.Alert
	Timestamp time.Time
}

// Properties flattens the alert into the keys rules and templates refer to.
// Optional fields are only present when the alert carries them.
func (e *AlertEvent) Properties() map[string]any {
	a := &e.Alert
	props := map[string]any{
		PropertyID:              a.ID,
		PropertyEventType:       a.EventType,
		PropertyOperatorVerdict: a.OperatorVerdict,
		PropertyHasImage:        a.HasImage(),
	}
	if a.DeviceID != nil {
		props[PropertyDeviceID] = *a.DeviceID
	}
	if a.Notes != nil {
		props[PropertyNotes] = *a.Notes
	}
	if a.ModelConfidence != nil {
		props[PropertyModelConfidence] = *a.ModelConfidence
	}
	if a.ImageFile != nil {
		props[PropertyImageFile] = *a.ImageFile
	}
	return props
}

// AlertEventHandler processes alert events.
type AlertEventHandler func(event *AlertEvent)

const (
	// eventBusBufferSize is the capacity of the async event channel.
	// Events are dropped if the buffer is full to avoid blocking callers.
	eventBusBufferSize = 1000
)

// AlertEventBus is an async pub/sub for alert events. Publish never blocks:
// events go to a buffered channel drained by one worker goroutine, so the
// ingestion path is never slowed by notification or broker I/O.
type AlertEventBus struct {
	handlers []AlertEventHandler
	mu       sync.RWMutex
	eventCh  chan *AlertEvent
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	dropped atomic.Uint64
	onDrop  func()
}

// BusOption configures an AlertEventBus.
type BusOption func(*AlertEventBus)

// WithDropHook registers fn to be called whenever an event is dropped.
func WithDropHook(fn func()) BusOption {
	return func(b *AlertEventBus) { b.onDrop = fn }
}

// WithBufferSize overrides the channel capacity.
func WithBufferSize(n int) BusOption {
	return func(b *AlertEventBus) {
		if n > 0 {
			b.eventCh = make(chan *AlertEvent, n)
		}
	}
}

// NewAlertEventBus creates a new alert event bus and starts its worker.
func NewAlertEventBus(opts ...BusOption) *AlertEventBus {
	b := &AlertEventBus{
		handlers: make([]AlertEventHandler, 0),
		eventCh:  make(chan *AlertEvent, eventBusBufferSize),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.processLoop()
	return b
}

// Subscribe registers a handler for alert events.
func (b *AlertEventBus) Subscribe(handler AlertEventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Publish enqueues an event for async processing and reports whether it was
// accepted. Events are discarded when the buffer is full or after Stop.
func (b *AlertEventBus) Publish(event *AlertEvent) bool {
	select {
	case <-b.stopCh:
		return false
	default:
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
		return true
	default:
		b.dropped.Add(1)
		if b.onDrop != nil {
			b.onDrop()
		}
		return false
	}
}

// PublishAlert wraps a stored alert in an event and publishes it.
func (b *AlertEventBus) PublishAlert(alert entities.Alert) bool {
	return b.Publish(&AlertEvent{Alert: alert, Timestamp: time.Now()})
}

// Dropped returns how many events were discarded because the buffer was full.
func (b *AlertEventBus) Dropped() uint64 {
	return b.dropped.Load()
}

// Stop drains queued events and waits for the worker to exit. Safe to call
// multiple times.
func (b *AlertEventBus) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	<-b.doneCh
}

// processLoop drains the event channel and dispatches to handlers.
func (b *AlertEventBus) processLoop() {
	defer close(b.doneCh)
	for {
		select {
		case event := <-b.eventCh:
			b.dispatch(event)
		case <-b.stopCh:
			for {
				select {
				case event := <-b.eventCh:
					b.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (b *AlertEventBus) dispatch(event *AlertEvent) {
	b.mu.RLock()
	handlers := make([]AlertEventHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.safeCall(handler, event)
	}
}

// safeCall invokes a handler with panic recovery so a panicking handler
// cannot kill the event bus goroutine.
func (b *AlertEventBus) safeCall(handler AlertEventHandler, event *AlertEvent) {
	defer func() {
		// Handlers do their own logging; the bus only has to survive.
		recover() //nolint:errcheck // swallowed to keep the worker alive
	}()
	handler(event)
}
