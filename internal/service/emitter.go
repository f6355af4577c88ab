package service

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Report lifecycle events.
const (
	EventReportSaved  = "report:saved"
	EventReportFailed = "report:failed"
)

// EventEmitter receives report lifecycle events. The CLI logs them; an
// embedding application can forward them to its own bus.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// LogEmitter writes every event to a zap logger.
type LogEmitter struct {
	Log *zap.Logger
}

func (e LogEmitter) Emit(_ context.Context, event string, data any) {
	e.Log.Info("event", zap.String("event", event), zap.Any("data", data))
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Recorded returns a copy of the events emitted so far.
func (m *MockEmitter) Recorded() []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EmittedEvent(nil), m.Events...)
}
