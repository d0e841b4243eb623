package provisioning

import (
	"log/slog"
	"time"
)

// EventType classifies provisioning events.
type EventType string

const (
	// EventPhaseStarted indicates a provisioning phase has started.
	EventPhaseStarted EventType = "phase.started"
	// EventPhaseCompleted indicates a provisioning phase completed.
	EventPhaseCompleted EventType = "phase.completed"
	// EventPhaseSkipped indicates a phase was skipped because its
	// resource already exists in the record.
	EventPhaseSkipped EventType = "phase.skipped"
	// EventPhaseFailed indicates a provisioning phase failed.
	EventPhaseFailed EventType = "phase.failed"

	// EventResourceCreated indicates a cloud resource was created.
	EventResourceCreated EventType = "resource.created"
	// EventResourceDeleted indicates a cloud resource was deleted.
	EventResourceDeleted EventType = "resource.deleted"
)

// Event is a structured provisioning event.
type Event struct {
	Type      EventType
	Phase     string
	Message   string
	Resource  string
	Timestamp time.Time
}

// Observer receives structured events as provisioning progresses.
type Observer interface {
	Event(event Event)
}

// SlogObserver emits events through a structured logger.
type SlogObserver struct {
	logger *slog.Logger
}

// NewSlogObserver creates an Observer backed by the given logger.
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	return &SlogObserver{logger: logger}
}

// Event implements Observer.
func (o *SlogObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	attrs := []any{
		slog.String("type", string(event.Type)),
		slog.String("phase", event.Phase),
	}
	if event.Resource != "" {
		attrs = append(attrs, slog.String("resource", event.Resource))
	}
	if event.Type == EventPhaseFailed {
		o.logger.Error(event.Message, attrs...)
		return
	}
	o.logger.Info(event.Message, attrs...)
}

// NopObserver discards all events.
type NopObserver struct{}

// Event implements Observer.
func (NopObserver) Event(Event) {}
