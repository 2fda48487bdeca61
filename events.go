package easel

import (
	"github.com/google/uuid"

	"github.com/gogpu/easel/internal/gpu"
)

// EventKind classifies engine notifications.
type EventKind uint8

const (
	// EventStrokeCommitted fires when a finished stroke lands in its
	// layer's raster.
	EventStrokeCommitted EventKind = iota
	// EventDegraded warns that a layer's GPU allocation runs at half
	// resolution. Painting continues; only display sharpness drops.
	EventDegraded
	// EventDeviceLost reports that all GPU resources were dropped.
	EventDeviceLost
	// EventRecovered reports that replay rebuilt every layer after a
	// device loss.
	EventRecovered
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventStrokeCommitted:
		return "stroke_committed"
	case EventDegraded:
		return "degraded"
	case EventDeviceLost:
		return "device_lost"
	case EventRecovered:
		return "recovered"
	default:
		return "unknown"
	}
}

// Event is one engine notification. Layer and Stroke are set when the
// event concerns a specific layer or stroke.
type Event struct {
	Kind    EventKind
	Layer   uuid.UUID
	Stroke  uuid.UUID
	Message string
}

// EventHandler receives engine events. Handlers run on the goroutine
// that triggered the event and must not call back into the engine.
type EventHandler func(Event)

// resourceEvent translates a GPU resource event into an engine event.
func resourceEvent(e gpu.Event) Event {
	kind := EventDegraded
	switch e.Kind {
	case gpu.EventLost:
		kind = EventDeviceLost
	case gpu.EventRecovered:
		kind = EventRecovered
	}
	return Event{Kind: kind, Layer: e.Logical, Message: e.Message}
}
