package procreg

import (
	"time"

	"github.com/google/uuid"
)

// EventKind distinguishes listener events.
type EventKind int

const (
	// EventRegister fires after a successful registration.
	EventRegister EventKind = iota + 1
	// EventUnregister fires after an explicit unregister or a crash purge.
	EventUnregister
)

// String returns the kind name.
func (k EventKind) String() string {
	switch k {
	case EventRegister:
		return "register"
	case EventUnregister:
		return "unregister"
	default:
		return "unknown"
	}
}

// Event describes one registry mutation delivered to listeners.
type Event struct {
	Kind     EventKind
	Registry string
	Key      any
	// PartitionRef identifies the partition holding the entry.
	PartitionRef uuid.UUID
	// Value is set for register events only.
	Value any
	Time  time.Time
}

// Listener observes register and unregister events.
//
// Notify runs on the goroutine performing the triggering operation, so
// implementations must not block: queue and return, or drop. ChanListener
// implements this contract; a custom Listener that blocks stalls the
// registration it observes.
type Listener interface {
	Notify(Event)
}

// ChanListener is a buffered, drop-on-overflow listener.
type ChanListener struct {
	events chan Event
	onDrop func(Event)
}

// ChanListenerOption configures a ChanListener.
type ChanListenerOption func(*ChanListener)

// WithDropHook installs a callback invoked for each dropped event.
// The hook runs on the notifying goroutine and must be fast.
func WithDropHook(fn func(Event)) ChanListenerOption {
	return func(l *ChanListener) {
		l.onDrop = fn
	}
}

// NewChanListener creates a listener whose events are read from Events().
// Events arriving while the buffer is full are silently dropped; the
// registry is never blocked or failed by a slow consumer.
func NewChanListener(buffer int, opts ...ChanListenerOption) *ChanListener {
	if buffer <= 0 {
		buffer = 256
	}
	l := &ChanListener{events: make(chan Event, buffer)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Events returns the receive side of the listener.
func (l *ChanListener) Events() <-chan Event {
	return l.events
}

// Notify implements Listener with a non-blocking send.
func (l *ChanListener) Notify(evt Event) {
	select {
	case l.events <- evt:
	default:
		if l.onDrop != nil {
			l.onDrop(evt)
		}
	}
}
