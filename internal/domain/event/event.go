package event

import (
	"strings"
	"time"
)

// StreamType identifies which aggregate family a stream belongs to.
type StreamType string

const (
	// StreamOrder holds order lifecycle events.
	StreamOrder StreamType = "order"
	// StreamService holds service dispatch/result events.
	StreamService StreamType = "service"
	// StreamSlaClock holds SLA clock events.
	StreamSlaClock StreamType = "sla_clock"
)

// Type identifies the type of a domain event.
type Type string

// Order lifecycle events.
const (
	// TypeOrderCreated records the placement of an order.
	TypeOrderCreated Type = "order.created"
	// TypeOrderStatusChanged records an order status transition.
	TypeOrderStatusChanged Type = "order.status_changed"
)

// Service events.
const (
	// TypeServiceCreated records the creation of a service.
	TypeServiceCreated Type = "service.created"
	// TypeServiceDispatched records a successful vendor dispatch.
	TypeServiceDispatched Type = "service.dispatched"
	// TypeServiceInProgress records vendor acknowledgement of work.
	TypeServiceInProgress Type = "service.in_progress"
	// TypeServiceCompleted records a final vendor result.
	TypeServiceCompleted Type = "service.completed"
	// TypeServiceFailed records a dispatch or vendor failure.
	TypeServiceFailed Type = "service.failed"
	// TypeServiceRetried records a return to the pending state for retry.
	TypeServiceRetried Type = "service.retried"
	// TypeServiceCanceled records service cancellation.
	TypeServiceCanceled Type = "service.canceled"
)

// SLA clock events.
const (
	// TypeSlaClockStarted records the start of a deadline clock.
	TypeSlaClockStarted Type = "sla.started"
	// TypeSlaClockAtRisk records crossing the at-risk threshold.
	TypeSlaClockAtRisk Type = "sla.at_risk"
	// TypeSlaClockBreached records a missed deadline.
	TypeSlaClockBreached Type = "sla.breached"
	// TypeSlaClockPaused records a pause of the clock.
	TypeSlaClockPaused Type = "sla.paused"
	// TypeSlaClockResumed records a resume of a paused clock.
	TypeSlaClockResumed Type = "sla.resumed"
	// TypeSlaClockCompleted records on-time completion.
	TypeSlaClockCompleted Type = "sla.completed"
)

// Event represents an immutable fact in the append-only journal. Aggregates
// append events to an in-memory pending list; the persistence layer assigns
// Seq and GlobalSeq on append and drains the list after a successful save.
type Event struct {
	// StreamType identifies the aggregate family of the stream.
	StreamType StreamType
	// StreamID is the aggregate id the event belongs to.
	StreamID string
	// Seq is the event sequence within the stream (starts at 1).
	// Assigned by storage on append.
	Seq uint64
	// GlobalSeq is the monotonic ordering key across all streams.
	// Assigned by storage on append.
	GlobalSeq uint64
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Type identifies the kind of event.
	Type Type
	// OrderID correlates service and clock events back to their order.
	OrderID string
	// CustomerID scopes the event to a tenant.
	CustomerID string
	// PayloadJSON holds event-specific data as JSON.
	PayloadJSON []byte
}

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Domain returns the domain prefix of the event type (e.g., "order", "sla").
func (t Type) Domain() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}
