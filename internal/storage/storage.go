package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/event"
	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/order"
	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/service"
	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/slaclock"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrVersionConflict indicates an aggregate save lost an optimistic
// concurrency race. The caller reloads and retries.
var ErrVersionConflict = errors.New("aggregate version conflict")

// OrderStore persists order aggregates.
//
// PutOrder inserts when the aggregate version is zero and otherwise updates,
// requiring the stored version to match; on success the version is bumped.
// evts are the events the aggregate emitted for this change, drained before
// the call; the store appends them to the journal in the same transactional
// unit as the state change, so a committed save can never lose its events.
type OrderStore interface {
	PutOrder(ctx context.Context, ord *order.Order, evts []event.Event) error
	GetOrder(ctx context.Context, id string) (*order.Order, error)
}

// ServiceStore persists service aggregates. PutService follows the same
// versioning and event-journal contract as OrderStore.PutOrder.
type ServiceStore interface {
	PutService(ctx context.Context, svc *service.Service, evts []event.Event) error
	GetService(ctx context.Context, id string) (*service.Service, error)
	// GetServiceByVendorReference locates the service a vendor callback
	// targets.
	GetServiceByVendorReference(ctx context.Context, vendorCode, vendorReferenceID string) (*service.Service, error)
	ListServicesByOrder(ctx context.Context, orderID string) ([]*service.Service, error)
}

// SlaClockStore persists SLA clock aggregates. PutSlaClock follows the same
// versioning and event-journal contract as OrderStore.PutOrder.
type SlaClockStore interface {
	PutSlaClock(ctx context.Context, clock *slaclock.Clock, evts []event.Event) error
	GetSlaClock(ctx context.Context, id string) (*slaclock.Clock, error)
	GetSlaClockByOrder(ctx context.Context, orderID string, kind slaclock.Kind) (*slaclock.Clock, error)
	// ListUnresolvedSlaClocks returns clocks in the running or at-risk
	// states, the only states the sweep can act on.
	ListUnresolvedSlaClocks(ctx context.Context) ([]*slaclock.Clock, error)
}

// EventStore is the append-only journal of domain events.
type EventStore interface {
	// AppendEvents persists events in order, assigning each a per-stream
	// Seq and a globally increasing GlobalSeq.
	AppendEvents(ctx context.Context, events []event.Event) error
	// ListEventsAfter returns up to limit events with GlobalSeq strictly
	// greater than afterGlobalSeq, in GlobalSeq order.
	ListEventsAfter(ctx context.Context, afterGlobalSeq uint64, limit int) ([]event.Event, error)
}

// Checkpoint records how far a projection has replayed the journal.
type Checkpoint struct {
	Projection string
	// Position counts committed events, monotonically increasing. It does
	// not depend on the batch size a replay happened to run with.
	Position uint64
	// Cursor is the opaque serialized replay cursor.
	Cursor    string
	UpdatedAt time.Time
}

// CheckpointStore persists projection checkpoints.
type CheckpointStore interface {
	// GetCheckpoint returns the checkpoint for the named projection,
	// reporting false when none has been saved yet.
	GetCheckpoint(ctx context.Context, projection string) (Checkpoint, bool, error)
	SaveCheckpoint(ctx context.Context, checkpoint Checkpoint) error
	ClearCheckpoint(ctx context.Context, projection string) error
}

// HolidayStore persists business-calendar holidays. The empty tenant id
// holds the global calendar.
type HolidayStore interface {
	// ListHolidaysForTenant returns the tenant's holidays merged with the
	// global calendar, as YYYY-MM-DD date strings.
	ListHolidaysForTenant(ctx context.Context, tenantID string) ([]string, error)
	AddHoliday(ctx context.Context, tenantID, date string) error
}
