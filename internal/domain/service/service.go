// Package service implements the dispatched background-check task aggregate.
//
// A service represents one discrete check (criminal search, employment
// verification, and so on) sent to an external vendor on behalf of an order.
// The aggregate owns vendor assignment and the dispatch/retry/result state
// machine; orchestration drives it through commands and drains the emitted
// events after each successful save.
package service

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/event"
	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/record"
	domainerrors "github.com/Turnage-Digital/Holmes-sub001/internal/errors"
	"github.com/Turnage-Digital/Holmes-sub001/internal/id"
)

// DefaultMaxAttempts bounds the dispatch retry budget when none is configured.
const DefaultMaxAttempts = 3

// Status describes the service lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusDispatched Status = "dispatched"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// ResultStatus describes the outcome of a completed check.
type ResultStatus string

const (
	ResultClear          ResultStatus = "clear"
	ResultHit            ResultStatus = "hit"
	ResultUnableToVerify ResultStatus = "unable_to_verify"
	ResultError          ResultStatus = "error"
)

// IsValid reports whether the result status is one of the known outcomes.
func (s ResultStatus) IsValid() bool {
	switch s {
	case ResultClear, ResultHit, ResultUnableToVerify, ResultError:
		return true
	default:
		return false
	}
}

// Result captures a vendor's normalized answer for a service.
type Result struct {
	Status  ResultStatus
	Records []record.Record
}

// GeoScope narrows a service to a geographic area (county, state, country).
type GeoScope struct {
	Type  string
	Value string
}

// Service is the dispatched-task aggregate.
type Service struct {
	ID                string
	OrderID           string
	CustomerID        string
	ServiceTypeCode   string
	Category          string
	Tier              int
	Geo               *GeoScope
	CatalogSnapshotID string

	Status            Status
	VendorCode        string
	VendorReferenceID string
	AttemptCount      int
	MaxAttempts       int
	LastError         string
	Result            *Result

	CreatedAt     time.Time
	LastUpdatedAt time.Time
	DispatchedAt  *time.Time
	CompletedAt   *time.Time
	FailedAt      *time.Time
	CanceledAt    *time.Time

	// Version guards optimistic concurrency in storage.
	Version int64

	pending []event.Event
}

// CreateInput describes what is needed to create a service.
type CreateInput struct {
	OrderID           string
	CustomerID        string
	ServiceTypeCode   string
	Category          string
	Tier              int
	Geo               *GeoScope
	CatalogSnapshotID string
	MaxAttempts       int
}

// Create initializes a pending service with an empty retry history.
func Create(input CreateInput, now func() time.Time) (*Service, error) {
	if now == nil {
		now = time.Now
	}
	input.ServiceTypeCode = strings.TrimSpace(input.ServiceTypeCode)
	if input.ServiceTypeCode == "" {
		return nil, domainerrors.New(domainerrors.CodeServiceTypeEmpty, "service type code is required")
	}
	input.Category = strings.TrimSpace(input.Category)
	if input.Category == "" {
		return nil, domainerrors.New(domainerrors.CodeServiceCategoryEmpty, "service category is required")
	}
	maxAttempts := input.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	serviceID, err := id.NewID()
	if err != nil {
		return nil, err
	}

	createdAt := now().UTC()
	svc := &Service{
		ID:                serviceID,
		OrderID:           strings.TrimSpace(input.OrderID),
		CustomerID:        strings.TrimSpace(input.CustomerID),
		ServiceTypeCode:   input.ServiceTypeCode,
		Category:          input.Category,
		Tier:              input.Tier,
		Geo:               input.Geo,
		CatalogSnapshotID: strings.TrimSpace(input.CatalogSnapshotID),
		Status:            StatusPending,
		MaxAttempts:       maxAttempts,
		CreatedAt:         createdAt,
		LastUpdatedAt:     createdAt,
	}
	svc.emit(event.TypeServiceCreated, createdAt, event.ServiceCreatedPayload{
		OrderID:         svc.OrderID,
		ServiceTypeCode: svc.ServiceTypeCode,
		Category:        svc.Category,
		Tier:            svc.Tier,
		MaxAttempts:     svc.MaxAttempts,
	})
	return svc, nil
}

// IsTerminal reports whether the service reached a final state.
func (s *Service) IsTerminal() bool {
	switch s.Status {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// CanRetry reports whether a failed service still has retry budget.
func (s *Service) CanRetry() bool {
	return s.Status == StatusFailed && s.AttemptCount < s.MaxAttempts
}

// AssignVendor sets the vendor code. Assignment is only legal while pending;
// once a dispatch has happened the vendor is immutable.
func (s *Service) AssignVendor(code string, at time.Time) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return domainerrors.New(domainerrors.CodeVendorUnknown, "vendor code is required")
	}
	if s.Status != StatusPending {
		return domainerrors.Newf(domainerrors.CodeServiceVendorImmutable, "vendor cannot change in status %s", s.Status)
	}
	// A retried service is pending again but keeps its vendor; the attempt
	// budget is spent against one vendor, not shared across several.
	if s.DispatchedAt != nil {
		return domainerrors.New(domainerrors.CodeServiceVendorImmutable, "vendor is immutable after dispatch")
	}
	s.VendorCode = code
	s.touch(at)
	return nil
}

// Dispatch records a successful hand-off to the assigned vendor. The attempt
// count increments here and only here; a dispatch that later fails still
// consumed its attempt.
func (s *Service) Dispatch(vendorReferenceID string, at time.Time) error {
	if s.Status != StatusPending {
		return domainerrors.Newf(domainerrors.CodeServiceNotPending, "dispatch requires pending status, have %s", s.Status)
	}
	if strings.TrimSpace(s.VendorCode) == "" {
		return domainerrors.New(domainerrors.CodeServiceVendorUnassigned, "dispatch requires an assigned vendor")
	}
	vendorReferenceID = strings.TrimSpace(vendorReferenceID)
	if vendorReferenceID == "" {
		return domainerrors.New(domainerrors.CodeServiceReferenceEmpty, "vendor reference id is required")
	}

	s.AttemptCount++
	s.Status = StatusDispatched
	s.VendorReferenceID = vendorReferenceID
	dispatchedAt := at.UTC()
	s.DispatchedAt = &dispatchedAt
	s.touch(at)
	s.emit(event.TypeServiceDispatched, at, event.ServiceDispatchedPayload{
		VendorCode:        s.VendorCode,
		VendorReferenceID: s.VendorReferenceID,
		AttemptCount:      s.AttemptCount,
	})
	return nil
}

// MarkInProgress records vendor acknowledgement. The transition only fires
// from dispatched; anywhere else it is an idempotent no-op so redelivered
// acknowledgements cannot corrupt state.
func (s *Service) MarkInProgress(at time.Time) {
	if s.Status != StatusDispatched {
		return
	}
	s.Status = StatusInProgress
	s.touch(at)
	s.emit(event.TypeServiceInProgress, at, nil)
}

// RecordResult stores the vendor's final answer and completes the service.
func (s *Service) RecordResult(result Result, at time.Time) error {
	if s.IsTerminal() {
		return domainerrors.Newf(domainerrors.CodeServiceTerminal, "result rejected in terminal status %s", s.Status)
	}
	if !result.Status.IsValid() {
		return domainerrors.Newf(domainerrors.CodeServiceResultStatusInvalid, "result status %q is not recognized", result.Status)
	}
	for _, r := range result.Records {
		if err := record.Validate(r); err != nil {
			return err
		}
	}

	s.Status = StatusCompleted
	s.Result = &result
	s.LastError = ""
	completedAt := at.UTC()
	s.CompletedAt = &completedAt
	s.touch(at)
	s.emit(event.TypeServiceCompleted, at, event.ServiceCompletedPayload{
		ResultStatus: string(result.Status),
		RecordCount:  len(result.Records),
	})
	return nil
}

// Fail records a dispatch or vendor failure. The emitted event carries
// whether a retry is still expected so downstream consumers can tell a
// transient failure from a permanent one.
func (s *Service) Fail(message string, at time.Time) error {
	if s.IsTerminal() {
		return domainerrors.Newf(domainerrors.CodeServiceTerminal, "failure rejected in terminal status %s", s.Status)
	}
	s.Status = StatusFailed
	s.LastError = strings.TrimSpace(message)
	failedAt := at.UTC()
	s.FailedAt = &failedAt
	s.touch(at)
	s.emit(event.TypeServiceFailed, at, event.ServiceFailedPayload{
		Error:        s.LastError,
		AttemptCount: s.AttemptCount,
		CanRetry:     s.CanRetry(),
	})
	return nil
}

// Retry returns a failed service to pending for another dispatch. The
// attempt count is untouched; only Dispatch consumes budget.
func (s *Service) Retry(at time.Time) error {
	if s.Status != StatusFailed {
		return domainerrors.Newf(domainerrors.CodeServiceNotFailed, "retry requires failed status, have %s", s.Status)
	}
	if !s.CanRetry() {
		return domainerrors.Newf(domainerrors.CodeServiceRetryExhausted, "retry budget exhausted after %d of %d attempts", s.AttemptCount, s.MaxAttempts)
	}
	s.Status = StatusPending
	s.LastError = ""
	s.FailedAt = nil
	s.touch(at)
	s.emit(event.TypeServiceRetried, at, event.ServiceRetriedPayload{
		AttemptCount: s.AttemptCount,
	})
	return nil
}

// Cancel withdraws a service. Canceling an already canceled service is an
// idempotent no-op; canceling any other terminal service is an error.
func (s *Service) Cancel(reason string, at time.Time) error {
	if s.Status == StatusCanceled {
		return nil
	}
	if s.IsTerminal() {
		return domainerrors.Newf(domainerrors.CodeServiceTerminal, "cancel rejected in terminal status %s", s.Status)
	}
	s.Status = StatusCanceled
	canceledAt := at.UTC()
	s.CanceledAt = &canceledAt
	s.touch(at)
	s.emit(event.TypeServiceCanceled, at, event.ServiceCanceledPayload{
		Reason: strings.TrimSpace(reason),
	})
	return nil
}

// PendingEvents returns the events appended since the last drain.
func (s *Service) PendingEvents() []event.Event {
	return s.pending
}

// DrainEvents returns and clears pending events. The persistence layer calls
// this after a successful save.
func (s *Service) DrainEvents() []event.Event {
	drained := s.pending
	s.pending = nil
	return drained
}

func (s *Service) touch(at time.Time) {
	s.LastUpdatedAt = at.UTC()
}

func (s *Service) emit(eventType event.Type, at time.Time, payload any) {
	var payloadJSON []byte
	if payload != nil {
		payloadJSON, _ = json.Marshal(payload)
	}
	s.pending = append(s.pending, event.Event{
		StreamType:  event.StreamService,
		StreamID:    s.ID,
		Type:        eventType,
		Timestamp:   at.UTC(),
		OrderID:     s.OrderID,
		CustomerID:  s.CustomerID,
		PayloadJSON: payloadJSON,
	})
}
