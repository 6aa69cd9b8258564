// Package order implements the case-level workflow aggregate.
//
// An order tracks one background-check case from placement through report
// delivery. Its status graph is linear with two escape states: Blocked, a
// reversible excursion from any active status, and Canceled, terminal from
// any non-terminal status. The aggregate never polls services or clocks;
// orchestration advances it with commands as those collaborators report.
package order

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/event"
	domainerrors "github.com/Turnage-Digital/Holmes-sub001/internal/errors"
	"github.com/Turnage-Digital/Holmes-sub001/internal/id"
)

// Status describes the order lifecycle.
type Status string

const (
	StatusCreated               Status = "created"
	StatusInvited               Status = "invited"
	StatusIntakeInProgress      Status = "intake_in_progress"
	StatusIntakeComplete        Status = "intake_complete"
	StatusReadyForRouting       Status = "ready_for_routing"
	StatusFulfillmentInProgress Status = "fulfillment_in_progress"
	StatusReadyForReport        Status = "ready_for_report"
	StatusClosed                Status = "closed"
	StatusBlocked               Status = "blocked"
	StatusCanceled              Status = "canceled"
)

// Order is the case-level workflow aggregate.
type Order struct {
	ID               string
	SubjectID        string
	CustomerID       string
	PolicySnapshotID string
	PackageCode      string

	Status           Status
	LastStatusReason string
	// StatusBeforeBlock holds the status to restore on ResumeFromBlock.
	StatusBeforeBlock Status
	BlockReason       string

	CreatedAt            time.Time
	LastUpdatedAt        time.Time
	InvitedAt            *time.Time
	IntakeStartedAt      *time.Time
	IntakeCompletedAt    *time.Time
	ReadyForRoutingAt    *time.Time
	FulfillmentStartedAt *time.Time
	ReadyForReportAt     *time.Time
	ClosedAt             *time.Time
	BlockedAt            *time.Time
	CanceledAt           *time.Time

	// Version guards optimistic concurrency in storage.
	Version int64

	pending []event.Event
}

// CreateInput describes what is needed to place an order.
type CreateInput struct {
	SubjectID        string
	CustomerID       string
	PolicySnapshotID string
	PackageCode      string
}

// Create places a new order in Created status.
func Create(input CreateInput, now func() time.Time) (*Order, error) {
	if now == nil {
		now = time.Now
	}
	input.PackageCode = strings.TrimSpace(input.PackageCode)
	if input.PackageCode == "" {
		return nil, domainerrors.New(domainerrors.CodeOrderPackageEmpty, "package code is required")
	}

	orderID, err := id.NewID()
	if err != nil {
		return nil, err
	}

	createdAt := now().UTC()
	ord := &Order{
		ID:               orderID,
		SubjectID:        strings.TrimSpace(input.SubjectID),
		CustomerID:       strings.TrimSpace(input.CustomerID),
		PolicySnapshotID: strings.TrimSpace(input.PolicySnapshotID),
		PackageCode:      input.PackageCode,
		Status:           StatusCreated,
		CreatedAt:        createdAt,
		LastUpdatedAt:    createdAt,
	}
	payloadJSON, _ := json.Marshal(event.OrderCreatedPayload{
		SubjectID:        ord.SubjectID,
		CustomerID:       ord.CustomerID,
		PolicySnapshotID: ord.PolicySnapshotID,
		PackageCode:      ord.PackageCode,
	})
	ord.pending = append(ord.pending, event.Event{
		StreamType:  event.StreamOrder,
		StreamID:    ord.ID,
		Type:        event.TypeOrderCreated,
		Timestamp:   createdAt,
		OrderID:     ord.ID,
		CustomerID:  ord.CustomerID,
		PayloadJSON: payloadJSON,
	})
	return ord, nil
}

// IsTerminal reports whether the order reached a final status.
func (o *Order) IsTerminal() bool {
	return o.Status == StatusClosed || o.Status == StatusCanceled
}

// RecordInvite marks the candidate invitation as sent.
func (o *Order) RecordInvite(reason string, at time.Time) error {
	if err := o.advance(StatusCreated, StatusInvited, reason, at); err != nil {
		return err
	}
	o.InvitedAt = timePtr(at)
	return nil
}

// MarkIntakeInProgress marks the candidate as having started intake.
func (o *Order) MarkIntakeInProgress(reason string, at time.Time) error {
	if err := o.advance(StatusInvited, StatusIntakeInProgress, reason, at); err != nil {
		return err
	}
	o.IntakeStartedAt = timePtr(at)
	return nil
}

// MarkIntakeSubmitted marks the intake form as submitted.
func (o *Order) MarkIntakeSubmitted(reason string, at time.Time) error {
	if err := o.advance(StatusIntakeInProgress, StatusIntakeComplete, reason, at); err != nil {
		return err
	}
	o.IntakeCompletedAt = timePtr(at)
	return nil
}

// MarkReadyForFulfillment marks the order as ready for service routing.
func (o *Order) MarkReadyForFulfillment(reason string, at time.Time) error {
	if err := o.advance(StatusIntakeComplete, StatusReadyForRouting, reason, at); err != nil {
		return err
	}
	o.ReadyForRoutingAt = timePtr(at)
	return nil
}

// BeginFulfillment marks fulfillment as started.
func (o *Order) BeginFulfillment(reason string, at time.Time) error {
	if err := o.advance(StatusReadyForRouting, StatusFulfillmentInProgress, reason, at); err != nil {
		return err
	}
	o.FulfillmentStartedAt = timePtr(at)
	return nil
}

// MarkReadyForReport marks all required services as resolved.
func (o *Order) MarkReadyForReport(reason string, at time.Time) error {
	if err := o.advance(StatusFulfillmentInProgress, StatusReadyForReport, reason, at); err != nil {
		return err
	}
	o.ReadyForReportAt = timePtr(at)
	return nil
}

// Close finishes the order after report delivery.
func (o *Order) Close(reason string, at time.Time) error {
	if err := o.advance(StatusReadyForReport, StatusClosed, reason, at); err != nil {
		return err
	}
	o.ClosedAt = timePtr(at)
	return nil
}

// Block suspends the order, remembering the status to restore. Legal from
// any active non-terminal status; a non-empty reason is required.
func (o *Order) Block(reason string, at time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domainerrors.New(domainerrors.CodeOrderReasonEmpty, "block reason is required")
	}
	if o.IsTerminal() {
		return domainerrors.Newf(domainerrors.CodeOrderTerminal, "cannot block a %s order", o.Status)
	}
	if o.Status == StatusBlocked {
		return domainerrors.New(domainerrors.CodeOrderInvalidStatusTransition, "order is already blocked")
	}
	o.StatusBeforeBlock = o.Status
	o.BlockReason = reason
	o.BlockedAt = timePtr(at)
	o.transition(StatusBlocked, reason, at)
	return nil
}

// ResumeFromBlock returns a blocked order to the status it held before
// blocking.
func (o *Order) ResumeFromBlock(reason string, at time.Time) error {
	if o.Status != StatusBlocked {
		return domainerrors.Newf(domainerrors.CodeOrderNotBlocked, "resume requires blocked status, have %s", o.Status)
	}
	restored := o.StatusBeforeBlock
	o.StatusBeforeBlock = ""
	o.BlockReason = ""
	o.BlockedAt = nil
	o.transition(restored, reason, at)
	return nil
}

// Cancel terminates the order. A cancel of an already canceled order is a
// no-op so redelivered signals stay harmless; canceling a closed order is
// an error.
func (o *Order) Cancel(reason string, at time.Time) error {
	if o.Status == StatusCanceled {
		return nil
	}
	if o.Status == StatusClosed {
		return domainerrors.New(domainerrors.CodeOrderTerminal, "cannot cancel a closed order")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domainerrors.New(domainerrors.CodeOrderReasonEmpty, "cancel reason is required")
	}
	o.CanceledAt = timePtr(at)
	o.transition(StatusCanceled, reason, at)
	return nil
}

// PendingEvents returns the events appended since the last drain.
func (o *Order) PendingEvents() []event.Event {
	return o.pending
}

// DrainEvents returns and clears pending events.
func (o *Order) DrainEvents() []event.Event {
	drained := o.pending
	o.pending = nil
	return drained
}

// advance validates that the order sits exactly at the required predecessor
// before moving forward along the workflow graph.
func (o *Order) advance(from, to Status, reason string, at time.Time) error {
	if o.Status != from {
		return domainerrors.Newf(domainerrors.CodeOrderInvalidStatusTransition,
			"transition to %s requires %s status, have %s", to, from, o.Status)
	}
	o.transition(to, reason, at)
	return nil
}

func (o *Order) transition(to Status, reason string, at time.Time) {
	from := o.Status
	o.Status = to
	o.LastStatusReason = strings.TrimSpace(reason)
	o.LastUpdatedAt = at.UTC()

	payloadJSON, _ := json.Marshal(event.OrderStatusChangedPayload{
		FromStatus: string(from),
		ToStatus:   string(to),
		Reason:     o.LastStatusReason,
	})
	o.pending = append(o.pending, event.Event{
		StreamType:  event.StreamOrder,
		StreamID:    o.ID,
		Type:        event.TypeOrderStatusChanged,
		Timestamp:   at.UTC(),
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		PayloadJSON: payloadJSON,
	})
}

func timePtr(at time.Time) *time.Time {
	utc := at.UTC()
	return &utc
}
