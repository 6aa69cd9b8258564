package order

import (
	"testing"
	"time"

	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/event"
	domainerrors "github.com/Turnage-Digital/Holmes-sub001/internal/errors"
)

var testNow = time.Date(2026, time.April, 6, 10, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

func newCreatedOrder(t *testing.T) *Order {
	t.Helper()

	ord, err := Create(CreateInput{
		SubjectID:        "subject-1",
		CustomerID:       "customer-1",
		PolicySnapshotID: "policy-1",
		PackageCode:      "STANDARD",
	}, testClock)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	ord.DrainEvents()
	return ord
}

// advanceToRouting walks a fresh order forward to ReadyForRouting.
func advanceToRouting(t *testing.T, ord *Order) {
	t.Helper()

	steps := []func(string, time.Time) error{
		ord.RecordInvite,
		ord.MarkIntakeInProgress,
		ord.MarkIntakeSubmitted,
		ord.MarkReadyForFulfillment,
	}
	for i, step := range steps {
		if err := step("", testNow.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func TestCreate(t *testing.T) {
	ord, err := Create(CreateInput{
		SubjectID:   "subject-1",
		CustomerID:  "customer-1",
		PackageCode: "STANDARD",
	}, testClock)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ord.Status != StatusCreated {
		t.Fatalf("Status = %s, want %s", ord.Status, StatusCreated)
	}
	if ord.ID == "" {
		t.Fatal("Create returned empty id")
	}
	events := ord.PendingEvents()
	if len(events) != 1 || events[0].Type != event.TypeOrderCreated {
		t.Fatalf("pending events = %+v, want one %s", events, event.TypeOrderCreated)
	}
	if events[0].OrderID != ord.ID {
		t.Fatalf("event OrderID = %s, want %s", events[0].OrderID, ord.ID)
	}
}

func TestCreateRequiresPackage(t *testing.T) {
	_, err := Create(CreateInput{SubjectID: "subject-1", PackageCode: "  "}, testClock)
	if !domainerrors.IsCode(err, domainerrors.CodeOrderPackageEmpty) {
		t.Fatalf("Create error = %v, want %s", err, domainerrors.CodeOrderPackageEmpty)
	}
}

func TestForwardWalkToClose(t *testing.T) {
	ord := newCreatedOrder(t)
	advanceToRouting(t, ord)

	if ord.Status != StatusReadyForRouting {
		t.Fatalf("Status = %s, want %s", ord.Status, StatusReadyForRouting)
	}
	if err := ord.BeginFulfillment("services routed", testNow); err != nil {
		t.Fatalf("BeginFulfillment: %v", err)
	}
	if err := ord.MarkReadyForReport("all tier-1 services completed", testNow); err != nil {
		t.Fatalf("MarkReadyForReport: %v", err)
	}
	if err := ord.Close("report delivered", testNow); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if ord.Status != StatusClosed {
		t.Fatalf("Status = %s, want %s", ord.Status, StatusClosed)
	}
	if ord.ClosedAt == nil {
		t.Fatal("ClosedAt not set")
	}
	if ord.LastStatusReason != "report delivered" {
		t.Fatalf("LastStatusReason = %q", ord.LastStatusReason)
	}
}

func TestForwardTransitionRequiresExactPredecessor(t *testing.T) {
	ord := newCreatedOrder(t)

	// Skipping ahead from Created is rejected.
	err := ord.BeginFulfillment("", testNow)
	if !domainerrors.IsCode(err, domainerrors.CodeOrderInvalidStatusTransition) {
		t.Fatalf("BeginFulfillment error = %v, want %s", err, domainerrors.CodeOrderInvalidStatusTransition)
	}
	if ord.Status != StatusCreated {
		t.Fatalf("Status mutated on rejected transition: %s", ord.Status)
	}
}

func TestBeginFulfillmentTwiceFailsSecondTime(t *testing.T) {
	ord := newCreatedOrder(t)
	advanceToRouting(t, ord)

	if err := ord.BeginFulfillment("", testNow); err != nil {
		t.Fatalf("first BeginFulfillment: %v", err)
	}
	err := ord.BeginFulfillment("", testNow)
	if !domainerrors.IsCode(err, domainerrors.CodeOrderInvalidStatusTransition) {
		t.Fatalf("second BeginFulfillment error = %v, want %s", err, domainerrors.CodeOrderInvalidStatusTransition)
	}
}

func TestBlockAndResume(t *testing.T) {
	ord := newCreatedOrder(t)
	advanceToRouting(t, ord)
	ord.DrainEvents()

	if err := ord.Block("candidate dispute", testNow); err != nil {
		t.Fatalf("Block: %v", err)
	}
	if ord.Status != StatusBlocked {
		t.Fatalf("Status = %s, want %s", ord.Status, StatusBlocked)
	}
	if ord.StatusBeforeBlock != StatusReadyForRouting {
		t.Fatalf("StatusBeforeBlock = %s, want %s", ord.StatusBeforeBlock, StatusReadyForRouting)
	}

	if err := ord.ResumeFromBlock("dispute resolved", testNow.Add(time.Hour)); err != nil {
		t.Fatalf("ResumeFromBlock: %v", err)
	}
	if ord.Status != StatusReadyForRouting {
		t.Fatalf("Status = %s, want restored %s", ord.Status, StatusReadyForRouting)
	}
	if ord.StatusBeforeBlock != "" || ord.BlockReason != "" || ord.BlockedAt != nil {
		t.Fatal("block bookkeeping not cleared on resume")
	}

	events := ord.DrainEvents()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	for _, ev := range events {
		if ev.Type != event.TypeOrderStatusChanged {
			t.Fatalf("event type = %s, want %s", ev.Type, event.TypeOrderStatusChanged)
		}
	}
}

func TestBlockRequiresReason(t *testing.T) {
	ord := newCreatedOrder(t)
	err := ord.Block("", testNow)
	if !domainerrors.IsCode(err, domainerrors.CodeOrderReasonEmpty) {
		t.Fatalf("Block error = %v, want %s", err, domainerrors.CodeOrderReasonEmpty)
	}
}

func TestBlockWhileBlockedFails(t *testing.T) {
	ord := newCreatedOrder(t)
	if err := ord.Block("first", testNow); err != nil {
		t.Fatalf("Block: %v", err)
	}
	err := ord.Block("second", testNow)
	if !domainerrors.IsCode(err, domainerrors.CodeOrderInvalidStatusTransition) {
		t.Fatalf("second Block error = %v, want %s", err, domainerrors.CodeOrderInvalidStatusTransition)
	}
}

func TestResumeRequiresBlocked(t *testing.T) {
	ord := newCreatedOrder(t)
	err := ord.ResumeFromBlock("", testNow)
	if !domainerrors.IsCode(err, domainerrors.CodeOrderNotBlocked) {
		t.Fatalf("ResumeFromBlock error = %v, want %s", err, domainerrors.CodeOrderNotBlocked)
	}
}

func TestCancel(t *testing.T) {
	ord := newCreatedOrder(t)
	advanceToRouting(t, ord)

	if err := ord.Cancel("customer withdrew", testNow); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if ord.Status != StatusCanceled {
		t.Fatalf("Status = %s, want %s", ord.Status, StatusCanceled)
	}

	// Redelivered cancel is absorbed.
	ord.DrainEvents()
	if err := ord.Cancel("customer withdrew", testNow.Add(time.Hour)); err != nil {
		t.Fatalf("second Cancel: %v", err)
	}
	if len(ord.PendingEvents()) != 0 {
		t.Fatal("no-op cancel emitted events")
	}
}

func TestCancelClosedOrderFails(t *testing.T) {
	ord := newCreatedOrder(t)
	advanceToRouting(t, ord)
	if err := ord.BeginFulfillment("", testNow); err != nil {
		t.Fatalf("BeginFulfillment: %v", err)
	}
	if err := ord.MarkReadyForReport("", testNow); err != nil {
		t.Fatalf("MarkReadyForReport: %v", err)
	}
	if err := ord.Close("", testNow); err != nil {
		t.Fatalf("Close: %v", err)
	}

	err := ord.Cancel("too late", testNow)
	if !domainerrors.IsCode(err, domainerrors.CodeOrderTerminal) {
		t.Fatalf("Cancel error = %v, want %s", err, domainerrors.CodeOrderTerminal)
	}
}

func TestCancelRequiresReason(t *testing.T) {
	ord := newCreatedOrder(t)
	err := ord.Cancel("  ", testNow)
	if !domainerrors.IsCode(err, domainerrors.CodeOrderReasonEmpty) {
		t.Fatalf("Cancel error = %v, want %s", err, domainerrors.CodeOrderReasonEmpty)
	}
}
