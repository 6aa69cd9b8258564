package orchestration

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/event"
	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/order"
	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/service"
	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/slaclock"
	domainerrors "github.com/Turnage-Digital/Holmes-sub001/internal/errors"
	"github.com/Turnage-Digital/Holmes-sub001/internal/storage"
	"github.com/Turnage-Digital/Holmes-sub001/internal/storage/memory"
	"github.com/Turnage-Digital/Holmes-sub001/internal/vendors"
)

// 2026-07-01 is a Wednesday.
var testNow = time.Date(2026, time.July, 1, 9, 0, 0, 0, time.UTC)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type engineFixture struct {
	engine   *Engine
	orders   *memory.OrderStore
	services *memory.ServiceStore
	clocks   *memory.SlaClockStore
	events   *memory.EventStore
	holidays *memory.HolidayStore
	clock    *testClock
}

func newFixture(t *testing.T, adapters ...vendors.Adapter) *engineFixture {
	t.Helper()

	if len(adapters) == 0 {
		adapters = []vendors.Adapter{vendors.NewStub("criminal", "employment")}
	}
	events := memory.NewEventStore()
	f := &engineFixture{
		orders:   memory.NewOrderStore(events),
		services: memory.NewServiceStore(events),
		clocks:   memory.NewSlaClockStore(events),
		events:   events,
		holidays: memory.NewHolidayStore(),
		clock:    &testClock{now: testNow},
	}
	f.engine = New(Config{
		Orders:   f.orders,
		Services: f.services,
		Clocks:   f.clocks,
		Holidays: f.holidays,
		Registry: vendors.NewRegistry(adapters...),
	}, WithClock(f.clock.Now))
	return f
}

// placeOrderInFulfillment walks a fresh order to fulfillment with the given
// service specs.
func placeOrderInFulfillment(t *testing.T, f *engineFixture, specs ...ServiceSpec) *FulfillmentStart {
	t.Helper()
	ctx := context.Background()

	ord, err := f.engine.PlaceOrder(ctx, PlaceOrderInput{
		SubjectID:   "subj-1",
		CustomerID:  "cust-1",
		PackageCode: "PKG-STD",
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	steps := []func() (*order.Order, error){
		func() (*order.Order, error) { return f.engine.InviteSubject(ctx, ord.ID, "invite sent") },
		func() (*order.Order, error) { return f.engine.BeginIntake(ctx, ord.ID, "subject opened intake") },
		func() (*order.Order, error) { return f.engine.CompleteIntake(ctx, ord.ID, "intake submitted") },
		func() (*order.Order, error) { return f.engine.ReadyOrderForFulfillment(ctx, ord.ID, "policy routed") },
	}
	for _, step := range steps {
		if _, err := step(); err != nil {
			t.Fatalf("order walk: %v", err)
		}
	}

	start, err := f.engine.BeginFulfillment(ctx, BeginFulfillmentInput{
		OrderID:  ord.ID,
		Reason:   "routing complete",
		Services: specs,
	})
	if err != nil {
		t.Fatalf("BeginFulfillment: %v", err)
	}
	return start
}

func criminalSpec() ServiceSpec {
	return ServiceSpec{TypeCode: "CRIM-CTY", Category: "criminal", Tier: 1, MaxAttempts: 3}
}

// flakyAdapter fails a fixed number of dispatches before succeeding.
type flakyAdapter struct {
	failures int
	calls    int
}

func (a *flakyAdapter) Code() string { return "FLAKY" }

func (a *flakyAdapter) Categories() []string { return []string{"criminal"} }

func (a *flakyAdapter) Dispatch(_ context.Context, _ *service.Service) (vendors.DispatchResponse, error) {
	a.calls++
	if a.calls <= a.failures {
		return vendors.DispatchResponse{}, errors.New("connection refused")
	}
	return vendors.DispatchResponse{VendorReferenceID: fmt.Sprintf("FLAKY-%d", a.calls)}, nil
}

func (a *flakyAdapter) ParseCallback(_ context.Context, _ []byte) (service.Result, error) {
	return service.Result{}, errors.New("flaky adapter has no callback format")
}

func TestBeginFulfillmentCreatesServicesAndClock(t *testing.T) {
	f := newFixture(t)
	start := placeOrderInFulfillment(t, f, criminalSpec())

	if start.Order.Status != order.StatusFulfillmentInProgress {
		t.Fatalf("order status = %s, want %s", start.Order.Status, order.StatusFulfillmentInProgress)
	}
	if len(start.Services) != 1 || start.Services[0].Status != service.StatusPending {
		t.Fatalf("services = %+v, want one pending", start.Services)
	}
	if start.Clock.State != slaclock.StateRunning {
		t.Fatalf("clock state = %s, want running", start.Clock.State)
	}
	if start.Clock.TargetBusinessDays != DefaultTargetBusinessDays {
		t.Fatalf("target days = %d, want default %d", start.Clock.TargetBusinessDays, DefaultTargetBusinessDays)
	}
	// Five business days from Wednesday is the next Wednesday.
	wantDeadline := time.Date(2026, time.July, 8, 9, 0, 0, 0, time.UTC)
	if !start.Clock.DeadlineAt.Equal(wantDeadline) {
		t.Fatalf("deadline = %v, want %v", start.Clock.DeadlineAt, wantDeadline)
	}

	events, err := f.events.ListEventsAfter(context.Background(), 0, 100)
	if err != nil {
		t.Fatalf("ListEventsAfter: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("no events reached the journal")
	}
}

func TestBeginFulfillmentTwiceFails(t *testing.T) {
	f := newFixture(t)
	start := placeOrderInFulfillment(t, f, criminalSpec())

	_, err := f.engine.BeginFulfillment(context.Background(), BeginFulfillmentInput{
		OrderID: start.Order.ID,
		Reason:  "again",
	})
	if !domainerrors.IsCode(err, domainerrors.CodeOrderInvalidStatusTransition) {
		t.Fatalf("second BeginFulfillment error = %v, want %s", err, domainerrors.CodeOrderInvalidStatusTransition)
	}
}

func TestClockDeadlineSkipsWeekend(t *testing.T) {
	f := newFixture(t)
	// 2026-07-03 is a Friday.
	f.clock.now = time.Date(2026, time.July, 3, 9, 0, 0, 0, time.UTC)

	ctx := context.Background()
	ord, err := f.engine.PlaceOrder(ctx, PlaceOrderInput{SubjectID: "subj-1", CustomerID: "cust-1", PackageCode: "PKG-STD"})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	clock, err := f.engine.startFulfillmentClock(ctx, ord, 1, 0)
	if err != nil {
		t.Fatalf("startFulfillmentClock: %v", err)
	}
	wantDeadline := time.Date(2026, time.July, 6, 9, 0, 0, 0, time.UTC) // Monday
	if !clock.DeadlineAt.Equal(wantDeadline) {
		t.Fatalf("deadline = %v, want %v", clock.DeadlineAt, wantDeadline)
	}
}

func TestClockDeadlineHonorsTenantHolidays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.holidays.AddHoliday(ctx, "cust-1", "2026-07-02"); err != nil {
		t.Fatalf("AddHoliday: %v", err)
	}

	ord, err := f.engine.PlaceOrder(ctx, PlaceOrderInput{SubjectID: "subj-1", CustomerID: "cust-1", PackageCode: "PKG-STD"})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	clock, err := f.engine.startFulfillmentClock(ctx, ord, 1, 0)
	if err != nil {
		t.Fatalf("startFulfillmentClock: %v", err)
	}
	// Thursday is a holiday, so one business day from Wednesday is Friday.
	wantDeadline := time.Date(2026, time.July, 3, 9, 0, 0, 0, time.UTC)
	if !clock.DeadlineAt.Equal(wantDeadline) {
		t.Fatalf("deadline = %v, want %v", clock.DeadlineAt, wantDeadline)
	}
}

func TestDispatchServiceAssignsVendorByCategory(t *testing.T) {
	f := newFixture(t)
	start := placeOrderInFulfillment(t, f, criminalSpec())

	svc, err := f.engine.DispatchService(context.Background(), start.Services[0].ID)
	if err != nil {
		t.Fatalf("DispatchService: %v", err)
	}
	if svc.Status != service.StatusDispatched {
		t.Fatalf("status = %s, want dispatched", svc.Status)
	}
	if svc.VendorCode != vendors.StubCode {
		t.Fatalf("vendor = %s, want %s", svc.VendorCode, vendors.StubCode)
	}
	if svc.AttemptCount != 1 {
		t.Fatalf("attempts = %d, want 1", svc.AttemptCount)
	}
	if svc.VendorReferenceID == "" {
		t.Fatal("vendor reference id not recorded")
	}
}

func TestDispatchFailureAutoRetriesWithinBudget(t *testing.T) {
	adapter := &flakyAdapter{failures: 1}
	f := newFixture(t, adapter)
	start := placeOrderInFulfillment(t, f, criminalSpec())

	svc, err := f.engine.DispatchService(context.Background(), start.Services[0].ID)
	if err != nil {
		t.Fatalf("DispatchService: %v", err)
	}
	if svc.Status != service.StatusDispatched {
		t.Fatalf("status = %s, want dispatched", svc.Status)
	}
	// The failed first call consumed an attempt.
	if svc.AttemptCount != 2 {
		t.Fatalf("attempts = %d, want 2", svc.AttemptCount)
	}
	if svc.LastError != "" {
		t.Fatalf("last error = %q, want cleared", svc.LastError)
	}
}

func TestDispatchExhaustsRetryBudget(t *testing.T) {
	adapter := &flakyAdapter{failures: 10}
	f := newFixture(t, adapter)
	spec := criminalSpec()
	spec.MaxAttempts = 2
	start := placeOrderInFulfillment(t, f, spec)

	svc, err := f.engine.DispatchService(context.Background(), start.Services[0].ID)
	if !domainerrors.IsCode(err, domainerrors.CodeVendorDispatchFailed) {
		t.Fatalf("DispatchService error = %v, want %s", err, domainerrors.CodeVendorDispatchFailed)
	}
	if svc == nil || svc.Status != service.StatusFailed {
		t.Fatalf("service = %+v, want failed", svc)
	}
	if svc.AttemptCount != 2 || svc.CanRetry() {
		t.Fatalf("attempts = %d canRetry = %v, want 2/false", svc.AttemptCount, svc.CanRetry())
	}
	if adapter.calls != 2 {
		t.Fatalf("adapter calls = %d, want 2", adapter.calls)
	}
}

func TestProcessCallbackCompletesServiceAndAdvancesOrder(t *testing.T) {
	f := newFixture(t)
	start := placeOrderInFulfillment(t, f, criminalSpec())
	ctx := context.Background()

	svc, err := f.engine.DispatchService(ctx, start.Services[0].ID)
	if err != nil {
		t.Fatalf("DispatchService: %v", err)
	}

	payload := []byte(`{"status": "clear"}`)
	done, err := f.engine.ProcessCallback(ctx, svc.VendorCode, svc.VendorReferenceID, payload)
	if err != nil {
		t.Fatalf("ProcessCallback: %v", err)
	}
	if done.Status != service.StatusCompleted {
		t.Fatalf("status = %s, want completed", done.Status)
	}

	ord, err := f.orders.GetOrder(ctx, start.Order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if ord.Status != order.StatusReadyForReport {
		t.Fatalf("order status = %s, want %s", ord.Status, order.StatusReadyForReport)
	}
	clock, err := f.clocks.GetSlaClock(ctx, start.Clock.ID)
	if err != nil {
		t.Fatalf("GetSlaClock: %v", err)
	}
	if clock.State != slaclock.StateCompleted {
		t.Fatalf("clock state = %s, want completed", clock.State)
	}
}

func TestProcessCallbackRedeliveryIsNoOp(t *testing.T) {
	f := newFixture(t)
	start := placeOrderInFulfillment(t, f, criminalSpec())
	ctx := context.Background()

	svc, err := f.engine.DispatchService(ctx, start.Services[0].ID)
	if err != nil {
		t.Fatalf("DispatchService: %v", err)
	}
	payload := []byte(`{"status": "clear"}`)
	if _, err := f.engine.ProcessCallback(ctx, svc.VendorCode, svc.VendorReferenceID, payload); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	before, err := f.events.ListEventsAfter(ctx, 0, 1000)
	if err != nil {
		t.Fatalf("ListEventsAfter: %v", err)
	}

	again, err := f.engine.ProcessCallback(ctx, svc.VendorCode, svc.VendorReferenceID, payload)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if again.Status != service.StatusCompleted {
		t.Fatalf("status = %s, want completed", again.Status)
	}
	after, err := f.events.ListEventsAfter(ctx, 0, 1000)
	if err != nil {
		t.Fatalf("ListEventsAfter: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("redelivery appended %d events", len(after)-len(before))
	}
}

func TestProcessCallbackUnknownReference(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.ProcessCallback(context.Background(), vendors.StubCode, "no-such-ref", []byte(`{"status":"clear"}`))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestAcknowledgeServiceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	start := placeOrderInFulfillment(t, f, criminalSpec())
	ctx := context.Background()

	if _, err := f.engine.DispatchService(ctx, start.Services[0].ID); err != nil {
		t.Fatalf("DispatchService: %v", err)
	}
	svc, err := f.engine.AcknowledgeService(ctx, start.Services[0].ID)
	if err != nil {
		t.Fatalf("AcknowledgeService: %v", err)
	}
	if svc.Status != service.StatusInProgress {
		t.Fatalf("status = %s, want in_progress", svc.Status)
	}
	svc, err = f.engine.AcknowledgeService(ctx, start.Services[0].ID)
	if err != nil {
		t.Fatalf("second AcknowledgeService: %v", err)
	}
	if svc.Status != service.StatusInProgress {
		t.Fatalf("status after redelivery = %s, want in_progress", svc.Status)
	}
}

func TestSweepMarksAtRiskThenBreaches(t *testing.T) {
	f := newFixture(t)
	start := placeOrderInFulfillment(t, f, criminalSpec())
	ctx := context.Background()

	// Nothing to do while the clock is fresh.
	stats, err := f.engine.SweepClocks(ctx)
	if err != nil {
		t.Fatalf("SweepClocks: %v", err)
	}
	if stats.AtRisk != 0 || stats.Breached != 0 {
		t.Fatalf("fresh sweep stats = %+v", stats)
	}

	// Past the at-risk threshold but before the deadline.
	f.clock.now = start.Clock.AtRiskThresholdAt.Add(time.Hour)
	stats, err = f.engine.SweepClocks(ctx)
	if err != nil {
		t.Fatalf("SweepClocks: %v", err)
	}
	if stats.AtRisk != 1 || stats.Breached != 0 {
		t.Fatalf("at-risk sweep stats = %+v", stats)
	}
	clock, err := f.clocks.GetSlaClock(ctx, start.Clock.ID)
	if err != nil {
		t.Fatalf("GetSlaClock: %v", err)
	}
	if clock.State != slaclock.StateAtRisk {
		t.Fatalf("clock state = %s, want at_risk", clock.State)
	}

	// A repeat sweep at the same instant changes nothing.
	stats, err = f.engine.SweepClocks(ctx)
	if err != nil {
		t.Fatalf("repeat SweepClocks: %v", err)
	}
	if stats.AtRisk != 0 || stats.Breached != 0 {
		t.Fatalf("repeat sweep stats = %+v", stats)
	}

	// Past the deadline.
	f.clock.now = start.Clock.DeadlineAt.Add(time.Hour)
	stats, err = f.engine.SweepClocks(ctx)
	if err != nil {
		t.Fatalf("SweepClocks: %v", err)
	}
	if stats.Breached != 1 {
		t.Fatalf("breach sweep stats = %+v", stats)
	}
	clock, err = f.clocks.GetSlaClock(ctx, start.Clock.ID)
	if err != nil {
		t.Fatalf("GetSlaClock: %v", err)
	}
	if clock.State != slaclock.StateBreached {
		t.Fatalf("clock state = %s, want breached", clock.State)
	}

	// Breached clocks leave the unresolved set entirely.
	stats, err = f.engine.SweepClocks(ctx)
	if err != nil {
		t.Fatalf("final SweepClocks: %v", err)
	}
	if stats.Scanned != 0 {
		t.Fatalf("scanned = %d after breach, want 0", stats.Scanned)
	}
}

func TestPauseResumeAndExtendDeadline(t *testing.T) {
	f := newFixture(t)
	start := placeOrderInFulfillment(t, f, criminalSpec())
	ctx := context.Background()

	if _, err := f.engine.PauseClock(ctx, start.Clock.ID, "candidate dispute"); err != nil {
		t.Fatalf("PauseClock: %v", err)
	}
	f.clock.Advance(2 * time.Hour)
	clock, err := f.engine.ResumeClock(ctx, start.Clock.ID)
	if err != nil {
		t.Fatalf("ResumeClock: %v", err)
	}
	if clock.State != slaclock.StateRunning {
		t.Fatalf("state = %s, want running", clock.State)
	}
	if clock.AccumulatedPauseTime != 2*time.Hour {
		t.Fatalf("accumulated pause = %v, want 2h", clock.AccumulatedPauseTime)
	}
	if !clock.DeadlineAt.Equal(start.Clock.DeadlineAt) {
		t.Fatalf("resume shifted the deadline to %v", clock.DeadlineAt)
	}

	extended, err := f.engine.ExtendDeadline(ctx, start.Clock.ID, 2*time.Hour)
	if err != nil {
		t.Fatalf("ExtendDeadline: %v", err)
	}
	wantDeadline := start.Clock.DeadlineAt.Add(2 * time.Hour)
	if !extended.DeadlineAt.Equal(wantDeadline) {
		t.Fatalf("deadline = %v, want %v", extended.DeadlineAt, wantDeadline)
	}
	if !extended.AtRiskThresholdAt.After(start.Clock.AtRiskThresholdAt) {
		t.Fatalf("at-risk threshold did not move forward: %v", extended.AtRiskThresholdAt)
	}
}

func TestCancelOrderCancelsOpenServices(t *testing.T) {
	f := newFixture(t)
	start := placeOrderInFulfillment(t, f,
		criminalSpec(),
		ServiceSpec{TypeCode: "EMP-VRF", Category: "employment", Tier: 2, MaxAttempts: 3},
	)
	ctx := context.Background()

	// Complete the first service; it must stay completed through the cancel.
	svc, err := f.engine.DispatchService(ctx, start.Services[0].ID)
	if err != nil {
		t.Fatalf("DispatchService: %v", err)
	}
	if _, err := f.engine.ProcessCallback(ctx, svc.VendorCode, svc.VendorReferenceID, []byte(`{"status":"clear"}`)); err != nil {
		t.Fatalf("ProcessCallback: %v", err)
	}

	// Completing all tier-1 services moved the order to ready-for-report;
	// cancel is still legal there.
	ord, err := f.engine.CancelOrder(ctx, start.Order.ID, "customer withdrew")
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if ord.Status != order.StatusCanceled {
		t.Fatalf("order status = %s, want canceled", ord.Status)
	}

	completed, err := f.services.GetService(ctx, start.Services[0].ID)
	if err != nil {
		t.Fatalf("GetService: %v", err)
	}
	if completed.Status != service.StatusCompleted {
		t.Fatalf("completed service became %s", completed.Status)
	}
	open, err := f.services.GetService(ctx, start.Services[1].ID)
	if err != nil {
		t.Fatalf("GetService: %v", err)
	}
	if open.Status != service.StatusCanceled {
		t.Fatalf("open service = %s, want canceled", open.Status)
	}
}

// Each command appends exactly the events it emitted. A loaded aggregate
// must never carry a previous save's events back into the next one.
func TestCommandsAppendEachEventOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ord, err := f.engine.PlaceOrder(ctx, PlaceOrderInput{SubjectID: "subj-1", CustomerID: "cust-1", PackageCode: "PKG-STD"})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if _, err := f.engine.InviteSubject(ctx, ord.ID, "invite sent"); err != nil {
		t.Fatalf("InviteSubject: %v", err)
	}
	if _, err := f.engine.BeginIntake(ctx, ord.ID, "subject opened intake"); err != nil {
		t.Fatalf("BeginIntake: %v", err)
	}

	journal, err := f.events.ListEventsAfter(ctx, 0, 100)
	if err != nil {
		t.Fatalf("ListEventsAfter: %v", err)
	}
	counts := map[event.Type]int{}
	for _, ev := range journal {
		counts[ev.Type]++
	}
	if counts[event.TypeOrderCreated] != 1 {
		t.Fatalf("order.created count = %d, want 1", counts[event.TypeOrderCreated])
	}
	if counts[event.TypeOrderStatusChanged] != 2 {
		t.Fatalf("order.status_changed count = %d, want 2", counts[event.TypeOrderStatusChanged])
	}
	if len(journal) != 3 {
		t.Fatalf("journal holds %d events, want 3", len(journal))
	}
}

// conflictOnceOrderStore loses the first save to a version conflict.
type conflictOnceOrderStore struct {
	*memory.OrderStore
	conflicts int
}

func (s *conflictOnceOrderStore) PutOrder(ctx context.Context, ord *order.Order, evts []event.Event) error {
	if s.conflicts > 0 {
		s.conflicts--
		return storage.ErrVersionConflict
	}
	return s.OrderStore.PutOrder(ctx, ord, evts)
}

func TestOrderCommandRetriesVersionConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ord, err := f.engine.PlaceOrder(ctx, PlaceOrderInput{SubjectID: "subj-1", CustomerID: "cust-1", PackageCode: "PKG-STD"})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	conflicting := &conflictOnceOrderStore{OrderStore: f.orders, conflicts: 1}
	engine := New(Config{
		Orders:   conflicting,
		Services: f.services,
		Clocks:   f.clocks,
		Holidays: f.holidays,
		Registry: vendors.NewRegistry(vendors.NewStub("criminal")),
	}, WithClock(f.clock.Now))

	invited, err := engine.InviteSubject(ctx, ord.ID, "invite sent")
	if err != nil {
		t.Fatalf("InviteSubject: %v", err)
	}
	if invited.Status != order.StatusInvited {
		t.Fatalf("status = %s, want invited", invited.Status)
	}
}

func TestOrderCommandGivesUpAfterRepeatedConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ord, err := f.engine.PlaceOrder(ctx, PlaceOrderInput{SubjectID: "subj-1", CustomerID: "cust-1", PackageCode: "PKG-STD"})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	conflicting := &conflictOnceOrderStore{OrderStore: f.orders, conflicts: conflictRetries}
	engine := New(Config{
		Orders:   conflicting,
		Services: f.services,
		Clocks:   f.clocks,
		Holidays: f.holidays,
		Registry: vendors.NewRegistry(vendors.NewStub("criminal")),
	}, WithClock(f.clock.Now))

	if _, err := engine.InviteSubject(ctx, ord.ID, "invite sent"); !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("error = %v, want wrapped ErrVersionConflict", err)
	}
}
