package orchestration

import (
	"context"
	"fmt"

	"github.com/Turnage-Digital/Holmes-sub001/internal/calendar"
	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/order"
	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/service"
	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/slaclock"
)

// DefaultTargetBusinessDays is the fulfillment turnaround commitment when
// the caller does not specify one.
const DefaultTargetBusinessDays = 5

// PlaceOrderInput describes a new background-check case.
type PlaceOrderInput struct {
	SubjectID        string
	CustomerID       string
	PolicySnapshotID string
	PackageCode      string
}

// PlaceOrder creates a new order in the created status.
func (e *Engine) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*order.Order, error) {
	ord, err := order.Create(order.CreateInput{
		SubjectID:        input.SubjectID,
		CustomerID:       input.CustomerID,
		PolicySnapshotID: input.PolicySnapshotID,
		PackageCode:      input.PackageCode,
	}, e.now)
	if err != nil {
		return nil, err
	}
	if err := e.saveOrder(ctx, ord); err != nil {
		return nil, err
	}
	return ord, nil
}

// InviteSubject records that the subject was invited to intake.
func (e *Engine) InviteSubject(ctx context.Context, orderID, reason string) (*order.Order, error) {
	return e.orderCommand(ctx, orderID, func(ord *order.Order) error {
		return ord.RecordInvite(reason, e.now())
	})
}

// BeginIntake records that the subject started the intake flow.
func (e *Engine) BeginIntake(ctx context.Context, orderID, reason string) (*order.Order, error) {
	return e.orderCommand(ctx, orderID, func(ord *order.Order) error {
		return ord.MarkIntakeInProgress(reason, e.now())
	})
}

// CompleteIntake records that the subject submitted intake.
func (e *Engine) CompleteIntake(ctx context.Context, orderID, reason string) (*order.Order, error) {
	return e.orderCommand(ctx, orderID, func(ord *order.Order) error {
		return ord.MarkIntakeSubmitted(reason, e.now())
	})
}

// ReadyOrderForFulfillment moves a completed intake to the routing queue.
func (e *Engine) ReadyOrderForFulfillment(ctx context.Context, orderID, reason string) (*order.Order, error) {
	return e.orderCommand(ctx, orderID, func(ord *order.Order) error {
		return ord.MarkReadyForFulfillment(reason, e.now())
	})
}

// CloseOrder closes an order that is ready for report.
func (e *Engine) CloseOrder(ctx context.Context, orderID, reason string) (*order.Order, error) {
	return e.orderCommand(ctx, orderID, func(ord *order.Order) error {
		return ord.Close(reason, e.now())
	})
}

// BlockOrder parks an order, remembering the status to return to.
func (e *Engine) BlockOrder(ctx context.Context, orderID, reason string) (*order.Order, error) {
	return e.orderCommand(ctx, orderID, func(ord *order.Order) error {
		return ord.Block(reason, e.now())
	})
}

// ResumeOrder returns a blocked order to its pre-block status.
func (e *Engine) ResumeOrder(ctx context.Context, orderID, reason string) (*order.Order, error) {
	return e.orderCommand(ctx, orderID, func(ord *order.Order) error {
		return ord.ResumeFromBlock(reason, e.now())
	})
}

// CancelOrder withdraws an order and cancels its open services.
func (e *Engine) CancelOrder(ctx context.Context, orderID, reason string) (*order.Order, error) {
	ord, err := e.orderCommand(ctx, orderID, func(ord *order.Order) error {
		return ord.Cancel(reason, e.now())
	})
	if err != nil {
		return nil, err
	}
	services, err := e.services.ListServicesByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, svc := range services {
		if svc.IsTerminal() {
			continue
		}
		if _, err := e.serviceCommand(ctx, svc.ID, func(svc *service.Service) error {
			return svc.Cancel(reason, e.now())
		}); err != nil {
			return nil, fmt.Errorf("cancel service %s: %w", svc.ID, err)
		}
	}
	return ord, nil
}

// ServiceSpec describes one check an order fans out into.
type ServiceSpec struct {
	TypeCode          string
	Category          string
	Tier              int
	Geo               *service.GeoScope
	CatalogSnapshotID string
	MaxAttempts       int
}

// BeginFulfillmentInput describes the fan-out when an order enters
// fulfillment.
type BeginFulfillmentInput struct {
	OrderID            string
	Reason             string
	Services           []ServiceSpec
	TargetBusinessDays int
	AtRiskPercent      float64
}

// FulfillmentStart reports what BeginFulfillment created.
type FulfillmentStart struct {
	Order    *order.Order
	Services []*service.Service
	Clock    *slaclock.Clock
}

// BeginFulfillment moves the order into fulfillment, creates its services,
// and starts the fulfillment SLA clock against the tenant's business
// calendar.
func (e *Engine) BeginFulfillment(ctx context.Context, input BeginFulfillmentInput) (*FulfillmentStart, error) {
	ord, err := e.orderCommand(ctx, input.OrderID, func(ord *order.Order) error {
		return ord.BeginFulfillment(input.Reason, e.now())
	})
	if err != nil {
		return nil, err
	}

	services := make([]*service.Service, 0, len(input.Services))
	for _, spec := range input.Services {
		svc, err := service.Create(service.CreateInput{
			OrderID:           ord.ID,
			CustomerID:        ord.CustomerID,
			ServiceTypeCode:   spec.TypeCode,
			Category:          spec.Category,
			Tier:              spec.Tier,
			Geo:               spec.Geo,
			CatalogSnapshotID: spec.CatalogSnapshotID,
			MaxAttempts:       spec.MaxAttempts,
		}, e.now)
		if err != nil {
			return nil, err
		}
		if err := e.saveService(ctx, svc); err != nil {
			return nil, err
		}
		services = append(services, svc)
	}

	clock, err := e.startFulfillmentClock(ctx, ord, input.TargetBusinessDays, input.AtRiskPercent)
	if err != nil {
		return nil, err
	}
	return &FulfillmentStart{Order: ord, Services: services, Clock: clock}, nil
}

// startFulfillmentClock computes the deadline on the tenant's business
// calendar and starts a running clock.
func (e *Engine) startFulfillmentClock(ctx context.Context, ord *order.Order, targetDays int, atRiskPercent float64) (*slaclock.Clock, error) {
	if targetDays <= 0 {
		targetDays = DefaultTargetBusinessDays
	}
	holidays, err := e.holidaySet(ctx, ord.CustomerID)
	if err != nil {
		return nil, err
	}

	startedAt := e.now()
	deadlineAt, err := calendar.AddBusinessDays(startedAt, targetDays, holidays)
	if err != nil {
		return nil, err
	}
	percent := atRiskPercent
	if percent == 0 {
		percent = calendar.DefaultAtRiskPercent
	}
	thresholdAt, err := calendar.AtRiskThreshold(startedAt, deadlineAt, percent)
	if err != nil {
		return nil, err
	}

	clock, err := slaclock.Start(slaclock.StartInput{
		OrderID:            ord.ID,
		CustomerID:         ord.CustomerID,
		Kind:               slaclock.KindFulfillment,
		StartedAt:          startedAt,
		DeadlineAt:         deadlineAt,
		AtRiskThresholdAt:  thresholdAt,
		AtRiskPercent:      percent,
		TargetBusinessDays: targetDays,
	})
	if err != nil {
		return nil, err
	}
	if err := e.saveClock(ctx, clock); err != nil {
		return nil, err
	}
	return clock, nil
}

func (e *Engine) holidaySet(ctx context.Context, tenantID string) (calendar.HolidaySet, error) {
	dates, err := e.holidays.ListHolidaysForTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load holidays: %w", err)
	}
	return calendar.NewHolidaySet(dates...), nil
}

// EvaluateOrderProgress checks whether all tier-1 services of a fulfilling
// order have landed and, if so, moves the order to ready-for-report and
// completes its fulfillment clock. It reports whether the order advanced.
func (e *Engine) EvaluateOrderProgress(ctx context.Context, orderID string) (bool, error) {
	ord, err := e.orders.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	if ord.Status != order.StatusFulfillmentInProgress {
		return false, nil
	}

	services, err := e.services.ListServicesByOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	var completed int
	for _, svc := range services {
		if svc.Tier > 1 {
			continue
		}
		switch svc.Status {
		case service.StatusCompleted:
			completed++
		case service.StatusCanceled:
			// canceled checks do not gate the report
		default:
			return false, nil
		}
	}
	if completed == 0 {
		return false, nil
	}

	if _, err := e.orderCommand(ctx, orderID, func(ord *order.Order) error {
		return ord.MarkReadyForReport("all tier-1 services completed", e.now())
	}); err != nil {
		return false, err
	}
	if err := e.completeOrderClock(ctx, orderID); err != nil {
		return false, err
	}
	return true, nil
}
