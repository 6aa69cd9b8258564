// Package orchestration coordinates the order, service, and SLA clock
// aggregates.
//
// Aggregates never call each other. Every cross-aggregate effect (a vendor
// result moving an order forward, a sweep breaching a clock) is an explicit
// follow-up command issued here. Each command is a load-validate-mutate-save
// unit; saves that lose an optimistic concurrency race are reloaded and
// retried a bounded number of times.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/order"
	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/service"
	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/slaclock"
	"github.com/Turnage-Digital/Holmes-sub001/internal/storage"
	"github.com/Turnage-Digital/Holmes-sub001/internal/vendors"
)

// conflictRetries bounds how many times a command reloads after losing an
// optimistic concurrency race.
const conflictRetries = 3

// Config carries the collaborators an Engine needs.
type Config struct {
	Orders   storage.OrderStore
	Services storage.ServiceStore
	Clocks   storage.SlaClockStore
	Holidays storage.HolidayStore
	Registry *vendors.Registry
}

// Engine executes fulfillment commands against the aggregate stores.
type Engine struct {
	orders   storage.OrderStore
	services storage.ServiceStore
	clocks   storage.SlaClockStore
	holidays storage.HolidayStore
	registry *vendors.Registry
	now      func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New builds an Engine over the given stores and vendor registry.
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		orders:   cfg.Orders,
		services: cfg.Services,
		clocks:   cfg.Clocks,
		holidays: cfg.Holidays,
		registry: cfg.Registry,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// retryConflict runs op, reloading and reapplying on version conflicts. The
// op must load its aggregate fresh on every call.
func retryConflict(ctx context.Context, op func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		err = op(ctx)
		if !errors.Is(err, storage.ErrVersionConflict) {
			return err
		}
	}
	return fmt.Errorf("command retries exhausted: %w", err)
}

// saveOrder drains the aggregate's events and persists both through the
// store's transactional save. Draining before the save keeps a stored copy
// from ever carrying pending events back out of a load, which would replay
// them on the next command. On a version conflict the drained batch is
// discarded with the mutation; the retry regenerates both from a fresh load.
func (e *Engine) saveOrder(ctx context.Context, ord *order.Order) error {
	return e.orders.PutOrder(ctx, ord, ord.DrainEvents())
}

func (e *Engine) saveService(ctx context.Context, svc *service.Service) error {
	return e.services.PutService(ctx, svc, svc.DrainEvents())
}

func (e *Engine) saveClock(ctx context.Context, clock *slaclock.Clock) error {
	return e.clocks.PutSlaClock(ctx, clock, clock.DrainEvents())
}

// orderCommand loads, mutates, and saves one order with conflict retry.
func (e *Engine) orderCommand(ctx context.Context, orderID string, apply func(*order.Order) error) (*order.Order, error) {
	var result *order.Order
	err := retryConflict(ctx, func(ctx context.Context) error {
		ord, err := e.orders.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := apply(ord); err != nil {
			return err
		}
		if err := e.saveOrder(ctx, ord); err != nil {
			return err
		}
		result = ord
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// serviceCommand loads, mutates, and saves one service with conflict retry.
func (e *Engine) serviceCommand(ctx context.Context, serviceID string, apply func(*service.Service) error) (*service.Service, error) {
	var result *service.Service
	err := retryConflict(ctx, func(ctx context.Context) error {
		svc, err := e.services.GetService(ctx, serviceID)
		if err != nil {
			return err
		}
		if err := apply(svc); err != nil {
			return err
		}
		if err := e.saveService(ctx, svc); err != nil {
			return err
		}
		result = svc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// clockCommand loads, mutates, and saves one clock with conflict retry.
func (e *Engine) clockCommand(ctx context.Context, clockID string, apply func(*slaclock.Clock) error) (*slaclock.Clock, error) {
	var result *slaclock.Clock
	err := retryConflict(ctx, func(ctx context.Context) error {
		clock, err := e.clocks.GetSlaClock(ctx, clockID)
		if err != nil {
			return err
		}
		if err := apply(clock); err != nil {
			return err
		}
		if err := e.saveClock(ctx, clock); err != nil {
			return err
		}
		result = clock
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
