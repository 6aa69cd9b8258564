package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/event"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// OrderSummary maintains one row per order with its current status and
// counters over the current status of its services, the backing table for
// case dashboards.
type OrderSummary struct {
	sqlDB *sql.DB
}

// NewOrderSummary builds the order summary applier over the given handle.
func NewOrderSummary(sqlDB *sql.DB) *OrderSummary {
	return &OrderSummary{sqlDB: sqlDB}
}

func (p *OrderSummary) Name() string { return "order_summary" }

func (p *OrderSummary) Reset(ctx context.Context) error {
	if _, err := p.sqlDB.ExecContext(ctx, `DELETE FROM proj_order_summary_services`); err != nil {
		return fmt.Errorf("reset order summary services: %w", err)
	}
	if _, err := p.sqlDB.ExecContext(ctx, `DELETE FROM proj_order_summaries`); err != nil {
		return fmt.Errorf("reset order summaries: %w", err)
	}
	return nil
}

func (p *OrderSummary) Apply(ctx context.Context, events []event.Event) error {
	tx, err := p.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order summary batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, ev := range events {
		if err := p.applyOne(ctx, tx, ev); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order summary batch: %w", err)
	}
	return nil
}

func (p *OrderSummary) applyOne(ctx context.Context, tx *sql.Tx, ev event.Event) error {
	switch ev.Type {
	case event.TypeOrderCreated:
		var payload event.OrderCreatedPayload
		if err := json.Unmarshal(ev.PayloadJSON, &payload); err != nil {
			return fmt.Errorf("decode order created payload: %w", err)
		}
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO proj_order_summaries (order_id, customer_id, status, updated_at)
			 VALUES (?, ?, 'created', ?)
			 ON CONFLICT (order_id) DO UPDATE SET
			   customer_id = excluded.customer_id,
			   updated_at = excluded.updated_at`,
			ev.OrderID,
			payload.CustomerID,
			toMillis(ev.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("apply order created: %w", err)
		}

	case event.TypeOrderStatusChanged:
		var payload event.OrderStatusChangedPayload
		if err := json.Unmarshal(ev.PayloadJSON, &payload); err != nil {
			return fmt.Errorf("decode order status payload: %w", err)
		}
		_, err := tx.ExecContext(
			ctx,
			`UPDATE proj_order_summaries SET status = ?, last_reason = ?, updated_at = ? WHERE order_id = ?`,
			payload.ToStatus,
			payload.Reason,
			toMillis(ev.Timestamp),
			ev.OrderID,
		)
		if err != nil {
			return fmt.Errorf("apply order status change: %w", err)
		}

	case event.TypeServiceCreated, event.TypeServiceDispatched, event.TypeServiceInProgress,
		event.TypeServiceCompleted, event.TypeServiceFailed,
		event.TypeServiceRetried, event.TypeServiceCanceled:
		return p.applyServiceEvent(ctx, tx, ev)
	}
	return nil
}

// applyServiceEvent upserts the service's current status and recomputes the
// order's counters from it. Recounting instead of incrementing keeps the
// counters correct when a batch is applied more than once, which happens
// when a crash lands between a batch commit and its checkpoint save.
func (p *OrderSummary) applyServiceEvent(ctx context.Context, tx *sql.Tx, ev event.Event) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO proj_order_summary_services (service_id, order_id, status)
		 VALUES (?, ?, ?)
		 ON CONFLICT (service_id) DO UPDATE SET status = excluded.status`,
		ev.StreamID,
		ev.OrderID,
		serviceStatusFor(ev.Type),
	)
	if err != nil {
		return fmt.Errorf("apply service status: %w", err)
	}

	_, err = tx.ExecContext(
		ctx,
		`UPDATE proj_order_summaries SET
		   service_count = (SELECT COUNT(*) FROM proj_order_summary_services WHERE order_id = ?),
		   completed_service_count = (SELECT COUNT(*) FROM proj_order_summary_services WHERE order_id = ? AND status = 'completed'),
		   failed_service_count = (SELECT COUNT(*) FROM proj_order_summary_services WHERE order_id = ? AND status = 'failed'),
		   updated_at = ?
		 WHERE order_id = ?`,
		ev.OrderID,
		ev.OrderID,
		ev.OrderID,
		toMillis(ev.Timestamp),
		ev.OrderID,
	)
	if err != nil {
		return fmt.Errorf("recount order services: %w", err)
	}
	return nil
}

func serviceStatusFor(eventType event.Type) string {
	switch eventType {
	case event.TypeServiceDispatched:
		return "dispatched"
	case event.TypeServiceInProgress:
		return "in_progress"
	case event.TypeServiceCompleted:
		return "completed"
	case event.TypeServiceFailed:
		return "failed"
	case event.TypeServiceCanceled:
		return "canceled"
	default:
		return "pending"
	}
}
