package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/event"
)

// ServiceBoard maintains one row per service with its dispatch status,
// vendor, and retry bookkeeping, the backing table for the operations board.
type ServiceBoard struct {
	sqlDB *sql.DB
}

// NewServiceBoard builds the service board applier over the given handle.
func NewServiceBoard(sqlDB *sql.DB) *ServiceBoard {
	return &ServiceBoard{sqlDB: sqlDB}
}

func (p *ServiceBoard) Name() string { return "service_board" }

func (p *ServiceBoard) Reset(ctx context.Context) error {
	if _, err := p.sqlDB.ExecContext(ctx, `DELETE FROM proj_service_board`); err != nil {
		return fmt.Errorf("reset service board: %w", err)
	}
	return nil
}

func (p *ServiceBoard) Apply(ctx context.Context, events []event.Event) error {
	tx, err := p.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin service board batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, ev := range events {
		if ev.StreamType != event.StreamService {
			continue
		}
		if err := p.applyOne(ctx, tx, ev); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit service board batch: %w", err)
	}
	return nil
}

func (p *ServiceBoard) applyOne(ctx context.Context, tx *sql.Tx, ev event.Event) error {
	switch ev.Type {
	case event.TypeServiceCreated:
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO proj_service_board (service_id, order_id, status, updated_at)
			 VALUES (?, ?, 'pending', ?)
			 ON CONFLICT (service_id) DO UPDATE SET
			   order_id = excluded.order_id,
			   updated_at = excluded.updated_at`,
			ev.StreamID,
			ev.OrderID,
			toMillis(ev.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("apply service created: %w", err)
		}

	case event.TypeServiceDispatched:
		var payload event.ServiceDispatchedPayload
		if err := json.Unmarshal(ev.PayloadJSON, &payload); err != nil {
			return fmt.Errorf("decode service dispatched payload: %w", err)
		}
		_, err := tx.ExecContext(
			ctx,
			`UPDATE proj_service_board SET status = 'dispatched', vendor_code = ?, attempt_count = ?, updated_at = ?
			 WHERE service_id = ?`,
			payload.VendorCode,
			payload.AttemptCount,
			toMillis(ev.Timestamp),
			ev.StreamID,
		)
		if err != nil {
			return fmt.Errorf("apply service dispatched: %w", err)
		}

	case event.TypeServiceInProgress:
		return p.setStatus(ctx, tx, ev, "in_progress")

	case event.TypeServiceCompleted:
		return p.setStatus(ctx, tx, ev, "completed")

	case event.TypeServiceFailed:
		var payload event.ServiceFailedPayload
		if err := json.Unmarshal(ev.PayloadJSON, &payload); err != nil {
			return fmt.Errorf("decode service failed payload: %w", err)
		}
		_, err := tx.ExecContext(
			ctx,
			`UPDATE proj_service_board SET status = 'failed', last_error = ?, attempt_count = ?, updated_at = ?
			 WHERE service_id = ?`,
			payload.Error,
			payload.AttemptCount,
			toMillis(ev.Timestamp),
			ev.StreamID,
		)
		if err != nil {
			return fmt.Errorf("apply service failed: %w", err)
		}

	case event.TypeServiceRetried:
		_, err := tx.ExecContext(
			ctx,
			`UPDATE proj_service_board SET status = 'pending', last_error = '', updated_at = ?
			 WHERE service_id = ?`,
			toMillis(ev.Timestamp),
			ev.StreamID,
		)
		if err != nil {
			return fmt.Errorf("apply service retried: %w", err)
		}

	case event.TypeServiceCanceled:
		return p.setStatus(ctx, tx, ev, "canceled")
	}
	return nil
}

func (p *ServiceBoard) setStatus(ctx context.Context, tx *sql.Tx, ev event.Event, status string) error {
	_, err := tx.ExecContext(
		ctx,
		`UPDATE proj_service_board SET status = ?, updated_at = ? WHERE service_id = ?`,
		status,
		toMillis(ev.Timestamp),
		ev.StreamID,
	)
	if err != nil {
		return fmt.Errorf("apply service %s: %w", status, err)
	}
	return nil
}
