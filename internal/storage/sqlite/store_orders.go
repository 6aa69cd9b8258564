package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/event"
	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/order"
	"github.com/Turnage-Digital/Holmes-sub001/internal/storage"
)

// PutOrder inserts a fresh order or updates an existing one under optimistic
// concurrency, appending evts to the journal in the same transaction. The
// aggregate version is bumped on success.
func (s *Store) PutOrder(ctx context.Context, ord *order.Order, evts []event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if ord == nil || strings.TrimSpace(ord.ID) == "" {
		return fmt.Errorf("order id is required")
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := putOrderTx(ctx, tx, ord); err != nil {
			return err
		}
		return appendEventsTx(ctx, tx, evts)
	})
	if err != nil {
		return err
	}
	ord.Version++
	return nil
}

func putOrderTx(ctx context.Context, tx *sql.Tx, ord *order.Order) error {
	if ord.Version == 0 {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO orders (
			   id, subject_id, customer_id, policy_snapshot_id, package_code,
			   status, last_status_reason, status_before_block, block_reason,
			   created_at, last_updated_at,
			   invited_at, intake_started_at, intake_completed_at,
			   ready_for_routing_at, fulfillment_started_at, ready_for_report_at,
			   closed_at, blocked_at, canceled_at,
			   version
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			ord.ID,
			ord.SubjectID,
			ord.CustomerID,
			ord.PolicySnapshotID,
			ord.PackageCode,
			string(ord.Status),
			ord.LastStatusReason,
			string(ord.StatusBeforeBlock),
			ord.BlockReason,
			toMillis(ord.CreatedAt),
			toMillis(ord.LastUpdatedAt),
			toNullMillis(ord.InvitedAt),
			toNullMillis(ord.IntakeStartedAt),
			toNullMillis(ord.IntakeCompletedAt),
			toNullMillis(ord.ReadyForRoutingAt),
			toNullMillis(ord.FulfillmentStartedAt),
			toNullMillis(ord.ReadyForReportAt),
			toNullMillis(ord.ClosedAt),
			toNullMillis(ord.BlockedAt),
			toNullMillis(ord.CanceledAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return storage.ErrVersionConflict
			}
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	}

	res, err := tx.ExecContext(
		ctx,
		`UPDATE orders SET
		   status = ?, last_status_reason = ?, status_before_block = ?, block_reason = ?,
		   last_updated_at = ?,
		   invited_at = ?, intake_started_at = ?, intake_completed_at = ?,
		   ready_for_routing_at = ?, fulfillment_started_at = ?, ready_for_report_at = ?,
		   closed_at = ?, blocked_at = ?, canceled_at = ?,
		   version = version + 1
		 WHERE id = ? AND version = ?`,
		string(ord.Status),
		ord.LastStatusReason,
		string(ord.StatusBeforeBlock),
		ord.BlockReason,
		toMillis(ord.LastUpdatedAt),
		toNullMillis(ord.InvitedAt),
		toNullMillis(ord.IntakeStartedAt),
		toNullMillis(ord.IntakeCompletedAt),
		toNullMillis(ord.ReadyForRoutingAt),
		toNullMillis(ord.FulfillmentStartedAt),
		toNullMillis(ord.ReadyForReportAt),
		toNullMillis(ord.ClosedAt),
		toNullMillis(ord.BlockedAt),
		toNullMillis(ord.CanceledAt),
		ord.ID,
		ord.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrVersionConflict
	}
	return nil
}

// GetOrder returns one order by id.
func (s *Store) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("order id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, subject_id, customer_id, policy_snapshot_id, package_code,
		        status, last_status_reason, status_before_block, block_reason,
		        created_at, last_updated_at,
		        invited_at, intake_started_at, intake_completed_at,
		        ready_for_routing_at, fulfillment_started_at, ready_for_report_at,
		        closed_at, blocked_at, canceled_at,
		        version
		   FROM orders
		  WHERE id = ?`,
		id,
	)
	return scanOrder(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var ord order.Order
	var status, statusBeforeBlock string
	var createdAt, lastUpdatedAt int64
	var invitedAt, intakeStartedAt, intakeCompletedAt sql.NullInt64
	var readyForRoutingAt, fulfillmentStartedAt, readyForReportAt sql.NullInt64
	var closedAt, blockedAt, canceledAt sql.NullInt64

	err := row.Scan(
		&ord.ID,
		&ord.SubjectID,
		&ord.CustomerID,
		&ord.PolicySnapshotID,
		&ord.PackageCode,
		&status,
		&ord.LastStatusReason,
		&statusBeforeBlock,
		&ord.BlockReason,
		&createdAt,
		&lastUpdatedAt,
		&invitedAt,
		&intakeStartedAt,
		&intakeCompletedAt,
		&readyForRoutingAt,
		&fulfillmentStartedAt,
		&readyForReportAt,
		&closedAt,
		&blockedAt,
		&canceledAt,
		&ord.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	ord.Status = order.Status(status)
	ord.StatusBeforeBlock = order.Status(statusBeforeBlock)
	ord.CreatedAt = fromMillis(createdAt)
	ord.LastUpdatedAt = fromMillis(lastUpdatedAt)
	ord.InvitedAt = fromNullMillis(invitedAt)
	ord.IntakeStartedAt = fromNullMillis(intakeStartedAt)
	ord.IntakeCompletedAt = fromNullMillis(intakeCompletedAt)
	ord.ReadyForRoutingAt = fromNullMillis(readyForRoutingAt)
	ord.FulfillmentStartedAt = fromNullMillis(fulfillmentStartedAt)
	ord.ReadyForReportAt = fromNullMillis(readyForReportAt)
	ord.ClosedAt = fromNullMillis(closedAt)
	ord.BlockedAt = fromNullMillis(blockedAt)
	ord.CanceledAt = fromNullMillis(canceledAt)
	return &ord, nil
}

// isUniqueViolation reports whether an insert hit a primary key or unique
// index.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "unique constraint") || strings.Contains(value, "constraint failed")
}
