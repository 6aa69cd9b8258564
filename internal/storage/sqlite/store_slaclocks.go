package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/event"
	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/slaclock"
	"github.com/Turnage-Digital/Holmes-sub001/internal/storage"
)

// PutSlaClock inserts a fresh clock or updates an existing one under
// optimistic concurrency, appending evts to the journal in the same
// transaction.
func (s *Store) PutSlaClock(ctx context.Context, clock *slaclock.Clock, evts []event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if clock == nil || strings.TrimSpace(clock.ID) == "" {
		return fmt.Errorf("clock id is required")
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := putSlaClockTx(ctx, tx, clock); err != nil {
			return err
		}
		return appendEventsTx(ctx, tx, evts)
	})
	if err != nil {
		return err
	}
	clock.Version++
	return nil
}

func putSlaClockTx(ctx context.Context, tx *sql.Tx, clock *slaclock.Clock) error {
	if clock.Version == 0 {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO sla_clocks (
			   id, order_id, customer_id, kind, state,
			   started_at, deadline_at, at_risk_threshold_at,
			   at_risk_percent, target_business_days,
			   accumulated_pause_ms, paused_at, pause_reason,
			   at_risk_at, breached_at, completed_at,
			   last_updated_at, version
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			clock.ID,
			clock.OrderID,
			clock.CustomerID,
			string(clock.Kind),
			string(clock.State),
			toMillis(clock.StartedAt),
			toMillis(clock.DeadlineAt),
			toMillis(clock.AtRiskThresholdAt),
			clock.AtRiskPercent,
			clock.TargetBusinessDays,
			clock.AccumulatedPauseTime.Milliseconds(),
			toNullMillis(clock.PausedAt),
			clock.PauseReason,
			toNullMillis(clock.AtRiskAt),
			toNullMillis(clock.BreachedAt),
			toNullMillis(clock.CompletedAt),
			toMillis(clock.LastUpdatedAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return storage.ErrVersionConflict
			}
			return fmt.Errorf("insert sla clock: %w", err)
		}
		return nil
	}

	res, err := tx.ExecContext(
		ctx,
		`UPDATE sla_clocks SET
		   state = ?, accumulated_pause_ms = ?, paused_at = ?, pause_reason = ?,
		   deadline_at = ?, at_risk_threshold_at = ?,
		   at_risk_at = ?, breached_at = ?, completed_at = ?,
		   last_updated_at = ?,
		   version = version + 1
		 WHERE id = ? AND version = ?`,
		string(clock.State),
		clock.AccumulatedPauseTime.Milliseconds(),
		toNullMillis(clock.PausedAt),
		clock.PauseReason,
		toMillis(clock.DeadlineAt),
		toMillis(clock.AtRiskThresholdAt),
		toNullMillis(clock.AtRiskAt),
		toNullMillis(clock.BreachedAt),
		toNullMillis(clock.CompletedAt),
		toMillis(clock.LastUpdatedAt),
		clock.ID,
		clock.Version,
	)
	if err != nil {
		return fmt.Errorf("update sla clock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sla clock rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrVersionConflict
	}
	return nil
}

const slaClockColumns = `id, order_id, customer_id, kind, state,
	        started_at, deadline_at, at_risk_threshold_at,
	        at_risk_percent, target_business_days,
	        accumulated_pause_ms, paused_at, pause_reason,
	        at_risk_at, breached_at, completed_at,
	        last_updated_at, version`

// GetSlaClock returns one clock by id.
func (s *Store) GetSlaClock(ctx context.Context, id string) (*slaclock.Clock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("clock id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+slaClockColumns+` FROM sla_clocks WHERE id = ?`, id)
	return scanSlaClock(row)
}

// GetSlaClockByOrder returns the clock tracking the given phase of an order.
func (s *Store) GetSlaClockByOrder(ctx context.Context, orderID string, kind slaclock.Kind) (*slaclock.Clock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("order id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+slaClockColumns+` FROM sla_clocks WHERE order_id = ? AND kind = ?`,
		orderID,
		string(kind),
	)
	return scanSlaClock(row)
}

// ListUnresolvedSlaClocks returns clocks the sweep can act on.
func (s *Store) ListUnresolvedSlaClocks(ctx context.Context) ([]*slaclock.Clock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+slaClockColumns+` FROM sla_clocks WHERE state IN (?, ?) ORDER BY id`,
		string(slaclock.StateRunning),
		string(slaclock.StateAtRisk),
	)
	if err != nil {
		return nil, fmt.Errorf("list unresolved sla clocks: %w", err)
	}
	defer rows.Close()

	var clocks []*slaclock.Clock
	for rows.Next() {
		clock, err := scanSlaClock(rows)
		if err != nil {
			return nil, err
		}
		clocks = append(clocks, clock)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list unresolved sla clocks rows: %w", err)
	}
	return clocks, nil
}

func scanSlaClock(row rowScanner) (*slaclock.Clock, error) {
	var clock slaclock.Clock
	var kind, state string
	var startedAt, deadlineAt, atRiskThresholdAt, lastUpdatedAt, accumulatedPauseMillis int64
	var pausedAt, atRiskAt, breachedAt, completedAt sql.NullInt64

	err := row.Scan(
		&clock.ID,
		&clock.OrderID,
		&clock.CustomerID,
		&kind,
		&state,
		&startedAt,
		&deadlineAt,
		&atRiskThresholdAt,
		&clock.AtRiskPercent,
		&clock.TargetBusinessDays,
		&accumulatedPauseMillis,
		&pausedAt,
		&clock.PauseReason,
		&atRiskAt,
		&breachedAt,
		&completedAt,
		&lastUpdatedAt,
		&clock.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scan sla clock: %w", err)
	}

	clock.Kind = slaclock.Kind(kind)
	clock.State = slaclock.State(state)
	clock.StartedAt = fromMillis(startedAt)
	clock.DeadlineAt = fromMillis(deadlineAt)
	clock.AtRiskThresholdAt = fromMillis(atRiskThresholdAt)
	clock.AccumulatedPauseTime = time.Duration(accumulatedPauseMillis) * time.Millisecond
	clock.PausedAt = fromNullMillis(pausedAt)
	clock.AtRiskAt = fromNullMillis(atRiskAt)
	clock.BreachedAt = fromNullMillis(breachedAt)
	clock.CompletedAt = fromNullMillis(completedAt)
	clock.LastUpdatedAt = fromMillis(lastUpdatedAt)
	return &clock, nil
}
