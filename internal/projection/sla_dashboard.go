package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/event"
)

// SlaDashboard maintains one row per SLA clock with its state and deadline,
// the backing table for turnaround monitoring.
type SlaDashboard struct {
	sqlDB *sql.DB
}

// NewSlaDashboard builds the SLA dashboard applier over the given handle.
func NewSlaDashboard(sqlDB *sql.DB) *SlaDashboard {
	return &SlaDashboard{sqlDB: sqlDB}
}

func (p *SlaDashboard) Name() string { return "sla_dashboard" }

func (p *SlaDashboard) Reset(ctx context.Context) error {
	if _, err := p.sqlDB.ExecContext(ctx, `DELETE FROM proj_sla_dashboard`); err != nil {
		return fmt.Errorf("reset sla dashboard: %w", err)
	}
	return nil
}

func (p *SlaDashboard) Apply(ctx context.Context, events []event.Event) error {
	tx, err := p.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sla dashboard batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, ev := range events {
		if ev.StreamType != event.StreamSlaClock {
			continue
		}
		if err := p.applyOne(ctx, tx, ev); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sla dashboard batch: %w", err)
	}
	return nil
}

func (p *SlaDashboard) applyOne(ctx context.Context, tx *sql.Tx, ev event.Event) error {
	switch ev.Type {
	case event.TypeSlaClockStarted:
		var payload event.SlaClockStartedPayload
		if err := json.Unmarshal(ev.PayloadJSON, &payload); err != nil {
			return fmt.Errorf("decode sla started payload: %w", err)
		}
		deadlineAt, err := time.Parse(time.RFC3339, payload.DeadlineAt)
		if err != nil {
			return fmt.Errorf("parse sla deadline: %w", err)
		}
		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO proj_sla_dashboard (clock_id, order_id, state, deadline_at, updated_at)
			 VALUES (?, ?, 'running', ?, ?)
			 ON CONFLICT (clock_id) DO UPDATE SET
			   order_id = excluded.order_id,
			   deadline_at = excluded.deadline_at,
			   updated_at = excluded.updated_at`,
			ev.StreamID,
			ev.OrderID,
			toMillis(deadlineAt),
			toMillis(ev.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("apply sla started: %w", err)
		}

	case event.TypeSlaClockAtRisk:
		return p.setState(ctx, tx, ev, "at_risk", 0)
	case event.TypeSlaClockBreached:
		return p.setState(ctx, tx, ev, "breached", 0)
	case event.TypeSlaClockCompleted:
		return p.setState(ctx, tx, ev, "completed", 0)
	case event.TypeSlaClockPaused:
		return p.setState(ctx, tx, ev, "paused", 1)
	case event.TypeSlaClockResumed:
		return p.setState(ctx, tx, ev, "running", 0)
	}
	return nil
}

func (p *SlaDashboard) setState(ctx context.Context, tx *sql.Tx, ev event.Event, state string, paused int) error {
	_, err := tx.ExecContext(
		ctx,
		`UPDATE proj_sla_dashboard SET state = ?, paused = ?, updated_at = ? WHERE clock_id = ?`,
		state,
		paused,
		toMillis(ev.Timestamp),
		ev.StreamID,
	)
	if err != nil {
		return fmt.Errorf("apply sla %s: %w", state, err)
	}
	return nil
}
