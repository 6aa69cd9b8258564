package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/event"
)

// AppendEvents persists a batch of events in one transaction, assigning
// per-stream and global sequence numbers. Assigned sequences are written
// back into the supplied slice.
func (s *Store) AppendEvents(ctx context.Context, events []event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return appendEventsTx(ctx, tx, events)
	})
}

// appendEventsTx inserts events inside an open transaction. Aggregate saves
// share it so a state change and its events commit or roll back together.
func appendEventsTx(ctx context.Context, tx *sql.Tx, events []event.Event) error {
	for i := range events {
		ev := &events[i]
		var seq uint64
		row := tx.QueryRowContext(
			ctx,
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM events WHERE stream_type = ? AND stream_id = ?`,
			string(ev.StreamType),
			ev.StreamID,
		)
		if err := row.Scan(&seq); err != nil {
			return fmt.Errorf("next stream seq: %w", err)
		}

		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO events (
			   stream_type, stream_id, seq, event_type,
			   order_id, customer_id, payload, timestamp
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(ev.StreamType),
			ev.StreamID,
			seq,
			string(ev.Type),
			ev.OrderID,
			ev.CustomerID,
			string(ev.PayloadJSON),
			toMillis(ev.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		globalSeq, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("event global seq: %w", err)
		}
		ev.Seq = seq
		ev.GlobalSeq = uint64(globalSeq)
	}
	return nil
}

// ListEventsAfter returns up to limit events strictly after afterGlobalSeq
// in journal order.
func (s *Store) ListEventsAfter(ctx context.Context, afterGlobalSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT global_seq, stream_type, stream_id, seq, event_type,
		        order_id, customer_id, payload, timestamp
		   FROM events
		  WHERE global_seq > ?
		  ORDER BY global_seq
		  LIMIT ?`,
		afterGlobalSeq,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var ev event.Event
		var streamType, eventType, payload string
		var timestamp int64
		err := rows.Scan(
			&ev.GlobalSeq,
			&streamType,
			&ev.StreamID,
			&ev.Seq,
			&eventType,
			&ev.OrderID,
			&ev.CustomerID,
			&payload,
			&timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.StreamType = event.StreamType(streamType)
		ev.Type = event.Type(eventType)
		if payload != "" {
			ev.PayloadJSON = []byte(payload)
		}
		ev.Timestamp = fromMillis(timestamp)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events rows: %w", err)
	}
	return events, nil
}
