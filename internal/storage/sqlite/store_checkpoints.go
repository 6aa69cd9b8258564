package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Turnage-Digital/Holmes-sub001/internal/storage"
)

// GetCheckpoint returns the persisted checkpoint for a projection.
func (s *Store) GetCheckpoint(ctx context.Context, projection string) (storage.Checkpoint, bool, error) {
	if err := ctx.Err(); err != nil {
		return storage.Checkpoint{}, false, err
	}
	if err := s.ready(); err != nil {
		return storage.Checkpoint{}, false, err
	}
	projection = strings.TrimSpace(projection)
	if projection == "" {
		return storage.Checkpoint{}, false, fmt.Errorf("projection name is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT projection, position, cursor, updated_at FROM projection_checkpoints WHERE projection = ?`,
		projection,
	)
	var checkpoint storage.Checkpoint
	var updatedAt int64
	err := row.Scan(&checkpoint.Projection, &checkpoint.Position, &checkpoint.Cursor, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Checkpoint{}, false, nil
		}
		return storage.Checkpoint{}, false, fmt.Errorf("get checkpoint: %w", err)
	}
	checkpoint.UpdatedAt = fromMillis(updatedAt)
	return checkpoint, true, nil
}

// SaveCheckpoint upserts a projection checkpoint.
func (s *Store) SaveCheckpoint(ctx context.Context, checkpoint storage.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(checkpoint.Projection) == "" {
		return fmt.Errorf("projection name is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO projection_checkpoints (projection, position, cursor, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (projection) DO UPDATE SET
		   position = excluded.position,
		   cursor = excluded.cursor,
		   updated_at = excluded.updated_at`,
		checkpoint.Projection,
		checkpoint.Position,
		checkpoint.Cursor,
		toMillis(checkpoint.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// ClearCheckpoint removes a projection checkpoint.
func (s *Store) ClearCheckpoint(ctx context.Context, projection string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	projection = strings.TrimSpace(projection)
	if projection == "" {
		return fmt.Errorf("projection name is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `DELETE FROM projection_checkpoints WHERE projection = ?`, projection)
	if err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}
