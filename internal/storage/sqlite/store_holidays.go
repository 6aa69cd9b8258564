package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ListHolidaysForTenant returns the tenant's holidays merged with the
// global calendar (empty tenant id), sorted by date.
func (s *Store) ListHolidaysForTenant(ctx context.Context, tenantID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT DISTINCT date FROM holidays WHERE tenant_id = '' OR tenant_id = ? ORDER BY date`,
		strings.TrimSpace(tenantID),
	)
	if err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("scan holiday: %w", err)
		}
		dates = append(dates, date)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list holidays rows: %w", err)
	}
	return dates, nil
}

// AddHoliday records a holiday for a tenant, or for every tenant when the
// tenant id is empty. The date must be YYYY-MM-DD.
func (s *Store) AddHoliday(ctx context.Context, tenantID, date string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	date = strings.TrimSpace(date)
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("holiday date must be YYYY-MM-DD: %w", err)
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO holidays (tenant_id, date) VALUES (?, ?)`,
		strings.TrimSpace(tenantID),
		date,
	)
	if err != nil {
		return fmt.Errorf("add holiday: %w", err)
	}
	return nil
}
