package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/event"
	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/record"
	"github.com/Turnage-Digital/Holmes-sub001/internal/domain/service"
	"github.com/Turnage-Digital/Holmes-sub001/internal/storage"
)

// PutService inserts a fresh service or updates an existing one under
// optimistic concurrency, appending evts to the journal in the same
// transaction.
func (s *Store) PutService(ctx context.Context, svc *service.Service, evts []event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if svc == nil || strings.TrimSpace(svc.ID) == "" {
		return fmt.Errorf("service id is required")
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := putServiceTx(ctx, tx, svc); err != nil {
			return err
		}
		return appendEventsTx(ctx, tx, evts)
	})
	if err != nil {
		return err
	}
	svc.Version++
	return nil
}

func putServiceTx(ctx context.Context, tx *sql.Tx, svc *service.Service) error {
	resultStatus, resultRecords, err := encodeResult(svc.Result)
	if err != nil {
		return err
	}
	geoType, geoValue := "", ""
	if svc.Geo != nil {
		geoType, geoValue = svc.Geo.Type, svc.Geo.Value
	}

	if svc.Version == 0 {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO services (
			   id, order_id, customer_id, service_type_code, category, tier,
			   geo_type, geo_value, catalog_snapshot_id,
			   status, vendor_code, vendor_reference_id,
			   attempt_count, max_attempts, last_error,
			   result_status, result_records,
			   created_at, last_updated_at,
			   dispatched_at, completed_at, failed_at, canceled_at,
			   version
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			svc.ID,
			svc.OrderID,
			svc.CustomerID,
			svc.ServiceTypeCode,
			svc.Category,
			svc.Tier,
			geoType,
			geoValue,
			svc.CatalogSnapshotID,
			string(svc.Status),
			svc.VendorCode,
			svc.VendorReferenceID,
			svc.AttemptCount,
			svc.MaxAttempts,
			svc.LastError,
			resultStatus,
			resultRecords,
			toMillis(svc.CreatedAt),
			toMillis(svc.LastUpdatedAt),
			toNullMillis(svc.DispatchedAt),
			toNullMillis(svc.CompletedAt),
			toNullMillis(svc.FailedAt),
			toNullMillis(svc.CanceledAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return storage.ErrVersionConflict
			}
			return fmt.Errorf("insert service: %w", err)
		}
		return nil
	}

	res, err := tx.ExecContext(
		ctx,
		`UPDATE services SET
		   status = ?, vendor_code = ?, vendor_reference_id = ?,
		   attempt_count = ?, last_error = ?,
		   result_status = ?, result_records = ?,
		   last_updated_at = ?,
		   dispatched_at = ?, completed_at = ?, failed_at = ?, canceled_at = ?,
		   version = version + 1
		 WHERE id = ? AND version = ?`,
		string(svc.Status),
		svc.VendorCode,
		svc.VendorReferenceID,
		svc.AttemptCount,
		svc.LastError,
		resultStatus,
		resultRecords,
		toMillis(svc.LastUpdatedAt),
		toNullMillis(svc.DispatchedAt),
		toNullMillis(svc.CompletedAt),
		toNullMillis(svc.FailedAt),
		toNullMillis(svc.CanceledAt),
		svc.ID,
		svc.Version,
	)
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update service rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrVersionConflict
	}
	return nil
}

const serviceColumns = `id, order_id, customer_id, service_type_code, category, tier,
	        geo_type, geo_value, catalog_snapshot_id,
	        status, vendor_code, vendor_reference_id,
	        attempt_count, max_attempts, last_error,
	        result_status, result_records,
	        created_at, last_updated_at,
	        dispatched_at, completed_at, failed_at, canceled_at,
	        version`

// GetService returns one service by id.
func (s *Store) GetService(ctx context.Context, id string) (*service.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("service id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, id)
	return scanService(row)
}

// GetServiceByVendorReference locates the service a vendor callback targets.
func (s *Store) GetServiceByVendorReference(ctx context.Context, vendorCode, vendorReferenceID string) (*service.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	vendorCode = strings.TrimSpace(vendorCode)
	vendorReferenceID = strings.TrimSpace(vendorReferenceID)
	if vendorCode == "" || vendorReferenceID == "" {
		return nil, fmt.Errorf("vendor code and reference id are required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+serviceColumns+` FROM services WHERE vendor_code = ? AND vendor_reference_id = ?`,
		vendorCode,
		vendorReferenceID,
	)
	return scanService(row)
}

// ListServicesByOrder returns the services attached to an order.
func (s *Store) ListServicesByOrder(ctx context.Context, orderID string) ([]*service.Service, error) {
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

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var services []*service.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list services rows: %w", err)
	}
	return services, nil
}

func scanService(row rowScanner) (*service.Service, error) {
	var svc service.Service
	var status, geoType, geoValue, resultStatus, resultRecords string
	var createdAt, lastUpdatedAt int64
	var dispatchedAt, completedAt, failedAt, canceledAt sql.NullInt64

	err := row.Scan(
		&svc.ID,
		&svc.OrderID,
		&svc.CustomerID,
		&svc.ServiceTypeCode,
		&svc.Category,
		&svc.Tier,
		&geoType,
		&geoValue,
		&svc.CatalogSnapshotID,
		&status,
		&svc.VendorCode,
		&svc.VendorReferenceID,
		&svc.AttemptCount,
		&svc.MaxAttempts,
		&svc.LastError,
		&resultStatus,
		&resultRecords,
		&createdAt,
		&lastUpdatedAt,
		&dispatchedAt,
		&completedAt,
		&failedAt,
		&canceledAt,
		&svc.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scan service: %w", err)
	}

	svc.Status = service.Status(status)
	if geoType != "" || geoValue != "" {
		svc.Geo = &service.GeoScope{Type: geoType, Value: geoValue}
	}
	result, err := decodeResult(resultStatus, resultRecords)
	if err != nil {
		return nil, err
	}
	svc.Result = result
	svc.CreatedAt = fromMillis(createdAt)
	svc.LastUpdatedAt = fromMillis(lastUpdatedAt)
	svc.DispatchedAt = fromNullMillis(dispatchedAt)
	svc.CompletedAt = fromNullMillis(completedAt)
	svc.FailedAt = fromNullMillis(failedAt)
	svc.CanceledAt = fromNullMillis(canceledAt)
	return &svc, nil
}

func encodeResult(result *service.Result) (string, string, error) {
	if result == nil {
		return "", "", nil
	}
	records, err := record.EncodeList(result.Records)
	if err != nil {
		return "", "", fmt.Errorf("encode result records: %w", err)
	}
	return string(result.Status), string(records), nil
}

func decodeResult(status, records string) (*service.Result, error) {
	if status == "" {
		return nil, nil
	}
	result := &service.Result{Status: service.ResultStatus(status)}
	if records != "" {
		decoded, err := record.DecodeList([]byte(records))
		if err != nil {
			return nil, fmt.Errorf("decode result records: %w", err)
		}
		result.Records = decoded
	}
	return result, nil
}
