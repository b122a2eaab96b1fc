package implementation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
	interfaces "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Repository/Interfaces"
)

type SQLAlertRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLAlertRepository(db *sql.DB, dialect Dialect) *SQLAlertRepository {
	return &SQLAlertRepository{db: db, dialect: dialect}
}

const alertColumns = `id, device_id, location, title, message, alert_type, severity,
	threshold_value, actual_value, unit, is_resolved, resolved_at, resolved_by, created_at`

func scanAlert(row rowScanner) (*agtmodels.Alert, error) {
	var a agtmodels.Alert
	var deviceID sql.NullString
	var threshold, actual sql.NullFloat64
	var resolvedAt sql.NullTime

	err := row.Scan(&a.ID, &deviceID, &a.Location, &a.Title, &a.Message, &a.AlertType,
		&a.Severity, &threshold, &actual, &a.Unit, &a.Resolved, &resolvedAt,
		&a.ResolvedBy, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	a.DeviceID = deviceID.String
	a.ThresholdValue = floatPtr(threshold)
	a.ActualValue = floatPtr(actual)
	a.ResolvedAt = timePtr(resolvedAt)
	return &a, nil
}

// CreateAlert inserts the alert unless an unresolved one with the same dedup
// key already exists. The partial unique indexes swallow the duplicate, so
// concurrent evaluators produce exactly one open row per key. The bool result
// reports whether a new alert was stored.
func (r *SQLAlertRepository) CreateAlert(ctx context.Context, alert agtmodels.Alert) (*agtmodels.Alert, bool, error) {
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO alerts (device_id, location, title, message, alert_type, severity,
			threshold_value, actual_value, unit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT DO NOTHING
		RETURNING ` + alertColumns

	row := r.db.QueryRowContext(ctx, r.dialect.rebind(query),
		nullString(alert.DeviceID), alert.Location, alert.Title, alert.Message,
		string(alert.AlertType), string(alert.Severity),
		nullFloat(alert.ThresholdValue), nullFloat(alert.ActualValue),
		alert.Unit, alert.CreatedAt.UTC())

	stored, err := scanAlert(row)
	if err != nil {
		if err == sql.ErrNoRows {
			existing, ferr := r.FindOpenAlert(ctx, alert.DeviceID, alert.Location, alert.Title)
			if ferr != nil {
				return nil, false, ferr
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create alert: %w", err)
	}
	return stored, true, nil
}

// FindOpenAlert looks up the unresolved alert for a dedup key. Device-scoped
// alerts match on device_id, location-scoped ones on location. Returns
// (nil, nil) when no open alert exists.
func (r *SQLAlertRepository) FindOpenAlert(ctx context.Context, deviceID, location, title string) (*agtmodels.Alert, error) {
	var query string
	var args []interface{}
	if deviceID != "" {
		query = `
			SELECT ` + alertColumns + ` FROM alerts
			WHERE device_id = $1 AND title = $2 AND is_resolved = FALSE
			LIMIT 1`
		args = []interface{}{deviceID, title}
	} else {
		query = `
			SELECT ` + alertColumns + ` FROM alerts
			WHERE device_id IS NULL AND location = $1 AND title = $2 AND is_resolved = FALSE
			LIMIT 1`
		args = []interface{}{location, title}
	}

	alert, err := scanAlert(r.db.QueryRowContext(ctx, r.dialect.rebind(query), args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return alert, nil
}

func (r *SQLAlertRepository) GetAlert(ctx context.Context, id int64) (*agtmodels.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`

	alert, err := scanAlert(r.db.QueryRowContext(ctx, r.dialect.rebind(query), id))
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// ListAlerts returns alerts for devices owned by params.OwnerID plus
// location-scoped alerts, which carry no device and are visible to everyone.
func (r *SQLAlertRepository) ListAlerts(ctx context.Context, params interfaces.AlertQueryParams) ([]agtmodels.Alert, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT a.id, a.device_id, a.location, a.title, a.message, a.alert_type, a.severity,
			a.threshold_value, a.actual_value, a.unit, a.is_resolved, a.resolved_at, a.resolved_by, a.created_at
		FROM alerts a
		LEFT JOIN devices d ON d.device_id = a.device_id
		WHERE (a.device_id IS NULL OR d.owner_id = $1)`
	args := []interface{}{params.OwnerID}
	n := 2

	if !params.IncludeResolved {
		query += ` AND a.is_resolved = FALSE`
	}
	if params.Severity != "" {
		query += fmt.Sprintf(` AND a.severity = $%d`, n)
		args = append(args, params.Severity)
		n++
	}

	query += fmt.Sprintf(` ORDER BY a.created_at DESC, a.id DESC LIMIT $%d`, n)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAlerts(rows)
}

func (r *SQLAlertRepository) ListByDevice(ctx context.Context, deviceID string) ([]agtmodels.Alert, error) {
	query := `
		SELECT ` + alertColumns + ` FROM alerts
		WHERE device_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(query), deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAlerts(rows)
}

// ResolveAlert closes the alert on behalf of ownerID. Device-scoped alerts
// are only resolvable by the device's owner; location-scoped ones by anyone.
// An alert outside the owner's view is sql.ErrNoRows, and resolving an
// already resolved alert is a no-op that still returns the stored row.
func (r *SQLAlertRepository) ResolveAlert(ctx context.Context, id int64, ownerID string) (*agtmodels.Alert, error) {
	query := `
		UPDATE alerts
		SET is_resolved = TRUE, resolved_at = $1, resolved_by = $2
		WHERE id = $3 AND is_resolved = FALSE
		  AND (device_id IS NULL OR device_id IN (SELECT device_id FROM devices WHERE owner_id = $4))`

	_, err := r.db.ExecContext(ctx, r.dialect.rebind(query), time.Now().UTC(), ownerID, id, ownerID)
	if err != nil {
		return nil, err
	}
	return r.getVisibleAlert(ctx, id, ownerID)
}

func (r *SQLAlertRepository) getVisibleAlert(ctx context.Context, id int64, ownerID string) (*agtmodels.Alert, error) {
	query := `
		SELECT a.id, a.device_id, a.location, a.title, a.message, a.alert_type, a.severity,
			a.threshold_value, a.actual_value, a.unit, a.is_resolved, a.resolved_at, a.resolved_by, a.created_at
		FROM alerts a
		LEFT JOIN devices d ON d.device_id = a.device_id
		WHERE a.id = $1 AND (a.device_id IS NULL OR d.owner_id = $2)`

	return scanAlert(r.db.QueryRowContext(ctx, r.dialect.rebind(query), id, ownerID))
}

func collectAlerts(rows *sql.Rows) ([]agtmodels.Alert, error) {
	var alerts []agtmodels.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *alert)
	}
	return alerts, rows.Err()
}
