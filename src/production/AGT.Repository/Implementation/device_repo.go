package implementation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
)

type SQLDeviceRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLDeviceRepository(db *sql.DB, dialect Dialect) *SQLDeviceRepository {
	return &SQLDeviceRepository{db: db, dialect: dialect}
}

const deviceColumns = `device_id, name, hardware_address, owner_id, device_type, sensor_type,
	location, latitude, longitude, is_online, last_seen, battery_level,
	firmware_version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row rowScanner) (*agtmodels.Device, error) {
	var d agtmodels.Device
	var hw sql.NullString
	var lat, lon sql.NullFloat64
	var lastSeen sql.NullTime
	var battery sql.NullInt64

	err := row.Scan(&d.ID, &d.Name, &hw, &d.OwnerID, &d.Kind, &d.SensorKind,
		&d.Location, &lat, &lon, &d.Online, &lastSeen, &battery,
		&d.FirmwareVersion, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}

	d.HardwareAddress = hw.String
	d.Latitude = floatPtr(lat)
	d.Longitude = floatPtr(lon)
	d.LastSeen = timePtr(lastSeen)
	d.BatteryLevel = intPtr(battery)
	return &d, nil
}

// UpsertByHardwareKey atomically resolves or creates the device keyed by
// (hardware_address, sensor_type). The partial unique index arbitrates
// concurrent ingestion; the losing insert turns into a liveness refresh of
// the existing row.
func (r *SQLDeviceRepository) UpsertByHardwareKey(ctx context.Context, device agtmodels.Device) (*agtmodels.Device, error) {
	if device.HardwareAddress == "" {
		return nil, fmt.Errorf("hardware address is required for upsert")
	}
	if device.ID == "" {
		device.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if device.LastSeen == nil {
		device.LastSeen = &now
	}

	query := `
		INSERT INTO devices (` + deviceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, $10, $11, $12, $13, $14)
		ON CONFLICT (hardware_address, sensor_type) WHERE hardware_address IS NOT NULL
		DO UPDATE SET
			is_online        = TRUE,
			last_seen        = EXCLUDED.last_seen,
			updated_at       = EXCLUDED.updated_at,
			location         = CASE WHEN EXCLUDED.location <> '' THEN EXCLUDED.location ELSE devices.location END,
			battery_level    = COALESCE(EXCLUDED.battery_level, devices.battery_level),
			firmware_version = CASE WHEN EXCLUDED.firmware_version <> '' THEN EXCLUDED.firmware_version ELSE devices.firmware_version END
		RETURNING ` + deviceColumns

	row := r.db.QueryRowContext(ctx, r.dialect.rebind(query),
		device.ID, device.Name, nullString(device.HardwareAddress), device.OwnerID,
		string(device.Kind), string(device.SensorKind), device.Location,
		nullFloat(device.Latitude), nullFloat(device.Longitude),
		nullTime(device.LastSeen), nullInt(device.BatteryLevel),
		device.FirmwareVersion, now, now)

	stored, err := scanDevice(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert device: %w", err)
	}
	return stored, nil
}

// CreateDevice inserts an operator-defined device (no hardware key required).
func (r *SQLDeviceRepository) CreateDevice(ctx context.Context, device agtmodels.Device) (*agtmodels.Device, error) {
	if device.ID == "" {
		device.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO devices (` + deviceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + deviceColumns

	row := r.db.QueryRowContext(ctx, r.dialect.rebind(query),
		device.ID, device.Name, nullString(device.HardwareAddress), device.OwnerID,
		string(device.Kind), string(device.SensorKind), device.Location,
		nullFloat(device.Latitude), nullFloat(device.Longitude), device.Online,
		nullTime(device.LastSeen), nullInt(device.BatteryLevel),
		device.FirmwareVersion, now, now)

	stored, err := scanDevice(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}
	return stored, nil
}

func (r *SQLDeviceRepository) GetDevice(ctx context.Context, id string) (*agtmodels.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = $1`

	device, err := scanDevice(r.db.QueryRowContext(ctx, r.dialect.rebind(query), id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return device, nil
}

func (r *SQLDeviceRepository) ListDevicesByOwner(ctx context.Context, ownerID string) ([]agtmodels.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE owner_id = $1 ORDER BY created_at, device_id`

	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(query), ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDevices(rows)
}

func (r *SQLDeviceRepository) FirstActuatorByOwner(ctx context.Context, ownerID string) (*agtmodels.Device, error) {
	query := `
		SELECT ` + deviceColumns + ` FROM devices
		WHERE owner_id = $1 AND device_type = $2
		ORDER BY created_at, device_id
		LIMIT 1`

	device, err := scanDevice(r.db.QueryRowContext(ctx, r.dialect.rebind(query), ownerID, string(agtmodels.KindActuator)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return device, nil
}

// Touch refreshes liveness after any device contact.
func (r *SQLDeviceRepository) Touch(ctx context.Context, id string, seen time.Time) error {
	query := `UPDATE devices SET is_online = TRUE, last_seen = $1, updated_at = $2 WHERE device_id = $3`
	_, err := r.db.ExecContext(ctx, r.dialect.rebind(query), seen.UTC(), time.Now().UTC(), id)
	return err
}

// ListStaleOnline returns devices still marked online whose last contact is
// older than the cutoff. Devices that never reported are left alone.
func (r *SQLDeviceRepository) ListStaleOnline(ctx context.Context, cutoff time.Time) ([]agtmodels.Device, error) {
	query := `
		SELECT ` + deviceColumns + ` FROM devices
		WHERE is_online = TRUE AND last_seen IS NOT NULL AND last_seen < $1
		ORDER BY last_seen`

	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(query), cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDevices(rows)
}

func (r *SQLDeviceRepository) MarkOffline(ctx context.Context, id string) error {
	query := `UPDATE devices SET is_online = FALSE, updated_at = $1 WHERE device_id = $2`
	_, err := r.db.ExecContext(ctx, r.dialect.rebind(query), time.Now().UTC(), id)
	return err
}

// DeleteDevice removes the owner's device; data points, alerts and commands
// cascade through the store's foreign keys. A device held by another owner
// is sql.ErrNoRows, same as a missing one.
func (r *SQLDeviceRepository) DeleteDevice(ctx context.Context, id, ownerID string) error {
	query := `DELETE FROM devices WHERE device_id = $1 AND owner_id = $2`

	result, err := r.db.ExecContext(ctx, r.dialect.rebind(query), id, ownerID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func collectDevices(rows *sql.Rows) ([]agtmodels.Device, error) {
	var devices []agtmodels.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *device)
	}
	return devices, rows.Err()
}
