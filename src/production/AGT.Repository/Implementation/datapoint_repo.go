package implementation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
)

type SQLDataPointRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLDataPointRepository(db *sql.DB, dialect Dialect) *SQLDataPointRepository {
	return &SQLDataPointRepository{db: db, dialect: dialect}
}

const dataPointColumns = `id, device_id, value, unit, ts, quality_score`

func scanDataPoint(row rowScanner) (*agtmodels.DataPoint, error) {
	var dp agtmodels.DataPoint
	err := row.Scan(&dp.ID, &dp.DeviceID, &dp.Value, &dp.Unit, &dp.Timestamp, &dp.QualityScore)
	if err != nil {
		return nil, err
	}
	return &dp, nil
}

// Append stores the reading as given. Quality score is kept verbatim, a
// zero score is a real zero; producers pick their own default.
func (r *SQLDataPointRepository) Append(ctx context.Context, point agtmodels.DataPoint) (*agtmodels.DataPoint, error) {
	if point.Timestamp.IsZero() {
		point.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO data_points (device_id, value, unit, ts, quality_score)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + dataPointColumns

	row := r.db.QueryRowContext(ctx, r.dialect.rebind(query),
		point.DeviceID, point.Value, point.Unit, point.Timestamp.UTC(), point.QualityScore)

	stored, err := scanDataPoint(row)
	if err != nil {
		return nil, fmt.Errorf("failed to append data point: %w", err)
	}
	return stored, nil
}

// LatestByDevice returns the most recent reading, or (nil, nil) when the
// device has never reported. Ties on timestamp break by insertion order.
func (r *SQLDataPointRepository) LatestByDevice(ctx context.Context, deviceID string) (*agtmodels.DataPoint, error) {
	query := `
		SELECT ` + dataPointColumns + ` FROM data_points
		WHERE device_id = $1
		ORDER BY ts DESC, id DESC
		LIMIT 1`

	point, err := scanDataPoint(r.db.QueryRowContext(ctx, r.dialect.rebind(query), deviceID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return point, nil
}

// HistoryByDevice returns readings at or after since, newest first, capped
// at limit. A non-positive limit falls back to a sane page size.
func (r *SQLDataPointRepository) HistoryByDevice(ctx context.Context, deviceID string, since time.Time, limit int) ([]agtmodels.DataPoint, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + dataPointColumns + ` FROM data_points
		WHERE device_id = $1 AND ts >= $2
		ORDER BY ts DESC, id DESC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(query), deviceID, since.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []agtmodels.DataPoint
	for rows.Next() {
		point, err := scanDataPoint(rows)
		if err != nil {
			return nil, err
		}
		points = append(points, *point)
	}
	return points, rows.Err()
}

func (r *SQLDataPointRepository) CountByDevice(ctx context.Context, deviceID string) (int64, error) {
	query := `SELECT COUNT(*) FROM data_points WHERE device_id = $1`

	var count int64
	err := r.db.QueryRowContext(ctx, r.dialect.rebind(query), deviceID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
