package implementation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
)

type SQLCommandRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLCommandRepository(db *sql.DB, dialect Dialect) *SQLCommandRepository {
	return &SQLCommandRepository{db: db, dialect: dialect}
}

const commandColumns = `id, device_id, command, parameters, status, sent_at, executed_at,
	response, issued_by, created_at`

func scanCommand(row rowScanner) (*agtmodels.Command, error) {
	var c agtmodels.Command
	var params, response []byte
	var sentAt, executedAt sql.NullTime

	err := row.Scan(&c.ID, &c.DeviceID, &c.Command, &params, &c.Status,
		&sentAt, &executedAt, &response, &c.IssuedBy, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	c.SentAt = timePtr(sentAt)
	c.ExecutedAt = timePtr(executedAt)
	if c.Parameters, err = unmarshalParams(params); err != nil {
		return nil, fmt.Errorf("failed to decode command parameters: %w", err)
	}
	if c.Response, err = unmarshalParams(response); err != nil {
		return nil, fmt.Errorf("failed to decode command response: %w", err)
	}
	return &c, nil
}

// CreateCommand stores a dispatched command. Commands are persisted already
// sent: the broker hop happens inside the issuing call, so a stored command
// always carries a sent_at.
func (r *SQLCommandRepository) CreateCommand(ctx context.Context, cmd agtmodels.Command) (*agtmodels.Command, error) {
	now := time.Now().UTC()
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = now
	}
	if cmd.SentAt == nil {
		cmd.SentAt = &now
	}
	if cmd.Status == "" {
		cmd.Status = agtmodels.CommandSent
	}

	params, err := marshalParams(cmd.Parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to encode command parameters: %w", err)
	}
	response, err := marshalParams(cmd.Response)
	if err != nil {
		return nil, fmt.Errorf("failed to encode command response: %w", err)
	}

	query := `
		INSERT INTO commands (device_id, command, parameters, status, sent_at, response, issued_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + commandColumns

	row := r.db.QueryRowContext(ctx, r.dialect.rebind(query),
		cmd.DeviceID, cmd.Command, params, string(cmd.Status),
		nullTime(cmd.SentAt), response, cmd.IssuedBy, cmd.CreatedAt.UTC())

	stored, err := scanCommand(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create command: %w", err)
	}
	return stored, nil
}

func (r *SQLCommandRepository) GetCommand(ctx context.Context, id int64) (*agtmodels.Command, error) {
	query := `SELECT ` + commandColumns + ` FROM commands WHERE id = $1`

	cmd, err := scanCommand(r.db.QueryRowContext(ctx, r.dialect.rebind(query), id))
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

// LatestByDevice returns the most recently issued command for the device, or
// (nil, nil) when none was ever issued.
func (r *SQLCommandRepository) LatestByDevice(ctx context.Context, deviceID string) (*agtmodels.Command, error) {
	query := `
		SELECT ` + commandColumns + ` FROM commands
		WHERE device_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	cmd, err := scanCommand(r.db.QueryRowContext(ctx, r.dialect.rebind(query), deviceID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return cmd, nil
}

func (r *SQLCommandRepository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]agtmodels.Command, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + commandColumns + ` FROM commands
		WHERE device_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(query), deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commands []agtmodels.Command
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		commands = append(commands, *cmd)
	}
	return commands, rows.Err()
}

// ReportOutcome moves a sent command to a terminal status. The guarded
// update makes the transition single-shot: once a command is executed or
// failed, later reports leave the row untouched and the bool result is
// false.
func (r *SQLCommandRepository) ReportOutcome(ctx context.Context, id int64, status agtmodels.CommandStatus, response map[string]interface{}) (*agtmodels.Command, bool, error) {
	if !status.Terminal() {
		return nil, false, fmt.Errorf("%w: reported status %q is not terminal", agtmodels.ErrInvalidTransition, status)
	}

	encoded, err := marshalParams(response)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode command response: %w", err)
	}

	query := `
		UPDATE commands
		SET status = $1, executed_at = $2, response = $3
		WHERE id = $4 AND status = $5`

	result, err := r.db.ExecContext(ctx, r.dialect.rebind(query),
		string(status), time.Now().UTC(), encoded, id, string(agtmodels.CommandSent))
	if err != nil {
		return nil, false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	cmd, err := r.GetCommand(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return cmd, rowsAffected == 1, nil
}
