package interfaces

import (
	"context"

	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
)

type CommandRepository interface {
	// CreateCommand persists an operator command. Delivery is immediate
	// storage, so rows are written with status sent and sent_at set.
	CreateCommand(ctx context.Context, cmd agtmodels.Command) (*agtmodels.Command, error)

	GetCommand(ctx context.Context, id int64) (*agtmodels.Command, error)

	// LatestByDevice returns the most recently created command for a
	// device, or (nil, nil) when there is none. Repeated calls without an
	// intervening CreateCommand return the identical row.
	LatestByDevice(ctx context.Context, deviceID string) (*agtmodels.Command, error)

	ListByDevice(ctx context.Context, deviceID string, limit int) ([]agtmodels.Command, error)

	// ReportOutcome transitions sent -> executed|failed. The bool reports
	// whether the transition was applied; reports against a terminal
	// command leave the row untouched and return it as stored.
	ReportOutcome(ctx context.Context, id int64, status agtmodels.CommandStatus, response map[string]interface{}) (*agtmodels.Command, bool, error)
}
