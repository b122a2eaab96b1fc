package interfaces

import (
	"context"
	"time"

	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
)

type DataPointRepository interface {
	// Append stores one immutable reading and returns it with its id set.
	Append(ctx context.Context, point agtmodels.DataPoint) (*agtmodels.DataPoint, error)

	// LatestByDevice returns the newest reading by timestamp, insertion
	// order breaking ties. Returns (nil, nil) when the device has none.
	LatestByDevice(ctx context.Context, deviceID string) (*agtmodels.DataPoint, error)

	// HistoryByDevice returns readings since the given instant, newest
	// first, capped at limit.
	HistoryByDevice(ctx context.Context, deviceID string, since time.Time, limit int) ([]agtmodels.DataPoint, error)

	CountByDevice(ctx context.Context, deviceID string) (int64, error)
}
