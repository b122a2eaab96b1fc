package interfaces

import (
	"context"

	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
)

// AlertQueryParams filters alert listings. Owner scoping joins through the
// owning device; location-keyed alerts are visible to every owner.
type AlertQueryParams struct {
	OwnerID         string
	Severity        agtmodels.Severity
	IncludeResolved bool
	Limit           int
}

type AlertRepository interface {
	// CreateAlert inserts an alert unless an unresolved one with the same
	// (device-or-location, title) key already exists. The bool reports
	// whether a row was actually created.
	CreateAlert(ctx context.Context, alert agtmodels.Alert) (*agtmodels.Alert, bool, error)

	// FindOpenAlert looks up the unresolved alert for a dedup key.
	// Returns (nil, nil) when none is open.
	FindOpenAlert(ctx context.Context, deviceID, location, title string) (*agtmodels.Alert, error)

	GetAlert(ctx context.Context, id int64) (*agtmodels.Alert, error)
	ListAlerts(ctx context.Context, params AlertQueryParams) ([]agtmodels.Alert, error)
	ListByDevice(ctx context.Context, deviceID string) ([]agtmodels.Alert, error)

	// ResolveAlert marks an alert resolved on behalf of ownerID. Alerts for
	// another owner's device are sql.ErrNoRows; resolving an already
	// resolved alert is a no-op returning the stored row.
	ResolveAlert(ctx context.Context, id int64, ownerID string) (*agtmodels.Alert, error)
}
