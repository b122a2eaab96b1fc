package interfaces

import (
	"context"
	"time"

	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
)

type DeviceRepository interface {
	// Atomic resolve-or-create keyed by (hardware_address, sensor_kind).
	// Existing rows get liveness and metadata refreshed, never duplicated.
	UpsertByHardwareKey(ctx context.Context, device agtmodels.Device) (*agtmodels.Device, error)

	// Explicit operator creation (actuators and other devices without a
	// hardware address).
	CreateDevice(ctx context.Context, device agtmodels.Device) (*agtmodels.Device, error)

	// Read devices
	GetDevice(ctx context.Context, id string) (*agtmodels.Device, error)
	ListDevicesByOwner(ctx context.Context, ownerID string) ([]agtmodels.Device, error)
	FirstActuatorByOwner(ctx context.Context, ownerID string) (*agtmodels.Device, error)

	// Liveness
	Touch(ctx context.Context, id string, seen time.Time) error
	ListStaleOnline(ctx context.Context, cutoff time.Time) ([]agtmodels.Device, error)
	MarkOffline(ctx context.Context, id string) error

	// Delete the owner's device; cascade removes its data points, alerts
	// and commands. Another owner's device is sql.ErrNoRows.
	DeleteDevice(ctx context.Context, id, ownerID string) error
}
