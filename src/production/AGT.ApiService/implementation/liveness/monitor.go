package liveness

import (
	"context"
	"fmt"
	"time"

	config "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Config"
	logger "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Logger"
	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
	interfaces "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Repository/Interfaces"
)

// OfflineEvaluator raises the device_offline alert after a liveness flip.
type OfflineEvaluator interface {
	EvaluateOffline(ctx context.Context, device *agtmodels.Device)
}

// Monitor periodically flips devices that stopped reporting to offline.
// Sweeps run sequentially on a single goroutine, so they never overlap.
type Monitor struct {
	devices interfaces.DeviceRepository
	alerts  OfflineEvaluator
	cfg     config.LivenessConfig
	logger  *logger.Logger
}

func NewMonitor(devices interfaces.DeviceRepository, alerts OfflineEvaluator, cfg config.LivenessConfig, log *logger.Logger) *Monitor {
	return &Monitor{
		devices: devices,
		alerts:  alerts,
		cfg:     cfg,
		logger:  log.WithComponent("liveness-monitor"),
	}
}

// Run ticks until the context is cancelled. Intended to be spawned once at
// startup.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info(fmt.Sprintf("Liveness monitor started: timeout=%s sweep=%s", m.cfg.Timeout, m.cfg.SweepInterval))

	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Liveness monitor stopped")
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep marks every online device whose last contact predates the timeout
// as offline and raises the offline alert for it. Per-device failures are
// logged and the sweep moves on.
func (m *Monitor) Sweep(ctx context.Context) int {
	cutoff := time.Now().UTC().Add(-m.cfg.Timeout)

	stale, err := m.devices.ListStaleOnline(ctx, cutoff)
	if err != nil {
		m.logger.ErrorWithError(err, "Liveness sweep failed to list stale devices")
		return 0
	}

	flipped := 0
	for i := range stale {
		device := &stale[i]
		if err := m.devices.MarkOffline(ctx, device.ID); err != nil {
			m.logger.ErrorWithError(err, fmt.Sprintf("Failed to mark device %s offline", device.ID))
			continue
		}
		flipped++
		m.alerts.EvaluateOffline(ctx, device)
	}

	if flipped > 0 {
		m.logger.Info(fmt.Sprintf("Liveness sweep marked %d device(s) offline", flipped))
	}
	return flipped
}
