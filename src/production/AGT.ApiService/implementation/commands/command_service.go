package commands

import (
	"context"
	"fmt"
	"time"

	logger "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Logger"
	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
	interfaces "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Repository/Interfaces"
)

// VerbNone is the poll sentinel: issuing it never auto-creates an actuator,
// and a device with no pending work polls it back as {"action": "none"}.
const VerbNone = "none"

const defaultActuatorName = "Water Pump"

// Service owns the command dispatch lifecycle: issue to an actuator, let the
// device poll, then accept exactly one outcome report.
type Service struct {
	devices  interfaces.DeviceRepository
	commands interfaces.CommandRepository
	logger   *logger.Logger
}

func NewService(devices interfaces.DeviceRepository, commands interfaces.CommandRepository, log *logger.Logger) *Service {
	return &Service{
		devices:  devices,
		commands: commands,
		logger:   log.WithComponent("command-dispatch"),
	}
}

// Issue dispatches a command. With an empty deviceID the owner's first
// actuator is targeted, creating the default one when the owner has none and
// the verb asks for real work. An explicit deviceID that does not resolve,
// or that belongs to another owner, is ErrUnknownDevice. The stored command
// is already sent: the broker hop happens inside this call.
func (s *Service) Issue(ctx context.Context, ownerID, deviceID, verb string, params map[string]interface{}) (*agtmodels.Command, error) {
	if verb == "" {
		return nil, fmt.Errorf("%w: command verb is required", agtmodels.ErrInvalidPayload)
	}

	target, err := s.resolveTarget(ctx, ownerID, deviceID, verb)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cmd, err := s.commands.CreateCommand(ctx, agtmodels.Command{
		DeviceID:   target.ID,
		Command:    verb,
		Parameters: params,
		Status:     agtmodels.CommandSent,
		SentAt:     &now,
		IssuedBy:   ownerID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store command: %w", err)
	}

	s.logger.Info(fmt.Sprintf("Command %q issued to device %s (id=%d)", verb, target.ID, cmd.ID))
	return cmd, nil
}

// Poll returns the device's most recent command, or nil when none was ever
// issued. Polling is read-only and idempotent; the controller renders the
// none sentinel for silent devices. A poll also counts as device contact.
func (s *Service) Poll(ctx context.Context, deviceID string) (*agtmodels.Command, error) {
	cmd, err := s.commands.LatestByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	if err := s.devices.Touch(ctx, deviceID, time.Now().UTC()); err != nil {
		s.logger.ErrorWithError(err, fmt.Sprintf("Failed to refresh liveness for polling device %s", deviceID))
	}
	return cmd, nil
}

// ReportOutcome moves a sent command to executed or failed. Reports against
// a command already in a terminal state are no-ops returning the stored row.
func (s *Service) ReportOutcome(ctx context.Context, commandID int64, status agtmodels.CommandStatus, response map[string]interface{}) (*agtmodels.Command, error) {
	cmd, applied, err := s.commands.ReportOutcome(ctx, commandID, status, response)
	if err != nil {
		return nil, err
	}
	if !applied {
		s.logger.Debug(fmt.Sprintf("Outcome report for command %d ignored, already %s", commandID, cmd.Status))
	}
	return cmd, nil
}

// History lists a device's commands, newest first.
func (s *Service) History(ctx context.Context, deviceID string, limit int) ([]agtmodels.Command, error) {
	return s.commands.ListByDevice(ctx, deviceID, limit)
}

func (s *Service) resolveTarget(ctx context.Context, ownerID, deviceID, verb string) (*agtmodels.Device, error) {
	if deviceID != "" {
		target, err := s.devices.GetDevice(ctx, deviceID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", agtmodels.ErrUnknownDevice, deviceID)
		}
		// Another owner's device is indistinguishable from a missing one.
		if target.OwnerID != ownerID {
			return nil, fmt.Errorf("%w: %s", agtmodels.ErrUnknownDevice, deviceID)
		}
		return target, nil
	}

	target, err := s.devices.FirstActuatorByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if target != nil {
		return target, nil
	}
	if verb == VerbNone {
		return nil, fmt.Errorf("%w: owner %s has no actuator", agtmodels.ErrUnknownDevice, ownerID)
	}

	created, err := s.devices.CreateDevice(ctx, agtmodels.Device{
		Name:    defaultActuatorName,
		OwnerID: ownerID,
		Kind:    agtmodels.KindActuator,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create default actuator: %w", err)
	}

	s.logger.Info(fmt.Sprintf("Created default actuator %s for owner %s", created.ID, ownerID))
	return created, nil
}
