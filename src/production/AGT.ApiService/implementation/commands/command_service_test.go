package commands

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	config "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Config"
	logger "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Logger"
	agtmodels "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Models"
	implementation "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Repository/Implementation"
	interfaces "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Repository/Interfaces"
)

func newTestService(t *testing.T) (*Service, interfaces.DeviceRepository) {
	t.Helper()

	db, err := implementation.OpenSQLite(filepath.Join(t.TempDir(), "commands.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := implementation.NewSchemaManager(db, implementation.DialectSQLite).CreateTables(context.Background()); err != nil {
		t.Fatalf("create tables: %v", err)
	}

	devices := implementation.NewSQLDeviceRepository(db, implementation.DialectSQLite)
	commands := implementation.NewSQLCommandRepository(db, implementation.DialectSQLite)
	log := logger.NewLogger(&config.LoggingConfig{Level: "error", Format: "json", Output: "stderr"})

	return NewService(devices, commands, log), devices
}

func TestIssueToExplicitDevice(t *testing.T) {
	service, devices := newTestService(t)
	ctx := context.Background()

	pump, err := devices.CreateDevice(ctx, agtmodels.Device{
		Name: "Pump A", OwnerID: "owner-1", Kind: agtmodels.KindActuator,
	})
	if err != nil {
		t.Fatalf("create actuator: %v", err)
	}

	cmd, err := service.Issue(ctx, "owner-1", pump.ID, "pump_on", map[string]interface{}{"duration": 30.0})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if cmd.DeviceID != pump.ID || cmd.Status != agtmodels.CommandSent {
		t.Fatalf("unexpected command: %+v", cmd)
	}
	if cmd.SentAt == nil {
		t.Fatal("issued command must be marked sent")
	}
	if cmd.IssuedBy != "owner-1" {
		t.Errorf("issuer not recorded: %q", cmd.IssuedBy)
	}
}

func TestIssueUnknownDevice(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Issue(context.Background(), "owner-1", "no-such-device", "pump_on", nil)
	if !errors.Is(err, agtmodels.ErrUnknownDevice) {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
}

func TestIssueAnotherOwnersDevice(t *testing.T) {
	service, devices := newTestService(t)
	ctx := context.Background()

	pump, err := devices.CreateDevice(ctx, agtmodels.Device{
		Name: "Pump A", OwnerID: "owner-1", Kind: agtmodels.KindActuator,
	})
	if err != nil {
		t.Fatalf("create actuator: %v", err)
	}

	_, err = service.Issue(ctx, "owner-2", pump.ID, "pump_on", nil)
	if !errors.Is(err, agtmodels.ErrUnknownDevice) {
		t.Fatalf("foreign device must read as unknown, got %v", err)
	}

	history, err := service.History(ctx, pump.ID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("rejected issue must not store a command, got %+v", history)
	}
}

func TestIssueCreatesDefaultActuator(t *testing.T) {
	service, devices := newTestService(t)
	ctx := context.Background()

	cmd, err := service.Issue(ctx, "owner-1", "", "pump_on", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	target, err := devices.GetDevice(ctx, cmd.DeviceID)
	if err != nil {
		t.Fatalf("get target: %v", err)
	}
	if target.Name != "Water Pump" || target.Kind != agtmodels.KindActuator {
		t.Fatalf("unexpected default actuator: %+v", target)
	}

	// A second issue reuses the same actuator.
	second, err := service.Issue(ctx, "owner-1", "", "pump_off", nil)
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}
	if second.DeviceID != cmd.DeviceID {
		t.Fatal("second issue must reuse the existing actuator")
	}
}

func TestIssueNoneNeverCreatesActuator(t *testing.T) {
	service, devices := newTestService(t)
	ctx := context.Background()

	if _, err := service.Issue(ctx, "owner-1", "", VerbNone, nil); !errors.Is(err, agtmodels.ErrUnknownDevice) {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}

	list, err := devices.ListDevicesByOwner(ctx, "owner-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("none verb must not create devices, got %+v", list)
	}
}

func TestIssueRequiresVerb(t *testing.T) {
	service, _ := newTestService(t)

	if _, err := service.Issue(context.Background(), "owner-1", "", "", nil); !errors.Is(err, agtmodels.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestPollIdempotentAndTouches(t *testing.T) {
	service, devices := newTestService(t)
	ctx := context.Background()

	pump, err := devices.CreateDevice(ctx, agtmodels.Device{
		Name: "Pump A", OwnerID: "owner-1", Kind: agtmodels.KindActuator,
	})
	if err != nil {
		t.Fatalf("create actuator: %v", err)
	}

	empty, err := service.Poll(ctx, pump.ID)
	if err != nil {
		t.Fatalf("poll empty: %v", err)
	}
	if empty != nil {
		t.Fatalf("expected nil command for silent device, got %+v", empty)
	}

	issued, err := service.Issue(ctx, "owner-1", pump.ID, "pump_on", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	first, err := service.Poll(ctx, pump.ID)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	second, err := service.Poll(ctx, pump.ID)
	if err != nil {
		t.Fatalf("second poll: %v", err)
	}
	if first == nil || second == nil || first.ID != issued.ID || second.ID != issued.ID {
		t.Fatalf("poll must repeatedly return the latest command: %+v / %+v", first, second)
	}
	if second.Status != agtmodels.CommandSent {
		t.Errorf("polling must not change status, got %q", second.Status)
	}

	touched, err := devices.GetDevice(ctx, pump.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !touched.Online || touched.LastSeen == nil {
		t.Error("poll should count as device contact")
	}
}

func TestReportOutcomeSingleShot(t *testing.T) {
	service, devices := newTestService(t)
	ctx := context.Background()

	pump, _ := devices.CreateDevice(ctx, agtmodels.Device{
		Name: "Pump A", OwnerID: "owner-1", Kind: agtmodels.KindActuator,
	})
	issued, err := service.Issue(ctx, "owner-1", pump.ID, "pump_on", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	done, err := service.ReportOutcome(ctx, issued.ID, agtmodels.CommandExecuted, map[string]interface{}{"ran_for": 30.0})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if done.Status != agtmodels.CommandExecuted || done.ExecutedAt == nil {
		t.Fatalf("unexpected state: %+v", done)
	}

	again, err := service.ReportOutcome(ctx, issued.ID, agtmodels.CommandFailed, nil)
	if err != nil {
		t.Fatalf("second report: %v", err)
	}
	if again.Status != agtmodels.CommandExecuted {
		t.Fatalf("terminal state must be sticky, got %q", again.Status)
	}
	if again.Response["ran_for"] != 30.0 {
		t.Errorf("original response overwritten: %+v", again.Response)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	service, devices := newTestService(t)
	ctx := context.Background()

	pump, _ := devices.CreateDevice(ctx, agtmodels.Device{
		Name: "Pump A", OwnerID: "owner-1", Kind: agtmodels.KindActuator,
	})
	for _, verb := range []string{"pump_on", "pump_off", "pump_on"} {
		if _, err := service.Issue(ctx, "owner-1", pump.ID, verb, nil); err != nil {
			t.Fatalf("issue %s: %v", verb, err)
		}
	}

	history, err := service.History(ctx, pump.ID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 commands, got %d", len(history))
	}
	if history[0].ID < history[1].ID || history[1].ID < history[2].ID {
		t.Fatal("history must be newest first")
	}
}
