package schedule

import (
	"context"
	"testing"

	"github.com/hearthd/hearthd/internal/database/models"
)

func TestCreateOnceTrigger(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	trigger, err := svc.CreateOnceTrigger(ctx, "DHW", 3, "15:30", ValueOn, "")
	if err != nil {
		t.Fatalf("CreateOnceTrigger failed: %v", err)
	}
	if trigger.Status != models.StatusOnce {
		t.Errorf("Status = %s, want Once", trigger.Status)
	}
	if trigger.Time != "15:30:00" {
		t.Errorf("Time = %q, want normalized 15:30:00", trigger.Time)
	}
	if trigger.Description == "" {
		t.Error("Expected a default description")
	}

	stored, err := db.TriggerRepo.FindByID(ctx, trigger.ID)
	if err != nil || stored == nil {
		t.Fatalf("Trigger not persisted: %v, %v", stored, err)
	}
	if stored.Action.SensorName != "DHW" || stored.Action.SetValue != ValueOn {
		t.Errorf("Action = %+v, want DHW set to %q", stored.Action, ValueOn)
	}
}

func TestCreateReplaceTriggerUnknownTarget(t *testing.T) {
	svc, _, cleanup := newTestService(t)
	defer cleanup()

	if _, err := svc.CreateReplaceTrigger(context.Background(), "HC", 2, "18:30", 9999); err == nil {
		t.Fatal("Expected an error for a missing target trigger")
	}
}

func TestCreateReplaceTriggerCompanion(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	target := seedTrigger(t, db, "HC", ValueOn, 2, "17:00:00", models.StatusActive)
	replace, err := svc.CreateReplaceTrigger(ctx, "HC", 2, "18:30", target.ID)
	if err != nil {
		t.Fatalf("CreateReplaceTrigger failed: %v", err)
	}

	stored, err := db.TriggerRepo.FindByID(ctx, replace.ID)
	if err != nil || stored == nil {
		t.Fatalf("Replace trigger not persisted: %v, %v", stored, err)
	}
	if stored.Status != models.StatusReplace {
		t.Errorf("Status = %s, want Replace", stored.Status)
	}
	if stored.Time != "18:30:00" {
		t.Errorf("Time = %q, want 18:30:00", stored.Time)
	}
	// The companion action remembers the original time and points back
	// at the trigger being rescheduled.
	if stored.Action.SetValue != "17:00:00" {
		t.Errorf("Companion SetValue = %q, want the original time", stored.Action.SetValue)
	}
	if stored.Action.TriggerToUpdate == nil || *stored.Action.TriggerToUpdate != target.ID {
		t.Error("Companion back reference missing or wrong")
	}
	// The target itself is untouched.
	kept, err := db.TriggerRepo.FindByID(ctx, target.ID)
	if err != nil || kept == nil {
		t.Fatalf("Target lookup failed: %v, %v", kept, err)
	}
	if kept.Time != "17:00:00" || kept.Status != models.StatusActive {
		t.Errorf("Target modified: %+v", kept)
	}
}

func TestDeleteOnceTriggers(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	once := seedTrigger(t, db, "DHW", ValueOn, 1, "15:00:00", models.StatusOnce)
	regular := seedTrigger(t, db, "DHW", ValueOn, 1, "06:00:00", models.StatusActive)
	other := seedTrigger(t, db, "HC", ValueOn, 1, "15:00:00", models.StatusOnce)

	if err := svc.DeleteOnceTriggers(ctx, "DHW"); err != nil {
		t.Fatalf("DeleteOnceTriggers failed: %v", err)
	}

	if got, _ := db.TriggerRepo.FindByID(ctx, once.ID); got != nil {
		t.Error("Once trigger should be deleted")
	}
	if got, _ := db.TriggerRepo.FindByID(ctx, regular.ID); got == nil {
		t.Error("Recurring trigger should survive")
	}
	if got, _ := db.TriggerRepo.FindByID(ctx, other.ID); got == nil {
		t.Error("Other sensor's Once trigger should survive")
	}
}

func TestDeleteOnceTriggersNoActions(t *testing.T) {
	svc, _, cleanup := newTestService(t)
	defer cleanup()

	if err := svc.DeleteOnceTriggers(context.Background(), "never seen"); err != nil {
		t.Fatalf("Expected a no-op, got %v", err)
	}
}

func TestDeletePrefixedTriggers(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	boost, err := svc.CreateOnceTrigger(ctx, "DHW", 1, "15:00", ValueOn, "Boost on")
	if err != nil {
		t.Fatalf("CreateOnceTrigger failed: %v", err)
	}
	boostOff, err := svc.CreateOnceTrigger(ctx, "DHW", 1, "16:00", ValueOff, "Boost off")
	if err != nil {
		t.Fatalf("CreateOnceTrigger failed: %v", err)
	}
	holiday, err := svc.CreateOnceTrigger(ctx, "HC", 2, "09:00", ValueOff, "Holiday start")
	if err != nil {
		t.Fatalf("CreateOnceTrigger failed: %v", err)
	}

	if err := svc.DeletePrefixedTriggers(ctx, "Boost"); err != nil {
		t.Fatalf("DeletePrefixedTriggers failed: %v", err)
	}

	if got, _ := db.TriggerRepo.FindByID(ctx, boost.ID); got != nil {
		t.Error("Boost on trigger should be deleted")
	}
	if got, _ := db.TriggerRepo.FindByID(ctx, boostOff.ID); got != nil {
		t.Error("Boost off trigger should be deleted")
	}
	if got, _ := db.TriggerRepo.FindByID(ctx, holiday.ID); got == nil {
		t.Error("Unrelated override should survive")
	}
}

func TestSwitchTriggers(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	on := seedTrigger(t, db, "HC", ValueOn, 0, "06:00:00", models.StatusActive)
	off := seedTrigger(t, db, "HC", ValueOff, 0, "22:00:00", models.StatusActive)

	if err := svc.SwitchTriggers(ctx, "HC", models.StatusExternal); err != nil {
		t.Fatalf("SwitchTriggers failed: %v", err)
	}

	gotOn, _ := db.TriggerRepo.FindByID(ctx, on.ID)
	if gotOn == nil || gotOn.Status != models.StatusExternal {
		t.Errorf("On trigger status = %v, want External", gotOn)
	}
	// Off triggers stay as they are: with no on trigger firing there is
	// nothing for them to undo.
	gotOff, _ := db.TriggerRepo.FindByID(ctx, off.ID)
	if gotOff == nil || gotOff.Status != models.StatusActive {
		t.Errorf("Off trigger status = %v, want Active", gotOff)
	}
}

func TestSwitchTriggersUnknownSensor(t *testing.T) {
	svc, _, cleanup := newTestService(t)
	defer cleanup()

	if err := svc.SwitchTriggers(context.Background(), "never seen", models.StatusActive); err != nil {
		t.Fatalf("Expected a no-op, got %v", err)
	}
}

func TestUpdateTrigger(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	trigger := seedTrigger(t, db, "HC", ValueOn, 2, "06:00:00", models.StatusExternal)
	trigger.Description = "Interval 0"
	if err := db.TriggerRepo.Update(ctx, trigger); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	updated, err := svc.UpdateTrigger(ctx, "HC", 2, "Interval 0", ValueOn, "06:45")
	if err != nil {
		t.Fatalf("UpdateTrigger failed: %v", err)
	}
	if updated == nil {
		t.Fatal("Expected a match")
	}
	if updated.ID != trigger.ID {
		t.Errorf("Updated trigger %d, want %d", updated.ID, trigger.ID)
	}
	if updated.Time != "06:45:00" {
		t.Errorf("Time = %q, want 06:45:00", updated.Time)
	}
}

func TestUpdateTriggerNoMatch(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	seedTrigger(t, db, "HC", ValueOn, 2, "06:00:00", models.StatusExternal)

	// Right action, wrong day
	updated, err := svc.UpdateTrigger(ctx, "HC", 5, "", ValueOn, "06:45")
	if err != nil {
		t.Fatalf("UpdateTrigger failed: %v", err)
	}
	if updated != nil {
		t.Errorf("Expected no match, got %+v", updated)
	}

	// No action for the value at all
	updated, err = svc.UpdateTrigger(ctx, "HC", 2, "", "7", "06:45")
	if err != nil {
		t.Fatalf("UpdateTrigger failed: %v", err)
	}
	if updated != nil {
		t.Errorf("Expected no match, got %+v", updated)
	}
}
