package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/hearthd/hearthd/internal/database/models"
	"github.com/hearthd/hearthd/internal/services/testutil"
)

// newTestService builds a schedule service over an in-memory database.
func newTestService(t *testing.T) (*Service, *testutil.TestDB, func()) {
	t.Helper()
	db, cleanup := testutil.SetupTestDB(t)
	svc := NewService(db.DB, Config{
		HeatingSensor:  "HC",
		HotWaterSensor: "DHW",
		ModeSensor:     "Operating mode",
	})
	return svc, db, cleanup
}

// seedTrigger creates a trigger (and its action if needed) for a sensor.
func seedTrigger(t *testing.T, db *testutil.TestDB, sensor, value string, day int, timeOfDay string, status models.TriggerStatus) *models.TimedTrigger {
	t.Helper()
	ctx := context.Background()

	action, err := db.ActionRepo.FindOrCreate(ctx, sensor, "V_STATUS", value)
	if err != nil {
		t.Fatalf("FindOrCreate action failed: %v", err)
	}
	trigger := &models.TimedTrigger{
		ActionID:    action.ID,
		Day:         day,
		Time:        timeOfDay,
		Status:      status,
		Description: "Interval 0",
	}
	if err := db.TriggerRepo.Create(ctx, trigger); err != nil {
		t.Fatalf("Create trigger failed: %v", err)
	}
	trigger.Action = *action
	return trigger
}

// at returns an instant in the week of Monday 2024-01-01 at the given
// schedule day (Monday=0) and wall clock time.
func at(t *testing.T, day int, clock string) time.Time {
	t.Helper()
	sec, err := ToSeconds(clock)
	if err != nil {
		t.Fatalf("bad clock %q: %v", clock, err)
	}
	base := time.Date(2024, 1, 1+day, 0, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(sec) * time.Second)
}
