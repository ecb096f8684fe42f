package poller

import (
	"context"
	"testing"
	"time"

	"github.com/hearthd/hearthd/internal/database/models"
	"github.com/hearthd/hearthd/internal/database/repositories"
	"github.com/hearthd/hearthd/internal/services/pubsub"
	"github.com/hearthd/hearthd/internal/services/schedule"
	"github.com/hearthd/hearthd/internal/services/testutil"
	"github.com/hearthd/hearthd/internal/services/transport"
)

func newTestPoller(t *testing.T) (*Poller, *testutil.TestDB, *transport.FakePublisher, *pubsub.PubSub, func()) {
	t.Helper()
	db, cleanup := testutil.SetupTestDB(t)
	scheduleSvc := schedule.NewService(db.DB, schedule.Config{
		HeatingSensor:  "HC",
		HotWaterSensor: "DHW",
		ModeSensor:     "Operating mode",
	})
	publisher := transport.NewFakePublisher()
	events := pubsub.New()
	p := New(db.DB, scheduleSvc, publisher, events, 60*time.Second)
	return p, db, publisher, events, cleanup
}

func seedTrigger(t *testing.T, db *testutil.TestDB, sensor, value string, day int, timeOfDay string, status models.TriggerStatus) *models.TimedTrigger {
	t.Helper()
	ctx := context.Background()

	action, err := db.ActionRepo.FindOrCreate(ctx, sensor, "V_STATUS", value)
	if err != nil {
		t.Fatalf("FindOrCreate action failed: %v", err)
	}
	trigger := &models.TimedTrigger{
		ActionID: action.ID,
		Day:      day,
		Time:     timeOfDay,
		Status:   status,
	}
	if err := db.TriggerRepo.Create(ctx, trigger); err != nil {
		t.Fatalf("Create trigger failed: %v", err)
	}
	return trigger
}

// fixedClock pins the poller to a given second on a known Monday
// (2024-01-01).
func fixedClock(p *Poller, day int, hour, min, sec int) {
	p.now = func() time.Time {
		return time.Date(2024, 1, 1+day, hour, min, sec, 0, time.UTC)
	}
}

func TestTickFiresDueTriggers(t *testing.T) {
	p, db, publisher, _, cleanup := newTestPoller(t)
	defer cleanup()
	ctx := context.Background()

	seedTrigger(t, db, "HC", "1", 0, "06:00:00", models.StatusActive)
	fixedClock(p, 0, 6, 0, 5)

	if _, err := p.tick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	sent := publisher.Sent()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 publish, got %d", len(sent))
	}
	if sent[0].Sensor != "HC" || sent[0].Value != "1" {
		t.Errorf("Published %+v, want HC=1", sent[0])
	}

	sensor, err := db.SensorRepo.FindByName(ctx, "HC")
	if err != nil {
		t.Fatalf("FindByName failed: %v", err)
	}
	// The sensor row only exists once the registry has seen the device;
	// value recording is best effort until then.
	if sensor != nil && sensor.CurrentValue != "1" {
		t.Errorf("CurrentValue = %q, want 1", sensor.CurrentValue)
	}

	last, err := db.StateRepo.GetInt(ctx, repositories.LastSecondsKey, -1)
	if err != nil {
		t.Fatalf("GetInt failed: %v", err)
	}
	if last != 21605 {
		t.Errorf("Watermark = %d, want 21605", last)
	}
}

func TestTickFiresAtMostOnce(t *testing.T) {
	p, db, publisher, _, cleanup := newTestPoller(t)
	defer cleanup()
	ctx := context.Background()

	seedTrigger(t, db, "HC", "1", 0, "06:00:00", models.StatusActive)
	fixedClock(p, 0, 6, 0, 5)

	if _, err := p.tick(ctx); err != nil {
		t.Fatalf("first tick failed: %v", err)
	}
	if _, err := p.tick(ctx); err != nil {
		t.Fatalf("second tick failed: %v", err)
	}

	if sent := publisher.Sent(); len(sent) != 1 {
		t.Errorf("Expected 1 publish across two ticks, got %d", len(sent))
	}
}

func TestTickCatchesUpAfterGap(t *testing.T) {
	p, db, publisher, _, cleanup := newTestPoller(t)
	defer cleanup()
	ctx := context.Background()

	seedTrigger(t, db, "HC", "1", 0, "06:00:00", models.StatusActive)
	seedTrigger(t, db, "DHW", "1", 0, "06:30:00", models.StatusActive)

	// Last tick was 05:00; the loop stalled past both triggers.
	if err := db.StateRepo.SetInt(ctx, repositories.LastSecondsKey, 18000); err != nil {
		t.Fatalf("SetInt failed: %v", err)
	}
	fixedClock(p, 0, 7, 0, 0)

	if _, err := p.tick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	sent := publisher.Sent()
	if len(sent) != 2 {
		t.Fatalf("Expected both missed triggers to fire, got %d", len(sent))
	}
	if sent[0].Sensor != "HC" || sent[1].Sensor != "DHW" {
		t.Errorf("Fired %+v, want HC then DHW", sent)
	}
}

func TestTickDayRollover(t *testing.T) {
	p, db, publisher, _, cleanup := newTestPoller(t)
	defer cleanup()
	ctx := context.Background()

	seedTrigger(t, db, "HC", "0", 1, "00:00:10", models.StatusActive)

	// Watermark from late yesterday; now is shortly after midnight.
	if err := db.StateRepo.SetInt(ctx, repositories.LastSecondsKey, 86000); err != nil {
		t.Fatalf("SetInt failed: %v", err)
	}
	fixedClock(p, 1, 0, 0, 30)

	if _, err := p.tick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	sent := publisher.Sent()
	if len(sent) != 1 || sent[0].Sensor != "HC" || sent[0].Value != "0" {
		t.Fatalf("Expected the midnight trigger to fire, got %+v", sent)
	}
}

func TestTickPrunesFiredOnceTriggers(t *testing.T) {
	p, db, publisher, _, cleanup := newTestPoller(t)
	defer cleanup()
	ctx := context.Background()

	boost := seedTrigger(t, db, "DHW", "1", 0, "15:00:00", models.StatusOnce)
	pending := seedTrigger(t, db, "DHW", "0", 0, "16:00:00", models.StatusOnce)
	regular := seedTrigger(t, db, "DHW", "1", 0, "06:00:00", models.StatusActive)

	fixedClock(p, 0, 15, 0, 0)
	if err := db.StateRepo.SetInt(ctx, repositories.LastSecondsKey, 53999); err != nil {
		t.Fatalf("SetInt failed: %v", err)
	}

	if _, err := p.tick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	if sent := publisher.Sent(); len(sent) != 1 {
		t.Fatalf("Expected only the boost to fire, got %+v", sent)
	}
	// Once a sensor's Once override fires, its whole Once family is
	// spent, including the not-yet-due companion.
	if got, _ := db.TriggerRepo.FindByID(ctx, boost.ID); got != nil {
		t.Error("Fired Once trigger should be pruned")
	}
	if got, _ := db.TriggerRepo.FindByID(ctx, pending.ID); got != nil {
		t.Error("Companion Once trigger should be pruned with it")
	}
	if got, _ := db.TriggerRepo.FindByID(ctx, regular.ID); got == nil {
		t.Error("Recurring trigger should survive the prune")
	}
}

func TestTickConsumesReplaceTrigger(t *testing.T) {
	p, db, publisher, _, cleanup := newTestPoller(t)
	defer cleanup()
	ctx := context.Background()

	target := seedTrigger(t, db, "HC", "1", 2, "17:00:00", models.StatusActive)
	scheduleSvc := schedule.NewService(db.DB, schedule.Config{HeatingSensor: "HC"})
	replace, err := scheduleSvc.CreateReplaceTrigger(ctx, "HC", 2, "18:30:00", target.ID)
	if err != nil {
		t.Fatalf("CreateReplaceTrigger failed: %v", err)
	}

	// Walk Wednesday past both the original and the new slot: only the
	// Replace fires, carrying the target's value.
	if err := db.StateRepo.SetInt(ctx, repositories.LastSecondsKey, 60000); err != nil {
		t.Fatalf("SetInt failed: %v", err)
	}
	fixedClock(p, 2, 19, 0, 0)
	if _, err := p.tick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	sent := publisher.Sent()
	if len(sent) != 1 || sent[0].Value != "1" {
		t.Fatalf("Expected one publish of the target's value, got %+v", sent)
	}
	// The spent Replace and its companion action are gone, the target is
	// back on its regular slot.
	if got, _ := db.TriggerRepo.FindByID(ctx, replace.ID); got != nil {
		t.Error("Fired Replace trigger should be consumed")
	}
	if got, _ := db.ActionRepo.FindByID(ctx, replace.ActionID); got != nil {
		t.Error("Companion action should be consumed with it")
	}
	if got, _ := db.TriggerRepo.FindByID(ctx, target.ID); got == nil {
		t.Fatal("Rescheduled trigger must survive")
	}
	events, err := scheduleSvc.DueTriggers(ctx, 2, 0, schedule.SecondsPerDay)
	if err != nil {
		t.Fatalf("DueTriggers failed: %v", err)
	}
	if len(events) != 1 || events[0].Trigger.ID != target.ID {
		t.Errorf("Expected the target back in the scan after consumption, got %+v", events)
	}
}

func TestTickSleepUntilNextTrigger(t *testing.T) {
	p, db, _, _, cleanup := newTestPoller(t)
	defer cleanup()

	seedTrigger(t, db, "HC", "1", 0, "06:00:00", models.StatusActive)
	seedTrigger(t, db, "HC", "0", 0, "06:00:30", models.StatusActive)
	fixedClock(p, 0, 6, 0, 5)

	sleep, err := p.tick(context.Background())
	if err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if sleep != 25*time.Second {
		t.Errorf("Sleep = %v, want 25s until the 06:00:30 trigger", sleep)
	}
}

func TestTickSleepClampedToMaxInterval(t *testing.T) {
	p, db, _, _, cleanup := newTestPoller(t)
	defer cleanup()

	seedTrigger(t, db, "HC", "1", 0, "06:00:00", models.StatusActive)
	fixedClock(p, 0, 6, 0, 5)

	// Nothing left today: the 86400 sentinel would mean hours of sleep.
	sleep, err := p.tick(context.Background())
	if err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if sleep != 60*time.Second {
		t.Errorf("Sleep = %v, want the 60s cap", sleep)
	}
}

func TestTickPublishesEvents(t *testing.T) {
	p, db, _, events, cleanup := newTestPoller(t)
	defer cleanup()

	seedTrigger(t, db, "HC", "1", 0, "06:00:00", models.StatusActive)
	sub := events.Subscribe(pubsub.TopicTriggerFired, "", 4)
	defer events.Unsubscribe(sub)

	fixedClock(p, 0, 6, 0, 5)
	if _, err := p.tick(context.Background()); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	select {
	case msg := <-sub.Channel:
		event, ok := msg.(schedule.FireEvent)
		if !ok {
			t.Fatalf("Unexpected event type %T", msg)
		}
		if event.Action.SensorName != "HC" {
			t.Errorf("Event for %q, want HC", event.Action.SensorName)
		}
	default:
		t.Fatal("Expected a trigger-fired event")
	}
}

func TestTickPublishFailureSkipsRecording(t *testing.T) {
	p, db, publisher, _, cleanup := newTestPoller(t)
	defer cleanup()
	ctx := context.Background()

	boost := seedTrigger(t, db, "DHW", "1", 0, "15:00:00", models.StatusOnce)
	publisher.PublishError = context.DeadlineExceeded
	fixedClock(p, 0, 15, 0, 0)

	if _, err := p.tick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	// The push never reached the device, so the override is not spent.
	if got, _ := db.TriggerRepo.FindByID(ctx, boost.ID); got == nil {
		t.Error("Once trigger should survive a failed publish")
	}
}

func TestStartStop(t *testing.T) {
	p, _, _, _, cleanup := newTestPoller(t)
	defer cleanup()

	fixedClock(p, 0, 12, 0, 0)

	p.Start()
	if !p.IsRunning() {
		t.Error("Expected the poller to be running after Start")
	}
	p.Start() // idempotent

	p.Stop()
	if p.IsRunning() {
		t.Error("Expected the poller to be stopped after Stop")
	}
	p.Stop() // idempotent
}

func TestRestartAfterStop(t *testing.T) {
	p, db, _, _, cleanup := newTestPoller(t)
	defer cleanup()

	fixedClock(p, 0, 12, 0, 0)

	p.Start()
	waitForWatermark(t, db, 12*3600)
	p.Stop()

	// A fresh Start gets a live loop, not a flag over a dead goroutine.
	fixedClock(p, 0, 13, 0, 0)
	p.Start()
	if !p.IsRunning() {
		t.Fatal("Expected the poller to run again after a restart")
	}

	// Only a live loop can move the watermark to the new clock.
	waitForWatermark(t, db, 13*3600)

	p.Stop()
}

func waitForWatermark(t *testing.T, db *testutil.TestDB, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		last, err := db.StateRepo.GetInt(context.Background(), repositories.LastSecondsKey, -1)
		if err != nil {
			t.Fatalf("GetInt failed: %v", err)
		}
		if last == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("watermark = %d, want %d", last, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
