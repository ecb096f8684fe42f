// Package poller runs the schedule poll loop: it fires due triggers,
// pushes the resulting value changes to the field devices and sleeps
// until the next scheduled instant.
package poller

import (
	"context"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/hearthd/hearthd/internal/database/models"
	"github.com/hearthd/hearthd/internal/database/repositories"
	"github.com/hearthd/hearthd/internal/services/pubsub"
	"github.com/hearthd/hearthd/internal/services/schedule"
	"github.com/hearthd/hearthd/internal/services/transport"
)

// Poller drives the schedule scanner on a timer.
//
// It persists a "last processed second of day" watermark so a delayed
// or missed tick still fires every trigger that fell inside the gap,
// at most once. Once triggers are deleted after the tick in which one
// of them fired.
type Poller struct {
	mu sync.Mutex

	schedule  *schedule.Service
	sensors   *repositories.SensorRepository
	state     *repositories.StateRepository
	publisher transport.Publisher
	events    *pubsub.PubSub

	maxInterval time.Duration
	now         func() time.Time

	stopChan chan struct{}
	running  bool
}

// New creates a poller.
func New(db *gorm.DB, scheduleSvc *schedule.Service, publisher transport.Publisher, events *pubsub.PubSub, maxInterval time.Duration) *Poller {
	return &Poller{
		schedule:    scheduleSvc,
		sensors:     repositories.NewSensorRepository(db),
		state:       repositories.NewStateRepository(db),
		publisher:   publisher,
		events:      events,
		maxInterval: maxInterval,
		now:         time.Now,
	}
}

// Start starts the poll loop. A stopped poller can be started again.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	stop := make(chan struct{})
	p.stopChan = stop
	p.mu.Unlock()

	go p.loop(stop)
}

// Stop stops the poll loop.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()
}

// IsRunning reports whether the poll loop is active.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) loop(stop <-chan struct{}) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			sleep, err := p.tick(context.Background())
			if err != nil {
				log.Printf("poller: tick failed: %v", err)
			}
			timer.Reset(sleep)
		}
	}
}

// tick fires everything due since the last watermark and returns how
// long the loop may sleep before the next trigger.
func (p *Poller) tick(ctx context.Context) (time.Duration, error) {
	now := p.now()
	day := schedule.Weekday(now)
	nowSec := schedule.DaySeconds(now)

	last, err := p.state.GetInt(ctx, repositories.LastSecondsKey, -1)
	if err != nil {
		return p.maxInterval, err
	}
	if last > nowSec {
		// The day rolled over since the last tick.
		last = -1
	}

	// The scan window is inclusive, so start one past the watermark to
	// keep firing at-most-once per trigger.
	events, err := p.schedule.DueTriggers(ctx, day, last+1, nowSec)
	if err != nil {
		return p.maxInterval, err
	}

	firedOnce := make(map[string]struct{})
	for _, event := range events {
		if err := p.publisher.SetSensorValue(event.Action.SensorName, event.Action.SetValue); err != nil {
			log.Printf("poller: publish %s=%s: %v", event.Action.SensorName, event.Action.SetValue, err)
			continue
		}
		if err := p.sensors.UpdateValue(ctx, event.Action.SensorName, event.Action.SetValue); err != nil {
			log.Printf("poller: record value %s=%s: %v", event.Action.SensorName, event.Action.SetValue, err)
		}
		p.events.Publish(pubsub.TopicTriggerFired, event.Action.SensorName, event)
		if event.Trigger.Status == models.StatusOnce {
			firedOnce[event.Action.SensorName] = struct{}{}
		}
		// A Replace covers exactly one occurrence; consuming it lets the
		// rescheduled trigger fire normally from next week on.
		if event.Trigger.Status == models.StatusReplace {
			if err := p.schedule.ConsumeReplaceTrigger(ctx, event.Trigger); err != nil {
				log.Printf("poller: consume replace trigger %d: %v", event.Trigger.ID, err)
			}
		}
	}

	// Spent Once overrides must not fire again next week.
	for sensor := range firedOnce {
		if err := p.schedule.DeleteOnceTriggers(ctx, sensor); err != nil {
			log.Printf("poller: prune once triggers for %s: %v", sensor, err)
		}
	}

	if err := p.state.SetInt(ctx, repositories.LastSecondsKey, nowSec); err != nil {
		return p.maxInterval, err
	}

	next, err := p.schedule.SecondsUntilNextTrigger(ctx, day, nowSec)
	if err != nil {
		return p.maxInterval, err
	}

	sleep := time.Duration(next-nowSec) * time.Second
	if sleep > p.maxInterval {
		sleep = p.maxInterval
	}
	if sleep < time.Second {
		sleep = time.Second
	}
	return sleep, nil
}
