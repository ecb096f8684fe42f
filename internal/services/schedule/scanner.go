package schedule

import (
	"context"
	"fmt"

	"github.com/hearthd/hearthd/internal/database/models"
)

// FireEvent is one trigger falling due inside a scan window.
//
// For a Replace trigger the event is resolved through its back
// reference: Action is the rescheduled trigger's own action (what
// actually changes), Target is that trigger, and OriginalTime is the
// time the action would have fired at without the override.
type FireEvent struct {
	Trigger      models.TimedTrigger
	Action       models.Action
	OriginalTime string
	Target       *models.TimedTrigger
}

// DueTriggers returns every trigger due on the given day of week whose
// time of day in seconds falls in [startSec, endSec] inclusive, in
// firing order (time, then trigger id). "Every day" triggers qualify on
// any day.
//
// The poll loop persists a last-processed-second watermark and scans
// (watermark, now]; the inclusive window means a delayed tick still
// picks up everything that fell in the gap. A trigger targeted by a
// pending Replace is suppressed: it fires at the Replace's time
// instead of its own. A Replace trigger whose back reference no longer
// resolves is dropped from the result, not reported as an error.
func (s *Service) DueTriggers(ctx context.Context, dayOfWeek, startSec, endSec int) ([]FireEvent, error) {
	triggers, err := s.triggers.InWindow(ctx, dayOfWeek, startSec, endSec)
	if err != nil {
		return nil, fmt.Errorf("due triggers day %d [%d,%d]: %w", dayOfWeek, startSec, endSec, err)
	}

	targeted, err := s.triggers.TargetedTriggerIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("due triggers day %d [%d,%d]: %w", dayOfWeek, startSec, endSec, err)
	}
	rescheduled := make(map[uint]struct{}, len(targeted))
	for _, id := range targeted {
		rescheduled[id] = struct{}{}
	}

	events := make([]FireEvent, 0, len(triggers))
	for _, trigger := range triggers {
		if trigger.Status != models.StatusReplace {
			if _, ok := rescheduled[trigger.ID]; ok {
				continue
			}
			events = append(events, FireEvent{
				Trigger: trigger,
				Action:  trigger.Action,
			})
			continue
		}

		// Replace: the companion action stores the original time and
		// points back at the trigger being rescheduled.
		if trigger.Action.TriggerToUpdate == nil {
			continue
		}
		target, err := s.triggers.FindByID(ctx, *trigger.Action.TriggerToUpdate)
		if err != nil {
			return nil, fmt.Errorf("due triggers: replace %d: %w", trigger.ID, err)
		}
		if target == nil {
			// The rescheduled trigger is gone; the override is inert.
			continue
		}
		events = append(events, FireEvent{
			Trigger:      trigger,
			Action:       target.Action,
			OriginalTime: trigger.Action.SetValue,
			Target:       target,
		})
	}
	return events, nil
}

// SecondsUntilNextTrigger returns the second of day of the first
// trigger strictly after afterSec on the given day of week, or
// SecondsPerDay when nothing is left today, so a poll loop always has a
// finite sleep bound.
func (s *Service) SecondsUntilNextTrigger(ctx context.Context, dayOfWeek, afterSec int) (int, error) {
	seconds, err := s.triggers.NextSeconds(ctx, dayOfWeek, afterSec)
	if err != nil {
		return SecondsPerDay, fmt.Errorf("next trigger after %d: %w", afterSec, err)
	}
	return seconds, nil
}
