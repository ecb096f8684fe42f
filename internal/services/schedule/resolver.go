package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hearthd/hearthd/internal/database/models"
)

// ResolvedInterval is the pair of triggers bracketing an instant for a
// sensor: Previous is the trigger whose value is in force, Next is the
// trigger that will change it.
type ResolvedInterval struct {
	Previous models.TimedTrigger
	Next     models.TimedTrigger
}

// modeHeatingOff is the heat pump operating mode that forces the
// heating circuit off regardless of schedule.
const modeHeatingOff = "5"

// Resolve determines the schedule interval covering "now" for a sensor.
//
// currentValue is the value believed to be in force, or ValueUnknown to
// bracket the instant purely from the trigger sequence (used for relay
// outputs that cannot be read back). Returns nil when the sensor has no
// triggers at all.
//
// The walk handles three things a plain "first trigger after now" scan
// gets wrong: week wraparound (early Monday before anything has fired),
// a Once override masking a regular trigger scheduled at the identical
// instant, and External programs that span midnight as a 23:59:59 /
// 00:00:00 row pair which must read as one continuous interval.
func (s *Service) Resolve(ctx context.Context, sensorName, currentValue string, now time.Time) (*ResolvedInterval, error) {
	actionIDs, err := s.actions.IDsBySensor(ctx, sensorName)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", sensorName, err)
	}
	if len(actionIDs) == 0 {
		return nil, nil
	}

	cands, err := s.triggers.Candidates(ctx, actionIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", sensorName, err)
	}
	cands = expandEveryDay(cands)
	if len(cands) == 0 {
		return nil, nil
	}

	today := Weekday(now)
	nowSec := DaySeconds(now)

	// Seed "previous" with the chronologically last trigger of the week
	// so early-Monday queries wrap correctly.
	prev := cands[len(cands)-1]

	unknown := currentValue == ValueUnknown
	curVal := currentValue
	if unknown {
		curVal = prev.Action.SetValue
	}

	var (
		ignoreNext  bool                 // next candidate is masked by a Once at the same instant
		midnight    bool                 // previous candidate ended at 23:59:59
		midnightDay int                  // day of that 23:59:59 candidate
		pendingNext *models.TimedTrigger // 23:59:59 transition awaiting the continuation check
	)

	for i := range cands {
		c := &cands[i]
		csec, err := ToSeconds(c.Time)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: trigger %d: %w", sensorName, c.ID, err)
		}
		val := c.Action.SetValue

		// A row at day+1 00:00:00 immediately after a 23:59:59 row is the
		// same interval continuing across midnight, not a transition.
		if midnight {
			midnight = false
			if c.Day == midnightDay+1 && csec == 0 {
				pendingNext = nil
				continue
			}
			if pendingNext != nil {
				return &ResolvedInterval{Previous: prev, Next: *pendingNext}, nil
			}
		}
		if csec == endOfDaySec {
			midnight = true
			midnightDay = c.Day
		}

		futureToday := c.Day == today && csec > nowSec
		tomorrow := c.Day == today+1

		if val != curVal {
			switch {
			case futureToday:
				if ignoreNext {
					ignoreNext = false
				} else if csec == endOfDaySec {
					pendingNext = c
				} else {
					return &ResolvedInterval{Previous: prev, Next: *c}, nil
				}
			case tomorrow:
				if ignoreNext {
					ignoreNext = false
				} else {
					return &ResolvedInterval{Previous: prev, Next: *c}, nil
				}
			default:
				// Already fired this week. Without a known live value the
				// output followed the schedule, so the bracket moves here.
				if unknown && (c.Day < today || (c.Day == today && csec <= nowSec)) {
					prev = *c
					curVal = val
				}
			}
			continue
		}

		// Value matches the tracked current value: not a transition. A
		// Once at this instant masks the regular trigger sorted after it.
		if futureToday || tomorrow {
			ignoreNext = c.Status == models.StatusOnce
		}
		prev = *c
	}

	if pendingNext != nil {
		return &ResolvedInterval{Previous: prev, Next: *pendingNext}, nil
	}

	// Nothing ahead this week: the schedule wraps to its first trigger.
	return &ResolvedInterval{Previous: prev, Next: cands[0]}, nil
}

// NextSwitchTime returns the time of day of the next value change for a
// sensor, or "" when the sensor has no triggers.
func (s *Service) NextSwitchTime(ctx context.Context, sensorName, currentValue string, now time.Time) (string, error) {
	interval, err := s.Resolve(ctx, sensorName, currentValue, now)
	if err != nil || interval == nil {
		return "", err
	}
	return interval.Next.Time, nil
}

// IsCurrentlyOn reports whether a relay sensor's schedule has it in the
// on state right now. For the heating circuit the heat pump operating
// mode is consulted first: mode 5 forces it off whatever the schedule
// says.
func (s *Service) IsCurrentlyOn(ctx context.Context, sensorName string, now time.Time) (bool, error) {
	if sensorName == s.cfg.HeatingSensor && s.cfg.ModeSensor != "" {
		mode, err := s.sensors.FindByName(ctx, s.cfg.ModeSensor)
		if err != nil {
			return false, fmt.Errorf("is on %s: %w", sensorName, err)
		}
		if mode != nil && mode.CurrentValue == modeHeatingOff {
			return false, nil
		}
	}

	interval, err := s.Resolve(ctx, sensorName, ValueUnknown, now)
	if err != nil || interval == nil {
		return false, err
	}
	return interval.Previous.Action.SetValue != ValueOff, nil
}

// expandEveryDay materializes each "every day" trigger as seven per-day
// occurrences so the single ordered walk sees them on the days they
// actually fire. Per-day rows pass through untouched.
func expandEveryDay(triggers []models.TimedTrigger) []models.TimedTrigger {
	expanded := make([]models.TimedTrigger, 0, len(triggers))
	hasEveryDay := false
	for _, t := range triggers {
		if t.Day == models.EveryDay {
			hasEveryDay = true
			for day := 0; day < 7; day++ {
				occ := t
				occ.Day = day
				expanded = append(expanded, occ)
			}
			continue
		}
		expanded = append(expanded, t)
	}
	if !hasEveryDay {
		return expanded
	}
	sort.SliceStable(expanded, func(i, j int) bool {
		a, b := expanded[i], expanded[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		asec, _ := ToSeconds(a.Time)
		bsec, _ := ToSeconds(b.Time)
		if asec != bsec {
			return asec < bsec
		}
		return a.Status.FiringPriority() < b.Status.FiringPriority()
	})
	return expanded
}
