package schedule

import (
	"context"
	"fmt"
	"strings"

	"github.com/hearthd/hearthd/internal/database/models"
)

// ProgramEveryDay is the pseudo-day key used in program tables for
// triggers that fire every day.
const ProgramEveryDay = 7

// ProgramEvent is one scheduled value change in a program table.
type ProgramEvent struct {
	Time     string `json:"time"`
	SetValue string `json:"setValue"`
}

// ProgramInterval is one editable on/off interval. A Start of
// NoInterval marks an unconfigured slot.
type ProgramInterval struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WeeklyProgram maps day (0-6, plus ProgramEveryDay) to the day's
// events keyed by 0-based position in ascending time order.
type WeeklyProgram map[int]map[int]ProgramEvent

// ReadProgram exports a sensor's recurring schedule as a day-keyed
// table for the editing UI. Once triggers are transient and excluded;
// everything else is grouped by day with "every day" rows under the
// ProgramEveryDay key.
func (s *Service) ReadProgram(ctx context.Context, sensorName string) (WeeklyProgram, error) {
	actionIDs, err := s.actions.IDsBySensor(ctx, sensorName)
	if err != nil {
		return nil, fmt.Errorf("read program %s: %w", sensorName, err)
	}
	program := make(WeeklyProgram)
	if len(actionIDs) == 0 {
		return program, nil
	}

	triggers, err := s.triggers.FindByActionIDs(ctx, actionIDs, models.StatusOnce)
	if err != nil {
		return nil, fmt.Errorf("read program %s: %w", sensorName, err)
	}

	for _, trigger := range triggers {
		day := trigger.Day
		if day == models.EveryDay {
			day = ProgramEveryDay
		}
		if program[day] == nil {
			program[day] = make(map[int]ProgramEvent)
		}
		program[day][len(program[day])] = ProgramEvent{
			Time:     trigger.Time,
			SetValue: trigger.Action.SetValue,
		}
	}
	return program, nil
}

// WriteProgram replaces a sensor's recurring schedule with the supplied
// per-day interval table. Every existing trigger on the sensor's on and
// off actions is deleted, then each configured interval emits an on
// trigger at its start and an off trigger at its end, both External.
// Slots starting with the NoInterval marker are skipped.
//
// This is a full replace, not a diff. A resolution racing with it may
// briefly observe a partial trigger set; schedule edits are rare,
// human-triggered events and the window is accepted.
func (s *Service) WriteProgram(ctx context.Context, sensorName string, intervals map[int][]ProgramInterval) error {
	variableType := s.variableTypeFor(ctx, sensorName)

	onAction, err := s.actions.FindOrCreate(ctx, sensorName, variableType, ValueOn)
	if err != nil {
		return fmt.Errorf("write program %s: %w", sensorName, err)
	}
	offAction, err := s.actions.FindOrCreate(ctx, sensorName, variableType, ValueOff)
	if err != nil {
		return fmt.Errorf("write program %s: %w", sensorName, err)
	}

	actionIDs := []uint{onAction.ID, offAction.ID}
	if err := s.triggers.DeleteByActionIDs(ctx, actionIDs); err != nil {
		return fmt.Errorf("write program %s: %w", sensorName, err)
	}

	for day := 0; day < 7; day++ {
		for pos, interval := range intervals[day] {
			if strings.HasPrefix(interval.Start, NoInterval) {
				continue
			}
			description := fmt.Sprintf("Interval %d", pos)
			on := &models.TimedTrigger{
				ActionID:    onAction.ID,
				Day:         day,
				Time:        NormalizeTime(interval.Start),
				Status:      models.StatusExternal,
				Description: description,
			}
			if err := s.triggers.Create(ctx, on); err != nil {
				return fmt.Errorf("write program %s day %d: %w", sensorName, day, err)
			}
			off := &models.TimedTrigger{
				ActionID:    offAction.ID,
				Day:         day,
				Time:        NormalizeTime(interval.End),
				Status:      models.StatusExternal,
				Description: description,
			}
			if err := s.triggers.Create(ctx, off); err != nil {
				return fmt.Errorf("write program %s day %d: %w", sensorName, day, err)
			}
		}
	}
	return nil
}
