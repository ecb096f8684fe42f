package schedule

import (
	"context"
	"fmt"

	"github.com/hearthd/hearthd/internal/database/models"
)

// CreateOnceTrigger schedules a single-fire override setting the sensor
// to value at the given day and time. The description ties related
// overrides together so they can be cancelled as a family with
// DeletePrefixedTriggers.
func (s *Service) CreateOnceTrigger(ctx context.Context, sensorName string, day int, timeOfDay, value, description string) (*models.TimedTrigger, error) {
	action, err := s.actions.FindOrCreate(ctx, sensorName, s.variableTypeFor(ctx, sensorName), value)
	if err != nil {
		return nil, fmt.Errorf("create once trigger %s: %w", sensorName, err)
	}
	if description == "" {
		description = fmt.Sprintf("Once %s %s", sensorName, timeOfDay)
	}
	trigger := &models.TimedTrigger{
		ActionID:    action.ID,
		Day:         day,
		Time:        NormalizeTime(timeOfDay),
		Status:      models.StatusOnce,
		Description: description,
	}
	if err := s.triggers.Create(ctx, trigger); err != nil {
		return nil, fmt.Errorf("create once trigger %s: %w", sensorName, err)
	}
	return trigger, nil
}

// CreateReplaceTrigger reschedules a single occurrence of an existing
// trigger to a new day and time without changing what it sets. A
// companion action records the original time and carries the back
// reference; the Replace trigger fires at the new time and the scanner
// resolves it through the reference rather than rewriting the target.
func (s *Service) CreateReplaceTrigger(ctx context.Context, sensorName string, day int, newTime string, targetID uint) (*models.TimedTrigger, error) {
	target, err := s.triggers.FindByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("create replace trigger %s: %w", sensorName, err)
	}
	if target == nil {
		return nil, fmt.Errorf("create replace trigger %s: trigger %d not found", sensorName, targetID)
	}

	companion := &models.Action{
		SensorName:      sensorName,
		VariableType:    target.Action.VariableType,
		SetValue:        target.Time,
		TriggerToUpdate: &targetID,
	}
	if err := s.actions.Create(ctx, companion); err != nil {
		return nil, fmt.Errorf("create replace trigger %s: %w", sensorName, err)
	}

	trigger := &models.TimedTrigger{
		ActionID:    companion.ID,
		Day:         day,
		Time:        NormalizeTime(newTime),
		Status:      models.StatusReplace,
		Description: fmt.Sprintf("Replace %d", targetID),
	}
	if err := s.triggers.Create(ctx, trigger); err != nil {
		return nil, fmt.Errorf("create replace trigger %s: %w", sensorName, err)
	}
	return trigger, nil
}

// ConsumeReplaceTrigger removes a fired Replace trigger together with
// its companion action. A Replace retimes a single occurrence; once it
// has fired, the suppression of the rescheduled trigger lifts and the
// regular slot resumes the following week.
func (s *Service) ConsumeReplaceTrigger(ctx context.Context, trigger models.TimedTrigger) error {
	if trigger.Status != models.StatusReplace {
		return nil
	}
	if err := s.triggers.Delete(ctx, trigger.ID); err != nil {
		return fmt.Errorf("consume replace trigger %d: %w", trigger.ID, err)
	}
	if err := s.actions.Delete(ctx, trigger.ActionID); err != nil {
		return fmt.Errorf("consume replace trigger %d: %w", trigger.ID, err)
	}
	return nil
}

// DeleteOnceTriggers removes all Once triggers for a sensor, either as
// cleanup after they fire or as cancellation.
func (s *Service) DeleteOnceTriggers(ctx context.Context, sensorName string) error {
	actionIDs, err := s.actions.IDsBySensor(ctx, sensorName)
	if err != nil {
		return fmt.Errorf("delete once triggers %s: %w", sensorName, err)
	}
	if len(actionIDs) == 0 {
		return nil
	}
	if err := s.triggers.DeleteByActionIDs(ctx, actionIDs, models.StatusOnce); err != nil {
		return fmt.Errorf("delete once triggers %s: %w", sensorName, err)
	}
	return nil
}

// DeletePrefixedTriggers removes every Once trigger whose description
// starts with the given text, cancelling a family of temporary
// overrides in one call.
func (s *Service) DeletePrefixedTriggers(ctx context.Context, prefix string) error {
	if err := s.triggers.DeleteByDescriptionPrefix(ctx, prefix); err != nil {
		return fmt.Errorf("delete prefixed triggers %q: %w", prefix, err)
	}
	return nil
}

// SwitchTriggers flips the status of every trigger on a sensor's "on"
// action, disabling or re-enabling the schedule without deleting it.
// The off triggers are left alone: with no on trigger firing there is
// nothing for them to undo.
func (s *Service) SwitchTriggers(ctx context.Context, sensorName string, newStatus models.TriggerStatus) error {
	onAction, err := s.actions.Find(ctx, sensorName, ValueOn)
	if err != nil {
		return fmt.Errorf("switch triggers %s: %w", sensorName, err)
	}
	if onAction == nil {
		return nil
	}
	if err := s.triggers.UpdateStatusByActionID(ctx, onAction.ID, newStatus); err != nil {
		return fmt.Errorf("switch triggers %s: %w", sensorName, err)
	}
	return nil
}

// UpdateTrigger retimes one recurring trigger matched by sensor, value,
// day and a description fragment. The match is approximate: when
// several triggers qualify the lowest id wins, which mirrors how the
// controller has always resolved it. Returns the updated trigger, or
// nil when nothing matched.
func (s *Service) UpdateTrigger(ctx context.Context, sensorName string, day int, group, value, newTime string) (*models.TimedTrigger, error) {
	action, err := s.actions.Find(ctx, sensorName, value)
	if err != nil {
		return nil, fmt.Errorf("update trigger %s: %w", sensorName, err)
	}
	if action == nil {
		return nil, nil
	}
	trigger, err := s.triggers.FindMatch(ctx, action.ID, day, group)
	if err != nil {
		return nil, fmt.Errorf("update trigger %s: %w", sensorName, err)
	}
	if trigger == nil {
		return nil, nil
	}
	trigger.Time = NormalizeTime(newTime)
	if err := s.triggers.Update(ctx, trigger); err != nil {
		return nil, fmt.Errorf("update trigger %s: %w", sensorName, err)
	}
	return trigger, nil
}
