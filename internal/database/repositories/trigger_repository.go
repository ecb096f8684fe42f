package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/hearthd/hearthd/internal/database/models"
)

// timeSecondsExpr converts the "HH:MM:SS" time column to seconds since
// midnight in SQL, the same ((H*60)+M)*60+S conversion the Go side
// exposes. Keeping the ordering in the query means callers always see
// triggers in true chronological order, not string order.
const timeSecondsExpr = "(CAST(substr(time, 1, 2) AS INTEGER) * 60 + CAST(substr(time, 4, 2) AS INTEGER)) * 60 + CAST(substr(time, 7, 2) AS INTEGER)"

// statusPriorityExpr is the explicit tie-break for triggers scheduled at
// the identical day and time. Must stay in sync with
// models.TriggerStatus.FiringPriority.
const statusPriorityExpr = "CASE status WHEN 'Once' THEN 0 WHEN 'External' THEN 1 WHEN 'Active' THEN 2 WHEN 'Replace' THEN 3 ELSE 4 END"

// TriggerRepository handles timed trigger data access.
type TriggerRepository struct {
	db *gorm.DB
}

// NewTriggerRepository creates a new TriggerRepository.
func NewTriggerRepository(db *gorm.DB) *TriggerRepository {
	return &TriggerRepository{db: db}
}

// FindByID returns a trigger by ID with its action loaded.
func (r *TriggerRepository) FindByID(ctx context.Context, id uint) (*models.TimedTrigger, error) {
	var trigger models.TimedTrigger
	result := r.db.WithContext(ctx).
		Preload("Action").
		First(&trigger, "timed_trigger_id = ?", id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &trigger, nil
}

// Candidates returns the resolution candidates for a set of actions:
// every Active, External and Once trigger, ordered by day, then time of
// day, then status priority so a Once override precedes a coincident
// regular trigger.
func (r *TriggerRepository) Candidates(ctx context.Context, actionIDs []uint) ([]models.TimedTrigger, error) {
	var triggers []models.TimedTrigger
	result := r.db.WithContext(ctx).
		Preload("Action").
		Where("action_id IN ? AND status IN ?", actionIDs,
			[]models.TriggerStatus{models.StatusActive, models.StatusExternal, models.StatusOnce}).
		Order(fmt.Sprintf("day ASC, %s ASC, %s ASC", timeSecondsExpr, statusPriorityExpr)).
		Find(&triggers)
	return triggers, result.Error
}

// InWindow returns every trigger firing on the given day of week whose
// time of day falls inside [startSec, endSec] inclusive, ordered by time
// then trigger id. EveryDay triggers always qualify.
func (r *TriggerRepository) InWindow(ctx context.Context, dayOfWeek, startSec, endSec int) ([]models.TimedTrigger, error) {
	var triggers []models.TimedTrigger
	result := r.db.WithContext(ctx).
		Preload("Action").
		Where(fmt.Sprintf("day IN ? AND %s BETWEEN ? AND ?", timeSecondsExpr),
			[]int{models.EveryDay, dayOfWeek}, startSec, endSec).
		Order(fmt.Sprintf("%s ASC, timed_trigger_id ASC", timeSecondsExpr)).
		Find(&triggers)
	return triggers, result.Error
}

// NextSeconds returns the second of day of the first trigger on the
// given day of week strictly after afterSec, or 86400 when nothing is
// left today so a poll loop always has a finite sleep bound.
func (r *TriggerRepository) NextSeconds(ctx context.Context, dayOfWeek, afterSec int) (int, error) {
	var seconds int
	result := r.db.WithContext(ctx).
		Model(&models.TimedTrigger{}).
		Select(fmt.Sprintf("COALESCE(MIN(%s), 86400)", timeSecondsExpr)).
		Where(fmt.Sprintf("day IN ? AND status IN ? AND %s > ?", timeSecondsExpr),
			[]int{models.EveryDay, dayOfWeek},
			[]models.TriggerStatus{models.StatusActive, models.StatusOnce, models.StatusExternal, models.StatusReplace},
			afterSec).
		Scan(&seconds)
	return seconds, result.Error
}

// TargetedTriggerIDs returns the ids of every trigger a pending Replace
// trigger reschedules. The join goes through the companion action's
// back reference; dangling references may yield ids with no live row,
// which callers must tolerate.
func (r *TriggerRepository) TargetedTriggerIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	result := r.db.WithContext(ctx).
		Model(&models.TimedTrigger{}).
		Joins("JOIN actions ON actions.action_id = timed_triggers.action_id").
		Where("timed_triggers.status = ? AND actions.trigger_to_update IS NOT NULL", models.StatusReplace).
		Pluck("actions.trigger_to_update", &ids)
	return ids, result.Error
}

// FindByActionIDs returns all triggers referencing the given actions,
// optionally excluding statuses, ordered by day then time.
func (r *TriggerRepository) FindByActionIDs(ctx context.Context, actionIDs []uint, exclude ...models.TriggerStatus) ([]models.TimedTrigger, error) {
	var triggers []models.TimedTrigger
	query := r.db.WithContext(ctx).
		Preload("Action").
		Where("action_id IN ?", actionIDs)
	if len(exclude) > 0 {
		query = query.Where("status NOT IN ?", exclude)
	}
	result := query.
		Order(fmt.Sprintf("day ASC, %s ASC, timed_trigger_id ASC", timeSecondsExpr)).
		Find(&triggers)
	return triggers, result.Error
}

// FindMatch returns the first Active or External trigger for an action
// on a day whose description contains the given text. Matching is
// deliberately loose: when several rows qualify the lowest id wins,
// exactly as the controller has always behaved.
func (r *TriggerRepository) FindMatch(ctx context.Context, actionID uint, day int, descContains string) (*models.TimedTrigger, error) {
	var trigger models.TimedTrigger
	result := r.db.WithContext(ctx).
		Where("action_id = ? AND day = ? AND status IN ? AND description LIKE ?",
			actionID, day,
			[]models.TriggerStatus{models.StatusActive, models.StatusExternal},
			"%"+descContains+"%").
		Order("timed_trigger_id ASC").
		First(&trigger)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &trigger, nil
}

// Create creates a new trigger.
func (r *TriggerRepository) Create(ctx context.Context, trigger *models.TimedTrigger) error {
	return r.db.WithContext(ctx).Create(trigger).Error
}

// Update persists changes to an existing trigger.
func (r *TriggerRepository) Update(ctx context.Context, trigger *models.TimedTrigger) error {
	return r.db.WithContext(ctx).Save(trigger).Error
}

// UpdateStatusByActionID flips the status of every trigger referencing
// an action.
func (r *TriggerRepository) UpdateStatusByActionID(ctx context.Context, actionID uint, status models.TriggerStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.TimedTrigger{}).
		Where("action_id = ?", actionID).
		Update("status", status).Error
}

// Delete deletes a trigger by ID.
func (r *TriggerRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.TimedTrigger{}, "timed_trigger_id = ?", id).Error
}

// DeleteByActionIDs deletes all triggers referencing the given actions,
// optionally restricted to a status.
func (r *TriggerRepository) DeleteByActionIDs(ctx context.Context, actionIDs []uint, statuses ...models.TriggerStatus) error {
	query := r.db.WithContext(ctx).Where("action_id IN ?", actionIDs)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	return query.Delete(&models.TimedTrigger{}).Error
}

// DeleteByDescriptionPrefix deletes all Once triggers whose description
// starts with the given text.
func (r *TriggerRepository) DeleteByDescriptionPrefix(ctx context.Context, prefix string) error {
	return r.db.WithContext(ctx).
		Where("status = ? AND description LIKE ?", models.StatusOnce, prefix+"%").
		Delete(&models.TimedTrigger{}).Error
}
