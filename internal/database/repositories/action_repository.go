package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/hearthd/hearthd/internal/database/models"
)

// ActionRepository handles action data access.
type ActionRepository struct {
	db *gorm.DB
}

// NewActionRepository creates a new ActionRepository.
func NewActionRepository(db *gorm.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

// Find returns the action for a sensor/value pair. When more than one
// row matches, the one with the lowest id wins; the schedule tables are
// expected to carry a single canonical action per value but nothing
// enforces that.
func (r *ActionRepository) Find(ctx context.Context, sensorName, value string) (*models.Action, error) {
	var action models.Action
	result := r.db.WithContext(ctx).
		Where("sensor_name = ? AND set_value = ?", sensorName, value).
		Order("action_id ASC").
		First(&action)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &action, nil
}

// FindOrCreate returns the canonical action for a sensor/value pair,
// creating it if the value has never been scheduled before.
func (r *ActionRepository) FindOrCreate(ctx context.Context, sensorName, variableType, value string) (*models.Action, error) {
	action, err := r.Find(ctx, sensorName, value)
	if err != nil {
		return nil, err
	}
	if action != nil {
		return action, nil
	}
	action = &models.Action{
		SensorName:   sensorName,
		VariableType: variableType,
		SetValue:     value,
	}
	if err := r.Create(ctx, action); err != nil {
		return nil, err
	}
	return action, nil
}

// FindByID returns an action by ID.
func (r *ActionRepository) FindByID(ctx context.Context, id uint) (*models.Action, error) {
	var action models.Action
	result := r.db.WithContext(ctx).First(&action, "action_id = ?", id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &action, nil
}

// FindBySensor returns all actions belonging to a sensor.
func (r *ActionRepository) FindBySensor(ctx context.Context, sensorName string) ([]models.Action, error) {
	var actions []models.Action
	result := r.db.WithContext(ctx).
		Where("sensor_name = ?", sensorName).
		Order("action_id ASC").
		Find(&actions)
	return actions, result.Error
}

// IDsBySensor returns the ids of all actions belonging to a sensor.
func (r *ActionRepository) IDsBySensor(ctx context.Context, sensorName string) ([]uint, error) {
	var ids []uint
	result := r.db.WithContext(ctx).
		Model(&models.Action{}).
		Where("sensor_name = ?", sensorName).
		Order("action_id ASC").
		Pluck("action_id", &ids)
	return ids, result.Error
}

// Create creates a new action.
func (r *ActionRepository) Create(ctx context.Context, action *models.Action) error {
	return r.db.WithContext(ctx).Create(action).Error
}

// Delete deletes an action by ID.
func (r *ActionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Action{}, "action_id = ?", id).Error
}
