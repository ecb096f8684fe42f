package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/hearthd/hearthd/internal/database/models"
)

// SensorRepository handles sensor data access.
type SensorRepository struct {
	db *gorm.DB
}

// NewSensorRepository creates a new SensorRepository.
func NewSensorRepository(db *gorm.DB) *SensorRepository {
	return &SensorRepository{db: db}
}

// FindByName returns a sensor by its name.
func (r *SensorRepository) FindByName(ctx context.Context, name string) (*models.Sensor, error) {
	var sensor models.Sensor
	result := r.db.WithContext(ctx).First(&sensor, "sensor_name = ?", name)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &sensor, nil
}

// FindByMySensorsID returns a sensor by its owning node and MySensors
// child sensor id.
func (r *SensorRepository) FindByMySensorsID(ctx context.Context, nodeID uint, mySensorsID int) (*models.Sensor, error) {
	var sensor models.Sensor
	result := r.db.WithContext(ctx).
		First(&sensor, "node_id = ? AND mysensors_sensor_id = ?", nodeID, mySensorsID)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &sensor, nil
}

// FindAll returns all sensors ordered by name.
func (r *SensorRepository) FindAll(ctx context.Context) ([]models.Sensor, error) {
	var sensors []models.Sensor
	result := r.db.WithContext(ctx).Order("sensor_name ASC").Find(&sensors)
	return sensors, result.Error
}

// Create creates a new sensor.
func (r *SensorRepository) Create(ctx context.Context, sensor *models.Sensor) error {
	return r.db.WithContext(ctx).Create(sensor).Error
}

// Update persists changes to an existing sensor.
func (r *SensorRepository) Update(ctx context.Context, sensor *models.Sensor) error {
	return r.db.WithContext(ctx).Save(sensor).Error
}

// UpdateValue records a sensor's current value, touching its last seen
// timestamp.
func (r *SensorRepository) UpdateValue(ctx context.Context, name, value string) error {
	return r.db.WithContext(ctx).
		Model(&models.Sensor{}).
		Where("sensor_name = ?", name).
		Update("current_value", value).Error
}

// CreateOrUpdate looks a sensor up by node and MySensors id and either
// applies the updates or creates the row. Returns the sensor id.
func (r *SensorRepository) CreateOrUpdate(ctx context.Context, sensor *models.Sensor) (uint, error) {
	existing, err := r.FindByMySensorsID(ctx, sensor.NodeID, sensor.MySensorsSensorID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		sensor.ID = existing.ID
		return existing.ID, r.Update(ctx, sensor)
	}
	if err := r.Create(ctx, sensor); err != nil {
		return 0, err
	}
	return sensor.ID, nil
}

// Delete deletes a sensor by ID.
func (r *SensorRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Sensor{}, "sensor_id = ?", id).Error
}
