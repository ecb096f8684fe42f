// Package schedule implements the weekly relay schedule engine: interval
// resolution with ad-hoc overrides, the firing window scanner the poll
// loop runs on, the program table codec behind the editing UI, and the
// override manager.
//
// The engine is stateless. Every operation re-derives its answer from
// the repositories, so concurrent reads are safe; schedule writes are
// rare human-triggered events and a save may be briefly observable as a
// partial trigger set (the database's busy timeout serializes the
// individual statements).
package schedule

import (
	"context"

	"gorm.io/gorm"

	"github.com/hearthd/hearthd/internal/database/repositories"
)

// Canonical relay output values. Any non-zero value counts as "on";
// these are the two values the program codec schedules.
const (
	ValueOn  = "1"
	ValueOff = "0"
)

// ValueUnknown asks Resolve to bracket "now" without assuming the
// sensor's live value, for outputs that are not externally observable.
const ValueUnknown = ""

// defaultVariableType is used for actions created for sensors missing
// from the registry.
const defaultVariableType = "V_STATUS"

// Config names the distinguished sensors the engine has special
// knowledge of.
type Config struct {
	HeatingSensor  string // heating circuit enable relay ("HC")
	HotWaterSensor string // domestic hot water relay ("DHW")
	ModeSensor     string // heat pump operating mode sensor
}

// Service answers schedule questions for sensors and maintains their
// trigger sets.
type Service struct {
	cfg      Config
	actions  *repositories.ActionRepository
	triggers *repositories.TriggerRepository
	sensors  *repositories.SensorRepository
}

// NewService creates a schedule service over the given database.
func NewService(db *gorm.DB, cfg Config) *Service {
	return &Service{
		cfg:      cfg,
		actions:  repositories.NewActionRepository(db),
		triggers: repositories.NewTriggerRepository(db),
		sensors:  repositories.NewSensorRepository(db),
	}
}

// variableTypeFor returns the registry variable type for a sensor, or
// the default when the sensor is not registered.
func (s *Service) variableTypeFor(ctx context.Context, sensorName string) string {
	sensor, err := s.sensors.FindByName(ctx, sensorName)
	if err != nil || sensor == nil || sensor.VariableType == "" {
		return defaultVariableType
	}
	return sensor.VariableType
}
