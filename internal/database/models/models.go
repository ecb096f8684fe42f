// Package models contains the database model definitions.
// These models map directly to the SQLite database tables of the
// heating controller (gateway/node/sensor registry plus the action
// and timed-trigger schedule tables).
package models

import (
	"time"
)

// TriggerStatus classifies a timed trigger's precedence and lifetime.
type TriggerStatus string

const (
	// StatusActive is a normal recurring weekly-schedule trigger.
	StatusActive TriggerStatus = "Active"
	// StatusExternal is a recurring trigger authored through the program
	// editor. Same scheduling semantics as Active, distinct editorial source.
	StatusExternal TriggerStatus = "External"
	// StatusOnce fires a single time and is pruned after use.
	StatusOnce TriggerStatus = "Once"
	// StatusReplace retimes another trigger's occurrence without changing
	// its value.
	StatusReplace TriggerStatus = "Replace"
)

// FiringPriority orders triggers scheduled at the identical day and time:
// lower sorts first. A Once override must be considered before the regular
// trigger it may be masking.
func (s TriggerStatus) FiringPriority() int {
	switch s {
	case StatusOnce:
		return 0
	case StatusExternal:
		return 1
	case StatusActive:
		return 2
	case StatusReplace:
		return 3
	default:
		return 4
	}
}

// EveryDay is the sentinel day value for triggers that fire every day.
const EveryDay = -1

// Gateway represents an MQTT gateway the controller talks to.
// Table: gateways
type Gateway struct {
	ID             uint      `gorm:"column:gateway_id;primaryKey;autoIncrement"`
	Name           string    `gorm:"column:gateway_name"`
	BrokerHost     string    `gorm:"column:broker_host"`
	ClientID       string    `gorm:"column:client_id"`
	SubscribeTopic string    `gorm:"column:subscribe_topic"`
	PublishTopic   string    `gorm:"column:publish_topic"`
	Username       string    `gorm:"column:username"`
	Password       string    `gorm:"column:password"`
	LastSeen       time.Time `gorm:"column:last_seen;autoUpdateTime"`

	// Relations (loaded separately)
	Nodes []Node `gorm:"foreignKey:GatewayID"`
}

func (Gateway) TableName() string { return "gateways" }

// Node represents a field device node behind a gateway.
// Table: nodes
type Node struct {
	ID              uint      `gorm:"column:node_id;primaryKey;autoIncrement"`
	GatewayID       uint      `gorm:"column:gateway_id;index"`
	MySensorsNodeID int       `gorm:"column:mysensors_node_id"`
	Name            string    `gorm:"column:node_name"`
	BatteryLevel    *int      `gorm:"column:battery_level"`
	SketchVersion   *string   `gorm:"column:sketch_version"`
	LastSeen        time.Time `gorm:"column:last_seen;autoUpdateTime"`

	// Relations
	Sensors []Sensor `gorm:"foreignKey:NodeID"`
}

func (Node) TableName() string { return "nodes" }

// Sensor represents one controllable or observable point on a node,
// including its last known value.
// Table: sensors
type Sensor struct {
	ID                uint      `gorm:"column:sensor_id;primaryKey;autoIncrement"`
	NodeID            uint      `gorm:"column:node_id;index"`
	MySensorsSensorID int       `gorm:"column:mysensors_sensor_id"`
	Name              string    `gorm:"column:sensor_name;uniqueIndex"`
	VariableType      string    `gorm:"column:variable_type"`
	CurrentValue      string    `gorm:"column:current_value"`
	LastSeen          time.Time `gorm:"column:last_seen;autoUpdateTime"`
}

func (Sensor) TableName() string { return "sensors" }

// Action is one possible output value for a sensor. "DHW = 0" and
// "DHW = 1" are two different actions; multiple triggers may reference
// the same action. Immutable once created as far as scheduling goes.
//
// TriggerToUpdate is set only on the companion action of a Replace
// trigger and points back at the trigger being rescheduled. It is a
// non-owning reference: deleting the referenced trigger must not
// cascade here, and a dangling id renders as not-found.
// Table: actions
type Action struct {
	ID              uint      `gorm:"column:action_id;primaryKey;autoIncrement"`
	SensorName      string    `gorm:"column:sensor_name;index"`
	VariableType    string    `gorm:"column:variable_type"`
	SetValue        string    `gorm:"column:set_value"`
	TriggerToUpdate *uint     `gorm:"column:trigger_to_update"`
	LastSeen        time.Time `gorm:"column:last_seen;autoUpdateTime"`
}

func (Action) TableName() string { return "actions" }

// TimedTrigger is a scheduled instant that fires an action.
//
// Day is 0-6 (Monday=0) or EveryDay. Time is "HH:MM:SS" with second
// resolution; "23:59:59" is the reserved runs-to-midnight marker.
// Table: timed_triggers
type TimedTrigger struct {
	ID          uint          `gorm:"column:timed_trigger_id;primaryKey;autoIncrement"`
	ActionID    uint          `gorm:"column:action_id;index"`
	Day         int           `gorm:"column:day"`
	Time        string        `gorm:"column:time"`
	Status      TriggerStatus `gorm:"column:status;index"`
	Description string        `gorm:"column:description"`
	LastSeen    time.Time     `gorm:"column:last_seen;autoUpdateTime"`

	// Relation (loaded via Preload). The belongs-to is inferred from the
	// ActionID field; a foreignKey tag here would name a column on the
	// Action side and silently join on the wrong key.
	Action Action
}

func (TimedTrigger) TableName() string { return "timed_triggers" }

// State holds controller-level name/value pairs, such as the
// "LastSeconds" poll watermark.
// Table: states
type State struct {
	Name     string    `gorm:"column:name;primaryKey"`
	Value    string    `gorm:"column:value"`
	LastSeen time.Time `gorm:"column:last_seen;autoUpdateTime"`
}

func (State) TableName() string { return "states" }

// All returns the full model set for migration.
func All() []interface{} {
	return []interface{}{
		&Gateway{},
		&Node{},
		&Sensor{},
		&Action{},
		&TimedTrigger{},
		&State{},
	}
}
