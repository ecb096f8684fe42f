// Package config provides configuration management for the heating
// controller.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the controller.
type Config struct {
	// Server configuration
	Port string
	Env  string

	// Database configuration
	DatabaseURL    string
	DBMaxIdleConns int
	DBMaxOpenConns int

	// MQTT configuration
	MQTTBroker      string // empty disables publishing (values are logged only)
	MQTTClientID    string
	MQTTTopicPrefix string

	// Poll loop configuration
	PollMaxInterval time.Duration // longest the loop sleeps between ticks

	// Distinguished sensors
	HeatingSensor  string
	HotWaterSensor string
	ModeSensor     string

	// RelaySensors are the scheduled outputs shown on the dashboard.
	RelaySensors []string

	// CORS configuration
	CORSOrigin string
}

// Load loads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		// Server
		Port: getEnv("PORT", "4000"),
		Env:  getEnv("ENV", "development"),

		// Database
		DatabaseURL:    getEnv("DATABASE_URL", "file:./controller.db"),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),

		// MQTT
		MQTTBroker:      getEnv("MQTT_BROKER", ""),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "hearthd"),
		MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "controller/set"),

		// Poll loop
		PollMaxInterval: time.Duration(getEnvInt("POLL_MAX_INTERVAL", 60)) * time.Second,

		// Sensors
		HeatingSensor:  getEnv("HEATING_SENSOR", "HC"),
		HotWaterSensor: getEnv("HOT_WATER_SENSOR", "DHW"),
		ModeSensor:     getEnv("MODE_SENSOR", "Operating mode"),
		RelaySensors: getEnvList("RELAY_SENSORS",
			"HC,DHW,Radiators relay,Ufloor ground relay,Ufloor first relay"),

		// CORS
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:3000"),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default value.
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable as a slice,
// trimming whitespace around each entry.
func getEnvList(key, defaultValue string) []string {
	value := getEnv(key, defaultValue)
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
