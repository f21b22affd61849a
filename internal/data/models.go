// internal/data/models.go
package data

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Stream message types sent by the sensor generator.
const (
	MessageSensorReading = "sensor_reading"
	MessageSensorStates  = "sensor_states"
)

// Operational states reported in a reading.
const (
	StateNormal  = "normal"
	StateAnomaly = "anomaly"
)

// SensorReading is one sensor's snapshot as produced by the generator.
type SensorReading struct {
	SensorID          string  `json:"sensor_id"`
	Temperature       float64 `json:"temperature"`
	Vibration         float64 `json:"vibration"`
	Pressure          float64 `json:"pressure"`
	OperationalState  string  `json:"operational_state"`
	MaintenanceNeeded bool    `json:"maintenance_needed"`
	Timestamp         float64 `json:"timestamp"` // epoch seconds
	IsTest            bool    `json:"is_test,omitempty"`
}

// Time converts the epoch timestamp to a time.Time.
func (r SensorReading) Time() time.Time {
	sec := int64(r.Timestamp)
	nsec := int64((r.Timestamp - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// StreamMessage is the envelope of every frame on the telemetry stream.
// Data is kept raw because its shape depends on Type.
type StreamMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	MinSensors   = 1
	MaxSensors   = 20
	MinFrequency = 0.1
	MaxFrequency = 10
)

var ErrInvalidConfiguration = errors.New("invalid configuration")

// Configuration is the generator draft edited by the operator.
type Configuration struct {
	NumSensors  int     `json:"num_sensors"`
	FrequencyHz float64 `json:"frequency_hz"`
}

// DefaultConfiguration matches the form's initial values.
func DefaultConfiguration() Configuration {
	return Configuration{NumSensors: 3, FrequencyHz: 1}
}

func (c Configuration) Validate() error {
	if c.NumSensors < MinSensors || c.NumSensors > MaxSensors {
		return fmt.Errorf("%w: num_sensors %d outside [%d,%d]", ErrInvalidConfiguration, c.NumSensors, MinSensors, MaxSensors)
	}
	if c.FrequencyHz < MinFrequency || c.FrequencyHz > MaxFrequency {
		return fmt.Errorf("%w: frequency_hz %g outside [%g,%g]", ErrInvalidConfiguration, c.FrequencyHz, float64(MinFrequency), float64(MaxFrequency))
	}
	return nil
}

// AnomalyRequest is the body of an anomaly injection command.
type AnomalyRequest struct {
	SensorIDs   []string `json:"sensor_ids"`
	AnomalyType string   `json:"anomaly_type"`
}

// HealthStatus is the status string returned by a health endpoint.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// HealthData is one service's health response. Details is an opaque
// diagnostic payload; the console only passes it through.
type HealthData struct {
	Status  HealthStatus    `json:"status"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Unhealthy is the fallback substituted for a failed health fetch.
func Unhealthy() HealthData {
	return HealthData{Status: StatusUnhealthy}
}

// Metrics are the scalar tiles on the health overview.
type Metrics struct {
	SensorCount       float64 `json:"sensorCount"`
	MessageRate       float64 `json:"messageRate"`
	ProcessingLatency float64 `json:"processingLatency"`
	Alerts            float64 `json:"alerts"`
}

// Alert - Structure for sending alerts
type Alert struct {
	Timestamp time.Time `json:"timestamp"`
	Severity  string    `json:"severity"` // e.g., "WARN", "CRITICAL"
	Message   string    `json:"message"`
	Metric    string    `json:"metric,omitempty"`
	Value     float64   `json:"value,omitempty"`
	DeviceID  string    `json:"device_id,omitempty"`
}
