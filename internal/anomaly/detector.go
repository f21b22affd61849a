// internal/anomaly/detector.go
package anomaly

import (
	"errors"
	"fmt"
	"time"

	"iot-console/internal/config"
	"iot-console/internal/data"
)

// Type is an anomaly the generator knows how to inject.
type Type string

const (
	TemperatureSpike Type = "temperature_spike"
	VibrationFault   Type = "vibration_fault"
	PressureDrop     Type = "pressure_drop"
)

// Action is one injection button on a sensor card.
type Action struct {
	Type  Type   `json:"type"`
	Label string `json:"label"`
}

// Catalog lists the injectable anomalies in button order.
var Catalog = []Action{
	{Type: TemperatureSpike, Label: "Temp Spike"},
	{Type: VibrationFault, Label: "Vibration Fault"},
	{Type: PressureDrop, Label: "Pressure Drop"},
}

var ErrUnknownType = errors.New("unknown anomaly type")

// Validate rejects anomaly types that are not in the catalog.
func Validate(t string) error {
	for _, a := range Catalog {
		if string(a.Type) == t {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownType, t)
}

type Detector struct {
	rules map[string]config.Rule
}

func NewDetector(rules map[string]config.Rule) *Detector {
	return &Detector{rules: rules}
}

// Check compares a reading's metrics against the configured min/max rules.
func (d *Detector) Check(r *data.SensorReading) []data.Alert {
	if len(d.rules) == 0 {
		return nil
	}

	metrics := map[string]float64{
		"temperature": r.Temperature,
		"vibration":   r.Vibration,
		"pressure":    r.Pressure,
	}

	var alerts []data.Alert
	for metric, value := range metrics {
		rule, ok := d.rules[metric]
		if !ok {
			continue
		}
		if value < rule.Min || value > rule.Max {
			alerts = append(alerts, data.Alert{
				Timestamp: readingTime(r),
				Severity:  "WARN",
				Message:   fmt.Sprintf("%s %s %.2f is outside range [%.2f, %.2f]", r.SensorID, metric, value, rule.Min, rule.Max),
				Metric:    metric,
				Value:     value,
				DeviceID:  r.SensorID,
			})
		}
	}
	return alerts
}

func readingTime(r *data.SensorReading) time.Time {
	if r.Timestamp <= 0 {
		return time.Now()
	}
	return r.Time()
}
