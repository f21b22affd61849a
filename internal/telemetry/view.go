package telemetry

import (
	"strconv"

	"iot-console/internal/anomaly"
	"iot-console/internal/data"
)

// Card is the rendered form of one sensor's latest reading.
type Card struct {
	SensorID           string           `json:"sensor_id"`
	Temperature        string           `json:"temperature"` // °C, 1 decimal
	Vibration          string           `json:"vibration"`   // m/s², 3 decimals
	Pressure           string           `json:"pressure"`    // kPa, 1 decimal
	MaintenanceWarning bool             `json:"maintenance_warning"`
	Anomaly            bool             `json:"anomaly"`
	Actions            []anomaly.Action `json:"actions"`
}

func NewCard(r data.SensorReading) Card {
	return Card{
		SensorID:           r.SensorID,
		Temperature:        strconv.FormatFloat(r.Temperature, 'f', 1, 64),
		Vibration:          strconv.FormatFloat(r.Vibration, 'f', 3, 64),
		Pressure:           strconv.FormatFloat(r.Pressure, 'f', 1, 64),
		MaintenanceWarning: r.MaintenanceNeeded,
		Anomaly:            r.OperationalState == data.StateAnomaly,
		Actions:            anomaly.Catalog,
	}
}

// Cards renders every known sensor.
func (c *Console) Cards() []Card {
	readings := c.store.All()
	cards := make([]Card, 0, len(readings))
	for _, r := range readings {
		cards = append(cards, NewCard(r))
	}
	return cards
}

// Page is the template data for the telemetry page.
type Page struct {
	Connected bool
	Draft     data.Configuration
	Cards     []Card
	Limits    Limits
}

// Limits bounds the configuration form inputs.
type Limits struct {
	MinSensors, MaxSensors     int
	MinFrequency, MaxFrequency float64
}

func (c *Console) Page() Page {
	return Page{
		Connected: c.Connected(),
		Draft:     c.Draft(),
		Cards:     c.Cards(),
		Limits: Limits{
			MinSensors:   data.MinSensors,
			MaxSensors:   data.MaxSensors,
			MinFrequency: data.MinFrequency,
			MaxFrequency: data.MaxFrequency,
		},
	}
}
