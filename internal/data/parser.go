// internal/data/parser.go
package data

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDecode marks a frame that could not be decoded. Callers discard the
// frame and keep their state.
var ErrDecode = errors.New("decode stream message")

// ParseMessage decodes a stream frame. For sensor_reading frames the reading
// is returned too; for any other type the reading is nil and no error is
// reported.
func ParseMessage(raw []byte) (*StreamMessage, *SensorReading, error) {
	var msg StreamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if msg.Type != MessageSensorReading {
		return &msg, nil, nil
	}

	var reading SensorReading
	if err := json.Unmarshal(msg.Data, &reading); err != nil {
		return &msg, nil, fmt.Errorf("%w: reading payload: %v", ErrDecode, err)
	}
	if reading.SensorID == "" {
		return &msg, nil, fmt.Errorf("%w: reading without sensor_id", ErrDecode)
	}
	return &msg, &reading, nil
}

// ParseReading decodes a bare reading, as published on the raw sensor topic.
func ParseReading(raw []byte) (*SensorReading, error) {
	var reading SensorReading
	if err := json.Unmarshal(raw, &reading); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &reading, nil
}
