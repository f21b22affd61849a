// Package telemetry is the live telemetry console: the latest reading per
// sensor, the stream connection status, the generator configuration draft and
// the operator commands.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"iot-console/internal/anomaly"
	"iot-console/internal/data"
	"iot-console/internal/metrics"
	"iot-console/internal/storage"
)

// Commander sends operator commands to the generator.
type Commander interface {
	UpdateConfiguration(ctx context.Context, cfg data.Configuration) error
	InjectAnomaly(ctx context.Context, sensorID, anomalyType string) error
}

// Observer is notified after the console state changes.
type Observer interface {
	OnReading(r data.SensorReading)
	OnConnection(connected bool)
}

type Console struct {
	store     *storage.ReadingStore
	commands  Commander
	observers []Observer
	logger    *slog.Logger

	mu        sync.RWMutex
	connected bool
	draft     data.Configuration
}

func NewConsole(store *storage.ReadingStore, commands Commander, logger *slog.Logger, observers ...Observer) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{
		store:     store,
		commands:  commands,
		observers: observers,
		logger:    logger,
		draft:     data.DefaultConfiguration(),
	}
}

// HandleOpen marks the stream as connected.
func (c *Console) HandleOpen() {
	c.setConnected(true)
	c.logger.Info("Connected to telemetry stream")
}

// HandleClose marks the stream as disconnected. Readings are kept.
func (c *Console) HandleClose() {
	c.setConnected(false)
	c.logger.Info("Disconnected from telemetry stream")
}

func (c *Console) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()

	if v {
		metrics.StreamConnected.Set(1)
	} else {
		metrics.StreamConnected.Set(0)
	}
	for _, o := range c.observers {
		o.OnConnection(v)
	}
}

func (c *Console) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// HandleMessage applies one stream frame. Only sensor_reading frames change
// state; a frame that fails to decode is reported and leaves state untouched.
func (c *Console) HandleMessage(raw []byte) error {
	msg, reading, err := data.ParseMessage(raw)
	if err != nil {
		metrics.DecodeFailures.Inc()
		return err
	}
	metrics.StreamMessages.WithLabelValues(messageLabel(msg.Type)).Inc()
	if reading == nil {
		return nil
	}

	c.store.Put(*reading)
	metrics.KnownSensors.Set(float64(c.store.Len()))
	for _, o := range c.observers {
		o.OnReading(*reading)
	}
	return nil
}

// messageLabel bounds the metric label set; the type comes from the remote
// stream.
func messageLabel(msgType string) string {
	switch msgType {
	case data.MessageSensorReading, data.MessageSensorStates:
		return msgType
	default:
		return "other"
	}
}

func (c *Console) Readings() []data.SensorReading {
	return c.store.All()
}

func (c *Console) Draft() data.Configuration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.draft
}

// SetDraft replaces the local draft. Nothing is sent.
func (c *Console) SetDraft(cfg data.Configuration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.draft = cfg
	c.mu.Unlock()
	return nil
}

// UpdateConfiguration submits the current draft once. On failure the draft
// is kept as is.
func (c *Console) UpdateConfiguration(ctx context.Context) error {
	draft := c.Draft()
	if err := c.commands.UpdateConfiguration(ctx, draft); err != nil {
		metrics.Commands.WithLabelValues("configure", metrics.OutcomeError).Inc()
		c.logger.Error("Error configuring sensors", "num_sensors", draft.NumSensors, "frequency_hz", draft.FrequencyHz, "error", err)
		return fmt.Errorf("configure generator: %w", err)
	}
	metrics.Commands.WithLabelValues("configure", metrics.OutcomeOK).Inc()
	c.logger.Info("Generator configured", "num_sensors", draft.NumSensors, "frequency_hz", draft.FrequencyHz)
	return nil
}

var ErrUnknownSensor = errors.New("unknown sensor")

// InjectAnomaly asks the generator to perturb one sensor. Types outside the
// anomaly catalog are rejected before anything is sent.
func (c *Console) InjectAnomaly(ctx context.Context, sensorID, anomalyType string) error {
	if sensorID == "" {
		return fmt.Errorf("%w: empty sensor id", ErrUnknownSensor)
	}
	if err := anomaly.Validate(anomalyType); err != nil {
		return err
	}
	if err := c.commands.InjectAnomaly(ctx, sensorID, anomalyType); err != nil {
		metrics.Commands.WithLabelValues("inject_anomaly", metrics.OutcomeError).Inc()
		c.logger.Error("Error injecting anomaly", "sensor_id", sensorID, "anomaly_type", anomalyType, "error", err)
		return fmt.Errorf("inject anomaly: %w", err)
	}
	metrics.Commands.WithLabelValues("inject_anomaly", metrics.OutcomeOK).Inc()
	c.logger.Info("Anomaly injected", "sensor_id", sensorID, "anomaly_type", anomalyType)
	return nil
}
