package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"iot-console/internal/config"
	"iot-console/internal/data"
)

// KafkaSource taps the generator's raw reading topic instead of its
// websocket. Records carry bare readings; they are wrapped as sensor_reading
// frames before reaching the Handler.
type KafkaSource struct {
	cfg    config.KafkaConfig
	logger *slog.Logger
}

func NewKafkaSource(cfg config.KafkaConfig, logger *slog.Logger) *KafkaSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaSource{cfg: cfg, logger: logger}
}

func (k *KafkaSource) Run(ctx context.Context, h Handler) error {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": k.cfg.Brokers,
		"group.id":          k.cfg.GroupID,
		"auto.offset.reset": "latest",
	})
	if err != nil {
		return fmt.Errorf("failed to create Kafka consumer: %w", err)
	}
	defer consumer.Close()

	if err := consumer.Subscribe(k.cfg.Topic, nil); err != nil {
		return fmt.Errorf("subscribe %s: %w", k.cfg.Topic, err)
	}

	h.HandleOpen()
	defer h.HandleClose()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, err := consumer.ReadMessage(100 * time.Millisecond)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			return fmt.Errorf("read %s: %w", k.cfg.Topic, err)
		}

		frame, ok, err := wrapRecord(msg.Value)
		if err != nil {
			k.logger.Warn("Discarding topic record", "topic", k.cfg.Topic, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if err := h.HandleMessage(frame); err != nil {
			k.logger.Warn("Discarding topic record", "topic", k.cfg.Topic, "error", err)
		}
	}
}

// wrapRecord turns a bare reading record into a stream frame. Records that
// are not readings (the generator's startup probe has no sensor_id) report
// ok=false.
func wrapRecord(value []byte) ([]byte, bool, error) {
	reading, err := data.ParseReading(value)
	if err != nil {
		return nil, false, err
	}
	if reading.SensorID == "" {
		return nil, false, nil
	}
	frame, err := json.Marshal(data.StreamMessage{Type: data.MessageSensorReading, Data: value})
	if err != nil {
		return nil, false, fmt.Errorf("wrap record: %w", err)
	}
	return frame, true, nil
}
