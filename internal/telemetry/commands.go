package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"iot-console/internal/config"
	"iot-console/internal/data"
)

// StatusError is returned when the generator answers a command with a
// non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s returned %d: %s", e.URL, e.StatusCode, e.Body)
}

// CommandClient posts operator commands to the sensor generator.
type CommandClient struct {
	client       *http.Client
	configureURL string
	anomalyURL   string
}

func NewCommandClient(cfg config.GeneratorConfig, client *http.Client) *CommandClient {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	return &CommandClient{
		client:       client,
		configureURL: base + cfg.ConfigurePath,
		anomalyURL:   base + cfg.AnomalyPath,
	}
}

// UpdateConfiguration sends one configure command with the given draft.
func (c *CommandClient) UpdateConfiguration(ctx context.Context, cfg data.Configuration) error {
	return c.postJSON(ctx, c.configureURL, cfg)
}

// InjectAnomaly sends one anomaly injection for a single sensor.
func (c *CommandClient) InjectAnomaly(ctx context.Context, sensorID, anomalyType string) error {
	return c.postJSON(ctx, c.anomalyURL, data.AnomalyRequest{
		SensorIDs:   []string{sensorID},
		AnomalyType: anomalyType,
	})
}

func (c *CommandClient) postJSON(ctx context.Context, url string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{URL: url, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
