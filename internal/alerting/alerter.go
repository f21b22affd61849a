// internal/alerting/alerter.go
package alerting

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"iot-console/internal/anomaly"
	"iot-console/internal/data"
	"iot-console/internal/health"
	"iot-console/internal/metrics"
	"iot-console/internal/storage"
	"iot-console/internal/websocket"
)

// Broadcaster pushes a typed frame to dashboard clients.
type Broadcaster interface {
	Broadcast(msgType string, payload any)
}

type sensorFlags struct {
	anomaly     bool
	maintenance bool
}

// Alerter turns state changes into alerts: a sensor entering the anomaly
// state or needing maintenance, a metric outside its configured range, or a
// backing service leaving the healthy class.
type Alerter struct {
	hub      Broadcaster
	log      *storage.AlertLog
	detector *anomaly.Detector
	logger   *slog.Logger

	mu       sync.Mutex
	sensors  map[string]sensorFlags
	services map[string]health.Class
}

func NewAlerter(hub Broadcaster, log *storage.AlertLog, detector *anomaly.Detector, logger *slog.Logger) *Alerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Alerter{
		hub:      hub,
		log:      log,
		detector: detector,
		logger:   logger,
		sensors:  make(map[string]sensorFlags),
		services: make(map[string]health.Class),
	}
}

// CheckReading returns the alerts raised by one reading. Flag alerts fire
// only on the transition, not on every reading while the flag stays set.
func (a *Alerter) CheckReading(r data.SensorReading) []data.Alert {
	now := flags(r)

	a.mu.Lock()
	prev := a.sensors[r.SensorID]
	a.sensors[r.SensorID] = now
	a.mu.Unlock()

	var alerts []data.Alert
	if now.anomaly && !prev.anomaly {
		alerts = append(alerts, data.Alert{
			Timestamp: time.Now(),
			Severity:  "CRITICAL",
			Message:   fmt.Sprintf("%s entered anomaly state", r.SensorID),
			DeviceID:  r.SensorID,
		})
	}
	if now.maintenance && !prev.maintenance {
		alerts = append(alerts, data.Alert{
			Timestamp: time.Now(),
			Severity:  "WARN",
			Message:   fmt.Sprintf("%s needs maintenance", r.SensorID),
			DeviceID:  r.SensorID,
		})
	}
	if a.detector != nil {
		alerts = append(alerts, a.detector.Check(&r)...)
	}
	return alerts
}

func flags(r data.SensorReading) sensorFlags {
	return sensorFlags{
		anomaly:     r.OperationalState == data.StateAnomaly,
		maintenance: r.MaintenanceNeeded,
	}
}

// CheckHealth returns an alert for every service whose class changed to
// degraded or unhealthy since the previous cycle.
func (a *Alerter) CheckHealth(s health.Snapshot) []data.Alert {
	a.mu.Lock()
	defer a.mu.Unlock()

	var alerts []data.Alert
	for _, svc := range health.Services {
		class := health.Classify(s.Health[svc.Name].Status)
		prev, seen := a.services[svc.Name]
		a.services[svc.Name] = class
		if class == health.Healthy || (seen && prev == class) {
			continue
		}
		severity := "CRITICAL"
		if class == health.Degraded {
			severity = "WARN"
		}
		alerts = append(alerts, data.Alert{
			Timestamp: s.LastUpdated,
			Severity:  severity,
			Message:   fmt.Sprintf("%s is %s", svc.Name, class),
			Metric:    svc.Name,
		})
	}
	return alerts
}

// ProcessAlerts records alerts and sends them via configured channels
// (currently the dashboard websocket).
func (a *Alerter) ProcessAlerts(alerts []data.Alert) {
	for _, alert := range alerts {
		metrics.Alerts.WithLabelValues(alert.Severity).Inc()
		a.logger.Warn("Alert", "severity", alert.Severity, "message", alert.Message)
		if a.log != nil {
			a.log.Add(alert)
		}
		if a.hub != nil {
			a.hub.Broadcast(websocket.TypeAlert, alert)
		}
	}
}

// Recent returns the newest recorded alerts.
func (a *Alerter) Recent(count int) []data.Alert {
	if a.log == nil {
		return nil
	}
	return a.log.Recent(count)
}
