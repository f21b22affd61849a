package api

import (
	"iot-console/internal/alerting"
	"iot-console/internal/data"
	"iot-console/internal/health"
	"iot-console/internal/telemetry"
	"iot-console/internal/websocket"
)

// Feed forwards console state changes to dashboard clients and to the
// alerter. It observes both the telemetry console and the health poller.
type Feed struct {
	hub       alerting.Broadcaster
	alerter   *alerting.Alerter
	formatter *health.Formatter
}

func NewFeed(hub alerting.Broadcaster, alerter *alerting.Alerter, formatter *health.Formatter) *Feed {
	return &Feed{hub: hub, alerter: alerter, formatter: formatter}
}

func (f *Feed) OnReading(r data.SensorReading) {
	f.hub.Broadcast(websocket.TypeReading, telemetry.NewCard(r))
	if f.alerter != nil {
		f.alerter.ProcessAlerts(f.alerter.CheckReading(r))
	}
}

func (f *Feed) OnConnection(connected bool) {
	f.hub.Broadcast(websocket.TypeConnection, connectionPayload{Connected: connected})
}

func (f *Feed) OnHealth(s health.Snapshot) {
	f.hub.Broadcast(websocket.TypeHealth, f.formatter.Overview(s))
	if f.alerter != nil {
		f.alerter.ProcessAlerts(f.alerter.CheckHealth(s))
	}
}
