package health

import (
	"testing"
	"time"

	"iot-console/internal/data"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		status data.HealthStatus
		want   Class
		color  string
	}{
		{"healthy", Healthy, "green"},
		{"degraded", Degraded, "yellow"},
		{"unhealthy", Unhealthy, "red"},
		{"", Unhealthy, "red"},
		{"Healthy", Unhealthy, "red"},
		{"down", Unhealthy, "red"},
	}
	for _, tt := range tests {
		got := Classify(tt.status)
		if got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.status, got, tt.want)
		}
		if got.Color() != tt.color {
			t.Errorf("Classify(%q).Color() = %s, want %s", tt.status, got.Color(), tt.color)
		}
	}
}

func TestFormatterNumber(t *testing.T) {
	f := NewFormatter("en")
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{42, "42"},
		{1234567, "1,234,567"},
		{12345.5, "12,345.5"},
		{2.34567, "2.346"},
	}
	for _, tt := range tests {
		if got := f.Number(tt.in); got != tt.want {
			t.Errorf("Number(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatterRowsFixedOrder(t *testing.T) {
	f := NewFormatter("en")
	rows := f.Rows(map[string]data.HealthData{
		"sensors": {Status: data.StatusHealthy},
		"kafka":   {Status: data.StatusDegraded},
	})

	want := []Row{
		{Name: "kafka", Title: "Kafka", Icon: "message-square", Class: Degraded},
		{Name: "timescaledb", Title: "Timescaledb", Icon: "database", Class: Unhealthy},
		{Name: "flink", Title: "Flink", Icon: "activity", Class: Unhealthy},
		{Name: "sensors", Title: "Sensors", Icon: "server", Class: Healthy},
	}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows", len(rows))
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("rows[%d] = %+v, want %+v", i, rows[i], want[i])
		}
	}
}

func TestFormatterTiles(t *testing.T) {
	f := NewFormatter("bogus locale!")
	tiles := f.Tiles(data.Metrics{SensorCount: 12, MessageRate: 1500.25, ProcessingLatency: 38, Alerts: 2})

	want := []Tile{
		{Title: "Active Sensors", Value: "12", Style: "blue"},
		{Title: "Messages/sec", Value: "1,500.25", Unit: "msg/s", Style: "green"},
		{Title: "Processing Latency", Value: "38", Unit: "ms", Style: "purple"},
		{Title: "Active Alerts", Value: "2", Style: "red"},
	}
	for i := range want {
		if tiles[i] != want[i] {
			t.Errorf("tiles[%d] = %+v, want %+v", i, tiles[i], want[i])
		}
	}
}

func TestOverviewLastUpdated(t *testing.T) {
	f := NewFormatter("en")
	ts := time.Date(2024, 3, 1, 14, 5, 9, 0, time.UTC)
	o := f.Overview(Snapshot{LastUpdated: ts})
	if o.LastUpdated != "14:05:09" {
		t.Errorf("LastUpdated = %s", o.LastUpdated)
	}
	if len(o.Rows) != 4 || len(o.Tiles) != 4 {
		t.Errorf("overview = %+v", o)
	}
}
