package health

import (
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"iot-console/internal/data"
)

// Service is one backing service shown on the overview, in display order.
type Service struct {
	Name string
	Icon string
}

var Services = []Service{
	{Name: "kafka", Icon: "message-square"},
	{Name: "timescaledb", Icon: "database"},
	{Name: "flink", Icon: "activity"},
	{Name: "sensors", Icon: "server"},
}

func ServiceNames() []string {
	names := make([]string, len(Services))
	for i, s := range Services {
		names[i] = s.Name
	}
	return names
}

// Class is the rendered state of a service.
type Class string

const (
	Healthy   Class = "healthy"
	Degraded  Class = "degraded"
	Unhealthy Class = "unhealthy"
)

// Color is the indicator color for the class.
func (c Class) Color() string {
	switch c {
	case Healthy:
		return "green"
	case Degraded:
		return "yellow"
	default:
		return "red"
	}
}

// Classify maps a reported status to a class. Only the exact strings
// "healthy" and "degraded" are recognised; anything else is unhealthy.
func Classify(status data.HealthStatus) Class {
	switch status {
	case data.StatusHealthy:
		return Healthy
	case data.StatusDegraded:
		return Degraded
	default:
		return Unhealthy
	}
}

// Row is one service line on the overview.
type Row struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Icon  string `json:"icon"`
	Class Class  `json:"class"`
}

// Tile is one metric tile.
type Tile struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
	Style string `json:"style"`
}

// Overview is the template data for the health page.
type Overview struct {
	Rows        []Row  `json:"rows"`
	Tiles       []Tile `json:"tiles"`
	LastUpdated string `json:"lastUpdated"`
}

// Formatter renders overview values for one locale. The underlying printer
// and caser are stateful, so calls are serialized.
type Formatter struct {
	mu      sync.Mutex
	printer *message.Printer
	title   cases.Caser
}

func NewFormatter(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Formatter{
		printer: message.NewPrinter(tag),
		title:   cases.Title(tag),
	}
}

// Number formats v with the locale's grouping separators and at most three
// fraction digits.
func (f *Formatter) Number(v float64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.printer.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(3)))
}

func (f *Formatter) Rows(health map[string]data.HealthData) []Row {
	rows := make([]Row, len(Services))
	for i, s := range Services {
		// A missing entry classifies as unhealthy.
		hd := health[s.Name]
		rows[i] = Row{
			Name:  s.Name,
			Title: f.titleCase(s.Name),
			Icon:  s.Icon,
			Class: Classify(hd.Status),
		}
	}
	return rows
}

func (f *Formatter) titleCase(s string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.title.String(s)
}

func (f *Formatter) Tiles(m data.Metrics) []Tile {
	return []Tile{
		{Title: "Active Sensors", Value: f.Number(m.SensorCount), Style: "blue"},
		{Title: "Messages/sec", Value: f.Number(m.MessageRate), Unit: "msg/s", Style: "green"},
		{Title: "Processing Latency", Value: f.Number(m.ProcessingLatency), Unit: "ms", Style: "purple"},
		{Title: "Active Alerts", Value: f.Number(m.Alerts), Style: "red"},
	}
}

func (f *Formatter) Overview(s Snapshot) Overview {
	return Overview{
		Rows:        f.Rows(s.Health),
		Tiles:       f.Tiles(s.Metrics),
		LastUpdated: s.LastUpdated.Format("15:04:05"),
	}
}
