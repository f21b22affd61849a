// internal/storage/memory.go
package storage

import (
	"sort"
	"sync"

	"iot-console/internal/data"
)

// ReadingStore keeps the latest reading per sensor. Writes are last-write-wins
// per sensor id; out-of-order timestamps are not checked.
type ReadingStore struct {
	mu       sync.RWMutex
	readings map[string]data.SensorReading
}

func NewReadingStore() *ReadingStore {
	return &ReadingStore{readings: make(map[string]data.SensorReading)}
}

func (s *ReadingStore) Put(r data.SensorReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings[r.SensorID] = r
}

func (s *ReadingStore) Get(sensorID string) (data.SensorReading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.readings[sensorID]
	return r, ok
}

// All returns a copy of the latest readings ordered by sensor id.
func (s *ReadingStore) All() []data.SensorReading {
	s.mu.RLock()
	result := make([]data.SensorReading, 0, len(s.readings))
	for _, r := range s.readings {
		result = append(result, r)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].SensorID < result[j].SensorID })
	return result
}

func (s *ReadingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.readings)
}

const maxAlerts = 100 // Keep the last 100 alerts

// AlertLog is a bounded buffer of recent alerts, oldest first.
type AlertLog struct {
	mu       sync.RWMutex
	buffer   []data.Alert
	capacity int
}

func NewAlertLog(capacity int) *AlertLog {
	if capacity <= 0 {
		capacity = maxAlerts
	}
	return &AlertLog{
		buffer:   make([]data.Alert, 0, capacity),
		capacity: capacity,
	}
}

func (l *AlertLog) Add(a data.Alert) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.buffer) >= l.capacity {
		// Remove the oldest element
		l.buffer = l.buffer[1:]
	}
	l.buffer = append(l.buffer, a)
}

// Recent returns up to count of the newest alerts. count <= 0 means all.
func (l *AlertLog) Recent(count int) []data.Alert {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if count <= 0 || count > len(l.buffer) {
		count = len(l.buffer)
	}
	result := make([]data.Alert, count)
	copy(result, l.buffer[len(l.buffer)-count:])
	return result
}
