package storage

import (
	"fmt"
	"sync"
	"testing"

	"iot-console/internal/data"
)

func TestReadingStoreLastWriteWins(t *testing.T) {
	s := NewReadingStore()
	s.Put(data.SensorReading{SensorID: "sensor_1", Temperature: 70})
	s.Put(data.SensorReading{SensorID: "sensor_2", Temperature: 60})
	s.Put(data.SensorReading{SensorID: "sensor_1", Temperature: 75, Timestamp: 1})
	// An older timestamp still overwrites.
	s.Put(data.SensorReading{SensorID: "sensor_2", Temperature: 61, Timestamp: -5})

	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if r, _ := s.Get("sensor_1"); r.Temperature != 75 {
		t.Errorf("sensor_1 temperature = %v, want 75", r.Temperature)
	}
	if r, _ := s.Get("sensor_2"); r.Temperature != 61 {
		t.Errorf("sensor_2 temperature = %v, want 61", r.Temperature)
	}
	if _, ok := s.Get("sensor_9"); ok {
		t.Error("unexpected reading for sensor_9")
	}
}

func TestReadingStoreAllSorted(t *testing.T) {
	s := NewReadingStore()
	for _, id := range []string{"c", "a", "b"} {
		s.Put(data.SensorReading{SensorID: id})
	}
	all := s.All()
	got := fmt.Sprint(all[0].SensorID, all[1].SensorID, all[2].SensorID)
	if got != "abc" {
		t.Errorf("All() order = %s, want abc", got)
	}
}

func TestReadingStoreConcurrent(t *testing.T) {
	s := NewReadingStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Put(data.SensorReading{SensorID: fmt.Sprintf("sensor_%d", i), Temperature: float64(j)})
				_ = s.All()
			}
		}(i)
	}
	wg.Wait()
	for i := 0; i < 8; i++ {
		r, ok := s.Get(fmt.Sprintf("sensor_%d", i))
		if !ok || r.Temperature != 99 {
			t.Errorf("sensor_%d = %+v, %v", i, r, ok)
		}
	}
}

func TestAlertLogBounded(t *testing.T) {
	l := NewAlertLog(3)
	for i := 0; i < 5; i++ {
		l.Add(data.Alert{Message: fmt.Sprint(i)})
	}
	all := l.Recent(0)
	if len(all) != 3 {
		t.Fatalf("Recent(0) len = %d, want 3", len(all))
	}
	if all[0].Message != "2" || all[2].Message != "4" {
		t.Errorf("unexpected alerts: %+v", all)
	}
	if last := l.Recent(1); len(last) != 1 || last[0].Message != "4" {
		t.Errorf("Recent(1) = %+v", last)
	}
}
