package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"iot-console/internal/config"
	"iot-console/internal/data"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type healthAPI struct {
	mu            sync.Mutex
	responses     map[string]func(w http.ResponseWriter)
	metricsStatus int
	metricsBody   string
	metricsCalls  int32
}

func (h *healthAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/metrics" {
		atomic.AddInt32(&h.metricsCalls, 1)
		h.mu.Lock()
		status, body := h.metricsStatus, h.metricsBody
		h.mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, body)
		return
	}
	name := r.URL.Path[len("/api/health/"):]
	h.mu.Lock()
	respond, ok := h.responses[name]
	h.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	respond(w)
}

func (h *healthAPI) setMetrics(status int, body string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metricsStatus, h.metricsBody = status, body
}

func jsonBody(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

// dropConnection closes the TCP connection without a response.
func dropConnection(w http.ResponseWriter) {
	conn, _, err := w.(http.Hijacker).Hijack()
	if err == nil {
		conn.Close()
	}
}

func newTestPoller(t *testing.T, api *healthAPI, observers ...Observer) *Poller {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	cfg := config.HealthConfig{
		BaseURL:     srv.URL,
		HealthPath:  "/api/health",
		MetricsPath: "/api/metrics",
		Interval:    20 * time.Millisecond,
		Timeout:     2 * time.Second,
	}
	return NewPoller(cfg, nil, quietLogger(), observers...)
}

func allHealthy() map[string]func(w http.ResponseWriter) {
	return map[string]func(w http.ResponseWriter){
		"kafka":       jsonBody(200, `{"status":"healthy","topics":3}`),
		"timescaledb": jsonBody(200, `{"status":"healthy","active_sensors":5}`),
		"flink":       jsonBody(200, `{"status":"healthy","details":{"jobs":[]}}`),
		"sensors":     jsonBody(200, `{"status":"healthy"}`),
	}
}

func TestNewPollerStartsUnhealthy(t *testing.T) {
	p := newTestPoller(t, &healthAPI{})
	snap := p.Snapshot()
	if len(snap.Health) != 4 {
		t.Fatalf("initial mapping has %d services", len(snap.Health))
	}
	for name, hd := range snap.Health {
		if hd.Status != data.StatusUnhealthy {
			t.Errorf("%s initial status = %q", name, hd.Status)
		}
	}
	if snap.Metrics != (data.Metrics{}) {
		t.Errorf("initial metrics = %+v", snap.Metrics)
	}
}

func TestPollOneFailureDoesNotBlockOthers(t *testing.T) {
	tests := []struct {
		name    string
		failing func(w http.ResponseWriter)
	}{
		{"network error", dropConnection},
		{"non json body", func(w http.ResponseWriter) { io.WriteString(w, "<html>bad gateway</html>") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			responses := allHealthy()
			responses["timescaledb"] = jsonBody(200, `{"status":"degraded"}`)
			responses["flink"] = tt.failing
			p := newTestPoller(t, &healthAPI{responses: responses, metricsStatus: 200, metricsBody: `{}`})

			snap, err := p.Poll(context.Background())
			if err != nil {
				t.Fatalf("Poll() error = %v", err)
			}
			want := map[string]data.HealthStatus{
				"kafka":       data.StatusHealthy,
				"timescaledb": data.StatusDegraded,
				"flink":       data.StatusUnhealthy,
				"sensors":     data.StatusHealthy,
			}
			for name, status := range want {
				if got := snap.Health[name].Status; got != status {
					t.Errorf("%s status = %q, want %q", name, got, status)
				}
			}
		})
	}
}

func TestPollKeepsDetailsOpaque(t *testing.T) {
	p := newTestPoller(t, &healthAPI{responses: allHealthy(), metricsStatus: 200, metricsBody: `{}`})
	snap, err := p.Poll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := string(snap.Health["flink"].Details); got != `{"jobs":[]}` {
		t.Errorf("flink details = %s", got)
	}
	if snap.Health["sensors"].Details != nil {
		t.Errorf("sensors details = %s, want none", snap.Health["sensors"].Details)
	}
}

func TestPoll503WithErrorBodyIsUnhealthy(t *testing.T) {
	responses := allHealthy()
	responses["kafka"] = jsonBody(503, `{"detail":"NoBrokersAvailable"}`)
	p := newTestPoller(t, &healthAPI{responses: responses, metricsStatus: 200, metricsBody: `{}`})

	snap, _ := p.Poll(context.Background())
	if got := Classify(snap.Health["kafka"].Status); got != Unhealthy {
		t.Errorf("kafka class = %s, want unhealthy", got)
	}
}

func TestPollMetricsKeptOnFailure(t *testing.T) {
	api := &healthAPI{
		responses:     allHealthy(),
		metricsStatus: 200,
		metricsBody:   `{"sensorCount":5,"messageRate":12.5,"processingLatency":40,"alerts":1}`,
	}
	p := newTestPoller(t, api)

	if _, err := p.Poll(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := data.Metrics{SensorCount: 5, MessageRate: 12.5, ProcessingLatency: 40, Alerts: 1}
	if got := p.Snapshot().Metrics; got != want {
		t.Fatalf("metrics = %+v, want %+v", got, want)
	}

	api.setMetrics(503, `{"detail":"Metrics collection failed"}`)
	p.Poll(context.Background())
	if got := p.Snapshot().Metrics; got != want {
		t.Errorf("metrics after 503 = %+v, want unchanged %+v", got, want)
	}

	api.setMetrics(200, `not json`)
	p.Poll(context.Background())
	if got := p.Snapshot().Metrics; got != want {
		t.Errorf("metrics after bad body = %+v, want unchanged %+v", got, want)
	}
}

func TestPollMetricsInitialZeroOnFailure(t *testing.T) {
	p := newTestPoller(t, &healthAPI{responses: allHealthy(), metricsStatus: 500, metricsBody: `oops`})
	p.Poll(context.Background())
	if got := p.Snapshot().Metrics; got != (data.Metrics{}) {
		t.Errorf("metrics = %+v, want zero value", got)
	}
}

func TestPollUpdatesLastUpdatedDespiteFailures(t *testing.T) {
	responses := allHealthy()
	responses["sensors"] = dropConnection
	p := newTestPoller(t, &healthAPI{responses: responses, metricsStatus: 500})

	before := p.Snapshot().LastUpdated
	time.Sleep(2 * time.Millisecond)
	snap, err := p.Poll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !snap.LastUpdated.After(before) {
		t.Errorf("LastUpdated %v not after %v", snap.LastUpdated, before)
	}
}

func TestPollDiscardedAfterCancel(t *testing.T) {
	p := newTestPoller(t, &healthAPI{responses: allHealthy(), metricsStatus: 200, metricsBody: `{"sensorCount":9}`})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Poll(ctx); !errors.Is(err, errDiscarded) {
		t.Fatalf("Poll() error = %v, want errDiscarded", err)
	}
	snap := p.Snapshot()
	if snap.Health["kafka"].Status != data.StatusUnhealthy || snap.Metrics.SensorCount != 0 {
		t.Errorf("state changed after cancel: %+v", snap)
	}
}

type snapshotRecorder struct {
	count int32
}

func (s *snapshotRecorder) OnHealth(Snapshot) { atomic.AddInt32(&s.count, 1) }

func TestRunPollsImmediatelyAndRepeats(t *testing.T) {
	api := &healthAPI{responses: allHealthy(), metricsStatus: 200, metricsBody: `{}`}
	rec := &snapshotRecorder{}
	p := newTestPoller(t, api, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for atomic.LoadInt32(&rec.count) < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d cycles applied", atomic.LoadInt32(&rec.count))
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if p.Snapshot().Health["kafka"].Status != data.StatusHealthy {
		t.Error("expected kafka healthy after polling")
	}
}
