// Package health is the health overview console: it polls the per-service
// health endpoints and the metrics endpoint on a fixed interval.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"iot-console/internal/config"
	"iot-console/internal/data"
	"iot-console/internal/metrics"
)

// Result is the outcome of one service fetch. Err is set when Data is the
// unhealthy fallback rather than the service's own answer.
type Result struct {
	Service string
	Data    data.HealthData
	Err     error
}

func (r Result) Fallback() bool { return r.Err != nil }

// Snapshot is a copy of the console state after a poll cycle.
type Snapshot struct {
	Health      map[string]data.HealthData `json:"health"`
	Metrics     data.Metrics               `json:"metrics"`
	LastUpdated time.Time                  `json:"lastUpdated"`
}

// Observer is notified after each applied poll cycle.
type Observer interface {
	OnHealth(s Snapshot)
}

type Poller struct {
	client     *http.Client
	healthURL  string
	metricsURL string
	services   []string
	interval   time.Duration
	observers  []Observer
	logger     *slog.Logger

	mu          sync.RWMutex
	health      map[string]data.HealthData
	metrics     data.Metrics
	lastUpdated time.Time
}

func NewPoller(cfg config.HealthConfig, client *http.Client, logger *slog.Logger, observers ...Observer) *Poller {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")

	services := ServiceNames()
	health := make(map[string]data.HealthData, len(services))
	for _, s := range services {
		health[s] = data.Unhealthy()
	}

	return &Poller{
		client:      client,
		healthURL:   base + cfg.HealthPath,
		metricsURL:  base + cfg.MetricsPath,
		services:    services,
		interval:    cfg.Interval,
		observers:   observers,
		logger:      logger,
		health:      health,
		lastUpdated: time.Now(),
	}
}

// Run polls once immediately and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

var errDiscarded = errors.New("poll cycle discarded")

// Poll runs one cycle. The four service fetches run concurrently and are
// applied together once all have settled; the metrics fetch is applied on its
// own. A cycle that completes after ctx is done is discarded.
func (p *Poller) Poll(ctx context.Context) (Snapshot, error) {
	start := time.Now()
	defer func() { metrics.PollDuration.Observe(time.Since(start).Seconds()) }()

	var wg sync.WaitGroup
	results := make([]Result, len(p.services))
	for i, svc := range p.services {
		wg.Add(1)
		go func(i int, svc string) {
			defer wg.Done()
			results[i] = p.fetchService(ctx, svc)
		}(i, svc)
	}

	var m *data.Metrics
	wg.Add(1)
	go func() {
		defer wg.Done()
		fetched, err := p.fetchMetrics(ctx)
		if err != nil {
			p.logger.Debug("Metrics not applied", "error", err)
			return
		}
		m = fetched
	}()
	wg.Wait()

	if ctx.Err() != nil {
		return Snapshot{}, errDiscarded
	}

	health := make(map[string]data.HealthData, len(results))
	for _, r := range results {
		if r.Fallback() {
			metrics.PollFallbacks.WithLabelValues(r.Service).Inc()
			p.logger.Warn("Health check failed", "service", r.Service, "error", r.Err)
		}
		health[r.Service] = r.Data
	}

	p.mu.Lock()
	p.health = health
	if m != nil {
		p.metrics = *m
	}
	p.lastUpdated = time.Now()
	p.mu.Unlock()

	snap := p.Snapshot()
	for _, o := range p.observers {
		o.OnHealth(snap)
	}
	return snap, nil
}

// fetchService never fails: any transport or decode error yields the
// unhealthy fallback.
func (p *Poller) fetchService(ctx context.Context, service string) Result {
	url := fmt.Sprintf("%s/%s", p.healthURL, service)
	var hd data.HealthData
	if err := p.getJSON(ctx, url, &hd); err != nil {
		return Result{Service: service, Data: data.Unhealthy(), Err: err}
	}
	return Result{Service: service, Data: hd}
}

// fetchMetrics only returns metrics for a 2xx response with a valid body.
func (p *Poller) fetchMetrics(ctx context.Context) (*data.Metrics, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.metricsURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", p.metricsURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("get %s: status %d", p.metricsURL, resp.StatusCode)
	}
	var m data.Metrics
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode metrics: %w", err)
	}
	return &m, nil
}

// getJSON decodes the body whatever the status code; a health endpoint that
// answers 503 with a JSON error body still yields a (statusless) answer.
func (p *Poller) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	health := make(map[string]data.HealthData, len(p.health))
	for k, v := range p.health {
		health[k] = v
	}
	return Snapshot{Health: health, Metrics: p.metrics, LastUpdated: p.lastUpdated}
}
