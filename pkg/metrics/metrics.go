// Package metrics exposes Prometheus counters for scenario runs and pushes them to a Pushgateway.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// JobName is the Pushgateway job the runner pushes under.
const JobName = "selenium-runner"

// Recorder collects run metrics. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry
	pusher   *push.Pusher

	attempts  *prometheus.CounterVec
	scenarios *prometheus.CounterVec
	retries   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	workers   prometheus.Gauge
	up        prometheus.Gauge
}

// New creates a Recorder with its own registry. When pushAddr is set,
// Push sends the metrics to that Pushgateway grouped by run ID.
func New(pushAddr, runID string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "selenium_runner_attempts_total",
			Help: "Scenario attempts by final attempt status.",
		}, []string{"scenario", "status"}),
		scenarios: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "selenium_runner_scenarios_total",
			Help: "Scenarios by authoritative outcome.",
		}, []string{"scenario", "status"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "selenium_runner_retries_total",
			Help: "Retries granted by the retry policy.",
		}, []string{"scenario"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "selenium_runner_scenario_duration_seconds",
			Help:    "Wall time of a scenario across all its attempts.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"scenario"}),
		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "selenium_runner_active_workers",
			Help: "Workers currently running a scenario.",
		}),
		up: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "selenium_runner_up",
			Help: "1 while a run is in progress.",
		}),
	}
	r.registry.MustRegister(r.attempts, r.scenarios, r.retries, r.duration, r.workers, r.up)

	if pushAddr != "" {
		r.pusher = push.New(pushAddr, JobName).Gatherer(r.registry)
		if runID != "" {
			r.pusher = r.pusher.Grouping("run_id", runID)
		}
	}
	return r
}

// Registry returns the registry holding the runner's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RunStarted marks the run as up.
func (r *Recorder) RunStarted() {
	if r == nil {
		return
	}
	r.up.Set(1)
}

// RunFinished marks the run as down.
func (r *Recorder) RunFinished() {
	if r == nil {
		return
	}
	r.up.Set(0)
}

// Attempt records one finished attempt.
func (r *Recorder) Attempt(scenario, status string) {
	if r == nil {
		return
	}
	r.attempts.WithLabelValues(scenario, status).Inc()
}

// Retry records a granted retry.
func (r *Recorder) Retry(scenario string) {
	if r == nil {
		return
	}
	r.retries.WithLabelValues(scenario).Inc()
}

// Scenario records the authoritative outcome of a scenario and its wall time.
func (r *Recorder) Scenario(scenario, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.scenarios.WithLabelValues(scenario, status).Inc()
	r.duration.WithLabelValues(scenario).Observe(d.Seconds())
}

// WorkerBusy adjusts the active worker gauge by delta.
func (r *Recorder) WorkerBusy(delta int) {
	if r == nil {
		return
	}
	r.workers.Add(float64(delta))
}

// Push sends the current values to the Pushgateway. It is a no-op without a push address.
func (r *Recorder) Push() error {
	if r == nil || r.pusher == nil {
		return nil
	}
	if err := r.pusher.Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
