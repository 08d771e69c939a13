// Package metrics records iteration telemetry as Prometheus metrics and a
// thread-safe in-memory snapshot, and optionally serves them over HTTP.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements monitor.Metrics. Its Prometheus vectors are always
// registered and updated; the HTTP exporter is only started when Serve is
// called, so a caller that never wires --metrics-port still gets an
// in-process Snapshot.
type Collector struct {
	fetchAttempts  *prometheus.CounterVec
	fetchSuccesses *prometheus.CounterVec
	fetchFailures  *prometheus.CounterVec
	retries        *prometheus.CounterVec
	iterationSecs  prometheus.Histogram
	newEvents      prometheus.Counter
	snapshotsSaved prometheus.Counter

	mu       sync.Mutex
	snapshot map[string]float64
}

// New creates a Collector and registers its metrics with reg. A nil reg
// registers against prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		fetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trendmonitor",
			Subsystem: "fetch",
			Name:      "attempts_total",
			Help:      "Total number of source fetch attempts, including retries.",
		}, []string{"source"}),
		fetchSuccesses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trendmonitor",
			Subsystem: "fetch",
			Name:      "successes_total",
			Help:      "Total number of successful source fetches.",
		}, []string{"source", "not_modified"}),
		fetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trendmonitor",
			Subsystem: "fetch",
			Name:      "failures_total",
			Help:      "Total number of source fetches that exhausted all retries.",
		}, []string{"source"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trendmonitor",
			Subsystem: "fetch",
			Name:      "retries_total",
			Help:      "Total number of retry attempts issued after a transient fetch error.",
		}, []string{"source"}),
		iterationSecs: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "trendmonitor",
			Subsystem: "monitor",
			Name:      "iteration_duration_seconds",
			Help:      "Wall-clock duration of one polling iteration.",
			Buckets:   prometheus.DefBuckets,
		}),
		newEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trendmonitor",
			Subsystem: "monitor",
			Name:      "new_events_total",
			Help:      "Total number of items admitted past dedup in any iteration.",
		}),
		snapshotsSaved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trendmonitor",
			Subsystem: "monitor",
			Name:      "snapshots_saved_total",
			Help:      "Total number of scored iterations persisted to storage.",
		}),
		snapshot: make(map[string]float64),
	}
	return c
}

func (c *Collector) bump(key string, delta float64) {
	c.mu.Lock()
	c.snapshot[key] += delta
	c.mu.Unlock()
}

func (c *Collector) RecordFetchAttempt(sourceName string) {
	c.fetchAttempts.WithLabelValues(sourceName).Inc()
	c.bump("fetch_attempts_total", 1)
}

func (c *Collector) RecordFetchSuccess(sourceName string, notModified bool) {
	c.fetchSuccesses.WithLabelValues(sourceName, boolLabel(notModified)).Inc()
	c.bump("fetch_successes_total", 1)
}

func (c *Collector) RecordFetchFailure(sourceName string) {
	c.fetchFailures.WithLabelValues(sourceName).Inc()
	c.bump("fetch_failures_total", 1)
}

func (c *Collector) RecordRetry(sourceName string) {
	c.retries.WithLabelValues(sourceName).Inc()
	c.bump("retries_total", 1)
}

func (c *Collector) RecordIterationDuration(seconds float64) {
	c.iterationSecs.Observe(seconds)
	c.mu.Lock()
	c.snapshot["last_iteration_duration_seconds"] = seconds
	c.mu.Unlock()
}

func (c *Collector) RecordNewEvents(count int) {
	if count > 0 {
		c.newEvents.Add(float64(count))
	}
	c.bump("new_events_total", float64(count))
}

func (c *Collector) RecordSnapshotSaved() {
	c.snapshotsSaved.Inc()
	c.bump("snapshots_saved_total", 1)
}

// Snapshot returns a copy of the in-memory counters, independent of whether
// the Prometheus exporter is running.
func (c *Collector) Snapshot() map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]float64, len(c.snapshot))
	for k, v := range c.snapshot {
		out[k] = v
	}
	return out
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Serve starts an HTTP server exposing /metrics on addr and blocks until ctx
// is cancelled or the server fails. Intended to be run in its own goroutine.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) error {
	var handler http.Handler
	if reg != nil {
		handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	} else {
		handler = promhttp.Handler()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics: shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("metrics: serve %s: %w", addr, err)
		}
		return nil
	}
}
