// Package monitor orchestrates one polling iteration: bounded concurrent
// fetch with retry-backoff, dual-key dedup with TTL, sliding-window
// retention, scoring, and snapshot persistence.
package monitor

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/snapetech/trendmonitor/internal/analysis"
	"github.com/snapetech/trendmonitor/internal/httpclient"
	"github.com/snapetech/trendmonitor/internal/source"
)

// Event is a bookkeeping record in the sliding window.
type Event struct {
	Source      string
	Item        source.Item
	Fingerprint string
	SeenAt      time.Time
}

// Store persists a scored iteration. Implemented by internal/store.
type Store interface {
	Save(ctx context.Context, trends []analysis.Trend, generatedAt time.Time) error
}

// Metrics receives iteration telemetry. Implemented by internal/metrics.
type Metrics interface {
	RecordFetchAttempt(sourceName string)
	RecordFetchSuccess(sourceName string, notModified bool)
	RecordFetchFailure(sourceName string)
	RecordRetry(sourceName string)
	RecordIterationDuration(seconds float64)
	RecordNewEvents(count int)
	RecordSnapshotSaved()
}

type noopMetrics struct{}

func (noopMetrics) RecordFetchAttempt(string)             {}
func (noopMetrics) RecordFetchSuccess(string, bool)       {}
func (noopMetrics) RecordFetchFailure(string)             {}
func (noopMetrics) RecordRetry(string)                    {}
func (noopMetrics) RecordIterationDuration(float64)       {}
func (noopMetrics) RecordNewEvents(int)                   {}
func (noopMetrics) RecordSnapshotSaved()                  {}

// Entry pairs a Source with the retry tunables drawn from its Config.
type Entry struct {
	Source       source.Source
	MaxRetries   int
	RetryBackoff float64 // base seconds
}

// Options configures a Monitor. Zero values of the tunables fall back to
// defaults, except MinScore (zero means no threshold) and DecayHours (zero
// means no decay).
type Options struct {
	Retention          time.Duration
	DecayHours         float64
	MinScore           float64
	TopK               int
	Store              Store
	Metrics            Metrics
	FetchConcurrency   int
	FetchRetryAttempts int
	FetchRetryBackoff  float64
	DedupTTL           time.Duration
	TitleWeight        float64
	SummaryWeight      float64
}

// Monitor runs iterations serially; it is not safe for concurrent Update
// calls (see design notes: the event buffer and dedup maps are unlocked).
type Monitor struct {
	entries []Entry
	opts    Options

	events     []Event
	seenByID   map[string]time.Time
	seenByFP   map[string]time.Time
}

func New(entries []Entry, opts Options) *Monitor {
	if opts.Retention <= 0 {
		opts.Retention = 12 * time.Hour
	}
	if opts.TopK <= 0 {
		opts.TopK = 20
	}
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = 5
	}
	if opts.FetchRetryAttempts <= 0 {
		opts.FetchRetryAttempts = 3
	}
	if opts.FetchRetryBackoff <= 0 {
		opts.FetchRetryBackoff = 2.0
	}
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = opts.Retention
	}
	if opts.TitleWeight == 0 {
		opts.TitleWeight = 1.0
	}
	if opts.SummaryWeight == 0 {
		opts.SummaryWeight = 0.6
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	return &Monitor{
		entries:  entries,
		opts:     opts,
		seenByID: make(map[string]time.Time),
		seenByFP: make(map[string]time.Time),
	}
}

type fetchOutcome struct {
	index  int
	name   string
	result source.FetchResult
	err    error
}

// Update runs one iteration: fan out fetches, admit new items, prune and
// sweep, score, and persist. The run ID is attached to every log line so a
// multi-line iteration's output can be correlated.
func (m *Monitor) Update(ctx context.Context) ([]analysis.Trend, error) {
	runID := uuid.New().String()[:8]
	now := time.Now().UTC()
	start := time.Now()

	outcomes := m.fetchAll(ctx, runID)

	newEvents := 0
	for _, o := range outcomes {
		if o.err != nil {
			continue
		}
		for _, item := range o.result.Items {
			if m.admit(item, now) {
				m.events = append(m.events, Event{
					Source:      o.name,
					Item:        item,
					Fingerprint: item.Fingerprint(),
					SeenAt:      now,
				})
				newEvents++
			}
		}
	}
	m.opts.Metrics.RecordNewEvents(newEvents)

	m.prune(now)
	m.sweepDedup(now)

	items := make([]source.Item, 0, len(m.events))
	for _, e := range m.events {
		items = append(items, e.Item)
	}
	trends := analysis.ScoreTrends(items, now, m.opts.DecayHours, m.opts.TitleWeight, m.opts.SummaryWeight)

	filtered := make([]analysis.Trend, 0, m.opts.TopK)
	for _, t := range trends {
		if t.Score < m.opts.MinScore {
			continue
		}
		filtered = append(filtered, t)
		if len(filtered) >= m.opts.TopK {
			break
		}
	}

	if m.opts.Store != nil {
		if err := m.opts.Store.Save(ctx, filtered, now); err != nil {
			log.Printf("monitor[%s]: snapshot save failed: %v", runID, err)
		} else {
			m.opts.Metrics.RecordSnapshotSaved()
		}
	}

	m.opts.Metrics.RecordIterationDuration(time.Since(start).Seconds())
	return filtered, nil
}

// fetchAll fans out one fetch task per source under a bounded concurrency
// semaphore, retrying each source up to its configured attempt count with
// jittered exponential backoff on SourceError.
func (m *Monitor) fetchAll(ctx context.Context, runID string) []fetchOutcome {
	sem := make(chan struct{}, m.opts.FetchConcurrency)
	var wg sync.WaitGroup
	outcomes := make([]fetchOutcome, len(m.entries))

	for i, entry := range m.entries {
		wg.Add(1)
		go func(idx int, e Entry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[idx] = m.fetchWithRetry(ctx, idx, e, runID)
		}(i, entry)
	}
	wg.Wait()
	return outcomes
}

func (m *Monitor) fetchWithRetry(ctx context.Context, idx int, e Entry, runID string) fetchOutcome {
	attempts := e.MaxRetries
	if attempts <= 0 {
		attempts = m.opts.FetchRetryAttempts
	}
	backoff := e.RetryBackoff
	if backoff <= 0 {
		backoff = m.opts.FetchRetryBackoff
	}

	name := e.Source.Name()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		m.opts.Metrics.RecordFetchAttempt(name)
		result, err := e.Source.Fetch(ctx)
		if err == nil {
			m.opts.Metrics.RecordFetchSuccess(name, result.NotModified)
			return fetchOutcome{index: idx, name: name, result: result}
		}
		lastErr = err
		if _, ok := err.(*httpclient.SourceError); !ok {
			break
		}
		if attempt == attempts {
			log.Printf("monitor[%s]: %s: %v (attempt %d/%d, giving up)", runID, name, err, attempt, attempts)
			m.opts.Metrics.RecordFetchFailure(name)
			break
		}
		delay := backoff
		if backoff > 1 {
			delay = math.Pow(backoff, float64(attempt-1))
		}
		sleepFor := httpclient.Jitter(time.Duration(delay * float64(time.Second)))
		log.Printf("monitor[%s]: %s: %v (attempt %d/%d), retrying in %s", runID, name, err, attempt, attempts, sleepFor)
		m.opts.Metrics.RecordRetry(name)
		if sleepErr := httpclient.SleepCtx(ctx, sleepFor); sleepErr != nil {
			lastErr = sleepErr
			break
		}
	}
	return fetchOutcome{index: idx, name: name, err: lastErr}
}

// admit reports whether item is new: neither its id nor its fingerprint is
// present in the dedup maps with an unexpired entry. On admission it stamps
// both entries to expire at now + DedupTTL.
func (m *Monitor) admit(item source.Item, now time.Time) bool {
	fp := item.Fingerprint()
	if exp, ok := m.seenByID[item.ID]; ok && exp.After(now) {
		return false
	}
	if exp, ok := m.seenByFP[fp]; ok && exp.After(now) {
		return false
	}
	expiry := now.Add(m.opts.DedupTTL)
	m.seenByID[item.ID] = expiry
	m.seenByFP[fp] = expiry
	return true
}

// prune drops events whose item published before the retention horizon,
// removing the front of the buffer (insertion order == published order
// for practical feeds) and clearing their dedup entries.
func (m *Monitor) prune(now time.Time) {
	threshold := now.Add(-m.opts.Retention)
	i := 0
	for i < len(m.events) && m.events[i].Item.Published.Before(threshold) {
		delete(m.seenByID, m.events[i].Item.ID)
		delete(m.seenByFP, m.events[i].Fingerprint)
		i++
	}
	if i > 0 {
		m.events = append([]Event(nil), m.events[i:]...)
	}
}

// sweepDedup drops expired entries from both dedup maps.
func (m *Monitor) sweepDedup(now time.Time) {
	for id, exp := range m.seenByID {
		if !exp.After(now) {
			delete(m.seenByID, id)
		}
	}
	for fp, exp := range m.seenByFP {
		if !exp.After(now) {
			delete(m.seenByFP, fp)
		}
	}
}
