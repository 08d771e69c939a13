package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/snapetech/trendmonitor/internal/httpclient"
	"github.com/snapetech/trendmonitor/internal/source"
)

type fakeSource struct {
	name    string
	results []source.FetchResult
	errs    []error
	calls   int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context) (source.FetchResult, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var res source.FetchResult
	if i < len(f.results) {
		res = f.results[i]
	}
	return res, err
}

func newItem(id, title string, published time.Time) source.Item {
	return source.Item{ID: id, Title: title, URL: "https://x/" + id, Published: published, Language: "en"}
}

func TestUpdateDedupIdempotence(t *testing.T) {
	now := time.Now().UTC()
	src := &fakeSource{
		name: "s1",
		results: []source.FetchResult{
			{Items: []source.Item{newItem("a", "breaking news story", now)}},
		},
	}
	m := New([]Entry{{Source: src}}, Options{MinScore: 0})
	if _, err := m.Update(context.Background()); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(m.events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(m.events))
	}

	// Same source returns the same item id again on the next call.
	src.results = append(src.results, source.FetchResult{Items: []source.Item{newItem("a", "breaking news story", now)}})
	if _, err := m.Update(context.Background()); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(m.events) != 1 {
		t.Fatalf("len(events) after repeat fetch = %d, want 1 (dedup)", len(m.events))
	}
}

func TestUpdateRetrySuccess(t *testing.T) {
	now := time.Now().UTC()
	src := &fakeSource{
		name: "flaky",
		errs: []error{&httpclient.SourceError{URL: "x", Err: context.DeadlineExceeded}},
		results: []source.FetchResult{
			{},
			{Items: []source.Item{newItem("b", "recovered item text", now)}},
		},
	}
	m := New([]Entry{{Source: src, MaxRetries: 2, RetryBackoff: 0.001}}, Options{MinScore: 0})
	trends, err := m.Update(context.Background())
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("calls = %d, want 2 (one retry)", src.calls)
	}
	if len(m.events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(m.events))
	}
	_ = trends
}

func TestUpdateRetentionPrune(t *testing.T) {
	now := time.Now().UTC()
	old := now.Add(-2 * time.Hour)
	src := &fakeSource{
		name: "s1",
		results: []source.FetchResult{
			{Items: []source.Item{newItem("old", "old headline story", old)}},
		},
	}
	m := New([]Entry{{Source: src}}, Options{MinScore: 0, Retention: time.Hour})
	if _, err := m.Update(context.Background()); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(m.events) != 0 {
		t.Fatalf("len(events) = %d, want 0 (pruned by retention)", len(m.events))
	}
}

func TestSweepDedupExpiresEntries(t *testing.T) {
	now := time.Now().UTC()
	m := New(nil, Options{MinScore: 0, Retention: time.Hour, DedupTTL: 10 * time.Minute})

	item := newItem("a", "expiring headline story", now)
	if !m.admit(item, now) {
		t.Fatal("admit: want true for a fresh item")
	}
	if len(m.seenByID) != 1 || len(m.seenByFP) != 1 {
		t.Fatalf("dedup maps after admit: seenByID=%d seenByFP=%d, want 1/1", len(m.seenByID), len(m.seenByFP))
	}

	// Re-admitting before the TTL elapses is rejected (still within the
	// dedup window).
	if m.admit(item, now.Add(5*time.Minute)) {
		t.Fatal("admit: want false for a repeat within dedup_ttl")
	}

	// Advance past dedup_ttl + retention and sweep: both maps must be
	// cleared entirely.
	past := now.Add(m.opts.DedupTTL + m.opts.Retention + time.Minute)
	m.sweepDedup(past)
	if len(m.seenByID) != 0 {
		t.Errorf("seenByID after sweep = %d entries, want 0", len(m.seenByID))
	}
	if len(m.seenByFP) != 0 {
		t.Errorf("seenByFP after sweep = %d entries, want 0", len(m.seenByFP))
	}

	// The same item id/fingerprint is admitted again once swept.
	if !m.admit(item, past) {
		t.Error("admit after sweep: want true, dedup entries should be gone")
	}
}

func TestUpdateMinScoreFilter(t *testing.T) {
	now := time.Now().UTC()
	src := &fakeSource{
		name: "s1",
		results: []source.FetchResult{
			{Items: []source.Item{newItem("a", "zzz", now)}},
		},
	}
	m := New([]Entry{{Source: src}}, Options{MinScore: 1000})
	trends, err := m.Update(context.Background())
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(trends) != 0 {
		t.Fatalf("len(trends) = %d, want 0 under an unreachable min-score", len(trends))
	}
}
