// Package source adapts feeds and video pages into a uniform stream of
// SourceItems the monitor can fan out over, retry, and dedup.
package source

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net/url"
	"time"

	"github.com/snapetech/trendmonitor/internal/httpclient"
	"github.com/snapetech/trendmonitor/internal/safeurl"
)

// SourceError is raised by a source's Fetch for anything transient: network
// failure, HTTP >= 400, or an unparseable upstream body. It is the same type
// httpclient.Get raises; aliased here so callers never need to import both
// packages to catch it.
type SourceError = httpclient.SourceError

// Config is the immutable configuration for one source.
type Config struct {
	Name                     string
	URL                      string
	Interval                 time.Duration
	Timeout                  time.Duration
	MaxRetries               int
	RetryBackoff             float64 // base seconds
	Language                 string
	Country                  string
	Kind                     string // "rss" or "video"
	UseUploadDateAsPublished bool
	SummaryDescriptionLimit  int
}

// Item is an immutable unit of ingested content.
type Item struct {
	ID        string
	Title     string
	URL       string
	Published time.Time
	Summary   string
	Language  string
}

// Fingerprint derives a stable content fingerprint for dedup: SHA-1 over
// id|url|title|published-ISO|language, prefixed sha1:.
func (it Item) Fingerprint() string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%s",
		it.ID, it.URL, it.Title, it.Published.UTC().Format(time.RFC3339), it.Language)
	sum := sha1.Sum([]byte(raw))
	return fmt.Sprintf("sha1:%x", sum)
}

// FetchResult is the outcome of one poll. NotModified implies Items is empty.
type FetchResult struct {
	Items       []Item
	NotModified bool
	Headers     map[string][]string
}

// Source fetches new items from one upstream.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (FetchResult, error)
}

// New builds a Source for cfg, dispatching on cfg.Kind. Returns an error on
// an unknown kind or a malformed URL — a permanent misconfiguration the
// caller should log and skip rather than retry.
func New(cfg Config) (Source, error) {
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("source %s: invalid url %q: %w", cfg.Name, cfg.URL, err)
	}
	if !safeurl.IsHTTPOrHTTPS(cfg.URL) {
		return nil, fmt.Errorf("source %s: unsupported url scheme %q", cfg.Name, cfg.URL)
	}
	switch cfg.Kind {
	case "", "rss":
		return NewRSSSource(cfg), nil
	case "video":
		return NewVideoPageSource(cfg), nil
	default:
		return nil, fmt.Errorf("source %s: unknown kind %q", cfg.Name, cfg.Kind)
	}
}

const userAgent = "TrendMonitor/1.1 (+https://example.com/trend-monitor)"
