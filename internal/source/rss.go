package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/snapetech/trendmonitor/internal/feed"
	"github.com/snapetech/trendmonitor/internal/httpclient"
)

// RSSSource polls an RSS/Atom feed, caching conditional-request validators
// between fetches.
type RSSSource struct {
	cfg Config

	mu           sync.Mutex
	lastETag     string
	lastModified string
}

func NewRSSSource(cfg Config) *RSSSource {
	return &RSSSource{cfg: cfg}
}

func (s *RSSSource) Name() string { return s.cfg.Name }

func (s *RSSSource) Fetch(ctx context.Context) (FetchResult, error) {
	s.mu.Lock()
	headers := map[string]string{"User-Agent": userAgent}
	if s.lastETag != "" {
		headers["If-None-Match"] = s.lastETag
	}
	if s.lastModified != "" {
		headers["If-Modified-Since"] = s.lastModified
	}
	s.mu.Unlock()

	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	res, err := httpclient.Get(ctx, nil, s.cfg.URL, headers, timeout)
	if err != nil {
		return FetchResult{}, err
	}

	if res.Status == 304 {
		return FetchResult{NotModified: true}, nil
	}

	s.mu.Lock()
	s.lastETag = res.Headers.Get("ETag")
	s.lastModified = res.Headers.Get("Last-Modified")
	s.mu.Unlock()

	entries, err := feed.Parse(res.Body)
	if err != nil {
		return FetchResult{}, &SourceError{URL: s.cfg.URL, Err: fmt.Errorf("feed parse: %w", err)}
	}

	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, Item{
			ID:        e.ID,
			Title:     e.Title,
			URL:       e.URL,
			Published: e.Published,
			Summary:   e.Summary,
			Language:  s.cfg.Language,
		})
	}

	return FetchResult{Items: items, Headers: map[string][]string(res.Headers)}, nil
}
