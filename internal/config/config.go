// Package config parses CLI flags and the additional-sources JSON file into
// the types internal/source and internal/monitor need to construct a run.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/snapetech/trendmonitor/internal/source"
)

// Flags holds every CLI-configurable tunable for the monitor driver.
type Flags struct {
	Interval         time.Duration
	Retention        time.Duration
	DecayHours       float64
	MinScore         float64
	Top              int
	Storage          string
	FetchRetries     int
	FetchBackoff     float64
	FetchConcurrency int
	DedupTTL         time.Duration
	MetricsPort      int
	MetricsAddr      string
	SourcesPath      string
	Once             bool
	Verbose          bool
}

// Parse registers and parses the monitor driver's flags against the given
// arg slice (pass os.Args[1:] in production, a literal slice in tests).
func Parse(args []string) (Flags, error) {
	fs := flag.NewFlagSet("trend-monitor", flag.ContinueOnError)

	intervalSecs := fs.Int("interval", 900, "poll interval in seconds")
	retentionHours := fs.Float64("retention", 12, "sliding-window size in hours")
	decayHours := fs.Float64("decay", 6.0, "exponential decay constant in hours")
	minScore := fs.Float64("min-score", 0.4, "trend score threshold")
	top := fs.Int("top", 20, "output list cap")
	storage := fs.String("storage", "data/trends.sqlite", "SQLite file path")
	fetchRetries := fs.Int("fetch-retries", 3, "per-source fetch attempts")
	fetchBackoff := fs.Float64("fetch-backoff", 2.0, "base retry backoff seconds")
	fetchConcurrency := fs.Int("fetch-concurrency", 5, "fetch parallelism cap")
	dedupTTLMinutes := fs.Int("dedup-ttl", 0, "dedup TTL in minutes (default = retention)")
	metricsPort := fs.Int("metrics-port", 0, "enable Prometheus exporter on this port (0 disables)")
	metricsAddr := fs.String("metrics-addr", "0.0.0.0", "metrics exporter bind address")
	sourcesPath := fs.String("sources", "", "JSON file of additional source configs")
	once := fs.Bool("once", false, "run one iteration and exit")
	verbose := fs.Bool("verbose", false, "debug-level logging")

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	f := Flags{
		Interval:         time.Duration(*intervalSecs) * time.Second,
		Retention:        time.Duration(*retentionHours * float64(time.Hour)),
		DecayHours:       *decayHours,
		MinScore:         *minScore,
		Top:              *top,
		Storage:          *storage,
		FetchRetries:     *fetchRetries,
		FetchBackoff:     *fetchBackoff,
		FetchConcurrency: *fetchConcurrency,
		MetricsPort:      *metricsPort,
		MetricsAddr:      *metricsAddr,
		SourcesPath:      *sourcesPath,
		Once:             *once,
		Verbose:          *verbose,
	}
	if *dedupTTLMinutes > 0 {
		f.DedupTTL = time.Duration(*dedupTTLMinutes) * time.Minute
	} else {
		f.DedupTTL = f.Retention
	}
	return f, nil
}

// DefaultSources returns the built-in feeds the monitor polls before any
// --sources additions are merged in.
func DefaultSources() []source.Config {
	return []source.Config{
		{Name: "Google Trends (US)", URL: "https://trends.google.com/trends/trendingsearches/daily/rss?geo=US", Kind: "rss", Language: "en"},
		{Name: "Hacker News", URL: "https://hnrss.org/frontpage", Kind: "rss", Language: "en"},
		{Name: "Lenta.ru", URL: "https://lenta.ru/rss", Kind: "rss", Language: "ru"},
	}
}

// sourceEntry mirrors one object in the additional-sources JSON document.
type sourceEntry struct {
	Name         string  `json:"name"`
	URL          string  `json:"url"`
	Timeout      float64 `json:"timeout,omitempty"`
	MaxRetries   int     `json:"max_retries,omitempty"`
	RetryBackoff float64 `json:"retry_backoff,omitempty"`
	Language     string  `json:"language,omitempty"`
	Country      string  `json:"country,omitempty"`
	Kind         string  `json:"kind,omitempty"`
}

// LoadSources reads the JSON array at path and converts each entry into a
// source.Config. An empty path returns no additional sources.
func LoadSources(path string) ([]source.Config, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read sources file %s: %w", path, err)
	}
	var entries []sourceEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("config: parse sources file %s: %w", path, err)
	}
	cfgs := make([]source.Config, 0, len(entries))
	for _, e := range entries {
		kind := e.Kind
		if kind == "" {
			kind = "rss"
		}
		cfg := source.Config{
			Name:         e.Name,
			URL:          e.URL,
			Language:     e.Language,
			Country:      e.Country,
			Kind:         kind,
			MaxRetries:   e.MaxRetries,
			RetryBackoff: e.RetryBackoff,
		}
		if e.Timeout > 0 {
			cfg.Timeout = time.Duration(e.Timeout * float64(time.Second))
		}
		cfgs = append(cfgs, cfg)
	}
	return cfgs, nil
}
