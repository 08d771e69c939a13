// Command trend-monitor polls RSS/Atom feeds and video pages, scores
// time-decayed keyword trends, persists scored iterations to SQLite, and
// optionally exports Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/snapetech/trendmonitor/internal/analysis"
	"github.com/snapetech/trendmonitor/internal/config"
	"github.com/snapetech/trendmonitor/internal/metrics"
	"github.com/snapetech/trendmonitor/internal/monitor"
	"github.com/snapetech/trendmonitor/internal/source"
	"github.com/snapetech/trendmonitor/internal/store"
)

func main() {
	flags, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	if flags.Verbose {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}

	additional, err := config.LoadSources(flags.SourcesPath)
	if err != nil {
		log.Fatalf("load sources: %v", err)
	}
	configs := append(config.DefaultSources(), additional...)

	entries := make([]monitor.Entry, 0, len(configs))
	for _, cfg := range configs {
		src, err := source.New(cfg)
		if err != nil {
			log.Printf("skipping source %s: %v", cfg.Name, err)
			continue
		}
		entries = append(entries, monitor.Entry{
			Source:       src,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
		})
	}
	if len(entries) == 0 {
		log.Fatalf("no usable sources configured")
	}

	st, err := store.Open(flags.Storage, flags.Retention, 0)
	if err != nil {
		log.Fatalf("open storage %s: %v", flags.Storage, err)
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.MetricsPort > 0 {
		addr := fmt.Sprintf("%s:%d", flags.MetricsAddr, flags.MetricsPort)
		go func() {
			log.Printf("metrics listening on %s", addr)
			if err := metrics.Serve(ctx, addr, reg); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	mon := monitor.New(entries, monitor.Options{
		Retention:          flags.Retention,
		DecayHours:         flags.DecayHours,
		MinScore:           flags.MinScore,
		TopK:               flags.Top,
		Store:              st,
		Metrics:            collector,
		FetchConcurrency:   flags.FetchConcurrency,
		FetchRetryAttempts: flags.FetchRetries,
		FetchRetryBackoff:  flags.FetchBackoff,
		DedupTTL:           flags.DedupTTL,
	})

	runOnce := func() {
		iterStart := time.Now()
		trends, err := mon.Update(ctx)
		if err != nil {
			log.Printf("iteration failed: %v", err)
			return
		}
		printSnapshot(trends, time.Now().UTC())
		if flags.Verbose {
			log.Printf("iteration finished in %s", humanize.RelTime(iterStart, time.Now(), "", ""))
		}
	}

	runOnce()
	if flags.Once {
		return
	}

	ticker := time.NewTicker(flags.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Print("shutting down")
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

const ansiBold = "\x1b[1m"
const ansiReset = "\x1b[0m"

// printSnapshot writes the per-iteration trend summary to stdout in the
// monitor's plain-text report format. Keyword headers are bolded when stdout
// is a terminal, plain when piped or redirected.
func printSnapshot(trends []analysis.Trend, generatedAt time.Time) {
	tty := isatty.IsTerminal(os.Stdout.Fd())
	fmt.Printf("=== Топ трендов %s UTC ===\n", generatedAt.Format(time.RFC3339))
	for _, t := range trends {
		if tty {
			fmt.Printf("%s#%s — score %.3f%s\n", ansiBold, t.Keyword, t.Score, ansiReset)
		} else {
			fmt.Printf("#%s — score %.3f\n", t.Keyword, t.Score)
		}
		n := len(t.Items)
		if n > 3 {
			n = 3
		}
		for _, item := range t.Items[:n] {
			fmt.Printf("    • %s (%s)\n", item.Title, item.URL)
		}
	}
	fmt.Println()
}
