package httpclient

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// HostPacer is a process-global per-host request pacer. All fetches in the
// process share the same limiter for a given host so that several sources
// pointed at the same domain (e.g. two feeds on the same news site) don't
// burst it, even though each source is fetched by its own goroutine.
//
// Usage: Wait before sending a request.
//
//	if err := GlobalHostPacer.Wait(ctx, url); err != nil { ... }
type HostPacer struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// GlobalHostPacer is the shared per-host limiter. Default: 2 requests/second
// per host with a burst of 2, generous enough for normal polling intervals
// while keeping a misconfigured short --interval from hammering one host.
var GlobalHostPacer = NewHostPacer(2, 2)

func NewHostPacer(rps float64, burst int) *HostPacer {
	if rps <= 0 {
		rps = 2
	}
	if burst < 1 {
		burst = 1
	}
	return &HostPacer{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Wait blocks until a request to rawURL's host may proceed, or ctx is done.
func (h *HostPacer) Wait(ctx context.Context, rawURL string) error {
	return h.limiterFor(rawURL).Wait(ctx)
}

func (h *HostPacer) limiterFor(rawURL string) *rate.Limiter {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Scheme + "://" + u.Host
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	lim, ok := h.limiters[host]
	if !ok {
		lim = rate.NewLimiter(h.rps, h.burst)
		h.limiters[host] = lim
	}
	return lim
}
