// Package httpclient provides the single HTTP GET primitive every source
// adapter polls through: conditional requests, lenient charset decoding,
// transparent brotli, and a per-host request pacer.
package httpclient

import (
	"net/http"
	"time"
)

// Default returns an HTTP client with timeouts so a dead upstream can't hang
// a fetch forever.
func Default() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			ResponseHeaderTimeout: 15 * time.Second,
			ExpectContinueTimeout: 5 * time.Second,
			IdleConnTimeout:       30 * time.Second,
		},
	}
}

// WithTimeout returns a client scoped to a single fetch's timeout.
func WithTimeout(d time.Duration) *http.Client {
	if d <= 0 {
		return Default()
	}
	return &http.Client{
		Timeout: d,
		Transport: &http.Transport{
			ResponseHeaderTimeout: d,
			ExpectContinueTimeout: 5 * time.Second,
			IdleConnTimeout:       30 * time.Second,
		},
	}
}
