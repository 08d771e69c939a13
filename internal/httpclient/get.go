package httpclient

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
)

// SourceError is raised for anything a source adapter's poll can fail on:
// transport errors (DNS, connection, timeout, TLS), HTTP >= 400, or an
// upstream that can't be parsed. Code is 0 for transport-level failures.
type SourceError struct {
	URL  string
	Code int
	Err  error
}

func (e *SourceError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Code)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Result is the outcome of a single conditional GET.
type Result struct {
	Status  int
	Headers http.Header
	Body    []byte // nil when Status == http.StatusNotModified
}

// Get issues one GET against rawURL with the given request headers and
// timeout. It paces requests per host (see HostPacer), decodes brotli
// transport encoding, and resolves the body's charset leniently
// (undecodable bytes are replaced, never fatal). A 304 response returns
// Result{Status: 304, Body: nil} with a nil error — the caller (a source
// adapter) turns that into FetchResult{NotModified: true}. Anything >= 400,
// and any transport failure, comes back as *SourceError.
func Get(ctx context.Context, client *http.Client, rawURL string, headers map[string]string, timeout time.Duration) (*Result, error) {
	if client == nil {
		client = WithTimeout(timeout)
	}
	if err := GlobalHostPacer.Wait(ctx, rawURL); err != nil {
		return nil, &SourceError{URL: rawURL, Err: err}
	}

	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &SourceError{URL: rawURL, Err: err}
	}
	req.Header.Set("Accept-Encoding", "gzip, br")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &SourceError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &Result{Status: resp.StatusCode, Headers: resp.Header}, nil
	}
	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &SourceError{URL: rawURL, Code: resp.StatusCode}
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, &SourceError{URL: rawURL, Err: err}
	}

	return &Result{Status: resp.StatusCode, Headers: resp.Header, Body: body}, nil
}

// decodeBody strips Content-Encoding: br or gzip (Get sets Accept-Encoding
// itself, so the Transport does not decompress gzip transparently) then
// re-encodes the result as UTF-8, sniffing the charset from Content-Type /
// document content. Undecodable bytes are replaced rather than causing a
// failure — the spec's "lenient decoding" requirement.
func decodeBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	switch encoding := resp.Header.Get("Content-Encoding"); {
	case strings.EqualFold(encoding, "br"):
		reader = brotli.NewReader(reader)
	case strings.EqualFold(encoding, "gzip"):
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	decoded, err := charset.NewReader(strings.NewReader(string(raw)), contentType)
	if err != nil {
		// Lenient: never fail a fetch over charset ambiguity.
		return raw, nil
	}
	out, err := io.ReadAll(decoded)
	if err != nil {
		return raw, nil
	}
	return out, nil
}
