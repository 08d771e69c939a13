package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGetOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<rss></rss>"))
	}))
	defer srv.Close()

	res, err := Get(context.Background(), srv.Client(), srv.URL, nil, 5*time.Second)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if res.Status != http.StatusOK {
		t.Fatalf("Status = %d, want 200", res.Status)
	}
	if !strings.Contains(string(res.Body), "<rss>") {
		t.Fatalf("Body = %q, want to contain <rss>", res.Body)
	}
	if res.Headers.Get("ETag") != `"abc123"` {
		t.Fatalf("ETag = %q", res.Headers.Get("ETag"))
	}
}

func TestGetNotModified(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	headers := map[string]string{
		"If-None-Match":     `"abc123"`,
		"If-Modified-Since": "Mon, 02 Jan 2006 15:04:05 GMT",
	}
	res, err := Get(context.Background(), srv.Client(), srv.URL, headers, 5*time.Second)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if res.Status != http.StatusNotModified {
		t.Fatalf("Status = %d, want 304", res.Status)
	}
	if res.Body != nil {
		t.Fatalf("Body = %v, want nil", res.Body)
	}
	if gotHeaders.Get("If-None-Match") != `"abc123"` {
		t.Errorf("server did not receive If-None-Match header")
	}
}

func TestGetHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := Get(context.Background(), srv.Client(), srv.URL, nil, 5*time.Second)
	if err == nil {
		t.Fatal("Get: want error for 503 response")
	}
	se, ok := err.(*SourceError)
	if !ok {
		t.Fatalf("err type = %T, want *SourceError", err)
	}
	if se.Code != http.StatusServiceUnavailable {
		t.Errorf("Code = %d, want 503", se.Code)
	}
}

func TestGetTransportFailure(t *testing.T) {
	_, err := Get(context.Background(), http.DefaultClient, "http://127.0.0.1:0/unreachable", nil, time.Second)
	if err == nil {
		t.Fatal("Get: want error for unreachable host")
	}
	if _, ok := err.(*SourceError); !ok {
		t.Fatalf("err type = %T, want *SourceError", err)
	}
}

func TestGetRequestHeadersPassthrough(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := Get(context.Background(), srv.Client(), srv.URL, map[string]string{"User-Agent": "trend-monitor/1.0"}, 5*time.Second)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotUA != "trend-monitor/1.0" {
		t.Errorf("User-Agent = %q, want trend-monitor/1.0", gotUA)
	}
}
