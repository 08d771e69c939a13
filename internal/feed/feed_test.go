package feed

import (
	"testing"
	"time"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <item>
      <guid>item-1</guid>
      <title>First Post</title>
      <link>https://example.com/1</link>
      <pubDate>Mon, 02 Jan 2006 15:04:05 +0000</pubDate>
      <description>Summary one</description>
    </item>
    <item>
      <title>No GUID Post</title>
      <link>https://example.com/2</link>
      <pubDate>Mon, 02 Jan 2006 16:00:00 +0000</pubDate>
      <description>Summary two</description>
    </item>
  </channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Atom Feed</title>
  <entry>
    <id>tag:example.com,2006:1</id>
    <title>Atom Entry</title>
    <link href="https://example.com/atom/1" />
    <updated>2006-01-02T15:04:05Z</updated>
    <summary>Atom summary</summary>
  </entry>
</feed>`

func TestParseRSS(t *testing.T) {
	entries, err := Parse([]byte(rssFixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].ID != "item-1" {
		t.Errorf("entries[0].ID = %q, want item-1", entries[0].ID)
	}
	if entries[0].Title != "First Post" {
		t.Errorf("entries[0].Title = %q", entries[0].Title)
	}
	if entries[0].Summary != "Summary one" {
		t.Errorf("entries[0].Summary = %q", entries[0].Summary)
	}
	wantTime := time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC)
	if !entries[0].Published.Equal(wantTime) {
		t.Errorf("entries[0].Published = %v, want %v", entries[0].Published, wantTime)
	}
	// Second item has no guid; falls back to the link as id.
	if entries[1].ID != "https://example.com/2" {
		t.Errorf("entries[1].ID = %q, want link fallback", entries[1].ID)
	}
}

func TestParseAtom(t *testing.T) {
	entries, err := Parse([]byte(atomFixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.ID != "tag:example.com,2006:1" {
		t.Errorf("ID = %q", e.ID)
	}
	if e.URL != "https://example.com/atom/1" {
		t.Errorf("URL = %q", e.URL)
	}
	if e.Summary != "Atom summary" {
		t.Errorf("Summary = %q", e.Summary)
	}
}

func TestParseInvalidXML(t *testing.T) {
	_, err := Parse([]byte("not xml at all <<<"))
	if err == nil {
		t.Fatal("Parse: want error for invalid xml")
	}
}

func TestParseMissingGUIDAndLinkSynthesizesID(t *testing.T) {
	const fixture = `<rss version="2.0"><channel><item>
		<title>Orphan</title>
		<pubDate>Mon, 02 Jan 2006 15:04:05 +0000</pubDate>
	</item></channel></rss>`
	entries, err := Parse([]byte(fixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].ID == "" {
		t.Error("expected synthesized id, got empty string")
	}
	if len(entries[0].ID) < 5 || entries[0].ID[:5] != "sha1:" {
		t.Errorf("ID = %q, want sha1:-prefixed synthesized id", entries[0].ID)
	}
}

func TestParseDateTimeFallback(t *testing.T) {
	got := parseDateTime("not a date")
	if time.Since(got) > time.Minute {
		t.Errorf("parseDateTime fallback too far from now: %v", got)
	}
}

func TestParseDateTimeISO(t *testing.T) {
	got := parseDateTime("2006-01-02T15:04:05Z")
	want := time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("parseDateTime = %v, want %v", got, want)
	}
}
