// Package feed parses RSS 2.0 and Atom 1.0 XML into a source-agnostic list
// of entries. Entries with missing fields are kept with fallbacks (placeholder
// title, synthesized id); only an XML parse failure fails the whole feed.
package feed

import (
	"crypto/sha1"
	"encoding/xml"
	"fmt"
	"log"
	"strings"
	"time"
)

// Entry is one raw feed item, before any source-level projection.
type Entry struct {
	ID        string
	Title     string
	URL       string
	Published time.Time
	Summary   string
}

// dateLayouts is the ranked list of formats tried, in order, against a raw
// feed timestamp. Go's reference layout translation of the strptime-style
// ladder the upstream monitor ranks dates by.
var dateLayouts = []string{
	time.RFC1123Z,             // "Mon, 02 Jan 2006 15:04:05 -0700"
	time.RFC1123,              // "Mon, 02 Jan 2006 15:04:05 MST"
	"2006-01-02T15:04:05Z",    // UTC, no fractional seconds
	"2006-01-02T15:04:05.999999999Z",
	"2006-01-02T15:04:05Z07:00", // with numeric offset
}

// rssItem maps rss/channel/item. Atom's namespace is handled separately by
// atomEntry since the element names and link representation differ.
type rssItem struct {
	GUID        string `xml:"guid"`
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	Description string `xml:"description"`
}

type rssDoc struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
}

type atomEntry struct {
	ID      string     `xml:"id"`
	Title   string     `xml:"title"`
	Links   []atomLink `xml:"link"`
	Updated string     `xml:"updated"`
	Published string   `xml:"published"`
	Summary string     `xml:"summary"`
	Content string     `xml:"content"`
}

type atomFeed struct {
	XMLName xml.Name    `xml:"http://www.w3.org/2005/Atom feed"`
	Entries []atomEntry `xml:"http://www.w3.org/2005/Atom entry"`
}

// Parse decodes raw XML into feed entries. It recognises rss/channel/item
// first; if no <rss> root is present it falls back to Atom's feed/entry.
// Returns an error only when the XML itself cannot be parsed. Every decoded
// entry is returned; one with no guid, Atom id or link gets a synthesized id.
func Parse(data []byte) ([]Entry, error) {
	var probe struct {
		XMLName xml.Name
	}
	if err := xml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("feed: parse xml: %w", err)
	}

	if probe.XMLName.Local == "feed" {
		var doc atomFeed
		if err := xml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("feed: parse atom: %w", err)
		}
		return parseAtomEntries(doc.Entries), nil
	}

	var doc rssDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("feed: parse rss: %w", err)
	}
	return parseRSSItems(doc.Channel.Items), nil
}

func parseRSSItems(items []rssItem) []Entry {
	out := make([]Entry, 0, len(items))
	for _, it := range items {
		id := strings.TrimSpace(it.GUID)
		url := strings.TrimSpace(it.Link)
		if id == "" {
			id = url
		}
		title := strings.TrimSpace(it.Title)
		if title == "" {
			title = "(untitled)"
		}
		published := parseDateTime(it.PubDate)
		if id == "" {
			id = synthesizeID(url, title, published)
		}
		out = append(out, Entry{
			ID:        id,
			Title:     title,
			URL:       url,
			Published: published,
			Summary:   strings.TrimSpace(it.Description),
		})
	}
	return out
}

func parseAtomEntries(entries []atomEntry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		id := strings.TrimSpace(e.ID)
		url := firstAtomLink(e.Links)
		if id == "" {
			id = url
		}
		title := strings.TrimSpace(e.Title)
		if title == "" {
			title = "(untitled)"
		}
		raw := e.Updated
		if raw == "" {
			raw = e.Published
		}
		published := parseDateTime(raw)
		if id == "" {
			id = synthesizeID(url, title, published)
		}
		summary := strings.TrimSpace(e.Summary)
		if summary == "" {
			summary = strings.TrimSpace(e.Content)
		}
		out = append(out, Entry{
			ID:        id,
			Title:     title,
			URL:       url,
			Published: published,
			Summary:   summary,
		})
	}
	return out
}

func firstAtomLink(links []atomLink) string {
	for _, l := range links {
		if strings.TrimSpace(l.Href) != "" {
			return strings.TrimSpace(l.Href)
		}
	}
	return ""
}

// synthesizeID builds a stable fallback id when the feed provides no guid,
// Atom id, or link — sha1 over url|title|published-ISO.
func synthesizeID(url, title string, published time.Time) string {
	raw := url + "|" + title + "|" + published.UTC().Format(time.RFC3339)
	sum := sha1.Sum([]byte(raw))
	return fmt.Sprintf("sha1:%x", sum)
}

// parseDateTime tries the ranked layout ladder, normalising to UTC with no
// timezone attached. Falls back to the current UTC time and a debug log on
// failure, matching the upstream monitor's behaviour for unparseable dates.
func parseDateTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().UTC()
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	log.Printf("feed: unable to parse date %q, using current time", raw)
	return time.Now().UTC()
}
