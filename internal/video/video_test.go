package video

import (
	"testing"
	"time"

	"github.com/kylelemons/godebug/pretty"
)

func TestParseJSONLD(t *testing.T) {
	const page = `<html><head>
<script type="application/ld+json">
{"@type": "VideoObject", "name": "My Video", "description": "desc here",
 "url": "https://example.com/v/1", "uploadDate": "2020-05-01T12:00:00Z",
 "author": {"name": "Alice", "url": "https://example.com/alice"},
 "viewCount": 1234, "keywords": "go, golang; testing"}
</script>
<meta property="og:title" content="Fallback Title">
</head><body></body></html>`

	meta, ok := Parse(page)
	if !ok {
		t.Fatal("Parse: want ok=true")
	}
	if meta.Title != "My Video" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.Description != "desc here" {
		t.Errorf("Description = %q", meta.Description)
	}
	if meta.URL != "https://example.com/v/1" {
		t.Errorf("URL = %q", meta.URL)
	}
	if !meta.HasUploadDate || !meta.UploadDate.Equal(time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("UploadDate = %v (has=%v)", meta.UploadDate, meta.HasUploadDate)
	}
	if meta.AuthorName != "Alice" || meta.AuthorURL != "https://example.com/alice" {
		t.Errorf("Author = %q / %q", meta.AuthorName, meta.AuthorURL)
	}
	if !meta.HasViewCount || meta.ViewCount != 1234 {
		t.Errorf("ViewCount = %d (has=%v)", meta.ViewCount, meta.HasViewCount)
	}
	wantKeywords := []string{"go", "golang", "testing"}
	if len(meta.Keywords) != len(wantKeywords) {
		t.Fatalf("Keywords = %v, want %v", meta.Keywords, wantKeywords)
	}
	for i, k := range wantKeywords {
		if meta.Keywords[i] != k {
			t.Errorf("Keywords[%d] = %q, want %q", i, meta.Keywords[i], k)
		}
	}
}

func TestParseMetaFallback(t *testing.T) {
	const page = `<html><head>
<meta property="og:title" content="OG Title">
<meta name="description" content="OG desc">
<meta property="og:url" content="https://example.com/og">
<meta name="keywords" content="a|b|c">
<meta property="og:locale" content="ru_RU">
</head><body></body></html>`

	meta, ok := Parse(page)
	if !ok {
		t.Fatal("Parse: want ok=true")
	}
	if meta.Title != "OG Title" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.Description != "OG desc" {
		t.Errorf("Description = %q", meta.Description)
	}
	if meta.URL != "https://example.com/og" {
		t.Errorf("URL = %q", meta.URL)
	}
	if meta.Language != "ru" {
		t.Errorf("Language = %q, want ru", meta.Language)
	}
	if len(meta.Keywords) != 3 {
		t.Errorf("Keywords = %v", meta.Keywords)
	}
}

func TestParseTitleTagFallback(t *testing.T) {
	const page = `<html><head><title>Just A Title</title></head><body></body></html>`
	meta, ok := Parse(page)
	if !ok {
		t.Fatal("Parse: want ok=true")
	}
	if meta.Title != "Just A Title" {
		t.Errorf("Title = %q", meta.Title)
	}
}

func TestParseNoTitleReturnsNotOK(t *testing.T) {
	const page = `<html><head></head><body><p>no title here</p></body></html>`
	_, ok := Parse(page)
	if ok {
		t.Fatal("Parse: want ok=false when no title resolvable")
	}
}

func TestParseFirstWinsMetaDuplicate(t *testing.T) {
	const page = `<html><head>
<meta property="og:title" content="First">
<meta property="og:title" content="Second">
</head><body></body></html>`
	meta, ok := Parse(page)
	if !ok {
		t.Fatal("Parse: want ok=true")
	}
	if meta.Title != "First" {
		t.Errorf("Title = %q, want First (first-wins)", meta.Title)
	}
}

func TestParseInteractionStatistic(t *testing.T) {
	const page = `<html><head>
<script type="application/ld+json">
{"@type": "VideoObject", "name": "Stats Video",
 "interactionStatistic": [
   {"interactionType": "WatchAction", "userInteractionCount": 500},
   {"interactionType": "LikeAction", "userInteractionCount": 42},
   {"interactionType": "CommentAction", "userInteractionCount": 7}
 ]}
</script>
</head><body></body></html>`
	meta, ok := Parse(page)
	if !ok {
		t.Fatal("Parse: want ok=true")
	}
	if meta.ViewCount != 500 || !meta.HasViewCount {
		t.Errorf("ViewCount = %d", meta.ViewCount)
	}
	if meta.LikeCount != 42 || !meta.HasLikeCount {
		t.Errorf("LikeCount = %d", meta.LikeCount)
	}
	if meta.CommentCount != 7 || !meta.HasComments {
		t.Errorf("CommentCount = %d", meta.CommentCount)
	}
}

func TestParseJSONLDFullFixture(t *testing.T) {
	const page = `<html><head>
<script type="application/ld+json">
{"@type": "VideoObject", "name": "Fixture Video",
 "uploadDate": "2024-05-01T12:34:56Z",
 "interactionStatistic": [
   {"interactionType": "WatchAction", "userInteractionCount": 1337},
   {"interactionType": "LikeAction", "userInteractionCount": 250},
   {"interactionType": "CommentAction", "userInteractionCount": 17}
 ],
 "keywords": "innovation, trend, video", "inLanguage": "en"}
</script>
</head><body></body></html>`

	meta, ok := Parse(page)
	if !ok {
		t.Fatal("Parse: want ok=true")
	}
	want := Metadata{
		Title:         "Fixture Video",
		UploadDate:    time.Date(2024, 5, 1, 12, 34, 56, 0, time.UTC),
		HasUploadDate: true,
		ViewCount:     1337,
		HasViewCount:  true,
		LikeCount:     250,
		HasLikeCount:  true,
		CommentCount:  17,
		HasComments:   true,
		Language:      "en",
		Keywords:      []string{"innovation", "trend", "video"},
	}
	if diff := pretty.Compare(want, meta); diff != "" {
		t.Errorf("Parse fixture mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLenientIntDigitExtraction(t *testing.T) {
	const page = `<html><head>
<meta property="og:title" content="T">
<meta name="interactioncount" content="UserPlays:1024">
</head><body></body></html>`
	meta, ok := Parse(page)
	if !ok {
		t.Fatal("Parse: want ok=true")
	}
	if meta.ViewCount != 1024 {
		t.Errorf("ViewCount = %d, want 1024", meta.ViewCount)
	}
}
