// Package video extracts structured metadata from a video page's HTML: the
// page's JSON-LD VideoObject when present, falling back to <meta> tags and
// <title>. It never fails; pages that yield no usable title simply produce
// no metadata.
package video

import (
	"encoding/json"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Metadata is the structured result of parsing one video page.
type Metadata struct {
	Title         string
	Description   string
	URL           string
	UploadDate    time.Time
	HasUploadDate bool
	AuthorName    string
	AuthorURL     string
	ViewCount     int64
	HasViewCount  bool
	LikeCount     int64
	HasLikeCount  bool
	CommentCount  int64
	HasComments   bool
	Keywords      []string
	Language      string
}

var digitsRE = regexp.MustCompile(`\d+`)
var keywordSplitRE = regexp.MustCompile(`[,;|]`)

// dateLayouts mirrors the feed package's ladder plus the two extra layouts
// the spec's upload-date resolution adds: space-separated and date-only.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05.999999999Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse extracts video metadata from a page's raw HTML. Returns ok=false
// when no title can be resolved from either JSON-LD or meta/title tags —
// the one required field.
func Parse(rawHTML string) (Metadata, bool) {
	jsonLD := extractVideoObject(rawHTML)
	meta, titleTag := extractMetaTags(rawHTML)

	title := firstNonEmpty(
		stringField(jsonLD, "name"),
		meta["og:title"],
		meta["twitter:title"],
		titleTag,
	)
	if title == "" {
		return Metadata{}, false
	}

	description := firstNonEmpty(
		stringField(jsonLD, "description"),
		meta["description"],
		meta["og:description"],
	)

	url := firstNonEmpty(
		stringField(jsonLD, "url"),
		extractURL(fieldValue(jsonLD, "mainEntityOfPage")),
		meta["og:url"],
		meta["twitter:url"],
	)

	var uploadDate time.Time
	hasUploadDate := false
	if t, ok := parseDate(fieldValue(jsonLD, "uploadDate")); ok {
		uploadDate, hasUploadDate = t, true
	} else if t, ok := parseDate(fieldValue(jsonLD, "datePublished")); ok {
		uploadDate, hasUploadDate = t, true
	} else if t, ok := parseDate(meta["uploaddate"]); ok {
		uploadDate, hasUploadDate = t, true
	} else if t, ok := parseDate(meta["article:published_time"]); ok {
		uploadDate, hasUploadDate = t, true
	}

	authorName, authorURL := extractAuthor(fieldValue(jsonLD, "author"))
	if authorName == "" {
		authorName = firstNonEmpty(meta["author"], meta["og:video:actor"])
	}

	var viewCount, likeCount, commentCount int64
	var hasView, hasLike, hasComment bool
	if jsonLD != nil {
		viewCount, hasView = toInt(fieldValue(jsonLD, "viewCount"))
		likeCount, hasLike = toInt(fieldValue(jsonLD, "likeCount"))
		commentCount, hasComment = toInt(fieldValue(jsonLD, "commentCount"))
		if stats, ok := fieldValue(jsonLD, "interactionStatistic").([]interface{}); ok {
			if !hasView {
				viewCount, hasView = extractInteractionCount(stats, "watch")
			}
			if !hasLike {
				likeCount, hasLike = extractInteractionCount(stats, "like")
			}
			if !hasComment {
				commentCount, hasComment = extractInteractionCount(stats, "comment")
			}
		} else if stat, ok := fieldValue(jsonLD, "interactionStatistic").(map[string]interface{}); ok {
			single := []interface{}{stat}
			if !hasView {
				viewCount, hasView = extractInteractionCount(single, "watch")
			}
			if !hasLike {
				likeCount, hasLike = extractInteractionCount(single, "like")
			}
			if !hasComment {
				commentCount, hasComment = extractInteractionCount(single, "comment")
			}
		}
	}
	if !hasView {
		viewCount, hasView = toInt(meta["interactioncount"])
		if !hasView {
			viewCount, hasView = toInt(meta["og:video:views"])
		}
	}
	if !hasLike {
		likeCount, hasLike = toInt(meta["og:video:likes"])
	}
	if !hasComment {
		commentCount, hasComment = toInt(meta["commentcount"])
	}

	keywords := normalizeKeywords(fieldValue(jsonLD, "keywords"))
	if len(keywords) == 0 {
		keywords = normalizeKeywords(meta["keywords"])
	}
	if len(keywords) == 0 {
		keywords = normalizeKeywords(meta["og:video:tag"])
	}

	language := normalizeLanguage(stringField(jsonLD, "inLanguage"))
	if language == "" {
		language = normalizeLanguage(meta["og:locale"])
	}

	return Metadata{
		Title:         title,
		Description:   description,
		URL:           url,
		UploadDate:    uploadDate,
		HasUploadDate: hasUploadDate,
		AuthorName:    authorName,
		AuthorURL:     authorURL,
		ViewCount:     viewCount,
		HasViewCount:  hasView,
		LikeCount:     likeCount,
		HasLikeCount:  hasLike,
		CommentCount:  commentCount,
		HasComments:   hasComment,
		Keywords:      keywords,
		Language:      language,
	}, true
}

// extractVideoObject walks every <script type="application/ld+json"> block
// in document order, JSON-decodes it, and returns the first node (at any
// nesting depth) whose @type ends in "VideoObject". Returns nil if none.
func extractVideoObject(rawHTML string) map[string]interface{} {
	z := html.NewTokenizer(strings.NewReader(rawHTML))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return nil
		}
		if tt != html.StartTagToken {
			continue
		}
		name, hasAttr := z.TagName()
		if string(name) != "script" || !hasAttr {
			continue
		}
		isLD := false
		for {
			key, val, more := z.TagAttr()
			if strings.EqualFold(string(key), "type") && strings.EqualFold(string(val), "application/ld+json") {
				isLD = true
			}
			if !more {
				break
			}
		}
		if !isLD {
			continue
		}
		if z.Next() != html.TextToken {
			continue
		}
		raw := strings.TrimSpace(string(z.Text()))
		if raw == "" {
			continue
		}
		var data interface{}
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			log.Printf("video: json-ld parse error: %v", err)
			continue
		}
		if node := findVideoObject(data); node != nil {
			return node
		}
	}
}

func findVideoObject(node interface{}) map[string]interface{} {
	switch v := node.(type) {
	case map[string]interface{}:
		if isVideoType(v["@type"]) {
			return v
		}
		for _, val := range v {
			if found := findVideoObject(val); found != nil {
				return found
			}
		}
	case []interface{}:
		for _, item := range v {
			if found := findVideoObject(item); found != nil {
				return found
			}
		}
	}
	return nil
}

func isVideoType(t interface{}) bool {
	switch v := t.(type) {
	case string:
		return strings.HasSuffix(strings.ToLower(v), "videoobject")
	case []interface{}:
		for _, item := range v {
			if isVideoType(item) {
				return true
			}
		}
	}
	return false
}

// extractMetaTags tokenizes the page for <meta name|property|itemprop=...
// content=...> tags, keeping only the first value seen per key (first-wins,
// matching the upstream parser), plus the page's <title> text as a fallback.
func extractMetaTags(rawHTML string) (map[string]string, string) {
	meta := make(map[string]string)
	var titleParts []string
	inTitle := false

	z := html.NewTokenizer(strings.NewReader(rawHTML))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			if tag == "meta" && hasAttr {
				attrs := make(map[string]string)
				for {
					key, val, more := z.TagAttr()
					attrs[strings.ToLower(string(key))] = string(val)
					if !more {
						break
					}
				}
				key := firstNonEmpty(attrs["name"], attrs["property"], attrs["itemprop"])
				content := strings.TrimSpace(attrs["content"])
				if key != "" && content != "" {
					keyLower := strings.ToLower(key)
					if _, exists := meta[keyLower]; !exists {
						meta[keyLower] = content
					}
				}
			} else if tag == "title" && tt == html.StartTagToken {
				inTitle = true
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "title" {
				inTitle = false
			}
		case html.TextToken:
			if inTitle {
				if part := strings.TrimSpace(string(z.Text())); part != "" {
					titleParts = append(titleParts, part)
				}
			}
		}
	}
	return meta, strings.Join(titleParts, " ")
}

func extractAuthor(value interface{}) (name, url string) {
	switch v := value.(type) {
	case []interface{}:
		for _, item := range v {
			if n, u := extractAuthor(item); n != "" {
				return n, u
			}
		}
		return "", ""
	case map[string]interface{}:
		n, _ := v["name"].(string)
		return n, extractURL(v["url"])
	case string:
		return v, ""
	}
	return "", ""
}

func extractURL(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]interface{}:
		if id, ok := v["@id"].(string); ok && id != "" {
			return id
		}
		if u, ok := v["url"].(string); ok {
			return u
		}
	}
	return ""
}

func extractInteractionCount(entries []interface{}, target string) (int64, bool) {
	for _, raw := range entries {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		typeName := strings.ToLower(interactionTypeName(entry["interactionType"]))
		if typeName == "" || !strings.Contains(typeName, target) {
			continue
		}
		if n, ok := toInt(entry["userInteractionCount"]); ok {
			return n, true
		}
		if n, ok := toInt(entry["interactionCount"]); ok {
			return n, true
		}
	}
	return 0, false
}

func interactionTypeName(value interface{}) string {
	switch v := value.(type) {
	case map[string]interface{}:
		for _, key := range []string{"@type", "@id", "name"} {
			if s, ok := v[key].(string); ok {
				return s
			}
		}
	case string:
		return v
	}
	return ""
}

func stringField(obj map[string]interface{}, key string) string {
	if obj == nil {
		return ""
	}
	s, _ := obj[key].(string)
	return s
}

func fieldValue(obj map[string]interface{}, key string) interface{} {
	if obj == nil {
		return nil
	}
	return obj[key]
}

func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if s := strings.TrimSpace(c); s != "" {
			return s
		}
	}
	return ""
}

func parseDate(value interface{}) (time.Time, bool) {
	s, ok := value.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func toInt(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case float64:
		return int64(v), true
	case string:
		digits := digitsRE.FindAllString(v, -1)
		if len(digits) == 0 {
			return 0, false
		}
		n, err := strconv.ParseInt(strings.Join(digits, ""), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func normalizeKeywords(value interface{}) []string {
	switch v := value.(type) {
	case string:
		parts := keywordSplitRE.Split(v, -1)
		seen := make(map[string]bool, len(parts))
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
		return out
	case []interface{}:
		seen := make(map[string]bool, len(v))
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				continue
			}
			s = strings.TrimSpace(s)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
		return out
	}
	return nil
}

func normalizeLanguage(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	if i := strings.IndexAny(value, "-_"); i >= 0 {
		value = value[:i]
	}
	return value
}
