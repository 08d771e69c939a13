package source

import (
	"context"
	"crypto/sha1"
	"fmt"
	"strings"
	"time"

	"github.com/snapetech/trendmonitor/internal/httpclient"
	"github.com/snapetech/trendmonitor/internal/video"
)

// VideoPageSource fetches a single rendered video page and projects its
// metadata to one SourceItem per poll.
type VideoPageSource struct {
	cfg Config
}

func NewVideoPageSource(cfg Config) *VideoPageSource {
	return &VideoPageSource{cfg: cfg}
}

func (s *VideoPageSource) Name() string { return s.cfg.Name }

func (s *VideoPageSource) Fetch(ctx context.Context) (FetchResult, error) {
	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	headers := map[string]string{"User-Agent": userAgent}
	res, err := httpclient.Get(ctx, nil, s.cfg.URL, headers, timeout)
	if err != nil {
		return FetchResult{}, err
	}
	if res.Status == 304 {
		return FetchResult{NotModified: true}, nil
	}

	meta, ok := video.Parse(string(res.Body))
	if !ok {
		return FetchResult{}, &SourceError{URL: s.cfg.URL, Err: fmt.Errorf("no video metadata found")}
	}

	title := meta.Title
	if title == "" {
		title = s.cfg.Name
	}
	itemURL := meta.URL
	if itemURL == "" {
		itemURL = s.cfg.URL
	}

	published := time.Now().UTC()
	if s.cfg.UseUploadDateAsPublished && meta.HasUploadDate {
		published = meta.UploadDate
	}

	language := meta.Language
	if language == "" {
		language = s.cfg.Language
	}

	item := Item{
		ID:        videoItemID(itemURL, meta),
		Title:     title,
		URL:       itemURL,
		Published: published,
		Summary:   videoSummary(meta, s.cfg.SummaryDescriptionLimit),
		Language:  language,
	}

	return FetchResult{Items: []Item{item}, Headers: map[string][]string(res.Headers)}, nil
}

func videoItemID(itemURL string, meta video.Metadata) string {
	uploadISO := ""
	if meta.HasUploadDate {
		uploadISO = meta.UploadDate.UTC().Format(time.RFC3339)
	}
	raw := fmt.Sprintf("%s|%s|%d|%d|%d", itemURL, uploadISO, meta.ViewCount, meta.LikeCount, meta.CommentCount)
	sum := sha1.Sum([]byte(raw))
	return fmt.Sprintf("video:%x", sum)
}

const defaultSummaryDescriptionLimit = 280

// videoSummary builds the pipe-joined, UI-localised summary line: author,
// view/like/comment counts, upload timestamp, first five keywords, and a
// truncated description.
func videoSummary(meta video.Metadata, descLimit int) string {
	if descLimit <= 0 {
		descLimit = defaultSummaryDescriptionLimit
	}
	var parts []string

	if meta.AuthorName != "" {
		parts = append(parts, "автор: "+meta.AuthorName)
	}
	if meta.HasViewCount {
		parts = append(parts, fmt.Sprintf("просмотры: %d", meta.ViewCount))
	}
	if meta.HasLikeCount {
		parts = append(parts, fmt.Sprintf("лайки: %d", meta.LikeCount))
	}
	if meta.HasComments {
		parts = append(parts, fmt.Sprintf("комментарии: %d", meta.CommentCount))
	}
	if meta.HasUploadDate {
		parts = append(parts, meta.UploadDate.Format("2006-01-02 15:04"))
	}
	if len(meta.Keywords) > 0 {
		n := len(meta.Keywords)
		if n > 5 {
			n = 5
		}
		parts = append(parts, strings.Join(meta.Keywords[:n], ", "))
	}
	if meta.Description != "" {
		desc := meta.Description
		runes := []rune(desc)
		if len(runes) > descLimit {
			desc = string(runes[:descLimit]) + "…"
		}
		parts = append(parts, desc)
	}

	return strings.Join(parts, " | ")
}
