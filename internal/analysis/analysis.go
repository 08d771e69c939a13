// Package analysis turns raw source items into ranked, time-decayed
// keyword trends: language detection, tokenisation, language-specific
// normalisation, and scoring.
package analysis

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/snapetech/trendmonitor/internal/source"
)

// Trend is the scored output for one keyword: its weight and the distinct
// items (in first-occurrence order) that contributed to it.
type Trend struct {
	Keyword string
	Score   float64
	Items   []source.Item
}

var wordRE = regexp.MustCompile(`[\p{L}\p{N}_\-']{3,}`)

var stopwordsEN = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"that": true, "this": true, "have": true, "your": true, "about": true,
	"into": true, "after": true, "will": true, "trend": true, "news": true,
}

var stopwordsRU = map[string]bool{
	"это": true, "как": true, "так": true, "она": true, "они": true,
	"или": true, "если": true, "чтобы": true, "когда": true, "будет": true,
	"которые": true, "также": true, "тренд": true, "новости": true,
}

var defaultStopwords = unionStopwords()

func unionStopwords() map[string]bool {
	out := make(map[string]bool, len(stopwordsEN)+len(stopwordsRU)+2)
	for k := range stopwordsEN {
		out[k] = true
	}
	for k := range stopwordsRU {
		out[k] = true
	}
	out["новое"] = true
	out["new"] = true
	return out
}

func stopwordsFor(language string) map[string]bool {
	switch language {
	case "en":
		return stopwordsEN
	case "ru":
		return stopwordsRU
	default:
		return defaultStopwords
	}
}

// enSuffixes is the ordered suffix-stripping list for English normalisation.
var enSuffixes = []string{
	"ingly", "ously", "ations", "ation", "ments", "ment",
	"ings", "ing", "ers", "er", "ed", "ies", "s",
}

// ruSuffixes is the ordered suffix-stripping list for Russian normalisation.
var ruSuffixes = []string{
	"иями", "ями", "ами", "ов", "ев", "ых", "их", "ым", "им",
	"ах", "ях", "ый", "ий", "ое", "ая", "ые", "ие", "ии", "ую",
	"ешь", "ешься", "ете", "етеся",
}

// DetectLanguage classifies text as "ru", "en", or "other" by comparing
// Latin and Cyrillic letter counts. Empty input is "other".
func DetectLanguage(text string) string {
	if text == "" {
		return "other"
	}
	var latin, cyrillic int
	for _, r := range text {
		lower := unicodeToLower(r)
		switch {
		case lower >= 'a' && lower <= 'z':
			latin++
		case (lower >= 'а' && lower <= 'я') || lower == 'ё':
			cyrillic++
		}
	}
	if cyrillic > 0 && float64(cyrillic) >= float64(latin)*1.2 {
		return "ru"
	}
	if latin > 0 && float64(latin) >= float64(cyrillic)*1.2 {
		return "en"
	}
	return "other"
}

func unicodeToLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	if r >= 'А' && r <= 'Я' {
		return r + ('а' - 'А')
	}
	if r == 'Ё' {
		return 'ё'
	}
	return r
}

// ExtractKeywords tokenises text (Unicode-aware, lower-cased), normalises
// each token for the given language (detected from text if language is
// empty), and drops stopwords and anything too short after normalisation.
func ExtractKeywords(text string, language string) []string {
	if text == "" {
		return nil
	}
	if language == "" {
		language = DetectLanguage(text)
	}
	lower := strings.ToLower(text)
	raw := wordRE.FindAllString(lower, -1)
	stopwords := stopwordsFor(language)

	out := make([]string, 0, len(raw))
	for _, token := range raw {
		normalized := normalizeToken(token, language)
		if normalized == "" || len(normalized) <= 2 {
			continue
		}
		if stopwords[normalized] {
			continue
		}
		out = append(out, normalized)
	}
	return out
}

func normalizeToken(token string, language string) string {
	token = strings.Trim(token, "-'\"")
	token = norm.NFKC.String(token)
	if token == "" {
		return ""
	}
	switch language {
	case "en":
		return normalizeEN(token)
	case "ru":
		return normalizeRU(token)
	default:
		return token
	}
}

func normalizeEN(token string) string {
	switch {
	case strings.HasSuffix(token, "'s"):
		token = token[:len(token)-2]
	case strings.HasSuffix(token, "'"):
		token = token[:len(token)-1]
	}
	if strings.HasSuffix(token, "ies") && len(token) > 4 {
		token = token[:len(token)-3] + "y"
	}
	if strings.HasSuffix(token, "sses") && len(token) > 4 {
		token = token[:len(token)-2]
	}
	for _, suffix := range enSuffixes {
		if strings.HasSuffix(token, suffix) && len(token)-len(suffix) >= 3 {
			token = token[:len(token)-len(suffix)]
			break
		}
	}
	if len(token) > 3 && strings.HasSuffix(token, "nn") {
		token = token[:len(token)-1]
	}
	return token
}

func normalizeRU(token string) string {
	runes := []rune(token)
	for _, suffix := range ruSuffixes {
		suffixRunes := []rune(suffix)
		if len(runes) >= len(suffixRunes) && string(runes[len(runes)-len(suffixRunes):]) == suffix {
			if len(runes)-len(suffixRunes) >= 3 {
				runes = runes[:len(runes)-len(suffixRunes)]
			}
			break
		}
	}
	token = string(runes)
	return strings.TrimRight(token, "ьй")
}

// keywordAccum tracks one keyword's running score and distinct contributing
// items, in first-occurrence order.
type keywordAccum struct {
	score float64
	items []source.Item
}

func containsItem(items []source.Item, item source.Item) bool {
	for _, existing := range items {
		if existing == item {
			return true
		}
	}
	return false
}

// ScoreTrends computes time-decayed keyword scores over items. decayHours
// == 0 pins the base weight to 1 (no decay) rather than dividing by zero.
// Trends are returned in descending score order, ties broken by the order
// the keyword was first encountered.
func ScoreTrends(items []source.Item, now time.Time, decayHours, titleWeight, summaryWeight float64) []Trend {
	order := make([]string, 0)
	accum := make(map[string]*keywordAccum)
	decaySeconds := math.Max(decayHours, 0) * 3600

	for _, item := range items {
		language := item.Language
		if language == "" {
			language = DetectLanguage(item.Title + " " + item.Summary)
		}
		titleKeywords := ExtractKeywords(item.Title, language)
		summaryKeywords := ExtractKeywords(item.Summary, language)
		if len(titleKeywords) == 0 && len(summaryKeywords) == 0 {
			continue
		}

		age := math.Max(now.Sub(item.Published).Seconds(), 0)
		var baseWeight float64
		if decaySeconds > 0 {
			baseWeight = math.Exp(-age / decaySeconds)
		} else {
			baseWeight = 1.0
		}

		accrue := func(keywords []string, weight float64) {
			w := math.Max(weight, 0)
			for _, kw := range keywords {
				a, ok := accum[kw]
				if !ok {
					a = &keywordAccum{}
					accum[kw] = a
					order = append(order, kw)
				}
				a.score += baseWeight * w
				if !containsItem(a.items, item) {
					a.items = append(a.items, item)
				}
			}
		}
		accrue(titleKeywords, titleWeight)
		accrue(summaryKeywords, summaryWeight)
	}

	trends := make([]Trend, 0, len(order))
	for _, kw := range order {
		a := accum[kw]
		trends = append(trends, Trend{
			Keyword: kw,
			Score:   math.Round(a.score*1000) / 1000,
			Items:   a.items,
		})
	}
	sort.SliceStable(trends, func(i, j int) bool {
		return trends[i].Score > trends[j].Score
	})
	return trends
}
