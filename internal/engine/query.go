package engine

import (
	"context"
	"regexp"
	"strings"

	"github.com/scrypster/pictor/pkg/types"
)

// Translator converts a search query into the provider language. The
// translation layer degrades to the original text on any failure.
type Translator interface {
	TranslateForImageSearch(ctx context.Context, text, sourceLang, cacheContext string) string
}

var cyrillicRe = regexp.MustCompile(`[а-яА-ЯёЁ]`)

// DetectLanguage reports "ru" for text containing Cyrillic characters and
// "en" otherwise.
func DetectLanguage(text string) string {
	if cyrillicRe.MatchString(text) {
		return "ru"
	}
	return "en"
}

// stopwords are dropped during keyword extraction. English and Russian
// function words, matching the languages the service is used with.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"of": true, "in": true, "on": true, "at": true, "to": true, "for": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "it": true, "its": true,
	"this": true, "that": true, "these": true, "those": true, "how": true,
	"what": true, "which": true, "who": true, "will": true, "can": true,
	"и": true, "в": true, "во": true, "не": true, "на": true, "с": true,
	"со": true, "как": true, "а": true, "то": true, "все": true, "что": true,
	"для": true, "это": true, "по": true, "к": true, "у": true, "из": true,
	"о": true, "об": true, "от": true, "или": true, "же": true, "бы": true,
}

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// ExtractKeywords pulls up to max significant words from title and content,
// title words first. Stopwords and single characters are dropped.
func ExtractKeywords(title, content string, max int) string {
	if max <= 0 {
		max = 3
	}

	var keywords []string
	seen := make(map[string]bool)
	for _, text := range []string{title, content} {
		for _, word := range wordRe.FindAllString(text, -1) {
			lower := strings.ToLower(word)
			if len([]rune(lower)) < 2 || stopwords[lower] || seen[lower] {
				continue
			}
			seen[lower] = true
			keywords = append(keywords, lower)
			if len(keywords) >= max {
				return strings.Join(keywords, " ")
			}
		}
	}
	return strings.Join(keywords, " ")
}

// QueryBuilder turns a slide into provider-ready search strings.
type QueryBuilder struct {
	translator Translator

	// MaxKeywords bounds keyword extraction (default: 3).
	MaxKeywords int
}

// NewQueryBuilder creates a query builder over the given translator.
func NewQueryBuilder(translator Translator) *QueryBuilder {
	return &QueryBuilder{translator: translator, MaxKeywords: 3}
}

// Primary builds the first search query for a slide under the given mode.
//
// Prompt modes use the LLM-provided image prompt verbatim when present; it
// is assumed to already be search-optimized and in the target language.
// Keyword modes prefer the short search keyword. Both fall back to
// stopword-filtered extraction from title and content, translated when the
// text is not English.
func (q *QueryBuilder) Primary(ctx context.Context, slide types.SlideContext, mode types.SelectionMode) string {
	if mode.UsesPrompt() && slide.ImagePrompt != "" {
		return strings.TrimSpace(slide.ImagePrompt)
	}

	if !mode.UsesPrompt() && slide.SearchKeyword != "" {
		return q.Translated(ctx, strings.TrimSpace(slide.SearchKeyword), slide)
	}

	extracted := ExtractKeywords(slide.Title, slide.Content, q.MaxKeywords)
	if extracted == "" {
		extracted = strings.TrimSpace(slide.Title)
	}
	return q.Translated(ctx, extracted, slide)
}

// Translated returns the query translated into the provider language, or
// the query itself when it is already English or translation is off.
func (q *QueryBuilder) Translated(ctx context.Context, query string, slide types.SlideContext) string {
	if q.translator == nil || query == "" {
		return query
	}

	lang := slide.Language
	if lang == "" {
		lang = DetectLanguage(query)
	}
	if lang == "en" {
		return query
	}
	return q.translator.TranslateForImageSearch(ctx, query, lang, slide.Topic)
}
