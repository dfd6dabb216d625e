// Package types defines the core data structures for the Pictor image
// selection engine: image candidates returned by stock-photo providers,
// the slide context supplied by the content generator, and the selection
// result handed to the rendering layer.
package types

import "time"

// ImageCandidate is one stock photo returned by a provider search.
// Candidates are immutable once fetched; only the chosen URL outlives
// the generation run (as a UsedImageRecord).
type ImageCandidate struct {
	// URL is the download URL for the display-size variant.
	URL string `json:"url"`

	// Author is the photographer name reported by the provider.
	Author string `json:"author"`

	// Source is the provider name ("pexels", "unsplash").
	Source string `json:"source"`

	// Attribution is the provider's required credit line.
	Attribution string `json:"attribution"`

	// Description is the provider's alt text for the photo. May be empty;
	// the matcher falls back to attribution, author, then slide title.
	Description string `json:"description"`
}

// SlideContext is the read-only input for selecting one slide's image.
// It is owned by the caller (the LLM-producing component).
type SlideContext struct {
	Title            string `json:"title"`
	Content          string `json:"content"`
	Topic            string `json:"topic"`
	PresentationType string `json:"presentation_type,omitempty"`
	Language         string `json:"language,omitempty"`

	// SearchKeyword is an optional short LLM-provided keyword phrase
	// (legacy pipeline input).
	SearchKeyword string `json:"search_keyword,omitempty"`

	// ImagePrompt is an optional LLM-provided descriptive prompt, assumed
	// search-engine-optimized and already in the target language
	// (advanced pipeline input).
	ImagePrompt string `json:"image_prompt,omitempty"`
}

// Selection is the outcome of a successful image selection for one slide.
type Selection struct {
	// Candidate is the chosen image.
	Candidate ImageCandidate

	// ImageData holds the downloaded image bytes.
	ImageData []byte

	// Query is the search string that produced the candidate.
	Query string

	// Similarity is the semantic score of the chosen candidate, or 0 when
	// the keyword path selected it without ranking.
	Similarity float64
}

// UsedImageRecord tracks one historical image use for a known user.
// Records exist only to build exclusion lists and are pruned to the
// most recent N per user.
type UsedImageRecord struct {
	UserID   string    `json:"user_id"`
	ImageURL string    `json:"image_url"`
	Query    string    `json:"query"`
	UsedAt   time.Time `json:"used_at"`
}
