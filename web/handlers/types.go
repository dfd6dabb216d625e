// Package handlers provides the HTTP surface of the Pictor service.
package handlers

import (
	"encoding/json"
	"log"
	"net/http"
)

// SlideRequest is one slide in a selection request.
type SlideRequest struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	SearchKeyword string `json:"search_keyword,omitempty"`
	ImagePrompt   string `json:"image_prompt,omitempty"`
}

// SelectRequest asks for one image per slide of a presentation.
type SelectRequest struct {
	Topic            string         `json:"topic"`
	PresentationType string         `json:"presentation_type,omitempty"`
	Language         string         `json:"language,omitempty"`
	UserID           string         `json:"user_id,omitempty"`
	Slides           []SlideRequest `json:"slides"`
}

// SlideResult is the selection outcome for one slide, in request order.
// Fields are null when no suitable unused image was found.
type SlideResult struct {
	ImageURL    *string  `json:"image_url"`
	Query       *string  `json:"query"`
	Similarity  *float64 `json:"similarity"`
	Author      string   `json:"author,omitempty"`
	Source      string   `json:"source,omitempty"`
	Attribution string   `json:"attribution,omitempty"`
	ImageBase64 *string  `json:"image_base64"`
}

// SelectResponse carries per-slide results for a selection request.
type SelectResponse struct {
	RunID  string        `json:"run_id"`
	Slides []SlideResult `json:"slides"`
}

// HealthResponse is the availability snapshot.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Providers   bool   `json:"providers"`
	Translation bool   `json:"translation"`
	Embedding   bool   `json:"embedding"`
	Model       string `json:"model,omitempty"`
}

// StatsResponse reports cache and rate-limit occupancy.
type StatsResponse struct {
	TextCacheEntries      int            `json:"text_cache_entries"`
	ImageCacheEntries     int            `json:"image_cache_entries"`
	TranslationCacheSize  int            `json:"translation_cache_size"`
	ProviderCallsInWindow map[string]int `json:"provider_calls_in_window"`
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// decodeJSON parses a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}
