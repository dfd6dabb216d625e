package handlers

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"

	"github.com/scrypster/pictor/internal/engine"
	"github.com/scrypster/pictor/pkg/types"
)

// Pipeline is the selection engine as seen by the HTTP layer.
type Pipeline interface {
	StartRun(ctx context.Context, userID string) (*engine.Run, error)
	SelectForSlide(ctx context.Context, run *engine.Run, slide types.SlideContext) (*types.Selection, bool)
	FinishRun(ctx context.Context, run *engine.Run)
}

// SelectHandler serves POST /api/v1/presentations/select.
type SelectHandler struct {
	pipeline Pipeline
	hub      *ProgressHub
}

// NewSelectHandler creates the selection handler. hub may be nil.
func NewSelectHandler(pipeline Pipeline, hub *ProgressHub) *SelectHandler {
	return &SelectHandler{pipeline: pipeline, hub: hub}
}

// Select picks one image per slide, strictly in request order, and returns
// per-slide results with nulls for slides that got no image.
func (h *SelectHandler) Select(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}

	var req SelectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if len(req.Slides) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "slides must not be empty")
		return
	}

	ctx := r.Context()
	run, err := h.pipeline.StartRun(ctx, req.UserID)
	if err != nil {
		log.Printf("ERROR: failed to start run: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to start selection run")
		return
	}

	h.emit(ProgressEvent{Type: "run_started", RunID: run.ID(), SlideCount: len(req.Slides)})

	results := make([]SlideResult, len(req.Slides))
	for i, s := range req.Slides {
		slide := types.SlideContext{
			Title:            s.Title,
			Content:          s.Content,
			Topic:            req.Topic,
			PresentationType: req.PresentationType,
			Language:         req.Language,
			SearchKeyword:    s.SearchKeyword,
			ImagePrompt:      s.ImagePrompt,
		}

		sel, ok := h.pipeline.SelectForSlide(ctx, run, slide)
		if !ok {
			results[i] = SlideResult{}
			h.emit(ProgressEvent{Type: "slide_skipped", RunID: run.ID(), SlideIndex: i, SlideTitle: s.Title})
			continue
		}

		encoded := base64.StdEncoding.EncodeToString(sel.ImageData)
		results[i] = SlideResult{
			ImageURL:    &sel.Candidate.URL,
			Query:       &sel.Query,
			Similarity:  &sel.Similarity,
			Author:      sel.Candidate.Author,
			Source:      sel.Candidate.Source,
			Attribution: sel.Candidate.Attribution,
			ImageBase64: &encoded,
		}
		h.emit(ProgressEvent{
			Type:       "slide_selected",
			RunID:      run.ID(),
			SlideIndex: i,
			SlideTitle: s.Title,
			ImageURL:   sel.Candidate.URL,
			Query:      sel.Query,
			Similarity: sel.Similarity,
		})
	}

	h.pipeline.FinishRun(ctx, run)
	h.emit(ProgressEvent{Type: "run_finished", RunID: run.ID(), SlideCount: len(req.Slides)})

	writeJSON(w, http.StatusOK, SelectResponse{RunID: run.ID(), Slides: results})
}

func (h *SelectHandler) emit(event ProgressEvent) {
	if h.hub != nil {
		h.hub.Broadcast(event)
	}
}
