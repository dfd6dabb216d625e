package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/scrypster/pictor/internal/engine"
	"github.com/scrypster/pictor/pkg/types"
)

// fakePipeline selects a numbered image for every slide whose title is not
// in the skip set.
type fakePipeline struct {
	skip      map[string]bool
	started   []string
	finished  int
	selected  []types.SlideContext
	nextIndex int
}

func (p *fakePipeline) StartRun(ctx context.Context, userID string) (*engine.Run, error) {
	p.started = append(p.started, userID)
	return engine.NewRun(ctx, nil, userID, 100)
}

func (p *fakePipeline) SelectForSlide(ctx context.Context, run *engine.Run, slide types.SlideContext) (*types.Selection, bool) {
	p.selected = append(p.selected, slide)
	if p.skip[slide.Title] {
		return nil, false
	}
	p.nextIndex++
	return &types.Selection{
		Candidate: types.ImageCandidate{
			URL:    "https://img.example/" + slide.Title + ".jpg",
			Author: "Ana",
			Source: "pexels",
		},
		ImageData:  []byte("jpegdata"),
		Query:      "query for " + slide.Title,
		Similarity: 0.5,
	}, true
}

func (p *fakePipeline) FinishRun(ctx context.Context, run *engine.Run) {
	p.finished++
}

func postSelect(t *testing.T, h *SelectHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/presentations/select", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Select(w, req)
	return w
}

func TestSelectReturnsResultsInSlideOrder(t *testing.T) {
	pipeline := &fakePipeline{}
	h := NewSelectHandler(pipeline, nil)

	w := postSelect(t, h, `{
		"topic": "Oceans",
		"user_id": "user-1",
		"slides": [
			{"title": "Waves", "content": "How tides form"},
			{"title": "Currents", "content": "Gulf stream"}
		]
	}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp SelectResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.RunID == "" {
		t.Error("run_id missing")
	}
	if len(resp.Slides) != 2 {
		t.Fatalf("got %d slide results, want 2", len(resp.Slides))
	}
	if *resp.Slides[0].ImageURL != "https://img.example/Waves.jpg" {
		t.Errorf("slide 0 url = %s", *resp.Slides[0].ImageURL)
	}
	if *resp.Slides[1].ImageURL != "https://img.example/Currents.jpg" {
		t.Errorf("slide 1 url = %s", *resp.Slides[1].ImageURL)
	}
	if resp.Slides[0].ImageBase64 == nil || *resp.Slides[0].ImageBase64 == "" {
		t.Error("image_base64 missing")
	}
	if pipeline.finished != 1 {
		t.Errorf("FinishRun calls = %d, want 1", pipeline.finished)
	}

	// Slide contexts must carry the request topic.
	for _, s := range pipeline.selected {
		if s.Topic != "Oceans" {
			t.Errorf("slide topic = %q, want Oceans", s.Topic)
		}
	}
}

func TestSelectSkippedSlideHasNullFields(t *testing.T) {
	pipeline := &fakePipeline{skip: map[string]bool{"Empty": true}}
	h := NewSelectHandler(pipeline, nil)

	w := postSelect(t, h, `{"topic": "T", "slides": [{"title": "Empty"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp SelectResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	s := resp.Slides[0]
	if s.ImageURL != nil || s.Query != nil || s.Similarity != nil || s.ImageBase64 != nil {
		t.Errorf("skipped slide fields not null: %+v", s)
	}
}

func TestSelectRejectsEmptySlides(t *testing.T) {
	h := NewSelectHandler(&fakePipeline{}, nil)

	w := postSelect(t, h, `{"topic": "T", "slides": []}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSelectRejectsInvalidJSON(t *testing.T) {
	h := NewSelectHandler(&fakePipeline{}, nil)

	w := postSelect(t, h, `{"topic": `)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSelectRejectsGet(t *testing.T) {
	h := NewSelectHandler(&fakePipeline{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/presentations/select", nil)
	w := httptest.NewRecorder()
	h.Select(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestSelectBroadcastsProgress(t *testing.T) {
	hub := NewProgressHub()
	go hub.Run()
	defer hub.Stop()

	client := &testClient{ch: make(chan []byte, 16)}
	hub.Register(client)

	pipeline := &fakePipeline{}
	h := NewSelectHandler(pipeline, hub)

	w := postSelect(t, h, `{"topic": "T", "slides": [{"title": "Waves"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	wantTypes := []string{"run_started", "slide_selected", "run_finished"}
	for _, want := range wantTypes {
		data := <-client.ch
		var event ProgressEvent
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("invalid event JSON: %v", err)
		}
		if event.Type != want {
			t.Errorf("event type = %q, want %q", event.Type, want)
		}
	}
}
