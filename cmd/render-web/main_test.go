package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/thayquyendau/qd-ai-render/internal/history"
	"github.com/thayquyendau/qd-ai-render/internal/upload"
)

// setupState wires the package-level stores to a fresh in-memory backend.
func setupState(t *testing.T) {
	t.Helper()
	initStores(context.Background(), history.NewMemKV(0))

	genMu.Lock()
	genShared = nil
	genMu.Unlock()

	uploadsMu.Lock()
	uploads = make(map[string]*upload.Upload)
	uploadsMu.Unlock()
}

func pngFixture(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 120, B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	return buf.Bytes()
}

// uploadFixture posts a PNG and returns its upload id.
func uploadFixture(t *testing.T) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewReader(pngFixture(t, 40, 30)))
	rec := httptest.NewRecorder()
	handleUpload(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload failed: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode upload response: %v", err)
	}
	return resp.ID
}

func TestHandleUpload_RejectsNonImage(t *testing.T) {
	setupState(t)

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("plain text"))
	rec := httptest.NewRecorder()
	handleUpload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-image body, got %d", rec.Code)
	}
}

func TestHandleUpload_ReturnsDimensions(t *testing.T) {
	setupState(t)

	req := httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewReader(pngFixture(t, 40, 30)))
	rec := httptest.NewRecorder()
	handleUpload(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID       string `json:"id"`
		MIMEType string `json:"mimeType"`
		Width    int    `json:"width"`
		Height   int    `json:"height"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID == "" || resp.MIMEType != "image/png" || resp.Width != 40 || resp.Height != 30 {
		t.Errorf("unexpected upload response: %+v", resp)
	}
}

func TestHandleEdit_RejectsEmptyStrokeLayer(t *testing.T) {
	setupState(t)
	id := uploadFixture(t)

	body := `{"uploadId":"` + id + `","strokes":{"displayWidth":400,"displayHeight":300,"strokes":[]},"instruction":"make it red"}`
	req := httptest.NewRequest(http.MethodPost, "/api/edit", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handleEdit(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty stroke layer, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleGenerate_NoCredentialIs401(t *testing.T) {
	setupState(t)
	id := uploadFixture(t)

	body := `{"uploadId":"` + id + `","task":"exterior","count":2}`
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handleGenerate(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a configured key, got %d", rec.Code)
	}
	var resp struct {
		Credential bool `json:"credential"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Credential {
		t.Error("credential failures must carry credential=true")
	}
}

func TestHandleGenerate_UnknownTaskIs400(t *testing.T) {
	setupState(t)
	id := uploadFixture(t)

	body := `{"uploadId":"` + id + `","task":"paint-the-moon"}`
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handleGenerate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown task, got %d", rec.Code)
	}
}

func TestHandleTasks_DeepLink(t *testing.T) {
	setupState(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks?task=exterior", nil)
	rec := httptest.NewRecorder()
	handleTasks(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a known task, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/tasks?task=nope", nil)
	rec = httptest.NewRecorder()
	handleTasks(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown task, got %d", rec.Code)
	}
}

func TestHandleHistory_ListClearRestore(t *testing.T) {
	setupState(t)
	ctx := context.Background()

	store := renderStores[history.KeyExterior]
	store.Record(ctx, history.RenderItem{
		ID:     77,
		Prompt: "render",
		Images: []history.Image{{Data: []byte("px"), MIMEType: "image/png"}},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/history?feature=exterior", nil)
	rec := httptest.NewRecorder()
	handleHistoryList(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":77`) {
		t.Fatalf("list did not return the recorded item: %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/history/restore", strings.NewReader(`{"feature":"exterior","id":77}`))
	rec = httptest.NewRecorder()
	handleHistoryRestore(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("restore failed: %d %s", rec.Code, rec.Body.String())
	}
	// Restore must not reorder or remove anything.
	if store.Len() != 1 {
		t.Error("restore must leave history untouched")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/history/clear", strings.NewReader(`{"feature":"exterior"}`))
	rec = httptest.NewRecorder()
	handleHistoryClear(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear failed: %d %s", rec.Code, rec.Body.String())
	}
	if store.Len() != 0 {
		t.Error("clear must empty the feature list")
	}
}

func TestHandleHistory_UnknownFeature(t *testing.T) {
	setupState(t)

	req := httptest.NewRequest(http.MethodGet, "/api/history?feature=sandcastles", nil)
	rec := httptest.NewRecorder()
	handleHistoryList(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown feature, got %d", rec.Code)
	}
}

func TestHandleTour_AppendUndoRedo(t *testing.T) {
	setupState(t)

	appendFrame := func(payload string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/tour/frames", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		handleTourAppend(rec, req)
		return rec
	}

	if rec := appendFrame(`{"data":"cHg=","mimeType":"image/png"}`); rec.Code != http.StatusOK {
		t.Fatalf("append failed: %d %s", rec.Code, rec.Body.String())
	}
	if rec := appendFrame(`{"data":"cHg=","mimeType":"image/png"}`); rec.Code != http.StatusOK {
		t.Fatalf("append failed: %d %s", rec.Code, rec.Body.String())
	}
	if rec := appendFrame(`{"data":""}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an empty frame, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/tour/undo", nil)
	rec := httptest.NewRecorder()
	handleTourUndo(rec, req)
	var state struct {
		Position int  `json:"position"`
		Total    int  `json:"total"`
		CanUndo  bool `json:"canUndo"`
		CanRedo  bool `json:"canRedo"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("failed to decode tour state: %v", err)
	}
	if state.Position != 0 || state.Total != 2 || state.CanUndo || !state.CanRedo {
		t.Errorf("unexpected tour state after undo: %+v", state)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/tour/redo", nil)
	rec = httptest.NewRecorder()
	handleTourRedo(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("failed to decode tour state: %v", err)
	}
	if state.Position != 1 || state.CanRedo {
		t.Errorf("unexpected tour state after redo: %+v", state)
	}
}

func TestHandleDescribe_SkipsWhenPromptStaged(t *testing.T) {
	setupState(t)
	id := uploadFixture(t)

	body := `{"uploadId":"` + id + `","task":"exterior","prompt":"already written"}`
	req := httptest.NewRequest(http.MethodPost, "/api/describe", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handleDescribe(rec, req)

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"skipped":true`) {
		t.Errorf("a staged prompt must skip the describe call: %d %s", rec.Code, rec.Body.String())
	}
}

func TestJobFail_RevokedKeySetsCredential(t *testing.T) {
	setupState(t)

	// A key revoked mid-session surfaces as a wrapped API error from the
	// generation fan-out, not as a pre-built ValidationError.
	job := newJob("exterior")
	job.fail(fmt.Errorf("all 4 generation slots failed: %w",
		&genai.APIError{Code: 401, Message: "API key not valid. Please pass a valid API key."}))

	job.mu.Lock()
	defer job.mu.Unlock()
	if job.status != jobFailed {
		t.Fatalf("expected status %q, got %q", jobFailed, job.status)
	}
	if !job.credential {
		t.Error("an invalid-key generation failure must set credential=true so the UI re-prompts for a key")
	}
}

func TestJobFail_QuotaErrorIsNotCredential(t *testing.T) {
	setupState(t)

	job := newJob("interior")
	job.fail(fmt.Errorf("all 2 generation slots failed: %w",
		&genai.APIError{Code: 429, Message: "rate limit exceeded"}))

	job.mu.Lock()
	defer job.mu.Unlock()
	if job.credential {
		t.Error("a rate-limit failure must not reopen the credential prompt")
	}
}

func TestRespondGenError_RevokedKeyIs401(t *testing.T) {
	rec := httptest.NewRecorder()
	respondGenError(rec, fmt.Errorf("describe failed: %w",
		&genai.APIError{Code: 403, Message: "permission denied"}))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a revoked key, got %d", rec.Code)
	}
	var resp struct {
		Credential bool `json:"credential"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Credential {
		t.Error("credential failures must carry credential=true")
	}
}

func TestHandleJobStatus_UnknownJob(t *testing.T) {
	setupState(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/job-missing", nil)
	rec := httptest.NewRecorder()
	handleJobStatus(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", rec.Code)
	}
}
