package main

import (
	"encoding/json"
	"net/http"

	"github.com/thayquyendau/qd-ai-render/internal/history"
)

// featureStore resolves a feature query value ("exterior", "edit", ...) to
// the render store behind it. The edit list has its own shape and is handled
// separately.
func featureStore(feature string) (*history.Store[history.RenderItem], bool) {
	return renderStoreFor(feature)
}

// GET /api/history?feature=<task> returns the newest-first list for one feature.
// feature=edit returns the masked-edit list.
func handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	feature := r.URL.Query().Get("feature")
	if feature == "edit" {
		respondJSON(w, http.StatusOK, map[string]interface{}{"items": editStore.Items()})
		return
	}

	store, ok := featureStore(feature)
	if !ok {
		httpError(w, http.StatusBadRequest, "unknown feature: "+feature)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"items": store.Items()})
}

// POST /api/history/clear {feature}
func handleHistoryClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Feature string `json:"feature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var err error
	switch {
	case req.Feature == "edit":
		err = editStore.Clear(r.Context())
	default:
		store, ok := featureStore(req.Feature)
		if !ok {
			httpError(w, http.StatusBadRequest, "unknown feature: "+req.Feature)
			return
		}
		err = store.Clear(r.Context())
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// POST /api/history/restore {feature, id} returns a past item for replay.
// History order is untouched; the front-end stages the item's prompt and
// images as the current working state.
func handleHistoryRestore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Feature string `json:"feature"`
		ID      int64  `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Feature == "edit" {
		item, ok := editStore.Find(req.ID)
		if !ok {
			httpError(w, http.StatusNotFound, "history item not found")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"item": item})
		return
	}

	store, ok := featureStore(req.Feature)
	if !ok {
		httpError(w, http.StatusBadRequest, "unknown feature: "+req.Feature)
		return
	}
	item, ok := store.Find(req.ID)
	if !ok {
		httpError(w, http.StatusNotFound, "history item not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"item": item})
}

// --- Virtual tour ---

// tourResponse is the state payload shared by every tour endpoint.
func tourResponse() map[string]interface{} {
	pos, total := tourStore.Position()
	resp := map[string]interface{}{
		"position": pos,
		"total":    total,
		"canUndo":  pos > 0,
		"canRedo":  pos < total-1,
	}
	if frame, ok := tourStore.Current(); ok {
		resp["current"] = frame
	}
	return resp
}

// GET /api/tour
func handleTourState(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		respondJSON(w, http.StatusOK, tourResponse())
	case http.MethodDelete:
		if err := tourStore.Reset(r.Context()); err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, tourResponse())
	default:
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// POST /api/tour/frames {data, mimeType} appends a frame at the cursor.
func handleTourAppend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var frame history.Image
	if err := json.NewDecoder(r.Body).Decode(&frame); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(frame.Data) == 0 || frame.MIMEType == "" {
		httpError(w, http.StatusBadRequest, "frame data and mimeType are required")
		return
	}

	tourStore.Append(r.Context(), frame)
	respondJSON(w, http.StatusOK, tourResponse())
}

// POST /api/tour/undo
func handleTourUndo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	// A no-op undo still returns current state; the front-end just
	// disables the button.
	tourStore.Undo(r.Context())
	respondJSON(w, http.StatusOK, tourResponse())
}

// POST /api/tour/redo
func handleTourRedo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tourStore.Redo(r.Context())
	respondJSON(w, http.StatusOK, tourResponse())
}
