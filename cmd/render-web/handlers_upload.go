package main

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thayquyendau/qd-ai-render/internal/auth"
	"github.com/thayquyendau/qd-ai-render/internal/upload"
)

// POST /api/upload accepts raw image bytes in the body.
func handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, upload.MaxUploadBytes+1))
	if err != nil {
		httpError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	u, err := upload.Process(data)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := "img-" + uuid.NewString()
	putUpload(id, u)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":        id,
		"mimeType":  u.Source.MIMEType,
		"width":     u.Source.Width,
		"height":    u.Source.Height,
		"metadata":  u.Metadata,
		"thumbnail": u.Thumbnail,
	})
}

// POST /api/credentials validates and stores a new API key.
// DELETE /api/credentials forgets the stored key.
func handleCredentials(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			APIKey string `json:"apiKey"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.APIKey == "" {
			httpError(w, http.StatusBadRequest, "apiKey is required")
			return
		}

		if err := connectGemini(r.Context(), req.APIKey); err != nil {
			respondGenError(w, err)
			return
		}
		if err := auth.SaveAPIKey(req.APIKey); err != nil {
			// The key works for this process even if it could not be saved.
			log.Warn().Err(err).Msg("Failed to persist API key")
		}
		respondJSON(w, http.StatusOK, map[string]bool{"valid": true})

	case http.MethodDelete:
		if err := auth.DeleteAPIKey(); err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		genMu.Lock()
		genShared = nil
		genMu.Unlock()
		respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})

	default:
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
