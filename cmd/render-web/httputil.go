package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/thayquyendau/qd-ai-render/internal/auth"
	"github.com/thayquyendau/qd-ai-render/internal/gen"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func httpError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondGenError translates a generation-path failure into the contract the
// front-end acts on: credential problems carry credential=true and 401 so the
// UI re-prompts for a key; a declined image is its own condition; everything
// else is a plain error with the underlying message attached.
func respondGenError(w http.ResponseWriter, err error) {
	if errors.Is(err, gen.ErrNoImage) {
		respondJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":   "the model returned no image",
			"noImage": true,
		})
		return
	}
	// Raw API failures need classifying first; only then does the
	// credential test see an invalid or revoked key for what it is.
	if auth.IsCredentialError(auth.ClassifyError(err)) {
		respondJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error":      err.Error(),
			"credential": true,
		})
		return
	}
	httpError(w, http.StatusBadGateway, err.Error())
}
