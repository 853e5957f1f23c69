package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thayquyendau/qd-ai-render/internal/auth"
	"github.com/thayquyendau/qd-ai-render/internal/gen"
	"github.com/thayquyendau/qd-ai-render/internal/history"
	"github.com/thayquyendau/qd-ai-render/internal/prompt"
	"github.com/thayquyendau/qd-ai-render/internal/upload"
)

// --- Gemini client ---

// The client is swapped when the UI saves a new credential, so every access
// goes through genClient().
var (
	genMu     sync.Mutex
	genShared *gen.Client
)

// genClient returns the current client, or a credential error when no valid
// key has been configured yet.
func genClient() (*gen.Client, error) {
	genMu.Lock()
	defer genMu.Unlock()
	if genShared == nil {
		return nil, &auth.ValidationError{
			Type:    auth.ErrTypeNoKey,
			Message: "no API key configured",
		}
	}
	return genShared, nil
}

// connectGemini builds and validates a client for key, then installs it.
func connectGemini(ctx context.Context, key string) error {
	client, err := gen.NewClient(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if err := auth.ValidateAPIKey(ctx, client.Raw()); err != nil {
		return err
	}

	genMu.Lock()
	genShared = client
	genMu.Unlock()
	log.Info().Msg("Gemini client connected")
	return nil
}

// --- History stores ---

// taskHistoryKeys maps render task ids to their history feature keys. Tasks
// not listed here (masked edits, the tour) have dedicated stores.
var taskHistoryKeys = map[string]string{
	prompt.TaskExteriorRender:   history.KeyExterior,
	prompt.TaskInteriorRender:   history.KeyInterior,
	prompt.TaskFacadeFromLand:   history.KeyFacade,
	prompt.TaskFloorplanRender:  history.KeyPlanning,
	prompt.TaskColoredFloorplan: history.KeyPlanning,
	prompt.TaskStaging:          history.KeyStaging,
	prompt.TaskUpscale:          history.KeyUpscale,
	prompt.TaskAngleVariation:   history.KeyUpscale,
}

var (
	renderStores map[string]*history.Store[history.RenderItem]
	editStore    *history.Store[history.EditItem]
	tourStore    *history.Tour
)

// initStores hydrates every feature list from the KV at startup. A backend
// read failure leaves that feature empty rather than aborting startup.
func initStores(ctx context.Context, kv history.KV) {
	renderStores = make(map[string]*history.Store[history.RenderItem])
	for _, key := range []string{
		history.KeyExterior,
		history.KeyInterior,
		history.KeyFacade,
		history.KeyPlanning,
		history.KeyStaging,
		history.KeyUpscale,
	} {
		store := history.NewRenderStore(kv, key)
		if err := store.Load(ctx); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to load history, starting empty")
		}
		renderStores[key] = store
	}

	editStore = history.NewEditStore(kv)
	if err := editStore.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to load edit history, starting empty")
	}

	tourStore = history.NewTour(kv)
	if err := tourStore.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to load tour, starting empty")
	}
}

// renderStoreFor resolves the history list backing a task id.
func renderStoreFor(task string) (*history.Store[history.RenderItem], bool) {
	key, ok := taskHistoryKeys[task]
	if !ok {
		return nil, false
	}
	return renderStores[key], true
}

// --- Uploaded images ---

// Uploads live in memory for the life of the server process. The browser
// re-uploads after a restart, matching a page reload.
var (
	uploadsMu sync.Mutex
	uploads   = make(map[string]*upload.Upload)
)

func putUpload(id string, u *upload.Upload) {
	uploadsMu.Lock()
	uploads[id] = u
	uploadsMu.Unlock()
}

func getUpload(id string) *upload.Upload {
	uploadsMu.Lock()
	defer uploadsMu.Unlock()
	return uploads[id]
}
