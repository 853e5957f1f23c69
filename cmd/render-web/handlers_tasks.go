package main

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/thayquyendau/qd-ai-render/internal/prompt"
)

// taskConfig is the presentation shape for one render task, served to the
// standalone single-task pages reached by deep link.
type taskConfig struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	UsesMask       bool   `json:"usesMask"`
	TakesReference bool   `json:"takesReference"`
	AutoDescribe   bool   `json:"autoDescribe"`
}

var taskConfigs = map[string]taskConfig{
	prompt.TaskExteriorRender: {
		ID:          prompt.TaskExteriorRender,
		Title:       "Exterior render",
		Description: "Turn a site photo or massing model into a photorealistic exterior",
		UsesMask:    true, TakesReference: true, AutoDescribe: true,
	},
	prompt.TaskInteriorRender: {
		ID:          prompt.TaskInteriorRender,
		Title:       "Interior render",
		Description: "Render an interior from a sketch, photo or empty room",
		UsesMask:    true, TakesReference: true, AutoDescribe: true,
	},
	prompt.TaskFloorplanRender: {
		ID:          prompt.TaskFloorplanRender,
		Title:       "Floorplan to 3D",
		Description: "Lift a 2D floorplan into a rendered 3D overview",
	},
	prompt.TaskColoredFloorplan: {
		ID:          prompt.TaskColoredFloorplan,
		Title:       "Colored floorplan",
		Description: "Produce a presentation-ready colored 2D floorplan",
	},
	prompt.TaskFacadeFromLand: {
		ID:          prompt.TaskFacadeFromLand,
		Title:       "Facade from land",
		Description: "Design a house facade onto an empty plot photo",
	},
	prompt.TaskStaging: {
		ID:          prompt.TaskStaging,
		Title:       "Virtual staging",
		Description: "Furnish an empty room with a chosen style",
		UsesMask:    true, TakesReference: true,
	},
	prompt.TaskUpscale: {
		ID:          prompt.TaskUpscale,
		Title:       "Upscale",
		Description: "Sharpen and enlarge a finished render",
	},
	prompt.TaskAngleVariation: {
		ID:          prompt.TaskAngleVariation,
		Title:       "Camera angle",
		Description: "Re-shoot the same scene from a different camera angle",
	},
}

// GET /api/tasks lists every task config.
// GET /api/tasks?task=<id> returns a single task for a deep link; unknown id is 404.
func handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if id := r.URL.Query().Get("task"); id != "" {
		cfg, ok := taskConfigs[id]
		if !ok {
			httpError(w, http.StatusNotFound, "unknown task: "+id)
			return
		}
		// Deep links also carry the option lists the task's form needs.
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"task":       cfg,
			"houseTypes": prompt.HouseTypes(),
			"styles":     prompt.Styles(),
		})
		return
	}

	configs := make([]taskConfig, 0, len(taskConfigs))
	for _, id := range []string{
		prompt.TaskExteriorRender,
		prompt.TaskInteriorRender,
		prompt.TaskFloorplanRender,
		prompt.TaskColoredFloorplan,
		prompt.TaskFacadeFromLand,
		prompt.TaskStaging,
		prompt.TaskUpscale,
		prompt.TaskAngleVariation,
	} {
		configs = append(configs, taskConfigs[id])
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"tasks": configs})
}

// --- Auto-describe ---

// describeEntry tracks one upload+task describe call so it runs at most once
// per uploaded image per task. A finished entry serves its cached text.
type describeEntry struct {
	done bool
	text string
}

var (
	describeMu      sync.Mutex
	describeEntries = make(map[string]*describeEntry)
)

// POST /api/describe drafts an edit instruction from the uploaded image.
// Skipped when the user already staged a prompt, deduplicated while a call
// is in flight, and cached once answered.
func handleDescribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		UploadID string `json:"uploadId"`
		Task     string `json:"task"`
		Prompt   string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt != "" {
		// A staged prompt is never overwritten.
		respondJSON(w, http.StatusOK, map[string]interface{}{"skipped": true})
		return
	}

	u := getUpload(req.UploadID)
	if u == nil {
		httpError(w, http.StatusNotFound, "unknown upload id")
		return
	}

	key := req.UploadID + "|" + req.Task

	describeMu.Lock()
	entry := describeEntries[key]
	if entry != nil {
		done, text := entry.done, entry.text
		describeMu.Unlock()
		if done {
			respondJSON(w, http.StatusOK, map[string]string{"instruction": text})
			return
		}
		httpError(w, http.StatusConflict, "describe already in flight")
		return
	}
	entry = &describeEntry{}
	describeEntries[key] = entry
	describeMu.Unlock()

	client, err := genClient()
	if err != nil {
		clearDescribe(key)
		respondGenError(w, err)
		return
	}

	text, err := client.Describe(r.Context(), u.Source, req.Task)
	if err != nil {
		clearDescribe(key)
		respondGenError(w, err)
		return
	}

	describeMu.Lock()
	entry.done = true
	entry.text = text
	describeMu.Unlock()

	respondJSON(w, http.StatusOK, map[string]string{"instruction": text})
}

// clearDescribe drops a failed entry so the next attempt can retry.
func clearDescribe(key string) {
	describeMu.Lock()
	delete(describeEntries, key)
	describeMu.Unlock()
}

// GET /api/options?houseType=...&style=... returns derived shape and color lists.
func handleOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	opts := prompt.OptionsFor(r.URL.Query().Get("houseType"), r.URL.Query().Get("style"))
	respondJSON(w, http.StatusOK, opts)
}
