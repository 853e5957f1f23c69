package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/thayquyendau/qd-ai-render/internal/gen"
	"github.com/thayquyendau/qd-ai-render/internal/history"
	"github.com/thayquyendau/qd-ai-render/internal/imaging"
	"github.com/thayquyendau/qd-ai-render/internal/material"
	"github.com/thayquyendau/qd-ai-render/internal/prompt"
	"github.com/thayquyendau/qd-ai-render/internal/upload"
)

// generateRequest is the shared request shape for render tasks. Instruction
// wins when set; otherwise the task template (or the facade builder) supplies
// the prompt.
type generateRequest struct {
	UploadID    string             `json:"uploadId"`
	Task        string             `json:"task"`
	Instruction string             `json:"instruction"`
	ReferenceID string             `json:"referenceId,omitempty"`
	Count       int                `json:"count"`
	HighQuality bool               `json:"highQuality"`
	AspectRatio string             `json:"aspectRatio"`
	Room        string             `json:"room,omitempty"`
	Items       string             `json:"items,omitempty"`
	Angle       string             `json:"angle,omitempty"`
	Facade      *prompt.FacadeSpec `json:"facade,omitempty"`
	Tier        *material.Option   `json:"materialTier,omitempty"`
}

// instruction resolves the final prompt text for the request.
func (req *generateRequest) instruction() string {
	if req.Instruction != "" {
		return req.Instruction
	}
	if req.Task == prompt.TaskFacadeFromLand && req.Facade != nil {
		spec := *req.Facade
		if req.Tier != nil {
			spec = material.FacadeSpecFrom(spec, *req.Tier)
		}
		return prompt.BuildFacade(spec)
	}
	return prompt.ForTask(req.Task, prompt.TaskData{
		Room:  req.Room,
		Items: req.Items,
		Angle: req.Angle,
	})
}

// resolveReference looks up the optional reference image.
func resolveReference(id string) *imaging.SourceImage {
	if id == "" {
		return nil
	}
	if ref := getUpload(id); ref != nil {
		return ref.Source
	}
	return nil
}

// POST /api/generate starts an async render fan-out and returns a job id.
func handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u := getUpload(req.UploadID)
	if u == nil {
		httpError(w, http.StatusNotFound, "unknown upload id")
		return
	}
	store, ok := renderStoreFor(req.Task)
	if !ok {
		httpError(w, http.StatusBadRequest, "unknown task: "+req.Task)
		return
	}

	client, err := genClient()
	if err != nil {
		respondGenError(w, err)
		return
	}

	if req.Count <= 0 {
		req.Count = 1
	}
	instruction := req.instruction()
	ref := resolveReference(req.ReferenceID)

	job := newJob(req.Task)
	go runGenerateJob(job, client, u, instruction, ref, gen.Options{
		Count:       req.Count,
		HighQuality: req.HighQuality,
		AspectRatio: req.AspectRatio,
	}, store)

	respondJSON(w, http.StatusAccepted, map[string]string{"id": job.id})
}

func runGenerateJob(job *renderJob, client *gen.Client, u *upload.Upload, instruction string, ref *imaging.SourceImage, opts gen.Options, store *history.Store[history.RenderItem]) {
	job.setProcessing()

	results, err := client.Generate(context.Background(), u.Source, instruction, ref, opts)
	if err != nil {
		log.Error().Err(err).Str("job", job.id).Msg("Generation job failed")
		job.fail(err)
		return
	}
	if len(results) == 0 {
		job.fail(gen.ErrNoImage)
		return
	}

	images := make([]jobImage, len(results))
	item := history.RenderItem{
		ID:        history.NewItemID(),
		Timestamp: history.Timestamp(),
		Prompt:    instruction,
		Images:    make([]history.Image, len(results)),
	}
	for i, res := range results {
		images[i] = jobImage{Data: res.Data, MIMEType: res.MIMEType}
		item.Images[i] = history.Image{Data: res.Data, MIMEType: res.MIMEType}
	}

	store.Record(context.Background(), item)
	job.complete(images)
}

// editRequest carries a masked-edit submission. The stroke layer is required;
// an empty layer means no region was selected and the request is rejected.
type editRequest struct {
	UploadID    string              `json:"uploadId"`
	Strokes     imaging.StrokeLayer `json:"strokes"`
	Instruction string              `json:"instruction"`
	ReferenceID string              `json:"referenceId,omitempty"`
	HighQuality bool                `json:"highQuality"`
}

// POST /api/edit starts an async masked edit and returns a job id.
func handleEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Strokes.IsEmpty() {
		httpError(w, http.StatusBadRequest, "paint the region to edit first")
		return
	}
	if req.Instruction == "" {
		httpError(w, http.StatusBadRequest, "instruction is required")
		return
	}

	u := getUpload(req.UploadID)
	if u == nil {
		httpError(w, http.StatusNotFound, "unknown upload id")
		return
	}

	client, err := genClient()
	if err != nil {
		respondGenError(w, err)
		return
	}

	mask, err := imaging.ComposeMask(req.Strokes, u.Source.Width, u.Source.Height)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	maskPNG, err := imaging.EncodeMaskPNG(mask)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ref := resolveReference(req.ReferenceID)

	job := newJob("edit")
	go runEditJob(job, client, u, maskPNG, ref, req.Instruction, req.HighQuality)

	respondJSON(w, http.StatusAccepted, map[string]string{"id": job.id})
}

func runEditJob(job *renderJob, client *gen.Client, u *upload.Upload, maskPNG []byte, ref *imaging.SourceImage, instruction string, highQuality bool) {
	job.setProcessing()

	results, err := client.EditMasked(context.Background(), u.Source, maskPNG, ref, instruction, gen.Options{
		Count:       1,
		HighQuality: highQuality,
	})
	if err != nil {
		log.Error().Err(err).Str("job", job.id).Msg("Edit job failed")
		job.fail(err)
		return
	}
	if len(results) == 0 {
		job.fail(gen.ErrNoImage)
		return
	}

	res := results[0]
	editStore.Record(context.Background(), history.EditItem{
		ID:        history.NewItemID(),
		Timestamp: history.Timestamp(),
		Prompt:    instruction,
		Source:    history.Image{Data: u.Source.Data, MIMEType: u.Source.MIMEType},
		Mask:      history.Image{Data: maskPNG, MIMEType: imaging.MaskMIMEType},
		Result:    history.Image{Data: res.Data, MIMEType: res.MIMEType},
	})
	job.complete([]jobImage{{Data: res.Data, MIMEType: res.MIMEType}})
}

// POST /api/materials runs a synchronous material tier suggestion.
func handleMaterials(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		UploadID string `json:"uploadId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u := getUpload(req.UploadID)
	if u == nil {
		httpError(w, http.StatusNotFound, "unknown upload id")
		return
	}
	client, err := genClient()
	if err != nil {
		respondGenError(w, err)
		return
	}

	options, err := material.Suggest(r.Context(), client, u.Source)
	if err != nil {
		respondGenError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"options": options})
}
