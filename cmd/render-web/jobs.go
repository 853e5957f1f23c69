package main

import (
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/thayquyendau/qd-ai-render/internal/auth"
)

// --- Generation job management ---

// Job statuses, polled by the front-end until terminal.
const (
	jobPending    = "pending"
	jobProcessing = "processing"
	jobComplete   = "complete"
	jobFailed     = "error"
)

type renderJob struct {
	mu         sync.Mutex
	id         string
	task       string
	status     string
	results    []jobImage
	errMsg     string
	credential bool
}

// jobImage is one result image in a job response. Data serializes as base64.
type jobImage struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mimeType"`
}

var (
	jobsMu sync.Mutex
	jobs   = make(map[string]*renderJob)
)

func newJob(task string) *renderJob {
	job := &renderJob{
		id:     "job-" + uuid.NewString(),
		task:   task,
		status: jobPending,
	}
	jobsMu.Lock()
	jobs[job.id] = job
	jobsMu.Unlock()
	return job
}

func getJob(id string) *renderJob {
	jobsMu.Lock()
	defer jobsMu.Unlock()
	return jobs[id]
}

func (j *renderJob) setProcessing() {
	j.mu.Lock()
	j.status = jobProcessing
	j.mu.Unlock()
}

func (j *renderJob) complete(results []jobImage) {
	j.mu.Lock()
	j.status = jobComplete
	j.results = results
	j.mu.Unlock()
}

func (j *renderJob) fail(err error) {
	j.mu.Lock()
	j.status = jobFailed
	j.errMsg = err.Error()
	// Generation failures arrive as wrapped API errors, not pre-classified
	// ValidationErrors, so classify before testing. A key revoked mid-session
	// must still reopen the credential prompt.
	j.credential = auth.IsCredentialError(auth.ClassifyError(err))
	j.mu.Unlock()
}

// GET /api/jobs/{id}
func handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	job := getJob(id)
	if job == nil {
		httpError(w, http.StatusNotFound, "job not found")
		return
	}

	job.mu.Lock()
	defer job.mu.Unlock()

	resp := map[string]interface{}{
		"id":     job.id,
		"task":   job.task,
		"status": job.status,
	}
	if job.status == jobComplete {
		resp["results"] = job.results
	}
	if job.errMsg != "" {
		resp["error"] = job.errMsg
	}
	if job.credential {
		resp["credential"] = true
	}

	respondJSON(w, http.StatusOK, resp)
}
