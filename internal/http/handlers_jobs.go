// Package httpx provides the HTTP API of the media job broker.
package httpx

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/target/mediabroker/internal/domain/model"
	"github.com/target/mediabroker/internal/service"
)

// SubmitResponse acknowledges an accepted job.
type SubmitResponse struct {
	JobID     string         `json:"job_id"`
	State     model.JobState `json:"state"`
	StatusURL string         `json:"status_url"`
}

// ListResponse is the diagnostic job listing.
type ListResponse struct {
	Jobs  []model.JobSummary `json:"jobs"`
	Stats model.JobStats     `json:"stats"`
}

// JobHandlers provides HTTP handlers for job-related operations.
type JobHandlers struct {
	Svc    *service.JobService
	Logger *slog.Logger
}

// Submit handles POST /api/jobs. The job runs in the background; clients poll
// the returned status URL.
func (h *JobHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSubmit(w, r)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, Category: model.CategoryMissingParameter, Message: err.Error()})
		return
	}

	job, err := h.Svc.Submit(r.Context(), req)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	statusURL := service.StatusPath(job.ID)
	w.Header().Set("Location", statusURL)
	WriteJSON(w, http.StatusAccepted, SubmitResponse{JobID: job.ID, State: job.State, StatusURL: statusURL})
}

// Status handles GET /api/jobs/{id}.
func (h *JobHandlers) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.Svc.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, st)
}

// Fetch handles GET and HEAD /api/jobs/{id}/file. The whole file is always
// sent (ranges are not supported) and the job is discarded only after the
// complete body was written. HEAD leaves the job in place.
func (h *JobHandlers) Fetch(w http.ResponseWriter, r *http.Request) {
	dl, err := h.Svc.Open(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	defer dl.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": dl.Filename})
	if disposition == "" {
		disposition = "attachment"
	}
	contentType := mime.TypeByExtension(filepath.Ext(dl.Filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	size := dl.Info.Size()

	hdr := w.Header()
	hdr.Set("Content-Disposition", disposition)
	hdr.Set("Content-Type", contentType)
	hdr.Set("Content-Length", strconv.FormatInt(size, 10))
	hdr.Set("Last-Modified", dl.Info.ModTime().UTC().Format(http.TimeFormat))
	hdr.Set("Accept-Ranges", "none")
	hdr.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}

	n, err := io.Copy(w, dl.File)
	if err != nil || n != size {
		h.Logger.WarnContext(r.Context(), "result stream interrupted, job kept",
			"job_id", r.PathValue("id"), "written", n, "size", size, "error", err)
		return
	}
	dl.Delivered()
}

// Delete handles DELETE /api/jobs/{id}.
func (h *JobHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Remove(r.Context(), r.PathValue("id")); err != nil {
		WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /api/jobs.
func (h *JobHandlers) List(w http.ResponseWriter, r *http.Request) {
	jobs, stats := h.Svc.List(r.Context())
	WriteJSON(w, http.StatusOK, ListResponse{Jobs: jobs, Stats: stats})
}
