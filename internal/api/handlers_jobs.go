package api

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dgallion1/docanalyze/internal/apperr"
	"github.com/dgallion1/docanalyze/internal/pipeline"
)

var docIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

func validDocID(id string) bool {
	return docIDPattern.MatchString(id)
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		jsonError(w, "job queue disabled", http.StatusServiceUnavailable)
		return
	}
	req, doc, err := s.decodeAnalyzeRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	docID := req.DocID
	if docID == "" {
		docID = pipeline.ContentHashHex(req.Document)[:16]
	}
	if !validDocID(docID) {
		writeError(w, apperr.Configf("invalid doc_id %q", docID))
		return
	}

	job := pipeline.NewJob(uuid.NewString(), docID, doc, s.task(req))
	if err := s.queue.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"doc_id":   job.DocID,
		"status":   job.Snapshot().Status,
		"poll_url": fmt.Sprintf("/api/jobs/%s/status", job.ID),
	})
}

func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) *pipeline.Job {
	if s.queue == nil {
		jsonError(w, "job queue disabled", http.StatusServiceUnavailable)
		return nil
	}
	job := s.queue.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
	}
	return job
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.lookupJob(w, r)
	if job == nil {
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	job := s.lookupJob(w, r)
	if job == nil {
		return
	}
	snap := job.Snapshot()
	switch snap.Status {
	case pipeline.StatusCompleted:
		writeJSON(w, http.StatusOK, job.Result())
	case pipeline.StatusFailed, pipeline.StatusCancelled:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  fmt.Sprintf("job %s", snap.Status),
			"status": snap.Status,
			"errors": snap.Progress.Errors,
		})
	default:
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":    "job not finished",
			"status":   snap.Status,
			"progress": snap.Progress,
		})
	}
}
