package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docanalyze/internal/pathstore"
	"github.com/dgallion1/docanalyze/internal/pipeline"
)

// handleGetAnalysis returns a persisted result and its metadata.
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "persistence disabled", http.StatusServiceUnavailable)
		return
	}
	docID := chi.URLParam(r, "docID")
	if !validDocID(docID) {
		jsonError(w, "invalid doc_id", http.StatusBadRequest)
		return
	}

	prefix := pipeline.AnalysisPrefix(docID)
	result, err := s.store.GetNode(r.Context(), prefix+"/result")
	if errors.Is(err, pathstore.ErrNotFound) {
		jsonError(w, "analysis not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to read analysis: "+err.Error(), http.StatusBadGateway)
		return
	}

	var meta json.RawMessage
	if node, err := s.store.GetNode(r.Context(), prefix+"/meta"); err == nil {
		meta = node.Value
	} else if !errors.Is(err, pathstore.ErrNotFound) {
		s.log.Warn("meta read failed", "doc_id", docID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"doc_id": docID,
		"meta":   meta,
		"result": result.Value,
	})
}

// handleDeleteAnalysis removes a persisted result and its metadata.
func (s *Server) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "persistence disabled", http.StatusServiceUnavailable)
		return
	}
	docID := chi.URLParam(r, "docID")
	if !validDocID(docID) {
		jsonError(w, "invalid doc_id", http.StatusBadRequest)
		return
	}

	if err := s.store.DeleteNode(r.Context(), pipeline.AnalysisPrefix(docID), true); err != nil {
		jsonError(w, "failed to delete analysis: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": docID, "deleted": true})
}
